package spec

import (
	"fmt"
	"regexp"
)

var placeholderRegex = regexp.MustCompile(`%\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Row maps placeholder names to generated values.
type Row map[string]interface{}

// Placeholders lists the %{name} placeholders of a template string.
func Placeholders(tmpl string) []string {
	matches := placeholderRegex.FindAllStringSubmatch(tmpl, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// RenderString substitutes every placeholder of tmpl with the text form of its value.
func RenderString(tmpl string, values Row) (string, error) {
	var missing string
	out := placeholderRegex.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := placeholderRegex.FindStringSubmatch(m)[1]
		v, ok := values[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return m
		}
		if v == nil {
			return ""
		}
		return fmt.Sprint(v)
	})
	if missing != "" {
		return "", &TemplateSubstitutionError{Placeholder: missing}
	}
	return out, nil
}

// Render turns a generated row into one value per column. A template that is exactly
// one placeholder keeps the value's type; mixed templates render to text.
func (c Columns) Render(row Row) ([]interface{}, error) {
	values := make([]interface{}, len(c))
	for i, col := range c {
		s, ok := col.Template.(string)
		if !ok {
			values[i] = col.Template
			continue
		}
		if m := placeholderRegex.FindStringSubmatchIndex(s); m != nil && m[0] == 0 && m[1] == len(s) {
			name := s[m[2]:m[3]]
			v, ok := row[name]
			if !ok {
				return nil, &TemplateSubstitutionError{Column: col.Name, Placeholder: name}
			}
			values[i] = v
			continue
		}
		rendered, err := RenderString(s, row)
		if err != nil {
			err.(*TemplateSubstitutionError).Column = col.Name
			return nil, err
		}
		values[i] = rendered
	}
	return values, nil
}
