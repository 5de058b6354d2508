package spec

import "fmt"

// ConfigError reports an invalid or unmergeable populate configuration.
type ConfigError struct {
	Path string
	Msg  string
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return "config error: " + e.Msg
	}
	return fmt.Sprintf("config error at %s: %s", e.Path, e.Msg)
}

func configErrorf(path, format string, args ...interface{}) error {
	return &ConfigError{Path: path, Msg: fmt.Sprintf(format, args...)}
}

// TemplateSubstitutionError reports a template that could not be filled from a
// generated row.
type TemplateSubstitutionError struct {
	Column      string
	Placeholder string
	Msg         string
}

func (e *TemplateSubstitutionError) Error() string {
	switch {
	case e.Placeholder != "" && e.Column == "":
		return fmt.Sprintf("unresolved placeholder %%{%s}", e.Placeholder)
	case e.Placeholder != "":
		return fmt.Sprintf("column %s: unresolved placeholder %%{%s}", e.Column, e.Placeholder)
	case e.Column != "":
		return fmt.Sprintf("column %s: %s", e.Column, e.Msg)
	default:
		return e.Msg
	}
}
