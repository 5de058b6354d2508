package spec

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type Operation string

const (
	OperationInsert Operation = "insert"
	OperationUpdate Operation = "update"
)

// ConfigTree is the merged populate configuration.
type ConfigTree struct {
	Data []EntitySpec `yaml:"data"`
}

// EntitySpec describes one node of the population tree: which generator (Kind) fills
// which table, how many rows, and how generated values map onto columns.
type EntitySpec struct {
	Table          string       `yaml:"table"`
	Kind           string       `yaml:"kind"`
	Entity         string       `yaml:"entity,omitempty"`
	Operation      Operation    `yaml:"operation,omitempty"`
	Number         int          `yaml:"number"`
	ColumnsData    Columns      `yaml:"columns_data,omitempty"`
	RelatedObjects []EntitySpec `yaml:"related_objects,omitempty"`

	// Update path predicate. Rows whose StatusColumn holds one of TerminalStatuses are
	// never sampled nor marked modified.
	StatusColumn     string   `yaml:"status_column,omitempty"`
	TerminalStatuses []string `yaml:"terminal_statuses,omitempty"`
}

// Op returns the node operation. Nodes without one are inserts, which is how nested
// related objects are usually written.
func (e EntitySpec) Op() Operation {
	if e.Operation == "" {
		return OperationInsert
	}
	return Operation(strings.ToLower(string(e.Operation)))
}

// EntityName is the CoreData entity backing the table (ZVISIT -> VISIT).
func (e EntitySpec) EntityName() string {
	if e.Entity != "" {
		return e.Entity
	}
	return EntityFromTable(e.Table)
}

// EntityFromTable strips the CoreData "Z" table prefix.
func EntityFromTable(table string) string {
	if len(table) > 1 && (table[0] == 'Z' || table[0] == 'z') {
		return table[1:]
	}
	return table
}

// Kinds lists the kind of the node and of every descendant, depth first, without
// duplicates.
func (e EntitySpec) Kinds() []string {
	seen := map[string]bool{}
	var kinds []string
	var visit func(EntitySpec)
	visit = func(n EntitySpec) {
		if !seen[n.Kind] {
			seen[n.Kind] = true
			kinds = append(kinds, n.Kind)
		}
		for _, child := range n.RelatedObjects {
			visit(child)
		}
	}
	visit(e)
	return kinds
}

// Column is one column_data entry. Template is either a string with %{name}
// placeholders or a literal scalar bound as is.
type Column struct {
	Name     string
	Template interface{}
}

// Columns keeps columns_data in declaration order.
type Columns []Column

func (c *Columns) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.AliasNode {
		value = value.Alias
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: columns_data must be a mapping", value.Line)
	}
	cols := make(Columns, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		var tmpl interface{}
		if err := value.Content[i+1].Decode(&tmpl); err != nil {
			return fmt.Errorf("line %d: column %s: %w", value.Content[i].Line, value.Content[i].Value, err)
		}
		cols = append(cols, Column{Name: value.Content[i].Value, Template: tmpl})
	}
	*c = cols
	return nil
}

func (c Columns) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, col := range c {
		var val yaml.Node
		if err := val.Encode(col.Template); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: col.Name}, &val)
	}
	return node, nil
}

func (c Columns) Names() []string {
	names := make([]string, len(c))
	for i, col := range c {
		names[i] = col.Name
	}
	return names
}

// Placeholders returns every placeholder referenced by the templates, in first-use order.
func (c Columns) Placeholders() []string {
	seen := map[string]bool{}
	var names []string
	for _, col := range c {
		s, ok := col.Template.(string)
		if !ok {
			continue
		}
		for _, name := range Placeholders(s) {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}
