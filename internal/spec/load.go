package spec

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// IsValidIdentifier checks a table or column name before it is spliced into SQL.
func IsValidIdentifier(name string) bool {
	return validIdentifier.MatchString(name)
}

// KindSet tells the loader which kinds have a registered generator and which of them
// only make sense nested under a parent record.
type KindSet interface {
	Known(kind string) bool
	NeedsParent(kind string) bool
}

// Load reads the structural baseline and the counts-only override, merges them and
// validates the result. A missing override file leaves the baseline untouched.
func Load(baselinePath, overridePath string, kinds KindSet) (*ConfigTree, error) {
	baseline, err := os.ReadFile(baselinePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", baselinePath, err)
	}

	var override []byte
	if overridePath != "" {
		override, err = os.ReadFile(overridePath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", overridePath, err)
		}
	}

	return Parse(baseline, override, kinds)
}

// Parse is Load over in-memory documents.
func Parse(baseline, override []byte, kinds KindSet) (*ConfigTree, error) {
	var baseNode, overNode yaml.Node
	if err := yaml.Unmarshal(baseline, &baseNode); err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("baseline: %v", err)}
	}
	if len(override) > 0 {
		if err := yaml.Unmarshal(override, &overNode); err != nil {
			return nil, &ConfigError{Msg: fmt.Sprintf("override: %v", err)}
		}
	}

	merged, err := Merge(&baseNode, &overNode)
	if err != nil {
		return nil, err
	}

	tree := &ConfigTree{}
	if merged != nil {
		if err := merged.Decode(tree); err != nil {
			return nil, &ConfigError{Msg: err.Error()}
		}
	}

	if err := tree.Validate(kinds); err != nil {
		return nil, err
	}
	return tree, nil
}

// Validate rejects unknown kinds and unusable identifiers before anything touches the
// store.
func (t *ConfigTree) Validate(kinds KindSet) error {
	for i, node := range t.Data {
		if err := node.validate(fmt.Sprintf("data[%d]", i), kinds, true); err != nil {
			return err
		}
	}
	return nil
}

func (e EntitySpec) validate(path string, kinds KindSet, root bool) error {
	if e.Kind == "" {
		return configErrorf(path, "missing kind")
	}
	path = fmt.Sprintf("%s(%s)", path, e.Kind)

	if kinds != nil && !kinds.Known(e.Kind) {
		return configErrorf(path, "no generator registered for kind %q", e.Kind)
	}
	if kinds != nil && root && kinds.NeedsParent(e.Kind) {
		return configErrorf(path, "kind %q must be nested under a parent record", e.Kind)
	}
	if e.Number < 0 {
		return configErrorf(path, "negative number %d", e.Number)
	}
	if !IsValidIdentifier(e.Table) {
		return configErrorf(path, "invalid table name %q", e.Table)
	}
	if e.Entity != "" && !IsValidIdentifier(e.Entity) {
		return configErrorf(path, "invalid entity name %q", e.Entity)
	}
	if e.StatusColumn != "" && !IsValidIdentifier(e.StatusColumn) {
		return configErrorf(path, "invalid status column %q", e.StatusColumn)
	}
	for _, col := range e.ColumnsData {
		if !IsValidIdentifier(col.Name) {
			return configErrorf(path, "invalid column name %q", col.Name)
		}
	}
	if e.Op() == OperationInsert && e.Number > 0 && len(e.ColumnsData) == 0 {
		return configErrorf(path, "insert without columns_data")
	}

	for i, child := range e.RelatedObjects {
		if err := child.validate(fmt.Sprintf("%s.related_objects[%d]", path, i), kinds, false); err != nil {
			return err
		}
	}
	return nil
}
