package spec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type kindList []string

func (k kindList) Known(kind string) bool {
	for _, v := range k {
		if v == kind {
			return true
		}
	}
	return false
}

func (k kindList) NeedsParent(kind string) bool {
	return kind == "medical_visit_data" || kind == "visit_participants"
}

var testKinds = kindList{"contacts", "medical_visits", "medical_visit_data", "visit_participants", "pharmacy_visits"}

func TestParseContactsScenario(t *testing.T) {
	baseline := []byte(`
data:
  - kind: contacts
    number: 0
    table: ZCONTACT
    columns_data:
      Z_ENT: "%{z_ent}"
      ZFIRSTNAME: "%{first_name}"
`)
	override := []byte(`
data:
  - kind: contacts
    number: 5
`)
	tree, err := Parse(baseline, override, testKinds)
	require.NoError(t, err)
	require.Len(t, tree.Data, 1)
	assert.Equal(t, 5, tree.Data[0].Number)
	assert.Equal(t, OperationInsert, tree.Data[0].Op())
	assert.Equal(t, "CONTACT", tree.Data[0].EntityName())
}

func TestParseRejectsUnknownKind(t *testing.T) {
	_, err := Parse([]byte(`
data:
  - kind: medical_visits
    table: ZVISIT
    number: 1
    columns_data: {ZSTATUS: "%{status}"}
    related_objects:
      - kind: teleportations
        table: ZTELEPORT
        number: 1
        columns_data: {ZVISIT: "%{visit}"}
`), nil, testKinds)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Msg, "teleportations")
	assert.Contains(t, cfgErr.Path, "related_objects[0]")
}

func TestParseRejectsBadIdentifiers(t *testing.T) {
	cases := map[string]string{
		"table": `
data:
  - kind: contacts
    table: "ZCONTACT; DROP TABLE ZUSER"
    number: 1
    columns_data: {ZFIRSTNAME: x}
`,
		"column": `
data:
  - kind: contacts
    table: ZCONTACT
    number: 1
    columns_data: {"ZFIRST NAME": x}
`,
		"missing columns": `
data:
  - kind: contacts
    table: ZCONTACT
    number: 1
`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src), nil, testKinds)
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestParseUpdateNodeNeedsNoColumns(t *testing.T) {
	tree, err := Parse([]byte(`
data:
  - kind: medical_visits
    table: ZVISIT
    operation: UPDATE
    number: 10
    terminal_statuses: [Closed]
`), nil, testKinds)
	require.NoError(t, err)
	assert.Equal(t, OperationUpdate, tree.Data[0].Op())
	assert.Equal(t, []string{"Closed"}, tree.Data[0].TerminalStatuses)
}

func TestLoadFromFiles(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "populate_config.yml")
	overPath := filepath.Join(dir, "populate_number.yml")

	require.NoError(t, os.WriteFile(basePath, []byte(baselineYAML), 0644))
	require.NoError(t, os.WriteFile(overPath, []byte("data:\n  - kind: contacts\n    number: 3\n"), 0644))

	tree, err := Load(basePath, overPath, testKinds)
	require.NoError(t, err)
	assert.Equal(t, 3, tree.Data[1].Number)

	tree, err = Load(basePath, filepath.Join(dir, "absent.yml"), testKinds)
	require.NoError(t, err)
	assert.Equal(t, 0, tree.Data[1].Number)

	_, err = Load(filepath.Join(dir, "nope.yml"), overPath, testKinds)
	assert.Error(t, err)
}

func TestKindsListsSubtree(t *testing.T) {
	node := EntitySpec{
		Kind: "medical_visits",
		RelatedObjects: []EntitySpec{
			{Kind: "medical_visit_data"},
			{Kind: "visit_participants", RelatedObjects: []EntitySpec{{Kind: "medical_visit_data"}}},
		},
	}
	assert.Equal(t, []string{"medical_visits", "medical_visit_data", "visit_participants"}, node.Kinds())
}

func TestParseRejectsNegativeNumber(t *testing.T) {
	_, err := Parse([]byte(`
data:
  - kind: contacts
    table: ZCONTACT
    number: 0
    columns_data: {ZFIRSTNAME: "%{first_name}"}
`), []byte("data:\n  - kind: contacts\n    number: -3\n"), testKinds)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Msg, "negative number -3")
	assert.Contains(t, cfgErr.Path, "contacts")
}

func TestParseRejectsChildKindAtRoot(t *testing.T) {
	_, err := Parse([]byte(`
data:
  - kind: visit_participants
    table: ZVISITPARTICIPANT
    number: 2
    columns_data: {ZVISIT: "%{visit}"}
`), nil, testKinds)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Msg, "nested under a parent")
	assert.Equal(t, "data[0](visit_participants)", cfgErr.Path)

	_, err = Parse([]byte(`
data:
  - kind: medical_visits
    table: ZVISIT
    number: 1
    columns_data: {ZSTATUS: "%{status}"}
    related_objects:
      - kind: visit_participants
        table: ZVISITPARTICIPANT
        number: 2
        columns_data: {ZVISIT: "%{visit}"}
`), nil, testKinds)
	assert.NoError(t, err)
}
