package seeder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Rana718/pharmaseed/internal/database"
	"github.com/Rana718/pharmaseed/internal/database/sqlite"
	"github.com/Rana718/pharmaseed/internal/generator"
	"github.com/Rana718/pharmaseed/internal/sampler"
	"github.com/Rana718/pharmaseed/internal/sequence"
	"github.com/Rana718/pharmaseed/internal/spec"
	"github.com/Rana718/pharmaseed/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// recordingStore keeps every statement passed to Exec. When failInsert is set, the
// INSERT with that ordinal (1-based) is rejected.
type recordingStore struct {
	*sqlite.Adapter
	execs      []string
	failInsert int
}

func (r *recordingStore) Exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	r.execs = append(r.execs, query)
	if r.failInsert > 0 && strings.HasPrefix(query, "INSERT ") {
		n := 0
		for _, q := range r.execs {
			if strings.HasPrefix(q, "INSERT ") {
				n++
			}
		}
		if n == r.failInsert {
			return 0, &database.SQLExecutionError{Statement: query, Err: errors.New("disk I/O error")}
		}
	}
	return r.Adapter.Exec(ctx, query, args...)
}

func (r *recordingStore) inserts(table string) []string {
	var out []string
	for _, q := range r.execs {
		if strings.HasPrefix(q, "INSERT INTO "+table+" ") {
			out = append(out, q)
		}
	}
	return out
}

type fixture struct {
	store  *recordingStore
	env    *generator.Env
	seeder *Seeder
}

func newFixture(t *testing.T, batch int) *fixture {
	t.Helper()
	store := &recordingStore{Adapter: testutil.NewStore(t)}
	pk := sequence.NewPrimaryKeyTable(store)
	env := generator.NewEnv(sampler.New(store), pk, generator.DefaultVocabulary(), generator.Dynamic{})
	return &fixture{
		store:  store,
		env:    env,
		seeder: NewSeeder(store, generator.DefaultRegistry(), env, pk, SeedConfig{Batch: batch}, zaptest.NewLogger(t)),
	}
}

func (f *fixture) run(t *testing.T, baseline, override string) *Report {
	t.Helper()
	tree, err := spec.Parse([]byte(baseline), []byte(override), generator.DefaultRegistry())
	require.NoError(t, err)
	report, err := f.seeder.Populate(context.Background(), tree)
	require.NoError(t, err)
	return report
}

const contactsYAML = `
data:
  - kind: contacts
    table: ZCONTACT
    operation: insert
    number: 0
    columns_data:
      Z_ENT: '%{z_ent}'
      Z_OPT: 1
      ZENTITYID: '%{entity_id}'
      ZFIRSTNAME: '%{first_name}'
      ZLASTNAME: '%{last_name}'
      ZSPECIALTY: '%{specialty}'
`

const visitsYAML = `
data:
  - kind: medical_visits
    table: ZVISIT
    operation: insert
    number: 3
    columns_data:
      Z_ENT: '%{z_ent}'
      ZENTITYID: '%{entity_id}'
      ZCONTACT: '%{medical_contact}'
      ZCONTACTID: '%{medical_contact_id}'
      ZORGANIZATION: '%{medical_organization}'
      ZORGANIZATIONID: '%{medical_organization_id}'
      ZDATETIME: '%{date_start}'
      ZENDDATETIME: '%{date_end}'
      ZSTATUS: '%{status}'
      ZUSERID: '%{user_id}'
      ZCYCLE: '%{cycle}'
    related_objects:
      - kind: visit_participants
        table: ZVISITPARTICIPANT
        number: 2
        columns_data:
          Z_ENT: '%{z_ent}'
          ZCONTACT: '%{contact}'
          ZCONTACTID: '%{contact_id}'
          ZVISIT: '%{visit}'
`

func TestMergedCountsDriveOneInsert(t *testing.T) {
	f := newFixture(t, 0)
	report := f.run(t, contactsYAML, "data:\n  - kind: contacts\n    number: 5\n")

	require.NoError(t, report.Err())
	stmts := f.store.inserts("ZCONTACT")
	require.Len(t, stmts, 1)
	assert.Equal(t, 4, strings.Count(stmts[0], " UNION ALL SELECT "))

	assert.Equal(t, int64(9), testutil.Count(t, f.store.Adapter, "ZCONTACT", ""))
	assert.Equal(t, int64(5), testutil.Count(t, f.store.Adapter, "ZCONTACT", "Z_PK BETWEEN 5 AND 9 AND Z_ENT = 4 AND Z_OPT = 1"))
	assert.Equal(t, int64(9), testutil.Max(t, f.store.Adapter, "Contact"))
	assert.Equal(t, 5, report.Inserted["ZCONTACT"])

	node := report.Nodes[0]
	assert.Equal(t, []int64{5, 6, 7, 8, 9}, node.Affected)
	assert.Equal(t, []NodeState{StatePending, StateExpanded, StatePersisted, StatePropagated, StateDone}, node.Trace)
}

func TestZeroNumberIsDone(t *testing.T) {
	f := newFixture(t, 0)
	report := f.run(t, contactsYAML, "")

	assert.Equal(t, StateDone, report.Nodes[0].State)
	assert.Empty(t, f.store.inserts("ZCONTACT"))
	assert.Equal(t, int64(4), testutil.Max(t, f.store.Adapter, "Contact"))
}

func TestRelatedObjectsRepeatPerParentRow(t *testing.T) {
	f := newFixture(t, 0)
	report := f.run(t, visitsYAML, "")

	require.NoError(t, report.Err())
	assert.Equal(t, int64(6), testutil.Max(t, f.store.Adapter, "Visit"))
	assert.Equal(t, int64(6), testutil.Count(t, f.store.Adapter, "ZVISITPARTICIPANT", ""))
	for _, visit := range []int64{4, 5, 6} {
		assert.Equal(t, int64(2), testutil.Count(t, f.store.Adapter, "ZVISITPARTICIPANT", "ZVISIT = ?", visit))
	}
	assert.Equal(t, int64(6), testutil.Max(t, f.store.Adapter, "VisitParticipant"))
	assert.Equal(t, 3, report.Count("visit_participants", StateDone))

	// Each parent row gets its own participant insert, in parent key order.
	stmts := f.store.inserts("ZVISITPARTICIPANT")
	require.Len(t, stmts, 3)
	assert.Equal(t, int64(3), testutil.Count(t, f.store.Adapter, "ZVISIT", "ZCYCLE = ?", "a0CD000000CYC02"))
}

func TestChunkedInsertAdvancesCounterOnce(t *testing.T) {
	f := newFixture(t, 2)
	report := f.run(t, contactsYAML, "data:\n  - kind: contacts\n    number: 5\n")

	require.NoError(t, report.Err())
	assert.Len(t, f.store.inserts("ZCONTACT"), 3)
	assert.Equal(t, int64(9), testutil.Max(t, f.store.Adapter, "Contact"))
}

func TestUpdateMarksEverySampledRow(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	for i := 5; i <= 100; i++ {
		_, err := f.store.Adapter.Exec(ctx, "INSERT INTO ZCONTACT (Z_PK, Z_ENT, Z_OPT, ZENTITYID) VALUES (?, 4, 1, ?)", i, fmt.Sprintf("003D0000GEN%04d", i))
		require.NoError(t, err)
	}

	report := f.run(t, `
data:
  - kind: contacts
    table: ZCONTACT
    operation: update
    number: 1000
`, "")

	require.NoError(t, report.Err())
	assert.Equal(t, int64(100), testutil.Count(t, f.store.Adapter, "ZCONTACT", "ZISMODIFIED = 1"))
	assert.Len(t, report.Nodes[0].Affected, 100)
	assert.Equal(t, 100, report.Updated["ZCONTACT"])
	assert.Equal(t, int64(4), testutil.Max(t, f.store.Adapter, "Contact"), "updates never allocate keys")
}

func TestUpdateSkipsTerminalStatuses(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	_, err := f.store.Adapter.Exec(ctx, "INSERT INTO ZVISIT (Z_PK, Z_ENT, Z_OPT, ZSTATUS) VALUES (4, 9, 1, NULL)")
	require.NoError(t, err)

	report := f.run(t, `
data:
  - kind: medical_visits
    table: ZVISIT
    operation: update
    number: 10
    related_objects:
      - kind: medical_visit_data
        table: ZVISITDATA
        number: 1
        columns_data:
          Z_ENT: '%{z_ent}'
          ZPRODUCT: '%{product}'
          ZPRODUCTID: '%{product_id}'
          ZVISIT: '%{visit}'
          ZDETAILSEQUENCE: '%{detail_sequence}'
`, "")

	require.NoError(t, report.Err())
	assert.ElementsMatch(t, []int64{1, 3, 4}, report.Nodes[0].Affected)
	assert.Equal(t, int64(0), testutil.Count(t, f.store.Adapter, "ZVISIT", "ZSTATUS = 'Closed' AND ZISMODIFIED = 1"))
	assert.Equal(t, int64(3), testutil.Count(t, f.store.Adapter, "ZVISIT", "ZISMODIFIED = 1"))
	assert.Equal(t, int64(0), testutil.Count(t, f.store.Adapter, "ZVISITDATA", "ZVISIT = 2"))
	assert.Equal(t, int64(3), testutil.Count(t, f.store.Adapter, "ZVISITDATA", ""))
}

func TestTerminalStatusesOverriddenPerNode(t *testing.T) {
	f := newFixture(t, 0)
	report := f.run(t, `
data:
  - kind: medical_visits
    table: ZVISIT
    operation: update
    number: 10
    terminal_statuses: [Open, Processing]
`, "")

	require.NoError(t, report.Err())
	assert.Equal(t, []int64{2}, report.Nodes[0].Affected)
}

func TestAbortedNodeDoesNotStopSiblings(t *testing.T) {
	f := newFixture(t, 0)
	f.env.Vocabulary.TherapistSpecialty = "Хирург"

	baseline := strings.Replace(visitsYAML, "data:\n", "data:\n"+strings.TrimPrefix(contactsYAML, "\ndata:\n"), 1)
	report := f.run(t, baseline, "data:\n  - kind: contacts\n    number: 2\n")

	require.Len(t, report.Nodes, 2)
	assert.Equal(t, StateDone, report.Nodes[0].State)
	assert.Equal(t, StateAborted, report.Nodes[1].State)

	var nf *sampler.ReferenceNotFoundError
	assert.ErrorAs(t, report.Err(), &nf)
	assert.ErrorAs(t, report.Nodes[1].Err, &nf)

	assert.Equal(t, int64(6), testutil.Max(t, f.store.Adapter, "Contact"))
	assert.Equal(t, int64(3), testutil.Max(t, f.store.Adapter, "Visit"), "aborted node leaves its counter untouched")
	assert.Equal(t, int64(0), testutil.Count(t, f.store.Adapter, "ZVISITPARTICIPANT", ""))
}

func TestUnknownOperationIsSkipped(t *testing.T) {
	f := newFixture(t, 0)
	report := f.run(t, strings.Replace(contactsYAML, "operation: insert", "operation: delete", 1),
		"data:\n  - kind: contacts\n    number: 3\n")

	assert.NoError(t, report.Err())
	assert.Equal(t, StateSkipped, report.Nodes[0].State)
	assert.Empty(t, f.store.inserts("ZCONTACT"))
}

func TestUnknownTableAbortsSubtree(t *testing.T) {
	f := newFixture(t, 0)
	report := f.run(t, `
data:
  - kind: contacts
    table: ZSALESORDER
    number: 2
    columns_data:
      ZFIRSTNAME: '%{first_name}'
  - kind: contacts
    table: ZCONTACT
    number: 1
    columns_data:
      Z_ENT: '%{z_ent}'
      ZFIRSTNAME: '%{first_name}'
`, "")

	var unknown *sequence.UnknownTableError
	require.ErrorAs(t, report.Err(), &unknown)
	assert.Equal(t, "ZSALESORDER", unknown.Table)
	assert.Equal(t, StateAborted, report.Nodes[0].State)
	assert.Equal(t, StateDone, report.Nodes[1].State)
	assert.Equal(t, int64(5), testutil.Max(t, f.store.Adapter, "Contact"))
}

func TestMissingColumnIsRejectedBeforeInsert(t *testing.T) {
	f := newFixture(t, 0)
	report := f.run(t, `
data:
  - kind: contacts
    table: ZCONTACT
    number: 2
    columns_data:
      ZNICKNAME: '%{first_name}'
`, "")

	var cfgErr *spec.ConfigError
	require.ErrorAs(t, report.Err(), &cfgErr)
	assert.Contains(t, cfgErr.Msg, "ZNICKNAME")
	assert.Empty(t, f.store.inserts("ZCONTACT"))
	assert.Equal(t, int64(4), testutil.Max(t, f.store.Adapter, "Contact"))
}

func TestFailedChunkCommitsOnlyWrittenRows(t *testing.T) {
	f := newFixture(t, 2)
	f.store.failInsert = 3
	report := f.run(t, contactsYAML, "data:\n  - kind: contacts\n    number: 5\n")

	var execErr *database.SQLExecutionError
	require.ErrorAs(t, report.Err(), &execErr)
	assert.Contains(t, execErr.Statement, "INSERT INTO ZCONTACT")

	assert.Equal(t, 4, report.Inserted["ZCONTACT"])
	assert.Equal(t, int64(8), testutil.Count(t, f.store.Adapter, "ZCONTACT", ""))
	assert.Equal(t, int64(8), testutil.Max(t, f.store.Adapter, "Contact"))
	assert.Equal(t, StateAborted, report.Nodes[0].State)
}

func TestExampleConfiguration(t *testing.T) {
	f := newFixture(t, 0)
	tree, err := spec.Load("../../example/populate_config.yml", "../../example/populate_number.yml", generator.DefaultRegistry())
	require.NoError(t, err)

	report, err := f.seeder.Populate(context.Background(), tree)
	require.NoError(t, err)
	require.NoError(t, report.Err())

	counts := map[string]int64{
		"ZCONTACT":          4 + 20,
		"ZREFERENCE":        2 + 20,
		"ZVISIT":            3 + 50 + 30,
		"ZVISITDATA":        50*3 + 30*2,
		"ZPHARMAEVALUATION": 50 * 2,
		"ZPATHOLOGY":        50,
		"ZDYNAMICDATA":      50,
		"ZVISITPARTICIPANT": 30 * 2,
	}
	for table, want := range counts {
		assert.Equal(t, want, testutil.Count(t, f.store.Adapter, table, ""), table)
	}
	assert.Equal(t, int64(210), testutil.Max(t, f.store.Adapter, "VisitData"))
	assert.Equal(t, int64(83), testutil.Max(t, f.store.Adapter, "Visit"))
	assert.Equal(t, int64(0), testutil.Count(t, f.store.Adapter, "ZPHARMAEVALUATION e JOIN ZVISIT v ON v.Z_PK = e.ZVISIT", "e.ZVISITDATE != v.ZDATETIME"))
}

func TestKeyPlaceholderRendersAllocatedKey(t *testing.T) {
	f := newFixture(t, 0)
	report := f.run(t, `
data:
  - kind: contacts
    table: ZCONTACT
    number: 2
    columns_data:
      Z_ENT: '%{z_ent}'
      ZENTITYID: 'GEN-%{pk}'
      ZFIRSTNAME: '%{first_name}'
`, "")

	require.NoError(t, report.Err())
	assert.Equal(t, StateDone, report.Nodes[0].State)
	assert.Equal(t, []int64{5, 6}, report.Nodes[0].Affected)
	assert.Equal(t, int64(1), testutil.Count(t, f.store.Adapter, "ZCONTACT", "Z_PK = 5 AND ZENTITYID = 'GEN-5'"))
	assert.Equal(t, int64(1), testutil.Count(t, f.store.Adapter, "ZCONTACT", "Z_PK = 6 AND ZENTITYID = 'GEN-6'"))
}

func TestNegativeNumberAbortsUnvalidatedNode(t *testing.T) {
	f := newFixture(t, 0)
	tree := &spec.ConfigTree{Data: []spec.EntitySpec{
		{Kind: "contacts", Table: "ZCONTACT", Number: -2},
	}}
	report, err := f.seeder.Populate(context.Background(), tree)
	require.NoError(t, err)

	assert.Equal(t, StateAborted, report.Nodes[0].State)
	var cfgErr *spec.ConfigError
	require.ErrorAs(t, report.Err(), &cfgErr)
	assert.Empty(t, f.store.inserts("ZCONTACT"))
}
