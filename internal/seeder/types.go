package seeder

import (
	"github.com/Rana718/pharmaseed/internal/generator"
	"github.com/Rana718/pharmaseed/internal/spec"
	"github.com/hashicorp/go-multierror"
)

type SeedConfig struct {
	Batch int // Rows per INSERT statement, capped by SQLite's compound SELECT limit
}

type NodeState int

const (
	StatePending NodeState = iota
	StateExpanded
	StatePersisted
	StatePropagated
	StateDone
	StateAborted
	StateSkipped
)

func (s NodeState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateExpanded:
		return "expanded"
	case StatePersisted:
		return "persisted"
	case StatePropagated:
		return "propagated"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	case StateSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// NodeResult is the outcome of one visit of an EntitySpec node. A related object is
// visited once per affected id of its parent.
type NodeResult struct {
	Kind      string
	Table     string
	Operation spec.Operation
	Parent    *generator.Parent
	Depth     int
	State     NodeState
	Trace     []NodeState
	Affected  []int64
	Err       error
}

func (n *NodeResult) to(state NodeState) {
	n.State = state
	n.Trace = append(n.Trace, state)
}

type Report struct {
	Nodes    []*NodeResult
	Inserted map[string]int // table -> rows inserted
	Updated  map[string]int // table -> rows marked modified

	errs *multierror.Error
}

func newReport() *Report {
	return &Report{
		Inserted: make(map[string]int),
		Updated:  make(map[string]int),
	}
}

func (r *Report) add(n *NodeResult) {
	r.Nodes = append(r.Nodes, n)
}

func (r *Report) abort(n *NodeResult, err error) {
	n.to(StateAborted)
	n.Err = err
	r.errs = multierror.Append(r.errs, err)
}

// Err aggregates every aborted node's error, or nil when nothing aborted.
func (r *Report) Err() error {
	return r.errs.ErrorOrNil()
}

// Count returns how many visited nodes of kind ended in state.
func (r *Report) Count(kind string, state NodeState) int {
	n := 0
	for _, node := range r.Nodes {
		if node.Kind == kind && node.State == state {
			n++
		}
	}
	return n
}
