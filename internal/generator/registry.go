// Package generator turns a kind, a row count and an optional parent record into rows
// of placeholder values drawn from the existing store.
package generator

import (
	"context"
	"fmt"
	"sort"

	"github.com/Rana718/pharmaseed/internal/spec"
)

// Parent identifies the record a related object is generated for.
type Parent struct {
	ID    int64
	Table string
	Kind  string
}

// Request asks a generator for Count rows.
type Request struct {
	Kind         string
	Count        int
	Table        string
	Entity       string
	Placeholders []string
	Parent       *Parent
}

type Func func(ctx context.Context, env *Env, req Request) ([]spec.Row, error)

// Generator is a registered kind: the function that produces its rows and the
// defaults the walker applies to it.
type Generator struct {
	Kind        string
	Func        Func
	NeedsParent bool

	// Update path default: rows whose StatusColumn holds a terminal status are left alone.
	StatusColumn     string
	TerminalStatuses []string
}

type Registry struct {
	generators map[string]Generator
}

func NewRegistry(gens ...Generator) *Registry {
	r := &Registry{generators: make(map[string]Generator, len(gens))}
	for _, g := range gens {
		r.generators[g.Kind] = g
	}
	return r
}

// DefaultRegistry holds every kind the populate configuration can name.
func DefaultRegistry() *Registry {
	visitStatus := func(g Generator) Generator {
		g.StatusColumn = "ZSTATUS"
		g.TerminalStatuses = []string{"Closed"}
		return g
	}
	return NewRegistry(
		Generator{Kind: "contacts", Func: generateContacts},
		Generator{Kind: "references", Func: generateReferences, NeedsParent: true},
		visitStatus(Generator{Kind: "medical_visits", Func: generateMedicalVisits}),
		visitStatus(Generator{Kind: "pharmacy_visits", Func: generatePharmacyVisits}),
		Generator{Kind: "medical_visit_data", Func: generateVisitData, NeedsParent: true},
		Generator{Kind: "pharmacy_visit_data", Func: generateVisitData, NeedsParent: true},
		Generator{Kind: "visit_participants", Func: generateVisitParticipants, NeedsParent: true},
		Generator{Kind: "pharma_evaluations", Func: generatePharmaEvaluations, NeedsParent: true},
		Generator{Kind: "pathologies", Func: generatePathologies, NeedsParent: true},
		Generator{Kind: "dynamic_visit_data", Func: generateDynamicVisitData, NeedsParent: true},
	)
}

func (r *Registry) Known(kind string) bool {
	_, ok := r.generators[kind]
	return ok
}

// NeedsParent reports whether kind reads its parent record and so cannot sit at the
// top of the tree.
func (r *Registry) NeedsParent(kind string) bool {
	return r.generators[kind].NeedsParent
}

func (r *Registry) Lookup(kind string) (Generator, error) {
	g, ok := r.generators[kind]
	if !ok {
		return Generator{}, &spec.ConfigError{Path: kind, Msg: "no generator registered for kind"}
	}
	return g, nil
}

func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.generators))
	for k := range r.generators {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Generate dispatches req to its kind and checks that every returned row resolves
// every placeholder the templates use.
func (r *Registry) Generate(ctx context.Context, env *Env, req Request) ([]spec.Row, error) {
	g, err := r.Lookup(req.Kind)
	if err != nil {
		return nil, err
	}
	if req.Count <= 0 {
		return nil, nil
	}
	if g.NeedsParent && req.Parent == nil {
		return nil, &spec.ConfigError{Path: req.Kind, Msg: "kind must be nested under a parent record"}
	}

	rows, err := g.Func(ctx, env, req)
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s: %w", req.Kind, err)
	}
	if len(rows) != req.Count {
		return nil, fmt.Errorf("generator %s returned %d rows, want %d", req.Kind, len(rows), req.Count)
	}
	for _, row := range rows {
		for _, name := range req.Placeholders {
			if _, ok := row[name]; !ok {
				return nil, &spec.TemplateSubstitutionError{Placeholder: name}
			}
		}
	}
	return rows, nil
}

var _ spec.KindSet = (*Registry)(nil)
