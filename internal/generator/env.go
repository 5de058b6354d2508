package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/Rana718/pharmaseed/internal/database/common"
	"github.com/Rana718/pharmaseed/internal/sampler"
	"github.com/Rana718/pharmaseed/internal/spec"
)

// poolSize caps how many candidates one batch pulls for a reference it redraws per row.
const poolSize = 200

// EntityNumbers resolves the CoreData Z_ENT of an entity.
type EntityNumbers interface {
	EntityNumber(ctx context.Context, entity string) (int64, error)
}

// Vocabulary holds the store-specific constants that decide which existing rows are
// valid candidates for a generated relationship.
type Vocabulary struct {
	DoctorRecordType                string `mapstructure:"doctor_record_type"`
	PathologyRecordType             string `mapstructure:"pathology_record_type"`
	TherapistSpecialty              string `mapstructure:"therapist_specialty"`
	MedicalOrganizationRecordTypeID string `mapstructure:"medical_organization_record_type_id"`
	PharmacyContactRecordTypeID     string `mapstructure:"pharmacy_contact_record_type_id"`
	PharmacySubtype                 string `mapstructure:"pharmacy_subtype"`

	// StatusRecordType, when set, names the ZRECORDTYPE whose subtypes replace
	// DefaultStatuses.
	StatusRecordType string `mapstructure:"status_record_type"`

	VisitDateColumn      string `mapstructure:"visit_date_column"`
	VisitContactColumn   string `mapstructure:"visit_contact_column"`
	VisitContactIDColumn string `mapstructure:"visit_contact_id_column"`
}

func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		DoctorRecordType:                "Контакт. Врач",
		PathologyRecordType:             "Патология",
		TherapistSpecialty:              "Терапевт",
		MedicalOrganizationRecordTypeID: "012D00000002XgpIAE",
		PharmacyContactRecordTypeID:     "012D00000002aMvIAI",
		PharmacySubtype:                 "Аптека",
		VisitDateColumn:                 "ZDATETIME",
		VisitContactColumn:              "ZCONTACT",
		VisitContactIDColumn:            "ZCONTACTID",
	}
}

// Dynamic configures dynamic_visit_data rows. An empty ProductID samples a random
// active product; Template is JSON with %{visit}, %{product_id} and %{index}.
type Dynamic struct {
	ProductID string `mapstructure:"product_id"`
	Template  string `mapstructure:"template"`
}

const DefaultDynamicTemplate = `{"visit": %{visit}, "product": "%{product_id}", "index": %{index}}`

// Env is what generators share for one run.
type Env struct {
	Sampler    *sampler.Sampler
	Entities   EntityNumbers
	Vocabulary Vocabulary
	Dynamic    Dynamic
	Faker      *Faker
	Now        func() time.Time
}

func NewEnv(s *sampler.Sampler, entities EntityNumbers, vocab Vocabulary, dynamic Dynamic) *Env {
	if dynamic.Template == "" {
		dynamic.Template = DefaultDynamicTemplate
	}
	return &Env{
		Sampler:    s,
		Entities:   entities,
		Vocabulary: vocab,
		Dynamic:    dynamic,
		Faker:      NewFaker(time.Now().UnixNano()),
		Now:        time.Now,
	}
}

type user struct {
	ID       string
	Name     string
	Division string
}

func (e *Env) zEnt(ctx context.Context, req Request) (int64, error) {
	entity := req.Entity
	if entity == "" {
		entity = spec.EntityFromTable(req.Table)
	}
	n, err := e.Entities.EntityNumber(ctx, entity)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve Z_ENT for %s: %w", entity, err)
	}
	return n, nil
}

// user is the current user, the first ZUSER row.
func (e *Env) user(ctx context.Context) (user, error) {
	q := e.Sampler.Builder().Select("ZENTITYID", "ZNAME", "ZUSERDIVISION").From("ZUSER")
	res, err := e.Sampler.First(ctx, q)
	if err != nil {
		return user{}, fmt.Errorf("failed to load current user: %w", err)
	}
	return user{
		ID:       res.String(0, "ZENTITYID"),
		Name:     res.String(0, "ZNAME"),
		Division: res.String(0, "ZUSERDIVISION"),
	}, nil
}

// activeCycle returns the external id of the active marketing cycle, or nil when the
// templates do not reference it.
func (e *Env) activeCycle(ctx context.Context, req Request) (interface{}, error) {
	if !uses(req, "cycle") {
		return nil, nil
	}
	ref, err := e.Sampler.One(ctx, "ZMARKETINGCYCLE", squirrel.Eq{"ZISACTIVE": 1})
	if err != nil {
		return nil, fmt.Errorf("failed to load active marketing cycle: %w", err)
	}
	return ref.ExternalID, nil
}

// statuses returns the configured status vocabulary; nil means DefaultStatuses.
func (e *Env) statuses(ctx context.Context) ([]string, error) {
	if e.Vocabulary.StatusRecordType == "" {
		return nil, nil
	}
	values, err := e.subtypes(ctx, e.Vocabulary.StatusRecordType, poolSize)
	var nf *sampler.ReferenceNotFoundError
	if errors.As(err, &nf) {
		return nil, nil
	}
	return values, err
}

func (e *Env) subtypes(ctx context.Context, recordType string, count int) ([]string, error) {
	q := e.Sampler.Builder().
		Select("s.ZVALUE AS value").
		From("ZSUBTYPE s").
		Join("ZRECORDTYPE rt ON rt.Z_PK = s.ZRECORDTYPE").
		Where(squirrel.Eq{"rt.ZNAME": recordType})
	return e.Sampler.Values(ctx, q, "value", count)
}

// refPool samples candidates once per batch; pick then redraws one per row.
func (e *Env) refPool(ctx context.Context, table string, filter sampler.Filter, count int) ([]sampler.Reference, error) {
	return e.Sampler.Sample(ctx, table, filter, min(count, poolSize))
}

func (e *Env) pick(refs []sampler.Reference) sampler.Reference {
	return refs[e.Faker.Intn(len(refs))]
}

func (e *Env) products(ctx context.Context, count int) ([]sampler.Reference, error) {
	return e.refPool(ctx, "ZPRODUCT", squirrel.Eq{"ZISACTIVE": 1}, count)
}

// rowPool is refPool for joined projections.
func (e *Env) rowPool(ctx context.Context, q squirrel.SelectBuilder, count int) (*common.QueryResult, error) {
	return e.Sampler.Rows(ctx, q, min(count, poolSize))
}

func uses(req Request, placeholder string) bool {
	for _, p := range req.Placeholders {
		if p == placeholder {
			return true
		}
	}
	return false
}
