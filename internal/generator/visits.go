package generator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/Rana718/pharmaseed/internal/sampler"
	"github.com/Rana718/pharmaseed/internal/spec"
)

// visitBatch is what every root visit row of one batch shares.
type visitBatch struct {
	zEnt     int64
	user     user
	cycle    interface{}
	statuses []string
}

func (e *Env) visitBatch(ctx context.Context, req Request) (visitBatch, error) {
	var b visitBatch
	var err error
	if b.zEnt, err = e.zEnt(ctx, req); err != nil {
		return b, err
	}
	if b.user, err = e.user(ctx); err != nil {
		return b, err
	}
	if b.cycle, err = e.activeCycle(ctx, req); err != nil {
		return b, err
	}
	if b.statuses, err = e.statuses(ctx); err != nil {
		return b, err
	}
	return b, nil
}

func (e *Env) visitRow(b visitBatch) spec.Row {
	start, end := e.Faker.VisitWindow(e.Now())
	return spec.Row{
		"z_ent":      b.zEnt,
		"entity_id":  e.Faker.EntityID("a0A"),
		"date_start": start,
		"date_end":   end,
		"status":     e.Faker.Status(b.statuses),
		"user_id":    b.user.ID,
		"cycle":      b.cycle,
	}
}

// generateMedicalVisits books visits with therapists at an organization they are
// referenced in.
func generateMedicalVisits(ctx context.Context, env *Env, req Request) ([]spec.Row, error) {
	b, err := env.visitBatch(ctx, req)
	if err != nil {
		return nil, err
	}

	q := env.Sampler.Builder().
		Select("c.Z_PK AS contact", "c.ZENTITYID AS contact_id", "o.Z_PK AS organization", "o.ZENTITYID AS organization_id").
		From("ZREFERENCE r").
		Join("ZCONTACT c ON c.Z_PK = r.ZCONTACT").
		Join("ZORGANIZATION o ON o.Z_PK = r.ZORGANIZATION").
		Where(squirrel.Eq{"c.ZSPECIALTY": env.Vocabulary.TherapistSpecialty})
	pairs, err := env.rowPool(ctx, q, req.Count)
	if err != nil {
		return nil, fmt.Errorf("no therapist references: %w", err)
	}

	rows := make([]spec.Row, req.Count)
	for i := range rows {
		p := env.Faker.Intn(pairs.Len())
		contact, err := pairs.Int64(p, "contact")
		if err != nil {
			return nil, err
		}
		org, err := pairs.Int64(p, "organization")
		if err != nil {
			return nil, err
		}

		row := env.visitRow(b)
		row["medical_contact"] = contact
		row["medical_contact_id"] = pairs.String(p, "contact_id")
		row["medical_organization"] = org
		row["medical_organization_id"] = pairs.String(p, "organization_id")
		rows[i] = row
	}
	return rows, nil
}

func generatePharmacyVisits(ctx context.Context, env *Env, req Request) ([]spec.Row, error) {
	b, err := env.visitBatch(ctx, req)
	if err != nil {
		return nil, err
	}
	pharmacies, err := env.refPool(ctx, "ZORGANIZATION", squirrel.Eq{"ZSUBTYPE": env.Vocabulary.PharmacySubtype}, req.Count)
	if err != nil {
		return nil, err
	}

	rows := make([]spec.Row, req.Count)
	for i := range rows {
		org := env.pick(pharmacies)
		row := env.visitRow(b)
		row["pharmacy_organization"] = org.LocalKey
		row["pharmacy_organization_id"] = org.ExternalID
		rows[i] = row
	}
	return rows, nil
}

// generateVisitData details products presented during the parent visit; serves both
// medical and pharmacy visit data.
func generateVisitData(ctx context.Context, env *Env, req Request) ([]spec.Row, error) {
	zEnt, err := env.zEnt(ctx, req)
	if err != nil {
		return nil, err
	}
	products, err := env.products(ctx, req.Count)
	if err != nil {
		return nil, err
	}

	rows := make([]spec.Row, req.Count)
	for i := range rows {
		product := env.pick(products)
		rows[i] = spec.Row{
			"z_ent":           zEnt,
			"product":         product.LocalKey,
			"product_id":      product.ExternalID,
			"visit":           req.Parent.ID,
			"detail_sequence": i,
		}
	}
	return rows, nil
}

func generateVisitParticipants(ctx context.Context, env *Env, req Request) ([]spec.Row, error) {
	zEnt, err := env.zEnt(ctx, req)
	if err != nil {
		return nil, err
	}
	contacts, err := env.refPool(ctx, "ZCONTACT",
		squirrel.Eq{"ZRECORDTYPEID": env.Vocabulary.PharmacyContactRecordTypeID}, req.Count)
	if err != nil {
		return nil, err
	}

	rows := make([]spec.Row, req.Count)
	for i := range rows {
		contact := env.pick(contacts)
		rows[i] = spec.Row{
			"z_ent":      zEnt,
			"contact":    contact.LocalKey,
			"contact_id": contact.ExternalID,
			"visit":      req.Parent.ID,
		}
	}
	return rows, nil
}

// generatePharmaEvaluations copies the visited contact and date from the parent visit.
func generatePharmaEvaluations(ctx context.Context, env *Env, req Request) ([]spec.Row, error) {
	zEnt, err := env.zEnt(ctx, req)
	if err != nil {
		return nil, err
	}
	u, err := env.user(ctx)
	if err != nil {
		return nil, err
	}
	visit, err := env.parentVisit(ctx, req.Parent)
	if err != nil {
		return nil, err
	}
	products, err := env.products(ctx, req.Count)
	if err != nil {
		return nil, err
	}

	rows := make([]spec.Row, req.Count)
	for i := range rows {
		product := env.pick(products)
		rows[i] = spec.Row{
			"z_ent":         zEnt,
			"contact":       visit.contact,
			"contact_id":    visit.contactID,
			"product":       product.LocalKey,
			"product_id":    product.ExternalID,
			"visit":         req.Parent.ID,
			"visit_date":    visit.date,
			"user_division": u.Division,
			"user_id":       u.ID,
			"user_name":     u.Name,
		}
	}
	return rows, nil
}

type visitInfo struct {
	date      interface{}
	contact   interface{}
	contactID interface{}
}

func (e *Env) parentVisit(ctx context.Context, parent *Parent) (visitInfo, error) {
	table := parent.Table
	if table == "" {
		table = "ZVISIT"
	}
	v := e.Vocabulary
	for _, ident := range []string{table, v.VisitDateColumn, v.VisitContactColumn, v.VisitContactIDColumn} {
		if !spec.IsValidIdentifier(ident) {
			return visitInfo{}, &spec.ConfigError{Path: "vocabulary", Msg: fmt.Sprintf("invalid identifier %q", ident)}
		}
	}

	q := e.Sampler.Builder().
		Select(v.VisitDateColumn, v.VisitContactColumn, v.VisitContactIDColumn).
		From(table).
		Where(squirrel.Eq{sampler.KeyColumn: parent.ID})
	res, err := e.Sampler.Rows(ctx, q, 1)
	if err != nil {
		return visitInfo{}, fmt.Errorf("failed to load parent visit %d: %w", parent.ID, err)
	}
	row := res.Rows[0]
	return visitInfo{
		date:      row[v.VisitDateColumn],
		contact:   row[v.VisitContactColumn],
		contactID: row[v.VisitContactIDColumn],
	}, nil
}

func generatePathologies(ctx context.Context, env *Env, req Request) ([]spec.Row, error) {
	zEnt, err := env.zEnt(ctx, req)
	if err != nil {
		return nil, err
	}
	names, err := env.subtypes(ctx, env.Vocabulary.PathologyRecordType, poolSize)
	if err != nil {
		return nil, err
	}

	rows := make([]spec.Row, req.Count)
	for i := range rows {
		rows[i] = spec.Row{
			"z_ent":           zEnt,
			"visit":           req.Parent.ID,
			"pathology":       env.Faker.Pick(names),
			"detail_sequence": i,
		}
	}
	return rows, nil
}

// generateDynamicVisitData renders the configured JSON document once per row.
func generateDynamicVisitData(ctx context.Context, env *Env, req Request) ([]spec.Row, error) {
	zEnt, err := env.zEnt(ctx, req)
	if err != nil {
		return nil, err
	}

	var products []sampler.Reference
	if env.Dynamic.ProductID != "" {
		products, err = env.Sampler.Sample(ctx, "ZPRODUCT", squirrel.Eq{sampler.EntityIDColumn: env.Dynamic.ProductID}, 1)
	} else {
		products, err = env.products(ctx, req.Count)
	}
	if err != nil {
		return nil, err
	}

	tmpl := env.Dynamic.Template
	if tmpl == "" {
		tmpl = DefaultDynamicTemplate
	}

	rows := make([]spec.Row, req.Count)
	for i := range rows {
		product := env.pick(products)
		content, err := spec.RenderString(tmpl, spec.Row{
			"visit":      req.Parent.ID,
			"product_id": product.ExternalID,
			"index":      i,
		})
		if err != nil {
			return nil, err
		}
		if !json.Valid([]byte(content)) {
			return nil, &spec.TemplateSubstitutionError{Msg: fmt.Sprintf("dynamic content for visit %d is not valid JSON", req.Parent.ID)}
		}
		rows[i] = spec.Row{
			"z_ent":      zEnt,
			"visit":      req.Parent.ID,
			"product":    product.LocalKey,
			"product_id": product.ExternalID,
			"content":    content,
		}
	}
	return rows, nil
}
