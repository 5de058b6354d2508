package generator

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/Rana718/pharmaseed/internal/spec"
)

func generateContacts(ctx context.Context, env *Env, req Request) ([]spec.Row, error) {
	zEnt, err := env.zEnt(ctx, req)
	if err != nil {
		return nil, err
	}
	specialties, err := env.subtypes(ctx, env.Vocabulary.DoctorRecordType, poolSize)
	if err != nil {
		return nil, err
	}

	now := env.Now()
	rows := make([]spec.Row, req.Count)
	for i := range rows {
		rows[i] = spec.Row{
			"z_ent":      zEnt,
			"entity_id":  env.Faker.EntityID("003"),
			"first_name": env.Faker.FirstName(i),
			"last_name":  env.Faker.LastName(now),
			"specialty":  env.Faker.Pick(specialties),
		}
	}
	return rows, nil
}

// generateReferences links the parent contact to medical organizations.
func generateReferences(ctx context.Context, env *Env, req Request) ([]spec.Row, error) {
	zEnt, err := env.zEnt(ctx, req)
	if err != nil {
		return nil, err
	}
	orgs, err := env.refPool(ctx, "ZORGANIZATION",
		squirrel.Eq{"ZRECORDTYPEID": env.Vocabulary.MedicalOrganizationRecordTypeID}, req.Count)
	if err != nil {
		return nil, err
	}

	rows := make([]spec.Row, req.Count)
	for i := range rows {
		org := env.pick(orgs)
		rows[i] = spec.Row{
			"z_ent":        zEnt,
			"contact":      req.Parent.ID,
			"organization": org.LocalKey,
			"id":           org.ExternalID,
		}
	}
	return rows, nil
}
