package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"plant_inspection/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errAbort = errors.New("abort")

type fixture struct {
	template  domain.ChecklistTemplate
	person    domain.Person
	createdAt time.Time
}

func seedFixture(t *testing.T, store domain.Store) fixture {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	f := fixture{
		template: domain.ChecklistTemplate{
			ID:        uuid.New(),
			Name:      "Pump Check",
			PlantName: "Plant A",
			Steps: []domain.StepDefinition{
				{Description: "Check seals", OrderIndex: 1},
				{Description: "Check pressure", Requirement: "6 bar", OrderIndex: 2},
				{Description: "Check noise", OrderIndex: 3},
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
		person: domain.Person{
			ID:          uuid.New(),
			LoginName:   "inspector",
			DisplayName: "Laura Schmidt",
			Role:        domain.RoleInspector,
			CreatedAt:   now,
		},
		createdAt: now,
	}
	err := store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		if err := tx.Persons().Save(ctx, &f.person); err != nil {
			return err
		}
		return tx.Templates().Save(ctx, &f.template)
	})
	require.NoError(t, err)
	return f
}

func newInspection(f fixture, planned time.Time) *domain.Inspection {
	in := &domain.Inspection{
		ID:               uuid.New(),
		TemplateID:       f.template.ID,
		AssignedPersonID: f.person.ID,
		Title:            f.template.Name,
		PlantName:        f.template.PlantName,
		Status:           domain.StatusPlanned,
		PlannedDate:      planned,
		CreatedAt:        f.createdAt,
		UpdatedAt:        f.createdAt,
	}
	for _, st := range f.template.Steps {
		in.Steps = append(in.Steps, domain.StepResult{
			StepDefinitionID: st.ID,
			Description:      st.Description,
			Requirement:      st.Requirement,
			OrderIndex:       st.OrderIndex,
			Position:         st.Position,
			Status:           domain.StepNotApplicable,
			UpdatedAt:        f.createdAt,
		})
	}
	return in
}

// runStoreContract exercises behaviour every domain.Store must share.
func runStoreContract(t *testing.T, open func(t *testing.T) domain.Store) {
	ctx := context.Background()

	t.Run("template steps are ordered", func(t *testing.T) {
		store := open(t)
		f := seedFixture(t, store)

		err := store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			got, err := tx.Templates().FindByID(ctx, f.template.ID)
			require.NoError(t, err)
			require.Len(t, got.Steps, 3)
			assert.Equal(t, "Check seals", got.Steps[0].Description)
			assert.Equal(t, "Check pressure", got.Steps[1].Description)
			assert.Equal(t, "6 bar", got.Steps[1].Requirement)
			assert.Equal(t, "Check noise", got.Steps[2].Description)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("empty lists are not nil", func(t *testing.T) {
		store := open(t)
		require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			templates, err := tx.Templates().List(ctx, domain.TemplateFilter{})
			require.NoError(t, err)
			assert.NotNil(t, templates)
			assert.Empty(t, templates)

			persons, err := tx.Persons().List(ctx)
			require.NoError(t, err)
			assert.NotNil(t, persons)

			inspections, err := tx.Inspections().List(ctx, domain.InspectionFilter{})
			require.NoError(t, err)
			assert.NotNil(t, inspections)
			assert.Empty(t, inspections)
			return nil
		}))
	})

	t.Run("missing records report not found", func(t *testing.T) {
		store := open(t)
		err := store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			_, err := tx.Templates().FindByID(ctx, uuid.New())
			assert.ErrorIs(t, err, domain.ErrNotFound)
			_, err = tx.Persons().FindByID(ctx, uuid.New())
			assert.ErrorIs(t, err, domain.ErrNotFound)
			_, err = tx.Inspections().FindByID(ctx, uuid.New())
			assert.ErrorIs(t, err, domain.ErrNotFound)
			_, err = tx.StepResults().FindByID(ctx, uuid.New())
			assert.ErrorIs(t, err, domain.ErrNotFound)
			assert.ErrorIs(t, tx.Inspections().DeleteByID(ctx, uuid.New()), domain.ErrNotFound)
			assert.ErrorIs(t, tx.Templates().DeleteByID(ctx, uuid.New()), domain.ErrNotFound)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("inspection with results round trips", func(t *testing.T) {
		store := open(t)
		f := seedFixture(t, store)
		in := newInspection(f, f.createdAt.Add(24*time.Hour))

		require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			return tx.Inspections().Create(ctx, in)
		}))

		require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			got, err := tx.Inspections().FindByID(ctx, in.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.StatusPlanned, got.Status)
			require.Len(t, got.Steps, 3)
			for i, res := range got.Steps {
				assert.Equal(t, f.template.Steps[i].ID, res.StepDefinitionID)
				assert.Equal(t, domain.StepNotApplicable, res.Status)
				assert.Equal(t, in.ID, res.InspectionID)
			}

			count, err := tx.Templates().CountInspectionsReferencing(ctx, f.template.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, count)

			failed, err := tx.StepResults().FindByInspectionAndStatus(ctx, in.ID, domain.StepFailed)
			require.NoError(t, err)
			assert.Empty(t, failed)

			assigned, err := tx.Inspections().FindByAssignedPerson(ctx, f.person.ID)
			require.NoError(t, err)
			assert.Len(t, assigned, 1)
			return nil
		}))
	})

	t.Run("failed transaction leaves no trace", func(t *testing.T) {
		store := open(t)
		f := seedFixture(t, store)
		in := newInspection(f, f.createdAt)

		err := store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			if err := tx.Inspections().Create(ctx, in); err != nil {
				return err
			}
			return errAbort
		})
		require.ErrorIs(t, err, errAbort)

		require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			exists, err := tx.Inspections().ExistsByID(ctx, in.ID)
			require.NoError(t, err)
			assert.False(t, exists)
			results, err := tx.StepResults().FindByInspection(ctx, in.ID)
			require.NoError(t, err)
			assert.Empty(t, results)
			return nil
		}))
	})

	t.Run("replacing steps retires referenced definitions", func(t *testing.T) {
		store := open(t)
		f := seedFixture(t, store)
		in := newInspection(f, f.createdAt)
		require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			return tx.Inspections().Create(ctx, in)
		}))

		kept := f.template.Steps[0]
		kept.Description = "Check seals and gaskets"
		updated := f.template
		updated.Steps = []domain.StepDefinition{kept, {Description: "Check motor", OrderIndex: 5}}

		require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			return tx.Templates().Save(ctx, &updated)
		}))

		require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			got, err := tx.Templates().FindByID(ctx, f.template.ID)
			require.NoError(t, err)
			require.Len(t, got.Steps, 2)
			assert.Equal(t, kept.ID, got.Steps[0].ID)
			assert.Equal(t, "Check seals and gaskets", got.Steps[0].Description)
			assert.Equal(t, "Check motor", got.Steps[1].Description)

			_, err = tx.Templates().FindStepByID(ctx, f.template.Steps[1].ID)
			assert.ErrorIs(t, err, domain.ErrNotFound)

			snapshot, err := tx.Inspections().FindByID(ctx, in.ID)
			require.NoError(t, err)
			require.Len(t, snapshot.Steps, 3)
			assert.Equal(t, "Check seals", snapshot.Steps[0].Description)
			assert.Equal(t, "Check pressure", snapshot.Steps[1].Description)
			return nil
		}))
	})

	t.Run("step result save keeps definition reference", func(t *testing.T) {
		store := open(t)
		f := seedFixture(t, store)
		in := newInspection(f, f.createdAt)
		require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			return tx.Inspections().Create(ctx, in)
		}))

		target := in.Steps[1]
		require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			res, err := tx.StepResults().FindByID(ctx, target.ID)
			if err != nil {
				return err
			}
			res.Status = domain.StepFailed
			res.Comment = "leak observed"
			res.StepDefinitionID = uuid.New()
			return tx.StepResults().Save(ctx, res)
		}))

		require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			res, err := tx.StepResults().FindByID(ctx, target.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.StepFailed, res.Status)
			assert.Equal(t, "leak observed", res.Comment)
			assert.Equal(t, target.StepDefinitionID, res.StepDefinitionID)

			failed, err := tx.StepResults().FindByInspectionAndStatus(ctx, in.ID, domain.StepFailed)
			require.NoError(t, err)
			assert.Len(t, failed, 1)
			return nil
		}))
	})

	t.Run("delete cascades", func(t *testing.T) {
		store := open(t)
		f := seedFixture(t, store)
		in := newInspection(f, f.createdAt)
		require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			return tx.Inspections().Create(ctx, in)
		}))

		require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			if err := tx.Inspections().DeleteByID(ctx, in.ID); err != nil {
				return err
			}
			return tx.Templates().DeleteByID(ctx, f.template.ID)
		}))

		require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			_, err := tx.StepResults().FindByID(ctx, in.Steps[0].ID)
			assert.ErrorIs(t, err, domain.ErrNotFound)
			_, err = tx.Templates().FindStepByID(ctx, f.template.Steps[0].ID)
			assert.ErrorIs(t, err, domain.ErrNotFound)
			exists, err := tx.Templates().ExistsByID(ctx, f.template.ID)
			require.NoError(t, err)
			assert.False(t, exists)
			return nil
		}))
	})

	t.Run("duplicate login is a conflict", func(t *testing.T) {
		store := open(t)
		f := seedFixture(t, store)
		dup := domain.Person{ID: uuid.New(), LoginName: f.person.LoginName, Role: domain.RoleAdmin, CreatedAt: f.createdAt}
		err := store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			return tx.Persons().Save(ctx, &dup)
		})
		assert.ErrorIs(t, err, domain.ErrConflict)

		require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			p, err := tx.Persons().FindByLoginName(ctx, f.person.LoginName)
			require.NoError(t, err)
			assert.Equal(t, f.person.ID, p.ID)
			return nil
		}))
	})

	t.Run("inspection filters", func(t *testing.T) {
		store := open(t)
		f := seedFixture(t, store)
		early := newInspection(f, f.createdAt)
		late := newInspection(f, f.createdAt.Add(72*time.Hour))
		late.Status = domain.StatusInProgress
		require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			if err := tx.Inspections().Create(ctx, early); err != nil {
				return err
			}
			return tx.Inspections().Create(ctx, late)
		}))

		require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			all, err := tx.Inspections().List(ctx, domain.InspectionFilter{})
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, late.ID, all[0].ID)

			status := domain.StatusInProgress
			running, err := tx.Inspections().List(ctx, domain.InspectionFilter{Status: &status})
			require.NoError(t, err)
			require.Len(t, running, 1)
			assert.Equal(t, late.ID, running[0].ID)

			to := f.createdAt.Add(time.Hour)
			before, err := tx.Inspections().List(ctx, domain.InspectionFilter{PlannedTo: &to})
			require.NoError(t, err)
			require.Len(t, before, 1)
			assert.Equal(t, early.ID, before[0].ID)
			return nil
		}))
	})
}
