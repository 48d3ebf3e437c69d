package usecase

import (
	"context"
	"testing"
	"time"

	"plant_inspection/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, h *harness, name string) float64 {
	t.Helper()
	families, err := h.metrics.Registry().Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestCreateFromTemplateSnapshotsSteps(t *testing.T) {
	h := newHarness(t)
	tmpl := h.pumpCheck(t)
	person := h.inspector(t, "inspector")

	in := h.inspect(t, tmpl, person)

	assert.Equal(t, domain.StatusPlanned, in.Status)
	assert.Equal(t, "Pump Check", in.Title)
	assert.Equal(t, "Plant A", in.PlantName)
	assert.Equal(t, person.ID, in.AssignedPersonID)
	assert.Nil(t, in.StartedAt)
	assert.Nil(t, in.FinishedAt)
	require.Len(t, in.Steps, 3)
	for i, res := range in.Steps {
		assert.Equal(t, tmpl.Steps[i].ID, res.StepDefinitionID)
		assert.Equal(t, tmpl.Steps[i].Description, res.Description)
		assert.Equal(t, domain.StepNotApplicable, res.Status)
		assert.Empty(t, res.Comment)
		assert.Empty(t, res.PhotoRef)
	}
	assert.Equal(t, 1.0, counterValue(t, h, "inspections_created_total"))

	stored, err := h.inspections.GetInspection(context.Background(), in.ID)
	require.NoError(t, err)
	assert.Equal(t, in.Steps, stored.Steps)
}

func TestCreateFromTemplateOverridesAndEmptyTemplate(t *testing.T) {
	h := newHarness(t)
	person := h.inspector(t, "inspector")
	empty, err := h.templates.CreateTemplate(context.Background(), TemplateInput{Name: "Empty"})
	require.NoError(t, err)

	in, err := h.inspections.CreateFromTemplate(context.Background(), CreateInspectionInput{
		TemplateID:          empty.ID,
		Title:               "Night shift walk",
		PlantName:           "Plant B",
		PlannedDate:         fixedNow,
		GeneralComment:      "bring a torch",
		ResponsiblePersonID: person.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "Night shift walk", in.Title)
	assert.Equal(t, "Plant B", in.PlantName)
	assert.Equal(t, "bring a torch", in.GeneralComment)
	assert.Empty(t, in.Steps)
}

func TestCreateFromTemplateFailuresLeaveNothing(t *testing.T) {
	h := newHarness(t)
	tmpl := h.pumpCheck(t)
	person := h.inspector(t, "inspector")
	ctx := context.Background()

	_, err := h.inspections.CreateFromTemplate(ctx, CreateInspectionInput{
		TemplateID: missingID(), PlannedDate: fixedNow, ResponsiblePersonID: person.ID,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = h.inspections.CreateFromTemplate(ctx, CreateInspectionInput{
		TemplateID: tmpl.ID, PlannedDate: fixedNow, ResponsiblePersonID: missingID(),
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = h.inspections.CreateFromTemplate(ctx, CreateInspectionInput{
		TemplateID: tmpl.ID, ResponsiblePersonID: person.ID,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	assert.Equal(t, 0, h.countInspections(t))
	assert.Equal(t, 0.0, counterValue(t, h, "inspections_created_total"))
}

func TestSnapshotIsolationFromTemplateEdits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tmpl := h.pumpCheck(t)
	in := h.inspect(t, tmpl, h.inspector(t, "inspector"))

	_, err := h.templates.UpdateTemplate(ctx, tmpl.ID, TemplateInput{
		Name: "Pump Check v2",
		Steps: []StepInput{
			{ID: tmpl.Steps[0].ID, Description: "Check seals twice", OrderIndex: 1},
			{Description: "Check motor temperature", OrderIndex: 2},
			{Description: "Check coupling", OrderIndex: 3},
			{Description: "Check base bolts", OrderIndex: 4},
		},
	})
	require.NoError(t, err)
	require.NoError(t, h.templates.RemoveStep(ctx, tmpl.Steps[0].ID))

	after, err := h.inspections.GetInspection(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, in.Steps, after.Steps)

	results, err := h.steps.ListStepResults(ctx, in.ID, "")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "Check seals", results[0].Description)
	assert.Equal(t, "Check pressure", results[1].Description)
	assert.Equal(t, "6 bar", results[1].Requirement)
	assert.Equal(t, "Check noise", results[2].Description)

	fresh := h.inspect(t, tmpl, h.inspector(t, "second"))
	require.Len(t, fresh.Steps, 3)
	assert.Equal(t, "Check motor temperature", fresh.Steps[0].Description)
}

func TestPumpCheckScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tmpl := h.pumpCheck(t)
	in := h.inspect(t, tmpl, h.inspector(t, "inspector"))
	require.Len(t, in.Steps, 3)

	second := in.Steps[1]
	_, err := h.steps.UpdateStepStatus(ctx, second.ID, "FAILED")
	require.NoError(t, err)
	_, err = h.steps.UpdateStepComment(ctx, second.ID, "leak observed")
	require.NoError(t, err)

	after, err := h.inspections.GetInspection(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPlanned, after.Status)
	require.Len(t, after.Steps, 3)
	assert.Equal(t, domain.StepFailed, after.Steps[1].Status)
	assert.Equal(t, "leak observed", after.Steps[1].Comment)
	for _, i := range []int{0, 2} {
		assert.Equal(t, in.Steps[i], after.Steps[i])
	}

	failed, err := h.steps.ListStepResults(ctx, in.ID, "failed")
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, second.ID, failed[0].ID)
}

func TestUpdateStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	in := h.inspect(t, h.pumpCheck(t), h.inspector(t, "inspector"))

	got, err := h.inspections.UpdateStatus(ctx, in.ID, " in_progress ")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, got.Status)
	require.NotNil(t, got.StartedAt)
	assert.Nil(t, got.FinishedAt)

	got, err = h.inspections.UpdateStatus(ctx, in.ID, "COMPLETED")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	require.NotNil(t, got.FinishedAt)

	// no transition order is enforced
	got, err = h.inspections.UpdateStatus(ctx, in.ID, "PLANNED")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPlanned, got.Status)
	assert.NotNil(t, got.FinishedAt)
	assert.Equal(t, 3.0, counterValue(t, h, "inspection_status_changes_total"))
}

func TestUpdateStatusRejectsUnknownValues(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	in := h.inspect(t, h.pumpCheck(t), h.inspector(t, "inspector"))

	for _, raw := range []string{"", "DONE", "PLANNED_LATER", "cancelled"} {
		_, err := h.inspections.UpdateStatus(ctx, in.ID, raw)
		require.ErrorIs(t, err, domain.ErrInvalidArgument, raw)
		assert.Contains(t, err.Error(), "[PLANNED IN_PROGRESS COMPLETED]")
	}

	after, err := h.inspections.GetInspection(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPlanned, after.Status)
	assert.Equal(t, in.UpdatedAt, after.UpdatedAt)
}

func TestUpdateInspectionHeader(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	in := h.inspect(t, h.pumpCheck(t), h.inspector(t, "inspector"))
	moved := fixedNow.Add(7 * 24 * time.Hour)

	got, err := h.inspections.UpdateInspection(ctx, in.ID, UpdateInspectionInput{PlannedDate: moved, GeneralComment: "postponed"})
	require.NoError(t, err)
	assert.Equal(t, "Pump Check", got.Title)
	assert.True(t, moved.Equal(got.PlannedDate))
	assert.Equal(t, "postponed", got.GeneralComment)
	assert.Len(t, got.Steps, 3)
}

func TestNonexistentIDsAreNotFound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.inspect(t, h.pumpCheck(t), h.inspector(t, "inspector"))

	_, err := h.inspections.UpdateStatus(ctx, missingID(), "COMPLETED")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = h.steps.UpdateStepStatus(ctx, missingID(), "PASSED")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = h.steps.UpdateStepComment(ctx, missingID(), "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, h.inspections.DeleteInspection(ctx, missingID()), domain.ErrNotFound)
	assert.ErrorIs(t, h.templates.DeleteTemplate(ctx, missingID()), domain.ErrNotFound)
	_, err = h.inspections.GetInspection(ctx, missingID())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = h.inspections.ListForPerson(ctx, missingID())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = h.steps.ListStepResults(ctx, missingID(), "")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Equal(t, 1, h.countInspections(t))
}

func TestDeleteInspectionCascadesResults(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	in := h.inspect(t, h.pumpCheck(t), h.inspector(t, "inspector"))

	require.NoError(t, h.inspections.DeleteInspection(ctx, in.ID))

	for _, res := range in.Steps {
		_, err := h.steps.GetStepResult(ctx, res.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	}
	assert.Equal(t, 0, h.countInspections(t))
}

func TestDeleteInspectionRemovesPhotos(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tmpl := h.pumpCheck(t)
	person := h.inspector(t, "inspector")
	doomed := h.inspect(t, tmpl, person)
	kept := h.inspect(t, tmpl, person)

	for _, res := range doomed.Steps[:2] {
		_, err := h.steps.AttachPhoto(ctx, res.ID, "step.png", "image/png", testPNG(t, 20, 20))
		require.NoError(t, err)
	}
	other, err := h.steps.AttachPhoto(ctx, kept.Steps[0].ID, "other.png", "image/png", testPNG(t, 20, 20))
	require.NoError(t, err)
	// borrowed reference to a photo of the other inspection
	_, err = h.steps.UpdateStepResult(ctx, doomed.Steps[2].ID, UpdateStepResultInput{
		Status: "PASSED", PhotoPath: other.PhotoRef,
	})
	require.NoError(t, err)
	require.Equal(t, 3, h.photos.Len())

	require.NoError(t, h.inspections.DeleteInspection(ctx, doomed.ID))

	assert.Equal(t, 1, h.photos.Len())
	_, ok := h.photos.Get(other.PhotoRef)
	assert.True(t, ok)
}

func TestListInspectionsFilters(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tmpl := h.pumpCheck(t)
	laura := h.inspector(t, "laura")
	markus := h.inspector(t, "markus")
	first := h.inspect(t, tmpl, laura)
	h.inspect(t, tmpl, markus)
	_, err := h.inspections.UpdateStatus(ctx, first.ID, "IN_PROGRESS")
	require.NoError(t, err)

	status := domain.StatusInProgress
	running, err := h.inspections.ListInspections(ctx, domain.InspectionFilter{Status: &status})
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, first.ID, running[0].ID)

	mine, err := h.inspections.ListForPerson(ctx, markus.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, markus.ID, mine[0].AssignedPersonID)

	other, err := h.inspections.ListInspections(ctx, domain.InspectionFilter{PlantName: "Plant Z"})
	require.NoError(t, err)
	assert.Empty(t, other)
}
