package usecase

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"plant_inspection/internal/domain"
	"plant_inspection/internal/infrastructure"
	"plant_inspection/internal/metrics"
	"plant_inspection/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var fixedNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

type harness struct {
	store       *repository.MemoryStore
	photos      *infrastructure.MemoryStorage
	metrics     *metrics.Recorder
	templates   *TemplateUseCase
	inspections *InspectionUseCase
	steps       *StepResultUseCase
	persons     *PersonUseCase
	analytics   *AnalyticsUseCase
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec, err := metrics.NewRecorder()
	require.NoError(t, err)

	h := &harness{
		store:   repository.NewMemoryStore(),
		photos:  infrastructure.NewMemoryStorage(),
		metrics: rec,
	}
	clock := func() time.Time { return fixedNow }

	h.templates = NewTemplateUseCase(h.store, logger, rec)
	h.templates.now = clock
	h.inspections = NewInspectionUseCase(h.store, h.photos, logger, rec)
	h.inspections.now = clock
	h.steps = NewStepResultUseCase(h.store, h.photos, nil, logger, rec)
	h.steps.now = clock
	h.persons = NewPersonUseCase(h.store, logger, rec)
	h.persons.now = clock
	h.persons.cost = bcrypt.MinCost
	h.analytics = NewAnalyticsUseCase(h.store, h.photos, logger, time.UTC)
	return h
}

func (h *harness) pumpCheck(t *testing.T) *domain.ChecklistTemplate {
	t.Helper()
	tmpl, err := h.templates.CreateTemplate(context.Background(), TemplateInput{
		Name:            "Pump Check",
		PlantName:       "Plant A",
		Recommendations: "Wear ear protection",
		Steps: []StepInput{
			{Description: "Check seals", OrderIndex: 1},
			{Description: "Check pressure", Requirement: "6 bar", OrderIndex: 2},
			{Description: "Check noise", OrderIndex: 3},
		},
	})
	require.NoError(t, err)
	return tmpl
}

func (h *harness) inspector(t *testing.T, login string) *domain.Person {
	t.Helper()
	p, err := h.persons.CreatePerson(context.Background(), CreatePersonInput{
		LoginName:   login,
		DisplayName: "Laura Schmidt",
		Password:    "inspector123",
		Role:        "inspector",
	})
	require.NoError(t, err)
	return p
}

func (h *harness) inspect(t *testing.T, tmpl *domain.ChecklistTemplate, person *domain.Person) *domain.Inspection {
	t.Helper()
	in, err := h.inspections.CreateFromTemplate(context.Background(), CreateInspectionInput{
		TemplateID:          tmpl.ID,
		PlannedDate:         fixedNow.Add(48 * time.Hour),
		ResponsiblePersonID: person.ID,
	})
	require.NoError(t, err)
	return in
}

func (h *harness) countInspections(t *testing.T) int {
	t.Helper()
	all, err := h.inspections.ListInspections(context.Background(), domain.InspectionFilter{})
	require.NoError(t, err)
	return len(all)
}

func missingID() uuid.UUID { return uuid.New() }
