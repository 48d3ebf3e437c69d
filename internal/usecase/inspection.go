package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"plant_inspection/internal/domain"
	"plant_inspection/internal/metrics"

	"github.com/google/uuid"
)

type InspectionUseCase struct {
	store   domain.Store
	storage domain.FileStorage
	logger  *slog.Logger
	metrics *metrics.Recorder
	now     func() time.Time
}

func NewInspectionUseCase(store domain.Store, storage domain.FileStorage, logger *slog.Logger, rec *metrics.Recorder) *InspectionUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &InspectionUseCase{store: store, storage: storage, logger: logger, metrics: rec, now: time.Now}
}

type CreateInspectionInput struct {
	TemplateID          uuid.UUID `json:"checklistId"`
	Title               string    `json:"title"`
	PlantName           string    `json:"plantName"`
	PlannedDate         time.Time `json:"plannedDate"`
	GeneralComment      string    `json:"generalComment"`
	ResponsiblePersonID uuid.UUID `json:"assignedInspectorId"`
}

// CreateFromTemplate snapshots the checklist's current steps into a new
// PLANNED inspection. The inspection and all of its step results are
// written in one transaction.
func (u *InspectionUseCase) CreateFromTemplate(ctx context.Context, in CreateInspectionInput) (*domain.Inspection, error) {
	if in.PlannedDate.IsZero() {
		return nil, domain.InvalidArgumentf("planned date is required")
	}

	var inspection *domain.Inspection
	err := u.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		template, err := tx.Templates().FindByID(ctx, in.TemplateID)
		if err != nil {
			return err
		}
		person, err := tx.Persons().FindByID(ctx, in.ResponsiblePersonID)
		if err != nil {
			return err
		}

		now := u.now()
		inspection = &domain.Inspection{
			ID:               uuid.New(),
			TemplateID:       template.ID,
			AssignedPersonID: person.ID,
			Title:            firstNonEmpty(in.Title, template.Name),
			PlantName:        firstNonEmpty(in.PlantName, template.PlantName),
			Status:           domain.StatusPlanned,
			PlannedDate:      in.PlannedDate,
			GeneralComment:   in.GeneralComment,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		inspection.Steps = make([]domain.StepResult, 0, len(template.Steps))
		for _, st := range template.Steps {
			inspection.Steps = append(inspection.Steps, domain.StepResult{
				ID:               uuid.New(),
				InspectionID:     inspection.ID,
				StepDefinitionID: st.ID,
				Description:      st.Description,
				Requirement:      st.Requirement,
				OrderIndex:       st.OrderIndex,
				Position:         st.Position,
				Status:           domain.StepNotApplicable,
				UpdatedAt:        now,
			})
		}
		return tx.Inspections().Create(ctx, inspection)
	})
	if err != nil {
		return nil, err
	}

	u.metrics.InspectionCreated()
	u.logger.Info("inspection created",
		"inspection_id", inspection.ID,
		"checklist_id", inspection.TemplateID,
		"assigned_to", inspection.AssignedPersonID,
		"steps", len(inspection.Steps))
	return inspection, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func (u *InspectionUseCase) GetInspection(ctx context.Context, id uuid.UUID) (*domain.Inspection, error) {
	var inspection *domain.Inspection
	err := u.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		inspection, err = tx.Inspections().FindByID(ctx, id)
		return err
	})
	return inspection, err
}

// ListInspections returns inspection headers without their step results.
func (u *InspectionUseCase) ListInspections(ctx context.Context, filter domain.InspectionFilter) ([]domain.Inspection, error) {
	var inspections []domain.Inspection
	err := u.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		inspections, err = tx.Inspections().List(ctx, filter)
		return err
	})
	return inspections, err
}

func (u *InspectionUseCase) ListForPerson(ctx context.Context, personID uuid.UUID) ([]domain.Inspection, error) {
	var inspections []domain.Inspection
	err := u.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		if _, err := tx.Persons().FindByID(ctx, personID); err != nil {
			return err
		}
		var err error
		inspections, err = tx.Inspections().FindByAssignedPerson(ctx, personID)
		return err
	})
	return inspections, err
}

// UpdateStatus parses raw against the closed status set and stores it. Any
// status may follow any other.
func (u *InspectionUseCase) UpdateStatus(ctx context.Context, id uuid.UUID, raw string) (*domain.Inspection, error) {
	status, err := domain.ParseInspectionStatus(raw)
	if err != nil {
		return nil, err
	}

	var inspection *domain.Inspection
	var previous domain.InspectionStatus
	err = u.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		inspection, err = tx.Inspections().FindByID(ctx, id)
		if err != nil {
			return err
		}
		previous = inspection.Status
		inspection.ApplyStatus(status, u.now())
		return tx.Inspections().Update(ctx, inspection)
	})
	if err != nil {
		return nil, err
	}

	u.metrics.StatusChanged(string(status))
	u.logger.Info("inspection status changed", "inspection_id", id, "from", previous, "to", status)
	return inspection, nil
}

type UpdateInspectionInput struct {
	Title          string    `json:"title"`
	PlantName      string    `json:"plantName"`
	PlannedDate    time.Time `json:"plannedDate"`
	GeneralComment string    `json:"generalComment"`
}

// UpdateInspection edits the header fields. Empty title or plant name keep
// their current value.
func (u *InspectionUseCase) UpdateInspection(ctx context.Context, id uuid.UUID, in UpdateInspectionInput) (*domain.Inspection, error) {
	var inspection *domain.Inspection
	err := u.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		inspection, err = tx.Inspections().FindByID(ctx, id)
		if err != nil {
			return err
		}
		inspection.Title = firstNonEmpty(in.Title, inspection.Title)
		inspection.PlantName = firstNonEmpty(in.PlantName, inspection.PlantName)
		if !in.PlannedDate.IsZero() {
			inspection.PlannedDate = in.PlannedDate
		}
		inspection.GeneralComment = in.GeneralComment
		inspection.UpdatedAt = u.now()
		return tx.Inspections().Update(ctx, inspection)
	})
	if err != nil {
		return nil, err
	}
	return inspection, nil
}

func (u *InspectionUseCase) DeleteInspection(ctx context.Context, id uuid.UUID) error {
	var results []domain.StepResult
	err := u.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		if results, err = tx.StepResults().FindByInspection(ctx, id); err != nil {
			return err
		}
		return tx.Inspections().DeleteByID(ctx, id)
	})
	if err != nil {
		return err
	}
	removed := u.removePhotos(ctx, results)
	u.logger.Info("inspection deleted", "inspection_id", id, "photos_removed", removed)
	return nil
}

// removePhotos deletes the stored photos of already deleted step results.
// Failures are logged; the rows are gone either way.
func (u *InspectionUseCase) removePhotos(ctx context.Context, results []domain.StepResult) int {
	if u.storage == nil {
		return 0
	}
	removed := 0
	for _, r := range results {
		if r.PhotoRef == "" || !ownsPhoto(r.ID, r.PhotoRef) {
			continue
		}
		if err := u.storage.Delete(ctx, r.PhotoRef); err != nil {
			u.logger.Warn("failed to remove photo of deleted inspection", "ref", r.PhotoRef, "error", err)
			continue
		}
		removed++
	}
	return removed
}
