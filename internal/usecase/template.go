package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"plant_inspection/internal/domain"
	"plant_inspection/internal/metrics"

	"github.com/google/uuid"
)

type TemplateUseCase struct {
	store   domain.Store
	logger  *slog.Logger
	metrics *metrics.Recorder
	now     func() time.Time
}

func NewTemplateUseCase(store domain.Store, logger *slog.Logger, rec *metrics.Recorder) *TemplateUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &TemplateUseCase{store: store, logger: logger, metrics: rec, now: time.Now}
}

type StepInput struct {
	ID          uuid.UUID `json:"id"`
	Description string    `json:"description"`
	Requirement string    `json:"requirement"`
	OrderIndex  int       `json:"orderIndex"`
}

type TemplateInput struct {
	Name            string      `json:"name"`
	PlantName       string      `json:"plantName"`
	Recommendations string      `json:"recommendations"`
	Steps           []StepInput `json:"steps"`
}

func (in TemplateInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return domain.InvalidArgumentf("checklist name must not be empty")
	}
	for i, st := range in.Steps {
		if strings.TrimSpace(st.Description) == "" {
			return domain.InvalidArgumentf("step %d: description must not be empty", i+1)
		}
	}
	return nil
}

func (in TemplateInput) stepDefinitions() []domain.StepDefinition {
	steps := make([]domain.StepDefinition, 0, len(in.Steps))
	for _, st := range in.Steps {
		steps = append(steps, domain.StepDefinition{
			ID:          st.ID,
			Description: strings.TrimSpace(st.Description),
			Requirement: st.Requirement,
			OrderIndex:  st.OrderIndex,
		})
	}
	return steps
}

func (u *TemplateUseCase) CreateTemplate(ctx context.Context, in TemplateInput) (*domain.ChecklistTemplate, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := u.now()
	template := &domain.ChecklistTemplate{
		ID:              uuid.New(),
		Name:            strings.TrimSpace(in.Name),
		PlantName:       in.PlantName,
		Recommendations: in.Recommendations,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	// ids supplied by the caller are ignored for a new checklist
	template.Steps = in.stepDefinitions()
	for i := range template.Steps {
		template.Steps[i].ID = uuid.Nil
	}

	err := u.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.Templates().Save(ctx, template)
	})
	if err != nil {
		return nil, err
	}
	u.logger.Info("checklist created", "checklist_id", template.ID, "name", template.Name, "steps", len(template.Steps))
	return template, nil
}

// UpdateTemplate replaces the checklist fields and its whole step collection.
// Existing inspections keep the steps they were created with.
func (u *TemplateUseCase) UpdateTemplate(ctx context.Context, id uuid.UUID, in TemplateInput) (*domain.ChecklistTemplate, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var template *domain.ChecklistTemplate
	err := u.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		template, err = tx.Templates().FindByID(ctx, id)
		if err != nil {
			return err
		}
		template.Name = strings.TrimSpace(in.Name)
		template.PlantName = in.PlantName
		template.Recommendations = in.Recommendations
		template.Steps = in.stepDefinitions()
		template.UpdatedAt = u.now()
		return tx.Templates().Save(ctx, template)
	})
	if err != nil {
		return nil, err
	}
	u.logger.Info("checklist updated", "checklist_id", id, "steps", len(template.Steps))
	return template, nil
}

func (u *TemplateUseCase) GetTemplate(ctx context.Context, id uuid.UUID) (*domain.ChecklistTemplate, error) {
	var template *domain.ChecklistTemplate
	err := u.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		template, err = tx.Templates().FindByID(ctx, id)
		return err
	})
	return template, err
}

func (u *TemplateUseCase) ListTemplates(ctx context.Context, filter domain.TemplateFilter) ([]domain.ChecklistTemplate, error) {
	var templates []domain.ChecklistTemplate
	err := u.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		templates, err = tx.Templates().List(ctx, filter)
		return err
	})
	return templates, err
}

// DeleteTemplate removes a checklist and its step definitions unless
// inspections still reference it, in which case an *domain.InUseError
// carrying the count is returned.
func (u *TemplateUseCase) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	err := u.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		exists, err := tx.Templates().ExistsByID(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return domain.NotFoundf("checklist with id %s not found", id)
		}
		count, err := tx.Templates().CountInspectionsReferencing(ctx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return &domain.InUseError{Resource: "checklist", ID: id, Count: count}
		}
		return tx.Templates().DeleteByID(ctx, id)
	})

	var inUse *domain.InUseError
	if errors.As(err, &inUse) {
		u.metrics.DeleteBlocked(inUse.Resource)
		u.logger.Warn("checklist delete blocked", "checklist_id", id, "inspections", inUse.Count)
		return err
	}
	if err != nil {
		return err
	}
	u.logger.Info("checklist deleted", "checklist_id", id)
	return nil
}

func (u *TemplateUseCase) ListSteps(ctx context.Context, templateID uuid.UUID) ([]domain.StepDefinition, error) {
	template, err := u.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	return template.Steps, nil
}

func (u *TemplateUseCase) AddStep(ctx context.Context, templateID uuid.UUID, in StepInput) (*domain.StepDefinition, error) {
	if strings.TrimSpace(in.Description) == "" {
		return nil, domain.InvalidArgumentf("step description must not be empty")
	}
	var added domain.StepDefinition
	err := u.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		template, err := tx.Templates().FindByID(ctx, templateID)
		if err != nil {
			return err
		}
		template.Steps = append(template.Steps, domain.StepDefinition{
			Description: strings.TrimSpace(in.Description),
			Requirement: in.Requirement,
			OrderIndex:  in.OrderIndex,
		})
		template.UpdatedAt = u.now()
		before := make(map[uuid.UUID]bool, len(template.Steps))
		for _, st := range template.Steps {
			before[st.ID] = true
		}
		if err := tx.Templates().Save(ctx, template); err != nil {
			return err
		}
		for _, st := range template.Steps {
			if !before[st.ID] {
				added = st
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.logger.Info("checklist step added", "checklist_id", templateID, "step_id", added.ID)
	return &added, nil
}

func (u *TemplateUseCase) UpdateStep(ctx context.Context, stepID uuid.UUID, in StepInput) (*domain.StepDefinition, error) {
	if strings.TrimSpace(in.Description) == "" {
		return nil, domain.InvalidArgumentf("step description must not be empty")
	}
	var updated domain.StepDefinition
	err := u.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		step, err := tx.Templates().FindStepByID(ctx, stepID)
		if err != nil {
			return err
		}
		template, err := tx.Templates().FindByID(ctx, step.TemplateID)
		if err != nil {
			return err
		}
		for i := range template.Steps {
			if template.Steps[i].ID == stepID {
				template.Steps[i].Description = strings.TrimSpace(in.Description)
				template.Steps[i].Requirement = in.Requirement
				template.Steps[i].OrderIndex = in.OrderIndex
			}
		}
		template.UpdatedAt = u.now()
		if err := tx.Templates().Save(ctx, template); err != nil {
			return err
		}
		for _, st := range template.Steps {
			if st.ID == stepID {
				updated = st
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// RemoveStep drops a step from its checklist. Inspections created earlier
// keep their result for it.
func (u *TemplateUseCase) RemoveStep(ctx context.Context, stepID uuid.UUID) error {
	err := u.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		step, err := tx.Templates().FindStepByID(ctx, stepID)
		if err != nil {
			return err
		}
		template, err := tx.Templates().FindByID(ctx, step.TemplateID)
		if err != nil {
			return err
		}
		kept := template.Steps[:0]
		for _, st := range template.Steps {
			if st.ID != stepID {
				kept = append(kept, st)
			}
		}
		template.Steps = kept
		template.UpdatedAt = u.now()
		return tx.Templates().Save(ctx, template)
	})
	if err != nil {
		return err
	}
	u.logger.Info("checklist step removed", "step_id", stepID)
	return nil
}
