package repository

import (
	"time"

	"plant_inspection/internal/domain"

	"github.com/google/uuid"
)

// Row types are the stored shape of each record. Children carry the id of
// their owner only; parents are reassembled on read.

type templateRow struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	PlantName       string    `json:"plant_name"`
	Recommendations string    `json:"recommendations"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type stepRow struct {
	ID          uuid.UUID `json:"id"`
	TemplateID  uuid.UUID `json:"template_id"`
	Description string    `json:"description"`
	Requirement string    `json:"requirement"`
	OrderIndex  int       `json:"order_index"`
	Position    int       `json:"position"`
	Retired     bool      `json:"retired"`
}

type personRow struct {
	ID           uuid.UUID   `json:"id"`
	LoginName    string      `json:"login_name"`
	DisplayName  string      `json:"display_name"`
	PasswordHash string      `json:"password_hash"`
	Role         domain.Role `json:"role"`
	CreatedAt    time.Time   `json:"created_at"`
}

type inspectionRow struct {
	ID               uuid.UUID               `json:"id"`
	TemplateID       uuid.UUID               `json:"template_id"`
	AssignedPersonID uuid.UUID               `json:"assigned_person_id"`
	Title            string                  `json:"title"`
	PlantName        string                  `json:"plant_name"`
	Status           domain.InspectionStatus `json:"status"`
	PlannedDate      time.Time               `json:"planned_date"`
	StartedAt        *time.Time              `json:"started_at,omitempty"`
	FinishedAt       *time.Time              `json:"finished_at,omitempty"`
	GeneralComment   string                  `json:"general_comment"`
	CreatedAt        time.Time               `json:"created_at"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

type resultRow struct {
	ID               uuid.UUID         `json:"id"`
	InspectionID     uuid.UUID         `json:"inspection_id"`
	StepDefinitionID uuid.UUID         `json:"step_definition_id"`
	Description      string            `json:"description"`
	Requirement      string            `json:"requirement"`
	OrderIndex       int               `json:"order_index"`
	Position         int               `json:"position"`
	Status           domain.StepStatus `json:"status"`
	Comment          string            `json:"comment"`
	PhotoRef         string            `json:"photo_ref"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

func (r templateRow) toDomain() domain.ChecklistTemplate {
	return domain.ChecklistTemplate{
		ID:              r.ID,
		Name:            r.Name,
		PlantName:       r.PlantName,
		Recommendations: r.Recommendations,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func templateRowFrom(t *domain.ChecklistTemplate) templateRow {
	return templateRow{
		ID:              t.ID,
		Name:            t.Name,
		PlantName:       t.PlantName,
		Recommendations: t.Recommendations,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func (r stepRow) toDomain() domain.StepDefinition {
	return domain.StepDefinition{
		ID:          r.ID,
		TemplateID:  r.TemplateID,
		Description: r.Description,
		Requirement: r.Requirement,
		OrderIndex:  r.OrderIndex,
		Position:    r.Position,
		Retired:     r.Retired,
	}
}

func (r personRow) toDomain() domain.Person {
	return domain.Person{
		ID:           r.ID,
		LoginName:    r.LoginName,
		DisplayName:  r.DisplayName,
		PasswordHash: r.PasswordHash,
		Role:         r.Role,
		CreatedAt:    r.CreatedAt,
	}
}

func personRowFrom(p *domain.Person) personRow {
	return personRow{
		ID:           p.ID,
		LoginName:    p.LoginName,
		DisplayName:  p.DisplayName,
		PasswordHash: p.PasswordHash,
		Role:         p.Role,
		CreatedAt:    p.CreatedAt,
	}
}

func (r inspectionRow) toDomain() domain.Inspection {
	return domain.Inspection{
		ID:               r.ID,
		TemplateID:       r.TemplateID,
		AssignedPersonID: r.AssignedPersonID,
		Title:            r.Title,
		PlantName:        r.PlantName,
		Status:           r.Status,
		PlannedDate:      r.PlannedDate,
		StartedAt:        copyTime(r.StartedAt),
		FinishedAt:       copyTime(r.FinishedAt),
		GeneralComment:   r.GeneralComment,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func inspectionRowFrom(i *domain.Inspection) inspectionRow {
	return inspectionRow{
		ID:               i.ID,
		TemplateID:       i.TemplateID,
		AssignedPersonID: i.AssignedPersonID,
		Title:            i.Title,
		PlantName:        i.PlantName,
		Status:           i.Status,
		PlannedDate:      i.PlannedDate,
		StartedAt:        copyTime(i.StartedAt),
		FinishedAt:       copyTime(i.FinishedAt),
		GeneralComment:   i.GeneralComment,
		CreatedAt:        i.CreatedAt,
		UpdatedAt:        i.UpdatedAt,
	}
}

func (r resultRow) toDomain() domain.StepResult {
	return domain.StepResult{
		ID:               r.ID,
		InspectionID:     r.InspectionID,
		StepDefinitionID: r.StepDefinitionID,
		Description:      r.Description,
		Requirement:      r.Requirement,
		OrderIndex:       r.OrderIndex,
		Position:         r.Position,
		Status:           r.Status,
		Comment:          r.Comment,
		PhotoRef:         r.PhotoRef,
		UpdatedAt:        r.UpdatedAt,
	}
}

func resultRowFrom(r *domain.StepResult) resultRow {
	return resultRow{
		ID:               r.ID,
		InspectionID:     r.InspectionID,
		StepDefinitionID: r.StepDefinitionID,
		Description:      r.Description,
		Requirement:      r.Requirement,
		OrderIndex:       r.OrderIndex,
		Position:         r.Position,
		Status:           r.Status,
		Comment:          r.Comment,
		PhotoRef:         r.PhotoRef,
		UpdatedAt:        r.UpdatedAt,
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
