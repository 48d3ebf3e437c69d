package domain

import (
	"context"

	"github.com/google/uuid"
)

// Store runs fn inside one all-or-nothing transaction. Every change made
// through tx is committed when fn returns nil and discarded otherwise.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}

type Tx interface {
	Templates() TemplateRepository
	Persons() PersonRepository
	Inspections() InspectionRepository
	StepResults() StepResultRepository
}

// Repositories report a missing record with an error matching ErrNotFound.
type TemplateRepository interface {
	List(ctx context.Context, filter TemplateFilter) ([]ChecklistTemplate, error)
	FindByID(ctx context.Context, id uuid.UUID) (*ChecklistTemplate, error)
	ExistsByID(ctx context.Context, id uuid.UUID) (bool, error)
	// Save inserts or updates the template and reconciles its step
	// collection: definitions missing from t.Steps are deleted, or retired
	// when a step result still references them.
	Save(ctx context.Context, t *ChecklistTemplate) error
	// DeleteByID removes the template and all of its step definitions.
	DeleteByID(ctx context.Context, id uuid.UUID) error
	CountInspectionsReferencing(ctx context.Context, id uuid.UUID) (int, error)
	FindStepByID(ctx context.Context, stepID uuid.UUID) (*StepDefinition, error)
}

type PersonRepository interface {
	List(ctx context.Context) ([]Person, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Person, error)
	FindByLoginName(ctx context.Context, name string) (*Person, error)
	Save(ctx context.Context, p *Person) error
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

type InspectionRepository interface {
	List(ctx context.Context, filter InspectionFilter) ([]Inspection, error)
	// FindByID loads the inspection with its step results and locks it for
	// the rest of the transaction.
	FindByID(ctx context.Context, id uuid.UUID) (*Inspection, error)
	ExistsByID(ctx context.Context, id uuid.UUID) (bool, error)
	// Create persists a new inspection together with all of its step results.
	Create(ctx context.Context, i *Inspection) error
	// Update persists header fields only; step results are saved through
	// StepResultRepository.
	Update(ctx context.Context, i *Inspection) error
	DeleteByID(ctx context.Context, id uuid.UUID) error
	FindByAssignedPerson(ctx context.Context, personID uuid.UUID) ([]Inspection, error)
}

type StepResultRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*StepResult, error)
	FindByInspection(ctx context.Context, inspectionID uuid.UUID) ([]StepResult, error)
	FindByInspectionAndStatus(ctx context.Context, inspectionID uuid.UUID, status StepStatus) ([]StepResult, error)
	// Save updates status, comment and photo reference. The step definition
	// reference is never rewritten.
	Save(ctx context.Context, r *StepResult) error
}

// FileStorage stores photo content and hands back an opaque reference.
type FileStorage interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	GetURL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}
