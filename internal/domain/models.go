package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleInspector Role = "INSPECTOR"
	RoleAdmin     Role = "ADMIN"
)

var allRoles = []Role{RoleInspector, RoleAdmin}

// ParseRole accepts any casing and surrounding whitespace.
func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range allRoles {
		if r == known {
			return r, nil
		}
	}
	return "", InvalidArgumentf("invalid role: %s. Allowed values: %v", raw, allRoles)
}

type InspectionStatus string

const (
	StatusPlanned    InspectionStatus = "PLANNED"
	StatusInProgress InspectionStatus = "IN_PROGRESS"
	StatusCompleted  InspectionStatus = "COMPLETED"
)

// InspectionStatuses lists the legal inspection states in lifecycle order.
var InspectionStatuses = []InspectionStatus{StatusPlanned, StatusInProgress, StatusCompleted}

func ParseInspectionStatus(raw string) (InspectionStatus, error) {
	s := InspectionStatus(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range InspectionStatuses {
		if s == known {
			return s, nil
		}
	}
	return "", InvalidArgumentf("invalid status: %s. Allowed values: %v", raw, InspectionStatuses)
}

type StepStatus string

const (
	StepPassed        StepStatus = "PASSED"
	StepFailed        StepStatus = "FAILED"
	StepNotApplicable StepStatus = "NOT_APPLICABLE"
)

var StepStatuses = []StepStatus{StepPassed, StepFailed, StepNotApplicable}

func ParseStepStatus(raw string) (StepStatus, error) {
	s := StepStatus(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range StepStatuses {
		if s == known {
			return s, nil
		}
	}
	return "", InvalidArgumentf("invalid step status: %s. Allowed values: %v", raw, StepStatuses)
}

// ChecklistTemplate is a reusable checklist. Steps holds the active step
// definitions only, ordered by OrderIndex then Position.
type ChecklistTemplate struct {
	ID              uuid.UUID        `json:"id"`
	Name            string           `json:"name"`
	PlantName       string           `json:"plantName"`
	Recommendations string           `json:"recommendations"`
	Steps           []StepDefinition `json:"steps"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

type StepDefinition struct {
	ID          uuid.UUID `json:"id"`
	TemplateID  uuid.UUID `json:"templateId"`
	Description string    `json:"description"`
	Requirement string    `json:"requirement,omitempty"`
	OrderIndex  int       `json:"orderIndex"`
	// Position is the insertion sequence within the template and breaks
	// OrderIndex ties.
	Position int `json:"-"`
	// Retired definitions were removed from the template while step results
	// still pointed at them.
	Retired bool `json:"-"`
}

// SortSteps orders step definitions by OrderIndex, ties by insertion Position.
func SortSteps(steps []StepDefinition) {
	sort.SliceStable(steps, func(i, j int) bool {
		if steps[i].OrderIndex != steps[j].OrderIndex {
			return steps[i].OrderIndex < steps[j].OrderIndex
		}
		return steps[i].Position < steps[j].Position
	})
}

type Inspection struct {
	ID               uuid.UUID        `json:"id"`
	TemplateID       uuid.UUID        `json:"checklistId"`
	AssignedPersonID uuid.UUID        `json:"assignedInspectorId"`
	Title            string           `json:"title"`
	PlantName        string           `json:"plantName"`
	Status           InspectionStatus `json:"status"`
	PlannedDate      time.Time        `json:"plannedDate"`
	StartedAt        *time.Time       `json:"startedAt,omitempty"`
	FinishedAt       *time.Time       `json:"finishedAt,omitempty"`
	GeneralComment   string           `json:"generalComment,omitempty"`
	Steps            []StepResult     `json:"steps"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// ApplyStatus sets the status and stamps the lifecycle timestamps. Any state
// may follow any other; timestamps are only ever set once.
func (i *Inspection) ApplyStatus(status InspectionStatus, now time.Time) {
	i.Status = status
	switch status {
	case StatusInProgress:
		if i.StartedAt == nil {
			i.StartedAt = &now
		}
	case StatusCompleted:
		if i.StartedAt == nil {
			i.StartedAt = &now
		}
		if i.FinishedAt == nil {
			i.FinishedAt = &now
		}
	}
	i.UpdatedAt = now
}

// StepResult is the outcome of one step definition within one inspection.
// Description, Requirement and OrderIndex are copied from the definition when
// the inspection is created.
type StepResult struct {
	ID               uuid.UUID  `json:"id"`
	InspectionID     uuid.UUID  `json:"inspectionId"`
	StepDefinitionID uuid.UUID  `json:"checklistStepId"`
	Description      string     `json:"description"`
	Requirement      string     `json:"requirement,omitempty"`
	OrderIndex       int        `json:"orderIndex"`
	Position         int        `json:"-"`
	Status           StepStatus `json:"status"`
	Comment          string     `json:"comment,omitempty"`
	PhotoRef         string     `json:"photoPath,omitempty"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

type Person struct {
	ID           uuid.UUID `json:"id"`
	LoginName    string    `json:"username"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

type TemplateFilter struct {
	PlantName    string
	NameContains string
}

type InspectionFilter struct {
	Status           *InspectionStatus
	PlantName        string
	AssignedPersonID *uuid.UUID
	PlannedFrom      *time.Time
	PlannedTo        *time.Time
}

// Matches reports whether the inspection header satisfies the filter.
func (f InspectionFilter) Matches(i Inspection) bool {
	if f.Status != nil && i.Status != *f.Status {
		return false
	}
	if f.PlantName != "" && i.PlantName != f.PlantName {
		return false
	}
	if f.AssignedPersonID != nil && i.AssignedPersonID != *f.AssignedPersonID {
		return false
	}
	if f.PlannedFrom != nil && i.PlannedDate.Before(*f.PlannedFrom) {
		return false
	}
	if f.PlannedTo != nil && i.PlannedDate.After(*f.PlannedTo) {
		return false
	}
	return true
}

type StepSummary struct {
	Passed        int `json:"passed"`
	Failed        int `json:"failed"`
	NotApplicable int `json:"notApplicable"`
	Total         int `json:"total"`
}

func Summarize(steps []StepResult) StepSummary {
	var s StepSummary
	for _, st := range steps {
		switch st.Status {
		case StepPassed:
			s.Passed++
		case StepFailed:
			s.Failed++
		case StepNotApplicable:
			s.NotApplicable++
		}
	}
	s.Total = len(steps)
	return s
}

// InspectionDetail is the report view of an inspection. PhotoURLs is keyed by
// step result id.
type InspectionDetail struct {
	Inspection   Inspection        `json:"inspection"`
	TemplateName string            `json:"checklistName"`
	AssignedTo   *Person           `json:"assignedInspector,omitempty"`
	PhotoURLs    map[string]string `json:"photoUrls,omitempty"`
	Summary      StepSummary       `json:"summary"`
}

func (s StepStatus) Label() string {
	switch s {
	case StepPassed:
		return "Passed"
	case StepFailed:
		return "Failed"
	case StepNotApplicable:
		return "N/A"
	default:
		return string(s)
	}
}

// SortResults orders step results the same way their definitions were ordered
// when the inspection was created.
func SortResults(results []StepResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].OrderIndex != results[j].OrderIndex {
			return results[i].OrderIndex < results[j].OrderIndex
		}
		return results[i].Position < results[j].Position
	})
}
