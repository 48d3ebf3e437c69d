package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"plant_inspection/internal/domain"

	"github.com/google/uuid"
)

type memoryState struct {
	templates   map[uuid.UUID]templateRow
	steps       map[uuid.UUID]stepRow
	persons     map[uuid.UUID]personRow
	inspections map[uuid.UUID]inspectionRow
	results     map[uuid.UUID]resultRow
	seq         int
}

func newMemoryState() memoryState {
	return memoryState{
		templates:   make(map[uuid.UUID]templateRow),
		steps:       make(map[uuid.UUID]stepRow),
		persons:     make(map[uuid.UUID]personRow),
		inspections: make(map[uuid.UUID]inspectionRow),
		results:     make(map[uuid.UUID]resultRow),
	}
}

// clone copies every map; rows are plain values apart from the inspection
// timestamps, which are copied explicitly.
func (s memoryState) clone() memoryState {
	cp := newMemoryState()
	cp.seq = s.seq
	for k, v := range s.templates {
		cp.templates[k] = v
	}
	for k, v := range s.steps {
		cp.steps[k] = v
	}
	for k, v := range s.persons {
		cp.persons[k] = v
	}
	for k, v := range s.inspections {
		v.StartedAt = copyTime(v.StartedAt)
		v.FinishedAt = copyTime(v.FinishedAt)
		cp.inspections[k] = v
	}
	for k, v := range s.results {
		cp.results[k] = v
	}
	return cp
}

func (s *memoryState) nextPosition() int {
	s.seq++
	return s.seq
}

// MemoryStore keeps all records in process memory. Transactions run one at a
// time against a private copy of the state that replaces the live state on
// success.
type MemoryStore struct {
	mu    sync.Mutex
	state memoryState
	// beforeCommit, when set, must accept the new state or the transaction
	// is discarded.
	beforeCommit func(memoryState) error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, &memoryTx{state: &work}); err != nil {
		return err
	}
	if s.beforeCommit != nil {
		if err := s.beforeCommit(work); err != nil {
			return domain.StorageError(err)
		}
	}
	s.state = work
	return nil
}

func (s *MemoryStore) Close() error { return nil }

type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) Templates() domain.TemplateRepository     { return memTemplates{t.state} }
func (t *memoryTx) Persons() domain.PersonRepository         { return memPersons{t.state} }
func (t *memoryTx) Inspections() domain.InspectionRepository { return memInspections{t.state} }
func (t *memoryTx) StepResults() domain.StepResultRepository { return memResults{t.state} }

type memTemplates struct{ s *memoryState }

func (r memTemplates) List(_ context.Context, filter domain.TemplateFilter) ([]domain.ChecklistTemplate, error) {
	needle := strings.ToLower(filter.NameContains)
	out := []domain.ChecklistTemplate{}
	for _, row := range r.s.templates {
		if filter.PlantName != "" && row.PlantName != filter.PlantName {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(row.Name), needle) {
			continue
		}
		t := row.toDomain()
		t.Steps = r.activeSteps(row.ID)
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r memTemplates) activeSteps(templateID uuid.UUID) []domain.StepDefinition {
	steps := []domain.StepDefinition{}
	for _, st := range r.s.steps {
		if st.TemplateID == templateID && !st.Retired {
			steps = append(steps, st.toDomain())
		}
	}
	domain.SortSteps(steps)
	return steps
}

func (r memTemplates) FindByID(_ context.Context, id uuid.UUID) (*domain.ChecklistTemplate, error) {
	row, ok := r.s.templates[id]
	if !ok {
		return nil, domain.NotFoundf("checklist with id %s not found", id)
	}
	t := row.toDomain()
	t.Steps = r.activeSteps(id)
	return &t, nil
}

func (r memTemplates) ExistsByID(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := r.s.templates[id]
	return ok, nil
}

func (r memTemplates) Save(_ context.Context, t *domain.ChecklistTemplate) error {
	r.s.templates[t.ID] = templateRowFrom(t)

	existing := make(map[uuid.UUID]stepRow)
	for id, st := range r.s.steps {
		if st.TemplateID == t.ID && !st.Retired {
			existing[id] = st
		}
	}

	for i := range t.Steps {
		step := &t.Steps[i]
		step.TemplateID = t.ID
		if old, ok := existing[step.ID]; ok && step.ID != uuid.Nil {
			step.Position = old.Position
			delete(existing, step.ID)
		} else {
			step.ID = uuid.New()
			step.Position = r.s.nextPosition()
		}
		step.Retired = false
		r.s.steps[step.ID] = stepRow{
			ID:          step.ID,
			TemplateID:  t.ID,
			Description: step.Description,
			Requirement: step.Requirement,
			OrderIndex:  step.OrderIndex,
			Position:    step.Position,
		}
	}

	for id, st := range existing {
		if r.stepReferenced(id) {
			st.Retired = true
			r.s.steps[id] = st
			continue
		}
		delete(r.s.steps, id)
	}
	domain.SortSteps(t.Steps)
	return nil
}

func (r memTemplates) stepReferenced(stepID uuid.UUID) bool {
	for _, res := range r.s.results {
		if res.StepDefinitionID == stepID {
			return true
		}
	}
	return false
}

func (r memTemplates) DeleteByID(_ context.Context, id uuid.UUID) error {
	if _, ok := r.s.templates[id]; !ok {
		return domain.NotFoundf("checklist with id %s not found", id)
	}
	for stepID, st := range r.s.steps {
		if st.TemplateID == id {
			delete(r.s.steps, stepID)
		}
	}
	delete(r.s.templates, id)
	return nil
}

func (r memTemplates) CountInspectionsReferencing(_ context.Context, id uuid.UUID) (int, error) {
	n := 0
	for _, in := range r.s.inspections {
		if in.TemplateID == id {
			n++
		}
	}
	return n, nil
}

func (r memTemplates) FindStepByID(_ context.Context, stepID uuid.UUID) (*domain.StepDefinition, error) {
	row, ok := r.s.steps[stepID]
	if !ok || row.Retired {
		return nil, domain.NotFoundf("checklist step with id %s not found", stepID)
	}
	st := row.toDomain()
	return &st, nil
}

type memPersons struct{ s *memoryState }

func (r memPersons) List(_ context.Context) ([]domain.Person, error) {
	out := make([]domain.Person, 0, len(r.s.persons))
	for _, row := range r.s.persons {
		out = append(out, row.toDomain())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LoginName < out[j].LoginName })
	return out, nil
}

func (r memPersons) FindByID(_ context.Context, id uuid.UUID) (*domain.Person, error) {
	row, ok := r.s.persons[id]
	if !ok {
		return nil, domain.NotFoundf("user with id %s not found", id)
	}
	p := row.toDomain()
	return &p, nil
}

func (r memPersons) FindByLoginName(_ context.Context, name string) (*domain.Person, error) {
	for _, row := range r.s.persons {
		if row.LoginName == name {
			p := row.toDomain()
			return &p, nil
		}
	}
	return nil, domain.NotFoundf("user with username %s not found", name)
}

func (r memPersons) Save(_ context.Context, p *domain.Person) error {
	for _, row := range r.s.persons {
		if row.LoginName == p.LoginName && row.ID != p.ID {
			return domain.Conflictf("username '%s' is already taken", p.LoginName)
		}
	}
	r.s.persons[p.ID] = personRowFrom(p)
	return nil
}

func (r memPersons) DeleteByID(_ context.Context, id uuid.UUID) error {
	if _, ok := r.s.persons[id]; !ok {
		return domain.NotFoundf("user with id %s not found", id)
	}
	delete(r.s.persons, id)
	return nil
}

type memInspections struct{ s *memoryState }

func (r memInspections) List(_ context.Context, filter domain.InspectionFilter) ([]domain.Inspection, error) {
	out := []domain.Inspection{}
	for _, row := range r.s.inspections {
		in := row.toDomain()
		if filter.Matches(in) {
			out = append(out, in)
		}
	}
	sortInspections(out)
	return out, nil
}

// sortInspections orders newest planned date first.
func sortInspections(out []domain.Inspection) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PlannedDate.Equal(out[j].PlannedDate) {
			return out[i].PlannedDate.After(out[j].PlannedDate)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
}

func (r memInspections) FindByID(_ context.Context, id uuid.UUID) (*domain.Inspection, error) {
	row, ok := r.s.inspections[id]
	if !ok {
		return nil, domain.NotFoundf("inspection with id %s not found", id)
	}
	in := row.toDomain()
	in.Steps = memResults(r).byInspection(id, nil)
	return &in, nil
}

func (r memInspections) ExistsByID(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := r.s.inspections[id]
	return ok, nil
}

func (r memInspections) Create(_ context.Context, in *domain.Inspection) error {
	if _, ok := r.s.inspections[in.ID]; ok {
		return domain.Conflictf("inspection %s already exists", in.ID)
	}
	if _, ok := r.s.templates[in.TemplateID]; !ok {
		return domain.NotFoundf("checklist with id %s not found", in.TemplateID)
	}
	if _, ok := r.s.persons[in.AssignedPersonID]; !ok {
		return domain.NotFoundf("user with id %s not found", in.AssignedPersonID)
	}
	r.s.inspections[in.ID] = inspectionRowFrom(in)
	for i := range in.Steps {
		res := &in.Steps[i]
		if res.ID == uuid.Nil {
			res.ID = uuid.New()
		}
		res.InspectionID = in.ID
		if _, ok := r.s.steps[res.StepDefinitionID]; !ok {
			return domain.NotFoundf("checklist step with id %s not found", res.StepDefinitionID)
		}
		r.s.results[res.ID] = resultRowFrom(res)
	}
	return nil
}

func (r memInspections) Update(_ context.Context, in *domain.Inspection) error {
	if _, ok := r.s.inspections[in.ID]; !ok {
		return domain.NotFoundf("inspection with id %s not found", in.ID)
	}
	r.s.inspections[in.ID] = inspectionRowFrom(in)
	return nil
}

func (r memInspections) DeleteByID(_ context.Context, id uuid.UUID) error {
	if _, ok := r.s.inspections[id]; !ok {
		return domain.NotFoundf("inspection with id %s not found", id)
	}
	for resID, res := range r.s.results {
		if res.InspectionID == id {
			delete(r.s.results, resID)
		}
	}
	delete(r.s.inspections, id)
	return nil
}

func (r memInspections) FindByAssignedPerson(ctx context.Context, personID uuid.UUID) ([]domain.Inspection, error) {
	return r.List(ctx, domain.InspectionFilter{AssignedPersonID: &personID})
}

type memResults struct{ s *memoryState }

func (r memResults) byInspection(inspectionID uuid.UUID, status *domain.StepStatus) []domain.StepResult {
	out := []domain.StepResult{}
	for _, row := range r.s.results {
		if row.InspectionID != inspectionID {
			continue
		}
		if status != nil && row.Status != *status {
			continue
		}
		out = append(out, row.toDomain())
	}
	domain.SortResults(out)
	return out
}

func (r memResults) FindByID(_ context.Context, id uuid.UUID) (*domain.StepResult, error) {
	row, ok := r.s.results[id]
	if !ok {
		return nil, domain.NotFoundf("inspection step with id %s not found", id)
	}
	res := row.toDomain()
	return &res, nil
}

func (r memResults) FindByInspection(_ context.Context, inspectionID uuid.UUID) ([]domain.StepResult, error) {
	return r.byInspection(inspectionID, nil), nil
}

func (r memResults) FindByInspectionAndStatus(_ context.Context, inspectionID uuid.UUID, status domain.StepStatus) ([]domain.StepResult, error) {
	return r.byInspection(inspectionID, &status), nil
}

func (r memResults) Save(_ context.Context, res *domain.StepResult) error {
	row, ok := r.s.results[res.ID]
	if !ok {
		return domain.NotFoundf("inspection step with id %s not found", res.ID)
	}
	row.Status = res.Status
	row.Comment = res.Comment
	row.PhotoRef = res.PhotoRef
	row.UpdatedAt = res.UpdatedAt
	r.s.results[res.ID] = row
	return nil
}
