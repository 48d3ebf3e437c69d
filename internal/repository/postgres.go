package repository

import (
	"context"
	"errors"
	"fmt"

	"plant_inspection/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}
	return NewPostgresStore(pool), nil
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return domain.StorageError(err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.StorageError(err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

// Pool exposes the underlying pool for migrations and tests.
func (s *PostgresStore) Pool() *pgxpool.Pool { return s.db }

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Templates() domain.TemplateRepository     { return pgTemplates{t.tx} }
func (t *pgTx) Persons() domain.PersonRepository         { return pgPersons{t.tx} }
func (t *pgTx) Inspections() domain.InspectionRepository { return pgInspections{t.tx} }
func (t *pgTx) StepResults() domain.StepResultRepository { return pgResults{t.tx} }

// mapPgError classifies driver errors. notFound is used for pgx.ErrNoRows.
func mapPgError(err error, notFound string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFoundf("%s", notFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return domain.Conflictf("%s", pgErr.Detail)
		case "23503":
			return domain.Conflictf("referenced record still in use: %s", pgErr.Detail)
		case "23514":
			return domain.InvalidArgumentf("%s", pgErr.Message)
		}
	}
	return domain.StorageError(err)
}

type pgTemplates struct{ tx pgx.Tx }

const templateColumns = `id, name, plant_name, recommendations, created_at, updated_at`

func scanTemplate(row pgx.Row) (domain.ChecklistTemplate, error) {
	var t domain.ChecklistTemplate
	err := row.Scan(&t.ID, &t.Name, &t.PlantName, &t.Recommendations, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (r pgTemplates) List(ctx context.Context, filter domain.TemplateFilter) ([]domain.ChecklistTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM checklist_templates WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.PlantName != "" {
		query += fmt.Sprintf(" AND plant_name = $%d", argIdx)
		args = append(args, filter.PlantName)
		argIdx++
	}
	if filter.NameContains != "" {
		query += fmt.Sprintf(" AND name ILIKE '%%' || $%d || '%%'", argIdx)
		args = append(args, filter.NameContains)
		argIdx++
	}
	query += " ORDER BY created_at, id"

	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.StorageError(err)
	}
	templates := []domain.ChecklistTemplate{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			rows.Close()
			return nil, domain.StorageError(err)
		}
		templates = append(templates, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError(err)
	}

	for i := range templates {
		steps, err := r.activeSteps(ctx, templates[i].ID)
		if err != nil {
			return nil, err
		}
		templates[i].Steps = steps
	}
	return templates, nil
}

func (r pgTemplates) activeSteps(ctx context.Context, templateID uuid.UUID) ([]domain.StepDefinition, error) {
	query := `SELECT id, template_id, description, requirement, order_index, position, retired
              FROM step_definitions WHERE template_id = $1 AND NOT retired ORDER BY order_index, position`
	rows, err := r.tx.Query(ctx, query, templateID)
	if err != nil {
		return nil, domain.StorageError(err)
	}
	defer rows.Close()

	steps := []domain.StepDefinition{}
	for rows.Next() {
		var st domain.StepDefinition
		if err := rows.Scan(&st.ID, &st.TemplateID, &st.Description, &st.Requirement, &st.OrderIndex, &st.Position, &st.Retired); err != nil {
			return nil, domain.StorageError(err)
		}
		steps = append(steps, st)
	}
	return steps, domain.StorageError(rows.Err())
}

func (r pgTemplates) FindByID(ctx context.Context, id uuid.UUID) (*domain.ChecklistTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM checklist_templates WHERE id = $1`
	t, err := scanTemplate(r.tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapPgError(err, fmt.Sprintf("checklist with id %s not found", id))
	}
	steps, err := r.activeSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Steps = steps
	return &t, nil
}

func (r pgTemplates) ExistsByID(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM checklist_templates WHERE id = $1)`, id).Scan(&exists)
	return exists, domain.StorageError(err)
}

func (r pgTemplates) Save(ctx context.Context, t *domain.ChecklistTemplate) error {
	query := `INSERT INTO checklist_templates (` + templateColumns + `) VALUES ($1, $2, $3, $4, $5, $6)
              ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, plant_name = EXCLUDED.plant_name,
              recommendations = EXCLUDED.recommendations, updated_at = EXCLUDED.updated_at`
	if _, err := r.tx.Exec(ctx, query, t.ID, t.Name, t.PlantName, t.Recommendations, t.CreatedAt, t.UpdatedAt); err != nil {
		return mapPgError(err, "")
	}

	rows, err := r.tx.Query(ctx, `SELECT id, position FROM step_definitions WHERE template_id = $1 AND NOT retired FOR UPDATE`, t.ID)
	if err != nil {
		return domain.StorageError(err)
	}
	existing := make(map[uuid.UUID]int)
	for rows.Next() {
		var id uuid.UUID
		var pos int
		if err := rows.Scan(&id, &pos); err != nil {
			rows.Close()
			return domain.StorageError(err)
		}
		existing[id] = pos
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.StorageError(err)
	}

	for i := range t.Steps {
		step := &t.Steps[i]
		step.TemplateID = t.ID
		step.Retired = false
		if pos, ok := existing[step.ID]; ok && step.ID != uuid.Nil {
			step.Position = pos
			delete(existing, step.ID)
			_, err := r.tx.Exec(ctx, `UPDATE step_definitions SET description = $2, requirement = $3, order_index = $4 WHERE id = $1`,
				step.ID, step.Description, step.Requirement, step.OrderIndex)
			if err != nil {
				return mapPgError(err, "")
			}
			continue
		}
		step.ID = uuid.New()
		err := r.tx.QueryRow(ctx, `INSERT INTO step_definitions (id, template_id, description, requirement, order_index)
              VALUES ($1, $2, $3, $4, $5) RETURNING position`,
			step.ID, t.ID, step.Description, step.Requirement, step.OrderIndex).Scan(&step.Position)
		if err != nil {
			return mapPgError(err, "")
		}
	}

	for id := range existing {
		tag, err := r.tx.Exec(ctx, `UPDATE step_definitions SET retired = true
              WHERE id = $1 AND EXISTS (SELECT 1 FROM step_results WHERE step_definition_id = $1)`, id)
		if err != nil {
			return domain.StorageError(err)
		}
		if tag.RowsAffected() > 0 {
			continue
		}
		if _, err := r.tx.Exec(ctx, `DELETE FROM step_definitions WHERE id = $1`, id); err != nil {
			return mapPgError(err, "")
		}
	}
	domain.SortSteps(t.Steps)
	return nil
}

func (r pgTemplates) DeleteByID(ctx context.Context, id uuid.UUID) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM checklist_templates WHERE id = $1`, id)
	if err != nil {
		return mapPgError(err, "")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("checklist with id %s not found", id)
	}
	return nil
}

func (r pgTemplates) CountInspectionsReferencing(ctx context.Context, id uuid.UUID) (int, error) {
	var n int
	err := r.tx.QueryRow(ctx, `SELECT count(*) FROM inspections WHERE template_id = $1`, id).Scan(&n)
	return n, domain.StorageError(err)
}

func (r pgTemplates) FindStepByID(ctx context.Context, stepID uuid.UUID) (*domain.StepDefinition, error) {
	query := `SELECT id, template_id, description, requirement, order_index, position, retired
              FROM step_definitions WHERE id = $1 AND NOT retired`
	var st domain.StepDefinition
	err := r.tx.QueryRow(ctx, query, stepID).Scan(&st.ID, &st.TemplateID, &st.Description, &st.Requirement, &st.OrderIndex, &st.Position, &st.Retired)
	if err != nil {
		return nil, mapPgError(err, fmt.Sprintf("checklist step with id %s not found", stepID))
	}
	return &st, nil
}

type pgPersons struct{ tx pgx.Tx }

const personColumns = `id, login_name, display_name, password_hash, role, created_at`

func scanPerson(row pgx.Row) (domain.Person, error) {
	var p domain.Person
	err := row.Scan(&p.ID, &p.LoginName, &p.DisplayName, &p.PasswordHash, &p.Role, &p.CreatedAt)
	return p, err
}

func (r pgPersons) List(ctx context.Context) ([]domain.Person, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+personColumns+` FROM persons ORDER BY login_name`)
	if err != nil {
		return nil, domain.StorageError(err)
	}
	defer rows.Close()

	persons := []domain.Person{}
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, domain.StorageError(err)
		}
		persons = append(persons, p)
	}
	return persons, domain.StorageError(rows.Err())
}

func (r pgPersons) FindByID(ctx context.Context, id uuid.UUID) (*domain.Person, error) {
	p, err := scanPerson(r.tx.QueryRow(ctx, `SELECT `+personColumns+` FROM persons WHERE id = $1`, id))
	if err != nil {
		return nil, mapPgError(err, fmt.Sprintf("user with id %s not found", id))
	}
	return &p, nil
}

func (r pgPersons) FindByLoginName(ctx context.Context, name string) (*domain.Person, error) {
	p, err := scanPerson(r.tx.QueryRow(ctx, `SELECT `+personColumns+` FROM persons WHERE login_name = $1`, name))
	if err != nil {
		return nil, mapPgError(err, fmt.Sprintf("user with username %s not found", name))
	}
	return &p, nil
}

func (r pgPersons) Save(ctx context.Context, p *domain.Person) error {
	query := `INSERT INTO persons (` + personColumns + `) VALUES ($1, $2, $3, $4, $5, $6)
              ON CONFLICT (id) DO UPDATE SET login_name = EXCLUDED.login_name, display_name = EXCLUDED.display_name,
              password_hash = EXCLUDED.password_hash, role = EXCLUDED.role`
	_, err := r.tx.Exec(ctx, query, p.ID, p.LoginName, p.DisplayName, p.PasswordHash, string(p.Role), p.CreatedAt)
	return mapPgError(err, "")
}

func (r pgPersons) DeleteByID(ctx context.Context, id uuid.UUID) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM persons WHERE id = $1`, id)
	if err != nil {
		return mapPgError(err, "")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("user with id %s not found", id)
	}
	return nil
}

type pgInspections struct{ tx pgx.Tx }

const inspectionColumns = `id, template_id, assigned_person_id, title, plant_name, status, planned_date,
	started_at, finished_at, general_comment, created_at, updated_at`

func scanInspection(row pgx.Row) (domain.Inspection, error) {
	var i domain.Inspection
	err := row.Scan(&i.ID, &i.TemplateID, &i.AssignedPersonID, &i.Title, &i.PlantName, &i.Status, &i.PlannedDate,
		&i.StartedAt, &i.FinishedAt, &i.GeneralComment, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

func (r pgInspections) List(ctx context.Context, filter domain.InspectionFilter) ([]domain.Inspection, error) {
	query := `SELECT ` + inspectionColumns + ` FROM inspections WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(*filter.Status))
		argIdx++
	}
	if filter.PlantName != "" {
		query += fmt.Sprintf(" AND plant_name = $%d", argIdx)
		args = append(args, filter.PlantName)
		argIdx++
	}
	if filter.AssignedPersonID != nil {
		query += fmt.Sprintf(" AND assigned_person_id = $%d", argIdx)
		args = append(args, *filter.AssignedPersonID)
		argIdx++
	}
	if filter.PlannedFrom != nil {
		query += fmt.Sprintf(" AND planned_date >= $%d", argIdx)
		args = append(args, *filter.PlannedFrom)
		argIdx++
	}
	if filter.PlannedTo != nil {
		query += fmt.Sprintf(" AND planned_date <= $%d", argIdx)
		args = append(args, *filter.PlannedTo)
		argIdx++
	}
	query += " ORDER BY planned_date DESC, id"

	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.StorageError(err)
	}
	defer rows.Close()

	inspections := []domain.Inspection{}
	for rows.Next() {
		i, err := scanInspection(rows)
		if err != nil {
			return nil, domain.StorageError(err)
		}
		inspections = append(inspections, i)
	}
	return inspections, domain.StorageError(rows.Err())
}

func (r pgInspections) FindByID(ctx context.Context, id uuid.UUID) (*domain.Inspection, error) {
	query := `SELECT ` + inspectionColumns + ` FROM inspections WHERE id = $1 FOR UPDATE`
	i, err := scanInspection(r.tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapPgError(err, fmt.Sprintf("inspection with id %s not found", id))
	}
	steps, err := pgResults(r).FindByInspection(ctx, id)
	if err != nil {
		return nil, err
	}
	i.Steps = steps
	return &i, nil
}

func (r pgInspections) ExistsByID(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM inspections WHERE id = $1)`, id).Scan(&exists)
	return exists, domain.StorageError(err)
}

func (r pgInspections) Create(ctx context.Context, i *domain.Inspection) error {
	query := `INSERT INTO inspections (` + inspectionColumns + `)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.tx.Exec(ctx, query, i.ID, i.TemplateID, i.AssignedPersonID, i.Title, i.PlantName, string(i.Status),
		i.PlannedDate, i.StartedAt, i.FinishedAt, i.GeneralComment, i.CreatedAt, i.UpdatedAt)
	if err != nil {
		return mapPgError(err, "")
	}
	if len(i.Steps) == 0 {
		return nil
	}

	for k := range i.Steps {
		if i.Steps[k].ID == uuid.Nil {
			i.Steps[k].ID = uuid.New()
		}
		i.Steps[k].InspectionID = i.ID
	}
	columns := []string{"id", "inspection_id", "step_definition_id", "description", "requirement",
		"order_index", "position", "status", "comment", "photo_ref", "updated_at"}
	_, err = r.tx.CopyFrom(ctx, pgx.Identifier{"step_results"}, columns,
		pgx.CopyFromSlice(len(i.Steps), func(k int) ([]any, error) {
			s := i.Steps[k]
			return []any{s.ID, s.InspectionID, s.StepDefinitionID, s.Description, s.Requirement,
				int32(s.OrderIndex), int64(s.Position), string(s.Status), s.Comment, s.PhotoRef, s.UpdatedAt}, nil
		}))
	return mapPgError(err, "")
}

func (r pgInspections) Update(ctx context.Context, i *domain.Inspection) error {
	query := `UPDATE inspections SET title = $2, plant_name = $3, status = $4, planned_date = $5,
              started_at = $6, finished_at = $7, general_comment = $8, updated_at = $9 WHERE id = $1`
	tag, err := r.tx.Exec(ctx, query, i.ID, i.Title, i.PlantName, string(i.Status), i.PlannedDate,
		i.StartedAt, i.FinishedAt, i.GeneralComment, i.UpdatedAt)
	if err != nil {
		return mapPgError(err, "")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("inspection with id %s not found", i.ID)
	}
	return nil
}

func (r pgInspections) DeleteByID(ctx context.Context, id uuid.UUID) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM inspections WHERE id = $1`, id)
	if err != nil {
		return mapPgError(err, "")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("inspection with id %s not found", id)
	}
	return nil
}

func (r pgInspections) FindByAssignedPerson(ctx context.Context, personID uuid.UUID) ([]domain.Inspection, error) {
	return r.List(ctx, domain.InspectionFilter{AssignedPersonID: &personID})
}

type pgResults struct{ tx pgx.Tx }

const resultColumns = `id, inspection_id, step_definition_id, description, requirement, order_index, position,
	status, comment, photo_ref, updated_at`

func scanResult(row pgx.Row) (domain.StepResult, error) {
	var s domain.StepResult
	err := row.Scan(&s.ID, &s.InspectionID, &s.StepDefinitionID, &s.Description, &s.Requirement, &s.OrderIndex,
		&s.Position, &s.Status, &s.Comment, &s.PhotoRef, &s.UpdatedAt)
	return s, err
}

func (r pgResults) query(ctx context.Context, query string, args ...any) ([]domain.StepResult, error) {
	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.StorageError(err)
	}
	defer rows.Close()

	results := []domain.StepResult{}
	for rows.Next() {
		s, err := scanResult(rows)
		if err != nil {
			return nil, domain.StorageError(err)
		}
		results = append(results, s)
	}
	return results, domain.StorageError(rows.Err())
}

func (r pgResults) FindByID(ctx context.Context, id uuid.UUID) (*domain.StepResult, error) {
	s, err := scanResult(r.tx.QueryRow(ctx, `SELECT `+resultColumns+` FROM step_results WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, mapPgError(err, fmt.Sprintf("inspection step with id %s not found", id))
	}
	return &s, nil
}

func (r pgResults) FindByInspection(ctx context.Context, inspectionID uuid.UUID) ([]domain.StepResult, error) {
	return r.query(ctx, `SELECT `+resultColumns+` FROM step_results WHERE inspection_id = $1
              ORDER BY order_index, position`, inspectionID)
}

func (r pgResults) FindByInspectionAndStatus(ctx context.Context, inspectionID uuid.UUID, status domain.StepStatus) ([]domain.StepResult, error) {
	return r.query(ctx, `SELECT `+resultColumns+` FROM step_results WHERE inspection_id = $1 AND status = $2
              ORDER BY order_index, position`, inspectionID, string(status))
}

func (r pgResults) Save(ctx context.Context, s *domain.StepResult) error {
	tag, err := r.tx.Exec(ctx, `UPDATE step_results SET status = $2, comment = $3, photo_ref = $4, updated_at = $5 WHERE id = $1`,
		s.ID, string(s.Status), s.Comment, s.PhotoRef, s.UpdatedAt)
	if err != nil {
		return mapPgError(err, "")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("inspection step with id %s not found", s.ID)
	}
	return nil
}
