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
	"golang.org/x/crypto/bcrypt"
)

type PersonUseCase struct {
	store   domain.Store
	logger  *slog.Logger
	metrics *metrics.Recorder
	now     func() time.Time
	cost    int
}

func NewPersonUseCase(store domain.Store, logger *slog.Logger, rec *metrics.Recorder) *PersonUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersonUseCase{store: store, logger: logger, metrics: rec, now: time.Now, cost: bcrypt.DefaultCost}
}

type CreatePersonInput struct {
	LoginName   string `json:"username"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
	Role        string `json:"role"`
}

func (u *PersonUseCase) CreatePerson(ctx context.Context, in CreatePersonInput) (*domain.Person, error) {
	login := strings.TrimSpace(in.LoginName)
	if login == "" {
		return nil, domain.InvalidArgumentf("username must not be empty")
	}
	if in.Password == "" {
		return nil, domain.InvalidArgumentf("password must not be empty")
	}
	role, err := domain.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), u.cost)
	if err != nil {
		return nil, domain.InvalidArgumentf("password can not be hashed: %v", err)
	}

	person := &domain.Person{
		ID:           uuid.New(),
		LoginName:    login,
		DisplayName:  firstNonEmpty(in.DisplayName, login),
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    u.now(),
	}
	err = u.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		if _, err := tx.Persons().FindByLoginName(ctx, login); err == nil {
			return domain.Conflictf("username '%s' is already taken", login)
		}
		return tx.Persons().Save(ctx, person)
	})
	if err != nil {
		return nil, err
	}
	u.logger.Info("person created", "person_id", person.ID, "username", login, "role", role)
	return person, nil
}

func (u *PersonUseCase) GetPerson(ctx context.Context, id uuid.UUID) (*domain.Person, error) {
	var person *domain.Person
	err := u.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		person, err = tx.Persons().FindByID(ctx, id)
		return err
	})
	return person, err
}

func (u *PersonUseCase) GetByLoginName(ctx context.Context, login string) (*domain.Person, error) {
	var person *domain.Person
	err := u.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		person, err = tx.Persons().FindByLoginName(ctx, strings.TrimSpace(login))
		return err
	})
	return person, err
}

func (u *PersonUseCase) ListPersons(ctx context.Context) ([]domain.Person, error) {
	var persons []domain.Person
	err := u.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		persons, err = tx.Persons().List(ctx)
		return err
	})
	return persons, err
}

// CheckPassword reports whether password matches the stored credential hash.
func (u *PersonUseCase) CheckPassword(p *domain.Person, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)) == nil
}

// DeletePerson refuses to delete someone who still has inspections assigned.
func (u *PersonUseCase) DeletePerson(ctx context.Context, id uuid.UUID) error {
	err := u.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		if _, err := tx.Persons().FindByID(ctx, id); err != nil {
			return err
		}
		assigned, err := tx.Inspections().FindByAssignedPerson(ctx, id)
		if err != nil {
			return err
		}
		if len(assigned) > 0 {
			return &domain.InUseError{Resource: "person", ID: id, Count: len(assigned)}
		}
		return tx.Persons().DeleteByID(ctx, id)
	})
	var inUse *domain.InUseError
	if errors.As(err, &inUse) {
		u.metrics.DeleteBlocked(inUse.Resource)
		u.logger.Warn("person delete blocked", "person_id", id, "inspections", inUse.Count)
		return err
	}
	if err != nil {
		return err
	}
	u.logger.Info("person deleted", "person_id", id)
	return nil
}
