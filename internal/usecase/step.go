package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"

	"plant_inspection/internal/domain"
	"plant_inspection/internal/metrics"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StepResultUseCase records the outcome of single checklist steps within an
// inspection. Step results never change the inspection's own status.
type StepResultUseCase struct {
	store     domain.Store
	storage   domain.FileStorage
	processor PhotoProcessor
	logger    *slog.Logger
	metrics   *metrics.Recorder
	now       func() time.Time
}

func NewStepResultUseCase(store domain.Store, storage domain.FileStorage, processor PhotoProcessor, logger *slog.Logger, rec *metrics.Recorder) *StepResultUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if processor == nil {
		processor = NewImagingProcessor()
	}
	return &StepResultUseCase{
		store:     store,
		storage:   storage,
		processor: processor,
		logger:    logger,
		metrics:   rec,
		now:       time.Now,
	}
}

func (u *StepResultUseCase) GetStepResult(ctx context.Context, id uuid.UUID) (*domain.StepResult, error) {
	var result *domain.StepResult
	err := u.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		result, err = tx.StepResults().FindByID(ctx, id)
		return err
	})
	return result, err
}

// ListStepResults returns the inspection's results in checklist order. A
// non-empty rawStatus restricts the list to that status.
func (u *StepResultUseCase) ListStepResults(ctx context.Context, inspectionID uuid.UUID, rawStatus string) ([]domain.StepResult, error) {
	var status domain.StepStatus
	if strings.TrimSpace(rawStatus) != "" {
		var err error
		if status, err = domain.ParseStepStatus(rawStatus); err != nil {
			return nil, err
		}
	}

	var results []domain.StepResult
	err := u.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		exists, err := tx.Inspections().ExistsByID(ctx, inspectionID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.NotFoundf("inspection with id %s not found", inspectionID)
		}
		if status == "" {
			results, err = tx.StepResults().FindByInspection(ctx, inspectionID)
		} else {
			results, err = tx.StepResults().FindByInspectionAndStatus(ctx, inspectionID, status)
		}
		return err
	})
	return results, err
}

// modify loads the result, applies fn and saves it inside one transaction.
func (u *StepResultUseCase) modify(ctx context.Context, id uuid.UUID, fn func(*domain.StepResult)) (*domain.StepResult, error) {
	var result *domain.StepResult
	err := u.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		result, err = tx.StepResults().FindByID(ctx, id)
		if err != nil {
			return err
		}
		fn(result)
		result.UpdatedAt = u.now()
		return tx.StepResults().Save(ctx, result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (u *StepResultUseCase) UpdateStepStatus(ctx context.Context, id uuid.UUID, raw string) (*domain.StepResult, error) {
	status, err := domain.ParseStepStatus(raw)
	if err != nil {
		return nil, err
	}
	result, err := u.modify(ctx, id, func(r *domain.StepResult) { r.Status = status })
	if err != nil {
		return nil, err
	}
	u.metrics.StepUpdated(string(status))
	u.logger.Info("step status changed", "step_result_id", id, "inspection_id", result.InspectionID, "status", status)
	return result, nil
}

// UpdateStepComment overwrites the comment; an empty comment clears it.
func (u *StepResultUseCase) UpdateStepComment(ctx context.Context, id uuid.UUID, comment string) (*domain.StepResult, error) {
	result, err := u.modify(ctx, id, func(r *domain.StepResult) { r.Comment = comment })
	if err != nil {
		return nil, err
	}
	u.logger.Debug("step comment changed", "step_result_id", id)
	return result, nil
}

type UpdateStepResultInput struct {
	Status    string `json:"status"`
	Comment   string `json:"comment"`
	PhotoPath string `json:"photoPath"`
}

// UpdateStepResult replaces status, comment and photo reference at once.
func (u *StepResultUseCase) UpdateStepResult(ctx context.Context, id uuid.UUID, in UpdateStepResultInput) (*domain.StepResult, error) {
	status, err := domain.ParseStepStatus(in.Status)
	if err != nil {
		return nil, err
	}
	result, err := u.modify(ctx, id, func(r *domain.StepResult) {
		r.Status = status
		r.Comment = in.Comment
		r.PhotoRef = in.PhotoPath
	})
	if err != nil {
		return nil, err
	}
	u.metrics.StepUpdated(string(status))
	return result, nil
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// stripAccents turns "Prüfung" into "Prufung" so object keys stay ASCII.
func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func photoKey(stepID uuid.UUID, filename string) string {
	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	name = stripAccents(name)
	name = unsafeFilename.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == "_" {
		name = "photo"
	}
	return fmt.Sprintf("step_%s_%s_%s.jpg", stepID, uuid.New(), name)
}

// ownsPhoto reports whether ref was uploaded for stepID. A photo path set
// through UpdateStepResult may name any object, only owned ones are deleted.
func ownsPhoto(stepID uuid.UUID, ref string) bool {
	return strings.HasPrefix(ref, fmt.Sprintf("step_%s_", stepID))
}

// AttachPhoto validates and normalises an image, uploads it and stores the
// returned reference on the step result. The uploaded object is removed
// again when the result can not be updated.
func (u *StepResultUseCase) AttachPhoto(ctx context.Context, id uuid.UUID, filename, contentType string, data []byte) (*domain.StepResult, error) {
	if len(data) == 0 {
		return nil, domain.InvalidArgumentf("file is empty")
	}
	if len(data) > MaxPhotoBytes {
		return nil, domain.InvalidArgumentf("file size %s exceeds the maximum of %s",
			humanize.IBytes(uint64(len(data))), humanize.IBytes(MaxPhotoBytes))
	}
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return nil, domain.InvalidArgumentf("only image files are allowed, got %q", contentType)
	}

	if _, err := u.GetStepResult(ctx, id); err != nil {
		return nil, err
	}

	processed, err := u.processor.Process(data)
	if err != nil {
		return nil, domain.InvalidArgumentf("invalid image: %v", err)
	}

	ref, err := u.storage.Upload(ctx, photoKey(id, filename), processed, "image/jpeg")
	if err != nil {
		return nil, fmt.Errorf("failed to upload photo: %w", err)
	}

	var previous string
	result, err := u.modify(ctx, id, func(r *domain.StepResult) {
		previous = r.PhotoRef
		r.PhotoRef = ref
	})
	if err != nil {
		if delErr := u.storage.Delete(ctx, ref); delErr != nil {
			u.logger.Error("failed to remove orphaned photo", "ref", ref, "error", delErr)
		}
		return nil, err
	}

	if previous != "" && previous != ref && ownsPhoto(id, previous) {
		if err := u.storage.Delete(ctx, previous); err != nil {
			u.logger.Warn("failed to remove replaced photo", "ref", previous, "error", err)
		}
	}
	u.metrics.PhotoUploaded()
	u.logger.Info("step photo attached", "step_result_id", id, "ref", ref,
		"size", humanize.IBytes(uint64(len(processed))))
	return result, nil
}

// PhotoURL resolves a stored photo reference to a URL a client can open.
func (u *StepResultUseCase) PhotoURL(ctx context.Context, id uuid.UUID) (string, error) {
	result, err := u.GetStepResult(ctx, id)
	if err != nil {
		return "", err
	}
	if result.PhotoRef == "" {
		return "", domain.NotFoundf("inspection step with id %s has no photo", id)
	}
	return u.storage.GetURL(ctx, result.PhotoRef)
}
