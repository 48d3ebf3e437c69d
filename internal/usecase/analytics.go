package usecase

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"time"

	"plant_inspection/internal/domain"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
)

const reportTimeLayout = "02.01.2006 15:04"

type AnalyticsUseCase struct {
	store    domain.Store
	storage  domain.FileStorage
	logger   *slog.Logger
	location *time.Location
}

func NewAnalyticsUseCase(store domain.Store, storage domain.FileStorage, logger *slog.Logger, loc *time.Location) *AnalyticsUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AnalyticsUseCase{store: store, storage: storage, logger: logger, location: loc}
}

func (u *AnalyticsUseCase) GetInspectionDetail(ctx context.Context, inspectionID uuid.UUID) (*domain.InspectionDetail, error) {
	detail := &domain.InspectionDetail{}
	err := u.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		inspection, err := tx.Inspections().FindByID(ctx, inspectionID)
		if err != nil {
			return err
		}
		detail.Inspection = *inspection

		template, err := tx.Templates().FindByID(ctx, inspection.TemplateID)
		if err != nil {
			return fmt.Errorf("failed to get checklist: %w", err)
		}
		detail.TemplateName = template.Name

		person, err := tx.Persons().FindByID(ctx, inspection.AssignedPersonID)
		if err != nil {
			return fmt.Errorf("failed to get assigned inspector: %w", err)
		}
		detail.AssignedTo = person
		return nil
	})
	if err != nil {
		return nil, err
	}

	detail.Summary = domain.Summarize(detail.Inspection.Steps)
	for _, st := range detail.Inspection.Steps {
		if st.PhotoRef == "" || u.storage == nil {
			continue
		}
		url, err := u.storage.GetURL(ctx, st.PhotoRef)
		if err != nil {
			u.logger.Warn("failed to resolve photo url", "step_result_id", st.ID, "error", err)
			continue
		}
		if detail.PhotoURLs == nil {
			detail.PhotoURLs = make(map[string]string)
		}
		detail.PhotoURLs[st.ID.String()] = url
	}
	return detail, nil
}

func (u *AnalyticsUseCase) formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.In(u.location).Format(reportTimeLayout)
}

func (u *AnalyticsUseCase) ExportToCSV(ctx context.Context, inspectionID uuid.UUID) ([]byte, error) {
	detail, err := u.GetInspectionDetail(ctx, inspectionID)
	if err != nil {
		return nil, err
	}
	in := detail.Inspection
	planned := in.PlannedDate

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	records := [][]string{
		{"Title", "Checklist", "Plant", "Inspector", "Status", "Planned", "Started At", "Finished At"},
		{in.Title, detail.TemplateName, in.PlantName, detail.AssignedTo.DisplayName, string(in.Status),
			u.formatTime(&planned), u.formatTime(in.StartedAt), u.formatTime(in.FinishedAt)},
		{},
		{"#", "Step", "Requirement", "Result", "Comment", "Photo"},
	}
	for i, st := range in.Steps {
		records = append(records, []string{
			fmt.Sprint(i + 1), st.Description, st.Requirement, st.Status.Label(), st.Comment, detail.PhotoURLs[st.ID.String()],
		})
	}
	records = append(records,
		[]string{},
		[]string{"Passed", "Failed", "N/A", "Total"},
		[]string{fmt.Sprint(detail.Summary.Passed), fmt.Sprint(detail.Summary.Failed),
			fmt.Sprint(detail.Summary.NotApplicable), fmt.Sprint(detail.Summary.Total)},
	)
	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}
	return buf.Bytes(), nil
}

func (u *AnalyticsUseCase) ExportToPDF(ctx context.Context, inspectionID uuid.UUID) ([]byte, error) {
	detail, err := u.GetInspectionDetail(ctx, inspectionID)
	if err != nil {
		return nil, err
	}
	in := detail.Inspection
	planned := in.PlannedDate

	pdf := gofpdf.New("P", "mm", "A4", "")
	// core fonts are cp1252; names like "Müller" need translating
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, tr(fmt.Sprintf("Inspection: %s", in.Title)))
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 12)
	for _, line := range []string{
		fmt.Sprintf("Checklist: %s", detail.TemplateName),
		fmt.Sprintf("Plant: %s", in.PlantName),
		fmt.Sprintf("Inspector: %s", detail.AssignedTo.DisplayName),
		fmt.Sprintf("Status: %s", in.Status),
		fmt.Sprintf("Planned: %s", u.formatTime(&planned)),
	} {
		pdf.Cell(40, 10, tr(line))
		pdf.Ln(8)
	}
	if in.StartedAt != nil {
		pdf.Cell(40, 10, fmt.Sprintf("Started: %s", u.formatTime(in.StartedAt)))
		pdf.Ln(8)
	}
	if in.FinishedAt != nil {
		pdf.Cell(40, 10, fmt.Sprintf("Finished: %s", u.formatTime(in.FinishedAt)))
		pdf.Ln(8)
	}
	if in.GeneralComment != "" {
		pdf.MultiCell(0, 8, tr(fmt.Sprintf("Comment: %s", in.GeneralComment)), "", "", false)
	}
	pdf.Ln(7)

	for i, st := range in.Steps {
		pdf.SetFont("Arial", "B", 12)
		pdf.MultiCell(0, 8, tr(fmt.Sprintf("%d. %s [%s]", i+1, st.Description, st.Status.Label())), "", "", false)

		pdf.SetFont("Arial", "I", 10)
		if st.Requirement != "" {
			pdf.MultiCell(0, 6, tr(fmt.Sprintf("Requirement: %s", st.Requirement)), "", "", false)
		}
		if st.Comment != "" {
			pdf.MultiCell(0, 6, tr(fmt.Sprintf("Comment: %s", st.Comment)), "", "", false)
		}

		pdf.SetFont("Arial", "", 10)
		if st.PhotoRef != "" {
			pdf.Cell(0, 6, "Photo attached")
		} else {
			pdf.Cell(0, 6, "No photo uploaded")
		}
		pdf.Ln(11)
	}

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Passed: %d   Failed: %d   N/A: %d   Total: %d",
		detail.Summary.Passed, detail.Summary.Failed, detail.Summary.NotApplicable, detail.Summary.Total))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
