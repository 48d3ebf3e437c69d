package delivery

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"plant_inspection/internal/domain"
	"plant_inspection/internal/usecase"

	"github.com/google/uuid"
)

// multipartOverhead leaves room for form boundaries and headers around an
// uploaded file.
const multipartOverhead = 1 << 20

// PlateReader reads plant tags from nameplate photos.
type PlateReader interface {
	ProcessOCR(image []byte) (*usecase.OCRResult, error)
}

// PublicHandler serves the inspector facing part of the API: inspections,
// their step results, reports and nameplate OCR.
type PublicHandler struct {
	inspectionUC *usecase.InspectionUseCase
	stepUC       *usecase.StepResultUseCase
	analyticsUC  *usecase.AnalyticsUseCase
	ocr          PlateReader
	logger       *slog.Logger
	loc          *time.Location
}

func NewPublicHandler(
	inspectionUC *usecase.InspectionUseCase,
	stepUC *usecase.StepResultUseCase,
	analyticsUC *usecase.AnalyticsUseCase,
	ocr PlateReader,
	logger *slog.Logger,
	loc *time.Location,
) *PublicHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	return &PublicHandler{
		inspectionUC: inspectionUC,
		stepUC:       stepUC,
		analyticsUC:  analyticsUC,
		ocr:          ocr,
		logger:       logger,
		loc:          loc,
	}
}

func (h *PublicHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path)
	switch {
	case matchPath(parts, "api", "inspections") && r.Method == http.MethodGet:
		h.handleListInspections(w, r)
	case matchPath(parts, "api", "inspections") && r.Method == http.MethodPost:
		h.handleCreateInspection(w, r)
	case matchPath(parts, "api", "inspections", "by-user", "*") && r.Method == http.MethodGet:
		h.handleListForPerson(w, r, parts[3])
	case matchPath(parts, "api", "persons", "*", "inspections") && r.Method == http.MethodGet:
		h.handleListForPerson(w, r, parts[2])
	case matchPath(parts, "api", "inspections", "*") && r.Method == http.MethodGet:
		h.handleGetInspection(w, r, parts[2])
	case matchPath(parts, "api", "inspections", "*") && r.Method == http.MethodPut:
		h.handleUpdateInspection(w, r, parts[2])
	case matchPath(parts, "api", "inspections", "*") && r.Method == http.MethodDelete:
		h.handleDeleteInspection(w, r, parts[2])
	case matchPath(parts, "api", "inspections", "*", "status") && r.Method == http.MethodPatch:
		h.handleUpdateStatus(w, r, parts[2])
	case matchPath(parts, "api", "inspections", "*", "steps") && r.Method == http.MethodGet:
		h.handleListSteps(w, r, parts[2], r.URL.Query().Get("status"))
	case matchPath(parts, "api", "inspections", "*", "steps", "status", "*") && r.Method == http.MethodGet:
		h.handleListSteps(w, r, parts[2], parts[5])
	case matchPath(parts, "api", "inspections", "*", "report") && r.Method == http.MethodGet:
		h.handleReport(w, r, parts[2])
	case matchPath(parts, "api", "inspections", "*", "export", "csv") && r.Method == http.MethodGet:
		h.handleExportCSV(w, r, parts[2])
	case matchPath(parts, "api", "inspections", "*", "export", "pdf") && r.Method == http.MethodGet:
		h.handleExportPDF(w, r, parts[2])
	case matchPath(parts, "api", "inspection-steps", "*") && r.Method == http.MethodGet:
		h.handleGetStep(w, r, parts[2])
	case matchPath(parts, "api", "inspection-steps", "*") && r.Method == http.MethodPut:
		h.handleUpdateStep(w, r, parts[2])
	case matchPath(parts, "api", "inspection-steps", "*", "status") && r.Method == http.MethodPatch:
		h.handleUpdateStepStatus(w, r, parts[2])
	case matchPath(parts, "api", "inspection-steps", "*", "comment") && r.Method == http.MethodPatch:
		h.handleUpdateStepComment(w, r, parts[2])
	case matchPath(parts, "api", "inspection-steps", "*", "photo") && r.Method == http.MethodPost:
		h.handleUploadPhoto(w, r, parts[2])
	case matchPath(parts, "api", "inspection-steps", "*", "photo") && r.Method == http.MethodGet:
		h.handlePhotoURL(w, r, parts[2])
	case matchPath(parts, "api", "ocr") && r.Method == http.MethodPost:
		h.handleOCR(w, r)
	default:
		writeError(w, r, h.logger, domain.NotFoundf("no route for %s %s", r.Method, r.URL.Path))
	}
}

func (h *PublicHandler) handleListInspections(w http.ResponseWriter, r *http.Request) {
	filter, err := h.inspectionFilter(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	list, err := h.inspectionUC.ListInspections(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *PublicHandler) inspectionFilter(r *http.Request) (domain.InspectionFilter, error) {
	q := r.URL.Query()
	filter := domain.InspectionFilter{PlantName: q.Get("plantName")}
	if raw := q.Get("status"); raw != "" {
		status, err := domain.ParseInspectionStatus(raw)
		if err != nil {
			return filter, err
		}
		filter.Status = &status
	}
	if raw := q.Get("assignedInspectorId"); raw != "" {
		id, err := parseID(raw, "person")
		if err != nil {
			return filter, err
		}
		filter.AssignedPersonID = &id
	}
	if raw := q.Get("from"); raw != "" {
		t, err := parseDate(raw, h.loc)
		if err != nil {
			return filter, err
		}
		filter.PlannedFrom = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := parseUpperBound(raw, h.loc)
		if err != nil {
			return filter, err
		}
		filter.PlannedTo = &t
	}
	return filter, nil
}

type createInspectionRequest struct {
	ChecklistID         uuid.UUID `json:"checklistId"`
	Title               string    `json:"title"`
	PlantName           string    `json:"plantName"`
	PlannedDate         string    `json:"plannedDate"`
	GeneralComment      string    `json:"generalComment"`
	AssignedInspectorID uuid.UUID `json:"assignedInspectorId"`
}

func (h *PublicHandler) handleCreateInspection(w http.ResponseWriter, r *http.Request) {
	var req createInspectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.ChecklistID == uuid.Nil {
		writeError(w, r, h.logger, domain.InvalidArgumentf("checklistId is required"))
		return
	}
	if req.AssignedInspectorID == uuid.Nil {
		writeError(w, r, h.logger, domain.InvalidArgumentf("assignedInspectorId is required"))
		return
	}
	planned, err := parseDate(req.PlannedDate, h.loc)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	inspection, err := h.inspectionUC.CreateFromTemplate(r.Context(), usecase.CreateInspectionInput{
		TemplateID:          req.ChecklistID,
		Title:               req.Title,
		PlantName:           req.PlantName,
		PlannedDate:         planned,
		GeneralComment:      req.GeneralComment,
		ResponsiblePersonID: req.AssignedInspectorID,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Location", "/api/inspections/"+inspection.ID.String())
	writeJSON(w, http.StatusCreated, inspection)
}

func (h *PublicHandler) handleListForPerson(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := parseID(rawID, "person")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	list, err := h.inspectionUC.ListForPerson(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *PublicHandler) handleGetInspection(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := parseID(rawID, "inspection")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	inspection, err := h.inspectionUC.GetInspection(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, inspection)
}

type updateInspectionRequest struct {
	Title          string `json:"title"`
	PlantName      string `json:"plantName"`
	PlannedDate    string `json:"plannedDate"`
	GeneralComment string `json:"generalComment"`
}

func (h *PublicHandler) handleUpdateInspection(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := parseID(rawID, "inspection")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req updateInspectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	planned, err := parseDate(req.PlannedDate, h.loc)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	inspection, err := h.inspectionUC.UpdateInspection(r.Context(), id, usecase.UpdateInspectionInput{
		Title:          req.Title,
		PlantName:      req.PlantName,
		PlannedDate:    planned,
		GeneralComment: req.GeneralComment,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, inspection)
}

func (h *PublicHandler) handleDeleteInspection(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := parseID(rawID, "inspection")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.inspectionUC.DeleteInspection(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PublicHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := parseID(rawID, "inspection")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	raw, err := readTextBody(r, "status")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	inspection, err := h.inspectionUC.UpdateStatus(r.Context(), id, raw)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, inspection)
}

func (h *PublicHandler) handleListSteps(w http.ResponseWriter, r *http.Request, rawID, status string) {
	id, err := parseID(rawID, "inspection")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	steps, err := h.stepUC.ListStepResults(r.Context(), id, status)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, steps)
}

func (h *PublicHandler) handleReport(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := parseID(rawID, "inspection")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	detail, err := h.analyticsUC.GetInspectionDetail(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *PublicHandler) handleExportCSV(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := parseID(rawID, "inspection")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	data, err := h.analyticsUC.ExportToCSV(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=inspection_%s.csv", id))
	_, _ = w.Write(data)
}

func (h *PublicHandler) handleExportPDF(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := parseID(rawID, "inspection")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	data, err := h.analyticsUC.ExportToPDF(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=inspection_%s.pdf", id))
	_, _ = w.Write(data)
}

func (h *PublicHandler) handleGetStep(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := parseID(rawID, "inspection step")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	result, err := h.stepUC.GetStepResult(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *PublicHandler) handleUpdateStep(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := parseID(rawID, "inspection step")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var in usecase.UpdateStepResultInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	result, err := h.stepUC.UpdateStepResult(r.Context(), id, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *PublicHandler) handleUpdateStepStatus(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := parseID(rawID, "inspection step")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	raw, err := readTextBody(r, "status")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	result, err := h.stepUC.UpdateStepStatus(r.Context(), id, raw)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *PublicHandler) handleUpdateStepComment(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := parseID(rawID, "inspection step")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	comment, err := readFreeText(r, "comment")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	result, err := h.stepUC.UpdateStepComment(r.Context(), id, comment)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// readUpload returns the multipart "file" part of the request.
func readUpload(w http.ResponseWriter, r *http.Request) (name, contentType string, data []byte, err error) {
	r.Body = http.MaxBytesReader(w, r.Body, usecase.MaxPhotoBytes+multipartOverhead)
	if err := r.ParseMultipartForm(usecase.MaxPhotoBytes + multipartOverhead); err != nil {
		return "", "", nil, domain.InvalidArgumentf("invalid multipart upload: %v", err)
	}
	f, fh, err := r.FormFile("file")
	if err != nil {
		return "", "", nil, domain.InvalidArgumentf("form field 'file' is required")
	}
	defer f.Close()

	data, err = io.ReadAll(f)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to read upload: %w", err)
	}
	contentType = fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return fh.Filename, contentType, data, nil
}

func (h *PublicHandler) handleUploadPhoto(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := parseID(rawID, "inspection step")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	name, contentType, data, err := readUpload(w, r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	result, err := h.stepUC.AttachPhoto(r.Context(), id, name, contentType, data)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *PublicHandler) handlePhotoURL(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := parseID(rawID, "inspection step")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	url, err := h.stepUC.PhotoURL(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (h *PublicHandler) handleOCR(w http.ResponseWriter, r *http.Request) {
	_, _, data, err := readUpload(w, r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	result, err := h.ocr.ProcessOCR(data)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
