package delivery

import (
	"log/slog"
	"net/http"

	"plant_inspection/internal/domain"
	"plant_inspection/internal/usecase"
)

// AdminHandler serves checklist template and person management.
type AdminHandler struct {
	templateUC *usecase.TemplateUseCase
	personUC   *usecase.PersonUseCase
	logger     *slog.Logger
}

func NewAdminHandler(templateUC *usecase.TemplateUseCase, personUC *usecase.PersonUseCase, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{
		templateUC: templateUC,
		personUC:   personUC,
		logger:     logger,
	}
}

func (h *AdminHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path)
	switch {
	case matchPath(parts, "api", "checklists") && r.Method == http.MethodGet:
		h.handleListTemplates(w, r)
	case matchPath(parts, "api", "checklists") && r.Method == http.MethodPost:
		h.handleCreateTemplate(w, r)
	case matchPath(parts, "api", "checklists", "*") && r.Method == http.MethodGet:
		h.handleGetTemplate(w, r, parts[2])
	case matchPath(parts, "api", "checklists", "*") && r.Method == http.MethodPut:
		h.handleUpdateTemplate(w, r, parts[2])
	case matchPath(parts, "api", "checklists", "*") && r.Method == http.MethodDelete:
		h.handleDeleteTemplate(w, r, parts[2])
	case matchPath(parts, "api", "checklists", "*", "steps") && r.Method == http.MethodGet:
		h.handleListSteps(w, r, parts[2])
	case matchPath(parts, "api", "checklists", "*", "steps") && r.Method == http.MethodPost:
		h.handleAddStep(w, r, parts[2])
	case matchPath(parts, "api", "checklist-steps", "*") && r.Method == http.MethodPut:
		h.handleUpdateStep(w, r, parts[2])
	case matchPath(parts, "api", "checklist-steps", "*") && r.Method == http.MethodDelete:
		h.handleRemoveStep(w, r, parts[2])
	case matchPath(parts, "api", "persons") && r.Method == http.MethodGet:
		h.handleListPersons(w, r)
	case matchPath(parts, "api", "persons") && r.Method == http.MethodPost:
		h.handleCreatePerson(w, r)
	case matchPath(parts, "api", "persons", "*") && r.Method == http.MethodGet:
		h.handleGetPerson(w, r, parts[2])
	case matchPath(parts, "api", "persons", "*") && r.Method == http.MethodDelete:
		h.handleDeletePerson(w, r, parts[2])
	default:
		writeError(w, r, h.logger, domain.NotFoundf("no route for %s %s", r.Method, r.URL.Path))
	}
}

func (h *AdminHandler) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.templateUC.ListTemplates(r.Context(), domain.TemplateFilter{
		PlantName:    q.Get("plantName"),
		NameContains: q.Get("name"),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *AdminHandler) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var in usecase.TemplateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	tmpl, err := h.templateUC.CreateTemplate(r.Context(), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, tmpl)
}

func (h *AdminHandler) handleGetTemplate(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := parseID(rawID, "checklist")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	tmpl, err := h.templateUC.GetTemplate(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

func (h *AdminHandler) handleUpdateTemplate(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := parseID(rawID, "checklist")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var in usecase.TemplateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	tmpl, err := h.templateUC.UpdateTemplate(r.Context(), id, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

func (h *AdminHandler) handleDeleteTemplate(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := parseID(rawID, "checklist")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.templateUC.DeleteTemplate(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) handleListSteps(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := parseID(rawID, "checklist")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	steps, err := h.templateUC.ListSteps(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, steps)
}

func (h *AdminHandler) handleAddStep(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := parseID(rawID, "checklist")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var in usecase.StepInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	step, err := h.templateUC.AddStep(r.Context(), id, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, step)
}

func (h *AdminHandler) handleUpdateStep(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := parseID(rawID, "checklist step")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var in usecase.StepInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	step, err := h.templateUC.UpdateStep(r.Context(), id, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

func (h *AdminHandler) handleRemoveStep(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := parseID(rawID, "checklist step")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.templateUC.RemoveStep(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) handleListPersons(w http.ResponseWriter, r *http.Request) {
	list, err := h.personUC.ListPersons(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *AdminHandler) handleCreatePerson(w http.ResponseWriter, r *http.Request) {
	var in usecase.CreatePersonInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := h.personUC.CreatePerson(r.Context(), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *AdminHandler) handleGetPerson(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := parseID(rawID, "person")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := h.personUC.GetPerson(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *AdminHandler) handleDeletePerson(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := parseID(rawID, "person")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.personUC.DeletePerson(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
