package delivery

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"plant_inspection/internal/domain"

	"github.com/google/uuid"
)

const maxJSONBody = 1 << 20

// ErrorResponse is the body of every non-2xx API response. InUseCount is
// set when a delete was refused because inspections still depend on the
// resource.
type ErrorResponse struct {
	Timestamp  time.Time `json:"timestamp"`
	Status     int       `json:"status"`
	Error      string    `json:"error"`
	Message    string    `json:"message"`
	Path       string    `json:"path"`
	InUseCount int       `json:"inUseCount,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusFor(err)
	resp := ErrorResponse{
		Timestamp: time.Now(),
		Status:    status,
		Error:     http.StatusText(status),
		Message:   domain.Message(err),
		Path:      r.URL.Path,
	}
	var inUse *domain.InUseError
	if errors.As(err, &inUse) {
		resp.InUseCount = inUse.Count
	}
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		resp.Message = "internal server error"
	}
	writeJSON(w, status, resp)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		return domain.InvalidArgumentf("malformed request body: %v", err)
	}
	return nil
}

func readBody(r *http.Request) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
	if err != nil {
		return "", fmt.Errorf("failed to read request body: %w", err)
	}
	return string(raw), nil
}

// jsonTextValue extracts a value sent as a JSON string or as an object
// holding it under field. ok is false when text is neither.
func jsonTextValue(text, field string) (value string, ok bool, err error) {
	switch {
	case strings.HasPrefix(text, "{"):
		var obj map[string]*string
		if err := json.Unmarshal([]byte(text), &obj); err != nil {
			return "", false, err
		}
		v, found := obj[field]
		if !found {
			return "", false, fmt.Errorf("field '%s' is required", field)
		}
		if v == nil {
			return "", true, nil
		}
		return *v, true, nil
	case strings.HasPrefix(text, `"`):
		var s string
		if err := json.Unmarshal([]byte(text), &s); err != nil {
			return "", false, err
		}
		return s, true, nil
	}
	return "", false, nil
}

// readTextBody accepts a bare value ("COMPLETED"), a JSON string
// ("\"COMPLETED\"") or an object carrying the value under field. Body that
// looks like JSON but does not parse is rejected.
func readTextBody(r *http.Request, field string) (string, error) {
	raw, err := readBody(r)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(raw)
	value, ok, err := jsonTextValue(text, field)
	if err != nil {
		return "", domain.InvalidArgumentf("malformed request body: %v", err)
	}
	if ok {
		return value, nil
	}
	return text, nil
}

// readFreeText is readTextBody for free-form text: anything that is not a
// well-formed JSON string or object with field is taken verbatim.
func readFreeText(r *http.Request, field string) (string, error) {
	raw, err := readBody(r)
	if err != nil {
		return "", err
	}
	value, ok, err := jsonTextValue(strings.TrimSpace(raw), field)
	if err == nil && ok {
		return value, nil
	}
	return raw, nil
}

func parseID(raw, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.InvalidArgumentf("invalid %s id: %s", what, raw)
	}
	return id, nil
}

// splitPath turns "/api/inspections/42/status" into [api inspections 42 status].
func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// matchPath compares path segments against a pattern in which "*" matches
// any single segment.
func matchPath(parts []string, pattern ...string) bool {
	if len(parts) != len(pattern) {
		return false
	}
	for i, p := range pattern {
		if p != "*" && p != parts[i] {
			return false
		}
	}
	return true
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseDate accepts RFC 3339 timestamps and zone-less local dates, the latter
// interpreted in loc.
func parseDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, domain.InvalidArgumentf("invalid date: %s", raw)
}

// parseUpperBound is parseDate for inclusive range ends: a bare date covers
// the whole day.
func parseUpperBound(raw string, loc *time.Location) (time.Time, error) {
	if day, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(raw), loc); err == nil {
		return day.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
	}
	return parseDate(raw, loc)
}
