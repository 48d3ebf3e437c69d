package delivery

import (
	"net/http"
	"strings"
	"time"

	"plant_inspection/internal/metrics"

	"github.com/google/uuid"
)

type RouterConfig struct {
	Admin  *AdminHandler
	Public *PublicHandler
	// UploadDir is served under /uploads/ when photos live on the local
	// filesystem. Empty disables the route.
	UploadDir string
	Metrics   *metrics.Recorder
}

// NewRouter mounts the admin and public handlers on one mux and wraps it with
// request metrics.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/api/checklists", cfg.Admin)
	mux.Handle("/api/checklists/", cfg.Admin)
	mux.Handle("/api/checklist-steps/", cfg.Admin)
	mux.Handle("/api/persons", cfg.Admin)
	mux.HandleFunc("/api/persons/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(strings.TrimSuffix(r.URL.Path, "/"), "/inspections") {
			cfg.Public.ServeHTTP(w, r)
			return
		}
		cfg.Admin.ServeHTTP(w, r)
	})
	mux.Handle("/api/", cfg.Public)

	if cfg.UploadDir != "" {
		fs := http.FileServer(http.Dir(cfg.UploadDir))
		mux.Handle("/uploads/", http.StripPrefix("/uploads/", fs))
	}
	if cfg.Metrics != nil {
		mux.Handle("/metrics", cfg.Metrics.Handler())
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return Instrument(mux, cfg.Metrics)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Instrument records request counts and latencies per route template.
func Instrument(next http.Handler, rec *metrics.Recorder) http.Handler {
	if rec == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)
		rec.ObserveRequest(routeLabel(r.URL.Path), r.Method, sr.status, time.Since(start))
	})
}

// routeLabel replaces ids in the path so that label cardinality stays bounded.
func routeLabel(path string) string {
	if strings.HasPrefix(path, "/uploads/") {
		return "/uploads/{key}"
	}
	parts := splitPath(path)
	for i, p := range parts {
		if _, err := uuid.Parse(p); err == nil {
			parts[i] = "{id}"
		}
	}
	return "/" + strings.Join(parts, "/")
}
