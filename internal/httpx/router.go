package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/AngelCh415/mkt-kpi/internal/pipeline"
	"github.com/AngelCh415/mkt-kpi/internal/store"
	"github.com/AngelCh415/mkt-kpi/internal/utils"
)

// Deps are the collaborators the routes need. Metrics may be nil.
type Deps struct {
	Engine         *pipeline.Engine
	Store          *store.MemoryStore
	Remote         *pipeline.Remote
	Metrics        http.Handler
	Limiter        *rate.Limiter
	MaxUploadBytes int64
}

type router struct {
	log  *slog.Logger
	deps Deps
}

func NewRouter(log *slog.Logger, deps Deps) http.Handler {
	rt := &router{log: log, deps: deps}
	mux := chi.NewRouter()
	mux.Use(utils.RequestID)
	mux.Use(utils.Logger(log))

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
	mux.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := deps.Store.Result(); err != nil {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
		w.Write([]byte("ready"))
	})
	if deps.Metrics != nil {
		mux.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	mux.Get("/dashboard.json", rt.dashboard)
	mux.Get("/dashboard/{section}", rt.section)

	mux.Group(func(g chi.Router) {
		if deps.Limiter != nil {
			g.Use(utils.RateLimit(deps.Limiter, log))
		}
		g.Use(utils.RequireRole("admin", "editor"))
		g.Post("/upload", rt.upload)
		g.Post("/upload/{file_type}", rt.uploadOne)
		g.Post("/ingest/run", rt.ingestRun)
		g.Post("/export/run", rt.exportRun)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	enc.Encode(v)
}
