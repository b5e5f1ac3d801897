package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"webmonitor-engine/internal/secrets"
)

// NewRouter builds the admin API with its middleware stack.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if d.SetSMTPPassword == nil {
		d.SetSMTPPassword = secrets.SetSMTPPassword
	}

	r := chi.NewRouter()
	r.Use(RequestID, Recover(logger), AccessLog(logger), Cors)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, "not_found", "no such route")
	})

	r.Get("/health", HealthHandler{}.Health)

	jh := JobsHandler{Engine: d.Engine}
	snh := SnapshotsHandler{Engine: d.Engine}
	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", jh.List)
		r.Post("/", jh.Create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", jh.Get)
			r.Put("/", jh.Update)
			r.Delete("/", jh.Delete)
			r.Post("/check", jh.Check)
			r.Get("/snapshots", snh.ListForJob)
			r.Get("/snapshots/latest", snh.Latest)
		})
	})

	r.Get("/snapshots/{id}", snh.Get)
	r.Delete("/snapshots/{id}", snh.Delete)

	r.Get("/scheduler", SchedulerHandler{Engine: d.Engine}.Status)

	// Config
	ch := ConfigHandler{
		CfgVal:      d.CfgVal,
		UserCfgPath: d.UserCfgPath,
		LoadCfg:     d.LoadCfg,
	}
	r.Get("/config", ch.Get)
	r.Put("/config", ch.Put)
	r.Get("/config/path", ch.Path)
	r.Get("/config/validate", ch.Validate)

	// Secrets (use cfgVal, NOT a snapshot cfg)
	sh := SecretsHandler{CfgVal: d.CfgVal, Set: d.SetSMTPPassword}
	r.Post("/api/secrets/smtp", sh.SetSMTPPassword)

	// SSE events
	r.Get("/events", EventsHandler{Hub: d.Hub}.ServeSSE)

	r.Post("/db/checkpoint", DBHandler{DB: d.DB}.Checkpoint)

	return r
}
