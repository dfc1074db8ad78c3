// Package httpapi is the REST transport of the tracker service.
//
// Routes (all under /api are rate limited per client IP, then require a
// principal):
//
//	GET    /health                         → liveness and version
//	GET    /metrics                        → Prometheus metrics
//	GET    /api/applications               → filtered, sorted, paged listing
//	POST   /api/applications               → create
//	DELETE /api/applications/bulk          → delete the caller's records among ids
//	GET    /api/applications/{id}          → fetch one
//	PUT    /api/applications/{id}          → partial update
//	DELETE /api/applications/{id}          → delete one
//	PATCH  /api/applications/{id}/status   → move to a new status
//	POST   /api/applications/{id}/attachments → add a document reference
//	GET    /api/analytics/dashboard|status-stats|timeline|response-rate|sources
package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/zulfie1003/InternTrack/internal/analytics"
	"github.com/zulfie1003/InternTrack/internal/application"
	"github.com/zulfie1003/InternTrack/internal/auth"
	"github.com/zulfie1003/InternTrack/internal/kanban"
	"github.com/zulfie1003/InternTrack/internal/metrics"
	"github.com/zulfie1003/InternTrack/internal/query"
)

// Handler holds shared dependencies.
type Handler struct {
	svc       *kanban.Service
	query     *query.Engine
	analytics *analytics.Engine
	resolver  *auth.Resolver
	limiter   *RateLimiter
	log       *logrus.Entry
	version   string
	now       func() time.Time
}

// Deps wires a Handler. Limiter may be nil to disable rate limiting.
type Deps struct {
	Service   *kanban.Service
	Query     *query.Engine
	Analytics *analytics.Engine
	Resolver  *auth.Resolver
	Limiter   *RateLimiter
	Logger    *logrus.Logger
	Version   string
}

// NewHandler returns a configured Handler.
func NewHandler(d Deps) *Handler {
	log := d.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		svc:       d.Service,
		query:     d.Query,
		analytics: d.Analytics,
		resolver:  d.Resolver,
		limiter:   d.Limiter,
		log:       log.WithField("component", "httpapi"),
		version:   d.Version,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Router mounts every route on a new gorilla/mux router.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(instrument)

	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	if h.limiter != nil {
		api.Use(h.limiter.Middleware)
	}
	api.Use(authenticate(h.resolver, h.log))

	apps := api.PathPrefix("/applications").Subrouter()
	apps.HandleFunc("", h.listApplications).Methods(http.MethodGet)
	apps.HandleFunc("", h.createApplication).Methods(http.MethodPost)
	apps.HandleFunc("/bulk", h.bulkDelete).Methods(http.MethodDelete)
	apps.HandleFunc("/{id}", h.getApplication).Methods(http.MethodGet)
	apps.HandleFunc("/{id}", h.updateApplication).Methods(http.MethodPut)
	apps.HandleFunc("/{id}", h.deleteApplication).Methods(http.MethodDelete)
	apps.HandleFunc("/{id}/status", h.changeStatus).Methods(http.MethodPatch)
	apps.HandleFunc("/{id}/attachments", h.addAttachment).Methods(http.MethodPost)

	stats := api.PathPrefix("/analytics").Subrouter()
	stats.HandleFunc("/dashboard", h.dashboard).Methods(http.MethodGet)
	stats.HandleFunc("/status-stats", h.statusStats).Methods(http.MethodGet)
	stats.HandleFunc("/timeline", h.timeline).Methods(http.MethodGet)
	stats.HandleFunc("/response-rate", h.responseRate).Methods(http.MethodGet)
	stats.HandleFunc("/sources", h.sourceAnalytics).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		jsonError(w, "route not found", http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
	})
	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	jsonOK(w, map[string]string{
		"status":  "ok",
		"service": "tracker",
		"version": h.version,
	})
}

// ─── Applications ────────────────────────────────────────────────────────────

func (h *Handler) listApplications(w http.ResponseWriter, r *http.Request) {
	params, err := listParams(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	page, err := h.query.List(r.Context(), auth.FromContext(r.Context()), params)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	jsonOK(w, page)
}

func (h *Handler) createApplication(w http.ResponseWriter, r *http.Request) {
	var in kanban.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	rec, err := h.svc.Create(r.Context(), auth.FromContext(r.Context()), in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	jsonStatus(w, http.StatusCreated, application.Project(rec, h.now()))
}

func (h *Handler) getApplication(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Get(r.Context(), auth.FromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	jsonOK(w, application.Project(rec, h.now()))
}

func (h *Handler) updateApplication(w http.ResponseWriter, r *http.Request) {
	var patch kanban.Patch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, h.log, err)
		return
	}
	rec, err := h.svc.Update(r.Context(), auth.FromContext(r.Context()), mux.Vars(r)["id"], patch)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	jsonOK(w, application.Project(rec, h.now()))
}

func (h *Handler) deleteApplication(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), auth.FromContext(r.Context()), mux.Vars(r)["id"]); err != nil {
		writeError(w, h.log, err)
		return
	}
	jsonOK(w, map[string]string{"message": "application deleted"})
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
		Notes  string `json:"notes"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, h.log, err)
		return
	}
	if body.Status == "" {
		jsonError(w, "status is required", http.StatusBadRequest)
		return
	}
	rec, err := h.svc.ChangeStatus(r.Context(), auth.FromContext(r.Context()), mux.Vars(r)["id"], body.Status, body.Notes)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	jsonOK(w, application.Project(rec, h.now()))
}

func (h *Handler) addAttachment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, h.log, err)
		return
	}
	rec, err := h.svc.AddAttachment(r.Context(), auth.FromContext(r.Context()), mux.Vars(r)["id"], body.Name, body.URL)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	jsonStatus(w, http.StatusCreated, application.Project(rec, h.now()))
}

func (h *Handler) bulkDelete(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, h.log, err)
		return
	}
	n, err := h.svc.BulkDelete(r.Context(), auth.FromContext(r.Context()), body.IDs)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	jsonOK(w, map[string]any{
		"message":      fmt.Sprintf("%d applications deleted", n),
		"deletedCount": n,
	})
}

// ─── Analytics ───────────────────────────────────────────────────────────────

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.analytics.Dashboard(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	jsonOK(w, d)
}

func (h *Handler) statusStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.analytics.StatusStats(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	jsonOK(w, map[string]any{"stats": stats})
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	days := analytics.DefaultTimelineDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			jsonError(w, "days must be an integer", http.StatusBadRequest)
			return
		}
		days = n
	}
	tl, err := h.analytics.Timeline(r.Context(), auth.FromContext(r.Context()), days)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	jsonOK(w, map[string]any{"timeline": tl})
}

func (h *Handler) responseRate(w http.ResponseWriter, r *http.Request) {
	rr, err := h.analytics.ResponseRate(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	jsonOK(w, rr)
}

func (h *Handler) sourceAnalytics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.analytics.SourceAnalytics(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	jsonOK(w, map[string]any{"sourceStats": stats})
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// listParams reads status, jobType, priority, search, sort, page and limit.
// Unknown enum values are rejected; an unknown sort falls back to newest.
func listParams(r *http.Request) (query.Params, error) {
	q := r.URL.Query()
	params := query.Params{
		Filter:   application.Filter{Search: q.Get("search")},
		Sort:     application.ParseSort(q.Get("sort")),
		Page:     1,
		PageSize: query.DefaultPageSize,
	}

	if v := q.Get("status"); v != "" {
		s, err := application.ParseStatus(v)
		if err != nil {
			return params, &application.ValidationError{Msg: err.Error()}
		}
		params.Filter.Status = s
	}
	if v := q.Get("jobType"); v != "" {
		jt, err := application.ParseJobType(v)
		if err != nil {
			return params, &application.ValidationError{Msg: err.Error()}
		}
		params.Filter.JobType = jt
	}
	if v := q.Get("priority"); v != "" {
		p, err := application.ParsePriority(v)
		if err != nil {
			return params, &application.ValidationError{Msg: err.Error()}
		}
		params.Filter.Priority = p
	}

	for key, dst := range map[string]*int{"page": &params.Page, "limit": &params.PageSize} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return params, &application.ValidationError{Msg: key + " must be an integer"}
		}
		*dst = n
	}
	return params, nil
}
