package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io/fs"
	"net"
	"net/http"
	"time"

	"daycard/internal/config"
	appLog "daycard/internal/log"
	"daycard/internal/metrics"
	"daycard/internal/model"
)

// EventLister is the read side of the Event Store.
type EventLister interface {
	ListTodaysEvents() []model.Event
}

// TaskStore is the Task Store as the card uses it.
type TaskStore interface {
	List() []model.Task
	Remaining() int
	Add(ctx context.Context, title string) (model.Task, bool)
	Toggle(ctx context.Context, id string) (model.Task, bool)
	Delete(ctx context.Context, id string) bool
}

// PermissionGate is the notification gate's permission side.
type PermissionGate interface {
	Permission() model.Permission
	RequestPermission(ctx context.Context) model.Permission
}

// PermissionSetter lets the card answer for a headless platform.
type PermissionSetter interface {
	Set(p model.Permission)
}

// Deps are the services the server presents. Notifications and Permissions
// are optional.
type Deps struct {
	Events        EventLister
	Tasks         TaskStore
	Gate          PermissionGate
	Notifications http.Handler
	Permissions   PermissionSetter
}

// Server renders the card and serves its JSON API.
type Server struct {
	cfg  *config.Config
	deps Deps
	loc  *time.Location
	now  func() time.Time
	mux  *http.ServeMux
	card *template.Template
}

//go:embed all:static
var embeddedStatic embed.FS

//go:embed templates/card.html.tmpl
var cardTemplate string

func NewServer(cfg *config.Config, deps Deps) *Server {
	loc, err := cfg.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", cfg.Timezone)
	}
	s := &Server{
		cfg:  cfg,
		deps: deps,
		loc:  loc,
		now:  time.Now,
		mux:  http.NewServeMux(),
		card: template.Must(template.New("card").Funcs(templateFuncs).Parse(cardTemplate)),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root handler, wrapped with basic auth when enabled.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Run serves on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		appLog.Info("shutting down HTTP server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="daycard", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /{$}", s.handleCard)

	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	s.mux.HandleFunc("POST /api/tasks", s.handleAddTask)
	s.mux.HandleFunc("POST /api/tasks/{id}/toggle", s.handleToggleTask)
	s.mux.HandleFunc("DELETE /api/tasks/{id}", s.handleDeleteTask)
	s.mux.HandleFunc("GET /api/notifications/permission", s.handlePermission)
	s.mux.HandleFunc("POST /api/notifications/permission", s.handleRequestPermission)

	if s.deps.Notifications != nil {
		s.mux.Handle("GET /ws", s.deps.Notifications)
	}
	s.mux.Handle("GET /metrics", metrics.Handler())
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", s.staticFileServer()))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// staticFileServer serves the embedded card assets.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static assets not available", http.StatusServiceUnavailable)
		})
	}
	return http.FileServer(http.FS(sub))
}

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, eventsResponse{
		Date:     s.today().Format(time.DateOnly),
		Timezone: s.loc.String(),
		Events:   s.deps.Events.ListTodaysEvents(),
	})
}

func (s *Server) handleListTasks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, tasksResponse{
		Tasks:     s.deps.Tasks.List(),
		Remaining: s.deps.Tasks.Remaining(),
	})
}

func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	var req addTaskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	task, ok := s.deps.Tasks.Add(r.Context(), req.Title)
	if !ok {
		writeError(w, http.StatusBadRequest, "title must not be blank")
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleToggleTask(w http.ResponseWriter, r *http.Request) {
	task, ok := s.deps.Tasks.Toggle(r.Context(), r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleDeleteTask always answers 204: deleting an unknown task is a no-op.
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	s.deps.Tasks.Delete(r.Context(), r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePermission(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, permissionResponse{Permission: s.deps.Gate.Permission()})
}

// handleRequestPermission asks the platform for permission. With a headless
// platform the body may carry the answer directly.
func (s *Server) handleRequestPermission(w http.ResponseWriter, r *http.Request) {
	var req permissionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	if req.Permission != "" && s.deps.Permissions != nil {
		if cur := s.deps.Gate.Permission(); !cur.Determined() {
			s.deps.Permissions.Set(model.ParsePermission(req.Permission))
		}
	}
	writeJSON(w, http.StatusOK, permissionResponse{Permission: s.deps.Gate.RequestPermission(r.Context())})
}

func (s *Server) today() time.Time {
	return s.now().In(s.loc)
}

type eventsResponse struct {
	Date     string        `json:"date"`
	Timezone string        `json:"timezone"`
	Events   []model.Event `json:"events"`
}

type tasksResponse struct {
	Tasks     []model.Task `json:"tasks"`
	Remaining int          `json:"remaining"`
}

type addTaskRequest struct {
	Title string `json:"title"`
}

type permissionRequest struct {
	Permission string `json:"permission"`
}

type permissionResponse struct {
	Permission model.Permission `json:"permission"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
