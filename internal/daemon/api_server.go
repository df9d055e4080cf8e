package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"applyq/internal/config"
	"applyq/internal/dashboard"
	"applyq/internal/logging"
	"applyq/internal/manager"
	"applyq/internal/services/jobsearch"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/dashboard", srv.handleDashboard)
	mux.HandleFunc("/api/dashboard/", srv.handleDashboardView)
	mux.HandleFunc("/api/search", srv.handleSearch)
	mux.HandleFunc("/api/generate", srv.handleGenerate)
	mux.HandleFunc("/api/jobs/select", srv.handleSelect)
	mux.HandleFunc("/api/jobs/external", srv.handleExternal)
	mux.HandleFunc("/api/jobs/", srv.handleJobAction)
	mux.HandleFunc("/api/progress", srv.handleProgress)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", slog.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Status())
}

func (s *apiServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	doc, err := s.daemon.manager.Snapshot()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, dashboard.Project(doc))
}

func (s *apiServer) handleDashboardView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	name, err := dashboard.ParseViewName(strings.TrimPrefix(r.URL.Path, "/api/dashboard/"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	doc, err := s.daemon.manager.Snapshot()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	view, err := dashboard.ProjectView(doc, name)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

type searchRequest struct {
	DatePosted string `json:"date_posted"`
	NumPages   int    `json:"num_pages"`
	MinScore   int    `json:"min_score"`
	SortBy     string `json:"sort_by"`
}

func (s *apiServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	filters := s.daemon.defaultFilters()
	if r.Body != nil && r.ContentLength != 0 {
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		filters = mergeFilters(filters, req)
	}

	runID, err := s.daemon.manager.StartSearch(s.daemon.backgroundContext(), filters)
	if err != nil {
		s.writeManagerError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

func mergeFilters(base jobsearch.Filters, req searchRequest) jobsearch.Filters {
	if req.DatePosted != "" {
		base.DatePosted = req.DatePosted
	}
	if req.NumPages > 0 {
		base.NumPages = req.NumPages
	}
	if req.MinScore > 0 {
		base.MinScore = req.MinScore
	}
	if req.SortBy != "" {
		base.SortBy = req.SortBy
	}
	return base
}

func (s *apiServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	batch, err := s.daemon.manager.GenerateSelected(s.daemon.backgroundContext())
	if err != nil {
		s.writeManagerError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]int{"batch_size": batch})
}

func (s *apiServer) handleSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		JobIDs []string `json:"job_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.daemon.manager.SelectJobs(req.JobIDs); err != nil {
		s.writeManagerError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"selected": len(req.JobIDs)})
}

func (s *apiServer) handleExternal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		Title        string  `json:"title"`
		Company      string  `json:"company"`
		JobURL       string  `json:"job_url"`
		OutputFolder string  `json:"output_folder"`
		ResumeScore  float64 `json:"resume_score"`
		Source       string  `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	jobID, err := s.daemon.manager.RegisterExternalJob(manager.ExternalJob{
		Title:        req.Title,
		Company:      req.Company,
		JobURL:       req.JobURL,
		OutputFolder: req.OutputFolder,
		ResumeScore:  req.ResumeScore,
		Source:       req.Source,
	})
	if err != nil {
		s.writeManagerError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"job_id": jobID})
}

// handleJobAction routes POST /api/jobs/{id}/{action} and GET /api/jobs/{id}.
func (s *apiServer) handleJobAction(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	jobID, action, _ := strings.Cut(rest, "/")
	if jobID == "" {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}

	if action == "" {
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		job, err := s.daemon.manager.Job(jobID)
		if err != nil {
			s.writeManagerError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, job)
		return
	}

	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var err error
	var payload any
	switch action {
	case "generate":
		err = s.daemon.manager.GenerateOne(s.daemon.backgroundContext(), jobID)
	case "skip":
		var req struct {
			Reason string `json:"reason"`
		}
		if r.Body != nil && r.ContentLength != 0 {
			if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
				s.writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}
		err = s.daemon.manager.Skip(jobID, req.Reason)
	case "retry":
		err = s.daemon.manager.Retry(jobID)
	case "cancel":
		err = s.daemon.manager.Cancel(jobID)
	case "applied":
		err = s.daemon.manager.MarkApplied(jobID)
	case "cover-letter":
		var path string
		path, err = s.daemon.manager.CoverLetter(r.Context(), jobID)
		payload = map[string]string{"path": path}
	case "outreach":
		var path string
		path, err = s.daemon.manager.OutreachMessage(r.Context(), jobID)
		payload = map[string]string{"path": path}
	default:
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown action %q", action))
		return
	}
	if err != nil {
		s.writeManagerError(w, err)
		return
	}
	if payload == nil {
		payload = map[string]string{"job_id": jobID, "action": action}
	}
	s.writeJSON(w, http.StatusOK, payload)
}

// handleProgress long-polls the progress stream: it waits up to the timeout
// for a first event, then drains whatever else is buffered.
func (s *apiServer) handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	wait := 25 * time.Second
	if value := strings.TrimSpace(r.URL.Query().Get("timeout")); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 && parsed < time.Minute {
			wait = parsed
		}
	}

	events, cancel := s.daemon.manager.Progress().Subscribe()
	defer cancel()

	collected := []manager.Event{}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case event := <-events:
		collected = append(collected, event)
	case <-timer.C:
	case <-r.Context().Done():
	}

	for {
		select {
		case event := <-events:
			collected = append(collected, event)
			continue
		default:
		}
		break
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"events": collected})
}

func (s *apiServer) writeManagerError(w http.ResponseWriter, err error) {
	var transitionErr *manager.TransitionError
	switch {
	case errors.Is(err, manager.ErrBusy):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, manager.ErrJobNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &transitionErr):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.NewComponentLogger(s.logger, "api-server")
	}
	return logging.NewNop()
}
