package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"guessrank/internal/api"
	"guessrank/internal/config"
	"guessrank/internal/logging"
	"guessrank/internal/services"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

// newAPIServer returns nil when no bind address is configured.
func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}
	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(cfg.Paths.APIToken),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes(token string) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	if m := s.daemon.comp.Metrics; m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}
	r.Route("/api", func(r chi.Router) {
		r.Use(requireToken(token))
		r.Get("/status", s.handleStatus)
		r.Route("/guilds/{guildID}", func(r chi.Router) {
			r.Get("/scoreboard", s.handleScoreboard)
			r.Get("/results", s.handleResults)
			r.Get("/results/{clipID}", s.handleResult)
			r.Get("/profiles/{userID}", s.handleProfile)
		})
	})
	return r
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
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.String(logging.FieldEventType, "api_listening"),
	)
	return nil
}

func (s *apiServer) stop() {
	if s == nil || s.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(ctx)
	s.listener = nil
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	summary := s.daemon.comp.Workflow.Status(r.Context())
	payload := map[string]any{
		"running": s.daemon.Running(),
		"ready":   summary.Ready(),
		"health":  api.StageHealthSlice(summary.Health),
	}
	status := http.StatusOK
	if !summary.Ready() {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, payload)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		StorePath:    status.StorePath,
		LockFilePath: status.LockFilePath,
		Guilds:       status.Guilds,
		Workflow:     api.FromStatusSummary(status.Workflow, status.Running),
		Dependencies: api.FromDependencies(status.Dependencies),
	}
	if !status.StartedAt.IsZero() {
		payload.StartedAt = status.StartedAt.UTC().Format(time.RFC3339)
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleScoreboard(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid page")
			return
		}
		page = parsed
	}
	board, err := s.daemon.comp.Commands.Scoreboard(r.Context(), chi.URLParam(r, "guildID"), page)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, board)
}

func (s *apiServer) handleResults(w http.ResponseWriter, r *http.Request) {
	results, err := s.daemon.comp.Commands.Results(r.Context(), chi.URLParam(r, "guildID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, results)
}

func (s *apiServer) handleResult(w http.ResponseWriter, r *http.Request) {
	result, err := s.daemon.comp.Commands.ResultDetail(r.Context(), chi.URLParam(r, "guildID"), chi.URLParam(r, "clipID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.daemon.comp.Commands.Profile(r.Context(), chi.URLParam(r, "guildID"), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, profile)
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, services.ErrConfiguration):
		return http.StatusConflict
	case errors.Is(err, services.ErrCapacity):
		return http.StatusTooManyRequests
	case errors.Is(err, services.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("api request failed", logging.Error(err), logging.ErrorKind(err))
	}
	s.writeError(w, status, services.UserMessage(err))
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
