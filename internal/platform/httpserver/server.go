package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	voteadmission "crowdstage/contexts/trust-safety/vote-admission"
	admissionerrors "crowdstage/contexts/trust-safety/vote-admission/domain/errors"
	admissionhttp "crowdstage/contexts/trust-safety/vote-admission/transport/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "crowdstage/internal/platform/httpserver/docs"
)

type Server struct {
	mux            *http.ServeMux
	logger         *slog.Logger
	addr           string
	admission      voteadmission.Module
	metrics        *Metrics
	swaggerEnabled bool
}

func New(
	admission voteadmission.Module,
	metrics *Metrics,
	logger *slog.Logger,
	addr string,
	swaggerEnabled bool,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}
	if metrics == nil {
		metrics = NewMetrics()
	}

	s := &Server{
		mux:            http.NewServeMux(),
		logger:         logger,
		addr:           addr,
		admission:      admission,
		metrics:        metrics,
		swaggerEnabled: swaggerEnabled,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the route table for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	if s.swaggerEnabled {
		s.mux.Handle("/swagger/", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.mux.HandleFunc("POST /api/voting/v1/votes", s.instrument("cast_vote", s.handleCastVote))
	s.mux.HandleFunc("GET /api/voting/v1/votes", s.instrument("voter_history", s.handleVoterHistory))
	s.mux.HandleFunc("GET /api/voting/v1/leaderboard", s.instrument("leaderboard", s.handleLeaderboard))
	s.mux.HandleFunc("GET /api/voting/v1/stats", s.instrument("stats", s.handleStats))
	s.mux.HandleFunc("GET /api/voting/v1/moderation/flags", s.instrument("flag_queue", s.handleFlagQueue))
	s.mux.HandleFunc("POST /api/voting/v1/moderation/flags/{vote_id}", s.instrument("resolve_flag", s.handleResolveFlag))
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var req admissionhttp.CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAdmissionError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if strings.TrimSpace(req.IPAddress) == "" {
		req.IPAddress = resolveClientIP(r)
	}
	if strings.TrimSpace(req.UserAgent) == "" {
		req.UserAgent = r.UserAgent()
	}

	resp, err := s.admission.Handler.CastVoteHandler(r.Context(), req)
	if err != nil {
		if errors.Is(err, admissionerrors.ErrInvalidAttempt) {
			s.metrics.IncAdmissionOutcome("rejected", "INVALID_ATTEMPT")
			writeJSON(w, http.StatusBadRequest, admissionhttp.VoteDecisionResponse{
				Status: "rejected",
				Reason: "INVALID_ATTEMPT",
			})
			return
		}
		writeAdmissionDomainError(w, err)
		return
	}
	s.metrics.IncAdmissionOutcome(resp.Status, resp.Reason)
	writeJSON(w, decisionStatusCode(resp), resp)
}

func (s *Server) handleVoterHistory(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeAdmissionError(w, http.StatusBadRequest, "missing_email", "email query parameter is required")
		return
	}
	resp, err := s.admission.Handler.VoterHistoryHandler(r.Context(), email)
	if err != nil {
		writeAdmissionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	contentType := r.URL.Query().Get("content_type")
	resp, err := s.admission.Handler.LeaderboardHandler(r.Context(), contentType)
	if err != nil {
		writeAdmissionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp, err := s.admission.Handler.StatsHandler(r.Context())
	if err != nil {
		writeAdmissionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFlagQueue(w http.ResponseWriter, r *http.Request) {
	resp, err := s.admission.Handler.FlagQueueHandler(r.Context())
	if err != nil {
		writeAdmissionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResolveFlag(w http.ResponseWriter, r *http.Request) {
	actorID := r.Header.Get("X-User-Id")
	if strings.TrimSpace(actorID) == "" {
		writeAdmissionError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req admissionhttp.ResolveFlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAdmissionError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	voteID := r.PathValue("vote_id")
	if err := s.admission.Handler.ResolveFlagHandler(r.Context(), voteID, actorID, req); err != nil {
		writeAdmissionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

func decisionStatusCode(resp admissionhttp.VoteDecisionResponse) int {
	if resp.Status != "rejected" {
		return http.StatusCreated
	}
	switch resp.Reason {
	case "DUPLICATE_VOTE":
		return http.StatusConflict
	case "RATE_LIMITED":
		return http.StatusTooManyRequests
	case "LOW_TRUST_SCORE":
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}

func writeAdmissionDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, admissionerrors.ErrInvalidAttempt),
		errors.Is(err, admissionerrors.ErrInvalidListFilter),
		errors.Is(err, admissionerrors.ErrInvalidReviewAction):
		writeAdmissionError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, admissionerrors.ErrTargetNotFound),
		errors.Is(err, admissionerrors.ErrVoteNotFound):
		writeAdmissionError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, admissionerrors.ErrVoteNotFlagged),
		errors.Is(err, admissionerrors.ErrConflict),
		errors.Is(err, admissionerrors.ErrDuplicateLedgerEntry):
		writeAdmissionError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writeAdmissionError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeAdmissionError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, admissionhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func resolveClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.IndexByte(forwarded, ','); idx >= 0 {
			return strings.TrimSpace(forwarded[:idx])
		}
		return strings.TrimSpace(forwarded)
	}
	host := r.RemoteAddr
	if idx := strings.LastIndexByte(host, ':'); idx >= 0 {
		host = host[:idx]
	}
	return strings.Trim(host, "[]")
}
