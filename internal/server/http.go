package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/humanproof/server/internal/challenge"
	"github.com/humanproof/server/internal/metrics"
	"github.com/humanproof/server/internal/token"
	"github.com/humanproof/server/internal/verify"
)

// Server exposes the verification engine over HTTP.
type Server struct {
	engine  *verify.Engine
	tokens  *token.Issuer
	limiter *rateLimiter
	log     *logrus.Entry
}

// New wires the HTTP surface.
func New(engine *verify.Engine, tokens *token.Issuer, ratePerMinute int) *Server {
	return &Server{
		engine:  engine,
		tokens:  tokens,
		limiter: newRateLimiter(ratePerMinute),
		log:     logrus.WithField("component", "http"),
	}
}

// Router builds the chi router with middleware and routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS for the collector widget.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", s.handleStartSession)
		r.With(s.limiter.limit).Post("/sessions/{id}/events", s.handleRecordEvents)
		r.Get("/sessions/{id}/assessment", s.handleAssessment)
		r.Post("/sessions/{id}/challenge", s.handleRequestChallenge)
		r.Post("/sessions/{id}/challenge/response", s.handleChallengeResponse)
		r.Post("/token/verify", s.handleTokenVerify)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	id := s.engine.StartSession(r.Context())
	writeJSON(w, http.StatusCreated, map[string]string{"sessionId": id})
}

type recordRequest struct {
	Events []verify.TelemetryEvent `json:"events"`
}

func (s *Server) handleRecordEvents(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.engine.Record(r.Context(), id, req.Events); err != nil {
		s.writeError(w, err)
		return
	}

	state, err := s.engine.State(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"state": string(state)})
}

func (s *Server) handleAssessment(w http.ResponseWriter, r *http.Request) {
	assessment, err := s.engine.GetAssessment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assessment)
}

type challengeRequest struct {
	Type string `json:"type,omitempty"`
}

func (s *Server) handleRequestChallenge(w http.ResponseWriter, r *http.Request) {
	var req challengeRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	ch, err := s.engine.RequestChallenge(r.Context(), chi.URLParam(r, "id"), req.Type)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ch)
}

func (s *Server) handleChallengeResponse(w http.ResponseWriter, r *http.Request) {
	var resp challenge.Response
	if err := json.NewDecoder(r.Body).Decode(&resp); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	outcome, err := s.engine.SubmitChallengeResponse(r.Context(), chi.URLParam(r, "id"), &resp)
	if errors.Is(err, challenge.ErrExpired) {
		// The session is finalized; report the verdict with the expiry status.
		writeJSON(w, http.StatusGone, outcome)
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

type tokenVerifyRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleTokenVerify(w http.ResponseWriter, r *http.Request) {
	var req tokenVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.tokens.Verify(req.Token))
}

// writeError maps engine errors onto HTTP statuses. Caller-input errors pass
// through; everything else is a 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, verify.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, challenge.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, challenge.ErrUnknownType):
		status = http.StatusBadRequest
	case errors.Is(err, challenge.ErrExpired):
		status = http.StatusGone
	case errors.Is(err, verify.ErrSessionResolved):
		status = http.StatusConflict
	default:
		s.log.WithError(err).Error("request failed")
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
