// Package api exposes the per-solver competition over HTTP: POST /solve,
// POST /settle, and a best-effort websocket event stream for observability.
package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/auctiondriver/driver/pkg/domain/auction"
	"github.com/auctiondriver/driver/pkg/domain/competition"
)

// Server is the HTTP front door for one solver's Competition.
type Server struct {
	competition *competition.Competition
	log         *zap.Logger
	router      *mux.Router
	hub         *Hub
}

// NewServer wires the routes for a Competition. allowedOrigins is accepted
// but not applied: CORS allows every origin and the observability
// websocket accepts connections from any origin. The /solve and /settle
// endpoints are same-origin-agnostic since only the protocol's own
// autopilot calls them.
func NewServer(c *competition.Competition, logger *zap.Logger, allowedOrigins []string) *Server {
	s := &Server{
		competition: c,
		log:         logger,
		router:      mux.NewRouter(),
		hub:         NewHub(),
	}
	s.setupRoutes()
	_ = allowedOrigins
	return s
}

// SetCompetition binds the Competition this server fronts. It exists
// because the Competition's Observer typically wraps this same Server as a
// websocket broadcaster, so the two must be constructed in two steps: the
// server first (as a Broadcaster), then the Competition, then this call.
func (s *Server) SetCompetition(c *competition.Competition) {
	s.competition = c
}

// BroadcastToChannel implements observe.Broadcaster by forwarding to this
// server's websocket hub.
func (s *Server) BroadcastToChannel(channel string, data interface{}) {
	s.hub.BroadcastToChannel(channel, data)
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/solve", s.handleSolve).Methods(http.MethodPost)
	s.router.HandleFunc("/settle", s.handleSettle).Methods(http.MethodPost)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/events", s.handleWebSocket)
}

// Start runs the HTTP server. It blocks until the context is cancelled or
// the server returns an unrecoverable error.
func (s *Server) Start(ctx context.Context, addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
	})

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           c.Handler(s.router),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api server starting", zap.String("addr", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	var req SolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	a, err := ToAuction(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_auction", err.Error())
		return
	}

	reveal, err := s.competition.Solve(r.Context(), a)
	switch {
	case err == nil:
		// fallthrough to success response below
	case errors.Is(err, auction.ErrDeadlineExceeded):
		respondError(w, http.StatusRequestTimeout, "deadline_exceeded", err.Error())
		return
	case errors.Is(err, competition.ErrSolutionNotFound):
		respondError(w, http.StatusInternalServerError, "solution_not_found", err.Error())
		return
	default:
		s.log.Error("solve failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	orders := make([]string, 0, len(reveal.Orders))
	for uid := range reveal.Orders {
		orders = append(orders, uid.String())
	}

	var id *uint64
	if a.ID != nil {
		v := uint64(*a.ID)
		id = &v
	}

	s.hub.BroadcastToChannel("events", Event{Type: "revealed", Data: RevealedEvent{
		Solver: s.solverName(),
		Score:  reveal.Score.Value.String(),
		Orders: orders,
	}})

	respondJSON(w, http.StatusOK, SolveResponse{
		Id:     id,
		Score:  reveal.Score.Value.String(),
		Orders: orders,
	})
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	calldata, err := s.competition.Settle(r.Context())
	if err != nil {
		if errors.Is(err, competition.ErrSolutionNotAvailable) {
			respondError(w, http.StatusBadRequest, "no_reserved_solution", err.Error())
			return
		}
		s.log.Error("settle failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	s.hub.BroadcastToChannel("events", Event{Type: "settled", Data: SettledEvent{Solver: s.solverName()}})

	respondJSON(w, http.StatusOK, SettleResponse{
		Internalized:   "0x" + hex.EncodeToString(calldata.Internalized),
		Uninternalized: "0x" + hex.EncodeToString(calldata.Uninternalized),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) solverName() string {
	if s.competition == nil || s.competition.SolverClient == nil {
		return ""
	}
	return s.competition.SolverClient.Name()
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, kind string, message string) {
	respondJSON(w, status, ErrorResponse{Kind: kind, Message: message})
}
