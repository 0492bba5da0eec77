// Package dashboard serves a read-mostly JSON view of the ledger for
// operators watching the engine from a browser or curl.
package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/ycwei/probroll/internal/broker"
	"github.com/ycwei/probroll/internal/models"
	"github.com/ycwei/probroll/internal/storage"
)

type Server struct {
	router    *chi.Mux
	server    *http.Server
	storage   storage.Interface
	broker    broker.Broker
	logger    *logrus.Logger
	addr      string
	authToken string
}

type Config struct {
	Addr      string
	AuthToken string
}

// PositionView flattens a ledger row for display. Probabilities are
// reported in percent to match the band configuration.
type PositionView struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Contract    string    `json:"contract"`
	Status      string    `json:"status"`
	Quantity    int       `json:"quantity"`
	Strike      float64   `json:"strike"`
	Expiration  time.Time `json:"expiration"`
	DTE         int       `json:"dte"`
	EntryDate   time.Time `json:"entry_date"`
	ExitReason  string    `json:"exit_reason,omitempty"`
	ExecProbPct float64   `json:"exec_prob_pct"`
	ProbLow     float64   `json:"prob_low"`
	ProbHigh    float64   `json:"prob_high"`
	OutOfBand   bool      `json:"out_of_band"`
}

type statusResponse struct {
	Positions   []PositionView      `json:"positions"`
	Stats       *storage.Statistics `json:"stats"`
	BuyingPower float64             `json:"buying_power"`
	Timestamp   time.Time           `json:"timestamp"`
}

type payoffRequest struct {
	Plan  models.CondorPlan `json:"plan"`
	Low   float64           `json:"low"`
	High  float64           `json:"high"`
	Steps int               `json:"steps"`
}

type payoffResponse struct {
	LockedProfit   float64              `json:"locked_profit"`
	RequiredSecond float64              `json:"required_second_sell"`
	Locked         bool                 `json:"locked"`
	Breakevens     []float64            `json:"breakevens"`
	Series         []models.PayoffPoint `json:"series"`
}

func NewServer(cfg Config, store storage.Interface, b broker.Broker, logger *logrus.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		storage:   store,
		broker:    b,
		logger:    logger,
		addr:      cfg.Addr,
		authToken: cfg.AuthToken,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))

	if s.authToken != "" {
		s.router.Use(s.authMiddleware)
	}

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/api/status", s.handleStatus)
	s.router.Get("/api/positions", s.handlePositions)
	s.router.Get("/api/positions/{id}", s.handlePosition)
	s.router.Get("/api/history", s.handleHistory)
	s.router.Get("/api/stats", s.handleStats)
	s.router.Post("/api/condor/payoff", s.handleCondorPayoff)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token != s.authToken {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Infof("Starting dashboard on %s", s.addr)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	buyingPower, err := s.broker.GetBuyingPower(r.Context())
	if err != nil {
		s.logger.WithError(err).Warn("Failed to fetch buying power")
		buyingPower = 0
	}

	s.writeJSON(w, statusResponse{
		Positions:   viewsOf(s.storage.ActivePositions()),
		Stats:       s.storage.Statistics(),
		BuyingPower: buyingPower,
		Timestamp:   time.Now(),
	})
}

func (s *Server) handlePositions(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, viewsOf(s.storage.ActivePositions()))
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pos, found := s.storage.GetPositionByID(id)
	if !found {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, viewOf(*pos))
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, viewsOf(s.storage.History()))
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.storage.Statistics())
}

// handleCondorPayoff prices a four-leg plan supplied by the caller and
// returns its locked profit, breakevens and sampled payoff curve.
func (s *Server) handleCondorPayoff(w http.ResponseWriter, r *http.Request) {
	var req payoffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.Plan.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	low, high, steps := req.Low, req.High, req.Steps
	if low <= 0 || high <= low {
		// Center a default window on the first sell strike.
		anchor := req.Plan.Leg(models.LegSellOne).Strike
		width := 4 * req.Plan.WingWidth
		low, high = anchor-width, anchor+width
	}
	if steps < 2 {
		steps = 100
	}

	s.writeJSON(w, payoffResponse{
		LockedProfit:   req.Plan.LockedProfit(),
		RequiredSecond: req.Plan.RequiredSellTwo(),
		Locked:         req.Plan.Locked(),
		Breakevens:     req.Plan.Breakevens(low, high),
		Series:         req.Plan.PayoffSeries(low, high, steps),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func viewsOf(positions []models.Position) []PositionView {
	views := make([]PositionView, 0, len(positions))
	for _, pos := range positions {
		views = append(views, viewOf(pos))
	}
	return views
}

func viewOf(pos models.Position) PositionView {
	probPct := pos.ExecProb * 100
	outOfBand := false
	if pos.ProbHigh > 0 {
		outOfBand = models.ClassifyExecProb(pos.ExecProb, pos.ProbLow, pos.ProbHigh).OutOfBand()
	}
	return PositionView{
		ID:          pos.ID,
		Symbol:      pos.Symbol,
		Contract:    pos.ContractLabel(),
		Status:      string(pos.Status),
		Quantity:    pos.Quantity,
		Strike:      pos.Strike,
		Expiration:  pos.Expiration,
		DTE:         pos.CalculateDTE(),
		EntryDate:   pos.EntryDate,
		ExitReason:  pos.ExitReason,
		ExecProbPct: probPct,
		ProbLow:     pos.ProbLow,
		ProbHigh:    pos.ProbHigh,
		OutOfBand:   outOfBand,
	}
}
