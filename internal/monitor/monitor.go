// Package monitor runs the detection cycle: recompute every active
// position's execution probability on a fixed interval, persist the
// refreshed values, and hand out-of-band positions to the rebalance path.
package monitor

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ycwei/probroll/internal/broker"
	"github.com/ycwei/probroll/internal/dist"
	"github.com/ycwei/probroll/internal/models"
	"github.com/ycwei/probroll/internal/storage"
	"github.com/ycwei/probroll/internal/strategy"
)

// RollExecutor replaces an out-of-band leg. *orders.Manager satisfies this.
type RollExecutor interface {
	ExecuteRoll(ctx context.Context, d models.AdjustmentDecision) (*models.Position, error)
}

// Config tunes the detection cycle.
type Config struct {
	Symbol   string
	Interval time.Duration
	WinRate  float64 // default target win rate, percent
	ProbLow  float64 // default band lower bound, percent
	ProbHigh float64 // default band upper bound, percent

	// InWindow gates cycles to trading hours. Nil means always on.
	InWindow func(time.Time) bool
}

// Monitor owns the cycle loop.
type Monitor struct {
	cfg      Config
	series   *dist.PriceSeries
	selector *strategy.Selector
	broker   broker.Broker
	store    storage.Interface
	roller   RollExecutor
	logger   *log.Logger
	now      func() time.Time
}

// New wires a Monitor. The selector is built over the same price series
// the probability refresh uses.
func New(cfg Config, series *dist.PriceSeries, b broker.Broker, store storage.Interface, roller RollExecutor, logger *log.Logger) *Monitor {
	if logger == nil {
		logger = log.New(os.Stderr, "monitor: ", log.LstdFlags)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	return &Monitor{
		cfg:      cfg,
		series:   series,
		selector: strategy.NewSelector(series),
		broker:   b,
		store:    store,
		roller:   roller,
		logger:   logger,
		now:      time.Now,
	}
}

// Run loops until the context is cancelled, executing one cycle per tick.
// Cycle errors are logged, never fatal.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.logger.Printf("Monitoring %s every %v", m.cfg.Symbol, m.cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			m.logger.Printf("Monitor stopping: %v", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			if m.cfg.InWindow != nil && !m.cfg.InWindow(m.now()) {
				continue
			}
			if err := m.RunCycle(ctx); err != nil {
				m.logger.Printf("Cycle failed: %v", err)
			}
		}
	}
}

// RunCycle executes one detection pass over the active positions.
func (m *Monitor) RunCycle(ctx context.Context) error {
	// Reading active positions auto-closes anything past expiration.
	active := m.store.ActivePositions()
	if len(active) == 0 {
		return nil
	}

	spot, ladders, err := m.fetchMarket(ctx, active)
	if err != nil {
		return fmt.Errorf("fetching market data: %w", err)
	}

	for i := range active {
		pos := active[i]
		if err := m.checkPosition(ctx, pos, spot, ladders[pos.Expiration]); err != nil {
			// One bad position must not starve the rest of the book.
			m.logger.Printf("Position %s (%s): %v", pos.ID, pos.ContractLabel(), err)
		}
	}

	if err := m.store.Save(); err != nil {
		return fmt.Errorf("persisting ledger: %w", err)
	}
	return nil
}

// fetchMarket pulls the quote and one strike ladder per expiration in
// parallel.
func (m *Monitor) fetchMarket(ctx context.Context, active []models.Position) (float64, map[time.Time][]float64, error) {
	expirations := make(map[time.Time]struct{})
	for _, p := range active {
		expirations[p.Expiration] = struct{}{}
	}

	var spot float64
	ladders := make(map[time.Time][]float64, len(expirations))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		quote, err := m.broker.GetQuote(gctx, m.cfg.Symbol)
		if err != nil || quote <= 0 {
			// A dead quote feed falls back to the last historical
			// close so the book keeps being monitored.
			last, lastErr := m.series.LastClose()
			if lastErr != nil {
				return fmt.Errorf("quote unavailable and no historical close: %w", lastErr)
			}
			m.logger.Printf("Quote for %s unavailable (%v), using last close %.2f", m.cfg.Symbol, err, last)
			spot = last
			return nil
		}
		spot = quote
		return nil
	})

	var mu sync.Mutex
	for exp := range expirations {
		exp := exp
		g.Go(func() error {
			strikes, err := m.broker.GetStrikes(gctx, m.cfg.Symbol, exp)
			if err != nil {
				// A missing ladder only blocks reselection for this
				// expiry; probability refreshes still run.
				m.logger.Printf("Strike ladder for %s %s unavailable: %v",
					m.cfg.Symbol, exp.Format("2006-01-02"), err)
				return nil
			}
			mu.Lock()
			ladders[exp] = strikes
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, nil, err
	}
	return spot, ladders, nil
}

// checkPosition refreshes one leg's probability, persists it, and rolls
// when the band is breached.
func (m *Monitor) checkPosition(ctx context.Context, pos models.Position, spot float64, ladder []float64) error {
	days := strategy.HorizonDays(models.DaysUntil(m.now(), pos.Expiration))

	prob, err := m.series.ExecutionProbability(spot, pos.Strike, pos.Side, days)
	if err != nil {
		// Stale or short history: leave the stored probability alone and
		// keep the position under watch.
		return fmt.Errorf("probability refresh: %w", err)
	}

	if err := m.store.UpdateExecProb(pos.ID, prob); err != nil {
		return fmt.Errorf("persisting probability: %w", err)
	}

	probLow, probHigh := m.band(pos)
	breach := models.ClassifyExecProb(prob, probLow, probHigh)
	if !breach.OutOfBand() {
		return nil
	}
	m.logger.Printf("Position %s out of band: prob %.2f%% outside [%.2f%%, %.2f%%]",
		pos.ContractLabel(), prob*100, probLow, probHigh)

	decision, err := m.buildDecision(pos, spot, ladder, days, breach)
	if err != nil {
		return fmt.Errorf("building rebalance decision: %w", err)
	}

	if _, err := m.roller.ExecuteRoll(ctx, *decision); err != nil {
		return fmt.Errorf("executing roll: %w", err)
	}
	return nil
}

// buildDecision reselects the strike for the breached side.
func (m *Monitor) buildDecision(pos models.Position, spot float64, ladder []float64, days int, breach models.BandBreach) (*models.AdjustmentDecision, error) {
	winRate := pos.WinRate
	if winRate <= 0 {
		winRate = m.cfg.WinRate
	}

	sel, err := m.selector.Select(pos.Side, spot, ladder, days, winRate)
	if err != nil {
		return nil, err
	}

	return &models.AdjustmentDecision{
		Position:    pos,
		Breach:      breach,
		NewStrike:   sel.Strike,
		NewExecProb: sel.Prob,
		Quantity:    pos.Quantity,
		Expiration:  pos.Expiration,
		SpotPrice:   spot,
		DecidedAt:   m.now().UTC(),
	}, nil
}

// band returns the position's acceptance band, falling back to the
// configured defaults for rows written before bands were stored.
func (m *Monitor) band(pos models.Position) (float64, float64) {
	if pos.ProbHigh > 0 {
		return pos.ProbLow, pos.ProbHigh
	}
	return m.cfg.ProbLow, m.cfg.ProbHigh
}
