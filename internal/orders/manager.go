// Package orders executes rebalance decisions against the brokerage and
// keeps the position ledger in step with the fills.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ycwei/probroll/internal/broker"
	"github.com/ycwei/probroll/internal/models"
	"github.com/ycwei/probroll/internal/storage"
)

// OrderPlacer submits market orders. *retry.Client satisfies this.
type OrderPlacer interface {
	PlaceMarketOrderWithRetry(ctx context.Context, ticket broker.OrderTicket) (*broker.OrderReceipt, error)
}

// OrderError marks a brokerage execution failure. The roll sequence never
// rolls back: a failed close leaves the old position standing, a failed
// reopen leaves the account flat on that side.
type OrderError struct {
	Op  string // "open", "close" or "reopen"
	Err error
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("order %s failed: %v", e.Op, e.Err)
}

func (e *OrderError) Unwrap() error { return e.Err }

// ErrHalfRolled is joined into the error when the close filled but the
// replacement leg could not be opened. The account is flat on that side
// and needs operator attention.
var ErrHalfRolled = errors.New("position closed without replacement")

// Config contains configuration for the order manager.
type Config struct {
	CallTimeout time.Duration
	// LegacyQuantity reopens rolled positions with a single contract
	// regardless of the closed quantity.
	LegacyQuantity bool
}

// DefaultConfig is the default configuration for the order manager.
var DefaultConfig = Config{
	CallTimeout:    30 * time.Second,
	LegacyQuantity: true,
}

// Manager turns decisions into fills and ledger writes.
type Manager struct {
	orders  OrderPlacer
	storage storage.Interface
	logger  *log.Logger
	config  Config
}

// NewManager creates a new order manager instance.
func NewManager(
	orders OrderPlacer,
	store storage.Interface,
	logger *log.Logger,
	config ...Config,
) *Manager {
	cfg := DefaultConfig
	if len(config) > 0 {
		cfg = config[0]
	}

	// Guard against nil logger
	if logger == nil {
		logger = log.New(os.Stderr, "orders: ", log.LstdFlags)
	}

	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultConfig.CallTimeout
	}

	// Validate required dependencies (fail fast to avoid later panics)
	if orders == nil {
		panic("orders.NewManager: order placer must not be nil")
	}
	if store == nil {
		panic("orders.NewManager: storage must not be nil")
	}

	return &Manager{
		orders:  orders,
		storage: store,
		logger:  logger,
		config:  cfg,
	}
}

// OpenParams describes a fresh short leg to sell.
type OpenParams struct {
	Symbol     string
	Side       models.Side
	Strike     float64
	Expiration time.Time
	Quantity   int
	SpotPrice  float64
	ExecProb   float64
	WinRate    float64
	ProbLow    float64
	ProbHigh   float64
	UsagePct   float64
}

// OpenPosition sells a new leg and records it as an active position.
func (m *Manager) OpenPosition(ctx context.Context, p OpenParams) (*models.Position, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.config.CallTimeout)
	defer cancel()

	ticket := broker.OrderTicket{
		Symbol:     p.Symbol,
		Side:       p.Side,
		Action:     models.ActionSell,
		Strike:     p.Strike,
		Expiration: p.Expiration,
		Quantity:   p.Quantity,
		Tag:        "open",
	}
	receipt, err := m.orders.PlaceMarketOrderWithRetry(callCtx, ticket)
	if err != nil {
		return nil, &OrderError{Op: "open", Err: err}
	}

	pos := models.NewPosition(uuid.NewString(), p.Symbol, p.Strike, p.Side, p.Expiration, p.Quantity)
	pos.EntryPremium = receipt.FillPrice
	pos.EntrySpot = p.SpotPrice
	pos.ExecProb = p.ExecProb
	pos.WinRate = p.WinRate
	pos.ProbLow = p.ProbLow
	pos.ProbHigh = p.ProbHigh
	pos.UsagePct = p.UsagePct

	if err := m.storage.AddPosition(pos); err != nil {
		m.logger.Printf("ALERT: order %s filled but position not recorded: %v", receipt.OrderID, err)
		return nil, fmt.Errorf("recording opened position: %w", err)
	}

	m.logger.Printf("Opened %s x%d at %.2f (order %s)", pos.ContractLabel(), pos.Quantity, receipt.FillPrice, receipt.OrderID)
	return pos, nil
}

// ExecuteRoll replaces an out-of-band leg: buy back the full quantity,
// close the ledger row, then sell the replacement strike and record it as
// a new, independent position. There is no rollback between the two legs.
func (m *Manager) ExecuteRoll(ctx context.Context, d models.AdjustmentDecision) (*models.Position, error) {
	old, ok := m.storage.GetPositionByID(d.Position.ID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrPositionNotFound, d.Position.ID)
	}
	if old.Status != models.StatusActive {
		return nil, fmt.Errorf("%w: %s", storage.ErrPositionClosed, old.ID)
	}

	// Buy back the old leg in full.
	closeCtx, cancel := context.WithTimeout(ctx, m.config.CallTimeout)
	closeTicket := broker.OrderTicket{
		Symbol:     old.Symbol,
		Side:       old.Side,
		Action:     models.ActionBuy,
		Strike:     old.Strike,
		Expiration: old.Expiration,
		Quantity:   old.Quantity,
		Tag:        "roll-close",
	}
	closeReceipt, err := m.orders.PlaceMarketOrderWithRetry(closeCtx, closeTicket)
	cancel()
	if err != nil {
		// The old leg is still on; the monitor flags it again next cycle.
		return nil, &OrderError{Op: "close", Err: err}
	}

	if err := m.storage.ClosePosition(old.ID, storage.ReasonOutOfBand); err != nil {
		m.logger.Printf("ALERT: close order %s filled but ledger close failed for %s: %v",
			closeReceipt.OrderID, old.ID, err)
		return nil, fmt.Errorf("closing ledger row %s: %w", old.ID, err)
	}
	m.logger.Printf("Closed %s x%d at %.2f (%s, order %s)",
		old.ContractLabel(), old.Quantity, closeReceipt.FillPrice, d.Breach, closeReceipt.OrderID)

	quantity := d.Quantity
	if m.config.LegacyQuantity || quantity <= 0 {
		quantity = 1
	}

	// Sell the replacement strike.
	reopenCtx, cancel := context.WithTimeout(ctx, m.config.CallTimeout)
	reopenTicket := broker.OrderTicket{
		Symbol:     old.Symbol,
		Side:       old.Side,
		Action:     models.ActionSell,
		Strike:     d.NewStrike,
		Expiration: old.Expiration,
		Quantity:   quantity,
		Tag:        "roll-open",
	}
	reopenReceipt, err := m.orders.PlaceMarketOrderWithRetry(reopenCtx, reopenTicket)
	cancel()
	if err != nil {
		m.logger.Printf("ALERT: %s closed but replacement at %.2f not opened: %v",
			old.ContractLabel(), d.NewStrike, err)
		return nil, errors.Join(ErrHalfRolled, &OrderError{Op: "reopen", Err: err})
	}

	pos := models.NewPosition(uuid.NewString(), old.Symbol, d.NewStrike, old.Side, old.Expiration, quantity)
	pos.EntryPremium = reopenReceipt.FillPrice
	pos.EntrySpot = d.SpotPrice
	pos.ExecProb = d.NewExecProb
	pos.WinRate = old.WinRate
	pos.ProbLow = old.ProbLow
	pos.ProbHigh = old.ProbHigh
	pos.UsagePct = old.UsagePct

	if err := m.storage.AddPosition(pos); err != nil {
		m.logger.Printf("ALERT: reopen order %s filled but position not recorded: %v", reopenReceipt.OrderID, err)
		return nil, fmt.Errorf("recording rolled position: %w", err)
	}

	m.logger.Printf("Rolled %s -> %s x%d at %.2f (order %s)",
		old.ContractLabel(), pos.ContractLabel(), quantity, reopenReceipt.FillPrice, reopenReceipt.OrderID)
	return pos, nil
}
