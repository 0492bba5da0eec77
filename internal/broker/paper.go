package broker

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ycwei/probroll/internal/models"
	"github.com/ycwei/probroll/internal/util"
)

// PaperBroker is a deterministic in-memory brokerage used for paper
// trading and tests. Quotes and ladders are seeded by the caller; orders
// always fill immediately at a model premium.
type PaperBroker struct {
	mu          sync.Mutex
	quotes      map[string]float64
	strikes     map[string][]float64
	buyingPower float64
	premiumFn   PremiumFunc
	orders      []OrderTicket
	nextErr     error
}

// PremiumFunc models the per-share premium of a fill.
type PremiumFunc func(spot, strike float64, side models.Side) float64

// Ensure PaperBroker implements Broker at compile time.
var _ Broker = (*PaperBroker)(nil)

// NewPaperBroker creates a paper brokerage with the given buying power.
func NewPaperBroker(buyingPower float64) *PaperBroker {
	return &PaperBroker{
		quotes:      make(map[string]float64),
		strikes:     make(map[string][]float64),
		buyingPower: buyingPower,
		premiumFn:   defaultPremium,
	}
}

// defaultPremium prices a leg at intrinsic value plus time value that
// decays linearly with distance from the money.
func defaultPremium(spot, strike float64, side models.Side) float64 {
	intrinsic := 0.0
	switch side {
	case models.SideCall:
		if spot > strike {
			intrinsic = spot - strike
		}
	case models.SidePut:
		if strike > spot {
			intrinsic = strike - spot
		}
	}
	timeValue := spot*0.02 - 0.25*math.Abs(strike-spot)
	if timeValue < 0.05 {
		timeValue = 0.05
	}
	// Fills print in cents like a real tape.
	return util.RoundToTick(intrinsic+timeValue, 0.01)
}

// SetQuote seeds the last price for a symbol.
func (p *PaperBroker) SetQuote(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quotes[symbol] = price
}

// SetStrikes seeds the ladder returned for a symbol.
func (p *PaperBroker) SetStrikes(symbol string, strikes []float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.strikes[symbol] = append([]float64(nil), strikes...)
}

// SetBuyingPower replaces the account's buying power.
func (p *PaperBroker) SetBuyingPower(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buyingPower = v
}

// SetPremiumFunc overrides the fill pricing model.
func (p *PaperBroker) SetPremiumFunc(fn PremiumFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.premiumFn = fn
}

// FailNextOrder makes the next PlaceMarketOrder call return err.
func (p *PaperBroker) FailNextOrder(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextErr = err
}

// Orders returns a copy of every ticket placed so far.
func (p *PaperBroker) Orders() []OrderTicket {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]OrderTicket(nil), p.orders...)
}

// GetQuote implements Broker.
func (p *PaperBroker) GetQuote(ctx context.Context, symbol string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	price, ok := p.quotes[symbol]
	if !ok {
		return 0, fmt.Errorf("no quote seeded for %s", symbol)
	}
	return price, nil
}

// GetStrikes implements Broker. With no seeded ladder it synthesizes
// whole-dollar strikes within 15 percent of the quote.
func (p *PaperBroker) GetStrikes(ctx context.Context, symbol string, expiration time.Time) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if ladder, ok := p.strikes[symbol]; ok {
		return append([]float64(nil), ladder...), nil
	}

	spot, ok := p.quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("no quote seeded for %s", symbol)
	}
	low := math.Floor(spot * 0.85)
	high := math.Ceil(spot * 1.15)
	var ladder []float64
	for k := low; k <= high; k++ {
		ladder = append(ladder, k)
	}
	return ladder, nil
}

// GetBuyingPower implements Broker.
func (p *PaperBroker) GetBuyingPower(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buyingPower, nil
}

// PlaceMarketOrder implements Broker.
func (p *PaperBroker) PlaceMarketOrder(ctx context.Context, ticket OrderTicket) (*OrderReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ticket.Validate(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.nextErr != nil {
		err := p.nextErr
		p.nextErr = nil
		return nil, err
	}

	spot, ok := p.quotes[ticket.Symbol]
	if !ok {
		return nil, fmt.Errorf("no quote seeded for %s", ticket.Symbol)
	}

	p.orders = append(p.orders, ticket)
	return &OrderReceipt{
		OrderID:   uuid.NewString(),
		FillPrice: p.premiumFn(spot, ticket.Strike, ticket.Side),
		FilledAt:  time.Now().UTC(),
	}, nil
}
