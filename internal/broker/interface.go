// Package broker abstracts the brokerage surface the engine needs: spot
// quotes, strike ladders, buying power, and market order execution.
package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ycwei/probroll/internal/models"
)

// Broker defines the brokerage operations used by the monitor and the
// rebalance engine. Implementations must be safe for concurrent use.
type Broker interface {
	// GetQuote returns the last traded price of the underlying.
	GetQuote(ctx context.Context, symbol string) (float64, error)

	// GetStrikes returns the strike ladder for one expiration, unsorted.
	GetStrikes(ctx context.Context, symbol string, expiration time.Time) ([]float64, error)

	// GetBuyingPower returns the account's available buying power.
	GetBuyingPower(ctx context.Context) (float64, error)

	// PlaceMarketOrder submits a market order and returns the fill.
	PlaceMarketOrder(ctx context.Context, ticket OrderTicket) (*OrderReceipt, error)
}

// OrderTicket describes one single-leg market order.
type OrderTicket struct {
	Symbol     string        `json:"symbol"`
	Side       models.Side   `json:"side"`
	Action     models.Action `json:"action"`
	Strike     float64       `json:"strike"`
	Expiration time.Time     `json:"expiration"`
	Quantity   int           `json:"quantity"`
	Tag        string        `json:"tag,omitempty"`
}

// Validate checks the ticket before it reaches a live endpoint.
func (o OrderTicket) Validate() error {
	if o.Symbol == "" {
		return errors.New("order ticket missing symbol")
	}
	if !o.Side.Valid() {
		return fmt.Errorf("order ticket: invalid side %q", o.Side)
	}
	if !o.Action.Valid() {
		return fmt.Errorf("order ticket: invalid action %q", o.Action)
	}
	if o.Strike <= 0 {
		return fmt.Errorf("order ticket: strike must be positive (got %.2f)", o.Strike)
	}
	if o.Expiration.IsZero() {
		return errors.New("order ticket missing expiration")
	}
	if o.Quantity <= 0 {
		return fmt.Errorf("order ticket: quantity must be positive (got %d)", o.Quantity)
	}
	return nil
}

// OrderReceipt reports a completed fill.
type OrderReceipt struct {
	OrderID   string    `json:"order_id"`
	FillPrice float64   `json:"fill_price"` // premium per share
	FilledAt  time.Time `json:"filled_at"`
}

// APIError carries the HTTP status of a failed brokerage call so callers
// can separate permanent rejections from transient failures.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("broker API error: status %d: %s", e.Status, e.Body)
}

// IsPermanentAPIError reports whether the error is a 4xx rejection that
// retrying cannot fix. 429 Too Many Requests stays retryable.
func IsPermanentAPIError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 400 && apiErr.Status < 500 && apiErr.Status != 429
	}
	return false
}
