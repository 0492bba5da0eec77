// Package models defines the domain types shared by the monitoring and
// rebalancing components: single-leg option positions, band classification
// results, and the four-leg no-risk structures built by the strategy layer.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Side identifies the option right of a leg.
type Side string

const (
	// SideCall is a call option leg.
	SideCall Side = "call"
	// SidePut is a put option leg.
	SidePut Side = "put"
)

// Valid returns true if the Side is one of the defined constants.
func (s Side) Valid() bool {
	return s == SideCall || s == SidePut
}

// Short returns the single-letter contract code ("C"/"P").
func (s Side) Short() string {
	if s == SidePut {
		return "P"
	}
	return "C"
}

// ParseSide converts common encodings ("C", "call", "Call") to a Side.
func ParseSide(v string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "c", "call":
		return SideCall, nil
	case "p", "put":
		return SidePut, nil
	default:
		return "", fmt.Errorf("unknown option side %q", v)
	}
}

// Action is the order direction of a leg.
type Action string

const (
	// ActionSell opens or adds to a short leg.
	ActionSell Action = "sell"
	// ActionBuy opens a long leg or closes a short one.
	ActionBuy Action = "buy"
)

// Valid returns true if the Action is one of the defined constants.
func (a Action) Valid() bool {
	return a == ActionSell || a == ActionBuy
}

// Status is the lifecycle state of a position. There is deliberately no
// intermediate "rolling" state: a roll closes one position and opens a
// second, independent one.
type Status string

const (
	// StatusActive marks an open position under monitoring.
	StatusActive Status = "active"
	// StatusClosed marks a position that has been bought back or expired.
	StatusClosed Status = "closed"
)

// Position is a single short option leg tracked by the probability monitor.
// The monitor owns ExecProb refreshes; everything else is immutable after
// entry except the Status/ExitDate/ExitReason transition on close.
type Position struct {
	ID           string    `json:"id"`
	Symbol       string    `json:"symbol"`
	Expiration   time.Time `json:"expiration"`
	Strike       float64   `json:"strike"`
	Side         Side      `json:"side"`
	Action       Action    `json:"action"`
	Quantity     int       `json:"quantity"`
	EntryPremium float64   `json:"entry_premium"`
	EntrySpot    float64   `json:"entry_spot"`
	EntryDate    time.Time `json:"entry_date"`
	ExitDate     time.Time `json:"exit_date,omitempty"`
	ExitReason   string    `json:"exit_reason,omitempty"`
	Status       Status    `json:"status"`

	// Monitoring parameters carried from entry time.
	WinRate  float64 `json:"win_rate"`  // target win rate, percent
	ProbLow  float64 `json:"prob_low"`  // band lower bound, percent
	ProbHigh float64 `json:"prob_high"` // band upper bound, percent
	UsagePct float64 `json:"usage_pct"` // share of buying power allotted at entry, percent

	// ExecProb is the last computed execution probability in [0,1],
	// refreshed by the monitor on every detection cycle.
	ExecProb float64 `json:"exec_prob"`
}

// NewPosition creates an Active position with entry metadata filled in.
func NewPosition(id, symbol string, strike float64, side Side, expiration time.Time, quantity int) *Position {
	return &Position{
		ID:         id,
		Symbol:     symbol,
		Strike:     strike,
		Side:       side,
		Action:     ActionSell,
		Expiration: expiration,
		Quantity:   quantity,
		Status:     StatusActive,
		EntryDate:  time.Now().UTC(),
	}
}

// ContractLabel renders the ledger symbol format, e.g. "QQQ C 350.00".
func (p *Position) ContractLabel() string {
	return fmt.Sprintf("%s %s %.2f", p.Symbol, p.Side.Short(), p.Strike)
}

// CalculateDTE returns calendar days to expiration, floored at zero.
func (p *Position) CalculateDTE() int {
	return DaysUntil(time.Now(), p.Expiration)
}

// DaysUntil counts whole calendar days from now to expiry, ignoring time
// of day and floored at zero. Probability horizons run on calendar days,
// matching how option expirations are quoted.
func DaysUntil(now, expiry time.Time) int {
	exp := expiry.UTC().Truncate(24 * time.Hour)
	days := int(exp.Sub(now.UTC().Truncate(24*time.Hour)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// IsExpired reports whether the expiration date is strictly before today.
func (p *Position) IsExpired(today time.Time) bool {
	exp := p.Expiration.UTC().Truncate(24 * time.Hour)
	return exp.Before(today.UTC().Truncate(24 * time.Hour))
}

// Validate ensures the position data is internally consistent.
func (p *Position) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("position missing ID")
	}
	if strings.TrimSpace(p.Symbol) == "" {
		return fmt.Errorf("position %s: symbol is required", p.ID)
	}
	if !p.Side.Valid() {
		return fmt.Errorf("position %s: invalid side %q", p.ID, p.Side)
	}
	if !p.Action.Valid() {
		return fmt.Errorf("position %s: invalid action %q", p.ID, p.Action)
	}
	if p.Strike <= 0 {
		return fmt.Errorf("position %s: strike must be positive (got %.2f)", p.ID, p.Strike)
	}
	if p.Expiration.IsZero() {
		return fmt.Errorf("position %s: expiration is required", p.ID)
	}
	if p.WinRate < 0 || p.WinRate > 100 {
		return fmt.Errorf("position %s: win_rate must be within [0,100] (got %.2f)", p.ID, p.WinRate)
	}
	if p.ProbLow < 0 || p.ProbHigh < 0 || p.ProbLow > p.ProbHigh {
		return fmt.Errorf("position %s: band [%.2f,%.2f] is invalid", p.ID, p.ProbLow, p.ProbHigh)
	}
	if p.ExecProb < 0 || p.ExecProb > 1 {
		return fmt.Errorf("position %s: exec_prob must be within [0,1] (got %.4f)", p.ID, p.ExecProb)
	}
	switch p.Status {
	case StatusActive:
		if p.Quantity <= 0 {
			return fmt.Errorf("position %s: quantity must be > 0 for active positions (got %d)", p.ID, p.Quantity)
		}
		if !p.ExitDate.IsZero() {
			return fmt.Errorf("position %s: exit date must be zero for active positions", p.ID)
		}
	case StatusClosed:
		if p.ExitDate.IsZero() {
			return fmt.Errorf("position %s: exit date must be set for closed positions", p.ID)
		}
		if strings.TrimSpace(p.ExitReason) == "" {
			return fmt.Errorf("position %s: exit reason must be set for closed positions", p.ID)
		}
	default:
		return fmt.Errorf("position %s: invalid status %q", p.ID, p.Status)
	}
	return nil
}

// Close transitions the position to Closed. Closing twice is rejected so
// the order layer cannot double-buy a leg back.
func (p *Position) Close(reason string, at time.Time) error {
	if p.Status == StatusClosed {
		return fmt.Errorf("position %s already closed", p.ID)
	}
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("position %s: close reason is required", p.ID)
	}
	p.Status = StatusClosed
	p.ExitReason = reason
	p.ExitDate = at.UTC()
	return nil
}
