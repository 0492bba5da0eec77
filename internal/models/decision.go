package models

import "time"

// BandBreach names the direction in which an execution probability left the
// acceptance band.
type BandBreach string

const (
	// BreachNone means the probability is inside the band.
	BreachNone BandBreach = ""
	// BreachBelow means the probability fell under the lower bound.
	BreachBelow BandBreach = "below"
	// BreachAbove means the probability rose over the upper bound.
	BreachAbove BandBreach = "above"
)

// ClassifyExecProb compares a probability (0..1) against a percent band and
// reports the breach direction. Both bounds are exclusive: a value sitting
// exactly on a bound is in band.
func ClassifyExecProb(prob, probLow, probHigh float64) BandBreach {
	pct := prob * 100
	switch {
	case pct < probLow:
		return BreachBelow
	case pct > probHigh:
		return BreachAbove
	default:
		return BreachNone
	}
}

// OutOfBand reports whether the breach requires a rebalance. The engine does
// not distinguish directions when acting; both trigger the same roll.
func (b BandBreach) OutOfBand() bool {
	return b == BreachBelow || b == BreachAbove
}

// AdjustmentDecision is the rebalance plan produced when a position's
// execution probability leaves its band: buy back the old leg in full and
// sell a replacement at NewStrike.
type AdjustmentDecision struct {
	Position    Position   `json:"position"`      // the leg being replaced (pre-close snapshot)
	Breach      BandBreach `json:"breach"`        // which bound was crossed
	NewStrike   float64    `json:"new_strike"`    // replacement strike
	NewExecProb float64    `json:"new_exec_prob"` // probability of the replacement, 0..1
	Quantity    int        `json:"quantity"`      // quantity for the replacement leg
	Expiration  time.Time  `json:"expiration"`    // carried over from the old leg
	SpotPrice   float64    `json:"spot_price"`    // underlying price at decision time
	DecidedAt   time.Time  `json:"decided_at"`
}
