package models

import (
	"fmt"
	"sort"
)

// LegID names one of the four legs of a no-risk option structure in the
// order they are quoted and filled.
type LegID int

const (
	// LegBuyOne is the first long wing.
	LegBuyOne LegID = iota
	// LegSellOne is the first short inner leg.
	LegSellOne
	// LegBuyTwo is the second long wing.
	LegBuyTwo
	// LegSellTwo is the final short inner leg that locks the structure.
	LegSellTwo
	numLegs
)

// String returns the ledger name for the leg.
func (l LegID) String() string {
	switch l {
	case LegBuyOne:
		return "buy1"
	case LegSellOne:
		return "sell1"
	case LegBuyTwo:
		return "buy2"
	case LegSellTwo:
		return "sell2"
	default:
		return fmt.Sprintf("leg(%d)", int(l))
	}
}

// LegIDs lists the legs in fill order.
func LegIDs() []LegID {
	return []LegID{LegBuyOne, LegSellOne, LegBuyTwo, LegSellTwo}
}

// CondorLeg is one leg of a condor plan. Premium is the captured fill (or
// working quote) per share; Recorded distinguishes a real fill from an
// unpriced slot.
type CondorLeg struct {
	Side     Side    `json:"side"`
	Action   Action  `json:"action"`
	Strike   float64 `json:"strike"`
	Premium  float64 `json:"premium"`
	Recorded bool    `json:"recorded"`
}

// Outlook steers which sides the short legs take when the plan is laid out.
type Outlook string

const (
	// OutlookBullish sells the put side first.
	OutlookBullish Outlook = "bullish"
	// OutlookBearish sells the call side first.
	OutlookBearish Outlook = "bearish"
)

// Valid returns true if the Outlook is one of the defined constants.
func (o Outlook) Valid() bool {
	return o == OutlookBullish || o == OutlookBearish
}

// CondorPlan is a four-leg structure entered in stages: two short inner
// legs protected by a long wing apiece, each wing WingWidth points away
// from its short strike. Legs are keyed by LegID rather than strike so
// partially filled plans keep their identity while quotes move.
type CondorPlan struct {
	Symbol    string             `json:"symbol"`
	Outlook   Outlook            `json:"outlook"`
	WingWidth float64            `json:"wing_width"` // strike distance between each short leg and its wing
	Legs      [numLegs]CondorLeg `json:"legs"`
}

// Leg returns the leg for id. Out-of-range ids return a zero leg.
func (c *CondorPlan) Leg(id LegID) CondorLeg {
	if id < 0 || id >= numLegs {
		return CondorLeg{}
	}
	return c.Legs[id]
}

// SetLeg stores a leg under id.
func (c *CondorPlan) SetLeg(id LegID, leg CondorLeg) error {
	if id < 0 || id >= numLegs {
		return fmt.Errorf("invalid condor leg id %d", int(id))
	}
	c.Legs[id] = leg
	return nil
}

// Recorded reports whether every listed leg has a captured premium.
func (c *CondorPlan) Recorded(ids ...LegID) bool {
	for _, id := range ids {
		if !c.Leg(id).Recorded {
			return false
		}
	}
	return true
}

// LockedProfit is the per-share credit remaining after buying both wings
// and absorbing the worst assignment, which costs at most WingWidth on
// either side. Non-negative means the structure cannot lose regardless of
// where the underlying settles.
func (c *CondorPlan) LockedProfit() float64 {
	credits := c.Leg(LegSellOne).Premium + c.Leg(LegSellTwo).Premium
	debits := c.Leg(LegBuyOne).Premium + c.Leg(LegBuyTwo).Premium
	return credits - debits - c.WingWidth
}

// RequiredSellTwo is the minimum premium the final short leg must fetch for
// LockedProfit to reach zero, given the three legs already filled.
func (c *CondorPlan) RequiredSellTwo() float64 {
	return c.Leg(LegBuyOne).Premium + c.Leg(LegBuyTwo).Premium + c.WingWidth - c.Leg(LegSellOne).Premium
}

// Locked reports whether all four legs are recorded and the net credit
// covers the wing width.
func (c *CondorPlan) Locked() bool {
	return c.Recorded(LegIDs()...) && c.LockedProfit() >= 0
}

// PayoffAt computes the per-share profit of the recorded legs if the
// underlying settles at price. Only recorded legs contribute.
func (c *CondorPlan) PayoffAt(price float64) float64 {
	var total float64
	for _, id := range LegIDs() {
		leg := c.Leg(id)
		if !leg.Recorded {
			continue
		}
		intrinsic := 0.0
		switch leg.Side {
		case SideCall:
			if price > leg.Strike {
				intrinsic = price - leg.Strike
			}
		case SidePut:
			if price < leg.Strike {
				intrinsic = leg.Strike - price
			}
		}
		if leg.Action == ActionBuy {
			total += intrinsic - leg.Premium
		} else {
			total += leg.Premium - intrinsic
		}
	}
	return total
}

// PayoffPoint is one sample of the expiration payoff curve.
type PayoffPoint struct {
	Price  float64 `json:"price"`
	Profit float64 `json:"profit"`
}

// PayoffSeries samples the expiration payoff between the given bounds.
// Steps below 2 are treated as 2 so the series always has both endpoints.
func (c *CondorPlan) PayoffSeries(low, high float64, steps int) []PayoffPoint {
	if steps < 2 {
		steps = 2
	}
	if high < low {
		low, high = high, low
	}
	out := make([]PayoffPoint, 0, steps)
	width := (high - low) / float64(steps-1)
	for i := 0; i < steps; i++ {
		px := low + width*float64(i)
		out = append(out, PayoffPoint{Price: px, Profit: c.PayoffAt(px)})
	}
	return out
}

// Breakevens returns approximate zero crossings of the payoff curve inside
// [low, high], found by scanning sign changes over a fine grid.
func (c *CondorPlan) Breakevens(low, high float64) []float64 {
	const samples = 2000
	pts := c.PayoffSeries(low, high, samples)
	var crossings []float64
	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		if a.Profit == 0 {
			crossings = append(crossings, a.Price)
			continue
		}
		if (a.Profit < 0 && b.Profit > 0) || (a.Profit > 0 && b.Profit < 0) {
			// Linear interpolation between the two samples.
			t := a.Profit / (a.Profit - b.Profit)
			crossings = append(crossings, a.Price+t*(b.Price-a.Price))
		}
	}
	sort.Float64s(crossings)
	return crossings
}

// Validate checks the recorded legs for structural consistency.
func (c *CondorPlan) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("condor plan missing symbol")
	}
	if !c.Outlook.Valid() {
		return fmt.Errorf("condor plan %s: invalid outlook %q", c.Symbol, c.Outlook)
	}
	if c.WingWidth <= 0 {
		return fmt.Errorf("condor plan %s: wing width must be positive (got %.2f)", c.Symbol, c.WingWidth)
	}
	for _, id := range LegIDs() {
		leg := c.Leg(id)
		if !leg.Recorded {
			continue
		}
		if !leg.Side.Valid() || !leg.Action.Valid() {
			return fmt.Errorf("condor plan %s: leg %s has invalid side/action", c.Symbol, id)
		}
		if leg.Strike <= 0 {
			return fmt.Errorf("condor plan %s: leg %s strike must be positive", c.Symbol, id)
		}
		if leg.Premium < 0 {
			return fmt.Errorf("condor plan %s: leg %s premium must be non-negative", c.Symbol, id)
		}
	}
	return nil
}
