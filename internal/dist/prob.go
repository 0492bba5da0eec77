package dist

import (
	"fmt"

	"github.com/ycwei/probroll/internal/models"
)

// ForwardReturns computes the n-day forward simple returns of the close
// column. A non-positive horizon is an error; a horizon longer than the
// series allows is clamped to the longest one that still yields a sample,
// so the caller gets whatever evidence the history can support.
func (s *PriceSeries) ForwardReturns(days int) ([]float64, error) {
	if days < 1 {
		return nil, fmt.Errorf("%w: horizon must be at least 1 day, got %d", ErrInsufficientData, days)
	}
	closes := s.Closes()
	if len(closes) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 closes, have %d", ErrInsufficientData, len(closes))
	}
	if days > len(closes)-1 {
		days = len(closes) - 1
	}

	out := make([]float64, 0, len(closes)-days)
	for t := 0; t+days < len(closes); t++ {
		out = append(out, (closes[t+days]-closes[t])/closes[t])
	}
	return out, nil
}

// TailProbability is the empirical frequency of returns at or beyond the
// move threshold: at or above for calls, at or below for puts. An empty
// sample yields zero.
func TailProbability(returns []float64, neededPct float64, side models.Side) float64 {
	if len(returns) == 0 {
		return 0
	}

	hits := 0
	for _, r := range returns {
		switch side {
		case models.SideCall:
			if r >= neededPct {
				hits++
			}
		case models.SidePut:
			if r <= neededPct {
				hits++
			}
		}
	}

	p := float64(hits) / float64(len(returns))
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// ExecutionProbability estimates the chance that the underlying touches the
// strike at the given horizon: the frequency of historical forward moves at
// least as large as the one still needed from spot to strike.
func (s *PriceSeries) ExecutionProbability(spot, strike float64, side models.Side, days int) (float64, error) {
	if spot <= 0 {
		return 0, fmt.Errorf("spot price must be positive (got %.4f)", spot)
	}
	if !side.Valid() {
		return 0, fmt.Errorf("invalid option side %q", side)
	}

	returns, err := s.ForwardReturns(days)
	if err != nil {
		return 0, err
	}

	neededPct := strike/spot - 1
	return TailProbability(returns, neededPct, side), nil
}
