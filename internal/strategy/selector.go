// Package strategy turns execution probabilities into tradeable decisions:
// strike selection against a target win rate, position sizing from buying
// power, and construction of staged no-risk condor plans.
package strategy

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ycwei/probroll/internal/dist"
	"github.com/ycwei/probroll/internal/models"
)

// ErrNoStrikes is returned when a chain lookup produced an empty ladder.
var ErrNoStrikes = errors.New("no strikes available")

// minHorizonDays keeps very near expirations from collapsing the return
// sample to a single day of noise.
const minHorizonDays = 2

// TargetProbability converts a win rate in percent to the per-side
// execution probability target. The tolerated loss mass is split evenly
// between the call and put sides.
func TargetProbability(winRate float64) float64 {
	return (100 - winRate) / 100 / 2
}

// HorizonDays floors the probability horizon at two days.
func HorizonDays(days int) int {
	if days < minHorizonDays {
		return minHorizonDays
	}
	return days
}

// Selection is the outcome of a strike scan.
type Selection struct {
	Strike float64 // chosen strike
	Prob   float64 // execution probability of the chosen strike, 0..1
	Days   int     // horizon actually used, after flooring
	Target float64 // per-side probability target the scan ran against
}

// Selector scans option ladders for the strike whose execution probability
// sits just inside the target.
type Selector struct {
	series *dist.PriceSeries
}

// NewSelector creates a Selector over the given price history.
func NewSelector(series *dist.PriceSeries) *Selector {
	return &Selector{series: series}
}

// Select dispatches to the call or put scan.
func (s *Selector) Select(side models.Side, spot float64, strikes []float64, days int, winRate float64) (*Selection, error) {
	switch side {
	case models.SideCall:
		return s.Call(spot, strikes, days, winRate)
	case models.SidePut:
		return s.Put(spot, strikes, days, winRate)
	default:
		return nil, fmt.Errorf("invalid option side %q", side)
	}
}

// Call walks the ladder from the highest strike down. The first strike
// whose probability strictly exceeds the target stops the scan, and the
// previously examined (higher) strike wins; if the very first strike
// already breaches, it wins itself. When nothing breaches, the lowest
// strike is safe at this target and taken for its premium.
func (s *Selector) Call(spot float64, strikes []float64, days int, winRate float64) (*Selection, error) {
	ladder, err := sortedLadder(strikes)
	if err != nil {
		return nil, err
	}
	days = HorizonDays(days)
	target := TargetProbability(winRate)

	chosen := ladder[0]
	var prev *float64
	for i := len(ladder) - 1; i >= 0; i-- {
		p, err := s.series.ExecutionProbability(spot, ladder[i], models.SideCall, days)
		if err != nil {
			return nil, fmt.Errorf("probability at strike %.2f: %w", ladder[i], err)
		}
		if p > target {
			if prev != nil {
				chosen = *prev
			} else {
				chosen = ladder[i]
			}
			return s.finish(spot, chosen, models.SideCall, days, target)
		}
		prev = &ladder[i]
	}
	return s.finish(spot, chosen, models.SideCall, days, target)
}

// Put mirrors Call from the lowest strike up, falling back to the highest
// strike when nothing breaches.
func (s *Selector) Put(spot float64, strikes []float64, days int, winRate float64) (*Selection, error) {
	ladder, err := sortedLadder(strikes)
	if err != nil {
		return nil, err
	}
	days = HorizonDays(days)
	target := TargetProbability(winRate)

	chosen := ladder[len(ladder)-1]
	var prev *float64
	for i := range ladder {
		p, err := s.series.ExecutionProbability(spot, ladder[i], models.SidePut, days)
		if err != nil {
			return nil, fmt.Errorf("probability at strike %.2f: %w", ladder[i], err)
		}
		if p > target {
			if prev != nil {
				chosen = *prev
			} else {
				chosen = ladder[i]
			}
			return s.finish(spot, chosen, models.SidePut, days, target)
		}
		prev = &ladder[i]
	}
	return s.finish(spot, chosen, models.SidePut, days, target)
}

func (s *Selector) finish(spot, strike float64, side models.Side, days int, target float64) (*Selection, error) {
	p, err := s.series.ExecutionProbability(spot, strike, side, days)
	if err != nil {
		return nil, fmt.Errorf("probability at selected strike %.2f: %w", strike, err)
	}
	return &Selection{Strike: strike, Prob: p, Days: days, Target: target}, nil
}

func sortedLadder(strikes []float64) ([]float64, error) {
	if len(strikes) == 0 {
		return nil, ErrNoStrikes
	}
	ladder := make([]float64, len(strikes))
	copy(ladder, strikes)
	sort.Float64s(ladder)
	return ladder, nil
}
