// Package util provides shared price and strike arithmetic.
package util

import "math"

// RoundToTick rounds x to the nearest tick increment. A non-positive
// tick, NaN or infinite x return x unchanged.
func RoundToTick(x, tick float64) float64 {
	tick = math.Abs(tick)
	if tick == 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	return math.Round(x/tick) * tick
}

// FloorToTick rounds x down to a tick multiple. Exact multiples stay
// put even when the division lands a few ULPs off an integer.
func FloorToTick(x, tick float64) float64 {
	tick = math.Abs(tick)
	if tick == 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	q := x / tick
	if r := math.Round(q); nearInt(q, r) {
		return r * tick
	}
	return math.Floor(q) * tick
}

// CeilToTick rounds x up to a tick multiple with the same boundary
// treatment as FloorToTick.
func CeilToTick(x, tick float64) float64 {
	tick = math.Abs(tick)
	if tick == 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	q := x / tick
	if r := math.Round(q); nearInt(q, r) {
		return r * tick
	}
	return math.Ceil(q) * tick
}

// nearInt tolerates only representation error, so quotients like
// 1.30/0.05 snap to 26 while genuinely off-grid inputs do not.
func nearInt(q, r float64) bool {
	return math.Abs(q-r) <= 1e-14*math.Max(1, math.Abs(q))
}

// NearestStrike snaps target to the closest strike in ladder, breaking
// ties toward the lower strike. Returns target when the ladder is
// empty.
func NearestStrike(ladder []float64, target float64) float64 {
	if len(ladder) == 0 {
		return target
	}
	best := ladder[0]
	for _, s := range ladder[1:] {
		d, bd := math.Abs(s-target), math.Abs(best-target)
		if d < bd || (d == bd && s < best) {
			best = s
		}
	}
	return best
}
