package util

import (
	"math"
	"testing"
)

func TestRoundToTick(t *testing.T) {
	tests := []struct {
		name string
		x    float64
		tick float64
		want float64
	}{
		{"round down", 1.2345, 0.01, 1.23},
		{"tie rounds away from zero", 1.235, 0.01, 1.24},
		{"nickel tick", 1.27, 0.05, 1.25},
		{"exact multiple", 1.25, 0.05, 1.25},
		{"negative value", -1.2345, 0.01, -1.23},
		{"negative tick uses magnitude", 1.235, -0.01, 1.24},
		{"zero tick passes through", 1.2345, 0, 1.2345},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RoundToTick(tt.x, tt.tick); math.Abs(got-tt.want) > 1e-10 {
				t.Errorf("RoundToTick(%v, %v) = %v, want %v", tt.x, tt.tick, got, tt.want)
			}
		})
	}

	if got := RoundToTick(math.NaN(), 0.01); !math.IsNaN(got) {
		t.Errorf("RoundToTick(NaN) = %v, want NaN", got)
	}
	if got := RoundToTick(math.Inf(1), 0.01); !math.IsInf(got, 1) {
		t.Errorf("RoundToTick(+Inf) = %v, want +Inf", got)
	}
}

func TestFloorAndCeilToTick(t *testing.T) {
	tests := []struct {
		name      string
		x         float64
		tick      float64
		wantFloor float64
		wantCeil  float64
	}{
		{"between ticks", 1.237, 0.01, 1.23, 1.24},
		{"exact multiple", 1.30, 0.05, 1.30, 1.30},
		{"noise below boundary", 1.2999999999999, 0.05, 1.25, 1.30},
		{"noise above boundary", 1.2500000000001, 0.05, 1.25, 1.30},
		{"negative between ticks", -1.237, 0.01, -1.24, -1.23},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FloorToTick(tt.x, tt.tick); math.Abs(got-tt.wantFloor) > 1e-10 {
				t.Errorf("FloorToTick(%v, %v) = %v, want %v", tt.x, tt.tick, got, tt.wantFloor)
			}
			if got := CeilToTick(tt.x, tt.tick); math.Abs(got-tt.wantCeil) > 1e-10 {
				t.Errorf("CeilToTick(%v, %v) = %v, want %v", tt.x, tt.tick, got, tt.wantCeil)
			}
		})
	}
}

func TestNearestStrike(t *testing.T) {
	ladder := []float64{340, 345, 350, 355}
	tests := []struct {
		name   string
		target float64
		want   float64
	}{
		{"exact match", 350, 350},
		{"rounds to closer strike", 351, 350},
		{"rounds up past midpoint", 353, 355},
		{"tie prefers lower strike", 352.5, 350},
		{"below the ladder", 300, 340},
		{"above the ladder", 400, 355},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NearestStrike(ladder, tt.target); got != tt.want {
				t.Errorf("NearestStrike(%v) = %v, want %v", tt.target, got, tt.want)
			}
		})
	}

	if got := NearestStrike(nil, 123.45); got != 123.45 {
		t.Errorf("NearestStrike(nil) = %v, want target back", got)
	}
}
