package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyExecProb(t *testing.T) {
	tests := []struct {
		name string
		prob float64 // fraction, 0..1
		low  float64 // percent
		high float64 // percent
		want BandBreach
	}{
		{"well inside band", 0.05, 2.5, 12.5, BreachNone},
		{"below the floor", 0.01, 2.5, 12.5, BreachBelow},
		{"above the ceiling", 0.30, 2.5, 12.5, BreachAbove},
		{"exactly on the floor stays in band", 0.025, 2.5, 12.5, BreachNone},
		{"exactly on the ceiling stays in band", 0.125, 2.5, 12.5, BreachNone},
		{"zero probability", 0, 2.5, 12.5, BreachBelow},
		{"certainty", 1, 2.5, 12.5, BreachAbove},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyExecProb(tt.prob, tt.low, tt.high)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want != BreachNone, got.OutOfBand())
		})
	}
}

func TestAdjustmentDecisionCarriesPosition(t *testing.T) {
	exp := time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC)
	pos := NewPosition("p1", "QQQ", 350, SideCall, exp, 2)
	pos.ExecProb = 0.30

	d := AdjustmentDecision{
		Position:    *pos,
		Breach:      BreachAbove,
		NewStrike:   355,
		NewExecProb: 0.04,
		Quantity:    pos.Quantity,
		Expiration:  exp,
		SpotPrice:   348.2,
		DecidedAt:   time.Now(),
	}

	require.Equal(t, "p1", d.Position.ID)
	assert.Equal(t, 355.0, d.NewStrike)
	assert.True(t, d.Breach.OutOfBand())
	// The stale probability rides along untouched for the audit trail.
	assert.Equal(t, 0.30, d.Position.ExecProb)
}
