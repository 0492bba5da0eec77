package models

import (
	"testing"
	"time"
)

func TestParseSide(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Side
		wantErr bool
	}{
		{"short call", "C", SideCall, false},
		{"short put", "p", SidePut, false},
		{"word call", "call", SideCall, false},
		{"word put", "Put", SidePut, false},
		{"padded", "  call ", SideCall, false},
		{"garbage", "straddle", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSide(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSide(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSide(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestContractLabel(t *testing.T) {
	p := NewPosition("id-1", "QQQ", 350, SideCall, time.Date(2026, 9, 18, 0, 0, 0, 0, time.UTC), 2)
	if got := p.ContractLabel(); got != "QQQ C 350.00" {
		t.Errorf("ContractLabel() = %q, want %q", got, "QQQ C 350.00")
	}

	p.Side = SidePut
	p.Strike = 287.5
	if got := p.ContractLabel(); got != "QQQ P 287.50" {
		t.Errorf("ContractLabel() = %q, want %q", got, "QQQ P 287.50")
	}
}

func TestDaysUntil(t *testing.T) {
	now := time.Date(2026, 8, 28, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name       string
		expiration time.Time
		want       int
	}{
		{"three weeks out", time.Date(2026, 9, 18, 0, 0, 0, 0, time.UTC), 21},
		{"weekend in between", time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), 3},
		{"same day", time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), 0},
		{"already past", time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysUntil(now, tt.expiration); got != tt.want {
				t.Errorf("DaysUntil() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIsExpired(t *testing.T) {
	today := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	p := &Position{Expiration: time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)}
	if !p.IsExpired(today) {
		t.Error("yesterday's expiration should be expired")
	}

	p.Expiration = time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	if p.IsExpired(today) {
		t.Error("expiration day itself should not count as expired")
	}
}

func validPosition() *Position {
	p := NewPosition("a7c1", "QQQ", 350, SideCall, time.Date(2026, 9, 18, 0, 0, 0, 0, time.UTC), 2)
	p.WinRate = 90
	p.ProbLow = 2.5
	p.ProbHigh = 12.5
	p.ExecProb = 0.05
	return p
}

func TestPositionValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Position)
		wantErr bool
	}{
		{"valid active", func(p *Position) {}, false},
		{"missing id", func(p *Position) { p.ID = "" }, true},
		{"missing symbol", func(p *Position) { p.Symbol = "" }, true},
		{"bad side", func(p *Position) { p.Side = "straddle" }, true},
		{"bad action", func(p *Position) { p.Action = "hold" }, true},
		{"zero strike", func(p *Position) { p.Strike = 0 }, true},
		{"zero expiration", func(p *Position) { p.Expiration = time.Time{} }, true},
		{"win rate over 100", func(p *Position) { p.WinRate = 120 }, true},
		{"inverted band", func(p *Position) { p.ProbLow, p.ProbHigh = 12.5, 2.5 }, true},
		{"exec prob over one", func(p *Position) { p.ExecProb = 1.2 }, true},
		{"active with zero quantity", func(p *Position) { p.Quantity = 0 }, true},
		{"active with exit date", func(p *Position) { p.ExitDate = time.Now() }, true},
		{"closed without reason", func(p *Position) {
			p.Status = StatusClosed
			p.ExitDate = time.Now()
		}, true},
		{"valid closed", func(p *Position) {
			p.Status = StatusClosed
			p.ExitDate = time.Now()
			p.ExitReason = "expired"
		}, false},
		{"unknown status", func(p *Position) { p.Status = "rolling" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPosition()
			tt.mutate(p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPositionClose(t *testing.T) {
	p := validPosition()
	at := time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)

	if err := p.Close("probability out of band", at); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if p.Status != StatusClosed {
		t.Errorf("Status = %q, want %q", p.Status, StatusClosed)
	}
	if p.ExitDate != at {
		t.Errorf("ExitDate = %v, want %v", p.ExitDate, at)
	}

	if err := p.Close("again", at); err == nil {
		t.Error("closing a closed position should fail")
	}
}
