package models

import (
	"math"
	"testing"
)

// lockedCondor is a bullish at-the-money structure at 350 with 5-point
// wings whose credits exceed the wing width.
func lockedCondor() *CondorPlan {
	c := &CondorPlan{Symbol: "QQQ", Outlook: OutlookBullish, WingWidth: 5}
	c.SetLeg(LegBuyOne, CondorLeg{Side: SideCall, Action: ActionBuy, Strike: 355, Premium: 2.00, Recorded: true})
	c.SetLeg(LegSellOne, CondorLeg{Side: SidePut, Action: ActionSell, Strike: 350, Premium: 4.00, Recorded: true})
	c.SetLeg(LegBuyTwo, CondorLeg{Side: SidePut, Action: ActionBuy, Strike: 345, Premium: 2.20, Recorded: true})
	c.SetLeg(LegSellTwo, CondorLeg{Side: SideCall, Action: ActionSell, Strike: 350, Premium: 5.50, Recorded: true})
	return c
}

func TestLegIDString(t *testing.T) {
	want := []string{"buy1", "sell1", "buy2", "sell2"}
	for i, id := range LegIDs() {
		if id.String() != want[i] {
			t.Errorf("LegID(%d).String() = %q, want %q", i, id.String(), want[i])
		}
	}
}

func TestLockedProfit(t *testing.T) {
	c := lockedCondor()
	// 4.00 + 5.50 - 2.00 - 2.20 - 5 = 0.30
	if got := c.LockedProfit(); math.Abs(got-0.30) > 1e-9 {
		t.Errorf("LockedProfit() = %v, want 0.30", got)
	}
	if !c.Locked() {
		t.Error("plan with positive locked profit should report Locked")
	}

	leg := c.Leg(LegSellTwo)
	leg.Premium = 5.00
	c.SetLeg(LegSellTwo, leg)
	if c.Locked() {
		t.Error("plan with negative locked profit should not report Locked")
	}

	// A plan missing its final fill is never locked, whatever the math says.
	c = lockedCondor()
	leg = c.Leg(LegSellTwo)
	leg.Recorded = false
	c.SetLeg(LegSellTwo, leg)
	if c.Locked() {
		t.Error("plan with an unrecorded leg should not report Locked")
	}
}

func TestRequiredSellTwo(t *testing.T) {
	c := lockedCondor()
	// 2.00 + 2.20 + 5 - 4.00 = 5.20
	if got := c.RequiredSellTwo(); math.Abs(got-5.20) > 1e-9 {
		t.Errorf("RequiredSellTwo() = %v, want 5.20", got)
	}

	// Selling exactly the required premium locks in zero.
	leg := c.Leg(LegSellTwo)
	leg.Premium = c.RequiredSellTwo()
	c.SetLeg(LegSellTwo, leg)
	if got := c.LockedProfit(); math.Abs(got) > 1e-9 {
		t.Errorf("LockedProfit() at required premium = %v, want 0", got)
	}
}

func TestPayoffAt(t *testing.T) {
	c := lockedCondor()

	// Net credit is 5.30. Beyond either wing the payoff flattens at the
	// locked profit; at the short strike it peaks at the full credit.
	tests := []struct {
		name  string
		price float64
		want  float64
	}{
		{"far below wings", 330, 0.30},
		{"at lower wing", 345, 0.30},
		{"at short strike", 350, 5.30},
		{"at upper wing", 355, 0.30},
		{"far above wings", 370, 0.30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.PayoffAt(tt.price); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("PayoffAt(%v) = %v, want %v", tt.price, got, tt.want)
			}
		})
	}
}

func TestPayoffAtSkipsUnrecordedLegs(t *testing.T) {
	c := lockedCondor()
	leg := c.Leg(LegSellTwo)
	leg.Recorded = false
	c.SetLeg(LegSellTwo, leg)

	// Without sell2, at 360 the long 355 call is worth 5: 5-2.00+4.00-2.20.
	if got := c.PayoffAt(360); math.Abs(got-4.80) > 1e-9 {
		t.Errorf("PayoffAt(360) = %v, want 4.80", got)
	}
}

func TestPayoffSeries(t *testing.T) {
	c := lockedCondor()
	pts := c.PayoffSeries(330, 370, 5)
	if len(pts) != 5 {
		t.Fatalf("len(series) = %d, want 5", len(pts))
	}
	if pts[0].Price != 330 || pts[4].Price != 370 {
		t.Errorf("series endpoints = %v, %v; want 330, 370", pts[0].Price, pts[4].Price)
	}

	// Degenerate step counts still produce both endpoints.
	pts = c.PayoffSeries(330, 370, 1)
	if len(pts) != 2 {
		t.Errorf("len(series) with steps=1 = %d, want 2", len(pts))
	}
}

func TestBreakevens(t *testing.T) {
	c := lockedCondor()
	// A fully locked plan never crosses zero.
	if got := c.Breakevens(300, 400); len(got) != 0 {
		t.Errorf("Breakevens() = %v, want none for locked plan", got)
	}

	// Break the lock and the curve must cross zero inside each wing.
	leg := c.Leg(LegSellTwo)
	leg.Premium = 3.00
	c.SetLeg(LegSellTwo, leg)
	got := c.Breakevens(300, 400)
	if len(got) != 2 {
		t.Fatalf("Breakevens() = %v, want two crossings", got)
	}
	for _, px := range got {
		if math.Abs(c.PayoffAt(px)) > 0.01 {
			t.Errorf("payoff at breakeven %v = %v, want ~0", px, c.PayoffAt(px))
		}
	}
}

func TestCondorValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CondorPlan)
		wantErr bool
	}{
		{"valid", func(c *CondorPlan) {}, false},
		{"missing symbol", func(c *CondorPlan) { c.Symbol = "" }, true},
		{"bad outlook", func(c *CondorPlan) { c.Outlook = "sideways" }, true},
		{"zero wing width", func(c *CondorPlan) { c.WingWidth = 0 }, true},
		{"negative premium", func(c *CondorPlan) {
			leg := c.Leg(LegSellOne)
			leg.Premium = -1
			c.SetLeg(LegSellOne, leg)
		}, true},
		{"unrecorded legs skipped", func(c *CondorPlan) {
			c.SetLeg(LegSellTwo, CondorLeg{})
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := lockedCondor()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
