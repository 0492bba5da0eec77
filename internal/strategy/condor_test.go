package strategy

import (
	"testing"

	"github.com/ycwei/probroll/internal/models"
)

func TestBuildCondorBullishATM(t *testing.T) {
	plan, err := BuildCondor(CondorSpec{
		Symbol:        "QQQ",
		Outlook:       models.OutlookBullish,
		SellOneStrike: 350,
		WingWidth:     5,
		ATM:           true,
	})
	if err != nil {
		t.Fatalf("BuildCondor error = %v", err)
	}

	tests := []struct {
		id     models.LegID
		side   models.Side
		action models.Action
		strike float64
	}{
		{models.LegSellOne, models.SidePut, models.ActionSell, 350},
		{models.LegSellTwo, models.SideCall, models.ActionSell, 350},
		{models.LegBuyOne, models.SideCall, models.ActionBuy, 355},
		{models.LegBuyTwo, models.SidePut, models.ActionBuy, 345},
	}
	for _, tt := range tests {
		leg := plan.Leg(tt.id)
		if leg.Side != tt.side || leg.Action != tt.action || leg.Strike != tt.strike {
			t.Errorf("leg %s = {%s %s %.0f}, want {%s %s %.0f}",
				tt.id, leg.Side, leg.Action, leg.Strike, tt.side, tt.action, tt.strike)
		}
		if leg.Recorded {
			t.Errorf("leg %s should start unrecorded", tt.id)
		}
	}
}

func TestBuildCondorBearishSpread(t *testing.T) {
	plan, err := BuildCondor(CondorSpec{
		Symbol:        "QQQ",
		Outlook:       models.OutlookBearish,
		SellOneStrike: 350,
		SellTwoStrike: 340,
		WingWidth:     5,
	})
	if err != nil {
		t.Fatalf("BuildCondor error = %v", err)
	}

	tests := []struct {
		id     models.LegID
		side   models.Side
		strike float64
	}{
		{models.LegSellOne, models.SideCall, 350},
		{models.LegSellTwo, models.SidePut, 340},
		{models.LegBuyOne, models.SidePut, 345},
		{models.LegBuyTwo, models.SideCall, 345},
	}
	for _, tt := range tests {
		leg := plan.Leg(tt.id)
		if leg.Side != tt.side || leg.Strike != tt.strike {
			t.Errorf("leg %s = {%s %.0f}, want {%s %.0f}", tt.id, leg.Side, leg.Strike, tt.side, tt.strike)
		}
	}
}

func TestBuildCondorRejectsBadSpecs(t *testing.T) {
	tests := []struct {
		name string
		spec CondorSpec
	}{
		{"missing symbol", CondorSpec{Outlook: models.OutlookBullish, SellOneStrike: 350, WingWidth: 5, ATM: true}},
		{"bad outlook", CondorSpec{Symbol: "QQQ", Outlook: "sideways", SellOneStrike: 350, WingWidth: 5, ATM: true}},
		{"zero sell1", CondorSpec{Symbol: "QQQ", Outlook: models.OutlookBullish, WingWidth: 5, ATM: true}},
		{"zero wing", CondorSpec{Symbol: "QQQ", Outlook: models.OutlookBullish, SellOneStrike: 350, ATM: true}},
		{"zero sell2 in spread mode", CondorSpec{Symbol: "QQQ", Outlook: models.OutlookBullish, SellOneStrike: 350, WingWidth: 5}},
		{"wing crosses zero", CondorSpec{Symbol: "QQQ", Outlook: models.OutlookBullish, SellOneStrike: 3, WingWidth: 5, ATM: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := BuildCondor(tt.spec); err == nil {
				t.Error("BuildCondor should fail")
			}
		})
	}
}

func TestRecordFill(t *testing.T) {
	plan, err := BuildCondor(CondorSpec{
		Symbol:        "QQQ",
		Outlook:       models.OutlookBullish,
		SellOneStrike: 350,
		WingWidth:     5,
		ATM:           true,
	})
	if err != nil {
		t.Fatalf("BuildCondor error = %v", err)
	}

	fills := map[models.LegID]float64{
		models.LegBuyOne:  2.00,
		models.LegSellOne: 4.00,
		models.LegBuyTwo:  2.20,
	}
	for id, premium := range fills {
		if err := RecordFill(plan, id, premium); err != nil {
			t.Fatalf("RecordFill(%s) error = %v", id, err)
		}
	}

	if plan.Recorded(models.LegSellTwo) {
		t.Error("sell2 should still be unrecorded")
	}
	if got := plan.RequiredSellTwo(); got != 5.20 {
		t.Errorf("RequiredSellTwo() = %v, want 5.20", got)
	}

	if err := RecordFill(plan, models.LegSellTwo, 5.50); err != nil {
		t.Fatalf("RecordFill(sell2) error = %v", err)
	}
	if !plan.Locked() {
		t.Error("plan should be locked after the final fill")
	}

	if err := RecordFill(plan, models.LegSellTwo, -1); err == nil {
		t.Error("negative premium should fail")
	}
}
