package strategy

import (
	"fmt"

	"github.com/ycwei/probroll/internal/models"
)

// CondorSpec describes a four-leg plan before any fills. In at-the-money
// mode the second short strike is synced to the first; in spread mode the
// two short strikes stand apart.
type CondorSpec struct {
	Symbol        string
	Outlook       models.Outlook
	SellOneStrike float64
	SellTwoStrike float64 // ignored when ATM is set
	WingWidth     float64
	ATM           bool
}

// BuildCondor lays out the four legs described by spec. A bullish plan sells the
// put side first and wings it with a call above and a put below; bearish is
// the mirror image. Premiums start unrecorded and are filled in leg by leg
// as the orders execute.
func BuildCondor(spec CondorSpec) (*models.CondorPlan, error) {
	if spec.Symbol == "" {
		return nil, fmt.Errorf("condor spec missing symbol")
	}
	if !spec.Outlook.Valid() {
		return nil, fmt.Errorf("condor spec: invalid outlook %q", spec.Outlook)
	}
	if spec.SellOneStrike <= 0 {
		return nil, fmt.Errorf("condor spec: sell1 strike must be positive")
	}
	if spec.WingWidth <= 0 {
		return nil, fmt.Errorf("condor spec: wing width must be positive")
	}

	sell1 := spec.SellOneStrike
	sell2 := spec.SellTwoStrike
	if spec.ATM {
		sell2 = sell1
	}
	if sell2 <= 0 {
		return nil, fmt.Errorf("condor spec: sell2 strike must be positive")
	}

	plan := &models.CondorPlan{
		Symbol:    spec.Symbol,
		Outlook:   spec.Outlook,
		WingWidth: spec.WingWidth,
	}

	switch spec.Outlook {
	case models.OutlookBullish:
		plan.SetLeg(models.LegSellOne, models.CondorLeg{Side: models.SidePut, Action: models.ActionSell, Strike: sell1})
		plan.SetLeg(models.LegSellTwo, models.CondorLeg{Side: models.SideCall, Action: models.ActionSell, Strike: sell2})
		plan.SetLeg(models.LegBuyOne, models.CondorLeg{Side: models.SideCall, Action: models.ActionBuy, Strike: sell1 + spec.WingWidth})
		plan.SetLeg(models.LegBuyTwo, models.CondorLeg{Side: models.SidePut, Action: models.ActionBuy, Strike: sell2 - spec.WingWidth})
	case models.OutlookBearish:
		plan.SetLeg(models.LegSellOne, models.CondorLeg{Side: models.SideCall, Action: models.ActionSell, Strike: sell1})
		plan.SetLeg(models.LegSellTwo, models.CondorLeg{Side: models.SidePut, Action: models.ActionSell, Strike: sell2})
		plan.SetLeg(models.LegBuyOne, models.CondorLeg{Side: models.SidePut, Action: models.ActionBuy, Strike: sell1 - spec.WingWidth})
		plan.SetLeg(models.LegBuyTwo, models.CondorLeg{Side: models.SideCall, Action: models.ActionBuy, Strike: sell2 + spec.WingWidth})
	}

	for _, id := range models.LegIDs() {
		if plan.Leg(id).Strike <= 0 {
			return nil, fmt.Errorf("condor spec: leg %s strike %.2f is not positive", id, plan.Leg(id).Strike)
		}
	}
	return plan, nil
}

// RecordFill captures the executed premium for one leg of the plan.
func RecordFill(plan *models.CondorPlan, id models.LegID, premium float64) error {
	if premium < 0 {
		return fmt.Errorf("fill premium must be non-negative (got %.4f)", premium)
	}
	leg := plan.Leg(id)
	if leg.Strike <= 0 {
		return fmt.Errorf("leg %s has no strike laid out", id)
	}
	leg.Premium = premium
	leg.Recorded = true
	return plan.SetLeg(id, leg)
}
