package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ycwei/probroll/internal/broker"
	"github.com/ycwei/probroll/internal/config"
	"github.com/ycwei/probroll/internal/dist"
	"github.com/ycwei/probroll/internal/models"
	"github.com/ycwei/probroll/internal/orders"
	"github.com/ycwei/probroll/internal/storage"
	"github.com/ycwei/probroll/internal/strategy"
	"github.com/ycwei/probroll/internal/util"
)

// Bot owns startup position entry. Once the book has coverage the
// monitor takes over and keeps every leg inside its band.
type Bot struct {
	config  *config.Config
	series  *dist.PriceSeries
	broker  broker.Broker
	storage storage.Interface
	orders  *orders.Manager
	logger  *log.Logger
	now     func() time.Time
}

// Bootstrap sells an opening strangle when the ledger has no active
// legs for the configured symbol. Outside trading hours it does
// nothing; the monitor will keep cycling until the window opens.
func (b *Bot) Bootstrap(ctx context.Context) error {
	now := b.clock()

	if !b.config.IsWithinTradingHours(now) {
		b.logger.Printf("Outside trading hours (%s - %s), skipping opening trade",
			b.config.Schedule.TradingStart, b.config.Schedule.TradingEnd)
		return nil
	}

	symbol := b.config.Strategy.Symbol
	for _, pos := range b.storage.ActivePositions() {
		if pos.Symbol == symbol {
			b.logger.Printf("Book already has active %s legs, monitor takes over", symbol)
			return nil
		}
	}

	spot, err := b.broker.GetQuote(ctx, symbol)
	if err != nil || spot <= 0 {
		last, lastErr := b.series.LastClose()
		if lastErr != nil {
			return fmt.Errorf("no quote and no historical close for %s: %w", symbol, lastErr)
		}
		b.logger.Printf("Quote for %s unavailable (%v), using last close %.2f", symbol, err, last)
		spot = last
	}

	expiration := nextMonthlyExpiration(now)
	ladder, err := b.broker.GetStrikes(ctx, symbol, expiration)
	if err != nil {
		return fmt.Errorf("fetching strike ladder: %w", err)
	}

	buyingPower, err := b.broker.GetBuyingPower(ctx)
	if err != nil || buyingPower <= 0 {
		buyingPower = b.config.Broker.BuyingPower
	}
	quantity := strategy.ContractsPerSide(buyingPower, b.config.Strategy.UsagePct, spot)
	calDays := models.DaysUntil(now, expiration)
	days := strategy.HorizonDays(calDays)
	b.logger.Printf("Targeting %s expiration (%d calendar days, %d trading sessions)",
		expiration.Format("2006-01-02"), calDays, b.series.TradingDaysUntil(now, expiration))

	selector := strategy.NewSelector(b.series)
	for _, side := range []models.Side{models.SideCall, models.SidePut} {
		sel, err := selector.Select(side, spot, ladder, days, b.config.Strategy.WinRate)
		if err != nil {
			return fmt.Errorf("selecting %s strike: %w", side, err)
		}
		b.logger.Printf("Opening %d x %s %s %.2f (exec prob %.2f%%, target %.2f%%)",
			quantity, symbol, side, sel.Strike, sel.Prob*100, sel.Target*100)

		pos, err := b.orders.OpenPosition(ctx, orders.OpenParams{
			Symbol:     symbol,
			Side:       side,
			Strike:     sel.Strike,
			Expiration: expiration,
			Quantity:   quantity,
			SpotPrice:  spot,
			ExecProb:   sel.Prob,
			WinRate:    b.config.Strategy.WinRate,
			ProbLow:    b.config.Strategy.ProbLow,
			ProbHigh:   b.config.Strategy.ProbHigh,
			UsagePct:   b.config.Strategy.UsagePct,
		})
		if err != nil {
			return fmt.Errorf("opening %s leg: %w", side, err)
		}
		b.logger.Printf("Opened %s at %.2f premium", pos.ContractLabel(), pos.EntryPremium)
	}

	if b.config.Strategy.Condor.Enabled {
		b.proposeCondor(spot, ladder)
	}
	return nil
}

// proposeCondor logs the four-leg layout anchored at the money. Premiums
// are priced by the operator through the dashboard payoff endpoint
// before any leg is worked.
func (b *Bot) proposeCondor(spot float64, ladder []float64) {
	cc := b.config.Strategy.Condor
	plan, err := strategy.BuildCondor(strategy.CondorSpec{
		Symbol:        b.config.Strategy.Symbol,
		Outlook:       models.Outlook(cc.Outlook),
		SellOneStrike: util.NearestStrike(ladder, spot),
		WingWidth:     cc.WingWidth,
		ATM:           true,
	})
	if err != nil {
		b.logger.Printf("Condor layout failed: %v", err)
		return
	}
	for _, id := range models.LegIDs() {
		leg := plan.Leg(id)
		b.logger.Printf("Condor %s: %s %s %.2f", id, leg.Action, leg.Side, leg.Strike)
	}
}

func (b *Bot) clock() time.Time {
	if b.now != nil {
		return b.now()
	}
	return time.Now()
}

// nextMonthlyExpiration returns the third Friday of the current month,
// or of the next month once it has passed.
func nextMonthlyExpiration(now time.Time) time.Time {
	for m := 0; ; m++ {
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, m, 0)
		offset := (time.Friday - first.Weekday() + 7) % 7
		third := first.AddDate(0, 0, int(offset)+14)
		if third.After(now) {
			return third
		}
	}
}
