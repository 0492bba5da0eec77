package main

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/ycwei/probroll/internal/broker"
	"github.com/ycwei/probroll/internal/config"
	"github.com/ycwei/probroll/internal/dist"
	"github.com/ycwei/probroll/internal/models"
	"github.com/ycwei/probroll/internal/orders"
	"github.com/ycwei/probroll/internal/retry"
	"github.com/ycwei/probroll/internal/storage"
)

var bootNow = time.Date(2026, 1, 10, 14, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Environment.Mode = "paper"
	cfg.Strategy.Symbol = "QQQ"
	cfg.Strategy.WinRate = 90
	cfg.Strategy.ProbLow = 2.5
	cfg.Strategy.ProbHigh = 12.5
	cfg.Strategy.UsagePct = 50
	cfg.Broker.BuyingPower = 100000
	cfg.Schedule.AfterHoursCheck = true
	return cfg
}

func testSeries() *dist.PriceSeries {
	s := &dist.PriceSeries{Symbol: "QQQ"}
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	for i := 0; i <= 10; i++ {
		s.Bars = append(s.Bars, dist.Bar{
			Date:  dist.DateOnly{Time: start.AddDate(0, 0, i)},
			Close: 100 + float64(i),
		})
	}
	return s
}

func newTestBot(t *testing.T) (*Bot, *broker.PaperBroker, *storage.MockStorage) {
	t.Helper()
	logger := log.New(io.Discard, "", 0)

	pb := broker.NewPaperBroker(100000)
	pb.SetQuote("QQQ", 100)
	pb.SetStrikes("QQQ", []float64{95, 98, 102, 105, 106, 107, 108})

	store := storage.NewMockStorage()
	store.SetNow(func() time.Time { return bootNow })

	bot := &Bot{
		config:  testConfig(),
		series:  testSeries(),
		broker:  pb,
		storage: store,
		orders:  orders.NewManager(retry.NewClient(pb, logger), store, logger),
		logger:  logger,
		now:     func() time.Time { return bootNow },
	}
	return bot, pb, store
}

func TestBootstrapOpensBothSides(t *testing.T) {
	bot, pb, store := newTestBot(t)

	if err := bot.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap error = %v", err)
	}

	active := store.ActivePositions()
	if len(active) != 2 {
		t.Fatalf("active positions = %d, want 2", len(active))
	}
	sides := map[models.Side]models.Position{}
	for _, pos := range active {
		sides[pos.Side] = pos
	}
	call, haveCall := sides[models.SideCall]
	put, havePut := sides[models.SidePut]
	if !haveCall || !havePut {
		t.Fatalf("want one call and one put, got %+v", active)
	}
	if call.Strike <= put.Strike {
		t.Errorf("call strike %.2f should sit above put strike %.2f", call.Strike, put.Strike)
	}

	// Half of 50% usage on a 100000 account buys two 100-share lots.
	for _, pos := range active {
		if pos.Quantity != 2 {
			t.Errorf("%s quantity = %d, want 2", pos.Side, pos.Quantity)
		}
		if pos.ProbLow != 2.5 || pos.ProbHigh != 12.5 {
			t.Errorf("%s band = [%v,%v], want config band", pos.Side, pos.ProbLow, pos.ProbHigh)
		}
		if pos.EntryPremium <= 0 {
			t.Errorf("%s entry premium = %v, want positive fill", pos.Side, pos.EntryPremium)
		}
	}

	tickets := pb.Orders()
	if len(tickets) != 2 {
		t.Fatalf("orders placed = %d, want 2", len(tickets))
	}
	for _, tk := range tickets {
		if tk.Action != models.ActionSell {
			t.Errorf("ticket action = %s, want sell", tk.Action)
		}
	}
}

// Strike selection runs on calendar days to expiration. With weekday-only
// history and a Friday-to-Friday window the seven-day returns run near 7%,
// pushing both picks out beyond where a five-session horizon would stop.
func TestBootstrapSelectsOnCalendarDays(t *testing.T) {
	series := &dist.PriceSeries{Symbol: "QQQ"}
	c := 100.0
	for i := 0; i < 12; i++ {
		day := time.Date(2026, 1, 5+i, 0, 0, 0, 0, time.UTC)
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}
		series.Bars = append(series.Bars, dist.Bar{Date: dist.DateOnly{Time: day}, Close: c})
		c++
	}

	now := time.Date(2026, 1, 9, 14, 0, 0, 0, time.UTC) // Friday, expiry next Friday
	logger := log.New(io.Discard, "", 0)

	pb := broker.NewPaperBroker(100000)
	pb.SetQuote("QQQ", 100)
	pb.SetStrikes("QQQ", []float64{102, 105, 106, 108})

	store := storage.NewMockStorage()
	store.SetNow(func() time.Time { return now })

	bot := &Bot{
		config:  testConfig(),
		series:  series,
		broker:  pb,
		storage: store,
		orders:  orders.NewManager(retry.NewClient(pb, logger), store, logger),
		logger:  logger,
		now:     func() time.Time { return now },
	}

	if err := bot.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap error = %v", err)
	}

	strikes := map[models.Side]float64{}
	for _, pos := range store.ActivePositions() {
		strikes[pos.Side] = pos.Strike
	}
	if strikes[models.SideCall] != 108 {
		t.Errorf("call strike = %v, want 108", strikes[models.SideCall])
	}
	if strikes[models.SidePut] != 106 {
		t.Errorf("put strike = %v, want 106", strikes[models.SidePut])
	}
}

func TestBootstrapSkipsWhenBookCovered(t *testing.T) {
	bot, pb, store := newTestBot(t)

	existing := models.NewPosition("p1", "QQQ", 105, models.SideCall,
		time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC), 1)
	if err := store.AddPosition(existing); err != nil {
		t.Fatalf("AddPosition error = %v", err)
	}

	if err := bot.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap error = %v", err)
	}
	if got := len(pb.Orders()); got != 0 {
		t.Errorf("orders placed = %d, want 0", got)
	}
}

func TestBootstrapSkipsOutsideTradingHours(t *testing.T) {
	bot, pb, _ := newTestBot(t)
	bot.config.Schedule.AfterHoursCheck = false
	bot.config.Schedule.TradingStart = "09:35"
	bot.config.Schedule.TradingEnd = "15:45"
	bot.config.Schedule.Timezone = "UTC"
	bot.now = func() time.Time {
		return time.Date(2026, 1, 10, 23, 0, 0, 0, time.UTC) // Saturday night
	}

	if err := bot.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap error = %v", err)
	}
	if got := len(pb.Orders()); got != 0 {
		t.Errorf("orders placed = %d, want 0", got)
	}
}

func TestNextMonthlyExpiration(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			"before the third friday",
			time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			"after the third friday rolls to next month",
			time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC),
		},
		{
			"december rolls into january",
			time.Date(2026, 12, 28, 0, 0, 0, 0, time.UTC),
			time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextMonthlyExpiration(tt.now); !got.Equal(tt.want) {
				t.Errorf("nextMonthlyExpiration(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}
