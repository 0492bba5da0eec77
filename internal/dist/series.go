// Package dist computes empirical execution probabilities from historical
// daily closes. It treats the forward return distribution of the loaded
// series as the forecast distribution, with no parametric model on top.
package dist

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/gocarina/gocsv"
)

// ErrInsufficientData is returned when a series is too short to produce
// even one forward return.
var ErrInsufficientData = errors.New("insufficient price history")

// Bar is one daily row of a price history CSV. Only the close is used for
// probability work; the rest is carried for diagnostics.
type Bar struct {
	Date   DateOnly `csv:"Date"`
	Open   float64  `csv:"Open"`
	High   float64  `csv:"High"`
	Low    float64  `csv:"Low"`
	Close  float64  `csv:"Close"`
	Volume int64    `csv:"Volume"`
}

// DateOnly parses the yyyy-mm-dd date column.
type DateOnly struct {
	time.Time
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller.
func (d *DateOnly) UnmarshalCSV(csv string) error {
	t, err := time.Parse("2006-01-02", csv)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", csv, err)
	}
	d.Time = t
	return nil
}

// MarshalCSV implements gocsv.TypeMarshaller.
func (d DateOnly) MarshalCSV() (string, error) {
	return d.Format("2006-01-02"), nil
}

// PriceSeries is a chronologically ordered run of daily bars for one symbol.
type PriceSeries struct {
	Symbol string
	Bars   []Bar
}

// LoadCSV reads a daily OHLCV file and returns the series sorted by date.
// Rows with non-positive closes are dropped rather than poisoning the
// return distribution.
func LoadCSV(symbol, path string) (*PriceSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open price history: %w", err)
	}
	defer f.Close()

	var rows []Bar
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parse price history %s: %w", path, err)
	}

	bars := rows[:0]
	for _, b := range rows {
		if b.Close > 0 {
			bars = append(bars, b)
		}
	}
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date.Time)
	})

	return &PriceSeries{Symbol: symbol, Bars: bars}, nil
}

// Len returns the number of bars in the series.
func (s *PriceSeries) Len() int {
	return len(s.Bars)
}

// Closes returns the close column in chronological order.
func (s *PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// LastClose returns the most recent close, or an error on an empty series.
func (s *PriceSeries) LastClose() (float64, error) {
	if len(s.Bars) == 0 {
		return 0, ErrInsufficientData
	}
	return s.Bars[len(s.Bars)-1].Close, nil
}

// TradingDaysUntil counts the bars strictly after from and up to and
// including until. When the series does not cover the window (for example
// a freshly listed symbol or a stale file), it falls back to a 5-out-of-7
// calendar estimate so callers always get a usable horizon.
func (s *PriceSeries) TradingDaysUntil(from, until time.Time) int {
	from = from.UTC().Truncate(24 * time.Hour)
	until = until.UTC().Truncate(24 * time.Hour)
	if !until.After(from) {
		return 0
	}

	if len(s.Bars) > 0 && !s.Bars[len(s.Bars)-1].Date.Before(until) {
		n := 0
		for _, b := range s.Bars {
			d := b.Date.UTC().Truncate(24 * time.Hour)
			if d.After(from) && !d.After(until) {
				n++
			}
		}
		return n
	}

	calendar := int(until.Sub(from).Hours() / 24)
	return calendar * 5 / 7
}
