package broker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sony/gobreaker"
)

// CircuitBreakerBroker wraps a Broker so a run of brokerage failures stops
// hammering the API until it recovers.
type CircuitBreakerBroker struct {
	broker  Broker
	breaker *gobreaker.CircuitBreaker
}

// Ensure CircuitBreakerBroker implements Broker at compile time.
var _ Broker = (*CircuitBreakerBroker)(nil)

// execCircuitBreaker is a generic helper for the wrapper methods.
func execCircuitBreaker[T any](
	breaker *gobreaker.CircuitBreaker,
	broker Broker,
	fn func(Broker) (T, error),
) (T, error) {
	var zero T
	res, err := breaker.Execute(func() (interface{}, error) { return fn(broker) })
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, errors.New("circuit breaker: type assertion failed")
	}
	return v, nil
}

// CircuitBreakerSettings configures circuit breaker behavior.
type CircuitBreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// NewCircuitBreakerBroker creates a CircuitBreakerBroker with sensible defaults.
func NewCircuitBreakerBroker(broker Broker) *CircuitBreakerBroker {
	return NewCircuitBreakerBrokerWithSettings(broker, CircuitBreakerSettings{
		MaxRequests:  3,                // Allow 3 requests when half-open
		Interval:     60 * time.Second, // Reset counts every minute
		Timeout:      30 * time.Second, // Open circuit for 30 seconds
		MinRequests:  5,                // Minimum requests before tripping
		FailureRatio: 0.6,              // Trip if 60% failure rate
	})
}

// NewCircuitBreakerBrokerWithSettings creates a CircuitBreakerBroker with custom settings.
func NewCircuitBreakerBrokerWithSettings(broker Broker, settings CircuitBreakerSettings) *CircuitBreakerBroker {
	gbSettings := gobreaker.Settings{
		Name:        "BrokerCircuitBreaker",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s state changed from %s to %s", name, from, to)
		},
	}

	return &CircuitBreakerBroker{
		broker:  broker,
		breaker: gobreaker.NewCircuitBreaker(gbSettings),
	}
}

// GetQuote wraps the underlying broker call with circuit breaker.
func (c *CircuitBreakerBroker) GetQuote(ctx context.Context, symbol string) (float64, error) {
	return execCircuitBreaker(c.breaker, c.broker, func(b Broker) (float64, error) {
		return b.GetQuote(ctx, symbol)
	})
}

// GetStrikes wraps the underlying broker call with circuit breaker.
func (c *CircuitBreakerBroker) GetStrikes(ctx context.Context, symbol string, expiration time.Time) ([]float64, error) {
	return execCircuitBreaker(c.breaker, c.broker, func(b Broker) ([]float64, error) {
		return b.GetStrikes(ctx, symbol, expiration)
	})
}

// GetBuyingPower wraps the underlying broker call with circuit breaker.
func (c *CircuitBreakerBroker) GetBuyingPower(ctx context.Context) (float64, error) {
	return execCircuitBreaker(c.breaker, c.broker, func(b Broker) (float64, error) {
		return b.GetBuyingPower(ctx)
	})
}

// PlaceMarketOrder wraps the underlying broker call with circuit breaker.
func (c *CircuitBreakerBroker) PlaceMarketOrder(ctx context.Context, ticket OrderTicket) (*OrderReceipt, error) {
	return execCircuitBreaker(c.breaker, c.broker, func(b Broker) (*OrderReceipt, error) {
		return b.PlaceMarketOrder(ctx, ticket)
	})
}
