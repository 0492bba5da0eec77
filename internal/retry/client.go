// Package retry wraps market order placement with bounded retries for
// transient brokerage failures.
package retry

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/ycwei/probroll/internal/broker"
)

type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Timeout        time.Duration
}

var DefaultConfig = Config{
	MaxRetries:     3,
	InitialBackoff: 1 * time.Second,
	MaxBackoff:     30 * time.Second,
	Timeout:        2 * time.Minute,
}

// Client retries PlaceMarketOrder against a Broker. Permanent rejections
// are surfaced immediately; only transient failures burn retry attempts.
type Client struct {
	broker broker.Broker
	logger *log.Logger
	config Config
}

func NewClient(b broker.Broker, logger *log.Logger, config ...Config) *Client {
	cfg := DefaultConfig
	if len(config) > 0 {
		cfg = config[0]
	}

	return &Client{
		broker: b,
		logger: logger,
		config: cfg,
	}
}

// PlaceMarketOrderWithRetry submits the ticket, retrying transient errors
// with multiplicative backoff and jitter until the ticket fills, a
// permanent error appears, or the attempt budget runs out.
func (c *Client) PlaceMarketOrderWithRetry(ctx context.Context, ticket broker.OrderTicket) (*broker.OrderReceipt, error) {
	opCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var lastErr error
	backoff := c.config.InitialBackoff

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		select {
		case <-opCtx.Done():
			return nil, fmt.Errorf("order placement timed out after %v: %w", c.config.Timeout, opCtx.Err())
		default:
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("operation canceled: %w", ctx.Err())
		}

		c.logger.Printf("Order attempt %d/%d: %s %s %s %.2f x%d",
			attempt+1, c.config.MaxRetries+1, ticket.Action, ticket.Symbol, ticket.Side, ticket.Strike, ticket.Quantity)

		receipt, err := c.broker.PlaceMarketOrder(opCtx, ticket)
		if err == nil {
			c.logger.Printf("Order filled on attempt %d: %s at %.2f", attempt+1, receipt.OrderID, receipt.FillPrice)
			return receipt, nil
		}

		lastErr = err
		c.logger.Printf("Order attempt %d failed: %v", attempt+1, err)

		if broker.IsPermanentAPIError(err) {
			return nil, fmt.Errorf("order rejected: %w", err)
		}

		if c.isTransientError(err) && attempt < c.config.MaxRetries {
			c.logger.Printf("Transient error detected, retrying in %v", backoff)
			select {
			case <-time.After(backoff):
				backoff = c.calculateNextBackoff(backoff)
			case <-opCtx.Done():
				return nil, fmt.Errorf("order placement timed out during backoff: %w", opCtx.Err())
			case <-ctx.Done():
				return nil, fmt.Errorf("operation canceled during backoff: %w", ctx.Err())
			}
		} else {
			break
		}
	}

	return nil, fmt.Errorf("failed to place order after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func (c *Client) calculateNextBackoff(currentBackoff time.Duration) time.Duration {
	backoff := time.Duration(float64(currentBackoff) * 1.5)
	if backoff > c.config.MaxBackoff {
		backoff = c.config.MaxBackoff
	}

	maxJitter := int64(backoff / 4)
	if maxJitter > 0 {
		jitterVal, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
		if err != nil {
			log.Printf("Failed to generate jitter: %v", err)
		} else {
			jitter := time.Duration(jitterVal.Int64())
			backoff += jitter
		}
	}

	return backoff
}

func (c *Client) isTransientError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	transientPatterns := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"server error",
		"rate limit",
		"429", // HTTP 429 Too Many Requests
		"502", // HTTP 502 Bad Gateway
		"503", // HTTP 503 Service Unavailable
		"504", // HTTP 504 Gateway Timeout
		"network",
		"dns",
		"tcp",
	}

	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
