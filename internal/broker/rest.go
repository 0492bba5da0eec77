package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/ycwei/probroll/internal/models"
)

// RESTBroker talks to a Tradier-compatible brokerage API.
type RESTBroker struct {
	client    *http.Client
	apiKey    string
	baseURL   string
	accountID string
}

var _ Broker = (*RESTBroker)(nil)

// NewRESTBroker creates a client for baseURL. An empty baseURL targets
// the production endpoint.
func NewRESTBroker(apiKey, accountID, baseURL string) *RESTBroker {
	if baseURL == "" {
		baseURL = "https://api.tradier.com/v1"
	}
	return &RESTBroker{
		client:    &http.Client{Timeout: 10 * time.Second},
		apiKey:    apiKey,
		accountID: accountID,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// WithHTTPClient overrides the HTTP client (tests, custom transport).
func (r *RESTBroker) WithHTTPClient(c *http.Client) *RESTBroker {
	if c != nil {
		r.client = c
	}
	return r
}

type quoteResponse struct {
	Quotes struct {
		Quote struct {
			Symbol string  `json:"symbol"`
			Last   float64 `json:"last"`
		} `json:"quote"`
	} `json:"quotes"`
}

type strikesResponse struct {
	Strikes struct {
		Strike []float64 `json:"strike"`
	} `json:"strikes"`
}

type balancesResponse struct {
	Balances struct {
		AccountType string `json:"account_type"`
		Margin      *struct {
			OptionBuyingPower float64 `json:"option_buying_power"`
		} `json:"margin"`
		Cash *struct {
			CashAvailable float64 `json:"cash_available"`
		} `json:"cash"`
		TotalCash float64 `json:"total_cash"`
	} `json:"balances"`
}

type orderResponse struct {
	Order struct {
		ID           int     `json:"id"`
		Status       string  `json:"status"`
		AvgFillPrice float64 `json:"avg_fill_price"`
	} `json:"order"`
}

// GetQuote implements Broker.
func (r *RESTBroker) GetQuote(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbols", symbol)

	var resp quoteResponse
	if err := r.get(ctx, "/markets/quotes?"+params.Encode(), &resp); err != nil {
		return 0, fmt.Errorf("fetching quote for %s: %w", symbol, err)
	}
	if resp.Quotes.Quote.Last <= 0 {
		return 0, fmt.Errorf("no quote returned for %s", symbol)
	}
	return resp.Quotes.Quote.Last, nil
}

// GetStrikes implements Broker. Strikes come back sorted ascending.
func (r *RESTBroker) GetStrikes(ctx context.Context, symbol string, expiration time.Time) ([]float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("expiration", expiration.Format("2006-01-02"))

	var resp strikesResponse
	if err := r.get(ctx, "/markets/options/strikes?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("fetching strikes for %s: %w", symbol, err)
	}
	strikes := resp.Strikes.Strike
	sort.Float64s(strikes)
	return strikes, nil
}

// GetBuyingPower implements Broker.
func (r *RESTBroker) GetBuyingPower(ctx context.Context) (float64, error) {
	var resp balancesResponse
	if err := r.get(ctx, "/accounts/"+r.accountID+"/balances", &resp); err != nil {
		return 0, fmt.Errorf("fetching balances: %w", err)
	}
	b := resp.Balances
	switch b.AccountType {
	case "margin":
		if b.Margin == nil {
			return 0, fmt.Errorf("margin account missing margin balances")
		}
		return b.Margin.OptionBuyingPower, nil
	case "cash":
		if b.Cash == nil {
			return 0, fmt.Errorf("cash account missing cash balances")
		}
		return b.Cash.CashAvailable, nil
	}
	return b.TotalCash, nil
}

// PlaceMarketOrder implements Broker.
func (r *RESTBroker) PlaceMarketOrder(ctx context.Context, ticket OrderTicket) (*OrderReceipt, error) {
	if err := ticket.Validate(); err != nil {
		return nil, err
	}

	side := "sell_to_open"
	if ticket.Action == models.ActionBuy {
		side = "buy_to_close"
	}

	params := url.Values{}
	params.Set("class", "option")
	params.Set("symbol", ticket.Symbol)
	params.Set("option_symbol", OCCSymbol(ticket.Symbol, ticket.Expiration, ticket.Side, ticket.Strike))
	params.Set("side", side)
	params.Set("quantity", fmt.Sprintf("%d", ticket.Quantity))
	params.Set("type", "market")
	params.Set("duration", "day")
	if ticket.Tag != "" {
		params.Set("tag", ticket.Tag)
	}

	var resp orderResponse
	if err := r.post(ctx, "/accounts/"+r.accountID+"/orders", params, &resp); err != nil {
		return nil, fmt.Errorf("placing %s %s order: %w", side, ticket.Symbol, err)
	}
	return &OrderReceipt{
		OrderID:   fmt.Sprintf("%d", resp.Order.ID),
		FillPrice: resp.Order.AvgFillPrice,
		FilledAt:  time.Now().UTC(),
	}, nil
}

// OCCSymbol builds the 21-character option symbol, e.g.
// QQQ260116C00350000.
func OCCSymbol(underlying string, expiration time.Time, side models.Side, strike float64) string {
	cp := "C"
	if side == models.SidePut {
		cp = "P"
	}
	return fmt.Sprintf("%s%s%s%08d", underlying, expiration.Format("060102"), cp, int(strike*1000+0.5))
}

func (r *RESTBroker) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path, http.NoBody)
	if err != nil {
		return err
	}
	return r.do(req, out)
}

func (r *RESTBroker) post(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, strings.NewReader(params.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r.do(req, out)
}

func (r *RESTBroker) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// 64KB body cap keeps error payloads bounded.
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if readErr != nil {
			return &APIError{Status: resp.StatusCode, Body: "failed to read error body"}
		}
		return &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil && err != io.EOF {
		return err
	}
	return nil
}
