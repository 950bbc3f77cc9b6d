// Package chartfeed fetches the last close from a third-party chart API.
// Quotes are delayed; it is the tier of last resort.
package chartfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ikggod/stock-dashboard/pkg/httpx"
	"github.com/ikggod/stock-dashboard/pkg/provider"
)

const defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart/"

type Client struct {
	BaseURL string
	http    *httpx.Client
}

func New(baseURL string, hc *httpx.Client) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{BaseURL: baseURL, http: hc}
}

func (c *Client) Name() string { return "chartfeed" }

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (c *Client) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	req, err := http.NewRequest(http.MethodGet, c.BaseURL+FormatTicker(symbol)+"?range=1d&interval=1d", nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("chartfeed request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("chartfeed request: status %d", resp.StatusCode)
	}

	var cr chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return 0, fmt.Errorf("chartfeed decode: %w", err)
	}
	if cr.Chart.Error != nil {
		return 0, fmt.Errorf("chartfeed: %s", cr.Chart.Error.Description)
	}
	if len(cr.Chart.Result) == 0 || cr.Chart.Result[0].Meta.RegularMarketPrice == 0 {
		return 0, provider.ErrNoPrice
	}
	return cr.Chart.Result[0].Meta.RegularMarketPrice, nil
}

// FormatTicker maps a 6-digit domestic code to the chart API's exchange
// suffix form. Non-numeric symbols pass through unchanged.
func FormatTicker(symbol string) string {
	if len(symbol) != 6 {
		return symbol
	}
	for _, r := range symbol {
		if r < '0' || r > '9' {
			return symbol
		}
	}
	switch symbol[0] {
	case '0', '1', '2', '3':
		return symbol + ".KS"
	default:
		return symbol + ".KQ"
	}
}
