// Package webquote scrapes the public finance portal for a delayed price.
// Free and unauthenticated, so it sits behind the broker in the fallback
// chain.
package webquote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ikggod/stock-dashboard/pkg/httpx"
	"github.com/ikggod/stock-dashboard/pkg/provider"
)

const defaultBaseURL = "https://finance.naver.com/item/main.naver"

// The current price is the first blind node inside the no_today block.
const (
	priceBlockMarker = `class="no_today"`
	valueMarker      = `class="blind">`
)

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

func (c *Client) Name() string { return "webquote" }

func (c *Client) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	req, err := http.NewRequest(http.MethodGet, c.BaseURL+"?code="+symbol, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("webquote request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("webquote request: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("webquote read: %w", err)
	}
	return parsePrice(string(body))
}

func parsePrice(page string) (float64, error) {
	block := strings.Index(page, priceBlockMarker)
	if block < 0 {
		return 0, provider.ErrNoPrice
	}
	rest := page[block:]
	open := strings.Index(rest, valueMarker)
	if open < 0 {
		return 0, provider.ErrNoPrice
	}
	rest = rest[open+len(valueMarker):]
	end := strings.Index(rest, "<")
	if end < 0 {
		return 0, provider.ErrNoPrice
	}
	text := strings.ReplaceAll(strings.TrimSpace(rest[:end]), ",", "")
	price, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("webquote parse %q: %w", text, err)
	}
	return price, nil
}
