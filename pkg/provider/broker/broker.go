// Package broker implements the authenticated brokerage REST quote source.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ikggod/stock-dashboard/pkg/httpx"
	"github.com/ikggod/stock-dashboard/pkg/provider"
)

const (
	tokenPath = "/oauth2/tokenP"
	pricePath = "/uapi/domestic-stock/v1/quotations/inquire-price"

	priceTrID = "FHKST01010100"
)

type Config struct {
	BaseURL   string
	AppKey    string
	AppSecret string
}

// Client fetches real-time quotes from the brokerage open API. Access tokens
// are cached until shortly before expiry.
type Client struct {
	cfg  Config
	http *httpx.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func New(cfg Config, hc *httpx.Client) *Client {
	return &Client{cfg: cfg, http: hc}
}

func (c *Client) Name() string { return "broker" }

// Info is the broker's full view of a symbol, beyond the bare price.
type Info struct {
	Name       string
	Symbol     string
	Price      float64
	Change     int64
	ChangeRate float64
	Volume     int64
}

type priceResponse struct {
	Output struct {
		Name       string `json:"prdt_name"`
		Price      string `json:"stck_prpr"`
		Change     string `json:"prdy_vrss"`
		ChangeRate string `json:"prdy_ctrt"`
		Volume     string `json:"acml_vol"`
	} `json:"output"`
	MsgCode string `json:"msg_cd"`
	Message string `json:"msg1"`
}

func (c *Client) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	info, err := c.FetchInfo(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return info.Price, nil
}

// FetchInfo queries the inquire-price endpoint for one symbol.
func (c *Client) FetchInfo(ctx context.Context, symbol string) (Info, error) {
	token, err := c.token(ctx)
	if err != nil {
		return Info{}, err
	}

	symbol = PadCode(symbol)
	q := url.Values{}
	q.Set("fid_cond_mrkt_div_code", "J")
	q.Set("fid_input_iscd", symbol)

	req, err := http.NewRequest(http.MethodGet, c.cfg.BaseURL+pricePath+"?"+q.Encode(), nil)
	if err != nil {
		return Info{}, err
	}
	req.Header.Set("authorization", "Bearer "+token)
	req.Header.Set("appkey", c.cfg.AppKey)
	req.Header.Set("appsecret", c.cfg.AppSecret)
	req.Header.Set("tr_id", priceTrID)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return Info{}, fmt.Errorf("broker price request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Info{}, fmt.Errorf("broker price request: status %d", resp.StatusCode)
	}

	var pr priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return Info{}, fmt.Errorf("broker price decode: %w", err)
	}
	if pr.Output.Price == "" {
		return Info{}, provider.ErrNoPrice
	}
	price, err := strconv.ParseFloat(pr.Output.Price, 64)
	if err != nil {
		return Info{}, fmt.Errorf("broker price %q: %w", pr.Output.Price, err)
	}

	info := Info{Name: pr.Output.Name, Symbol: symbol, Price: price}
	if v, err := strconv.ParseInt(pr.Output.Change, 10, 64); err == nil {
		info.Change = v
	}
	if v, err := strconv.ParseFloat(pr.Output.ChangeRate, 64); err == nil {
		info.ChangeRate = v
	}
	if v, err := strconv.ParseInt(pr.Output.Volume, 10, 64); err == nil {
		info.Volume = v
	}
	return info, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	body, _ := json.Marshal(map[string]string{
		"grant_type": "client_credentials",
		"appkey":     c.cfg.AppKey,
		"appsecret":  c.cfg.AppSecret,
	})
	req, err := http.NewRequest(http.MethodPost, c.cfg.BaseURL+tokenPath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("broker token request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("broker token request: status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("broker token decode: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("broker token response empty")
	}

	c.accessToken = tr.AccessToken
	// Renew a minute early so in-flight requests never carry a dead token.
	c.tokenExpiry = time.Now().Add(time.Duration(tr.ExpiresIn)*time.Second - time.Minute)
	return c.accessToken, nil
}

// PadCode left-pads a numeric symbol to the 6 digits the broker expects.
func PadCode(symbol string) string {
	s := strings.TrimSpace(symbol)
	for len(s) < 6 {
		s = "0" + s
	}
	return s
}
