// Command fetch resolves prices for one or more symbols through the provider
// chain and prints them, one line per symbol. Useful for checking credentials
// and provider health without running the relay.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ikggod/stock-dashboard/pkg/config"
	"github.com/ikggod/stock-dashboard/pkg/httpx"
	"github.com/ikggod/stock-dashboard/pkg/marketclock"
	"github.com/ikggod/stock-dashboard/pkg/pricecache"
	"github.com/ikggod/stock-dashboard/pkg/provider/broker"
	"github.com/ikggod/stock-dashboard/pkg/provider/chartfeed"
	"github.com/ikggod/stock-dashboard/pkg/provider/webquote"
)

func main() {
	var symbolsCSV string
	var mode string
	var timeout int

	flag.StringVar(&symbolsCSV, "symbols", getenv("SYMBOLS", "005930"), "comma-separated stock codes")
	flag.StringVar(&mode, "mode", getenv("FETCH_MODE", "auto"), "provider chain: auto, broker, web, chart")
	flag.IntVar(&timeout, "timeout", 10, "overall timeout seconds")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	httpClient := httpx.New(time.Duration(cfg.Providers.TimeoutSec) * time.Second)

	brokerClient := broker.New(broker.Config{
		BaseURL:   cfg.Providers.BrokerBaseURL,
		AppKey:    cfg.Feed.AppKey,
		AppSecret: cfg.Feed.AppSecret,
	}, httpClient)
	webClient := webquote.New(cfg.Providers.WebBaseURL, httpClient)
	chartClient := chartfeed.New(cfg.Providers.ChartBaseURL, httpClient)

	cache := pricecache.New(brokerClient, webClient, chartClient, logger,
		pricecache.WithTTL(time.Duration(cfg.Cache.TTLSec)*time.Second),
		pricecache.WithProviderTimeout(time.Duration(cfg.Providers.TimeoutSec)*time.Second))

	clock := marketclock.Default()
	if open, err := marketclock.ParseTimeOfDay(cfg.Market.Open); err == nil {
		if closeAt, err := marketclock.ParseTimeOfDay(cfg.Market.Close); err == nil {
			clock = marketclock.Clock{Open: open, Close: closeAt}
		}
	}

	session := "live"
	if !clock.IsOpen(time.Now()) {
		session = "last known (market closed)"
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	exitCode := 0
	for _, symbol := range splitCSV(symbolsCSV) {
		symbol = broker.PadCode(symbol)
		price, err := cache.Resolve(ctx, symbol, pricecache.Mode(mode))
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", symbol, err)
			exitCode = 1
			continue
		}
		fmt.Printf("%s\t%.0f\t%s\n", symbol, price, session)
	}
	os.Exit(exitCode)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
