package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gobwas/ws"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ikggod/stock-dashboard/cmd/relayd/internal/feed"
	"github.com/ikggod/stock-dashboard/cmd/relayd/internal/gateway"
	"github.com/ikggod/stock-dashboard/cmd/relayd/internal/hub"
	"github.com/ikggod/stock-dashboard/cmd/relayd/internal/ingest"
	"github.com/ikggod/stock-dashboard/cmd/relayd/internal/mirror"
	"github.com/ikggod/stock-dashboard/cmd/relayd/internal/store"
	"github.com/ikggod/stock-dashboard/pkg/config"
	"github.com/ikggod/stock-dashboard/pkg/marketclock"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	clock := buildClock(cfg, logger)
	if clock.IsOpen(time.Now()) {
		logger.Info("Market session is open")
	} else {
		logger.Info("Market session is closed, feed will idle until ticks arrive")
	}

	st := store.New()

	var sinks []ingest.Sink
	if cfg.Mirror.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Mirror.Addr,
			Password: cfg.Mirror.Password,
			DB:       cfg.Mirror.DB,
		})
		m, err := mirror.New(rdb, logger)
		if err != nil {
			logger.Fatal("Mirror connection failed", zap.Error(err))
		}
		defer m.Close()
		sinks = append(sinks, m)
	}

	ingestor := ingest.New(buildDialer(cfg, logger), st, logger, sinks...)
	if err := ingestor.Start(cfg.Feed.Symbols); err != nil {
		logger.Error("Feed start failed, serving without live quotes", zap.Error(err))
	}
	defer ingestor.Stop()

	wsHub := hub.NewHub(st, time.Duration(cfg.Relay.BroadcastMs)*time.Millisecond, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go wsHub.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			return
		}

		client := gateway.NewClient(conn, wsHub, logger)
		client.Start()
	})

	srv := &http.Server{Addr: cfg.App.Port, Handler: mux}

	go func() {
		logger.Info("Server Started",
			zap.String("port", cfg.App.Port),
			zap.String("feed_mode", cfg.Feed.Mode),
			zap.Strings("symbols", cfg.Feed.Symbols))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	srv.Shutdown(context.Background())
	logger.Info("Shutdown Complete")
}

// buildDialer picks the upstream source from feed.mode. The broker websocket
// is the live path; kafka replays recorded or simulated ticks.
func buildDialer(cfg *config.Config, logger *zap.Logger) ingest.Dialer {
	if cfg.Feed.Mode == "kafka" {
		return func(symbols []string) (feed.Session, error) {
			return feed.NewKafkaSession(feed.KafkaSessionConfig{
				Brokers: cfg.Kafka.Brokers,
				Topic:   cfg.Kafka.Topic,
				GroupID: cfg.Kafka.GroupID,
			}, logger), nil
		}
	}

	creds := feed.Credentials{
		AppKey:    cfg.Feed.AppKey,
		AppSecret: cfg.Feed.AppSecret,
		UserID:    cfg.Feed.UserID,
	}
	return func(symbols []string) (feed.Session, error) {
		return feed.DialWS(cfg.Feed.URL, creds, symbols, logger)
	}
}

func buildClock(cfg *config.Config, logger *zap.Logger) marketclock.Clock {
	open, err := marketclock.ParseTimeOfDay(cfg.Market.Open)
	if err != nil {
		logger.Warn("Invalid market.open, using defaults", zap.Error(err))
		return marketclock.Default()
	}
	closeAt, err := marketclock.ParseTimeOfDay(cfg.Market.Close)
	if err != nil {
		logger.Warn("Invalid market.close, using defaults", zap.Error(err))
		return marketclock.Default()
	}
	return marketclock.Clock{Open: open, Close: closeAt}
}
