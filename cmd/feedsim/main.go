package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ikggod/stock-dashboard/cmd/feedsim/internal/sim"
	"github.com/ikggod/stock-dashboard/pkg/config"
)

// Opening prices for the simulated session, in won.
var defaultBasePrices = map[string]int64{
	"005930": 70000,  // Samsung Electronics
	"000660": 130000, // SK Hynix
	"035420": 220000, // NAVER
	"005380": 250000, // Hyundai Motor
}

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

	sim.EnsureTopic(context.Background(), sim.DialBroker, sim.RealClock{}, logger,
		cfg.Kafka.Brokers, cfg.Kafka.Topic)

	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.LeastBytes{},
		// Batch writes to reduce network IO
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
	}

	basePrices := make(map[string]int64)
	for _, sym := range cfg.Feed.Symbols {
		if base, ok := defaultBasePrices[sym]; ok {
			basePrices[sym] = base
		} else {
			basePrices[sym] = 50000
		}
	}

	gen := sim.NewTickGenerator(
		logger,
		writer,
		basePrices,
		sim.RealRand{Rand: rand.New(rand.NewSource(time.Now().UnixNano()))},
		sim.RealClock{},
		100*time.Millisecond,
	)

	ctx, cancel := context.WithCancel(context.Background())
	go gen.Run(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutdown signal received")
	cancel()

	// Flush buffered async writes.
	if err := writer.Close(); err != nil {
		logger.Error("Error closing Kafka writer", zap.Error(err))
	} else {
		logger.Info("Kafka writer closed cleanly")
	}
}
