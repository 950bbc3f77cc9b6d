// Package mirror exports ingested quotes to Redis so other processes can
// read the latest snapshot or follow the pub/sub channel. Optional; the relay
// itself never reads it back.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ikggod/stock-dashboard/pkg/models"
)

const (
	keyPrefix     = "stock:"
	channelPrefix = "prices."
	snapshotTTL   = 1 * time.Hour
	queueSize     = 256
)

// RedisClient abstracts the output storage connection
type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Pipeline() redis.Pipeliner
	Close() error
}

// Mirror writes from its own goroutine. OnQuote only enqueues, so a slow
// Redis slows the mirror, never the ingest worker feeding it.
type Mirror struct {
	rdb    RedisClient
	logger *zap.Logger
	queue  chan models.Quote
	done   chan struct{}

	closeOnce sync.Once
}

func New(rdb RedisClient, logger *zap.Logger) (*Mirror, error) {
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	m := &Mirror{
		rdb:    rdb,
		logger: logger,
		queue:  make(chan models.Quote, queueSize),
		done:   make(chan struct{}),
	}
	go m.run()
	return m, nil
}

// OnQuote hands the quote to the writer goroutine. Never blocks; when the
// queue is full the quote is dropped.
func (m *Mirror) OnQuote(q models.Quote) {
	select {
	case m.queue <- q:
	default:
		m.logger.Debug("mirror queue full, dropping quote", zap.String("symbol", q.Symbol))
	}
}

func (m *Mirror) run() {
	defer close(m.done)
	for q := range m.queue {
		m.write(q)
	}
}

// write stores the latest snapshot and publishes the update in a single
// pipeline. Failures are logged and never propagate.
func (m *Mirror) write(q models.Quote) {
	payload, err := json.Marshal(q)
	if err != nil {
		m.logger.Error("mirror marshal", zap.String("symbol", q.Symbol), zap.Error(err))
		return
	}

	ctx := context.Background()
	pipe := m.rdb.Pipeline()
	pipe.Set(ctx, keyPrefix+q.Symbol, payload, snapshotTTL) // TTL prevents unbounded memory growth
	pipe.Publish(ctx, channelPrefix+q.Symbol, payload)

	if _, err := pipe.Exec(ctx); err != nil {
		m.logger.Error("mirror pipeline", zap.String("symbol", q.Symbol), zap.Error(err))
	}
}

// Close flushes queued quotes, then closes the connection. Idempotent.
func (m *Mirror) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.queue)
		<-m.done
		err = m.rdb.Close()
	})
	return err
}
