// Package ingest owns the single upstream feed session: it pulls raw
// execution messages, normalizes them, and writes quotes into the shared
// store.
package ingest

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ikggod/stock-dashboard/cmd/relayd/internal/feed"
	"github.com/ikggod/stock-dashboard/cmd/relayd/internal/store"
	"github.com/ikggod/stock-dashboard/pkg/models"
)

// MaxSymbols is the upstream cap on concurrent real-time registrations.
// Symbols beyond the cap are dropped, not an error.
const MaxSymbols = 41

const (
	idleSleep     = 10 * time.Millisecond
	stopJoinLimit = 2 * time.Second
)

var ErrAlreadyRunning = errors.New("ingestor already running")

// Dialer opens a feed session for a symbol set. Injected so tests run against
// a scripted session.
type Dialer func(symbols []string) (feed.Session, error)

// Sink observes every valid quote after it lands in the store. Implementations
// must not block; a slow sink delays ingestion.
type Sink interface {
	OnQuote(q models.Quote)
}

type Ingestor struct {
	dial   Dialer
	store  *store.Store
	sinks  []Sink
	logger *zap.Logger

	mu      sync.Mutex
	running bool
	session feed.Session
	stopC   chan struct{}
	doneC   chan struct{}
}

func New(dial Dialer, st *store.Store, logger *zap.Logger, sinks ...Sink) *Ingestor {
	return &Ingestor{dial: dial, store: st, sinks: sinks, logger: logger}
}

// Start opens the upstream session for up to MaxSymbols symbols and spawns
// the read worker. A connection failure is returned to the caller and leaves
// no worker running; reconnection is the caller's decision via a fresh Start.
func (in *Ingestor) Start(symbols []string) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.running {
		return ErrAlreadyRunning
	}

	if len(symbols) > MaxSymbols {
		in.logger.Warn("symbol list exceeds upstream cap, truncating",
			zap.Int("requested", len(symbols)),
			zap.Int("cap", MaxSymbols))
		symbols = symbols[:MaxSymbols]
	}

	session, err := in.dial(symbols)
	if err != nil {
		return err
	}

	in.store.Seed(symbols)
	in.session = session
	in.stopC = make(chan struct{})
	in.doneC = make(chan struct{})
	in.running = true
	go in.worker(session, in.stopC, in.doneC)

	in.logger.Info("ingestor streaming", zap.Strings("symbols", symbols))
	return nil
}

// Stop signals the worker, closes the session, and waits for the worker to
// exit so the session is no longer touched afterward. Idempotent.
func (in *Ingestor) Stop() {
	in.mu.Lock()
	if !in.running {
		in.mu.Unlock()
		return
	}
	in.running = false
	close(in.stopC)
	session, doneC := in.session, in.doneC
	in.session = nil
	in.mu.Unlock()

	select {
	case <-doneC:
	case <-time.After(stopJoinLimit):
		in.logger.Warn("ingest worker did not exit in time")
	}
	if err := session.Close(); err != nil {
		in.logger.Debug("feed session close", zap.Error(err))
	}
	tracked := len(in.store.Symbols())
	in.store.Reset()
	in.logger.Info("ingestor stopped", zap.Int("symbols_tracked", tracked))
}

// Running reports whether a session is active.
func (in *Ingestor) Running() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.running
}

// Latest and History are pure reads of the store.
func (in *Ingestor) Latest(symbol string) (models.Quote, bool) { return in.store.Latest(symbol) }
func (in *Ingestor) History(symbol string) []models.Quote      { return in.store.History(symbol) }

func (in *Ingestor) worker(session feed.Session, stopC <-chan struct{}, doneC chan<- struct{}) {
	defer close(doneC)

	for {
		select {
		case <-stopC:
			return
		default:
		}

		raw, ok := session.Next()
		if !ok {
			// Nothing queued; sleep briefly to bound CPU. A session
			// read error upstream also lands here and is retried on
			// the same cadence rather than killing the worker.
			sleepOrStop(idleSleep, stopC)
			continue
		}

		q, err := models.ParseTick(raw)
		if err != nil {
			in.logger.Warn("dropping unparseable tick", zap.Error(err))
			continue
		}

		in.store.Put(q)
		for _, sink := range in.sinks {
			sink.OnQuote(q)
		}
	}
}

func sleepOrStop(d time.Duration, stopC <-chan struct{}) {
	select {
	case <-time.After(d):
	case <-stopC:
	}
}
