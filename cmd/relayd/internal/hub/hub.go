// Package hub fans quote updates out to downstream subscribers. It samples
// the quote store on a fixed period rather than reacting to every ingested
// tick, which bounds the send rate for slow consumers.
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ikggod/stock-dashboard/cmd/relayd/internal/protocol"
	"github.com/ikggod/stock-dashboard/cmd/relayd/internal/store"
)

// ClientInterface is one downstream connection. SendBytes must not block;
// Close tears the connection down.
type ClientInterface interface {
	ID() string
	SendJSON(v interface{})
	SendBytes(b []byte)
	Close()
}

type Hub struct {
	subscribers map[string]map[ClientInterface]bool
	clientSubs  map[ClientInterface]map[string]bool

	store  *store.Store
	logger *zap.Logger
	period time.Duration
	mu     sync.RWMutex
}

func NewHub(st *store.Store, period time.Duration, logger *zap.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]map[ClientInterface]bool),
		clientSubs:  make(map[ClientInterface]map[string]bool),
		store:       st,
		period:      period,
		logger:      logger,
	}
}

// Register adds a connection with an empty subscription set.
func (h *Hub) Register(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clientSubs[client] == nil {
		h.clientSubs[client] = make(map[string]bool)
	}
}

// HandleCommand dispatches one decoded client command.
func (h *Hub) HandleCommand(client ClientInterface, cmd protocol.Command) {
	if cmd.StockCode == "" {
		h.rejectCommand(client, "missing stock_code")
		return
	}
	switch cmd.Type {
	case protocol.TypeSubscribe:
		h.handleSubscribe(client, cmd.StockCode)
	case protocol.TypeUnsubscribe:
		h.handleUnsubscribe(client, cmd.StockCode)
	default:
		h.rejectCommand(client, "unknown type: "+cmd.Type)
	}
}

func (h *Hub) handleSubscribe(client ClientInterface, symbol string) {
	h.mu.Lock()
	if h.clientSubs[client] == nil {
		h.clientSubs[client] = make(map[string]bool)
	}
	h.clientSubs[client][symbol] = true
	if h.subscribers[symbol] == nil {
		h.subscribers[symbol] = make(map[ClientInterface]bool)
	}
	h.subscribers[symbol][client] = true
	h.mu.Unlock()

	h.logger.Debug("client subscribed",
		zap.String("client", client.ID()),
		zap.String("symbol", symbol))

	// Snapshot-on-subscribe: don't make the client wait a tick for its
	// first quote.
	if q, ok := h.store.Latest(symbol); ok {
		if payload, err := json.Marshal(protocol.UpdateFromQuote(q)); err == nil {
			client.SendBytes(payload)
		}
	}
}

func (h *Hub) handleUnsubscribe(client ClientInterface, symbol string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.clientSubs[client]; ok {
		delete(subs, symbol)
	}
	if set, ok := h.subscribers[symbol]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.subscribers, symbol)
		}
	}
}

// Unregister removes the connection from every symbol entry it belongs to.
func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	if subs, ok := h.clientSubs[client]; ok {
		for sym := range subs {
			if set, ok := h.subscribers[sym]; ok {
				delete(set, client)
				if len(set) == 0 {
					delete(h.subscribers, sym)
				}
			}
		}
		delete(h.clientSubs, client)
	}
	h.mu.Unlock()
	client.Close()
}

// Broadcast performs one sampling pass: for every symbol with at least one
// subscriber and a quote in the store, the update is serialized once and sent
// to each subscriber. Symbols without subscribers are skipped entirely.
func (h *Hub) Broadcast() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for symbol, clients := range h.subscribers {
		if len(clients) == 0 {
			continue
		}
		q, ok := h.store.Latest(symbol)
		if !ok {
			continue
		}
		payload, err := json.Marshal(protocol.UpdateFromQuote(q))
		if err != nil {
			h.logger.Error("marshal update", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		for client := range clients {
			client.SendBytes(payload)
		}
	}
}

// Run drives Broadcast on the configured period until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Broadcast()
		}
	}
}

// Subscribed reports whether client currently subscribes to symbol.
func (h *Hub) Subscribed(client ClientInterface, symbol string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.subscribers[symbol][client]
}

func (h *Hub) rejectCommand(client ClientInterface, reason string) {
	h.logger.Warn("ignoring malformed command",
		zap.String("client", client.ID()),
		zap.String("reason", reason))
	client.SendJSON(protocol.ErrorFrame{Type: "error", Message: reason})
}
