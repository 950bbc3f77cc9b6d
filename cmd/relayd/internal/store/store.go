// Package store holds the latest quote and a bounded history per symbol. It
// is the single piece of state shared between the ingest worker (writer) and
// the relay hub (reader).
package store

import (
	"sync"

	"github.com/ikggod/stock-dashboard/pkg/models"
)

// HistorySize is how many ticks each symbol retains.
const HistorySize = 100

// ring is a fixed-capacity FIFO of quotes. Push is O(1); the oldest entry is
// overwritten once full.
type ring struct {
	buf   [HistorySize]models.Quote
	start int
	size  int
}

func (r *ring) push(q models.Quote) {
	if r.size < HistorySize {
		r.buf[(r.start+r.size)%HistorySize] = q
		r.size++
		return
	}
	r.buf[r.start] = q
	r.start = (r.start + 1) % HistorySize
}

func (r *ring) snapshot() []models.Quote {
	out := make([]models.Quote, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%HistorySize]
	}
	return out
}

// cell is one symbol's state. Each cell carries its own lock so a reader can
// never observe a half-written quote or a ring mid-eviction, while writes to
// different symbols do not contend.
type cell struct {
	mu      sync.RWMutex
	latest  models.Quote
	hasData bool
	history ring
}

type Store struct {
	mu    sync.RWMutex
	cells map[string]*cell
}

func New() *Store {
	return &Store{cells: make(map[string]*cell)}
}

// Put replaces the symbol's latest quote and appends it to the history,
// creating the cell on first write.
func (s *Store) Put(q models.Quote) {
	c := s.cell(q.Symbol, true)
	c.mu.Lock()
	c.latest = q
	c.hasData = true
	c.history.push(q)
	c.mu.Unlock()
}

// Latest returns the most recent quote for symbol, ok=false if the symbol was
// never ingested.
func (s *Store) Latest(symbol string) (models.Quote, bool) {
	c := s.cell(symbol, false)
	if c == nil {
		return models.Quote{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.hasData {
		return models.Quote{}, false
	}
	return c.latest, true
}

// History returns a copy of the symbol's ticks, oldest first. Empty (never
// nil panic) for unknown symbols.
func (s *Store) History(symbol string) []models.Quote {
	c := s.cell(symbol, false)
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.history.snapshot()
}

// Seed creates empty cells for symbols so Symbols and History report them
// before the first tick arrives.
func (s *Store) Seed(symbols []string) {
	for _, sym := range symbols {
		s.cell(sym, true)
	}
}

// Symbols lists every symbol that has a cell.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.cells))
	for sym := range s.cells {
		out = append(out, sym)
	}
	return out
}

// Reset discards all cells. Called when an ingest session ends so the next
// session starts with fresh rings.
func (s *Store) Reset() {
	s.mu.Lock()
	s.cells = make(map[string]*cell)
	s.mu.Unlock()
}

func (s *Store) cell(symbol string, create bool) *cell {
	s.mu.RLock()
	c := s.cells[symbol]
	s.mu.RUnlock()
	if c != nil || !create {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c = s.cells[symbol]; c == nil {
		c = &cell{}
		s.cells[symbol] = c
	}
	return c
}
