package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/ikggod/stock-dashboard/pkg/models"
)

func tick(symbol string, price float64) models.Quote {
	return models.Quote{Symbol: symbol, Price: price, Time: "093000"}
}

func TestStore_UnknownSymbol(t *testing.T) {
	s := New()

	if _, ok := s.Latest("005930"); ok {
		t.Error("Latest for never-ingested symbol must report ok=false")
	}
	if h := s.History("005930"); len(h) != 0 {
		t.Errorf("History for never-ingested symbol must be empty, got %d", len(h))
	}
}

func TestStore_LatestReplaced(t *testing.T) {
	s := New()
	s.Put(tick("005930", 70000))
	s.Put(tick("005930", 70100))

	q, ok := s.Latest("005930")
	if !ok || q.Price != 70100 {
		t.Errorf("Latest = %+v ok=%v, want price 70100", q, ok)
	}
}

func TestStore_HistoryBounded(t *testing.T) {
	s := New()
	for i := 0; i < 150; i++ {
		s.Put(tick("005930", float64(i)))
	}

	h := s.History("005930")
	if len(h) != HistorySize {
		t.Fatalf("history length = %d, want %d", len(h), HistorySize)
	}
	// After 150 pushes the ring holds exactly ticks 50..149 in arrival order.
	for i, q := range h {
		if q.Price != float64(50+i) {
			t.Fatalf("history[%d].Price = %v, want %v", i, q.Price, float64(50+i))
		}
	}
}

func TestStore_HistoryShorterThanCapacity(t *testing.T) {
	s := New()
	for i := 0; i < 7; i++ {
		s.Put(tick("000660", float64(i)))
	}

	h := s.History("000660")
	if len(h) != 7 {
		t.Fatalf("history length = %d, want 7", len(h))
	}
	for i, q := range h {
		if q.Price != float64(i) {
			t.Errorf("history[%d].Price = %v, want %v", i, q.Price, float64(i))
		}
	}
}

func TestStore_SeedCreatesEmptyCells(t *testing.T) {
	s := New()
	s.Seed([]string{"005930", "000660"})

	if got := len(s.Symbols()); got != 2 {
		t.Fatalf("Symbols reports %d entries after Seed, want 2", got)
	}
	if _, ok := s.Latest("005930"); ok {
		t.Error("seeded symbol must not report a quote before the first Put")
	}
	if h := s.History("005930"); len(h) != 0 {
		t.Errorf("seeded history must be empty, got %d", len(h))
	}

	s.Put(tick("005930", 70000))
	if got := len(s.Symbols()); got != 2 {
		t.Errorf("Put on a seeded symbol must not add a cell, got %d", got)
	}
}

func TestStore_Reset(t *testing.T) {
	s := New()
	s.Put(tick("005930", 70000))
	s.Reset()

	if _, ok := s.Latest("005930"); ok {
		t.Error("Latest after Reset must report ok=false")
	}
}

func TestStore_ConcurrentReadWrite(t *testing.T) {
	// Run with `go test -race ./...`
	s := New()
	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			sym := fmt.Sprintf("%06d", w)
			for i := 0; i < 200; i++ {
				s.Put(tick(sym, float64(i)))
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			sym := fmt.Sprintf("%06d", r)
			for i := 0; i < 200; i++ {
				s.Latest(sym)
				s.History(sym)
			}
		}(r)
	}
	wg.Wait()
}
