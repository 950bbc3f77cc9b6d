package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Quote represents one normalized real-time price observation for a symbol.
// It is immutable once parsed; a newer Quote supersedes an older one.
type Quote struct {
	Symbol     string  `json:"stock_code"`
	Price      float64 `json:"price"`
	Change     int64   `json:"change"`
	ChangeRate float64 `json:"change_rate"`
	Volume     int64   `json:"volume"`
	Time       string  `json:"time"` // execution time as reported upstream (HHMMSS)
}

// executionMessage is the upstream real-time execution payload. Field names
// follow the broker wire format (H0STCNT0). Numeric fields arrive as strings.
type executionMessage struct {
	Symbol     string `json:"MKSC_SHRN_ISCD"`
	Price      string `json:"STCK_PRPR"`
	Change     string `json:"PRDY_VRSS"`
	ChangeRate string `json:"PRDY_CTRT"`
	Volume     string `json:"ACML_VOL"`
	Time       string `json:"STCK_CNTG_HOUR"`
}

// ParseTick decodes one upstream execution message into a Quote.
// Messages without a symbol or with a non-numeric price are rejected;
// secondary fields default to zero when absent or malformed.
func ParseTick(raw []byte) (Quote, error) {
	var msg executionMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Quote{}, fmt.Errorf("decode tick: %w", err)
	}
	if msg.Symbol == "" {
		return Quote{}, fmt.Errorf("tick missing symbol")
	}
	price, err := strconv.ParseFloat(msg.Price, 64)
	if err != nil {
		return Quote{}, fmt.Errorf("tick %s: bad price %q", msg.Symbol, msg.Price)
	}

	q := Quote{
		Symbol: msg.Symbol,
		Price:  price,
		Time:   msg.Time,
	}
	// Best-effort on the remaining fields: a tick with only a price is
	// still worth relaying.
	if v, err := strconv.ParseInt(msg.Change, 10, 64); err == nil {
		q.Change = v
	}
	if v, err := strconv.ParseFloat(msg.ChangeRate, 64); err == nil {
		q.ChangeRate = v
	}
	if v, err := strconv.ParseInt(msg.Volume, 10, 64); err == nil {
		q.Volume = v
	}
	return q, nil
}
