package protocol

import "github.com/ikggod/stock-dashboard/pkg/models"

const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
)

// Command is what a downstream client sends. Anything that fails to decode
// into this shape, or carries an unknown type or empty stock_code, is logged
// and ignored; the connection stays open.
type Command struct {
	Type      string `json:"type"`
	StockCode string `json:"stock_code"`
}

// Update is the quote message pushed to subscribers.
type Update struct {
	StockCode  string  `json:"stock_code"`
	Price      float64 `json:"price"`
	Time       string  `json:"time"`
	Change     int64   `json:"change"`
	ChangeRate float64 `json:"change_rate"`
}

// ErrorFrame tells a client its last command was rejected.
type ErrorFrame struct {
	Type    string `json:"type"` // always "error"
	Message string `json:"message"`
}

// UpdateFromQuote maps a stored quote onto the wire shape.
func UpdateFromQuote(q models.Quote) Update {
	return Update{
		StockCode:  q.Symbol,
		Price:      q.Price,
		Time:       q.Time,
		Change:     q.Change,
		ChangeRate: q.ChangeRate,
	}
}
