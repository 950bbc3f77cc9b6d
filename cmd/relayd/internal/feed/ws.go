package feed

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// executionTrID is the broker's real-time execution stream.
const executionTrID = "H0STCNT0"

// Credentials authenticate the broker websocket session. UserID (HTS id) is
// optional.
type Credentials struct {
	AppKey    string
	AppSecret string
	UserID    string
}

// WSSession is a single connection to the broker real-time feed. One read
// goroutine drains the socket into a buffered channel; Next polls that
// channel without blocking.
type WSSession struct {
	conn   *websocket.Conn
	msgs   chan []byte
	logger *zap.Logger

	closeOnce sync.Once
	done      chan struct{}
}

type subscribeRequest struct {
	Header subscribeHeader `json:"header"`
	Body   subscribeBody   `json:"body"`
}

type subscribeHeader struct {
	AppKey    string `json:"appkey"`
	AppSecret string `json:"appsecret"`
	UserID    string `json:"personalseckey,omitempty"`
	CustType  string `json:"custtype"`
	TrType    string `json:"tr_type"` // "1" register, "2" release
}

type subscribeBody struct {
	Input subscribeInput `json:"input"`
}

type subscribeInput struct {
	TrID  string `json:"tr_id"`
	TrKey string `json:"tr_key"`
}

// DialWS connects to the broker feed and registers the given symbols. A
// failure at any point tears the connection down and returns an error; no
// goroutine is left running.
func DialWS(url string, creds Credentials, symbols []string, logger *zap.Logger) (*WSSession, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial feed %s: %w", url, err)
	}

	for _, sym := range symbols {
		req := subscribeRequest{
			Header: subscribeHeader{
				AppKey:    creds.AppKey,
				AppSecret: creds.AppSecret,
				UserID:    creds.UserID,
				CustType:  "P",
				TrType:    "1",
			},
			Body: subscribeBody{Input: subscribeInput{TrID: executionTrID, TrKey: sym}},
		}
		if err := conn.WriteJSON(req); err != nil {
			conn.Close()
			return nil, fmt.Errorf("subscribe %s: %w", sym, err)
		}
	}
	logger.Info("feed session established", zap.String("url", url), zap.Int("symbols", len(symbols)))

	s := &WSSession{
		conn:   conn,
		msgs:   make(chan []byte, 1024),
		logger: logger,
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func (s *WSSession) readLoop() {
	defer close(s.msgs)
	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				// Close() was called; the read error is expected.
			default:
				s.logger.Error("feed read error", zap.Error(err))
			}
			return
		}
		if isControlFrame(message) {
			continue
		}
		select {
		case s.msgs <- message:
		default:
			// Queue full: the ingest worker is behind, drop the tick.
			s.logger.Debug("feed queue full, dropping tick")
		}
	}
}

// isControlFrame filters subscription acks and PINGPONG keepalives, which
// arrive as JSON with a header but no execution payload.
func isControlFrame(message []byte) bool {
	var frame struct {
		Header *struct {
			TrID string `json:"tr_id"`
		} `json:"header"`
	}
	if err := json.Unmarshal(message, &frame); err != nil {
		return false
	}
	return frame.Header != nil && frame.Header.TrID != executionTrID
}

func (s *WSSession) Next() ([]byte, bool) {
	select {
	case msg, open := <-s.msgs:
		if !open {
			return nil, false
		}
		return msg, true
	default:
		return nil, false
	}
}

func (s *WSSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}
