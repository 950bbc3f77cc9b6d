package testutils

import (
	"encoding/json"
	"sync"

	"github.com/ikggod/stock-dashboard/cmd/relayd/internal/protocol"
)

// MockClient simulates a connected websocket client
type MockClient struct {
	IDVal  string
	Frames []string // raw payloads, in arrival order
	Closed bool
	Mu     sync.Mutex
}

func NewMockClient(id string) *MockClient {
	return &MockClient{IDVal: id}
}

func (m *MockClient) ID() string { return m.IDVal }

func (m *MockClient) Close() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
}

func (m *MockClient) SendJSON(v interface{}) {
	b, err := json.Marshal(v)
	if err == nil {
		m.SendBytes(b)
	}
}

func (m *MockClient) SendBytes(b []byte) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Frames = append(m.Frames, string(b))
}

// Updates decodes every frame that parses as a quote update.
func (m *MockClient) Updates() []protocol.Update {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	var out []protocol.Update
	for _, f := range m.Frames {
		var u protocol.Update
		if err := json.Unmarshal([]byte(f), &u); err == nil && u.StockCode != "" {
			out = append(out, u)
		}
	}
	return out
}

// Errors decodes every frame that parses as an error frame.
func (m *MockClient) Errors() []protocol.ErrorFrame {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	var out []protocol.ErrorFrame
	for _, f := range m.Frames {
		var e protocol.ErrorFrame
		if err := json.Unmarshal([]byte(f), &e); err == nil && e.Type == "error" {
			out = append(out, e)
		}
	}
	return out
}

func (m *MockClient) FrameCount() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return len(m.Frames)
}

// MockSession scripts an upstream feed session.
type MockSession struct {
	Queued      [][]byte
	Mu          sync.Mutex
	CloseCalled int
}

func NewMockSession(raw ...[]byte) *MockSession {
	return &MockSession{Queued: raw}
}

func (m *MockSession) Push(raw []byte) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Queued = append(m.Queued, raw)
}

func (m *MockSession) Next() ([]byte, bool) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if len(m.Queued) == 0 {
		return nil, false
	}
	raw := m.Queued[0]
	m.Queued = m.Queued[1:]
	return raw, true
}

func (m *MockSession) Close() error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.CloseCalled++
	return nil
}
