package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const readErrorBackoff = time.Second

// Reader is the subset of kafka.Reader the session needs; tests substitute a
// mock.
type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaSession replays execution messages from a topic, exposing the same
// non-blocking Session surface as the broker connection. Used to run the
// relay off-exchange against the feedsim generator.
type KafkaSession struct {
	reader Reader
	msgs   chan []byte
	logger *zap.Logger

	cancel    context.CancelFunc
	closeOnce sync.Once
}

type KafkaSessionConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// NewKafkaSession starts draining the topic immediately.
func NewKafkaSession(cfg KafkaSessionConfig, logger *zap.Logger) *KafkaSession {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return newKafkaSession(reader, logger)
}

func newKafkaSession(reader Reader, logger *zap.Logger) *KafkaSession {
	ctx, cancel := context.WithCancel(context.Background())
	s := &KafkaSession{
		reader: reader,
		msgs:   make(chan []byte, 1024),
		logger: logger,
		cancel: cancel,
	}
	go s.readLoop(ctx)
	return s
}

func (s *KafkaSession) readLoop(ctx context.Context) {
	defer close(s.msgs)
	for {
		m, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			// A single failed read does not end the session; back off
			// and keep pulling.
			s.logger.Error("kafka feed read error", zap.Error(err))
			select {
			case <-time.After(readErrorBackoff):
				continue
			case <-ctx.Done():
				return
			}
		}
		select {
		case s.msgs <- m.Value:
		case <-ctx.Done():
			return
		default:
			s.logger.Debug("kafka feed queue full, dropping tick",
				zap.String("key", string(m.Key)))
		}
	}
}

func (s *KafkaSession) Next() ([]byte, bool) {
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

func (s *KafkaSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = s.reader.Close()
	})
	return err
}
