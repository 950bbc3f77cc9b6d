package sim

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	topicReadyRetries = 5
	topicReadyWait    = 200 * time.Millisecond
)

// TopicConn is the slice of *kafka.Conn the bootstrap needs; the real
// connection satisfies it as-is.
type TopicConn interface {
	Controller() (kafka.Broker, error)
	CreateTopics(topics ...kafka.TopicConfig) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

// DialFunc opens a connection to one broker address.
type DialFunc func(ctx context.Context, addr string) (TopicConn, error)

// DialBroker is the production DialFunc.
func DialBroker(ctx context.Context, addr string) (TopicConn, error) {
	conn, err := kafka.DefaultDialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// EnsureTopic creates the tick topic on the cluster controller and waits
// until its partitions are visible, so a consumer started right after the
// simulator does not race topic auto-creation. Failures are logged, not
// fatal; the writer will surface them anyway.
func EnsureTopic(ctx context.Context, dial DialFunc, clock Clock, logger *zap.Logger, brokers []string, topic string) {
	var conn TopicConn
	var err error
	for _, addr := range brokers {
		if conn, err = dial(ctx, addr); err == nil {
			break
		}
	}
	if err != nil {
		logger.Warn("Failed to dial brokers", zap.Error(err))
		return
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		logger.Warn("Failed to get controller", zap.Error(err))
		return
	}

	controllerConn, err := dial(ctx, net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		logger.Warn("Failed to dial controller", zap.Error(err))
		return
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		logger.Info("Topic creation finished (might already exist)", zap.Error(err))
	}

	for i := 0; i < topicReadyRetries; i++ {
		clock.Sleep(topicReadyWait)
		partitions, err := conn.ReadPartitions(topic)
		if err == nil && len(partitions) > 0 {
			logger.Info("Topic is ready", zap.String("topic", topic), zap.Int("partitions", len(partitions)))
			return
		}
	}
	logger.Warn("Timed out waiting for topic", zap.String("topic", topic))
}
