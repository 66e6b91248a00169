package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/tastebud-backend/pkg/config"
	"github.com/angelmondragon/tastebud-backend/pkg/logger"
	kafkago "github.com/segmentio/kafka-go"
)

// Message is a broker-neutral record handed to Publish.
type Message struct {
	Key     string
	Value   []byte
	Headers map[string]string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes outbox events to Kafka. One underlying writer serves every
// topic; the topic is set per message.
type Writer struct {
	writer  messageWriter
	brokers []string
}

// NewWriter builds a Kafka writer for the configured brokers.
func NewWriter(ctx context.Context, cfg config.KafkaConfig, logg *logger.Logger) (*Writer, error) {
	brokers := cleanBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		BatchTimeout:           batchTimeout,
		AllowAutoTopicCreation: false,
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "brokers", brokers), "kafka writer initialized")
	}
	return &Writer{writer: w, brokers: brokers}, nil
}

// Publish writes msg to topic synchronously and waits for broker acks.
func (w *Writer) Publish(ctx context.Context, topic string, msg Message) error {
	if w == nil || w.writer == nil {
		return errors.New("kafka writer not initialized")
	}
	if strings.TrimSpace(topic) == "" {
		return errors.New("kafka topic is required")
	}
	record := kafkago.Message{
		Topic: topic,
		Key:   []byte(msg.Key),
		Value: msg.Value,
	}
	for k, v := range msg.Headers {
		record.Headers = append(record.Headers, kafkago.Header{Key: k, Value: []byte(v)})
	}
	if err := w.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("kafka write %s: %w", topic, err)
	}
	return nil
}

// Ping dials the first reachable broker.
func (w *Writer) Ping(ctx context.Context) error {
	if w == nil {
		return errors.New("kafka writer not initialized")
	}
	var lastErr error
	for _, broker := range w.brokers {
		conn, err := kafkago.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		_ = conn.Close()
		return nil
	}
	if lastErr == nil {
		lastErr = errors.New("no kafka brokers configured")
	}
	return fmt.Errorf("kafka ping: %w", lastErr)
}

// Close flushes pending writes.
func (w *Writer) Close() error {
	if w == nil || w.writer == nil {
		return nil
	}
	return w.writer.Close()
}

func cleanBrokers(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, b := range raw {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(b); err != nil {
			b = net.JoinHostPort(b, strconv.Itoa(9092))
		}
		out = append(out, b)
	}
	return out
}
