package kafka

import (
	"context"
	"errors"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	msgs []kafkago.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestPublishSetsTopicKeyAndHeaders(t *testing.T) {
	fw := &fakeWriter{}
	w := &Writer{writer: fw}

	err := w.Publish(context.Background(), "tb.order-events", Message{
		Key:     "order-1",
		Value:   []byte(`{"ok":true}`),
		Headers: map[string]string{"event_type": "order_created"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fw.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(fw.msgs))
	}
	got := fw.msgs[0]
	if got.Topic != "tb.order-events" || string(got.Key) != "order-1" {
		t.Fatalf("unexpected message %+v", got)
	}
	if len(got.Headers) != 1 || got.Headers[0].Key != "event_type" {
		t.Fatalf("unexpected headers %+v", got.Headers)
	}
}

func TestPublishWrapsErrors(t *testing.T) {
	boom := errors.New("leader not available")
	w := &Writer{writer: &fakeWriter{err: boom}}
	if err := w.Publish(context.Background(), "t", Message{}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if err := w.Publish(context.Background(), " ", Message{}); err == nil {
		t.Fatalf("expected empty topic to fail")
	}
}

func TestCleanBrokersAddsDefaultPort(t *testing.T) {
	got := cleanBrokers([]string{" kafka-1 ", "kafka-2:19092", ""})
	if len(got) != 2 || got[0] != "kafka-1:9092" || got[1] != "kafka-2:19092" {
		t.Fatalf("unexpected brokers %v", got)
	}
}
