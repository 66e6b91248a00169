package main

import (
	"context"
	"errors"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/tastebud-backend/pkg/kafka"
	"github.com/angelmondragon/tastebud-backend/pkg/outbox/registry"
)

// outboundMessage is the broker-neutral form of one outbox row.
type outboundMessage struct {
	Key        string
	Data       []byte
	Attributes map[string]string
}

// messageSink delivers resolved events to a broker. Publish must block until
// the broker acknowledged the message.
type messageSink interface {
	Name() string
	Ping(context.Context) error
	Publish(ctx context.Context, topic string, msg outboundMessage) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type pubsubSink struct {
	client pubSubClient
}

func newPubSubSink(client pubSubClient) *pubsubSink {
	return &pubsubSink{client: client}
}

func (s *pubsubSink) Name() string { return "pubsub" }

func (s *pubsubSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *pubsubSink) Publish(ctx context.Context, topic string, msg outboundMessage) error {
	pub := s.client.Publisher(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}
	result := pub.Publish(ctx, &gcppubsub.Message{
		Data:       msg.Data,
		Attributes: msg.Attributes,
	})
	if result == nil {
		return errors.New("publish result is nil")
	}
	_, err := result.Get(ctx)
	return err
}

type kafkaWriter interface {
	Ping(context.Context) error
	Publish(ctx context.Context, topic string, msg kafka.Message) error
}

type kafkaSink struct {
	writer kafkaWriter
}

func newKafkaSink(writer kafkaWriter) *kafkaSink {
	return &kafkaSink{writer: writer}
}

func (s *kafkaSink) Name() string { return "kafka" }

func (s *kafkaSink) Ping(ctx context.Context) error {
	return s.writer.Ping(ctx)
}

// Publish keys records by aggregate so every event of one order lands on the
// same partition in commit order.
func (s *kafkaSink) Publish(ctx context.Context, topic string, msg outboundMessage) error {
	return s.writer.Publish(ctx, topic, kafka.Message{
		Key:     msg.Key,
		Value:   msg.Data,
		Headers: msg.Attributes,
	})
}
