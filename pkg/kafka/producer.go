package kafka

import (
	"context"
	"errors"
	"fmt"
	"sort"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/shopzen/shopzen-backend/pkg/config"
	"github.com/shopzen/shopzen-backend/pkg/logger"
)

// messageWriter is the subset of *kafkago.Writer the producer needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Producer writes outbox events to Kafka topics named after the Pub/Sub topics.
type Producer struct {
	brokers []string
	writer  messageWriter
	dial    func(ctx context.Context, network, address string) (*kafkago.Conn, error)
}

// NewProducer builds a producer with a single shared writer; the topic is set per message.
func NewProducer(cfg config.KafkaConfig, logg *logger.Logger) (*Producer, error) {
	if !cfg.Enabled() {
		return nil, errors.New("kafka brokers are required")
	}
	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		WriteTimeout: cfg.WriteTimeout,
		Transport: &kafkago.Transport{
			ClientID: cfg.ClientID,
		},
	}
	if logg != nil {
		logg.Info(logg.WithField(context.Background(), "brokers", cfg.Brokers), "kafka producer initialized")
	}
	return &Producer{
		brokers: cfg.Brokers,
		writer:  writer,
		dial:    kafkago.DialContext,
	}, nil
}

// Publish writes one message keyed by key so events for an aggregate stay ordered.
func (p *Producer) Publish(ctx context.Context, topic, key string, data []byte, attrs map[string]string) error {
	if p == nil || p.writer == nil {
		return errors.New("kafka producer not initialized")
	}
	if topic == "" {
		return errors.New("kafka topic is required")
	}
	return p.writer.WriteMessages(ctx, kafkago.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   data,
		Headers: headers(attrs),
	})
}

// Ping dials the first reachable broker.
func (p *Producer) Ping(ctx context.Context) error {
	if p == nil {
		return errors.New("kafka producer not initialized")
	}
	var lastErr error
	for _, broker := range p.brokers {
		conn, err := p.dial(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	return fmt.Errorf("no kafka broker reachable: %w", lastErr)
}

func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func headers(attrs map[string]string) []kafkago.Header {
	if len(attrs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]kafkago.Header, 0, len(keys))
	for _, k := range keys {
		out = append(out, kafkago.Header{Key: k, Value: []byte(attrs[k])})
	}
	return out
}
