// Package events publishes domain events about users and products to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	TopicUsers    = "user_events"
	TopicProducts = "product_events"
)

const (
	UserRegistered = "user_registered"
	UserLoggedIn   = "user_logged_in"
	ProductCreated = "product_created"
	ProductUpdated = "product_updated"
	ProductDeleted = "product_deleted"
)

const publishTimeout = 5 * time.Second

type Event struct {
	Type      string    `json:"type"`
	UserID    uint      `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	ProductID uint      `json:"product_id,omitempty"`
	At        time.Time `json:"at"`
}

// Key partitions events by the acting user.
func (e Event) Key() string {
	return strconv.FormatUint(uint64(e.UserID), 10)
}

type Publisher interface {
	Publish(ctx context.Context, topic string, ev Event) error
	Close() error
}

// Writer is the subset of *kafka.Writer used here.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	w Writer
}

// NewKafkaPublisher builds a writer without a fixed topic; every message names its own.
func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		WriteTimeout:           publishTimeout,
	}}
}

func NewPublisherWithWriter(w Writer) *KafkaPublisher {
	return &KafkaPublisher{w: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic string, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.w.WriteMessages(ctx, kafka.Message{Topic: topic, Key: []byte(ev.Key()), Value: data}); err != nil {
		return fmt.Errorf("kafka: write %s: %w", ev.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// Noop drops every event. Used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, Event) error { return nil }
func (Noop) Close() error                                 { return nil }
