// Package events publishes order lifecycle events for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Type string

const (
	OrderPlaced        Type = "order.placed"
	OrderStatusChanged Type = "order.status_changed"
	OrderAssigned      Type = "order.assigned"
	OrderDelivered     Type = "order.delivered"
	OrderCancelled     Type = "order.cancelled"
	OrderRated         Type = "order.rated"
)

type Event struct {
	ID               string    `json:"id"`
	Type             Type      `json:"type"`
	OrderID          uint      `json:"orderId"`
	OrderNumber      string    `json:"orderNumber"`
	RestaurantID     uint      `json:"restaurantId"`
	Status           string    `json:"status"`
	DeliveryPersonID *uint     `json:"deliveryPersonId,omitempty"`
	Actor            string    `json:"actor,omitempty"`
	OccurredAt       time.Time `json:"occurredAt"`
}

// New stamps an event with a fresh id and the current time
func New(t Type, orderID uint, orderNumber string) Event {
	return Event{ID: uuid.NewString(), Type: t, OrderID: orderID, OrderNumber: orderNumber, OccurredAt: time.Now().UTC()}
}

// Publisher is best-effort: callers log failures and carry on
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// LogPublisher only records events in the log
type LogPublisher struct {
	Log logrus.FieldLogger
}

func (p LogPublisher) Publish(_ context.Context, e Event) error {
	p.Log.WithFields(logrus.Fields{
		"event":    e.Type,
		"order_id": e.OrderID,
		"status":   e.Status,
	}).Debug("order event")
	return nil
}

// KafkaPublisher writes events to a single topic keyed by order id,
// so every event of one order lands on the same partition.
type KafkaPublisher struct {
	Producer sarama.SyncProducer
	Topic    string
	Log      logrus.FieldLogger
}

func NewKafkaPublisher(brokers []string, topic, clientID string, log logrus.FieldLogger) (*KafkaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Retry.Backoff = 500 * time.Millisecond

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("events: connect kafka: %w", err)
	}
	return &KafkaPublisher{Producer: producer, Topic: topic, Log: log}, nil
}

func (p *KafkaPublisher) Publish(_ context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		p.Log.WithError(err).Error("failed to marshal event")
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: p.Topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(uint64(e.OrderID), 10)),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-type"), Value: []byte(e.Type)},
		},
	}
	partition, offset, err := p.Producer.SendMessage(msg)
	if err != nil {
		p.Log.WithError(err).WithField("event", e.Type).Error("error send message")
		return err
	}
	p.Log.WithFields(logrus.Fields{
		"event":     e.Type,
		"partition": partition,
		"offset":    offset,
	}).Debug("event published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.Producer.Close()
}
