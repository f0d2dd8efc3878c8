package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/wms-platform/allocation-service/pkg/cloudevents"
)

// OutboxEvent is one pending publication row. Rows are written in the same
// Mongo transaction as the ledger mutation they describe and drained to
// Kafka by the Publisher. The delivery attempt cap is enforced by the
// repository query, not the row.
type OutboxEvent struct {
	ID            string          `bson:"_id" json:"id"`
	AggregateID   string          `bson:"aggregateId" json:"aggregateId"`
	AggregateType string          `bson:"aggregateType" json:"aggregateType"`
	EventType     string          `bson:"eventType" json:"eventType"`
	Topic         string          `bson:"topic" json:"topic"`
	Payload       json.RawMessage `bson:"payload" json:"payload"`
	CreatedAt     time.Time       `bson:"createdAt" json:"createdAt"`
	PublishedAt   *time.Time      `bson:"publishedAt,omitempty" json:"publishedAt,omitempty"`
	RetryCount    int             `bson:"retryCount" json:"retryCount"`
	LastError     string          `bson:"lastError,omitempty" json:"lastError,omitempty"`
}

// DomainEvent is the minimal contract a payload has to satisfy to be
// staged for delivery.
type DomainEvent interface {
	EventType() string
}

func newEvent(aggregateID, aggregateType, eventType, topic string, payload any) (*OutboxEvent, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &OutboxEvent{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Topic:         topic,
		Payload:       body,
		CreatedAt:     time.Now(),
	}, nil
}

// NewOutboxEvent stages a domain event for deferred delivery.
func NewOutboxEvent(aggregateID, aggregateType, topic string, event DomainEvent) (*OutboxEvent, error) {
	return newEvent(aggregateID, aggregateType, event.EventType(), topic, event)
}

// NewOutboxEventFromCloudEvent stages an already-built CloudEvent envelope.
func NewOutboxEventFromCloudEvent(aggregateID, aggregateType, topic string, cloudEvent *cloudevents.WMSCloudEvent) (*OutboxEvent, error) {
	return newEvent(aggregateID, aggregateType, cloudEvent.Type, topic, cloudEvent)
}

// ToCloudEvent decodes the stored payload back into a CloudEvent envelope
// for the Kafka leg.
func (e *OutboxEvent) ToCloudEvent() (*cloudevents.WMSCloudEvent, error) {
	var cloudEvent cloudevents.WMSCloudEvent
	if err := json.Unmarshal(e.Payload, &cloudEvent); err != nil {
		return nil, err
	}
	return &cloudEvent, nil
}
