package events

import (
	"context"
	"encoding/json"
	"time"

	"estate-market-backend/internal/domain"
	"estate-market-backend/internal/logger"
	"estate-market-backend/internal/repository"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Publisher emits transaction lifecycle events. Callers treat publishing as
// best effort: a returned error means the event was neither delivered nor
// parked in the dead-letter queue.
type Publisher interface {
	Publish(ctx context.Context, events ...domain.TransactionEvent) error
}

// Producer is the part of *kgo.Client used for publishing.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

type KafkaPublisher struct {
	producer Producer
	topic    string
	dlq      repository.DeadLetterRepository
}

func NewKafkaPublisher(producer Producer, topic string, dlq repository.DeadLetterRepository) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, dlq: dlq}
}

// Publish produces events keyed by transaction id. Events that fail to
// produce are pushed to the dead-letter queue.
func (p *KafkaPublisher) Publish(ctx context.Context, events ...domain.TransactionEvent) error {
	if len(events) == 0 {
		return nil
	}

	records := make([]*kgo.Record, 0, len(events))
	for _, e := range events {
		value, err := json.Marshal(e)
		if err != nil {
			logger.Error("Failed to encode event", "event_id", e.ID, "error", err)
			continue
		}
		records = append(records, &kgo.Record{Topic: p.topic, Key: []byte(e.TransactionID), Value: value})
	}

	var letters []repository.DeadLetter
	for _, res := range p.produce(ctx, records) {
		letters = append(letters, repository.DeadLetter{
			Key:      string(res.Record.Key),
			Payload:  res.Record.Value,
			Reason:   "produce: " + res.Err.Error(),
			Attempts: 1,
			FailedAt: time.Now().UTC(),
		})
	}
	if len(letters) == 0 {
		return nil
	}
	return p.dlq.Push(ctx, letters...)
}

// Republish sends dead letters back to the topic and returns the ones that
// failed again, with their attempt count bumped.
func (p *KafkaPublisher) Republish(ctx context.Context, letters []repository.DeadLetter) []repository.DeadLetter {
	byRecord := make(map[*kgo.Record]repository.DeadLetter, len(letters))
	records := make([]*kgo.Record, 0, len(letters))
	for _, l := range letters {
		r := &kgo.Record{Topic: p.topic, Key: []byte(l.Key), Value: l.Payload}
		byRecord[r] = l
		records = append(records, r)
	}

	var failed []repository.DeadLetter
	for _, res := range p.produce(ctx, records) {
		l := byRecord[res.Record]
		l.Attempts++
		l.Reason = "produce: " + res.Err.Error()
		l.FailedAt = time.Now().UTC()
		failed = append(failed, l)
	}
	return failed
}

// produce returns the results that failed. ProduceSync does not keep input
// order, so callers match on the record pointer.
func (p *KafkaPublisher) produce(ctx context.Context, records []*kgo.Record) []kgo.ProduceResult {
	if len(records) == 0 {
		return nil
	}

	logger.ExternalServiceCall("kafka", "ProduceSync", "topic", p.topic, "count", len(records))
	results := p.producer.ProduceSync(ctx, records...)

	var failed []kgo.ProduceResult
	for _, res := range results {
		if res.Err != nil {
			logger.Warn("Event produce failed", "topic", p.topic, "key", string(res.Record.Key), "error", res.Err)
			failed = append(failed, res)
		}
	}
	logger.ExternalServiceResult("kafka", "ProduceSync", results.FirstErr(), "failed", len(failed))
	return failed
}

// NoopPublisher drops events. It is used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, events ...domain.TransactionEvent) error {
	for _, e := range events {
		logger.Debug("Event not published, no brokers configured", "event_id", e.ID, "type", e.Type)
	}
	return nil
}
