package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"estate-market-backend/internal/domain"
	"estate-market-backend/internal/logger"
	"estate-market-backend/internal/repository"
)

const decodeReason = "decode: "

// Poisoned reports whether a dead letter failed decoding. Replaying it would
// only park it again.
func Poisoned(l repository.DeadLetter) bool {
	return strings.HasPrefix(l.Reason, decodeReason)
}

// Projector writes consumed events into the audit store.
type Projector struct {
	store repository.EventRepository
	dlq   repository.DeadLetterRepository
}

func NewProjector(store repository.EventRepository, dlq repository.DeadLetterRepository) *Projector {
	return &Projector{store: store, dlq: dlq}
}

// ProcessRecords decodes and stores a batch. Undecodable records and batches
// the store rejects are parked in the dead-letter queue so the batch can be
// committed. An error is returned only when parking failed too.
func (p *Projector) ProcessRecords(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	var (
		events  []domain.TransactionEvent
		decoded []Record
		letters []repository.DeadLetter
	)
	now := time.Now().UTC()

	for _, r := range records {
		var e domain.TransactionEvent
		if err := json.Unmarshal(r.Value, &e); err != nil || e.ID == "" || e.TransactionID == "" {
			if err == nil {
				err = fmt.Errorf("event is missing id or transaction id")
			}
			logger.Error("Failed to decode event", "key", string(r.Key), "error", err)
			letters = append(letters, repository.DeadLetter{
				Key: string(r.Key), Payload: r.Value, Reason: decodeReason + err.Error(), Attempts: 1, FailedAt: now,
			})
			continue
		}
		events = append(events, e)
		decoded = append(decoded, r)
	}

	if len(events) > 0 {
		if err := p.store.Insert(ctx, events); err != nil {
			logger.Error("Failed to store events", "count", len(events), "error", err)
			for _, r := range decoded {
				letters = append(letters, repository.DeadLetter{
					Key: string(r.Key), Payload: r.Value, Reason: "store: " + err.Error(), Attempts: 1, FailedAt: now,
				})
			}
		}
	}

	if len(letters) == 0 {
		return nil
	}
	if err := p.dlq.Push(ctx, letters...); err != nil {
		return fmt.Errorf("failed to park %d records: %w", len(letters), err)
	}
	return nil
}
