package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventTransactionOpened    EventType = "transaction.opened"
	EventTransactionCompleted EventType = "transaction.completed"
	EventTransactionCancelled EventType = "transaction.cancelled"
)

// TransactionEvent records one lifecycle step. It is published to the event
// stream and projected into the audit store.
type TransactionEvent struct {
	ID            string            `json:"id"`
	Type          EventType         `json:"type"`
	TransactionID string            `json:"transactionId"`
	PropertyID    string            `json:"propertyId"`
	BuyerID       string            `json:"buyerId"`
	SellerID      string            `json:"sellerId"`
	ActorID       string            `json:"actorId,omitempty"`
	Amount        decimal.Decimal   `json:"amount"`
	Commission    decimal.Decimal   `json:"commission"`
	Status        TransactionStatus `json:"status"`
	Reason        string            `json:"reason,omitempty"`
	OccurredAt    time.Time         `json:"occurredAt"`
}

// NewTransactionEvent snapshots tx for the given lifecycle step.
func NewTransactionEvent(id string, typ EventType, tx *Transaction, actorID, reason string, at time.Time) TransactionEvent {
	return TransactionEvent{
		ID:            id,
		Type:          typ,
		TransactionID: tx.ID,
		PropertyID:    tx.PropertyID,
		BuyerID:       tx.BuyerID,
		SellerID:      tx.SellerID,
		ActorID:       actorID,
		Amount:        tx.Amount,
		Commission:    tx.Commission.Amount,
		Status:        tx.Status,
		Reason:        reason,
		OccurredAt:    at,
	}
}
