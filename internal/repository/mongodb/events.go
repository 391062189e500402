package mongodb

import (
	"context"
	"errors"
	"time"

	"estate-market-backend/internal/domain"
	"estate-market-backend/internal/repository"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// eventDocument is the stored form of a domain.TransactionEvent. Decimals
// are kept as strings so no precision is lost.
type eventDocument struct {
	ID            string    `bson:"_id"`
	Type          string    `bson:"type"`
	TransactionID string    `bson:"transaction_id"`
	PropertyID    string    `bson:"property_id"`
	BuyerID       string    `bson:"buyer_id"`
	SellerID      string    `bson:"seller_id"`
	ActorID       string    `bson:"actor_id,omitempty"`
	Amount        string    `bson:"amount"`
	Commission    string    `bson:"commission"`
	Status        string    `bson:"status"`
	Reason        string    `bson:"reason,omitempty"`
	OccurredAt    time.Time `bson:"occurred_at"`
}

func toDocument(e domain.TransactionEvent) eventDocument {
	return eventDocument{
		ID:            e.ID,
		Type:          string(e.Type),
		TransactionID: e.TransactionID,
		PropertyID:    e.PropertyID,
		BuyerID:       e.BuyerID,
		SellerID:      e.SellerID,
		ActorID:       e.ActorID,
		Amount:        e.Amount.String(),
		Commission:    e.Commission.String(),
		Status:        string(e.Status),
		Reason:        e.Reason,
		OccurredAt:    e.OccurredAt.UTC(),
	}
}

func (d eventDocument) toEvent() domain.TransactionEvent {
	amount, _ := decimal.NewFromString(d.Amount)
	commission, _ := decimal.NewFromString(d.Commission)
	return domain.TransactionEvent{
		ID:            d.ID,
		Type:          domain.EventType(d.Type),
		TransactionID: d.TransactionID,
		PropertyID:    d.PropertyID,
		BuyerID:       d.BuyerID,
		SellerID:      d.SellerID,
		ActorID:       d.ActorID,
		Amount:        amount,
		Commission:    commission,
		Status:        domain.TransactionStatus(d.Status),
		Reason:        d.Reason,
		OccurredAt:    d.OccurredAt,
	}
}

type eventRepository struct {
	collection *mongo.Collection
}

func NewEventRepository(client *mongo.Client, database, collection string) repository.EventRepository {
	return &eventRepository{collection: client.Database(database).Collection(collection)}
}

// Insert stores a batch of events. Events are keyed by id, so a redelivered
// event is skipped rather than stored twice.
func (r *eventRepository) Insert(ctx context.Context, events []domain.TransactionEvent) error {
	if len(events) == 0 {
		return nil
	}
	docs := make([]interface{}, len(events))
	for i, e := range events {
		docs[i] = toDocument(e)
	}

	_, err := r.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil && !onlyDuplicates(err) {
		return err
	}
	return nil
}

const duplicateKeyCode = 11000

func onlyDuplicates(err error) bool {
	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) || len(bwe.WriteErrors) == 0 || bwe.WriteConcernError != nil {
		return false
	}
	for _, we := range bwe.WriteErrors {
		if we.Code != duplicateKeyCode {
			return false
		}
	}
	return true
}

func (r *eventRepository) ListByTransaction(ctx context.Context, transactionID string) ([]domain.TransactionEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "occurred_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"transaction_id": transactionID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []eventDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	events := make([]domain.TransactionEvent, 0, len(docs))
	for _, d := range docs {
		events = append(events, d.toEvent())
	}
	return events, nil
}
