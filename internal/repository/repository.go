package repository

import (
	"context"
	"errors"
	"time"

	"estate-market-backend/internal/domain"
)

var (
	// ErrNotFound is returned when a row does not exist or is soft-deleted.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a conditional write matched no row.
	ErrConflict = errors.New("conditional update did not apply")
	// ErrDuplicate is returned on a unique constraint violation.
	ErrDuplicate = errors.New("duplicate record")
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
}

type PropertyRepository interface {
	Create(ctx context.Context, p *domain.Property) error
	GetByID(ctx context.Context, id string) (*domain.Property, error)
	Update(ctx context.Context, p *domain.Property) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter domain.PropertyFilter) ([]domain.Property, int, error)
	IncrementViews(ctx context.Context, id string) error
	ToggleLike(ctx context.Context, id, userID string) (*domain.LikeResult, error)
	// AppendImages adds urls unless the listing would exceed max images, in
	// which case it returns ErrConflict.
	AppendImages(ctx context.Context, id string, urls []string, max int) ([]string, error)
}

type TransactionRepository interface {
	Create(ctx context.Context, tx *domain.Transaction) error
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	ListByParty(ctx context.Context, userID string) ([]domain.Transaction, error)
	ListAll(ctx context.Context) ([]domain.Transaction, error)
	// Complete moves a pending transaction to completed and sets the listing
	// status in one database transaction. It returns ErrConflict when the
	// transaction is no longer pending. listingUpdated is false when the
	// listing row is missing or deleted.
	Complete(ctx context.Context, id, paymentMethod string, paidAt time.Time, listingStatus domain.PropertyStatus) (listingUpdated bool, err error)
	// Cancel moves a pending transaction to cancelled, or returns ErrConflict.
	Cancel(ctx context.Context, id string) error
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Transaction, error)
}

// EventRepository is the audit store of lifecycle events.
type EventRepository interface {
	Insert(ctx context.Context, events []domain.TransactionEvent) error
	ListByTransaction(ctx context.Context, transactionID string) ([]domain.TransactionEvent, error)
}

// DeadLetter is a payload that could not be delivered, kept for replay.
type DeadLetter struct {
	Key      string    `json:"key"`
	Payload  []byte    `json:"payload"`
	Reason   string    `json:"reason"`
	Attempts int       `json:"attempts"`
	FailedAt time.Time `json:"failedAt"`
}

type DeadLetterRepository interface {
	Push(ctx context.Context, letters ...DeadLetter) error
	Pop(ctx context.Context, max int) ([]DeadLetter, error)
	Len(ctx context.Context) (int64, error)
}

// TokenRevocationRepository tracks refresh tokens revoked before expiry.
type TokenRevocationRepository interface {
	// Revoke reports false when jti was already revoked.
	Revoke(ctx context.Context, jti string, ttl time.Duration) (bool, error)
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
