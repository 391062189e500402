package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeSale TransactionType = "sale"
	TransactionTypeRent TransactionType = "rent"
)

func (t TransactionType) Valid() bool {
	return t == TransactionTypeSale || t == TransactionTypeRent
}

// ListingStatus is the status a completed transaction of this type leaves
// on its listing.
func (t TransactionType) ListingStatus() PropertyStatus {
	if t == TransactionTypeSale {
		return PropertyStatusSold
	}
	return PropertyStatusRented
}

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
	TransactionStatusRefunded  TransactionStatus = "refunded"
)

// CanTransitionTo reports whether moving from s to next is a legal
// lifecycle step.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	switch s {
	case TransactionStatusPending:
		return next == TransactionStatusCompleted || next == TransactionStatusCancelled
	case TransactionStatusCompleted:
		return next == TransactionStatusRefunded
	}
	return false
}

// CommissionRate is the platform's share of every transaction amount.
var CommissionRate = decimal.RequireFromString("0.03")

// CommissionFor returns the commission owed on amount.
func CommissionFor(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(CommissionRate)
}

// MaxAmount is the largest amount a transaction row can hold.
var MaxAmount = decimal.RequireFromString("999999999999.99")

// AmountProblem describes why amount cannot be charged, or returns "".
// Chargeable amounts are positive, in whole cents and at most MaxAmount.
func AmountProblem(amount decimal.Decimal) string {
	switch {
	case !amount.IsPositive():
		return "must be greater than zero"
	case !amount.Equal(amount.Truncate(2)):
		return "must have at most two decimal places"
	case amount.GreaterThan(MaxAmount):
		return "must not exceed " + MaxAmount.StringFixed(2)
	}
	return ""
}

// MinorUnits converts a decimal amount to the smallest currency unit.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

type PaymentInfo struct {
	ExternalPaymentID string     `json:"externalPaymentId,omitempty"`
	PaymentMethod     string     `json:"paymentMethod,omitempty"`
	PaymentDate       *time.Time `json:"paymentDate,omitempty"`
}

type Commission struct {
	Amount decimal.Decimal `json:"amount"`
	Paid   bool            `json:"paid"`
}

type ContractDetails struct {
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	Terms     string     `json:"terms,omitempty"`
}

type Transaction struct {
	ID              string            `json:"id"`
	PropertyID      string            `json:"propertyId"`
	BuyerID         string            `json:"buyerId"`
	SellerID        string            `json:"sellerId"`
	Type            TransactionType   `json:"type"`
	Amount          decimal.Decimal   `json:"amount"`
	Status          TransactionStatus `json:"status"`
	PaymentInfo     PaymentInfo       `json:"paymentInfo"`
	Commission      Commission        `json:"commission"`
	ContractDetails ContractDetails   `json:"contractDetails"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`

	// Expanded on reads.
	PropertyTitle string `json:"propertyTitle,omitempty"`
	BuyerName     string `json:"buyerName,omitempty"`
	SellerName    string `json:"sellerName,omitempty"`
}

// SetAmount is the only way to change Amount; it keeps Commission in step.
func (t *Transaction) SetAmount(amount decimal.Decimal) {
	t.Amount = amount
	t.Commission.Amount = CommissionFor(amount)
}

// IsParty reports whether p may read or mutate the transaction.
func (t *Transaction) IsParty(p Principal) bool {
	return p.IsAdmin() || p.UserID == t.BuyerID || p.UserID == t.SellerID
}
