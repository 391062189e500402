package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"estate-market-backend/internal/apperrors"
	"estate-market-backend/internal/domain"
	"estate-market-backend/internal/logger"
	"estate-market-backend/internal/payment"
	"estate-market-backend/internal/repository"
	"estate-market-backend/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var (
	buyer  = domain.Principal{UserID: "b-1", Role: domain.UserRoleBuyer}
	seller = domain.Principal{UserID: "s-1", Role: domain.UserRoleSeller}
	admin  = domain.Principal{UserID: "a-1", Role: domain.UserRoleAdmin}
	other  = domain.Principal{UserID: "x-1", Role: domain.UserRoleBuyer}
)

type txFixture struct {
	txRepo    *MockTransactionRepo
	propRepo  *MockPropertyRepo
	eventRepo *MockEventRepo
	gateway   *MockGateway
	publisher *MockPublisher
	svc       service.TransactionService
}

func newTxFixture() *txFixture {
	f := &txFixture{
		txRepo:    new(MockTransactionRepo),
		propRepo:  new(MockPropertyRepo),
		eventRepo: new(MockEventRepo),
		gateway:   new(MockGateway),
		publisher: new(MockPublisher),
	}
	f.svc = service.NewTransactionService(f.txRepo, f.propRepo, f.eventRepo, f.gateway, f.publisher, "USD")
	return f
}

func (f *txFixture) expectEvent(typ domain.EventType) {
	f.publisher.On("Publish", mock.Anything, mock.MatchedBy(func(es []domain.TransactionEvent) bool {
		return len(es) == 1 && es[0].Type == typ && es[0].ID != ""
	})).Return(nil).Once()
}

func listing(status domain.PropertyStatus) *domain.Property {
	return &domain.Property{ID: "p-1", Title: "Lake house", OwnerID: "s-1", Status: status, Type: domain.PropertyTypeHouse, Price: decimal.NewFromInt(250000)}
}

func pendingTx(typ domain.TransactionType) *domain.Transaction {
	tx := &domain.Transaction{
		ID: "t-1", PropertyID: "p-1", BuyerID: "b-1", SellerID: "s-1", Type: typ,
		Status:      domain.TransactionStatusPending,
		PaymentInfo: domain.PaymentInfo{ExternalPaymentID: "pi_1"},
	}
	tx.SetAmount(decimal.NewFromInt(250000))
	return tx
}

func withStatus(tx *domain.Transaction, status domain.TransactionStatus) *domain.Transaction {
	c := *tx
	c.Status = status
	return &c
}

func TestTransactionService_Open(t *testing.T) {
	ctx := context.Background()
	in := service.OpenInput{PropertyID: "p-1", Type: domain.TransactionTypeSale, Amount: decimal.NewFromInt(250000)}

	t.Run("Success", func(t *testing.T) {
		f := newTxFixture()
		f.propRepo.On("GetByID", ctx, "p-1").Return(listing(domain.PropertyStatusAvailable), nil)
		f.gateway.On("CreateIntent", ctx, int64(25000000), "usd", map[string]string{
			"propertyId": "p-1", "buyerId": "b-1", "type": "sale",
		}).Return(&payment.Intent{ID: "pi_1", ClientSecret: "pi_1_secret"}, nil)
		f.txRepo.On("Create", ctx, mock.MatchedBy(func(tx *domain.Transaction) bool {
			return tx.Status == domain.TransactionStatusPending &&
				tx.SellerID == "s-1" && tx.BuyerID == "b-1" &&
				tx.PaymentInfo.ExternalPaymentID == "pi_1" &&
				tx.Commission.Amount.Equal(decimal.NewFromInt(7500))
		})).Run(func(args mock.Arguments) {
			args.Get(1).(*domain.Transaction).ID = "t-1"
		}).Return(nil)
		f.expectEvent(domain.EventTransactionOpened)

		res, err := f.svc.Open(ctx, buyer, in)
		require.NoError(t, err)
		assert.Equal(t, "t-1", res.Transaction.ID)
		assert.Equal(t, "pi_1_secret", res.ClientHandshakeToken)
		assert.Equal(t, "Lake house", res.Transaction.PropertyTitle)
		f.propRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		f.publisher.AssertExpectations(t)
	})

	t.Run("Invalid input", func(t *testing.T) {
		cases := map[string]service.OpenInput{
			"zero amount":  {PropertyID: "p-1", Type: domain.TransactionTypeSale, Amount: decimal.Zero},
			"unknown type": {PropertyID: "p-1", Type: "lease", Amount: decimal.NewFromInt(1)},
			"no property":  {Type: domain.TransactionTypeRent, Amount: decimal.NewFromInt(1)},
			"sub-cent amount": {PropertyID: "p-1", Type: domain.TransactionTypeSale,
				Amount: decimal.RequireFromString("0.001")},
			"fractional cents": {PropertyID: "p-1", Type: domain.TransactionTypeSale,
				Amount: decimal.RequireFromString("100.005")},
			"beyond int64 cents": {PropertyID: "p-1", Type: domain.TransactionTypeSale,
				Amount: decimal.RequireFromString("92233720368547758.09")},
			"beyond column range": {PropertyID: "p-1", Type: domain.TransactionTypeSale,
				Amount: decimal.RequireFromString("1000000000000")},
		}
		for name, bad := range cases {
			t.Run(name, func(t *testing.T) {
				f := newTxFixture()
				_, err := f.svc.Open(ctx, buyer, bad)
				assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
				f.gateway.AssertNotCalled(t, "CreateIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("Contract dates out of order", func(t *testing.T) {
		f := newTxFixture()
		start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 0, -1)
		bad := in
		bad.Contract = &domain.ContractDetails{StartDate: &start, EndDate: &end}

		_, err := f.svc.Open(ctx, buyer, bad)
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
		assert.Contains(t, err.Error(), "contractDetails.endDate")
	})

	t.Run("Property not found", func(t *testing.T) {
		f := newTxFixture()
		f.propRepo.On("GetByID", ctx, "p-1").Return(nil, repository.ErrNotFound)

		_, err := f.svc.Open(ctx, buyer, in)
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	})

	t.Run("Sold property", func(t *testing.T) {
		f := newTxFixture()
		f.propRepo.On("GetByID", ctx, "p-1").Return(listing(domain.PropertyStatusSold), nil)

		_, err := f.svc.Open(ctx, buyer, in)
		assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
		f.gateway.AssertNotCalled(t, "CreateIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Own listing", func(t *testing.T) {
		f := newTxFixture()
		f.propRepo.On("GetByID", ctx, "p-1").Return(listing(domain.PropertyStatusAvailable), nil)

		_, err := f.svc.Open(ctx, seller, in)
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	})

	t.Run("Gateway unavailable persists nothing", func(t *testing.T) {
		f := newTxFixture()
		f.propRepo.On("GetByID", ctx, "p-1").Return(listing(domain.PropertyStatusAvailable), nil)
		f.gateway.On("CreateIntent", ctx, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("%w: after 3 attempts", payment.ErrGatewayUnavailable))

		_, err := f.svc.Open(ctx, buyer, in)
		assert.Equal(t, apperrors.KindProviderUnavailable, apperrors.KindOf(err))
		f.txRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("Gateway decline", func(t *testing.T) {
		f := newTxFixture()
		f.propRepo.On("GetByID", ctx, "p-1").Return(listing(domain.PropertyStatusAvailable), nil)
		f.gateway.On("CreateIntent", ctx, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, &payment.ProviderError{Op: "create_intent", StatusCode: 402, Err: errors.New("declined")})

		_, err := f.svc.Open(ctx, buyer, in)
		assert.Equal(t, apperrors.KindProvider, apperrors.KindOf(err))
		assert.NotContains(t, apperrors.MessageOf(err), "declined")
		f.txRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("Store failure cancels the intent", func(t *testing.T) {
		f := newTxFixture()
		f.propRepo.On("GetByID", ctx, "p-1").Return(listing(domain.PropertyStatusAvailable), nil)
		f.gateway.On("CreateIntent", ctx, mock.Anything, mock.Anything, mock.Anything).
			Return(&payment.Intent{ID: "pi_9", ClientSecret: "s"}, nil)
		f.txRepo.On("Create", ctx, mock.Anything).Return(errors.New("connection refused"))
		f.gateway.On("CancelIntent", mock.Anything, "pi_9").Return(nil)

		_, err := f.svc.Open(ctx, buyer, in)
		assert.Equal(t, apperrors.KindInfrastructure, apperrors.KindOf(err))
		f.gateway.AssertCalled(t, "CancelIntent", mock.Anything, "pi_9")
	})
}

func TestTransactionService_Complete(t *testing.T) {
	ctx := context.Background()

	t.Run("Sale closes listing as sold", func(t *testing.T) {
		f := newTxFixture()
		tx := pendingTx(domain.TransactionTypeSale)
		f.txRepo.On("GetByID", ctx, "t-1").Return(tx, nil).Once()
		f.txRepo.On("Complete", ctx, "t-1", "card", mock.AnythingOfType("time.Time"), domain.PropertyStatusSold).Return(true, nil)
		f.txRepo.On("GetByID", ctx, "t-1").Return(withStatus(tx, domain.TransactionStatusCompleted), nil).Once()
		f.expectEvent(domain.EventTransactionCompleted)

		res, err := f.svc.Complete(ctx, buyer, "t-1", "card")
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusCompleted, res.Status)
		f.txRepo.AssertExpectations(t)
	})

	t.Run("Rent closes listing as rented", func(t *testing.T) {
		f := newTxFixture()
		tx := pendingTx(domain.TransactionTypeRent)
		f.txRepo.On("GetByID", ctx, "t-1").Return(tx, nil).Once()
		f.txRepo.On("Complete", ctx, "t-1", "card", mock.Anything, domain.PropertyStatusRented).Return(true, nil)
		f.txRepo.On("GetByID", ctx, "t-1").Return(withStatus(tx, domain.TransactionStatusCompleted), nil).Once()
		f.expectEvent(domain.EventTransactionCompleted)

		_, err := f.svc.Complete(ctx, seller, "t-1", "card")
		require.NoError(t, err)
		f.txRepo.AssertExpectations(t)
	})

	t.Run("Admin may complete", func(t *testing.T) {
		f := newTxFixture()
		tx := pendingTx(domain.TransactionTypeSale)
		f.txRepo.On("GetByID", ctx, "t-1").Return(tx, nil).Once()
		f.txRepo.On("Complete", ctx, "t-1", "wire", mock.Anything, domain.PropertyStatusSold).Return(false, nil)
		f.txRepo.On("GetByID", ctx, "t-1").Return(withStatus(tx, domain.TransactionStatusCompleted), nil).Once()
		f.expectEvent(domain.EventTransactionCompleted)

		_, err := f.svc.Complete(ctx, admin, "t-1", "wire")
		assert.NoError(t, err)
	})

	t.Run("Missing payment method", func(t *testing.T) {
		f := newTxFixture()
		_, err := f.svc.Complete(ctx, buyer, "t-1", "  ")
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	})

	t.Run("Not found", func(t *testing.T) {
		f := newTxFixture()
		f.txRepo.On("GetByID", ctx, "t-1").Return(nil, repository.ErrNotFound)
		_, err := f.svc.Complete(ctx, buyer, "t-1", "card")
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	})

	t.Run("Third party is forbidden", func(t *testing.T) {
		f := newTxFixture()
		f.txRepo.On("GetByID", ctx, "t-1").Return(pendingTx(domain.TransactionTypeSale), nil)

		_, err := f.svc.Complete(ctx, other, "t-1", "card")
		assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
		f.txRepo.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Non-pending is a conflict", func(t *testing.T) {
		for _, st := range []domain.TransactionStatus{domain.TransactionStatusCompleted, domain.TransactionStatusCancelled, domain.TransactionStatusRefunded} {
			f := newTxFixture()
			f.txRepo.On("GetByID", ctx, "t-1").Return(withStatus(pendingTx(domain.TransactionTypeSale), st), nil)

			_, err := f.svc.Complete(ctx, buyer, "t-1", "card")
			assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err), string(st))
			f.txRepo.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		}
	})

	t.Run("Lost race is a conflict", func(t *testing.T) {
		f := newTxFixture()
		f.txRepo.On("GetByID", ctx, "t-1").Return(pendingTx(domain.TransactionTypeSale), nil)
		f.txRepo.On("Complete", ctx, "t-1", "card", mock.Anything, domain.PropertyStatusSold).Return(false, repository.ErrConflict)

		_, err := f.svc.Complete(ctx, buyer, "t-1", "card")
		assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
		f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})
}

func TestTransactionService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newTxFixture()
		tx := pendingTx(domain.TransactionTypeRent)
		f.txRepo.On("GetByID", ctx, "t-1").Return(tx, nil).Once()
		f.gateway.On("CancelIntent", ctx, "pi_1").Return(nil)
		f.txRepo.On("Cancel", ctx, "t-1").Return(nil)
		f.txRepo.On("GetByID", ctx, "t-1").Return(withStatus(tx, domain.TransactionStatusCancelled), nil).Once()
		f.expectEvent(domain.EventTransactionCancelled)

		res, err := f.svc.Cancel(ctx, seller, "t-1")
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusCancelled, res.Transaction.Status)
		assert.Empty(t, res.Warning)
		f.propRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("Gateway failure still cancels with a warning", func(t *testing.T) {
		f := newTxFixture()
		tx := pendingTx(domain.TransactionTypeSale)
		f.txRepo.On("GetByID", ctx, "t-1").Return(tx, nil).Once()
		f.gateway.On("CancelIntent", ctx, "pi_1").Return(payment.ErrGatewayUnavailable)
		f.txRepo.On("Cancel", ctx, "t-1").Return(nil)
		f.txRepo.On("GetByID", ctx, "t-1").Return(withStatus(tx, domain.TransactionStatusCancelled), nil).Once()
		f.expectEvent(domain.EventTransactionCancelled)

		res, err := f.svc.Cancel(ctx, buyer, "t-1")
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusCancelled, res.Transaction.Status)
		assert.Contains(t, res.Warning, "could not be cancelled")
	})

	t.Run("Settled intent warning", func(t *testing.T) {
		f := newTxFixture()
		tx := pendingTx(domain.TransactionTypeSale)
		f.txRepo.On("GetByID", ctx, "t-1").Return(tx, nil).Once()
		f.gateway.On("CancelIntent", ctx, "pi_1").Return(&payment.ProviderError{Op: "cancel_intent", Err: payment.ErrIntentSettled})
		f.txRepo.On("Cancel", ctx, "t-1").Return(nil)
		f.txRepo.On("GetByID", ctx, "t-1").Return(withStatus(tx, domain.TransactionStatusCancelled), nil).Once()
		f.expectEvent(domain.EventTransactionCancelled)

		res, err := f.svc.Cancel(ctx, buyer, "t-1")
		require.NoError(t, err)
		assert.Contains(t, res.Warning, "already settled")
	})

	t.Run("Completed cannot be cancelled", func(t *testing.T) {
		f := newTxFixture()
		f.txRepo.On("GetByID", ctx, "t-1").Return(withStatus(pendingTx(domain.TransactionTypeSale), domain.TransactionStatusCompleted), nil)

		_, err := f.svc.Cancel(ctx, buyer, "t-1")
		assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
		assert.Equal(t, "Transaction cannot be cancelled", apperrors.MessageOf(err))
		f.gateway.AssertNotCalled(t, "CancelIntent", mock.Anything, mock.Anything)
	})

	t.Run("Third party is forbidden", func(t *testing.T) {
		f := newTxFixture()
		f.txRepo.On("GetByID", ctx, "t-1").Return(pendingTx(domain.TransactionTypeSale), nil)

		_, err := f.svc.Cancel(ctx, other, "t-1")
		assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
		f.txRepo.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)
	})

	t.Run("Lost race is a conflict", func(t *testing.T) {
		f := newTxFixture()
		f.txRepo.On("GetByID", ctx, "t-1").Return(pendingTx(domain.TransactionTypeSale), nil)
		f.gateway.On("CancelIntent", ctx, "pi_1").Return(nil)
		f.txRepo.On("Cancel", ctx, "t-1").Return(repository.ErrConflict)

		core, logs := observer.New(zapcore.ErrorLevel)
		logger.Set(zap.New(core))
		defer logger.Set(zap.NewNop())

		_, err := f.svc.Cancel(ctx, buyer, "t-1")
		assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

		mismatch := logs.FilterMessage("Payment intent cancelled but transaction is no longer pending").All()
		require.Len(t, mismatch, 1)
		assert.Equal(t, "pi_1", mismatch[0].ContextMap()["intent_id"])
		assert.Equal(t, "t-1", mismatch[0].ContextMap()["transaction_id"])
	})
}

func TestTransactionService_Reads(t *testing.T) {
	ctx := context.Background()

	t.Run("List is scoped to the caller", func(t *testing.T) {
		f := newTxFixture()
		f.txRepo.On("ListByParty", ctx, "b-1").Return(nil, nil)

		txs, err := f.svc.List(ctx, buyer)
		require.NoError(t, err)
		assert.NotNil(t, txs)
		assert.Empty(t, txs)
	})

	t.Run("ListAll", func(t *testing.T) {
		f := newTxFixture()
		f.txRepo.On("ListAll", ctx).Return([]domain.Transaction{*pendingTx(domain.TransactionTypeSale)}, nil)

		txs, err := f.svc.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, txs, 1)
	})

	t.Run("Get by party, admin and stranger", func(t *testing.T) {
		f := newTxFixture()
		f.txRepo.On("GetByID", ctx, "t-1").Return(pendingTx(domain.TransactionTypeSale), nil)

		for _, p := range []domain.Principal{buyer, seller, admin} {
			_, err := f.svc.Get(ctx, p, "t-1")
			assert.NoError(t, err, p.UserID)
		}
		_, err := f.svc.Get(ctx, other, "t-1")
		assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
	})

	t.Run("History", func(t *testing.T) {
		f := newTxFixture()
		tx := pendingTx(domain.TransactionTypeSale)
		f.txRepo.On("GetByID", ctx, "t-1").Return(tx, nil)
		evs := []domain.TransactionEvent{domain.NewTransactionEvent("e-1", domain.EventTransactionOpened, tx, "b-1", "", time.Now())}
		f.eventRepo.On("ListByTransaction", ctx, "t-1").Return(evs, nil)

		got, err := f.svc.History(ctx, buyer, "t-1")
		require.NoError(t, err)
		assert.Equal(t, evs, got)

		_, err = f.svc.History(ctx, other, "t-1")
		assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
	})

	t.Run("History without audit store", func(t *testing.T) {
		txRepo := new(MockTransactionRepo)
		txRepo.On("GetByID", ctx, "t-1").Return(pendingTx(domain.TransactionTypeSale), nil)
		svc := service.NewTransactionService(txRepo, new(MockPropertyRepo), nil, new(MockGateway), nil, "usd")

		got, err := svc.History(ctx, buyer, "t-1")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestTransactionService_ExpireStale(t *testing.T) {
	ctx := context.Background()
	f := newTxFixture()

	stale := []domain.Transaction{*pendingTx(domain.TransactionTypeSale), *pendingTx(domain.TransactionTypeRent)}
	stale[1].ID = "t-2"
	stale[1].PaymentInfo.ExternalPaymentID = ""

	f.txRepo.On("ListStalePending", ctx, mock.MatchedBy(func(cutoff time.Time) bool {
		return time.Since(cutoff) > 71*time.Hour
	}), 50).Return(stale, nil)
	f.gateway.On("CancelIntent", ctx, "pi_1").Return(nil)
	f.txRepo.On("Cancel", ctx, "t-1").Return(nil)
	f.txRepo.On("GetByID", ctx, "t-1").Return(withStatus(&stale[0], domain.TransactionStatusCancelled), nil)
	f.txRepo.On("Cancel", ctx, "t-2").Return(repository.ErrConflict)
	f.publisher.On("Publish", ctx, mock.MatchedBy(func(es []domain.TransactionEvent) bool {
		return es[0].Reason == "expired" && es[0].ActorID == ""
	})).Return(nil).Once()

	n, err := f.svc.ExpireStale(ctx, 72*time.Hour, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	f.publisher.AssertExpectations(t)
}
