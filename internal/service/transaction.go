package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"estate-market-backend/internal/apperrors"
	"estate-market-backend/internal/domain"
	"estate-market-backend/internal/events"
	"estate-market-backend/internal/logger"
	"estate-market-backend/internal/payment"
	"estate-market-backend/internal/repository"

	"github.com/google/uuid"
)

const reasonExpired = "expired"

var (
	errNotPending      = apperrors.Conflict("Transaction is not pending")
	errNotCancellable  = apperrors.Conflict("Transaction cannot be cancelled")
	errNotTransactable = apperrors.Conflict("Property is no longer available")
)

type transactionService struct {
	txRepo    repository.TransactionRepository
	propRepo  repository.PropertyRepository
	eventRepo repository.EventRepository
	gateway   payment.Gateway
	publisher events.Publisher
	currency  string
	now       func() time.Time
}

// NewTransactionService wires the lifecycle manager. eventRepo may be nil
// when no audit store is configured.
func NewTransactionService(
	txRepo repository.TransactionRepository,
	propRepo repository.PropertyRepository,
	eventRepo repository.EventRepository,
	gateway payment.Gateway,
	publisher events.Publisher,
	currency string,
) TransactionService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &transactionService{
		txRepo:    txRepo,
		propRepo:  propRepo,
		eventRepo: eventRepo,
		gateway:   gateway,
		publisher: publisher,
		currency:  strings.ToLower(currency),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Open creates a payment intent and records a pending transaction for it.
// Nothing is stored when the gateway fails, and the intent is cancelled when
// the store fails.
func (s *transactionService) Open(ctx context.Context, actor domain.Principal, in OpenInput) (*OpenResult, error) {
	logger.EnterMethod("TransactionService.Open", "property_id", in.PropertyID, "buyer_id", actor.UserID, "type", in.Type)

	v := apperrors.ValidationErrs()
	if strings.TrimSpace(in.PropertyID) == "" {
		v.Add("propertyId", "is required")
	}
	if !in.Type.Valid() {
		v.Add("type", "must be sale or rent")
	}
	if msg := domain.AmountProblem(in.Amount); msg != "" {
		v.Add("amount", msg)
	}
	if c := in.Contract; c != nil && c.StartDate != nil && c.EndDate != nil && !c.EndDate.After(*c.StartDate) {
		v.Add("contractDetails.endDate", "must be after startDate")
	}
	if err := v.Err(); err != nil {
		logger.ExitMethodWithError("TransactionService.Open", err)
		return nil, err
	}

	prop, err := s.propRepo.GetByID(ctx, in.PropertyID)
	if err != nil {
		err = storeError(err, "property")
		logger.ExitMethodWithError("TransactionService.Open", err)
		return nil, err
	}
	if prop.Status.Closed() {
		return nil, errNotTransactable
	}
	if prop.OwnerID == actor.UserID {
		return nil, apperrors.Validation("cannot open a transaction on your own listing")
	}

	intent, err := s.gateway.CreateIntent(ctx, domain.MinorUnits(in.Amount), s.currency, map[string]string{
		"propertyId": prop.ID,
		"buyerId":    actor.UserID,
		"type":       string(in.Type),
	})
	if err != nil {
		err = gatewayError(err)
		logger.ExitMethodWithError("TransactionService.Open", err)
		return nil, err
	}

	tx := &domain.Transaction{
		PropertyID:  prop.ID,
		BuyerID:     actor.UserID,
		SellerID:    prop.OwnerID,
		Type:        in.Type,
		Status:      domain.TransactionStatusPending,
		PaymentInfo: domain.PaymentInfo{ExternalPaymentID: intent.ID},
	}
	if in.Contract != nil {
		tx.ContractDetails = *in.Contract
	}
	tx.SetAmount(in.Amount)

	if err := s.txRepo.Create(ctx, tx); err != nil {
		// The caller may already be gone; the compensation must still run.
		if cerr := s.gateway.CancelIntent(context.WithoutCancel(ctx), intent.ID); cerr != nil {
			logger.Error("Failed to cancel orphaned payment intent", "intent_id", intent.ID, "error", cerr)
		}
		err = apperrors.Infrastructure("failed to save transaction", err)
		logger.ExitMethodWithError("TransactionService.Open", err)
		return nil, err
	}
	tx.PropertyTitle = prop.Title

	s.publish(ctx, domain.EventTransactionOpened, tx, actor.UserID, "")
	logger.ExitMethod("TransactionService.Open", "transaction_id", tx.ID)
	return &OpenResult{Transaction: tx, ClientHandshakeToken: intent.ClientSecret}, nil
}

// Complete settles a pending transaction and closes its listing as sold or
// rented in the same database transaction.
func (s *transactionService) Complete(ctx context.Context, actor domain.Principal, id, paymentMethod string) (*domain.Transaction, error) {
	logger.EnterMethod("TransactionService.Complete", "transaction_id", id, "actor_id", actor.UserID)

	paymentMethod = strings.TrimSpace(paymentMethod)
	if paymentMethod == "" {
		return nil, apperrors.Validation("paymentMethod is required")
	}

	tx, err := s.load(ctx, actor, id)
	if err != nil {
		logger.ExitMethodWithError("TransactionService.Complete", err)
		return nil, err
	}
	if !tx.Status.CanTransitionTo(domain.TransactionStatusCompleted) {
		return nil, errNotPending
	}

	listingUpdated, err := s.txRepo.Complete(ctx, id, paymentMethod, s.now(), tx.Type.ListingStatus())
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, errNotPending
		}
		err = storeError(err, "transaction")
		logger.ExitMethodWithError("TransactionService.Complete", err)
		return nil, err
	}
	if !listingUpdated {
		logger.Warn("Completed transaction has no live listing to close", "transaction_id", id, "property_id", tx.PropertyID)
	}

	updated, err := s.txRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "transaction")
	}

	s.publish(ctx, domain.EventTransactionCompleted, updated, actor.UserID, "")
	logger.ExitMethod("TransactionService.Complete", "transaction_id", id, "listing_updated", listingUpdated)
	return updated, nil
}

// Cancel voids the payment intent, then cancels the transaction. A gateway
// failure is reported as a warning and does not block the local cancel.
func (s *transactionService) Cancel(ctx context.Context, actor domain.Principal, id string) (*CancelResult, error) {
	logger.EnterMethod("TransactionService.Cancel", "transaction_id", id, "actor_id", actor.UserID)

	tx, err := s.load(ctx, actor, id)
	if err != nil {
		logger.ExitMethodWithError("TransactionService.Cancel", err)
		return nil, err
	}

	res, err := s.cancel(ctx, tx, actor.UserID, "")
	if err != nil {
		logger.ExitMethodWithError("TransactionService.Cancel", err)
		return nil, err
	}
	logger.ExitMethod("TransactionService.Cancel", "transaction_id", id, "warning", res.Warning)
	return res, nil
}

func (s *transactionService) cancel(ctx context.Context, tx *domain.Transaction, actorID, reason string) (*CancelResult, error) {
	if !tx.Status.CanTransitionTo(domain.TransactionStatusCancelled) {
		return nil, errNotCancellable
	}

	var warning string
	intentCancelled := false
	intentID := tx.PaymentInfo.ExternalPaymentID
	if intentID != "" {
		err := s.gateway.CancelIntent(ctx, intentID)
		intentCancelled = err == nil
		if err != nil {
			logger.Warn("Payment intent cancel failed, cancelling locally", "transaction_id", tx.ID, "intent_id", intentID, "error", err)
			if errors.Is(err, payment.ErrIntentSettled) {
				warning = "payment intent was already settled at the payment provider"
			} else {
				warning = "payment intent could not be cancelled at the payment provider"
			}
		}
	}

	if err := s.txRepo.Cancel(ctx, tx.ID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			if intentCancelled {
				// Settled concurrently after its intent was cancelled; needs reconciling.
				logger.Error("Payment intent cancelled but transaction is no longer pending",
					"transaction_id", tx.ID, "intent_id", intentID)
			}
			return nil, errNotCancellable
		}
		return nil, storeError(err, "transaction")
	}

	updated, err := s.txRepo.GetByID(ctx, tx.ID)
	if err != nil {
		return nil, storeError(err, "transaction")
	}

	s.publish(ctx, domain.EventTransactionCancelled, updated, actorID, reason)
	return &CancelResult{Transaction: updated, Warning: warning}, nil
}

func (s *transactionService) List(ctx context.Context, actor domain.Principal) ([]domain.Transaction, error) {
	txs, err := s.txRepo.ListByParty(ctx, actor.UserID)
	if err != nil {
		return nil, storeError(err, "transactions")
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	return txs, nil
}

func (s *transactionService) ListAll(ctx context.Context) ([]domain.Transaction, error) {
	txs, err := s.txRepo.ListAll(ctx)
	if err != nil {
		return nil, storeError(err, "transactions")
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	return txs, nil
}

func (s *transactionService) Get(ctx context.Context, actor domain.Principal, id string) (*domain.Transaction, error) {
	return s.load(ctx, actor, id)
}

func (s *transactionService) History(ctx context.Context, actor domain.Principal, id string) ([]domain.TransactionEvent, error) {
	if _, err := s.load(ctx, actor, id); err != nil {
		return nil, err
	}
	if s.eventRepo == nil {
		logger.Debug("No audit store configured, history is empty", "transaction_id", id)
		return []domain.TransactionEvent{}, nil
	}

	evs, err := s.eventRepo.ListByTransaction(ctx, id)
	if err != nil {
		return nil, apperrors.Infrastructure("failed to load transaction history", err)
	}
	if evs == nil {
		evs = []domain.TransactionEvent{}
	}
	return evs, nil
}

func (s *transactionService) ExpireStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	cutoff := s.now().Add(-olderThan)
	stale, err := s.txRepo.ListStalePending(ctx, cutoff, limit)
	if err != nil {
		return 0, storeError(err, "transactions")
	}

	expired := 0
	for i := range stale {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		if _, err := s.cancel(ctx, &stale[i], "", reasonExpired); err != nil {
			// Lost a race with a user action, or a store error; the next run retries.
			logger.Warn("Failed to expire transaction", "transaction_id", stale[i].ID, "error", err)
			continue
		}
		expired++
	}
	logger.Info("Expired stale transactions", "candidates", len(stale), "expired", expired, "cutoff", cutoff)
	return expired, nil
}

// load fetches a transaction the actor is a party to.
func (s *transactionService) load(ctx context.Context, actor domain.Principal, id string) (*domain.Transaction, error) {
	tx, err := s.txRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "transaction")
	}
	if !tx.IsParty(actor) {
		return nil, apperrors.Forbidden("not authorized to access this transaction")
	}
	return tx, nil
}

func (s *transactionService) publish(ctx context.Context, typ domain.EventType, tx *domain.Transaction, actorID, reason string) {
	event := domain.NewTransactionEvent(uuid.NewString(), typ, tx, actorID, reason, s.now())
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.Error("Failed to publish transaction event", "event_id", event.ID, "type", typ, "transaction_id", tx.ID, "error", err)
	}
}

func gatewayError(err error) error {
	if errors.Is(err, payment.ErrGatewayUnavailable) {
		return apperrors.ProviderUnavailable("payment provider is unavailable, try again later", err)
	}
	return apperrors.Provider("payment provider rejected the request", err)
}
