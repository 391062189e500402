package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"estate-market-backend/internal/domain"
	"estate-market-backend/internal/logger"
	"estate-market-backend/internal/repository"
)

type transactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) repository.TransactionRepository {
	return &transactionRepository{db: db}
}

const transactionSelect = `SELECT t.id, t.property_id, t.buyer_id, t.seller_id, t.type, t.amount, t.status,
	COALESCE(t.external_payment_id, ''), COALESCE(t.payment_method, ''), t.payment_date,
	t.commission_amount, t.commission_paid, t.contract_start, t.contract_end, COALESCE(t.contract_terms, ''),
	t.created_at, t.updated_at, COALESCE(p.title, ''), COALESCE(b.name, ''), COALESCE(s.name, '')
	FROM transactions t
	LEFT JOIN properties p ON p.id = t.property_id
	LEFT JOIN users b ON b.id = t.buyer_id
	LEFT JOIN users s ON s.id = t.seller_id`

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	var paymentDate, contractStart, contractEnd sql.NullTime
	err := row.Scan(&t.ID, &t.PropertyID, &t.BuyerID, &t.SellerID, &t.Type, &t.Amount, &t.Status,
		&t.PaymentInfo.ExternalPaymentID, &t.PaymentInfo.PaymentMethod, &paymentDate,
		&t.Commission.Amount, &t.Commission.Paid, &contractStart, &contractEnd, &t.ContractDetails.Terms,
		&t.CreatedAt, &t.UpdatedAt, &t.PropertyTitle, &t.BuyerName, &t.SellerName)
	if err != nil {
		return nil, translate(err)
	}
	t.PaymentInfo.PaymentDate = timePtr(paymentDate)
	t.ContractDetails.StartDate = timePtr(contractStart)
	t.ContractDetails.EndDate = timePtr(contractEnd)
	return t, nil
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func (r *transactionRepository) Create(ctx context.Context, t *domain.Transaction) error {
	query := `INSERT INTO transactions (property_id, buyer_id, seller_id, type, amount, status, external_payment_id,
	              contract_start, contract_end, contract_terms, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	          RETURNING id, amount, commission_amount`
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	logger.DatabaseCall("CreateTransaction", query, "property_id", t.PropertyID, "buyer_id", t.BuyerID)
	err := r.db.QueryRowContext(ctx, query, t.PropertyID, t.BuyerID, t.SellerID, t.Type, t.Amount, t.Status,
		nullString(t.PaymentInfo.ExternalPaymentID), t.ContractDetails.StartDate, t.ContractDetails.EndDate,
		nullString(t.ContractDetails.Terms), t.CreatedAt, t.UpdatedAt).Scan(&t.ID, &t.Amount, &t.Commission.Amount)
	logger.DatabaseResult("CreateTransaction", 1, err)
	return translate(err)
}

func (r *transactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	return scanTransaction(r.db.QueryRowContext(ctx, transactionSelect+` WHERE t.id = $1`, id))
}

func (r *transactionRepository) ListByParty(ctx context.Context, userID string) ([]domain.Transaction, error) {
	query := transactionSelect + ` WHERE t.buyer_id = $1 OR t.seller_id = $1 ORDER BY t.created_at DESC`
	return r.list(ctx, query, userID)
}

func (r *transactionRepository) ListAll(ctx context.Context) ([]domain.Transaction, error) {
	return r.list(ctx, transactionSelect+` ORDER BY t.created_at DESC`)
}

func (r *transactionRepository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Transaction, error) {
	query := transactionSelect + ` WHERE t.status = 'pending' AND t.created_at < $1 ORDER BY t.created_at LIMIT $2`
	return r.list(ctx, query, createdBefore, limit)
}

func (r *transactionRepository) list(ctx context.Context, query string, args ...interface{}) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := []domain.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *t)
	}
	return txs, rows.Err()
}

func (r *transactionRepository) Complete(ctx context.Context, id, paymentMethod string, paidAt time.Time, listingStatus domain.PropertyStatus) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	query := `UPDATE transactions SET status = 'completed', payment_method = $2, payment_date = $3, updated_at = $3
	          WHERE id = $1 AND status = 'pending'
	          RETURNING property_id`
	logger.DatabaseCall("CompleteTransaction", query, "transaction_id", id)
	var propertyID string
	if err := tx.QueryRowContext(ctx, query, id, paymentMethod, paidAt).Scan(&propertyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, repository.ErrConflict
		}
		return false, err
	}

	res, err := tx.ExecContext(ctx, `UPDATE properties SET status = $1, updated_at = $2 WHERE id = $3 AND deleted_at IS NULL`,
		listingStatus, paidAt, propertyID)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	logger.DatabaseResult("CompleteTransaction", rows, nil, "transaction_id", id, "property_id", propertyID)
	return rows > 0, nil
}

func (r *transactionRepository) Cancel(ctx context.Context, id string) error {
	query := `UPDATE transactions SET status = 'cancelled', updated_at = $2 WHERE id = $1 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrConflict
	}
	return nil
}
