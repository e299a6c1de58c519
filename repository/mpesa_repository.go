package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"inphora/database"
	"inphora/errs"
	"inphora/models"
)

// MpesaRepository implements the MpesaRepository interface
type MpesaRepository struct {
	q queryable
}

// NewMpesaRepository creates a new mpesa transaction repository
func NewMpesaRepository(db *database.DB) *MpesaRepository {
	return &MpesaRepository{q: db.Pool}
}

func newMpesaRepositoryWithTx(tx queryable) *MpesaRepository {
	return &MpesaRepository{q: tx}
}

const mpesaColumns = `
	id, transaction_id, amount, phone, bill_ref, status,
	client_id, loan_id, repayment_id, raw_callback, created_at`

func scanMpesa(row pgx.Row) (*models.MpesaIncomingTransaction, error) {
	var t models.MpesaIncomingTransaction
	err := row.Scan(
		&t.ID,
		&t.TransactionID,
		&t.Amount,
		&t.Phone,
		&t.BillRef,
		&t.Status,
		&t.ClientID,
		&t.LoanID,
		&t.RepaymentID,
		&t.RawCallback,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts a notification. The unique external transaction id makes
// replayed gateway callbacks surface as a conflict instead of a duplicate.
func (r *MpesaRepository) Create(ctx context.Context, t *models.MpesaIncomingTransaction) error {
	query := `
		INSERT INTO mpesa_incoming_transactions (transaction_id, amount, phone, bill_ref, status, raw_callback)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		t.TransactionID,
		t.Amount,
		t.Phone,
		t.BillRef,
		t.Status,
		t.RawCallback,
	).Scan(&t.ID, &t.CreatedAt)

	if isUniqueViolation(err, "") {
		return errs.NewConflict("transaction %s already recorded", t.TransactionID)
	}
	if err != nil {
		return fmt.Errorf("failed to create incoming transaction %s: %w", t.TransactionID, err)
	}
	return nil
}

// GetByID retrieves a notification by id
func (r *MpesaRepository) GetByID(ctx context.Context, id int64) (*models.MpesaIncomingTransaction, error) {
	query := `SELECT` + mpesaColumns + ` FROM mpesa_incoming_transactions WHERE id = $1`

	t, err := scanMpesa(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errs.NewNotFound("incoming transaction", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get incoming transaction %d: %w", id, err)
	}
	return t, nil
}

// GetByTransactionID retrieves a notification by its external id, or nil
func (r *MpesaRepository) GetByTransactionID(ctx context.Context, transactionID string) (*models.MpesaIncomingTransaction, error) {
	query := `SELECT` + mpesaColumns + ` FROM mpesa_incoming_transactions WHERE transaction_id = $1`

	t, err := scanMpesa(r.q.QueryRow(ctx, query, transactionID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get incoming transaction %s: %w", transactionID, err)
	}
	return t, nil
}

// MarkMatched links an unmatched notification to the repayment it settled
func (r *MpesaRepository) MarkMatched(ctx context.Context, id int64, clientID, loanID, repaymentID int64) error {
	query := `
		UPDATE mpesa_incoming_transactions
		SET status = 'matched', client_id = $1, loan_id = $2, repayment_id = $3
		WHERE id = $4 AND status = 'unmatched'
	`

	result, err := r.q.Exec(ctx, query, clientID, loanID, repaymentID, id)
	if err != nil {
		return fmt.Errorf("failed to match incoming transaction %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return errs.NewConflict("incoming transaction %d is not unmatched", id)
	}
	return nil
}

// MarkRegistrationMatched marks a notification matched to a registration
// fee. Registration matches carry no client, loan or repayment link.
func (r *MpesaRepository) MarkRegistrationMatched(ctx context.Context, id int64) error {
	query := `
		UPDATE mpesa_incoming_transactions
		SET status = 'matched'
		WHERE id = $1 AND status = 'unmatched'
	`

	result, err := r.q.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to match incoming transaction %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return errs.NewConflict("incoming transaction %d is not unmatched", id)
	}
	return nil
}

// MarkInvalid flags a notification that cannot be applied
func (r *MpesaRepository) MarkInvalid(ctx context.Context, id int64) error {
	query := `
		UPDATE mpesa_incoming_transactions
		SET status = 'invalid'
		WHERE id = $1 AND status = 'unmatched'
	`

	result, err := r.q.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to invalidate incoming transaction %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return errs.NewConflict("incoming transaction %d is not unmatched", id)
	}
	return nil
}

// ListUnmatched returns notifications awaiting reconciliation
func (r *MpesaRepository) ListUnmatched(ctx context.Context) ([]*models.MpesaIncomingTransaction, error) {
	query := `SELECT` + mpesaColumns + ` FROM mpesa_incoming_transactions WHERE status = 'unmatched' ORDER BY created_at`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list unmatched transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*models.MpesaIncomingTransaction
	for rows.Next() {
		t, err := scanMpesa(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incoming transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate incoming transactions: %w", err)
	}
	return transactions, nil
}
