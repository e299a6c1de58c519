package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"inphora/database"
	"inphora/errs"
	"inphora/models"
)

// DisbursementRepository implements the DisbursementRepository interface
type DisbursementRepository struct {
	q queryable
}

// NewDisbursementRepository creates a new disbursement repository
func NewDisbursementRepository(db *database.DB) *DisbursementRepository {
	return &DisbursementRepository{q: db.Pool}
}

func newDisbursementRepositoryWithTx(tx queryable) *DisbursementRepository {
	return &DisbursementRepository{q: tx}
}

const disbursementColumns = `
	id, loan_id, client_id, amount, method, status,
	mpesa_phone, bank_name, bank_account, bank_reference,
	correlation_id, external_transaction_id, result_code, result_description,
	error_message, initiated_by, initiated_at, completed_at`

func scanDisbursement(row pgx.Row) (*models.DisbursementTransaction, error) {
	var t models.DisbursementTransaction
	err := row.Scan(
		&t.ID,
		&t.LoanID,
		&t.ClientID,
		&t.Amount,
		&t.Method,
		&t.Status,
		&t.MpesaPhone,
		&t.BankName,
		&t.BankAccount,
		&t.BankReference,
		&t.CorrelationID,
		&t.ExternalTransactionID,
		&t.ResultCode,
		&t.ResultDescription,
		&t.ErrorMessage,
		&t.InitiatedBy,
		&t.InitiatedAt,
		&t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts a disbursement attempt. A partial unique index allows at
// most one non-failed attempt per loan, so a duplicate initiation surfaces
// as a conflict here instead of racing.
func (r *DisbursementRepository) Create(ctx context.Context, t *models.DisbursementTransaction) error {
	query := `
		INSERT INTO disbursement_transactions (
			loan_id, client_id, amount, method, status,
			mpesa_phone, bank_name, bank_account, bank_reference,
			correlation_id, initiated_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, initiated_at
	`

	err := r.q.QueryRow(ctx, query,
		t.LoanID,
		t.ClientID,
		t.Amount,
		t.Method,
		t.Status,
		t.MpesaPhone,
		t.BankName,
		t.BankAccount,
		t.BankReference,
		t.CorrelationID,
		t.InitiatedBy,
	).Scan(&t.ID, &t.InitiatedAt)

	if isUniqueViolation(err, "idx_disbursements_one_open_per_loan") {
		return errs.NewConflict("loan %d already has an open disbursement", t.LoanID)
	}
	if err != nil {
		return fmt.Errorf("failed to create disbursement for loan %d: %w", t.LoanID, err)
	}
	return nil
}

// GetByID retrieves a disbursement by id
func (r *DisbursementRepository) GetByID(ctx context.Context, id int64) (*models.DisbursementTransaction, error) {
	query := `SELECT` + disbursementColumns + ` FROM disbursement_transactions WHERE id = $1`

	t, err := scanDisbursement(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errs.NewNotFound("disbursement", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get disbursement %d: %w", id, err)
	}
	return t, nil
}

// GetByCorrelationID retrieves a disbursement by its callback correlation
// id, or nil when none matches
func (r *DisbursementRepository) GetByCorrelationID(ctx context.Context, correlationID string) (*models.DisbursementTransaction, error) {
	query := `SELECT` + disbursementColumns + ` FROM disbursement_transactions WHERE correlation_id = $1`

	t, err := scanDisbursement(r.q.QueryRow(ctx, query, correlationID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get disbursement by correlation id: %w", err)
	}
	return t, nil
}

// GetByLoan returns a loan's disbursement attempts, newest first
func (r *DisbursementRepository) GetByLoan(ctx context.Context, loanID int64) ([]*models.DisbursementTransaction, error) {
	query := `SELECT` + disbursementColumns + ` FROM disbursement_transactions WHERE loan_id = $1 ORDER BY initiated_at DESC`

	rows, err := r.q.Query(ctx, query, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get disbursements for loan %d: %w", loanID, err)
	}
	defer rows.Close()

	var transactions []*models.DisbursementTransaction
	for rows.Next() {
		t, err := scanDisbursement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan disbursement: %w", err)
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate disbursements: %w", err)
	}
	return transactions, nil
}

// UpdateStatus transitions an attempt from one status to another
func (r *DisbursementRepository) UpdateStatus(ctx context.Context, id int64, expected, next models.DisbursementStatus) error {
	query := `
		UPDATE disbursement_transactions
		SET status = $1
		WHERE id = $2 AND status = $3
	`

	result, err := r.q.Exec(ctx, query, next, id, expected)
	if err != nil {
		return fmt.Errorf("failed to update status for disbursement %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return errs.NewConflict("disbursement %d is not %s", id, expected)
	}
	return nil
}

// MarkCompleted finalizes a processing attempt with the provider's reference
func (r *DisbursementRepository) MarkCompleted(ctx context.Context, id int64, externalID, resultCode, resultDesc string) error {
	query := `
		UPDATE disbursement_transactions
		SET status = 'completed', external_transaction_id = $1,
		    result_code = $2, result_description = $3, completed_at = NOW()
		WHERE id = $4 AND status = 'processing'
	`

	result, err := r.q.Exec(ctx, query, externalID, resultCode, resultDesc, id)
	if err != nil {
		return fmt.Errorf("failed to complete disbursement %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return errs.NewConflict("disbursement %d is not processing", id)
	}
	return nil
}

// MarkFailed finalizes an attempt with the provider's failure detail.
// Both pending and processing attempts can fail.
func (r *DisbursementRepository) MarkFailed(ctx context.Context, id int64, resultCode, errorMessage string) error {
	query := `
		UPDATE disbursement_transactions
		SET status = 'failed', result_code = $1, error_message = $2, completed_at = NOW()
		WHERE id = $3 AND status IN ('pending', 'processing')
	`

	result, err := r.q.Exec(ctx, query, resultCode, errorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to fail disbursement %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return errs.NewConflict("disbursement %d is not open", id)
	}
	return nil
}
