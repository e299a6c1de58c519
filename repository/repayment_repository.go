package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"inphora/database"
	"inphora/models"
)

// RepaymentRepository implements the RepaymentRepository interface
type RepaymentRepository struct {
	q queryable
}

// NewRepaymentRepository creates a new repayment repository
func NewRepaymentRepository(db *database.DB) *RepaymentRepository {
	return &RepaymentRepository{q: db.Pool}
}

func newRepaymentRepositoryWithTx(tx queryable) *RepaymentRepository {
	return &RepaymentRepository{q: tx}
}

// Create inserts a repayment record. Repayments are append-only.
func (r *RepaymentRepository) Create(ctx context.Context, repayment *models.Repayment) error {
	query := `
		INSERT INTO repayments (loan_id, amount, payment_date, payment_method, external_transaction_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		repayment.LoanID,
		repayment.Amount,
		repayment.PaymentDate,
		repayment.PaymentMethod,
		repayment.ExternalTransactionID,
		repayment.Notes,
	).Scan(&repayment.ID, &repayment.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create repayment for loan %d: %w", repayment.LoanID, err)
	}
	return nil
}

// GetByLoan returns a loan's repayments in payment order
func (r *RepaymentRepository) GetByLoan(ctx context.Context, loanID int64) ([]*models.Repayment, error) {
	query := `
		SELECT id, loan_id, amount, payment_date, payment_method, external_transaction_id, notes, created_at
		FROM repayments
		WHERE loan_id = $1
		ORDER BY payment_date, id
	`

	rows, err := r.q.Query(ctx, query, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get repayments for loan %d: %w", loanID, err)
	}
	defer rows.Close()

	var repayments []*models.Repayment
	for rows.Next() {
		var p models.Repayment
		err := rows.Scan(
			&p.ID,
			&p.LoanID,
			&p.Amount,
			&p.PaymentDate,
			&p.PaymentMethod,
			&p.ExternalTransactionID,
			&p.Notes,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan repayment: %w", err)
		}
		repayments = append(repayments, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate repayments: %w", err)
	}
	return repayments, nil
}

// TotalRepaid sums the amounts repaid against a loan
func (r *RepaymentRepository) TotalRepaid(ctx context.Context, loanID int64) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM repayments WHERE loan_id = $1`

	var total decimal.Decimal
	if err := r.q.QueryRow(ctx, query, loanID).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum repayments for loan %d: %w", loanID, err)
	}
	return total, nil
}
