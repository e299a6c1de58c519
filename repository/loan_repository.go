package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"inphora/database"
	"inphora/errs"
	"inphora/models"
)

// LoanRepository implements the LoanRepository interface
type LoanRepository struct {
	q queryable
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db *database.DB) *LoanRepository {
	return &LoanRepository{q: db.Pool}
}

func newLoanRepositoryWithTx(tx queryable) *LoanRepository {
	return &LoanRepository{q: tx}
}

const loanColumns = `
	id, client_id, product_id, amount, interest_rate,
	duration_count, duration_unit, repayment_frequency,
	start_date, end_date, status, current_approval_level,
	processing_fee, insurance_fee, valuation_fee, registration_fee,
	is_processing_fee_waived, penalty_rate, grace_period_days,
	approved_by, approved_at, rejected_at, rejection_reason,
	created_at, updated_at`

func scanLoan(row pgx.Row) (*models.Loan, error) {
	var loan models.Loan
	err := row.Scan(
		&loan.ID,
		&loan.ClientID,
		&loan.ProductID,
		&loan.Amount,
		&loan.InterestRate,
		&loan.DurationCount,
		&loan.DurationUnit,
		&loan.RepaymentFrequency,
		&loan.StartDate,
		&loan.EndDate,
		&loan.Status,
		&loan.CurrentApprovalLevel,
		&loan.ProcessingFee,
		&loan.InsuranceFee,
		&loan.ValuationFee,
		&loan.RegistrationFee,
		&loan.IsProcessingFeeWaived,
		&loan.PenaltyRate,
		&loan.GracePeriodDays,
		&loan.ApprovedBy,
		&loan.ApprovedAt,
		&loan.RejectedAt,
		&loan.RejectionReason,
		&loan.CreatedAt,
		&loan.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// Create inserts a new loan with its term and fee snapshot
func (r *LoanRepository) Create(ctx context.Context, loan *models.Loan) error {
	query := `
		INSERT INTO loans (
			client_id, product_id, amount, interest_rate,
			duration_count, duration_unit, repayment_frequency,
			start_date, end_date, status, current_approval_level,
			processing_fee, insurance_fee, valuation_fee, registration_fee,
			is_processing_fee_waived, penalty_rate, grace_period_days
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		loan.ClientID,
		loan.ProductID,
		loan.Amount,
		loan.InterestRate,
		loan.DurationCount,
		loan.DurationUnit,
		loan.RepaymentFrequency,
		loan.StartDate,
		loan.EndDate,
		loan.Status,
		loan.CurrentApprovalLevel,
		loan.ProcessingFee,
		loan.InsuranceFee,
		loan.ValuationFee,
		loan.RegistrationFee,
		loan.IsProcessingFeeWaived,
		loan.PenaltyRate,
		loan.GracePeriodDays,
	).Scan(&loan.ID, &loan.CreatedAt, &loan.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

// GetByID retrieves a loan by id
func (r *LoanRepository) GetByID(ctx context.Context, id int64) (*models.Loan, error) {
	query := `SELECT` + loanColumns + ` FROM loans WHERE id = $1`

	loan, err := scanLoan(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errs.NewNotFound("loan", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get loan %d: %w", id, err)
	}
	return loan, nil
}

// GetByClient returns a client's loans, newest first
func (r *LoanRepository) GetByClient(ctx context.Context, clientID int64) ([]*models.Loan, error) {
	query := `SELECT` + loanColumns + ` FROM loans WHERE client_id = $1 ORDER BY created_at DESC`
	return r.queryLoans(ctx, query, clientID)
}

// GetByStatus returns loans in the given status
func (r *LoanRepository) GetByStatus(ctx context.Context, status models.LoanStatus) ([]*models.Loan, error) {
	query := `SELECT` + loanColumns + ` FROM loans WHERE status = $1 ORDER BY created_at DESC`
	return r.queryLoans(ctx, query, status)
}

// List returns all loans, newest first
func (r *LoanRepository) List(ctx context.Context) ([]*models.Loan, error) {
	query := `SELECT` + loanColumns + ` FROM loans ORDER BY created_at DESC`
	return r.queryLoans(ctx, query)
}

func (r *LoanRepository) queryLoans(ctx context.Context, query string, args ...any) ([]*models.Loan, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}
	defer rows.Close()

	var loans []*models.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate loans: %w", err)
	}
	return loans, nil
}

// HasOpenLoan reports whether the client has a loan that is pending,
// approved or active
func (r *LoanRepository) HasOpenLoan(ctx context.Context, clientID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM loans
			WHERE client_id = $1 AND status IN ('pending', 'approved', 'active')
		)
	`

	var exists bool
	if err := r.q.QueryRow(ctx, query, clientID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check open loans for client %d: %w", clientID, err)
	}
	return exists, nil
}

// UpdateStatus transitions a loan from one status to another. The expected
// status in the WHERE clause makes concurrent transitions lose cleanly.
func (r *LoanRepository) UpdateStatus(ctx context.Context, loanID int64, expected, next models.LoanStatus) error {
	query := `
		UPDATE loans
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	result, err := r.q.Exec(ctx, query, next, loanID, expected)
	if err != nil {
		return fmt.Errorf("failed to update status for loan %d: %w", loanID, err)
	}
	if result.RowsAffected() == 0 {
		return errs.NewConflict("loan %d is not %s", loanID, expected)
	}
	return nil
}

// AdvanceApprovalLevel moves a pending loan's approval pointer from level
// to level+1
func (r *LoanRepository) AdvanceApprovalLevel(ctx context.Context, loanID int64, level int) error {
	query := `
		UPDATE loans
		SET current_approval_level = current_approval_level + 1, updated_at = NOW()
		WHERE id = $1 AND status = 'pending' AND current_approval_level = $2
	`

	result, err := r.q.Exec(ctx, query, loanID, level)
	if err != nil {
		return fmt.Errorf("failed to advance approval level for loan %d: %w", loanID, err)
	}
	if result.RowsAffected() == 0 {
		return errs.NewConflict("loan %d is not pending at approval level %d", loanID, level)
	}
	return nil
}

// Approve marks a pending loan at the given level approved
func (r *LoanRepository) Approve(ctx context.Context, loanID int64, level int, approvedBy int64) error {
	query := `
		UPDATE loans
		SET status = 'approved', approved_by = $1, approved_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND status = 'pending' AND current_approval_level = $3
	`

	result, err := r.q.Exec(ctx, query, approvedBy, loanID, level)
	if err != nil {
		return fmt.Errorf("failed to approve loan %d: %w", loanID, err)
	}
	if result.RowsAffected() == 0 {
		return errs.NewConflict("loan %d is not pending at approval level %d", loanID, level)
	}
	return nil
}

// Reject marks a pending loan at the given level rejected with a reason
func (r *LoanRepository) Reject(ctx context.Context, loanID int64, level int, reason string) error {
	query := `
		UPDATE loans
		SET status = 'rejected', rejected_at = NOW(), rejection_reason = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'pending' AND current_approval_level = $3
	`

	result, err := r.q.Exec(ctx, query, reason, loanID, level)
	if err != nil {
		return fmt.Errorf("failed to reject loan %d: %w", loanID, err)
	}
	if result.RowsAffected() == 0 {
		return errs.NewConflict("loan %d is not pending at approval level %d", loanID, level)
	}
	return nil
}

// RecordApproval appends one approver's decision
func (r *LoanRepository) RecordApproval(ctx context.Context, approval *models.LoanApproval) error {
	query := `
		INSERT INTO loan_approvals (loan_id, user_id, level, decision, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		approval.LoanID,
		approval.UserID,
		approval.Level,
		approval.Decision,
		approval.Notes,
	).Scan(&approval.ID, &approval.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to record approval for loan %d: %w", approval.LoanID, err)
	}
	return nil
}

// GetApprovals returns a loan's approval history in level order
func (r *LoanRepository) GetApprovals(ctx context.Context, loanID int64) ([]*models.LoanApproval, error) {
	query := `
		SELECT id, loan_id, user_id, level, decision, notes, created_at
		FROM loan_approvals
		WHERE loan_id = $1
		ORDER BY level, created_at
	`

	rows, err := r.q.Query(ctx, query, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get approvals for loan %d: %w", loanID, err)
	}
	defer rows.Close()

	var approvals []*models.LoanApproval
	for rows.Next() {
		var a models.LoanApproval
		err := rows.Scan(&a.ID, &a.LoanID, &a.UserID, &a.Level, &a.Decision, &a.Notes, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		approvals = append(approvals, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate approvals: %w", err)
	}
	return approvals, nil
}
