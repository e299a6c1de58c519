package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"inphora/database"
	"inphora/models"
)

// LoanPartyRepository implements the LoanPartyRepository interface
type LoanPartyRepository struct {
	q queryable
}

// NewLoanPartyRepository creates a new loan party repository
func NewLoanPartyRepository(db *database.DB) *LoanPartyRepository {
	return &LoanPartyRepository{q: db.Pool}
}

func newLoanPartyRepositoryWithTx(tx queryable) *LoanPartyRepository {
	return &LoanPartyRepository{q: tx}
}

// AddGuarantor attaches a guarantor to a loan
func (r *LoanPartyRepository) AddGuarantor(ctx context.Context, guarantor *models.Guarantor) error {
	query := `
		INSERT INTO loan_guarantors (loan_id, name, phone, id_number, relation)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.q.QueryRow(ctx, query,
		guarantor.LoanID,
		guarantor.Name,
		guarantor.Phone,
		guarantor.IDNumber,
		guarantor.Relation,
	).Scan(&guarantor.ID)

	if err != nil {
		return fmt.Errorf("failed to add guarantor for loan %d: %w", guarantor.LoanID, err)
	}
	return nil
}

// AddCollateral attaches a collateral item to a loan
func (r *LoanPartyRepository) AddCollateral(ctx context.Context, collateral *models.Collateral) error {
	query := `
		INSERT INTO loan_collateral (loan_id, name, serial_number, estimated_value, condition)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.q.QueryRow(ctx, query,
		collateral.LoanID,
		collateral.Name,
		collateral.SerialNumber,
		collateral.EstimatedValue,
		collateral.Condition,
	).Scan(&collateral.ID)

	if err != nil {
		return fmt.Errorf("failed to add collateral for loan %d: %w", collateral.LoanID, err)
	}
	return nil
}

// AddReferee attaches a referee to a loan
func (r *LoanPartyRepository) AddReferee(ctx context.Context, referee *models.Referee) error {
	query := `
		INSERT INTO loan_referees (loan_id, name, phone, relation)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := r.q.QueryRow(ctx, query,
		referee.LoanID,
		referee.Name,
		referee.Phone,
		referee.Relation,
	).Scan(&referee.ID)

	if err != nil {
		return fmt.Errorf("failed to add referee for loan %d: %w", referee.LoanID, err)
	}
	return nil
}

// SetFinancialAnalysis upserts the loan's single financial analysis
func (r *LoanPartyRepository) SetFinancialAnalysis(ctx context.Context, analysis *models.FinancialAnalysis) error {
	query := `
		INSERT INTO loan_financial_analyses (
			loan_id, daily_sales, monthly_sales, gross_profit,
			other_income, cost_of_sales, expenditure, net_income
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (loan_id) DO UPDATE SET
			daily_sales = EXCLUDED.daily_sales,
			monthly_sales = EXCLUDED.monthly_sales,
			gross_profit = EXCLUDED.gross_profit,
			other_income = EXCLUDED.other_income,
			cost_of_sales = EXCLUDED.cost_of_sales,
			expenditure = EXCLUDED.expenditure,
			net_income = EXCLUDED.net_income
		RETURNING id
	`

	err := r.q.QueryRow(ctx, query,
		analysis.LoanID,
		analysis.DailySales,
		analysis.MonthlySales,
		analysis.GrossProfit,
		analysis.OtherIncome,
		analysis.CostOfSales,
		analysis.Expenditure,
		analysis.NetIncome,
	).Scan(&analysis.ID)

	if err != nil {
		return fmt.Errorf("failed to set financial analysis for loan %d: %w", analysis.LoanID, err)
	}
	return nil
}

// GetGuarantors returns a loan's guarantors
func (r *LoanPartyRepository) GetGuarantors(ctx context.Context, loanID int64) ([]*models.Guarantor, error) {
	query := `
		SELECT id, loan_id, name, phone, id_number, relation
		FROM loan_guarantors WHERE loan_id = $1 ORDER BY id
	`

	rows, err := r.q.Query(ctx, query, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get guarantors for loan %d: %w", loanID, err)
	}
	defer rows.Close()

	var guarantors []*models.Guarantor
	for rows.Next() {
		var g models.Guarantor
		if err := rows.Scan(&g.ID, &g.LoanID, &g.Name, &g.Phone, &g.IDNumber, &g.Relation); err != nil {
			return nil, fmt.Errorf("failed to scan guarantor: %w", err)
		}
		guarantors = append(guarantors, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate guarantors: %w", err)
	}
	return guarantors, nil
}

// GetCollateral returns a loan's collateral items
func (r *LoanPartyRepository) GetCollateral(ctx context.Context, loanID int64) ([]*models.Collateral, error) {
	query := `
		SELECT id, loan_id, name, serial_number, estimated_value, condition
		FROM loan_collateral WHERE loan_id = $1 ORDER BY id
	`

	rows, err := r.q.Query(ctx, query, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get collateral for loan %d: %w", loanID, err)
	}
	defer rows.Close()

	var items []*models.Collateral
	for rows.Next() {
		var c models.Collateral
		if err := rows.Scan(&c.ID, &c.LoanID, &c.Name, &c.SerialNumber, &c.EstimatedValue, &c.Condition); err != nil {
			return nil, fmt.Errorf("failed to scan collateral: %w", err)
		}
		items = append(items, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate collateral: %w", err)
	}
	return items, nil
}

// GetFinancialAnalysis returns the loan's analysis, or nil
func (r *LoanPartyRepository) GetFinancialAnalysis(ctx context.Context, loanID int64) (*models.FinancialAnalysis, error) {
	query := `
		SELECT id, loan_id, daily_sales, monthly_sales, gross_profit,
		       other_income, cost_of_sales, expenditure, net_income
		FROM loan_financial_analyses WHERE loan_id = $1
	`

	var a models.FinancialAnalysis
	err := r.q.QueryRow(ctx, query, loanID).Scan(
		&a.ID,
		&a.LoanID,
		&a.DailySales,
		&a.MonthlySales,
		&a.GrossProfit,
		&a.OtherIncome,
		&a.CostOfSales,
		&a.Expenditure,
		&a.NetIncome,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get financial analysis for loan %d: %w", loanID, err)
	}
	return &a, nil
}
