package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"inphora/database"
	"inphora/errs"
	"inphora/models"
)

// LoanProductRepository implements the LoanProductRepository interface
type LoanProductRepository struct {
	q queryable
}

// NewLoanProductRepository creates a new loan product repository
func NewLoanProductRepository(db *database.DB) *LoanProductRepository {
	return &LoanProductRepository{q: db.Pool}
}

func newLoanProductRepositoryWithTx(tx queryable) *LoanProductRepository {
	return &LoanProductRepository{q: tx}
}

const productColumns = `
	id, name, description, interest_rate, min_amount, max_amount,
	min_duration_count, max_duration_count, duration_unit,
	penalty_rate, grace_period_days,
	insurance_fee, tracking_fee, valuation_fee,
	processing_fee_percent, processing_fee_fixed, registration_fee,
	created_at, updated_at`

func scanProduct(row pgx.Row) (*models.LoanProduct, error) {
	var p models.LoanProduct
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.InterestRate,
		&p.MinAmount,
		&p.MaxAmount,
		&p.MinDurationCount,
		&p.MaxDurationCount,
		&p.DurationUnit,
		&p.PenaltyRate,
		&p.GracePeriodDays,
		&p.InsuranceFee,
		&p.TrackingFee,
		&p.ValuationFee,
		&p.ProcessingFeePercent,
		&p.ProcessingFeeFixed,
		&p.RegistrationFee,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a new product
func (r *LoanProductRepository) Create(ctx context.Context, product *models.LoanProduct) error {
	query := `
		INSERT INTO loan_products (
			name, description, interest_rate, min_amount, max_amount,
			min_duration_count, max_duration_count, duration_unit,
			penalty_rate, grace_period_days,
			insurance_fee, tracking_fee, valuation_fee,
			processing_fee_percent, processing_fee_fixed, registration_fee
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		product.Name,
		product.Description,
		product.InterestRate,
		product.MinAmount,
		product.MaxAmount,
		product.MinDurationCount,
		product.MaxDurationCount,
		product.DurationUnit,
		product.PenaltyRate,
		product.GracePeriodDays,
		product.InsuranceFee,
		product.TrackingFee,
		product.ValuationFee,
		product.ProcessingFeePercent,
		product.ProcessingFeeFixed,
		product.RegistrationFee,
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create loan product: %w", err)
	}
	return nil
}

// GetByID retrieves a product by id
func (r *LoanProductRepository) GetByID(ctx context.Context, id int64) (*models.LoanProduct, error) {
	query := `SELECT` + productColumns + ` FROM loan_products WHERE id = $1`

	product, err := scanProduct(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errs.NewNotFound("loan product", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get loan product %d: %w", id, err)
	}
	return product, nil
}

// Update replaces the product's terms. Existing loans keep their snapshot.
func (r *LoanProductRepository) Update(ctx context.Context, product *models.LoanProduct) error {
	query := `
		UPDATE loan_products
		SET name = $1, description = $2, interest_rate = $3,
		    min_amount = $4, max_amount = $5,
		    min_duration_count = $6, max_duration_count = $7, duration_unit = $8,
		    penalty_rate = $9, grace_period_days = $10,
		    insurance_fee = $11, tracking_fee = $12, valuation_fee = $13,
		    processing_fee_percent = $14, processing_fee_fixed = $15,
		    registration_fee = $16, updated_at = NOW()
		WHERE id = $17
	`

	result, err := r.q.Exec(ctx, query,
		product.Name,
		product.Description,
		product.InterestRate,
		product.MinAmount,
		product.MaxAmount,
		product.MinDurationCount,
		product.MaxDurationCount,
		product.DurationUnit,
		product.PenaltyRate,
		product.GracePeriodDays,
		product.InsuranceFee,
		product.TrackingFee,
		product.ValuationFee,
		product.ProcessingFeePercent,
		product.ProcessingFeeFixed,
		product.RegistrationFee,
		product.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update loan product %d: %w", product.ID, err)
	}
	if result.RowsAffected() == 0 {
		return errs.NewNotFound("loan product", product.ID)
	}
	return nil
}

// List returns all products
func (r *LoanProductRepository) List(ctx context.Context) ([]*models.LoanProduct, error) {
	query := `SELECT` + productColumns + ` FROM loan_products ORDER BY name`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list loan products: %w", err)
	}
	defer rows.Close()

	var products []*models.LoanProduct
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan product: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate loan products: %w", err)
	}
	return products, nil
}
