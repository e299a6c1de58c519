package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"inphora/database"
	"inphora/errs"
	"inphora/models"
)

// RegistrationRepository implements the RegistrationRepository interface
type RegistrationRepository struct {
	q queryable
}

// NewRegistrationRepository creates a new registration repository
func NewRegistrationRepository(db *database.DB) *RegistrationRepository {
	return &RegistrationRepository{q: db.Pool}
}

func newRegistrationRepositoryWithTx(tx queryable) *RegistrationRepository {
	return &RegistrationRepository{q: tx}
}

const registrationColumns = `
	id, full_name, phone, id_number, email, address,
	status, registration_fee, amount_paid, payment_ref, submitted_at`

func scanRegistration(row pgx.Row) (*models.RegistrationApplication, error) {
	var a models.RegistrationApplication
	err := row.Scan(
		&a.ID,
		&a.FullName,
		&a.Phone,
		&a.IDNumber,
		&a.Email,
		&a.Address,
		&a.Status,
		&a.RegistrationFee,
		&a.AmountPaid,
		&a.PaymentRef,
		&a.SubmittedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts a new application
func (r *RegistrationRepository) Create(ctx context.Context, app *models.RegistrationApplication) error {
	query := `
		INSERT INTO registration_applications (full_name, phone, id_number, email, address, status, registration_fee)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, submitted_at
	`

	err := r.q.QueryRow(ctx, query,
		app.FullName,
		app.Phone,
		app.IDNumber,
		app.Email,
		app.Address,
		app.Status,
		app.RegistrationFee,
	).Scan(&app.ID, &app.SubmittedAt)

	if err != nil {
		return fmt.Errorf("failed to create registration application: %w", err)
	}
	return nil
}

// GetByID retrieves an application by id
func (r *RegistrationRepository) GetByID(ctx context.Context, id int64) (*models.RegistrationApplication, error) {
	query := `SELECT` + registrationColumns + ` FROM registration_applications WHERE id = $1`

	app, err := scanRegistration(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errs.NewNotFound("registration application", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get registration application %d: %w", id, err)
	}
	return app, nil
}

// MarkPaid records the applicant's fee payment
func (r *RegistrationRepository) MarkPaid(ctx context.Context, id int64, amount decimal.Decimal, paymentRef string) error {
	query := `
		UPDATE registration_applications
		SET status = 'paid', amount_paid = amount_paid + $1, payment_ref = $2
		WHERE id = $3 AND status = 'pending'
	`

	result, err := r.q.Exec(ctx, query, amount, paymentRef, id)
	if err != nil {
		return fmt.Errorf("failed to mark registration application %d paid: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return errs.NewConflict("registration application %d is not pending", id)
	}
	return nil
}

// UpdateStatus transitions an application between review states
func (r *RegistrationRepository) UpdateStatus(ctx context.Context, id int64, expected, next models.RegistrationStatus) error {
	query := `
		UPDATE registration_applications
		SET status = $1
		WHERE id = $2 AND status = $3
	`

	result, err := r.q.Exec(ctx, query, next, id, expected)
	if err != nil {
		return fmt.Errorf("failed to update registration application %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return errs.NewConflict("registration application %d is not %s", id, expected)
	}
	return nil
}

// ListByStatus returns applications in the given status
func (r *RegistrationRepository) ListByStatus(ctx context.Context, status models.RegistrationStatus) ([]*models.RegistrationApplication, error) {
	query := `SELECT` + registrationColumns + ` FROM registration_applications WHERE status = $1 ORDER BY submitted_at`

	rows, err := r.q.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list registration applications: %w", err)
	}
	defer rows.Close()

	var apps []*models.RegistrationApplication
	for rows.Next() {
		app, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registration application: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate registration applications: %w", err)
	}
	return apps, nil
}
