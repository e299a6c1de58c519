package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"inphora/database"
	"inphora/errs"
	"inphora/models"
)

// ClientRepository implements the ClientRepository interface
type ClientRepository struct {
	q queryable
}

// NewClientRepository creates a new client repository
func NewClientRepository(db *database.DB) *ClientRepository {
	return &ClientRepository{q: db.Pool}
}

// newClientRepositoryWithTx creates a new client repository with a transaction
func newClientRepositoryWithTx(tx queryable) *ClientRepository {
	return &ClientRepository{q: tx}
}

const clientColumns = `
	id, first_name, last_name, email, phone, id_number, address,
	mpesa_phone, bank_name, bank_account_number, preferred_disbursement,
	status, created_at`

func scanClient(row pgx.Row) (*models.Client, error) {
	var client models.Client
	err := row.Scan(
		&client.ID,
		&client.FirstName,
		&client.LastName,
		&client.Email,
		&client.Phone,
		&client.IDNumber,
		&client.Address,
		&client.MpesaPhone,
		&client.BankName,
		&client.BankAccountNumber,
		&client.PreferredDisbursement,
		&client.Status,
		&client.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// Create inserts a new client
func (r *ClientRepository) Create(ctx context.Context, client *models.Client) error {
	query := `
		INSERT INTO clients (
			first_name, last_name, email, phone, id_number, address,
			mpesa_phone, bank_name, bank_account_number, preferred_disbursement, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		client.FirstName,
		client.LastName,
		client.Email,
		client.Phone,
		client.IDNumber,
		client.Address,
		client.MpesaPhone,
		client.BankName,
		client.BankAccountNumber,
		client.PreferredDisbursement,
		client.Status,
	).Scan(&client.ID, &client.CreatedAt)

	if isUniqueViolation(err, "") {
		return errs.NewConflict("client with this phone or ID number already exists")
	}
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

// GetByID retrieves a client by id
func (r *ClientRepository) GetByID(ctx context.Context, id int64) (*models.Client, error) {
	query := `SELECT` + clientColumns + ` FROM clients WHERE id = $1`

	client, err := scanClient(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errs.NewNotFound("client", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client %d: %w", id, err)
	}
	return client, nil
}

// GetByPhone retrieves a client by exact phone match
func (r *ClientRepository) GetByPhone(ctx context.Context, phone string) (*models.Client, error) {
	query := `SELECT` + clientColumns + ` FROM clients WHERE phone = $1`

	client, err := scanClient(r.q.QueryRow(ctx, query, phone))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client by phone: %w", err)
	}
	return client, nil
}

// GetByPhoneSuffix retrieves clients whose phone ends with the given digits
func (r *ClientRepository) GetByPhoneSuffix(ctx context.Context, suffix string) ([]*models.Client, error) {
	query := `SELECT` + clientColumns + ` FROM clients WHERE phone LIKE '%' || $1 ORDER BY id`

	rows, err := r.q.Query(ctx, query, suffix)
	if err != nil {
		return nil, fmt.Errorf("failed to get clients by phone suffix: %w", err)
	}
	defer rows.Close()

	var clients []*models.Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, client)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate clients: %w", err)
	}
	return clients, nil
}

// Update replaces the client's mutable fields
func (r *ClientRepository) Update(ctx context.Context, client *models.Client) error {
	query := `
		UPDATE clients
		SET first_name = $1, last_name = $2, email = $3, address = $4,
		    mpesa_phone = $5, bank_name = $6, bank_account_number = $7,
		    preferred_disbursement = $8, status = $9
		WHERE id = $10
	`

	result, err := r.q.Exec(ctx, query,
		client.FirstName,
		client.LastName,
		client.Email,
		client.Address,
		client.MpesaPhone,
		client.BankName,
		client.BankAccountNumber,
		client.PreferredDisbursement,
		client.Status,
		client.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update client %d: %w", client.ID, err)
	}
	if result.RowsAffected() == 0 {
		return errs.NewNotFound("client", client.ID)
	}
	return nil
}

// List returns clients ordered by creation, newest first
func (r *ClientRepository) List(ctx context.Context, limit, offset int) ([]*models.Client, error) {
	query := `SELECT` + clientColumns + ` FROM clients ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.q.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []*models.Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, client)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate clients: %w", err)
	}
	return clients, nil
}
