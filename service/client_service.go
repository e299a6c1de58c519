package service

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"inphora/errs"
	"inphora/models"
)

type clientService struct {
	uowFactory UnitOfWorkFactory
}

// NewClientService creates a new client service
func NewClientService(uowFactory UnitOfWorkFactory) ClientService {
	return &clientService{uowFactory: uowFactory}
}

func (s *clientService) GetClient(ctx context.Context, clientID int64) (*models.Client, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	client, err := uow.ClientRepository().GetByID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return client, nil
}

func (s *clientService) ListClients(ctx context.Context, limit, offset int) ([]*models.Client, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	clients, err := uow.ClientRepository().List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return clients, nil
}

// UpdateClient replaces a client's contact and payout details. Identity
// fields (id number) and status are not editable through this path.
func (s *clientService) UpdateClient(ctx context.Context, req UpdateClientRequest) (*models.Client, error) {
	if strings.TrimSpace(req.Phone) == "" {
		return nil, errs.NewValidation("phone number is required")
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	client, err := uow.ClientRepository().GetByID(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}

	client.Phone = strings.TrimSpace(req.Phone)
	if req.Email != "" {
		client.Email = &req.Email
	}
	if req.Address != "" {
		client.Address = &req.Address
	}
	if req.MpesaPhone != "" {
		client.MpesaPhone = &req.MpesaPhone
	}
	if req.BankName != "" {
		client.BankName = &req.BankName
	}
	if req.BankAccountNumber != "" {
		client.BankAccountNumber = &req.BankAccountNumber
	}
	if req.PreferredDisbursement != "" {
		client.PreferredDisbursement = req.PreferredDisbursement
	}

	if err := uow.ClientRepository().Update(ctx, client); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithField("client_id", client.ID).Info("Client updated")
	return client, nil
}

func (s *clientService) ClientLoans(ctx context.Context, clientID int64) ([]*models.Loan, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	// Missing client reads as not found rather than an empty list
	if _, err := uow.ClientRepository().GetByID(ctx, clientID); err != nil {
		return nil, err
	}
	loans, err := uow.LoanRepository().GetByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return loans, nil
}
