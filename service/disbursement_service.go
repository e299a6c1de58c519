package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"inphora/errs"
	"inphora/events"
	"inphora/gateway"
	"inphora/models"
)

type disbursementService struct {
	uowFactory  UnitOfWorkFactory
	mpesaClient gateway.MpesaClient
}

// NewDisbursementService creates a new disbursement service
func NewDisbursementService(uowFactory UnitOfWorkFactory, mpesaClient gateway.MpesaClient) DisbursementService {
	return &disbursementService{
		uowFactory:  uowFactory,
		mpesaClient: mpesaClient,
	}
}

// Disburse initiates a funds release for an approved loan. Mobile money
// settles asynchronously: the attempt is committed before the gateway call
// so the one-open-attempt guard holds, then moves to processing once the
// provider accepts. Bank and manual rails settle in one step.
func (s *disbursementService) Disburse(ctx context.Context, req DisburseRequest) (*models.DisbursementTransaction, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	loan, err := uow.LoanRepository().GetByID(ctx, req.LoanID)
	if err != nil {
		return nil, err
	}
	if !loan.CanBeDisbursed() {
		return nil, errs.NewConflict("loan %d is %s, only approved loans can be disbursed", loan.ID, loan.Status)
	}

	client, err := uow.ClientRepository().GetByID(ctx, loan.ClientID)
	if err != nil {
		return nil, err
	}

	switch req.Method {
	case models.DisbursementMethodMpesa:
		return s.disburseMpesa(ctx, uow, loan, client, req)
	case models.DisbursementMethodBank, models.DisbursementMethodManual:
		return s.disburseDirect(ctx, uow, loan, client, req)
	default:
		return nil, errs.NewValidation("unknown disbursement method %q", req.Method)
	}
}

// disburseMpesa creates the pending attempt, commits it, then asks the
// gateway to pay. Gateway failures mark the attempt failed in a fresh
// transaction and leave the loan approved for a retry.
func (s *disbursementService) disburseMpesa(ctx context.Context, uow UnitOfWork, loan *models.Loan, client *models.Client, req DisburseRequest) (*models.DisbursementTransaction, error) {
	phone := client.DisbursementPhone()
	if phone == "" {
		return nil, errs.NewValidation("client %d has no payout phone number", client.ID)
	}

	correlationID := uuid.NewString()
	transaction := &models.DisbursementTransaction{
		LoanID:        loan.ID,
		ClientID:      client.ID,
		Amount:        loan.Amount,
		Method:        models.DisbursementMethodMpesa,
		Status:        models.DisbursementStatusPending,
		MpesaPhone:    &phone,
		CorrelationID: &correlationID,
		InitiatedBy:   req.InitiatedBy,
	}
	if err := uow.DisbursementRepository().Create(ctx, transaction); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	_, err := s.mpesaClient.SendB2C(ctx, gateway.B2CRequest{
		CorrelationID: correlationID,
		Phone:         phone,
		Amount:        loan.Amount.StringFixed(0),
		Remarks:       fmt.Sprintf("Loan %d disbursement", loan.ID),
	})
	if err != nil {
		if failErr := s.failAttempt(ctx, transaction, err.Error()); failErr != nil {
			log.WithError(failErr).WithField("disbursement_id", transaction.ID).
				Error("Failed to record disbursement failure")
		}
		return nil, err
	}

	if err := s.markProcessing(ctx, transaction); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"loan_id":         loan.ID,
		"disbursement_id": transaction.ID,
		"correlation_id":  correlationID,
	}).Info("Mobile money disbursement initiated")

	return transaction, nil
}

// disburseDirect settles a bank or manual disbursement immediately and
// activates the loan in the same transaction
func (s *disbursementService) disburseDirect(ctx context.Context, uow UnitOfWork, loan *models.Loan, client *models.Client, req DisburseRequest) (*models.DisbursementTransaction, error) {
	transaction := &models.DisbursementTransaction{
		LoanID:      loan.ID,
		ClientID:    client.ID,
		Amount:      loan.Amount,
		Method:      req.Method,
		Status:      models.DisbursementStatusPending,
		BankName:    client.BankName,
		BankAccount: client.BankAccountNumber,
		InitiatedBy: req.InitiatedBy,
	}
	if req.BankReference != "" {
		transaction.BankReference = &req.BankReference
	}
	if err := uow.DisbursementRepository().Create(ctx, transaction); err != nil {
		return nil, err
	}

	if err := uow.DisbursementRepository().UpdateStatus(ctx, transaction.ID,
		models.DisbursementStatusPending, models.DisbursementStatusProcessing); err != nil {
		return nil, err
	}
	if err := uow.DisbursementRepository().MarkCompleted(ctx, transaction.ID, req.BankReference, "0", "settled directly"); err != nil {
		return nil, err
	}
	if err := uow.LoanRepository().UpdateStatus(ctx, loan.ID, models.LoanStatusApproved, models.LoanStatusActive); err != nil {
		return nil, err
	}
	transaction.Status = models.DisbursementStatusCompleted

	uow.EventBus().Publish(events.DisbursementCompletedEvent{
		TransactionID: transaction.ID,
		LoanID:        loan.ID,
		Amount:        transaction.Amount,
		Method:        req.Method,
	})
	uow.EventBus().Publish(events.LoanStatusChangedEvent{
		LoanID:    loan.ID,
		ClientID:  loan.ClientID,
		OldStatus: models.LoanStatusApproved,
		NewStatus: models.LoanStatusActive,
		ActorID:   req.InitiatedBy,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"loan_id":         loan.ID,
		"disbursement_id": transaction.ID,
		"method":          req.Method,
	}).Info("Direct disbursement settled")

	return transaction, nil
}

func (s *disbursementService) markProcessing(ctx context.Context, transaction *models.DisbursementTransaction) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.DisbursementRepository().UpdateStatus(ctx, transaction.ID,
		models.DisbursementStatusPending, models.DisbursementStatusProcessing); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	transaction.Status = models.DisbursementStatusProcessing
	return nil
}

func (s *disbursementService) failAttempt(ctx context.Context, transaction *models.DisbursementTransaction, reason string) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.DisbursementRepository().MarkFailed(ctx, transaction.ID, "", reason); err != nil {
		return err
	}
	transaction.Status = models.DisbursementStatusFailed

	uow.EventBus().Publish(events.DisbursementFailedEvent{
		TransactionID: transaction.ID,
		LoanID:        transaction.LoanID,
		Reason:        reason,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// HandleB2CResult applies an asynchronous payout result. The callback is
// matched solely by the correlation id generated at initiation; anything
// unmatched is logged and dropped so a misdirected callback can never touch
// another loan.
func (s *disbursementService) HandleB2CResult(ctx context.Context, result B2CResult) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	transaction, err := uow.DisbursementRepository().GetByCorrelationID(ctx, result.CorrelationID)
	if err != nil {
		return err
	}
	if transaction == nil {
		log.WithField("correlation_id", result.CorrelationID).
			Warn("B2C result for unknown correlation id, ignoring")
		return nil
	}
	if transaction.Status != models.DisbursementStatusProcessing {
		log.WithFields(log.Fields{
			"disbursement_id": transaction.ID,
			"status":          transaction.Status,
		}).Warn("B2C result for settled disbursement, ignoring replay")
		return nil
	}

	if result.ResultCode == "0" {
		if err := uow.DisbursementRepository().MarkCompleted(ctx, transaction.ID,
			result.ExternalTransactionID, result.ResultCode, result.ResultDescription); err != nil {
			return err
		}
		if err := uow.LoanRepository().UpdateStatus(ctx, transaction.LoanID,
			models.LoanStatusApproved, models.LoanStatusActive); err != nil {
			return err
		}

		uow.EventBus().Publish(events.DisbursementCompletedEvent{
			TransactionID: transaction.ID,
			LoanID:        transaction.LoanID,
			Amount:        transaction.Amount,
			Method:        transaction.Method,
		})
		uow.EventBus().Publish(events.LoanStatusChangedEvent{
			LoanID:    transaction.LoanID,
			ClientID:  transaction.ClientID,
			OldStatus: models.LoanStatusApproved,
			NewStatus: models.LoanStatusActive,
		})
	} else {
		if err := uow.DisbursementRepository().MarkFailed(ctx, transaction.ID,
			result.ResultCode, result.ResultDescription); err != nil {
			return err
		}
		// The loan stays approved so the disbursement can be retried

		uow.EventBus().Publish(events.DisbursementFailedEvent{
			TransactionID: transaction.ID,
			LoanID:        transaction.LoanID,
			Reason:        result.ResultDescription,
		})
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"disbursement_id": transaction.ID,
		"loan_id":         transaction.LoanID,
		"result_code":     result.ResultCode,
	}).Info("B2C result applied")

	return nil
}
