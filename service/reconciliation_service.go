package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"inphora/cache"
	"inphora/errs"
	"inphora/events"
	"inphora/models"
)

// phoneSuffixLength is how many trailing digits two phone formats are
// compared on. Kenyan numbers arrive as 07XXXXXXXX, 2547XXXXXXXX or
// +2547XXXXXXXX; the last nine digits are stable across all three.
const phoneSuffixLength = 9

// stkKey builds the cache key mapping a collection prompt back to the
// registration application it pays for
func stkKey(checkoutRequestID string) string {
	return "stk:" + checkoutRequestID
}

type reconciliationService struct {
	uowFactory UnitOfWorkFactory
	store      cache.Store
	now        func() time.Time
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(uowFactory UnitOfWorkFactory, store cache.Store) ReconciliationService {
	return &reconciliationService{
		uowFactory: uowFactory,
		store:      store,
		now:        time.Now,
	}
}

// HandleC2BPayment records an inbound paybill payment and attempts to match
// it. Matching precedence: a REG-prefixed bill reference settles a
// registration fee, a numeric bill reference names a loan id, and as a last
// resort the payer phone is compared against client records. Anything
// ambiguous stays unmatched for manual reconciliation; the money is never
// guessed onto a loan.
func (s *reconciliationService) HandleC2BPayment(ctx context.Context, payment C2BPayment) error {
	if payment.TransactionID == "" {
		return errs.NewValidation("payment transaction id is required")
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	incoming := &models.MpesaIncomingTransaction{
		TransactionID: payment.TransactionID,
		Amount:        payment.Amount,
		Phone:         payment.Phone,
		BillRef:       strings.TrimSpace(payment.BillRef),
		Status:        models.IncomingStatusUnmatched,
		RawCallback:   payment.RawCallback,
	}
	if err := uow.MpesaRepository().Create(ctx, incoming); err != nil {
		// A replayed gateway callback is applied exactly once
		if errs.IsConflict(err) {
			log.WithField("transaction_id", payment.TransactionID).
				Info("Duplicate C2B notification, already recorded")
			return nil
		}
		return err
	}

	if err := s.match(ctx, uow, incoming); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// match attempts to bind a freshly recorded notification to a registration
// or an active loan inside the open unit of work
func (s *reconciliationService) match(ctx context.Context, uow UnitOfWork, incoming *models.MpesaIncomingTransaction) error {
	// Registration fee: REG-prefixed billing reference
	if appID, ok := parseRegistrationRef(incoming.BillRef); ok {
		return s.settleRegistration(ctx, uow, incoming, appID)
	}

	// Loan id quoted directly as the bill reference
	if loanID, err := strconv.ParseInt(incoming.BillRef, 10, 64); err == nil && loanID > 0 {
		loan, err := uow.LoanRepository().GetByID(ctx, loanID)
		if err != nil {
			if errs.IsNotFound(err) {
				log.WithField("bill_ref", incoming.BillRef).
					Info("C2B bill reference names no loan, left unmatched")
				return nil
			}
			return err
		}
		if loan.Status == models.LoanStatusActive {
			return s.settleLoan(ctx, uow, incoming, loan, false)
		}
		log.WithFields(log.Fields{
			"loan_id": loanID,
			"status":  loan.Status,
		}).Info("C2B payment references an inactive loan, left unmatched")
		return nil
	}

	// Fall back to the payer's phone number
	suffix := phoneSuffix(incoming.Phone)
	if suffix == "" {
		return nil
	}
	clients, err := uow.ClientRepository().GetByPhoneSuffix(ctx, suffix)
	if err != nil {
		return err
	}
	if len(clients) != 1 {
		log.WithFields(log.Fields{
			"transaction_id": incoming.TransactionID,
			"candidates":     len(clients),
		}).Info("C2B phone match ambiguous, left unmatched")
		return nil
	}

	loans, err := uow.LoanRepository().GetByClient(ctx, clients[0].ID)
	if err != nil {
		return err
	}
	var active []*models.Loan
	for _, loan := range loans {
		if loan.Status == models.LoanStatusActive {
			active = append(active, loan)
		}
	}
	if len(active) != 1 {
		log.WithFields(log.Fields{
			"transaction_id": incoming.TransactionID,
			"client_id":      clients[0].ID,
			"active_loans":   len(active),
		}).Info("C2B client has no single active loan, left unmatched")
		return nil
	}

	return s.settleLoan(ctx, uow, incoming, active[0], false)
}

func (s *reconciliationService) settleRegistration(ctx context.Context, uow UnitOfWork, incoming *models.MpesaIncomingTransaction, appID int64) error {
	app, err := uow.RegistrationRepository().GetByID(ctx, appID)
	if err != nil {
		if errs.IsNotFound(err) {
			log.WithField("bill_ref", incoming.BillRef).
				Info("C2B registration reference names no application, left unmatched")
			return nil
		}
		return err
	}
	if app.Status != models.RegistrationStatusPending {
		log.WithFields(log.Fields{
			"application_id": appID,
			"status":         app.Status,
		}).Info("C2B payment for non-pending registration, left unmatched")
		return nil
	}

	if err := uow.RegistrationRepository().MarkPaid(ctx, appID, incoming.Amount, incoming.TransactionID); err != nil {
		return err
	}
	if err := uow.MpesaRepository().MarkRegistrationMatched(ctx, incoming.ID); err != nil {
		return err
	}

	uow.EventBus().Publish(events.RegistrationPaidEvent{
		ApplicationID: appID,
		Amount:        incoming.Amount,
	})

	log.WithFields(log.Fields{
		"application_id": appID,
		"amount":         incoming.Amount,
	}).Info("Registration fee settled")
	return nil
}

func (s *reconciliationService) settleLoan(ctx context.Context, uow UnitOfWork, incoming *models.MpesaIncomingTransaction, loan *models.Loan, manual bool) error {
	repayment, err := applyRepayment(ctx, uow, RecordRepaymentRequest{
		LoanID:                loan.ID,
		Amount:                incoming.Amount,
		PaymentDate:           incoming.CreatedAt,
		PaymentMethod:         models.PaymentMethodMpesa,
		ExternalTransactionID: incoming.TransactionID,
	}, s.now())
	if err != nil {
		return err
	}

	if err := uow.MpesaRepository().MarkMatched(ctx, incoming.ID, loan.ClientID, loan.ID, repayment.ID); err != nil {
		return err
	}

	uow.EventBus().Publish(events.PaymentMatchedEvent{
		NotificationID: incoming.ID,
		LoanID:         loan.ID,
		RepaymentID:    repayment.ID,
		Amount:         incoming.Amount,
		Manual:         manual,
	})
	return nil
}

// HandleSTKCallback applies the outcome of a collection prompt. The checkout
// request id is looked up in the short-lived prompt cache written at push
// time; a hit settles the registration it paid for, a miss records the
// payment for manual reconciliation.
func (s *reconciliationService) HandleSTKCallback(ctx context.Context, callback STKCallback) error {
	if callback.ResultCode != 0 {
		log.WithFields(log.Fields{
			"checkout_request_id": callback.CheckoutRequestID,
			"result_code":         callback.ResultCode,
		}).Info("STK prompt declined or failed, nothing to apply")
		return nil
	}
	if callback.TransactionID == "" {
		return errs.NewValidation("stk callback carries no transaction id")
	}

	billRef := ""
	appRef, err := s.store.Get(ctx, stkKey(callback.CheckoutRequestID))
	switch {
	case err == nil:
		billRef = appRef
	case err != cache.ErrNotFound:
		return fmt.Errorf("failed to look up stk prompt: %w", err)
	}

	return s.HandleC2BPayment(ctx, C2BPayment{
		TransactionID: callback.TransactionID,
		Amount:        callback.Amount,
		Phone:         callback.Phone,
		BillRef:       billRef,
		RawCallback:   callback.RawCallback,
	})
}

// ManualReconcile applies an unmatched notification to a loan chosen by an
// operator
func (s *reconciliationService) ManualReconcile(ctx context.Context, incomingID, loanID, operatorID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	incoming, err := uow.MpesaRepository().GetByID(ctx, incomingID)
	if err != nil {
		return err
	}
	if incoming.Status != models.IncomingStatusUnmatched {
		return errs.NewConflict("incoming transaction %d is %s, not unmatched", incomingID, incoming.Status)
	}

	loan, err := uow.LoanRepository().GetByID(ctx, loanID)
	if err != nil {
		return err
	}
	if loan.Status != models.LoanStatusActive {
		return errs.NewConflict("loan %d is %s, repayments require an active loan", loanID, loan.Status)
	}

	if err := s.settleLoan(ctx, uow, incoming, loan, true); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"incoming_id": incomingID,
		"loan_id":     loanID,
		"operator_id": operatorID,
	}).Info("Payment manually reconciled")
	return nil
}

// InvalidatePayment flags an unmatched notification that can never be
// applied, taking it out of the manual reconciliation queue
func (s *reconciliationService) InvalidatePayment(ctx context.Context, incomingID, operatorID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.MpesaRepository().MarkInvalid(ctx, incomingID); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"incoming_id": incomingID,
		"operator_id": operatorID,
	}).Info("Incoming payment invalidated")
	return nil
}

// ListUnmatched returns payments awaiting manual reconciliation
func (s *reconciliationService) ListUnmatched(ctx context.Context) ([]*models.MpesaIncomingTransaction, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	unmatched, err := uow.MpesaRepository().ListUnmatched(ctx)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return unmatched, nil
}

// parseRegistrationRef extracts the application id from a REG-prefixed
// billing reference such as "REG000042"
func parseRegistrationRef(billRef string) (int64, bool) {
	ref := strings.ToUpper(strings.TrimSpace(billRef))
	if !strings.HasPrefix(ref, "REG") {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(ref, "REG"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// phoneSuffix returns the trailing digits of a phone number in any of the
// common formats, or empty when the number is too short to compare safely
func phoneSuffix(phone string) string {
	digits := make([]byte, 0, len(phone))
	for i := 0; i < len(phone); i++ {
		if phone[i] >= '0' && phone[i] <= '9' {
			digits = append(digits, phone[i])
		}
	}
	if len(digits) < phoneSuffixLength {
		return ""
	}
	return string(digits[len(digits)-phoneSuffixLength:])
}
