package service

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/shopspring/decimal"

	"inphora/errs"
	"inphora/events"
	"inphora/finance"
	"inphora/models"
)

// finalApprovalLevel is the level at which an approval activates the loan
// instead of advancing it
const finalApprovalLevel = 2

type loanService struct {
	uowFactory UnitOfWorkFactory
	now        func() time.Time
}

// NewLoanService creates a new loan service
func NewLoanService(uowFactory UnitOfWorkFactory) LoanService {
	return &loanService{
		uowFactory: uowFactory,
		now:        time.Now,
	}
}

// CreateLoan validates a request against its product and creates a pending
// loan with the product's terms snapshotted onto the loan row
func (s *loanService) CreateLoan(ctx context.Context, req CreateLoanRequest) (*models.Loan, error) {
	if !req.Amount.IsPositive() {
		return nil, errs.NewValidation("loan amount must be positive")
	}
	if req.DurationCount <= 0 {
		return nil, errs.NewValidation("loan duration must be positive")
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
	if client.Status != "active" {
		return nil, errs.NewValidation("client %d is not active", client.ID)
	}

	product, err := uow.LoanProductRepository().GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.AmountInRange(req.Amount) {
		return nil, errs.NewValidation("amount %s outside product range %s to %s",
			req.Amount, product.MinAmount, product.MaxAmount)
	}
	if !product.DurationInRange(req.DurationCount) {
		return nil, errs.NewValidation("duration %d outside product range %d to %d",
			req.DurationCount, product.MinDurationCount, product.MaxDurationCount)
	}

	open, err := uow.LoanRepository().HasOpenLoan(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, errs.NewConflict("client %d already has an open loan", req.ClientID)
	}

	frequency := req.RepaymentFrequency
	if frequency == "" {
		frequency = models.FrequencyMonthly
	}
	startDate := req.StartDate
	if startDate.IsZero() {
		startDate = s.now().Truncate(24 * time.Hour)
	}
	totalDays := req.DurationCount * product.DurationUnit.Days()

	processingFee := product.ProcessingFeeFor(req.Amount)
	if req.WaiveProcessingFee {
		processingFee = decimal.Zero
	}

	loan := &models.Loan{
		ClientID:              req.ClientID,
		ProductID:             req.ProductID,
		Amount:                req.Amount,
		InterestRate:          product.InterestRate,
		DurationCount:         req.DurationCount,
		DurationUnit:          product.DurationUnit,
		RepaymentFrequency:    frequency,
		StartDate:             startDate,
		EndDate:               startDate.AddDate(0, 0, totalDays),
		Status:                models.LoanStatusPending,
		CurrentApprovalLevel:  1,
		ProcessingFee:         processingFee,
		InsuranceFee:          product.InsuranceFee,
		ValuationFee:          product.ValuationFee,
		RegistrationFee:       product.RegistrationFee,
		IsProcessingFeeWaived: req.WaiveProcessingFee,
		PenaltyRate:           product.PenaltyRate,
		GracePeriodDays:       product.GracePeriodDays,
	}

	if err := uow.LoanRepository().Create(ctx, loan); err != nil {
		return nil, err
	}

	for i := range req.Guarantors {
		req.Guarantors[i].LoanID = loan.ID
		if err := uow.LoanPartyRepository().AddGuarantor(ctx, &req.Guarantors[i]); err != nil {
			return nil, err
		}
	}
	for i := range req.Collateral {
		req.Collateral[i].LoanID = loan.ID
		if err := uow.LoanPartyRepository().AddCollateral(ctx, &req.Collateral[i]); err != nil {
			return nil, err
		}
	}
	for i := range req.Referees {
		req.Referees[i].LoanID = loan.ID
		if err := uow.LoanPartyRepository().AddReferee(ctx, &req.Referees[i]); err != nil {
			return nil, err
		}
	}
	if req.Analysis != nil {
		req.Analysis.LoanID = loan.ID
		if err := uow.LoanPartyRepository().SetFinancialAnalysis(ctx, req.Analysis); err != nil {
			return nil, err
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"loan_id":   loan.ID,
		"client_id": loan.ClientID,
		"amount":    loan.Amount,
	}).Info("Loan application created")

	return loan, nil
}

// GetLoan returns a loan with its computed schedule and balance
func (s *loanService) GetLoan(ctx context.Context, loanID int64) (*LoanDetail, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	loan, err := uow.LoanRepository().GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	client, err := uow.ClientRepository().GetByID(ctx, loan.ClientID)
	if err != nil {
		return nil, err
	}
	totalRepaid, err := uow.RepaymentRepository().TotalRepaid(ctx, loanID)
	if err != nil {
		return nil, err
	}
	repayments, err := uow.RepaymentRepository().GetByLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	approvals, err := uow.LoanRepository().GetApprovals(ctx, loanID)
	if err != nil {
		return nil, err
	}
	disbursements, err := uow.DisbursementRepository().GetByLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	penalty := finance.AccruedPenalty(finance.PenaltyInput{
		Status:          loan.Status,
		Principal:       loan.Amount,
		TotalRepaid:     totalRepaid,
		EndDate:         loan.EndDate,
		PenaltyRate:     loan.PenaltyRate,
		GracePeriodDays: loan.GracePeriodDays,
		AsOf:            s.now(),
	})

	return &LoanDetail{
		Loan:   loan,
		Client: client,
		Schedule: finance.ComputeSchedule(finance.ScheduleInput{
			Principal:     loan.Amount,
			InterestRate:  loan.InterestRate,
			DurationCount: loan.DurationCount,
			DurationUnit:  loan.DurationUnit,
			Frequency:     loan.RepaymentFrequency,
			StartDate:     loan.StartDate,
		}),
		TotalInterest: loan.FlatInterest(),
		TotalRepaid:   totalRepaid,
		Outstanding:   finance.OutstandingBalance(loan.Amount, loan.InterestRate, loan.TotalFees(), penalty, totalRepaid),
		Penalty:       penalty,
		Repayments:    repayments,
		Approvals:     approvals,
		Disbursements: disbursements,
	}, nil
}

// ApproveLoan records an approval at the loan's current level. Below the
// final level it advances the pointer; at the final level it approves the
// loan. Concurrent decisions at the same level lose on the conditional
// update and surface as conflicts.
func (s *loanService) ApproveLoan(ctx context.Context, loanID, approverID int64, notes string) (*models.Loan, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	loan, err := uow.LoanRepository().GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.IsTerminal() {
		return nil, errs.NewConflict("loan %d is already settled as %s", loanID, loan.Status)
	}
	if !loan.IsPending() {
		return nil, errs.NewConflict("loan %d is %s, not pending", loanID, loan.Status)
	}

	level := loan.CurrentApprovalLevel

	approval := &models.LoanApproval{
		LoanID:   loanID,
		UserID:   approverID,
		Level:    level,
		Decision: models.ApprovalDecisionApprove,
	}
	if notes != "" {
		approval.Notes = &notes
	}
	if err := uow.LoanRepository().RecordApproval(ctx, approval); err != nil {
		return nil, err
	}

	if level >= finalApprovalLevel {
		if err := uow.LoanRepository().Approve(ctx, loanID, level, approverID); err != nil {
			return nil, err
		}
		loan.Status = models.LoanStatusApproved
		loan.ApprovedBy = &approverID

		uow.EventBus().Publish(events.LoanStatusChangedEvent{
			LoanID:    loanID,
			ClientID:  loan.ClientID,
			OldStatus: models.LoanStatusPending,
			NewStatus: models.LoanStatusApproved,
			Level:     level,
			ActorID:   approverID,
		})
	} else {
		if err := uow.LoanRepository().AdvanceApprovalLevel(ctx, loanID, level); err != nil {
			return nil, err
		}
		loan.CurrentApprovalLevel = level + 1
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"loan_id":  loanID,
		"level":    level,
		"approver": approverID,
		"status":   loan.Status,
	}).Info("Loan approval recorded")

	return loan, nil
}

// RejectLoan rejects a pending loan with a reason. Rejection is terminal
// at any level.
func (s *loanService) RejectLoan(ctx context.Context, loanID, approverID int64, reason string) (*models.Loan, error) {
	if reason == "" {
		return nil, errs.NewValidation("rejection reason is required")
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	loan, err := uow.LoanRepository().GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.IsTerminal() {
		return nil, errs.NewConflict("loan %d is already settled as %s", loanID, loan.Status)
	}
	if !loan.IsPending() {
		return nil, errs.NewConflict("loan %d is %s, not pending", loanID, loan.Status)
	}

	level := loan.CurrentApprovalLevel

	approval := &models.LoanApproval{
		LoanID:   loanID,
		UserID:   approverID,
		Level:    level,
		Decision: models.ApprovalDecisionReject,
		Notes:    &reason,
	}
	if err := uow.LoanRepository().RecordApproval(ctx, approval); err != nil {
		return nil, err
	}
	if err := uow.LoanRepository().Reject(ctx, loanID, level, reason); err != nil {
		return nil, err
	}
	loan.Status = models.LoanStatusRejected
	loan.RejectionReason = &reason

	uow.EventBus().Publish(events.LoanStatusChangedEvent{
		LoanID:    loanID,
		ClientID:  loan.ClientID,
		OldStatus: models.LoanStatusPending,
		NewStatus: models.LoanStatusRejected,
		Level:     level,
		ActorID:   approverID,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"loan_id": loanID,
		"level":   level,
		"reason":  reason,
	}).Info("Loan rejected")

	return loan, nil
}

// RecordRepayment applies a manual repayment to an active loan and marks
// the loan completed when the full obligation is covered
func (s *loanService) RecordRepayment(ctx context.Context, req RecordRepaymentRequest) (*models.Repayment, error) {
	if !req.Amount.IsPositive() {
		return nil, errs.NewValidation("repayment amount must be positive")
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	repayment, err := applyRepayment(ctx, uow, req, s.now())
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return repayment, nil
}

// ListLoans returns loans filtered by status, or all when empty
func (s *loanService) ListLoans(ctx context.Context, status models.LoanStatus) ([]*models.Loan, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	var loans []*models.Loan
	var err error
	if status == "" {
		loans, err = uow.LoanRepository().List(ctx)
	} else {
		loans, err = uow.LoanRepository().GetByStatus(ctx, status)
	}
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return loans, nil
}

// applyRepayment records a repayment against an active loan inside an open
// unit of work and completes the loan when the obligation is covered. Shared
// by the manual entry path and the payment reconciliation matcher.
func applyRepayment(ctx context.Context, uow UnitOfWork, req RecordRepaymentRequest, now time.Time) (*models.Repayment, error) {
	loan, err := uow.LoanRepository().GetByID(ctx, req.LoanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != models.LoanStatusActive {
		return nil, errs.NewConflict("loan %d is %s, repayments require an active loan", loan.ID, loan.Status)
	}

	paymentDate := req.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = now
	}

	repayment := &models.Repayment{
		LoanID:        req.LoanID,
		Amount:        req.Amount,
		PaymentDate:   paymentDate,
		PaymentMethod: req.PaymentMethod,
	}
	if req.ExternalTransactionID != "" {
		repayment.ExternalTransactionID = &req.ExternalTransactionID
	}
	if req.Notes != "" {
		repayment.Notes = &req.Notes
	}
	if err := uow.RepaymentRepository().Create(ctx, repayment); err != nil {
		return nil, err
	}

	totalRepaid, err := uow.RepaymentRepository().TotalRepaid(ctx, req.LoanID)
	if err != nil {
		return nil, err
	}

	penalty := finance.AccruedPenalty(finance.PenaltyInput{
		Status:          loan.Status,
		Principal:       loan.Amount,
		TotalRepaid:     totalRepaid,
		EndDate:         loan.EndDate,
		PenaltyRate:     loan.PenaltyRate,
		GracePeriodDays: loan.GracePeriodDays,
		AsOf:            paymentDate,
	})
	totalDue := finance.TotalDue(loan.Amount, loan.InterestRate, loan.TotalFees(), penalty)

	completed := totalRepaid.GreaterThanOrEqual(totalDue)
	if completed {
		if err := uow.LoanRepository().UpdateStatus(ctx, req.LoanID, models.LoanStatusActive, models.LoanStatusCompleted); err != nil {
			return nil, err
		}
		uow.EventBus().Publish(events.LoanStatusChangedEvent{
			LoanID:    loan.ID,
			ClientID:  loan.ClientID,
			OldStatus: models.LoanStatusActive,
			NewStatus: models.LoanStatusCompleted,
		})
	}

	uow.EventBus().Publish(events.RepaymentReceivedEvent{
		LoanID:      loan.ID,
		RepaymentID: repayment.ID,
		Amount:      req.Amount,
		Method:      req.PaymentMethod,
		Completed:   completed,
	})

	log.WithFields(log.Fields{
		"loan_id":      loan.ID,
		"repayment_id": repayment.ID,
		"amount":       req.Amount,
		"total_repaid": totalRepaid,
		"completed":    completed,
	}).Info("Repayment recorded")

	return repayment, nil
}
