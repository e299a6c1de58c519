package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanStatus represents the lifecycle state of a loan
type LoanStatus string

const (
	LoanStatusPending   LoanStatus = "pending"
	LoanStatusApproved  LoanStatus = "approved"
	LoanStatusActive    LoanStatus = "active"
	LoanStatusCompleted LoanStatus = "completed"
	LoanStatusRejected  LoanStatus = "rejected"
	LoanStatusDefaulted LoanStatus = "defaulted"
)

// DurationUnit is the unit a loan's duration is counted in
type DurationUnit string

const (
	DurationDays   DurationUnit = "days"
	DurationWeeks  DurationUnit = "weeks"
	DurationMonths DurationUnit = "months"
)

// Days returns the number of calendar days one unit spans.
// Months are fixed at 30 days, matching the schedule engine.
func (u DurationUnit) Days() int {
	switch u {
	case DurationDays:
		return 1
	case DurationWeeks:
		return 7
	default:
		return 30
	}
}

// RepaymentFrequency is how often installments fall due
type RepaymentFrequency string

const (
	FrequencyDaily   RepaymentFrequency = "daily"
	FrequencyWeekly  RepaymentFrequency = "weekly"
	FrequencyMonthly RepaymentFrequency = "monthly"
)

// IntervalDays returns the number of days between consecutive installments
func (f RepaymentFrequency) IntervalDays() int {
	switch f {
	case FrequencyDaily:
		return 1
	case FrequencyWeekly:
		return 7
	default:
		return 30
	}
}

// Loan represents a loan with its fee and rate snapshot taken at creation.
// Product edits after creation never change an existing loan's terms.
type Loan struct {
	ID                   int64              `db:"id"`
	ClientID             int64              `db:"client_id"`
	ProductID            int64              `db:"product_id"`
	Amount               decimal.Decimal    `db:"amount"`
	InterestRate         decimal.Decimal    `db:"interest_rate"`
	DurationCount        int                `db:"duration_count"`
	DurationUnit         DurationUnit       `db:"duration_unit"`
	RepaymentFrequency   RepaymentFrequency `db:"repayment_frequency"`
	StartDate            time.Time          `db:"start_date"`
	EndDate              time.Time          `db:"end_date"`
	Status               LoanStatus         `db:"status"`
	CurrentApprovalLevel int                `db:"current_approval_level"`

	// Fee snapshot
	ProcessingFee         decimal.Decimal `db:"processing_fee"`
	InsuranceFee          decimal.Decimal `db:"insurance_fee"`
	ValuationFee          decimal.Decimal `db:"valuation_fee"`
	RegistrationFee       decimal.Decimal `db:"registration_fee"`
	IsProcessingFeeWaived bool            `db:"is_processing_fee_waived"`

	// Penalty snapshot
	PenaltyRate     decimal.Decimal `db:"penalty_rate"`
	GracePeriodDays int             `db:"grace_period_days"`

	ApprovedBy      *int64     `db:"approved_by"`
	ApprovedAt      *time.Time `db:"approved_at"`
	RejectedAt      *time.Time `db:"rejected_at"`
	RejectionReason *string    `db:"rejection_reason"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// IsPending reports whether the loan is still in the approval pipeline
func (l *Loan) IsPending() bool {
	return l.Status == LoanStatusPending
}

// IsTerminal reports whether no further status transitions are legal
func (l *Loan) IsTerminal() bool {
	return l.Status == LoanStatusCompleted || l.Status == LoanStatusRejected
}

// CanBeDisbursed reports whether a disbursement may be initiated
func (l *Loan) CanBeDisbursed() bool {
	return l.Status == LoanStatusApproved
}

// TotalFees sums the snapshotted fee amounts
func (l *Loan) TotalFees() decimal.Decimal {
	return l.ProcessingFee.Add(l.InsuranceFee).Add(l.ValuationFee).Add(l.RegistrationFee)
}

// FlatInterest is the flat-rate interest charged once on the full principal
func (l *Loan) FlatInterest() decimal.Decimal {
	return l.Amount.Mul(l.InterestRate).Div(decimal.NewFromInt(100))
}

// ApprovalDecision is the action recorded at one approval level
type ApprovalDecision string

const (
	ApprovalDecisionApprove ApprovalDecision = "approve"
	ApprovalDecisionReject  ApprovalDecision = "reject"
)

// LoanApproval records one approver's decision at one level. Append-only;
// a loan's current_approval_level advances only through these records.
type LoanApproval struct {
	ID        int64            `db:"id"`
	LoanID    int64            `db:"loan_id"`
	UserID    int64            `db:"user_id"`
	Level     int              `db:"level"`
	Decision  ApprovalDecision `db:"decision"`
	Notes     *string          `db:"notes"`
	CreatedAt time.Time        `db:"created_at"`
}
