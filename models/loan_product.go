package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanProduct is a template of terms that each Loan snapshots at creation.
// Administrative edits here never retroactively change existing loans.
type LoanProduct struct {
	ID               int64           `db:"id"`
	Name             string          `db:"name"`
	Description      *string         `db:"description"`
	InterestRate     decimal.Decimal `db:"interest_rate"`
	MinAmount        decimal.Decimal `db:"min_amount"`
	MaxAmount        decimal.Decimal `db:"max_amount"`
	MinDurationCount int             `db:"min_duration_count"`
	MaxDurationCount int             `db:"max_duration_count"`
	DurationUnit     DurationUnit    `db:"duration_unit"`

	// PenaltyRate is a monthly rate applied pro-rata by day to overdue principal
	PenaltyRate     decimal.Decimal `db:"penalty_rate"`
	GracePeriodDays int             `db:"grace_period_days"`

	InsuranceFee         decimal.Decimal `db:"insurance_fee"`
	TrackingFee          decimal.Decimal `db:"tracking_fee"`
	ValuationFee         decimal.Decimal `db:"valuation_fee"`
	ProcessingFeePercent decimal.Decimal `db:"processing_fee_percent"`
	ProcessingFeeFixed   decimal.Decimal `db:"processing_fee_fixed"`
	RegistrationFee      decimal.Decimal `db:"registration_fee"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// ProcessingFeeFor resolves the processing fee for a principal amount:
// the fixed fee when configured, otherwise the percentage of principal.
func (p *LoanProduct) ProcessingFeeFor(amount decimal.Decimal) decimal.Decimal {
	if p.ProcessingFeeFixed.IsPositive() {
		return p.ProcessingFeeFixed
	}
	return amount.Mul(p.ProcessingFeePercent).Div(decimal.NewFromInt(100))
}

// AmountInRange checks a requested principal against the product limits
func (p *LoanProduct) AmountInRange(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(p.MinAmount) && amount.LessThanOrEqual(p.MaxAmount)
}

// DurationInRange checks a requested duration count against the product limits
func (p *LoanProduct) DurationInRange(count int) bool {
	return count >= p.MinDurationCount && count <= p.MaxDurationCount
}
