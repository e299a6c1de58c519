package finance

import (
	"time"

	"inphora/models"

	"github.com/shopspring/decimal"
)

var thirty = decimal.NewFromInt(30)

// PenaltyInput is everything the penalty accrual needs about a loan
type PenaltyInput struct {
	Status          models.LoanStatus
	Principal       decimal.Decimal
	TotalRepaid     decimal.Decimal
	EndDate         time.Time
	PenaltyRate     decimal.Decimal // monthly rate, percent
	GracePeriodDays int
	AsOf            time.Time
}

// AccruedPenalty computes the penalty owed on an overdue loan as of a date.
//
// The penalty rate is a monthly rate on the remaining principal, pro-rated
// linearly by day count: remaining * rate/100 * days/30. It is deliberately
// not compound. No penalty accrues while the loan is inactive, fully repaid
// on principal, or still inside the grace window past its end date.
func AccruedPenalty(in PenaltyInput) decimal.Decimal {
	if in.Status != models.LoanStatusActive {
		return decimal.Zero
	}

	penaltyStart := in.EndDate.AddDate(0, 0, in.GracePeriodDays)
	if !in.AsOf.After(penaltyStart) {
		return decimal.Zero
	}

	remaining := in.Principal.Sub(in.TotalRepaid)
	if !remaining.IsPositive() {
		return decimal.Zero
	}

	daysOverdue := int(in.AsOf.Sub(penaltyStart).Hours() / 24)
	penalty := remaining.
		Mul(in.PenaltyRate).Div(hundred).
		Mul(decimal.NewFromInt(int64(daysOverdue))).Div(thirty)
	return penalty.Round(2)
}
