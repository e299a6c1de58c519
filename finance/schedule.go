// Package finance holds the pure loan computations: installment schedules,
// outstanding balances, penalty accrual and portfolio-at-risk classification.
// Nothing in this package touches storage or the clock; callers pass every
// input explicitly, so the results are deterministic.
package finance

import (
	"time"

	"inphora/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ScheduleInput are the loan terms the schedule is derived from
type ScheduleInput struct {
	Principal     decimal.Decimal
	InterestRate  decimal.Decimal // annual flat rate, percent
	DurationCount int
	DurationUnit  models.DurationUnit
	Frequency     models.RepaymentFrequency
	StartDate     time.Time
}

// Installment is one row of a repayment schedule
type Installment struct {
	Number          int             `json:"installment_number"`
	DueDate         time.Time       `json:"due_date"`
	AmountDue       decimal.Decimal `json:"amount_due"`
	PrincipalAmount decimal.Decimal `json:"principal_amount"`
	InterestAmount  decimal.Decimal `json:"interest_amount"`
	Balance         decimal.Decimal `json:"balance"`
}

// ComputeSchedule produces the full installment schedule for the given terms.
//
// Interest is flat rate: computed once on the whole principal, not on a
// reducing balance, and split equally across installments. Months count as
// 30 days. This mirrors how existing loan contracts were priced, so the
// arithmetic is load-bearing and must not be "improved" to an amortized
// formula without a product decision.
func ComputeSchedule(in ScheduleInput) []Installment {
	totalInterest := in.Principal.Mul(in.InterestRate).Div(hundred)
	totalDue := in.Principal.Add(totalInterest)

	totalDays := in.DurationCount * in.DurationUnit.Days()
	intervalDays := in.Frequency.IntervalDays()

	numInstallments := totalDays / intervalDays
	if numInstallments < 1 {
		numInstallments = 1
	}

	n := decimal.NewFromInt(int64(numInstallments))
	installmentAmount := totalDue.Div(n)
	principalPart := in.Principal.Div(n)
	interestPart := totalInterest.Div(n)

	schedule := make([]Installment, 0, numInstallments)
	balance := totalDue
	for i := 1; i <= numInstallments; i++ {
		balance = balance.Sub(installmentAmount)
		displayBalance := balance
		if displayBalance.IsNegative() {
			displayBalance = decimal.Zero
		}
		schedule = append(schedule, Installment{
			Number:          i,
			DueDate:         in.StartDate.AddDate(0, 0, intervalDays*i),
			AmountDue:       installmentAmount.Round(2),
			PrincipalAmount: principalPart.Round(2),
			InterestAmount:  interestPart.Round(2),
			Balance:         displayBalance.Round(2),
		})
	}
	return schedule
}

// TotalDue returns principal + flat interest + fees + accrued penalty,
// the amount that must be covered before a loan counts as completed
func TotalDue(principal, interestRate, totalFees, accruedPenalty decimal.Decimal) decimal.Decimal {
	interest := principal.Mul(interestRate).Div(hundred)
	return principal.Add(interest).Add(totalFees).Add(accruedPenalty)
}

// OutstandingBalance is TotalDue minus repayments, floored at zero for display
func OutstandingBalance(principal, interestRate, totalFees, accruedPenalty, totalRepaid decimal.Decimal) decimal.Decimal {
	balance := TotalDue(principal, interestRate, totalFees, accruedPenalty).Sub(totalRepaid)
	if balance.IsNegative() {
		return decimal.Zero
	}
	return balance.Round(2)
}
