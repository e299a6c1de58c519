package finance

import (
	"time"

	"inphora/models"

	"github.com/shopspring/decimal"
)

// Bucket is a portfolio-at-risk day-overdue band
type Bucket string

const (
	BucketCurrent   Bucket = "current"
	BucketPAR30     Bucket = "par_30"     // 1-30 days late
	BucketPAR60     Bucket = "par_60"     // 31-60 days late
	BucketPAR90     Bucket = "par_90"     // 61-90 days late
	BucketPAR90Plus Bucket = "par_90plus" // over 90 days late
)

// ArrearsInput describes an active loan's expected-vs-paid position
type ArrearsInput struct {
	Principal     decimal.Decimal
	InterestRate  decimal.Decimal
	DurationCount int
	DurationUnit  models.DurationUnit
	Frequency     models.RepaymentFrequency
	StartDate     time.Time
	TotalRepaid   decimal.Decimal
	AsOf          time.Time
}

// Arrears is the estimated overdue position of a loan
type Arrears struct {
	ExpectedPaid  decimal.Decimal
	AmountOverdue decimal.Decimal
	DaysOverdue   int
	Bucket        Bucket
}

// EstimateArrears classifies a loan into a PAR bucket without a stored
// per-period schedule. Days overdue are estimated from how many installments
// the shortfall represents: overdue / installment_amount installments, each
// one interval late.
func EstimateArrears(in ArrearsInput) Arrears {
	totalInterest := in.Principal.Mul(in.InterestRate).Div(hundred)
	totalDue := in.Principal.Add(totalInterest)

	totalDays := in.DurationCount * in.DurationUnit.Days()
	intervalDays := in.Frequency.IntervalDays()
	numInstallments := totalDays / intervalDays
	if numInstallments < 1 {
		numInstallments = 1
	}
	installmentAmount := totalDue.Div(decimal.NewFromInt(int64(numInstallments)))

	// Count installments that have fallen due by AsOf
	installmentsPassed := 0
	for i := 1; i <= numInstallments; i++ {
		due := in.StartDate.AddDate(0, 0, intervalDays*i)
		if due.After(in.AsOf) {
			break
		}
		installmentsPassed++
	}

	expectedPaid := installmentAmount.Mul(decimal.NewFromInt(int64(installmentsPassed)))
	if in.TotalRepaid.GreaterThanOrEqual(expectedPaid) {
		return Arrears{ExpectedPaid: expectedPaid, AmountOverdue: decimal.Zero, Bucket: BucketCurrent}
	}

	amountOverdue := expectedPaid.Sub(in.TotalRepaid)
	installmentsOverdue := amountOverdue.Div(installmentAmount)
	daysOverdue := int(installmentsOverdue.Mul(decimal.NewFromInt(int64(intervalDays))).IntPart())

	return Arrears{
		ExpectedPaid:  expectedPaid,
		AmountOverdue: amountOverdue.Round(2),
		DaysOverdue:   daysOverdue,
		Bucket:        bucketFor(daysOverdue),
	}
}

func bucketFor(daysOverdue int) Bucket {
	switch {
	case daysOverdue <= 0:
		return BucketCurrent
	case daysOverdue <= 30:
		return BucketPAR30
	case daysOverdue <= 60:
		return BucketPAR60
	case daysOverdue <= 90:
		return BucketPAR90
	default:
		return BucketPAR90Plus
	}
}
