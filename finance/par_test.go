package finance

import (
	"testing"
	"time"

	"inphora/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func arrearsInput() ArrearsInput {
	// 12000 at 10% over 6 monthly installments of 2200; three due by AsOf
	return ArrearsInput{
		Principal:     decimal.NewFromInt(12000),
		InterestRate:  decimal.NewFromInt(10),
		DurationCount: 6,
		DurationUnit:  models.DurationMonths,
		Frequency:     models.FrequencyMonthly,
		StartDate:     date(2024, time.January, 1),
		TotalRepaid:   decimal.Zero,
		AsOf:          date(2024, time.April, 15),
	}
}

func TestEstimateArrears_CurrentWhenOnSchedule(t *testing.T) {
	in := arrearsInput()
	in.TotalRepaid = decimal.NewFromInt(6600)

	arrears := EstimateArrears(in)

	assert.Equal(t, BucketCurrent, arrears.Bucket)
	assert.True(t, arrears.AmountOverdue.IsZero(), "got %s", arrears.AmountOverdue)
	assert.True(t, arrears.ExpectedPaid.Equal(decimal.NewFromInt(6600)), "got %s", arrears.ExpectedPaid)
}

func TestEstimateArrears_NothingRepaid(t *testing.T) {
	arrears := EstimateArrears(arrearsInput())

	// Three missed installments of 2200, each one interval of 30 days late
	assert.True(t, arrears.AmountOverdue.Equal(decimal.NewFromInt(6600)), "got %s", arrears.AmountOverdue)
	assert.Equal(t, 90, arrears.DaysOverdue)
	assert.Equal(t, BucketPAR90, arrears.Bucket)
}

func TestEstimateArrears_OneInstallmentBehind(t *testing.T) {
	in := arrearsInput()
	in.TotalRepaid = decimal.NewFromInt(4400)

	arrears := EstimateArrears(in)

	assert.True(t, arrears.AmountOverdue.Equal(decimal.NewFromInt(2200)), "got %s", arrears.AmountOverdue)
	assert.Equal(t, 30, arrears.DaysOverdue)
	assert.Equal(t, BucketPAR30, arrears.Bucket)
}

func TestEstimateArrears_OverpaymentStaysCurrent(t *testing.T) {
	in := arrearsInput()
	in.TotalRepaid = decimal.NewFromInt(9000)

	arrears := EstimateArrears(in)

	assert.Equal(t, BucketCurrent, arrears.Bucket)
	assert.True(t, arrears.AmountOverdue.IsZero())
}

func TestBucketFor(t *testing.T) {
	tests := []struct {
		daysOverdue int
		expected    Bucket
	}{
		{0, BucketCurrent},
		{1, BucketPAR30},
		{30, BucketPAR30},
		{31, BucketPAR60},
		{60, BucketPAR60},
		{61, BucketPAR90},
		{90, BucketPAR90},
		{91, BucketPAR90Plus},
		{365, BucketPAR90Plus},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, bucketFor(tt.daysOverdue), "days overdue %d", tt.daysOverdue)
	}
}
