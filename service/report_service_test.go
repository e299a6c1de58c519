package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inphora/finance"
	"inphora/models"
)

// Two six-month loans started the same day: one paid on schedule, one that
// has never paid and sits three installments (90 days) behind.
func reportBook() []*models.Loan {
	mk := func(id int64) *models.Loan {
		return &models.Loan{
			ID:                 id,
			ClientID:           id,
			Amount:             decimal.NewFromInt(12000),
			InterestRate:       decimal.NewFromInt(10),
			DurationCount:      6,
			DurationUnit:       models.DurationMonths,
			RepaymentFrequency: models.FrequencyMonthly,
			StartDate:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			EndDate:            time.Date(2024, 6, 29, 0, 0, 0, 0, time.UTC),
			Status:             models.LoanStatusActive,
			PenaltyRate:        decimal.NewFromInt(5),
			GracePeriodDays:    7,
		}
	}
	return []*models.Loan{mk(1), mk(2)}
}

func TestReportService_PortfolioSummary(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	svc := NewReportService(NewMockUnitOfWorkFactory(uow))

	asOf := time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)
	uow.LoanRepo.On("GetByStatus", ctx, models.LoanStatusActive).Return(reportBook(), nil)
	// Three of six installments of 2200 have fallen due by mid April
	uow.RepaymentRepo.On("TotalRepaid", ctx, int64(1)).Return(decimal.NewFromInt(6600), nil)
	uow.RepaymentRepo.On("TotalRepaid", ctx, int64(2)).Return(decimal.Zero, nil)

	summary, err := svc.PortfolioSummary(ctx, asOf)

	require.NoError(t, err)
	assert.Equal(t, 2, summary.ActiveLoans)
	assert.True(t, summary.TotalPrincipal.Equal(decimal.NewFromInt(24000)), "principal %s", summary.TotalPrincipal)
	// Each loan owes 13200 in total; 6600 has come back
	assert.True(t, summary.TotalRepaid.Equal(decimal.NewFromInt(6600)), "repaid %s", summary.TotalRepaid)
	assert.True(t, summary.TotalOutstanding.Equal(decimal.NewFromInt(19800)), "outstanding %s", summary.TotalOutstanding)
	// Before the end date, nothing has accrued penalties yet
	assert.True(t, summary.TotalPenaltiesAccrued.IsZero())
	// The silent loan's 13200 out of 19800 outstanding is 90 days behind
	assert.True(t, summary.PortfolioAtRisk.Equal(decimal.NewFromFloat(0.6667)), "par %s", summary.PortfolioAtRisk)
}

func TestReportService_PortfolioSummary_EmptyBook(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	svc := NewReportService(NewMockUnitOfWorkFactory(uow))

	uow.LoanRepo.On("GetByStatus", ctx, models.LoanStatusActive).Return([]*models.Loan{}, nil)

	summary, err := svc.PortfolioSummary(ctx, time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Equal(t, 0, summary.ActiveLoans)
	assert.True(t, summary.PortfolioAtRisk.IsZero())
	assert.True(t, summary.TotalOutstanding.IsZero())
}

func TestReportService_ArrearsDistribution(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	svc := NewReportService(NewMockUnitOfWorkFactory(uow))

	asOf := time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)
	uow.LoanRepo.On("GetByStatus", ctx, models.LoanStatusActive).Return(reportBook(), nil)
	uow.RepaymentRepo.On("TotalRepaid", ctx, int64(1)).Return(decimal.NewFromInt(6600), nil)
	uow.RepaymentRepo.On("TotalRepaid", ctx, int64(2)).Return(decimal.Zero, nil)

	dist, err := svc.ArrearsDistribution(ctx, asOf)

	require.NoError(t, err)
	require.Len(t, dist.Buckets, 5)

	byBucket := make(map[finance.Bucket]ArrearsBucketRow, len(dist.Buckets))
	for _, row := range dist.Buckets {
		byBucket[row.Bucket] = row
	}

	assert.Equal(t, 1, byBucket[finance.BucketCurrent].Loans)
	assert.True(t, byBucket[finance.BucketCurrent].Outstanding.Equal(decimal.NewFromInt(6600)))
	assert.Equal(t, 1, byBucket[finance.BucketPAR90].Loans)
	assert.True(t, byBucket[finance.BucketPAR90].Outstanding.Equal(decimal.NewFromInt(13200)))
	assert.Equal(t, 0, byBucket[finance.BucketPAR30].Loans)
	assert.Equal(t, 0, byBucket[finance.BucketPAR60].Loans)
	assert.Equal(t, 0, byBucket[finance.BucketPAR90Plus].Loans)

	// Bucket order is stable for rendering
	assert.Equal(t, finance.BucketCurrent, dist.Buckets[0].Bucket)
	assert.Equal(t, finance.BucketPAR90Plus, dist.Buckets[4].Bucket)
}
