package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"inphora/finance"
	"inphora/models"
)

type reportService struct {
	uowFactory UnitOfWorkFactory
}

// NewReportService creates a new report service
func NewReportService(uowFactory UnitOfWorkFactory) ReportService {
	return &reportService{uowFactory: uowFactory}
}

// loanPosition is one active loan with its repayment total, the unit both
// reports aggregate over
type loanPosition struct {
	loan        *models.Loan
	totalRepaid decimal.Decimal
	penalty     decimal.Decimal
	outstanding decimal.Decimal
	arrears     finance.Arrears
}

func (s *reportService) activePositions(ctx context.Context, asOf time.Time) ([]loanPosition, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	loans, err := uow.LoanRepository().GetByStatus(ctx, models.LoanStatusActive)
	if err != nil {
		return nil, err
	}

	positions := make([]loanPosition, 0, len(loans))
	for _, loan := range loans {
		totalRepaid, err := uow.RepaymentRepository().TotalRepaid(ctx, loan.ID)
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
			AsOf:            asOf,
		})

		positions = append(positions, loanPosition{
			loan:        loan,
			totalRepaid: totalRepaid,
			penalty:     penalty,
			outstanding: finance.OutstandingBalance(loan.Amount, loan.InterestRate, loan.TotalFees(), penalty, totalRepaid),
			arrears: finance.EstimateArrears(finance.ArrearsInput{
				Principal:     loan.Amount,
				InterestRate:  loan.InterestRate,
				DurationCount: loan.DurationCount,
				DurationUnit:  loan.DurationUnit,
				Frequency:     loan.RepaymentFrequency,
				StartDate:     loan.StartDate,
				TotalRepaid:   totalRepaid,
				AsOf:          asOf,
			}),
		})
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return positions, nil
}

// PortfolioSummary aggregates the book as of a date. Portfolio at risk is
// the outstanding balance on loans more than 30 days in arrears as a share
// of total outstanding.
func (s *reportService) PortfolioSummary(ctx context.Context, asOf time.Time) (*PortfolioSummary, error) {
	positions, err := s.activePositions(ctx, asOf)
	if err != nil {
		return nil, err
	}

	summary := &PortfolioSummary{
		AsOf:                  asOf,
		ActiveLoans:           len(positions),
		TotalPrincipal:        decimal.Zero,
		TotalOutstanding:      decimal.Zero,
		TotalRepaid:           decimal.Zero,
		TotalPenaltiesAccrued: decimal.Zero,
		PortfolioAtRisk:       decimal.Zero,
	}

	atRisk := decimal.Zero
	for _, p := range positions {
		summary.TotalPrincipal = summary.TotalPrincipal.Add(p.loan.Amount)
		summary.TotalOutstanding = summary.TotalOutstanding.Add(p.outstanding)
		summary.TotalRepaid = summary.TotalRepaid.Add(p.totalRepaid)
		summary.TotalPenaltiesAccrued = summary.TotalPenaltiesAccrued.Add(p.penalty)

		if p.arrears.DaysOverdue > 30 {
			atRisk = atRisk.Add(p.outstanding)
		}
	}

	if summary.TotalOutstanding.IsPositive() {
		summary.PortfolioAtRisk = atRisk.Div(summary.TotalOutstanding).Round(4)
	}
	return summary, nil
}

// ArrearsDistribution buckets active loans by estimated days in arrears
func (s *reportService) ArrearsDistribution(ctx context.Context, asOf time.Time) (*ArrearsDistribution, error) {
	positions, err := s.activePositions(ctx, asOf)
	if err != nil {
		return nil, err
	}

	order := []finance.Bucket{
		finance.BucketCurrent,
		finance.BucketPAR30,
		finance.BucketPAR60,
		finance.BucketPAR90,
		finance.BucketPAR90Plus,
	}

	rows := make(map[finance.Bucket]*ArrearsBucketRow, len(order))
	for _, bucket := range order {
		rows[bucket] = &ArrearsBucketRow{Bucket: bucket, Outstanding: decimal.Zero}
	}
	for _, p := range positions {
		row := rows[p.arrears.Bucket]
		row.Loans++
		row.Outstanding = row.Outstanding.Add(p.outstanding)
	}

	dist := &ArrearsDistribution{AsOf: asOf, Buckets: make([]ArrearsBucketRow, 0, len(order))}
	for _, bucket := range order {
		dist.Buckets = append(dist.Buckets, *rows[bucket])
	}
	return dist, nil
}
