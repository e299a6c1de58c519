package service

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"inphora/errs"
	"inphora/models"
)

type productService struct {
	uowFactory UnitOfWorkFactory
}

// NewLoanProductService creates a new loan product service
func NewLoanProductService(uowFactory UnitOfWorkFactory) LoanProductService {
	return &productService{uowFactory: uowFactory}
}

func validateProduct(p *models.LoanProduct) error {
	if p.Name == "" {
		return errs.NewValidation("product name is required")
	}
	if p.InterestRate.IsNegative() {
		return errs.NewValidation("interest rate cannot be negative")
	}
	if !p.MinAmount.IsPositive() || p.MaxAmount.LessThan(p.MinAmount) {
		return errs.NewValidation("amount range %s to %s is invalid", p.MinAmount, p.MaxAmount)
	}
	if p.MinDurationCount <= 0 || p.MaxDurationCount < p.MinDurationCount {
		return errs.NewValidation("duration range %d to %d is invalid", p.MinDurationCount, p.MaxDurationCount)
	}
	switch p.DurationUnit {
	case models.DurationDays, models.DurationWeeks, models.DurationMonths:
	default:
		return errs.NewValidation("unknown duration unit %q", p.DurationUnit)
	}
	if p.PenaltyRate.IsNegative() {
		return errs.NewValidation("penalty rate cannot be negative")
	}
	return nil
}

func (s *productService) CreateProduct(ctx context.Context, product *models.LoanProduct) error {
	if err := validateProduct(product); err != nil {
		return err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.LoanProductRepository().Create(ctx, product); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"product_id": product.ID,
		"name":       product.Name,
	}).Info("Loan product created")
	return nil
}

// UpdateProduct replaces a product's terms. Existing loans are unaffected;
// their terms were snapshotted at creation.
func (s *productService) UpdateProduct(ctx context.Context, product *models.LoanProduct) error {
	if err := validateProduct(product); err != nil {
		return err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.LoanProductRepository().Update(ctx, product); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithField("product_id", product.ID).Info("Loan product updated")
	return nil
}

func (s *productService) GetProduct(ctx context.Context, productID int64) (*models.LoanProduct, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	product, err := uow.LoanProductRepository().GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return product, nil
}

func (s *productService) ListProducts(ctx context.Context) ([]*models.LoanProduct, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	products, err := uow.LoanProductRepository().List(ctx)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return products, nil
}
