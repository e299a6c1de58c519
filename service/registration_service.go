package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"inphora/cache"
	"inphora/errs"
	"inphora/gateway"
	"inphora/models"
)

// stkPromptTTL bounds how long a collection prompt stays mappable to its
// application. Daraja prompts themselves expire within a couple of minutes.
const stkPromptTTL = 15 * time.Minute

type registrationService struct {
	uowFactory      UnitOfWorkFactory
	mpesaClient     gateway.MpesaClient
	store           cache.Store
	registrationFee decimal.Decimal
}

// NewRegistrationService creates a new registration service
func NewRegistrationService(uowFactory UnitOfWorkFactory, mpesaClient gateway.MpesaClient, store cache.Store, registrationFee decimal.Decimal) RegistrationService {
	return &registrationService{
		uowFactory:      uowFactory,
		mpesaClient:     mpesaClient,
		store:           store,
		registrationFee: registrationFee,
	}
}

// SubmitApplication records a prospective client's application
func (s *registrationService) SubmitApplication(ctx context.Context, req SubmitRegistrationRequest) (*models.RegistrationApplication, error) {
	if strings.TrimSpace(req.FullName) == "" {
		return nil, errs.NewValidation("full name is required")
	}
	if strings.TrimSpace(req.Phone) == "" {
		return nil, errs.NewValidation("phone number is required")
	}
	if strings.TrimSpace(req.IDNumber) == "" {
		return nil, errs.NewValidation("ID number is required")
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	// An existing client with the same phone cannot re-register
	existing, err := uow.ClientRepository().GetByPhone(ctx, req.Phone)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errs.NewConflict("phone %s already belongs to a registered client", req.Phone)
	}

	app := &models.RegistrationApplication{
		FullName:        strings.TrimSpace(req.FullName),
		Phone:           strings.TrimSpace(req.Phone),
		IDNumber:        strings.TrimSpace(req.IDNumber),
		Status:          models.RegistrationStatusPending,
		RegistrationFee: s.registrationFee,
		AmountPaid:      decimal.Zero,
	}
	if req.Email != "" {
		app.Email = &req.Email
	}
	if req.Address != "" {
		app.Address = &req.Address
	}

	if err := uow.RegistrationRepository().Create(ctx, app); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"application_id": app.ID,
		"billing_ref":    app.BillingReference(),
	}).Info("Registration application submitted")

	return app, nil
}

// RequestFeePayment pushes a payment prompt for the registration fee and
// remembers the prompt so its callback can be mapped back to the application
func (s *registrationService) RequestFeePayment(ctx context.Context, applicationID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	app, err := uow.RegistrationRepository().GetByID(ctx, applicationID)
	if err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if app.Status != models.RegistrationStatusPending {
		return errs.NewConflict("registration application %d is %s, not awaiting payment", applicationID, app.Status)
	}

	resp, err := s.mpesaClient.STKPush(ctx, gateway.STKRequest{
		Phone:            app.Phone,
		Amount:           app.RegistrationFee.StringFixed(0),
		AccountReference: app.BillingReference(),
		Description:      "Registration fee",
	})
	if err != nil {
		return err
	}

	if err := s.store.Set(ctx, stkKey(resp.CheckoutRequestID), app.BillingReference(), stkPromptTTL); err != nil {
		// The prompt is out; a cache miss only downgrades the callback to
		// phone matching
		log.WithError(err).WithField("application_id", applicationID).
			Warn("Failed to cache STK prompt mapping")
	}

	log.WithFields(log.Fields{
		"application_id":      applicationID,
		"checkout_request_id": resp.CheckoutRequestID,
	}).Info("Registration fee prompt sent")
	return nil
}

// ApproveApplication converts a paid application into a client
func (s *registrationService) ApproveApplication(ctx context.Context, applicationID, reviewerID int64) (*models.Client, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	app, err := uow.RegistrationRepository().GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != models.RegistrationStatusPaid {
		return nil, errs.NewConflict("registration application %d is %s, only paid applications can be approved", applicationID, app.Status)
	}

	if err := uow.RegistrationRepository().UpdateStatus(ctx, applicationID,
		models.RegistrationStatusPaid, models.RegistrationStatusApproved); err != nil {
		return nil, err
	}

	firstName, lastName := splitFullName(app.FullName)
	client := &models.Client{
		FirstName:             firstName,
		LastName:              lastName,
		Email:                 app.Email,
		Phone:                 app.Phone,
		IDNumber:              app.IDNumber,
		Address:               app.Address,
		PreferredDisbursement: string(models.DisbursementMethodMpesa),
		Status:                "active",
	}
	if err := uow.ClientRepository().Create(ctx, client); err != nil {
		return nil, err
	}

	if err := uow.RegistrationRepository().UpdateStatus(ctx, applicationID,
		models.RegistrationStatusApproved, models.RegistrationStatusCompleted); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"application_id": applicationID,
		"client_id":      client.ID,
		"reviewer_id":    reviewerID,
	}).Info("Registration application approved")

	return client, nil
}

// RejectApplication rejects a pending or paid application
func (s *registrationService) RejectApplication(ctx context.Context, applicationID, reviewerID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	app, err := uow.RegistrationRepository().GetByID(ctx, applicationID)
	if err != nil {
		return err
	}
	if app.Status != models.RegistrationStatusPending && app.Status != models.RegistrationStatusPaid {
		return errs.NewConflict("registration application %d is %s, cannot be rejected", applicationID, app.Status)
	}

	if err := uow.RegistrationRepository().UpdateStatus(ctx, applicationID,
		app.Status, models.RegistrationStatusRejected); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"application_id": applicationID,
		"reviewer_id":    reviewerID,
	}).Info("Registration application rejected")
	return nil
}

// splitFullName breaks a full name into first and last parts. Everything
// after the first word counts as the last name.
func splitFullName(full string) (string, string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
