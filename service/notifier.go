package service

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"inphora/events"
	"inphora/models"
)

// notifier turns domain events into in-app notifications for back-office
// users. Handlers run after the originating transaction has committed, so
// each one opens its own unit of work; a failed notification write is
// logged and dropped rather than failing the business operation.
type notifier struct {
	uowFactory UnitOfWorkFactory
}

// RegisterNotificationHandlers subscribes notification writers to the bus
func RegisterNotificationHandlers(bus *events.Bus, uowFactory UnitOfWorkFactory) {
	n := &notifier{uowFactory: uowFactory}

	bus.Subscribe(events.EventTypeLoanStatusChanged, n.handleLoanStatusChanged)
	bus.Subscribe(events.EventTypeDisbursementCompleted, n.handleDisbursementCompleted)
	bus.Subscribe(events.EventTypeDisbursementFailed, n.handleDisbursementFailed)
	bus.Subscribe(events.EventTypePaymentMatched, n.handlePaymentMatched)
	bus.Subscribe(events.EventTypeRegistrationPaid, n.handleRegistrationPaid)
}

func (n *notifier) handleLoanStatusChanged(ctx context.Context, event events.Event) {
	e, ok := event.(events.LoanStatusChangedEvent)
	if !ok {
		return
	}

	switch e.NewStatus {
	case models.LoanStatusApproved:
		n.notifyRole(ctx, models.RoleManager, &models.Notification{
			Title:   "Loan approved",
			Message: fmt.Sprintf("Loan %d is fully approved and ready for disbursement", e.LoanID),
			Kind:    "success",
		})
	case models.LoanStatusRejected:
		n.notifyRole(ctx, models.RoleLoanOfficer, &models.Notification{
			Title:   "Loan rejected",
			Message: fmt.Sprintf("Loan %d was rejected at approval level %d", e.LoanID, e.Level),
			Kind:    "info",
		})
	case models.LoanStatusCompleted:
		n.notifyRole(ctx, models.RoleLoanOfficer, &models.Notification{
			Title:   "Loan completed",
			Message: fmt.Sprintf("Loan %d has been fully repaid", e.LoanID),
			Kind:    "success",
		})
	}
}

func (n *notifier) handleDisbursementCompleted(ctx context.Context, event events.Event) {
	e, ok := event.(events.DisbursementCompletedEvent)
	if !ok {
		return
	}
	n.notifyRole(ctx, models.RoleLoanOfficer, &models.Notification{
		Title:   "Disbursement completed",
		Message: fmt.Sprintf("Loan %d disbursed %s via %s", e.LoanID, e.Amount.StringFixed(2), e.Method),
		Kind:    "success",
	})
}

func (n *notifier) handleDisbursementFailed(ctx context.Context, event events.Event) {
	e, ok := event.(events.DisbursementFailedEvent)
	if !ok {
		return
	}
	n.notifyRole(ctx, models.RoleManager, &models.Notification{
		Title:   "Disbursement failed",
		Message: fmt.Sprintf("Disbursement attempt %d for loan %d failed: %s", e.TransactionID, e.LoanID, e.Reason),
		Kind:    "error",
	})
}

func (n *notifier) handlePaymentMatched(ctx context.Context, event events.Event) {
	e, ok := event.(events.PaymentMatchedEvent)
	if !ok || e.Manual {
		// Manual matches were performed by an operator who already knows
		return
	}
	n.notifyRole(ctx, models.RoleLoanOfficer, &models.Notification{
		Title:   "Payment matched",
		Message: fmt.Sprintf("Incoming payment of %s applied to loan %d", e.Amount.StringFixed(2), e.LoanID),
		Kind:    "info",
	})
}

func (n *notifier) handleRegistrationPaid(ctx context.Context, event events.Event) {
	e, ok := event.(events.RegistrationPaidEvent)
	if !ok {
		return
	}
	n.notifyRole(ctx, models.RoleLoanOfficer, &models.Notification{
		Title:   "Registration fee received",
		Message: fmt.Sprintf("Application %d paid its registration fee and awaits review", e.ApplicationID),
		Kind:    "info",
	})
}

// notifyRole fans a notification template out to every active user holding
// at least the given role
func (n *notifier) notifyRole(ctx context.Context, role models.Role, template *models.Notification) {
	uow := n.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		log.WithError(err).Error("Failed to begin notification transaction")
		return
	}
	defer uow.Rollback()

	recipients, err := uow.UserRepository().ListByMinimumRole(ctx, role)
	if err != nil {
		log.WithError(err).WithField("role", role).Error("Failed to resolve notification recipients")
		return
	}

	for _, user := range recipients {
		notification := *template
		notification.UserID = user.ID
		if err := uow.NotificationRepository().Create(ctx, &notification); err != nil {
			log.WithError(err).WithField("user_id", user.ID).Error("Failed to write notification")
			return
		}
	}

	if err := uow.Commit(); err != nil {
		log.WithError(err).Error("Failed to commit notifications")
	}
}
