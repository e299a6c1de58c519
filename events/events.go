package events

import (
	"context"
	"sync"

	"inphora/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeLoanStatusChanged     EventType = "loan_status_changed"
	EventTypeRepaymentReceived     EventType = "repayment_received"
	EventTypeDisbursementCompleted EventType = "disbursement_completed"
	EventTypeDisbursementFailed    EventType = "disbursement_failed"
	EventTypePaymentMatched        EventType = "payment_matched"
	EventTypeRegistrationPaid      EventType = "registration_paid"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// LoanStatusChangedEvent fires on every loan state-machine transition
type LoanStatusChangedEvent struct {
	LoanID    int64
	ClientID  int64
	OldStatus models.LoanStatus
	NewStatus models.LoanStatus
	Level     int
	ActorID   int64
}

func (e LoanStatusChangedEvent) Type() EventType {
	return EventTypeLoanStatusChanged
}

// RepaymentReceivedEvent fires when a repayment is applied to a loan
type RepaymentReceivedEvent struct {
	LoanID      int64
	RepaymentID int64
	Amount      decimal.Decimal
	Method      models.PaymentMethod
	Completed   bool // true when this repayment completed the loan
}

func (e RepaymentReceivedEvent) Type() EventType {
	return EventTypeRepaymentReceived
}

// DisbursementCompletedEvent fires when funds reach the borrower
type DisbursementCompletedEvent struct {
	TransactionID int64
	LoanID        int64
	Amount        decimal.Decimal
	Method        models.DisbursementMethod
}

func (e DisbursementCompletedEvent) Type() EventType {
	return EventTypeDisbursementCompleted
}

// DisbursementFailedEvent fires when a funds-release attempt fails
type DisbursementFailedEvent struct {
	TransactionID int64
	LoanID        int64
	Reason        string
}

func (e DisbursementFailedEvent) Type() EventType {
	return EventTypeDisbursementFailed
}

// PaymentMatchedEvent fires when the reconciliation matcher binds an
// inbound notification to a loan
type PaymentMatchedEvent struct {
	NotificationID int64
	LoanID         int64
	RepaymentID    int64
	Amount         decimal.Decimal
	Manual         bool
}

func (e PaymentMatchedEvent) Type() EventType {
	return EventTypePaymentMatched
}

// RegistrationPaidEvent fires when a registration application's fee settles
type RegistrationPaidEvent struct {
	ApplicationID int64
	Amount        decimal.Decimal
}

func (e RegistrationPaidEvent) Type() EventType {
	return EventTypeRegistrationPaid
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	// Call handlers asynchronously to avoid blocking the request path
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus stashes events raised inside a unit of work and publishes
// them to the real bus only after the database commit succeeds.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

// NewTransactionalBus creates a transactional bus backed by the real one
func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

// Publish queues an event until Flush
func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Flush emits all pending events. Called after a successful commit; events
// dispatch on a background context so they outlive the request.
func (b *TransactionalBus) Flush(ctx context.Context) {
	if len(b.pending) == 0 {
		return
	}
	log.WithFields(log.Fields{
		"pendingEventCount": len(b.pending),
	}).Debug("Flushing pending events after commit")

	eventCtx := context.Background()
	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
}

// Discard drops pending events. Called after rollback.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
