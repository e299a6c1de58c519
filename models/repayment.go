package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod identifies the rail a repayment arrived on
type PaymentMethod string

const (
	PaymentMethodMpesa  PaymentMethod = "mpesa"
	PaymentMethodBank   PaymentMethod = "bank"
	PaymentMethodManual PaymentMethod = "manual"
)

// Repayment is an inbound payment applied to a loan. Immutable once created;
// a correction is a new record, never an edit.
type Repayment struct {
	ID                    int64           `db:"id"`
	LoanID                int64           `db:"loan_id"`
	Amount                decimal.Decimal `db:"amount"`
	PaymentDate           time.Time       `db:"payment_date"`
	PaymentMethod         PaymentMethod   `db:"payment_method"`
	ExternalTransactionID *string         `db:"external_transaction_id"`
	Notes                 *string         `db:"notes"`
	CreatedAt             time.Time       `db:"created_at"`
}
