package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// IncomingStatus is the reconciliation outcome of an inbound payment notification
type IncomingStatus string

const (
	IncomingStatusUnmatched IncomingStatus = "unmatched"
	IncomingStatusMatched   IncomingStatus = "matched"
	IncomingStatusInvalid   IncomingStatus = "invalid"
)

// MpesaIncomingTransaction is an inbound payment notification from the
// mobile-money gateway. Persisted exactly once per external transaction id
// and never deleted; only the reconciliation matcher mutates it.
type MpesaIncomingTransaction struct {
	ID            int64           `db:"id"`
	TransactionID string          `db:"transaction_id"`
	Amount        decimal.Decimal `db:"amount"`
	Phone         string          `db:"phone"`
	BillRef       string          `db:"bill_ref"`
	Status        IncomingStatus  `db:"status"`

	// Populated when matched to a loan repayment; all three together or,
	// for a registration-fee match, none of them.
	ClientID    *int64 `db:"client_id"`
	LoanID      *int64 `db:"loan_id"`
	RepaymentID *int64 `db:"repayment_id"`

	RawCallback []byte    `db:"raw_callback"`
	CreatedAt   time.Time `db:"created_at"`
}

// IsLoanMatch reports whether the notification settled a loan repayment
func (t *MpesaIncomingTransaction) IsLoanMatch() bool {
	return t.Status == IncomingStatusMatched && t.LoanID != nil && t.ClientID != nil && t.RepaymentID != nil
}
