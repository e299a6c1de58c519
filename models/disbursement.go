package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DisbursementMethod is the payment rail funds are released through
type DisbursementMethod string

const (
	DisbursementMethodMpesa  DisbursementMethod = "mpesa"
	DisbursementMethodBank   DisbursementMethod = "bank"
	DisbursementMethodManual DisbursementMethod = "manual"
)

// DisbursementStatus tracks a funds-release attempt
type DisbursementStatus string

const (
	DisbursementStatusPending    DisbursementStatus = "pending"
	DisbursementStatusProcessing DisbursementStatus = "processing"
	DisbursementStatusCompleted  DisbursementStatus = "completed"
	DisbursementStatusFailed     DisbursementStatus = "failed"
)

// DisbursementTransaction records one funds-release attempt for a loan
type DisbursementTransaction struct {
	ID       int64              `db:"id"`
	LoanID   int64              `db:"loan_id"`
	ClientID int64              `db:"client_id"`
	Amount   decimal.Decimal    `db:"amount"`
	Method   DisbursementMethod `db:"method"`
	Status   DisbursementStatus `db:"status"`

	MpesaPhone    *string `db:"mpesa_phone"`
	BankName      *string `db:"bank_name"`
	BankAccount   *string `db:"bank_account"`
	BankReference *string `db:"bank_reference"`

	// CorrelationID is generated at initiation and is the sole key the
	// asynchronous B2C result callback is matched on
	CorrelationID         *string `db:"correlation_id"`
	ExternalTransactionID *string `db:"external_transaction_id"`
	ResultCode            *string `db:"result_code"`
	ResultDescription     *string `db:"result_description"`
	ErrorMessage          *string `db:"error_message"`

	InitiatedBy int64      `db:"initiated_by"`
	InitiatedAt time.Time  `db:"initiated_at"`
	CompletedAt *time.Time `db:"completed_at"`
}
