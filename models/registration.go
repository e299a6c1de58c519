package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RegistrationStatus tracks a prospective client's application
type RegistrationStatus string

const (
	RegistrationStatusPending   RegistrationStatus = "pending"
	RegistrationStatusPaid      RegistrationStatus = "paid"
	RegistrationStatusApproved  RegistrationStatus = "approved"
	RegistrationStatusRejected  RegistrationStatus = "rejected"
	RegistrationStatusCompleted RegistrationStatus = "completed"
)

// RegistrationApplication is a self-service onboarding request. The applicant
// pays the registration fee against a REG-tagged billing reference.
type RegistrationApplication struct {
	ID              int64              `db:"id"`
	FullName        string             `db:"full_name"`
	Phone           string             `db:"phone"`
	IDNumber        string             `db:"id_number"`
	Email           *string            `db:"email"`
	Address         *string            `db:"address"`
	Status          RegistrationStatus `db:"status"`
	RegistrationFee decimal.Decimal    `db:"registration_fee"`
	AmountPaid      decimal.Decimal    `db:"amount_paid"`
	PaymentRef      *string            `db:"payment_ref"`
	SubmittedAt     time.Time          `db:"submitted_at"`
}

// BillingReference is the account string the applicant quotes when paying,
// e.g. "REG000042". The reconciliation matcher parses it back to the id.
func (a *RegistrationApplication) BillingReference() string {
	return fmt.Sprintf("REG%06d", a.ID)
}
