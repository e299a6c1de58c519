package models

import "time"

// Client is a registered borrower
type Client struct {
	ID        int64   `db:"id"`
	FirstName string  `db:"first_name"`
	LastName  string  `db:"last_name"`
	Email     *string `db:"email"`
	Phone     string  `db:"phone"`
	IDNumber  string  `db:"id_number"`
	Address   *string `db:"address"`

	// Payout details
	MpesaPhone            *string `db:"mpesa_phone"`
	BankName              *string `db:"bank_name"`
	BankAccountNumber     *string `db:"bank_account_number"`
	PreferredDisbursement string  `db:"preferred_disbursement"`

	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
}

// DisbursementPhone returns the phone number funds should be sent to
func (c *Client) DisbursementPhone() string {
	if c.MpesaPhone != nil && *c.MpesaPhone != "" {
		return *c.MpesaPhone
	}
	return c.Phone
}
