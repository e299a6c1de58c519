package service

import (
	"time"

	"github.com/shopspring/decimal"

	"inphora/finance"
	"inphora/models"
)

// CreateLoanRequest carries a loan application
type CreateLoanRequest struct {
	ClientID           int64
	ProductID          int64
	Amount             decimal.Decimal
	DurationCount      int
	RepaymentFrequency models.RepaymentFrequency
	StartDate          time.Time
	WaiveProcessingFee bool

	Guarantors []models.Guarantor
	Collateral []models.Collateral
	Referees   []models.Referee
	Analysis   *models.FinancialAnalysis
}

// LoanDetail is a loan together with its derived figures
type LoanDetail struct {
	Loan          *models.Loan
	Client        *models.Client
	Schedule      []finance.Installment
	TotalInterest decimal.Decimal
	TotalRepaid   decimal.Decimal
	Outstanding   decimal.Decimal
	Penalty       decimal.Decimal
	Repayments    []*models.Repayment
	Approvals     []*models.LoanApproval
	Disbursements []*models.DisbursementTransaction
}

// RecordRepaymentRequest carries a repayment to apply to a loan
type RecordRepaymentRequest struct {
	LoanID                int64
	Amount                decimal.Decimal
	PaymentDate           time.Time
	PaymentMethod         models.PaymentMethod
	ExternalTransactionID string
	Notes                 string
}

// DisburseRequest carries a funds-release instruction
type DisburseRequest struct {
	LoanID      int64
	Method      models.DisbursementMethod
	InitiatedBy int64

	// Bank rail details; ignored for mobile money
	BankReference string
}

// B2CResult is the asynchronous outcome of a payout request
type B2CResult struct {
	CorrelationID         string
	ResultCode            string
	ResultDescription     string
	ExternalTransactionID string
}

// C2BPayment is an inbound paybill payment notification
type C2BPayment struct {
	TransactionID string
	Amount        decimal.Decimal
	Phone         string
	BillRef       string
	RawCallback   []byte
}

// STKCallback is the outcome of a collection prompt
type STKCallback struct {
	CheckoutRequestID string
	ResultCode        int
	TransactionID     string
	Amount            decimal.Decimal
	Phone             string
	RawCallback       []byte
}

// SubmitRegistrationRequest carries a prospective client's application
type SubmitRegistrationRequest struct {
	FullName string
	Phone    string
	IDNumber string
	Email    string
	Address  string
}

// UpdateClientRequest carries a client's editable contact and payout details
type UpdateClientRequest struct {
	ClientID              int64
	Phone                 string
	Email                 string
	Address               string
	MpesaPhone            string
	BankName              string
	BankAccountNumber     string
	PreferredDisbursement string
}

// CreateUserRequest carries a new back-office user
type CreateUserRequest struct {
	Email    string
	FullName string
	Password string
	Role     models.Role
}

// LoginResult is an issued session
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

// PortfolioSummary aggregates the loan book as of a date
type PortfolioSummary struct {
	AsOf                  time.Time
	ActiveLoans           int
	TotalPrincipal        decimal.Decimal
	TotalOutstanding      decimal.Decimal
	TotalRepaid           decimal.Decimal
	TotalPenaltiesAccrued decimal.Decimal
	PortfolioAtRisk       decimal.Decimal // share of outstanding on loans 30+ days in arrears
}

// ArrearsBucketRow is one row of the arrears distribution
type ArrearsBucketRow struct {
	Bucket      finance.Bucket
	Loans       int
	Outstanding decimal.Decimal
}

// ArrearsDistribution buckets the active book by estimated days in arrears
type ArrearsDistribution struct {
	AsOf    time.Time
	Buckets []ArrearsBucketRow
}
