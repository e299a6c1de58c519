package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"inphora/events"
	"inphora/models"
)

// ClientRepository defines the interface for client data access
type ClientRepository interface {
	// Create inserts a new client
	Create(ctx context.Context, client *models.Client) error

	// GetByID retrieves a client by id
	GetByID(ctx context.Context, id int64) (*models.Client, error)

	// GetByPhone retrieves a client by exact phone match
	GetByPhone(ctx context.Context, phone string) (*models.Client, error)

	// GetByPhoneSuffix retrieves clients whose phone ends with the given digits
	GetByPhoneSuffix(ctx context.Context, suffix string) ([]*models.Client, error)

	// Update replaces the client's mutable fields
	Update(ctx context.Context, client *models.Client) error

	// List returns clients ordered by creation, newest first
	List(ctx context.Context, limit, offset int) ([]*models.Client, error)
}

// LoanProductRepository defines the interface for loan product data access
type LoanProductRepository interface {
	// Create inserts a new product
	Create(ctx context.Context, product *models.LoanProduct) error

	// GetByID retrieves a product by id
	GetByID(ctx context.Context, id int64) (*models.LoanProduct, error)

	// Update replaces the product's terms
	Update(ctx context.Context, product *models.LoanProduct) error

	// List returns all products
	List(ctx context.Context) ([]*models.LoanProduct, error)
}

// LoanRepository defines the interface for loan data access
type LoanRepository interface {
	// Create inserts a new loan with its term and fee snapshot
	Create(ctx context.Context, loan *models.Loan) error

	// GetByID retrieves a loan by id
	GetByID(ctx context.Context, id int64) (*models.Loan, error)

	// GetByClient returns a client's loans, newest first
	GetByClient(ctx context.Context, clientID int64) ([]*models.Loan, error)

	// GetByStatus returns loans in the given status
	GetByStatus(ctx context.Context, status models.LoanStatus) ([]*models.Loan, error)

	// List returns all loans, newest first
	List(ctx context.Context) ([]*models.Loan, error)

	// HasOpenLoan reports whether the client has a loan that is pending,
	// approved or active
	HasOpenLoan(ctx context.Context, clientID int64) (bool, error)

	// UpdateStatus transitions a loan from one status to another. Returns
	// a conflict error when the loan is no longer in expected.
	UpdateStatus(ctx context.Context, loanID int64, expected, next models.LoanStatus) error

	// AdvanceApprovalLevel moves a pending loan's approval pointer from
	// level to level+1. Returns a conflict error when the loan is not
	// pending at that level.
	AdvanceApprovalLevel(ctx context.Context, loanID int64, level int) error

	// Approve marks a pending loan at the given level approved, recording
	// the approver. Returns a conflict error when the loan is not pending
	// at that level.
	Approve(ctx context.Context, loanID int64, level int, approvedBy int64) error

	// Reject marks a pending loan at the given level rejected with a reason.
	// Returns a conflict error when the loan is not pending at that level.
	Reject(ctx context.Context, loanID int64, level int, reason string) error

	// RecordApproval appends one approver's decision
	RecordApproval(ctx context.Context, approval *models.LoanApproval) error

	// GetApprovals returns a loan's approval history in level order
	GetApprovals(ctx context.Context, loanID int64) ([]*models.LoanApproval, error)
}

// LoanPartyRepository defines the interface for a loan's supporting records
type LoanPartyRepository interface {
	// AddGuarantor attaches a guarantor to a loan
	AddGuarantor(ctx context.Context, guarantor *models.Guarantor) error

	// AddCollateral attaches a collateral item to a loan
	AddCollateral(ctx context.Context, collateral *models.Collateral) error

	// AddReferee attaches a referee to a loan
	AddReferee(ctx context.Context, referee *models.Referee) error

	// SetFinancialAnalysis upserts the loan's single financial analysis
	SetFinancialAnalysis(ctx context.Context, analysis *models.FinancialAnalysis) error

	// GetGuarantors returns a loan's guarantors
	GetGuarantors(ctx context.Context, loanID int64) ([]*models.Guarantor, error)

	// GetCollateral returns a loan's collateral items
	GetCollateral(ctx context.Context, loanID int64) ([]*models.Collateral, error)

	// GetFinancialAnalysis returns the loan's analysis, or nil
	GetFinancialAnalysis(ctx context.Context, loanID int64) (*models.FinancialAnalysis, error)
}

// RepaymentRepository defines the interface for repayment data access
type RepaymentRepository interface {
	// Create inserts a repayment record
	Create(ctx context.Context, repayment *models.Repayment) error

	// GetByLoan returns a loan's repayments in payment order
	GetByLoan(ctx context.Context, loanID int64) ([]*models.Repayment, error)

	// TotalRepaid sums the amounts repaid against a loan
	TotalRepaid(ctx context.Context, loanID int64) (decimal.Decimal, error)
}

// DisbursementRepository defines the interface for disbursement data access
type DisbursementRepository interface {
	// Create inserts a disbursement attempt. Returns a conflict error when
	// the loan already has an open attempt.
	Create(ctx context.Context, tx *models.DisbursementTransaction) error

	// GetByID retrieves a disbursement by id
	GetByID(ctx context.Context, id int64) (*models.DisbursementTransaction, error)

	// GetByCorrelationID retrieves a disbursement by its callback
	// correlation id, or nil when none matches
	GetByCorrelationID(ctx context.Context, correlationID string) (*models.DisbursementTransaction, error)

	// GetByLoan returns a loan's disbursement attempts, newest first
	GetByLoan(ctx context.Context, loanID int64) ([]*models.DisbursementTransaction, error)

	// UpdateStatus transitions an attempt from one status to another.
	// Returns a conflict error when the attempt is no longer in expected.
	UpdateStatus(ctx context.Context, id int64, expected, next models.DisbursementStatus) error

	// MarkCompleted finalizes a processing attempt with the provider's
	// transaction reference
	MarkCompleted(ctx context.Context, id int64, externalID, resultCode, resultDesc string) error

	// MarkFailed finalizes an attempt with the provider's failure detail
	MarkFailed(ctx context.Context, id int64, resultCode, errorMessage string) error
}

// MpesaRepository defines the interface for inbound payment notifications
type MpesaRepository interface {
	// Create inserts a notification. Returns a conflict error when the
	// external transaction id was already recorded.
	Create(ctx context.Context, tx *models.MpesaIncomingTransaction) error

	// GetByID retrieves a notification by id
	GetByID(ctx context.Context, id int64) (*models.MpesaIncomingTransaction, error)

	// GetByTransactionID retrieves a notification by its external id, or nil
	GetByTransactionID(ctx context.Context, transactionID string) (*models.MpesaIncomingTransaction, error)

	// MarkMatched links an unmatched notification to the repayment it
	// settled. Returns a conflict error when it is no longer unmatched.
	MarkMatched(ctx context.Context, id int64, clientID, loanID, repaymentID int64) error

	// MarkRegistrationMatched marks a notification matched to a
	// registration fee, which links to no loan
	MarkRegistrationMatched(ctx context.Context, id int64) error

	// MarkInvalid flags a notification that cannot be applied
	MarkInvalid(ctx context.Context, id int64) error

	// ListUnmatched returns notifications awaiting reconciliation
	ListUnmatched(ctx context.Context) ([]*models.MpesaIncomingTransaction, error)
}

// RegistrationRepository defines the interface for onboarding applications
type RegistrationRepository interface {
	// Create inserts a new application
	Create(ctx context.Context, app *models.RegistrationApplication) error

	// GetByID retrieves an application by id
	GetByID(ctx context.Context, id int64) (*models.RegistrationApplication, error)

	// MarkPaid records the applicant's fee payment. Returns a conflict
	// error when the application is not pending.
	MarkPaid(ctx context.Context, id int64, amount decimal.Decimal, paymentRef string) error

	// UpdateStatus transitions an application between review states
	UpdateStatus(ctx context.Context, id int64, expected, next models.RegistrationStatus) error

	// ListByStatus returns applications in the given status
	ListByStatus(ctx context.Context, status models.RegistrationStatus) ([]*models.RegistrationApplication, error)
}

// UserRepository defines the interface for back-office user data access
type UserRepository interface {
	// Create inserts a new user
	Create(ctx context.Context, user *models.User) error

	// GetByID retrieves a user by id
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// GetByEmail retrieves a user by email, or nil when none exists
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// RecordLogin stamps the user's last login time
	RecordLogin(ctx context.Context, id int64, at time.Time) error

	// ListByMinimumRole returns active users holding at least the role
	ListByMinimumRole(ctx context.Context, role models.Role) ([]*models.User, error)
}

// NotificationRepository defines the interface for in-app notifications
type NotificationRepository interface {
	// Create inserts a notification
	Create(ctx context.Context, notification *models.Notification) error

	// GetByUser returns a user's notifications, newest first
	GetByUser(ctx context.Context, userID int64, unreadOnly bool) ([]*models.Notification, error)

	// MarkRead marks a notification read
	MarkRead(ctx context.Context, id, userID int64) error
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	// Publish queues an event for delivery after the transaction commits
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and flushes queued events
	Commit() error

	// Rollback rolls back the transaction and discards queued events
	Rollback() error

	ClientRepository() ClientRepository
	LoanProductRepository() LoanProductRepository
	LoanRepository() LoanRepository
	LoanPartyRepository() LoanPartyRepository
	RepaymentRepository() RepaymentRepository
	DisbursementRepository() DisbursementRepository
	MpesaRepository() MpesaRepository
	RegistrationRepository() RegistrationRepository
	UserRepository() UserRepository
	NotificationRepository() NotificationRepository

	// EventBus returns the transactional event bus for this unit of work
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	// Create creates a new UnitOfWork instance
	Create() UnitOfWork
}

// LoanService defines the interface for loan lifecycle operations
type LoanService interface {
	// CreateLoan validates a request against its product and creates a
	// pending loan with the product's terms snapshotted
	CreateLoan(ctx context.Context, req CreateLoanRequest) (*models.Loan, error)

	// GetLoan returns a loan with its computed schedule and balance
	GetLoan(ctx context.Context, loanID int64) (*LoanDetail, error)

	// ApproveLoan records an approval at the loan's current level,
	// advancing it or activating final approval
	ApproveLoan(ctx context.Context, loanID, approverID int64, notes string) (*models.Loan, error)

	// RejectLoan rejects a pending loan with a reason
	RejectLoan(ctx context.Context, loanID, approverID int64, reason string) (*models.Loan, error)

	// RecordRepayment applies a manual repayment to an active loan
	RecordRepayment(ctx context.Context, req RecordRepaymentRequest) (*models.Repayment, error)

	// ListLoans returns loans filtered by status, or all when empty
	ListLoans(ctx context.Context, status models.LoanStatus) ([]*models.Loan, error)
}

// DisbursementService defines the interface for releasing approved funds
type DisbursementService interface {
	// Disburse initiates a funds release for an approved loan over the
	// requested rail
	Disburse(ctx context.Context, req DisburseRequest) (*models.DisbursementTransaction, error)

	// HandleB2CResult applies an asynchronous payout result callback,
	// matched solely by correlation id. Unmatched callbacks are logged
	// and ignored.
	HandleB2CResult(ctx context.Context, result B2CResult) error
}

// ReconciliationService defines the interface for settling inbound payments
type ReconciliationService interface {
	// HandleC2BPayment records an inbound paybill payment and attempts to
	// match it to a registration or a loan
	HandleC2BPayment(ctx context.Context, payment C2BPayment) error

	// HandleSTKCallback applies the outcome of a collection prompt
	HandleSTKCallback(ctx context.Context, callback STKCallback) error

	// ManualReconcile applies an unmatched notification to a loan chosen
	// by an operator
	ManualReconcile(ctx context.Context, incomingID, loanID, operatorID int64) error

	// InvalidatePayment flags an unmatched notification that can never
	// be applied
	InvalidatePayment(ctx context.Context, incomingID, operatorID int64) error

	// ListUnmatched returns payments awaiting manual reconciliation
	ListUnmatched(ctx context.Context) ([]*models.MpesaIncomingTransaction, error)
}

// RegistrationService defines the interface for self-service onboarding
type RegistrationService interface {
	// SubmitApplication records a prospective client's application and
	// returns it with the billing reference to pay against
	SubmitApplication(ctx context.Context, req SubmitRegistrationRequest) (*models.RegistrationApplication, error)

	// RequestFeePayment pushes a payment prompt for the registration fee
	RequestFeePayment(ctx context.Context, applicationID int64) error

	// ApproveApplication converts a paid application into a client
	ApproveApplication(ctx context.Context, applicationID, reviewerID int64) (*models.Client, error)

	// RejectApplication rejects a pending or paid application
	RejectApplication(ctx context.Context, applicationID, reviewerID int64) error
}

// ClientService defines the interface for client directory operations
type ClientService interface {
	// GetClient returns a client by id
	GetClient(ctx context.Context, clientID int64) (*models.Client, error)

	// ListClients pages through the client directory
	ListClients(ctx context.Context, limit, offset int) ([]*models.Client, error)

	// UpdateClient replaces a client's contact and payout details
	UpdateClient(ctx context.Context, req UpdateClientRequest) (*models.Client, error)

	// ClientLoans returns a client's loans, newest first
	ClientLoans(ctx context.Context, clientID int64) ([]*models.Loan, error)
}

// LoanProductService defines the interface for product administration
type LoanProductService interface {
	// CreateProduct validates and inserts a product
	CreateProduct(ctx context.Context, product *models.LoanProduct) error

	// UpdateProduct validates and replaces a product's terms. Existing
	// loans keep the terms snapshotted at their creation.
	UpdateProduct(ctx context.Context, product *models.LoanProduct) error

	// GetProduct returns a product by id
	GetProduct(ctx context.Context, productID int64) (*models.LoanProduct, error)

	// ListProducts returns all products
	ListProducts(ctx context.Context) ([]*models.LoanProduct, error)
}

// NotificationService defines the interface for in-app notification reads
type NotificationService interface {
	// ListForUser returns a user's notifications, newest first
	ListForUser(ctx context.Context, userID int64, unreadOnly bool) ([]*models.Notification, error)

	// MarkRead marks one of the user's notifications read
	MarkRead(ctx context.Context, notificationID, userID int64) error
}

// AuthService defines the interface for back-office authentication
type AuthService interface {
	// Login verifies credentials and issues a signed token
	Login(ctx context.Context, email, password string) (*LoginResult, error)

	// Logout revokes a token for the remainder of its lifetime
	Logout(ctx context.Context, tokenID string, expiresAt time.Time) error

	// ParseToken validates a token and checks the revocation list
	ParseToken(ctx context.Context, tokenString string) (*Claims, error)

	// CreateUser registers a back-office user
	CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error)
}

// ReportService defines the interface for portfolio reporting
type ReportService interface {
	// PortfolioSummary aggregates the book as of a date
	PortfolioSummary(ctx context.Context, asOf time.Time) (*PortfolioSummary, error)

	// ArrearsDistribution buckets active loans by estimated days in arrears
	ArrearsDistribution(ctx context.Context, asOf time.Time) (*ArrearsDistribution, error)
}
