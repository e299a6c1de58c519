package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"inphora/events"
	"inphora/gateway"
	"inphora/models"
)

// MockClientRepository is a mock implementation of ClientRepository
type MockClientRepository struct {
	mock.Mock
}

func (m *MockClientRepository) Create(ctx context.Context, client *models.Client) error {
	args := m.Called(ctx, client)
	return args.Error(0)
}

func (m *MockClientRepository) GetByID(ctx context.Context, id int64) (*models.Client, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Client), args.Error(1)
}

func (m *MockClientRepository) GetByPhone(ctx context.Context, phone string) (*models.Client, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Client), args.Error(1)
}

func (m *MockClientRepository) GetByPhoneSuffix(ctx context.Context, suffix string) ([]*models.Client, error) {
	args := m.Called(ctx, suffix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Client), args.Error(1)
}

func (m *MockClientRepository) Update(ctx context.Context, client *models.Client) error {
	args := m.Called(ctx, client)
	return args.Error(0)
}

func (m *MockClientRepository) List(ctx context.Context, limit, offset int) ([]*models.Client, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Client), args.Error(1)
}

// MockLoanProductRepository is a mock implementation of LoanProductRepository
type MockLoanProductRepository struct {
	mock.Mock
}

func (m *MockLoanProductRepository) Create(ctx context.Context, product *models.LoanProduct) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockLoanProductRepository) GetByID(ctx context.Context, id int64) (*models.LoanProduct, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LoanProduct), args.Error(1)
}

func (m *MockLoanProductRepository) Update(ctx context.Context, product *models.LoanProduct) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockLoanProductRepository) List(ctx context.Context) ([]*models.LoanProduct, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LoanProduct), args.Error(1)
}

// MockLoanRepository is a mock implementation of LoanRepository
type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) Create(ctx context.Context, loan *models.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

func (m *MockLoanRepository) GetByID(ctx context.Context, id int64) (*models.Loan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Loan), args.Error(1)
}

func (m *MockLoanRepository) GetByClient(ctx context.Context, clientID int64) ([]*models.Loan, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Loan), args.Error(1)
}

func (m *MockLoanRepository) GetByStatus(ctx context.Context, status models.LoanStatus) ([]*models.Loan, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Loan), args.Error(1)
}

func (m *MockLoanRepository) List(ctx context.Context) ([]*models.Loan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Loan), args.Error(1)
}

func (m *MockLoanRepository) HasOpenLoan(ctx context.Context, clientID int64) (bool, error) {
	args := m.Called(ctx, clientID)
	return args.Bool(0), args.Error(1)
}

func (m *MockLoanRepository) UpdateStatus(ctx context.Context, loanID int64, expected, next models.LoanStatus) error {
	args := m.Called(ctx, loanID, expected, next)
	return args.Error(0)
}

func (m *MockLoanRepository) AdvanceApprovalLevel(ctx context.Context, loanID int64, level int) error {
	args := m.Called(ctx, loanID, level)
	return args.Error(0)
}

func (m *MockLoanRepository) Approve(ctx context.Context, loanID int64, level int, approvedBy int64) error {
	args := m.Called(ctx, loanID, level, approvedBy)
	return args.Error(0)
}

func (m *MockLoanRepository) Reject(ctx context.Context, loanID int64, level int, reason string) error {
	args := m.Called(ctx, loanID, level, reason)
	return args.Error(0)
}

func (m *MockLoanRepository) RecordApproval(ctx context.Context, approval *models.LoanApproval) error {
	args := m.Called(ctx, approval)
	return args.Error(0)
}

func (m *MockLoanRepository) GetApprovals(ctx context.Context, loanID int64) ([]*models.LoanApproval, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LoanApproval), args.Error(1)
}

// MockLoanPartyRepository is a mock implementation of LoanPartyRepository
type MockLoanPartyRepository struct {
	mock.Mock
}

func (m *MockLoanPartyRepository) AddGuarantor(ctx context.Context, guarantor *models.Guarantor) error {
	args := m.Called(ctx, guarantor)
	return args.Error(0)
}

func (m *MockLoanPartyRepository) AddCollateral(ctx context.Context, collateral *models.Collateral) error {
	args := m.Called(ctx, collateral)
	return args.Error(0)
}

func (m *MockLoanPartyRepository) AddReferee(ctx context.Context, referee *models.Referee) error {
	args := m.Called(ctx, referee)
	return args.Error(0)
}

func (m *MockLoanPartyRepository) SetFinancialAnalysis(ctx context.Context, analysis *models.FinancialAnalysis) error {
	args := m.Called(ctx, analysis)
	return args.Error(0)
}

func (m *MockLoanPartyRepository) GetGuarantors(ctx context.Context, loanID int64) ([]*models.Guarantor, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Guarantor), args.Error(1)
}

func (m *MockLoanPartyRepository) GetCollateral(ctx context.Context, loanID int64) ([]*models.Collateral, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Collateral), args.Error(1)
}

func (m *MockLoanPartyRepository) GetFinancialAnalysis(ctx context.Context, loanID int64) (*models.FinancialAnalysis, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FinancialAnalysis), args.Error(1)
}

// MockRepaymentRepository is a mock implementation of RepaymentRepository
type MockRepaymentRepository struct {
	mock.Mock
}

func (m *MockRepaymentRepository) Create(ctx context.Context, repayment *models.Repayment) error {
	args := m.Called(ctx, repayment)
	return args.Error(0)
}

func (m *MockRepaymentRepository) GetByLoan(ctx context.Context, loanID int64) ([]*models.Repayment, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Repayment), args.Error(1)
}

func (m *MockRepaymentRepository) TotalRepaid(ctx context.Context, loanID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, loanID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockDisbursementRepository is a mock implementation of DisbursementRepository
type MockDisbursementRepository struct {
	mock.Mock
}

func (m *MockDisbursementRepository) Create(ctx context.Context, tx *models.DisbursementTransaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockDisbursementRepository) GetByID(ctx context.Context, id int64) (*models.DisbursementTransaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DisbursementTransaction), args.Error(1)
}

func (m *MockDisbursementRepository) GetByCorrelationID(ctx context.Context, correlationID string) (*models.DisbursementTransaction, error) {
	args := m.Called(ctx, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DisbursementTransaction), args.Error(1)
}

func (m *MockDisbursementRepository) GetByLoan(ctx context.Context, loanID int64) ([]*models.DisbursementTransaction, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.DisbursementTransaction), args.Error(1)
}

func (m *MockDisbursementRepository) UpdateStatus(ctx context.Context, id int64, expected, next models.DisbursementStatus) error {
	args := m.Called(ctx, id, expected, next)
	return args.Error(0)
}

func (m *MockDisbursementRepository) MarkCompleted(ctx context.Context, id int64, externalID, resultCode, resultDesc string) error {
	args := m.Called(ctx, id, externalID, resultCode, resultDesc)
	return args.Error(0)
}

func (m *MockDisbursementRepository) MarkFailed(ctx context.Context, id int64, resultCode, errorMessage string) error {
	args := m.Called(ctx, id, resultCode, errorMessage)
	return args.Error(0)
}

// MockMpesaRepository is a mock implementation of MpesaRepository
type MockMpesaRepository struct {
	mock.Mock
}

func (m *MockMpesaRepository) Create(ctx context.Context, tx *models.MpesaIncomingTransaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockMpesaRepository) GetByID(ctx context.Context, id int64) (*models.MpesaIncomingTransaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MpesaIncomingTransaction), args.Error(1)
}

func (m *MockMpesaRepository) GetByTransactionID(ctx context.Context, transactionID string) (*models.MpesaIncomingTransaction, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MpesaIncomingTransaction), args.Error(1)
}

func (m *MockMpesaRepository) MarkMatched(ctx context.Context, id int64, clientID, loanID, repaymentID int64) error {
	args := m.Called(ctx, id, clientID, loanID, repaymentID)
	return args.Error(0)
}

func (m *MockMpesaRepository) MarkRegistrationMatched(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockMpesaRepository) MarkInvalid(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockMpesaRepository) ListUnmatched(ctx context.Context) ([]*models.MpesaIncomingTransaction, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.MpesaIncomingTransaction), args.Error(1)
}

// MockRegistrationRepository is a mock implementation of RegistrationRepository
type MockRegistrationRepository struct {
	mock.Mock
}

func (m *MockRegistrationRepository) Create(ctx context.Context, app *models.RegistrationApplication) error {
	args := m.Called(ctx, app)
	return args.Error(0)
}

func (m *MockRegistrationRepository) GetByID(ctx context.Context, id int64) (*models.RegistrationApplication, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RegistrationApplication), args.Error(1)
}

func (m *MockRegistrationRepository) MarkPaid(ctx context.Context, id int64, amount decimal.Decimal, paymentRef string) error {
	args := m.Called(ctx, id, amount, paymentRef)
	return args.Error(0)
}

func (m *MockRegistrationRepository) UpdateStatus(ctx context.Context, id int64, expected, next models.RegistrationStatus) error {
	args := m.Called(ctx, id, expected, next)
	return args.Error(0)
}

func (m *MockRegistrationRepository) ListByStatus(ctx context.Context, status models.RegistrationStatus) ([]*models.RegistrationApplication, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RegistrationApplication), args.Error(1)
}

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) RecordLogin(ctx context.Context, id int64, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockUserRepository) ListByMinimumRole(ctx context.Context, role models.Role) ([]*models.User, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

// MockNotificationRepository is a mock implementation of NotificationRepository
type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	args := m.Called(ctx, notification)
	return args.Error(0)
}

func (m *MockNotificationRepository) GetByUser(ctx context.Context, userID int64, unreadOnly bool) ([]*models.Notification, error) {
	args := m.Called(ctx, userID, unreadOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Notification), args.Error(1)
}

func (m *MockNotificationRepository) MarkRead(ctx context.Context, id, userID int64) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

// MockEventPublisher records events published inside a unit of work
type MockEventPublisher struct {
	Events []events.Event
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Events = append(m.Events, event)
}

// MockMpesaClient is a mock implementation of gateway.MpesaClient
type MockMpesaClient struct {
	mock.Mock
}

func (m *MockMpesaClient) SendB2C(ctx context.Context, req gateway.B2CRequest) (*gateway.B2CResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.B2CResponse), args.Error(1)
}

func (m *MockMpesaClient) STKPush(ctx context.Context, req gateway.STKRequest) (*gateway.STKResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.STKResponse), args.Error(1)
}

// MockUnitOfWork wires the repository mocks behind the UnitOfWork interface
type MockUnitOfWork struct {
	ClientRepo       *MockClientRepository
	ProductRepo      *MockLoanProductRepository
	LoanRepo         *MockLoanRepository
	PartyRepo        *MockLoanPartyRepository
	RepaymentRepo    *MockRepaymentRepository
	DisbursementRepo *MockDisbursementRepository
	MpesaRepo        *MockMpesaRepository
	RegistrationRepo *MockRegistrationRepository
	UserRepo         *MockUserRepository
	NotificationRepo *MockNotificationRepository
	Publisher        *MockEventPublisher

	Began      bool
	Committed  bool
	RolledBack bool
}

// NewMockUnitOfWork creates a unit of work with every repository mocked
func NewMockUnitOfWork() *MockUnitOfWork {
	return &MockUnitOfWork{
		ClientRepo:       &MockClientRepository{},
		ProductRepo:      &MockLoanProductRepository{},
		LoanRepo:         &MockLoanRepository{},
		PartyRepo:        &MockLoanPartyRepository{},
		RepaymentRepo:    &MockRepaymentRepository{},
		DisbursementRepo: &MockDisbursementRepository{},
		MpesaRepo:        &MockMpesaRepository{},
		RegistrationRepo: &MockRegistrationRepository{},
		UserRepo:         &MockUserRepository{},
		NotificationRepo: &MockNotificationRepository{},
		Publisher:        &MockEventPublisher{},
	}
}

func (u *MockUnitOfWork) Begin(ctx context.Context) error {
	u.Began = true
	return nil
}

func (u *MockUnitOfWork) Commit() error {
	u.Committed = true
	return nil
}

func (u *MockUnitOfWork) Rollback() error {
	if !u.Committed {
		u.RolledBack = true
	}
	return nil
}

func (u *MockUnitOfWork) ClientRepository() ClientRepository             { return u.ClientRepo }
func (u *MockUnitOfWork) LoanProductRepository() LoanProductRepository   { return u.ProductRepo }
func (u *MockUnitOfWork) LoanRepository() LoanRepository                 { return u.LoanRepo }
func (u *MockUnitOfWork) LoanPartyRepository() LoanPartyRepository       { return u.PartyRepo }
func (u *MockUnitOfWork) RepaymentRepository() RepaymentRepository       { return u.RepaymentRepo }
func (u *MockUnitOfWork) DisbursementRepository() DisbursementRepository { return u.DisbursementRepo }
func (u *MockUnitOfWork) MpesaRepository() MpesaRepository               { return u.MpesaRepo }
func (u *MockUnitOfWork) RegistrationRepository() RegistrationRepository { return u.RegistrationRepo }
func (u *MockUnitOfWork) UserRepository() UserRepository                 { return u.UserRepo }
func (u *MockUnitOfWork) NotificationRepository() NotificationRepository { return u.NotificationRepo }
func (u *MockUnitOfWork) EventBus() EventPublisher                       { return u.Publisher }

// MockUnitOfWorkFactory hands out a fixed sequence of units of work. When
// the sequence is exhausted it keeps returning the last one.
type MockUnitOfWorkFactory struct {
	Units []*MockUnitOfWork
	next  int
}

// NewMockUnitOfWorkFactory creates a factory over the given units
func NewMockUnitOfWorkFactory(units ...*MockUnitOfWork) *MockUnitOfWorkFactory {
	return &MockUnitOfWorkFactory{Units: units}
}

func (f *MockUnitOfWorkFactory) Create() UnitOfWork {
	if f.next >= len(f.Units) {
		return f.Units[len(f.Units)-1]
	}
	uow := f.Units[f.next]
	f.next++
	return uow
}
