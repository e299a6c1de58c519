package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"inphora/cache"
	"inphora/errs"
	"inphora/events"
	"inphora/models"
)

func expectIncomingCreate(uow *MockUnitOfWork, id int64) {
	uow.MpesaRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.MpesaIncomingTransaction")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*models.MpesaIncomingTransaction).ID = id
		}).Return(nil)
}

func TestReconciliationService_HandleC2BPayment_RegistrationReference(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	svc := NewReconciliationService(NewMockUnitOfWorkFactory(uow), cache.NewMemoryStore())

	expectIncomingCreate(uow, 11)
	uow.RegistrationRepo.On("GetByID", ctx, int64(42)).Return(&models.RegistrationApplication{
		ID:     42,
		Status: models.RegistrationStatusPending,
	}, nil)
	uow.RegistrationRepo.On("MarkPaid", ctx, int64(42), decimal.NewFromInt(500), "SGH7KLM2RT").Return(nil)
	uow.MpesaRepo.On("MarkRegistrationMatched", ctx, int64(11)).Return(nil)

	err := svc.HandleC2BPayment(ctx, C2BPayment{
		TransactionID: "SGH7KLM2RT",
		Amount:        decimal.NewFromInt(500),
		Phone:         "254712345678",
		BillRef:       "REG000042",
	})

	require.NoError(t, err)
	assert.True(t, uow.Committed)

	require.Len(t, uow.Publisher.Events, 1)
	event := uow.Publisher.Events[0].(events.RegistrationPaidEvent)
	assert.Equal(t, int64(42), event.ApplicationID)
}

func TestReconciliationService_HandleC2BPayment_LoanIDReference(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	svc := NewReconciliationService(NewMockUnitOfWorkFactory(uow), cache.NewMemoryStore())

	expectIncomingCreate(uow, 11)
	uow.LoanRepo.On("GetByID", ctx, int64(42)).Return(activeLoan(), nil)
	uow.RepaymentRepo.On("Create", ctx, mock.MatchedBy(func(r *models.Repayment) bool {
		return r.LoanID == 42 &&
			r.PaymentMethod == models.PaymentMethodMpesa &&
			r.ExternalTransactionID != nil && *r.ExternalTransactionID == "SGH7KLM2RT"
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Repayment).ID = 5
	}).Return(nil)
	uow.RepaymentRepo.On("TotalRepaid", ctx, int64(42)).Return(decimal.NewFromInt(2000), nil)
	uow.MpesaRepo.On("MarkMatched", ctx, int64(11), int64(7), int64(42), int64(5)).Return(nil)

	err := svc.HandleC2BPayment(ctx, C2BPayment{
		TransactionID: "SGH7KLM2RT",
		Amount:        decimal.NewFromInt(2000),
		Phone:         "254712345678",
		BillRef:       "42",
	})

	require.NoError(t, err)
	require.Len(t, uow.Publisher.Events, 2)
	matched := uow.Publisher.Events[1].(events.PaymentMatchedEvent)
	assert.Equal(t, int64(42), matched.LoanID)
	assert.False(t, matched.Manual)
}

func TestReconciliationService_HandleC2BPayment_PhoneSuffixFallback(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	svc := NewReconciliationService(NewMockUnitOfWorkFactory(uow), cache.NewMemoryStore())

	expectIncomingCreate(uow, 11)
	// "+254712345678" and "0712345678" share the trailing nine digits
	uow.ClientRepo.On("GetByPhoneSuffix", ctx, "712345678").
		Return([]*models.Client{testActiveClient()}, nil)
	uow.LoanRepo.On("GetByClient", ctx, int64(7)).Return([]*models.Loan{
		{ID: 41, ClientID: 7, Status: models.LoanStatusCompleted},
		activeLoan(),
	}, nil)
	uow.LoanRepo.On("GetByID", ctx, int64(42)).Return(activeLoan(), nil)
	uow.RepaymentRepo.On("Create", ctx, mock.AnythingOfType("*models.Repayment")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*models.Repayment).ID = 5
		}).Return(nil)
	uow.RepaymentRepo.On("TotalRepaid", ctx, int64(42)).Return(decimal.NewFromInt(2000), nil)
	uow.MpesaRepo.On("MarkMatched", ctx, int64(11), int64(7), int64(42), int64(5)).Return(nil)

	err := svc.HandleC2BPayment(ctx, C2BPayment{
		TransactionID: "SGH7KLM2RT",
		Amount:        decimal.NewFromInt(2000),
		Phone:         "+254712345678",
	})

	require.NoError(t, err)
	uow.MpesaRepo.AssertExpectations(t)
}

func TestReconciliationService_HandleC2BPayment_AmbiguousPhoneLeftUnmatched(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	svc := NewReconciliationService(NewMockUnitOfWorkFactory(uow), cache.NewMemoryStore())

	expectIncomingCreate(uow, 11)
	uow.ClientRepo.On("GetByPhoneSuffix", ctx, "712345678").
		Return([]*models.Client{{ID: 7}, {ID: 8}}, nil)

	err := svc.HandleC2BPayment(ctx, C2BPayment{
		TransactionID: "SGH7KLM2RT",
		Amount:        decimal.NewFromInt(2000),
		Phone:         "0712345678",
	})

	require.NoError(t, err)
	assert.True(t, uow.Committed)
	uow.MpesaRepo.AssertNotCalled(t, "MarkMatched", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	uow.RepaymentRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestReconciliationService_HandleC2BPayment_InactiveLoanLeftUnmatched(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	svc := NewReconciliationService(NewMockUnitOfWorkFactory(uow), cache.NewMemoryStore())

	expectIncomingCreate(uow, 11)
	loan := activeLoan()
	loan.Status = models.LoanStatusPending
	uow.LoanRepo.On("GetByID", ctx, int64(42)).Return(loan, nil)

	err := svc.HandleC2BPayment(ctx, C2BPayment{
		TransactionID: "SGH7KLM2RT",
		Amount:        decimal.NewFromInt(2000),
		Phone:         "254712345678",
		BillRef:       "42",
	})

	require.NoError(t, err)
	uow.RepaymentRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestReconciliationService_HandleC2BPayment_DuplicateReplayIgnored(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	svc := NewReconciliationService(NewMockUnitOfWorkFactory(uow), cache.NewMemoryStore())

	uow.MpesaRepo.On("Create", ctx, mock.AnythingOfType("*models.MpesaIncomingTransaction")).
		Return(errs.NewConflict("transaction already recorded"))

	err := svc.HandleC2BPayment(ctx, C2BPayment{
		TransactionID: "SGH7KLM2RT",
		Amount:        decimal.NewFromInt(2000),
		Phone:         "254712345678",
		BillRef:       "42",
	})

	require.NoError(t, err)
	uow.LoanRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	uow.RepaymentRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestReconciliationService_HandleSTKCallback_UsesCachedPromptReference(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	store := cache.NewMemoryStore()
	svc := NewReconciliationService(NewMockUnitOfWorkFactory(uow), store)

	require.NoError(t, store.Set(ctx, "stk:ws_CO_1", "REG000042", 15*time.Minute))

	expectIncomingCreate(uow, 11)
	uow.RegistrationRepo.On("GetByID", ctx, int64(42)).Return(&models.RegistrationApplication{
		ID:     42,
		Status: models.RegistrationStatusPending,
	}, nil)
	uow.RegistrationRepo.On("MarkPaid", ctx, int64(42), decimal.NewFromInt(500), "SGH7KLM2RT").Return(nil)
	uow.MpesaRepo.On("MarkRegistrationMatched", ctx, int64(11)).Return(nil)

	err := svc.HandleSTKCallback(ctx, STKCallback{
		CheckoutRequestID: "ws_CO_1",
		ResultCode:        0,
		TransactionID:     "SGH7KLM2RT",
		Amount:            decimal.NewFromInt(500),
		Phone:             "254712345678",
	})

	require.NoError(t, err)
	uow.RegistrationRepo.AssertExpectations(t)
}

func TestReconciliationService_HandleSTKCallback_DeclinedPromptIsNoop(t *testing.T) {
	uow := NewMockUnitOfWork()
	svc := NewReconciliationService(NewMockUnitOfWorkFactory(uow), cache.NewMemoryStore())

	err := svc.HandleSTKCallback(context.Background(), STKCallback{
		CheckoutRequestID: "ws_CO_1",
		ResultCode:        1032,
	})

	require.NoError(t, err)
	uow.MpesaRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestReconciliationService_ManualReconcile(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	svc := NewReconciliationService(NewMockUnitOfWorkFactory(uow), cache.NewMemoryStore())

	incoming := &models.MpesaIncomingTransaction{
		ID:            11,
		TransactionID: "SGH7KLM2RT",
		Amount:        decimal.NewFromInt(2000),
		Status:        models.IncomingStatusUnmatched,
		CreatedAt:     time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC),
	}
	uow.MpesaRepo.On("GetByID", ctx, int64(11)).Return(incoming, nil)
	uow.LoanRepo.On("GetByID", ctx, int64(42)).Return(activeLoan(), nil)
	uow.RepaymentRepo.On("Create", ctx, mock.AnythingOfType("*models.Repayment")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*models.Repayment).ID = 5
		}).Return(nil)
	uow.RepaymentRepo.On("TotalRepaid", ctx, int64(42)).Return(decimal.NewFromInt(2000), nil)
	uow.MpesaRepo.On("MarkMatched", ctx, int64(11), int64(7), int64(42), int64(5)).Return(nil)

	err := svc.ManualReconcile(ctx, 11, 42, 9)

	require.NoError(t, err)
	assert.True(t, uow.Committed)

	require.Len(t, uow.Publisher.Events, 2)
	matched := uow.Publisher.Events[1].(events.PaymentMatchedEvent)
	assert.True(t, matched.Manual)
}

func TestReconciliationService_ManualReconcile_RejectsSettledNotification(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	svc := NewReconciliationService(NewMockUnitOfWorkFactory(uow), cache.NewMemoryStore())

	uow.MpesaRepo.On("GetByID", ctx, int64(11)).Return(&models.MpesaIncomingTransaction{
		ID:     11,
		Status: models.IncomingStatusMatched,
	}, nil)

	err := svc.ManualReconcile(ctx, 11, 42, 9)

	assert.True(t, errs.IsConflict(err))
}

func TestReconciliationService_InvalidatePayment(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	svc := NewReconciliationService(NewMockUnitOfWorkFactory(uow), cache.NewMemoryStore())

	uow.MpesaRepo.On("MarkInvalid", ctx, int64(11)).Return(nil)

	err := svc.InvalidatePayment(ctx, 11, 9)

	require.NoError(t, err)
	assert.True(t, uow.Committed)
	uow.MpesaRepo.AssertExpectations(t)
}

func TestReconciliationService_InvalidatePayment_RejectsSettledNotification(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	svc := NewReconciliationService(NewMockUnitOfWorkFactory(uow), cache.NewMemoryStore())

	uow.MpesaRepo.On("MarkInvalid", ctx, int64(11)).
		Return(errs.NewConflict("incoming transaction 11 is not unmatched"))

	err := svc.InvalidatePayment(ctx, 11, 9)

	assert.True(t, errs.IsConflict(err))
	assert.False(t, uow.Committed)
}

func TestParseRegistrationRef(t *testing.T) {
	tests := []struct {
		ref    string
		wantID int64
		wantOK bool
	}{
		{"REG000042", 42, true},
		{"reg42", 42, true},
		{" REG7 ", 7, true},
		{"REG", 0, false},
		{"REGabc", 0, false},
		{"REG0", 0, false},
		{"42", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		id, ok := parseRegistrationRef(tt.ref)
		assert.Equal(t, tt.wantOK, ok, "ref %q", tt.ref)
		assert.Equal(t, tt.wantID, id, "ref %q", tt.ref)
	}
}

func TestPhoneSuffix(t *testing.T) {
	tests := []struct {
		phone string
		want  string
	}{
		{"254712345678", "712345678"},
		{"+254712345678", "712345678"},
		{"0712345678", "712345678"},
		{"712345678", "712345678"},
		{"12345", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, phoneSuffix(tt.phone), "phone %q", tt.phone)
	}
}
