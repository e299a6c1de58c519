package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"inphora/cache"
	"inphora/errs"
	"inphora/gateway"
	"inphora/models"
)

func newTestRegistrationService(uow *MockUnitOfWork, mpesaClient *MockMpesaClient, store cache.Store) RegistrationService {
	return NewRegistrationService(NewMockUnitOfWorkFactory(uow), mpesaClient, store, decimal.NewFromInt(500))
}

func TestRegistrationService_SubmitApplication(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	svc := newTestRegistrationService(uow, new(MockMpesaClient), cache.NewMemoryStore())

	uow.ClientRepo.On("GetByPhone", ctx, "254712345678").Return(nil, nil)
	uow.RegistrationRepo.On("Create", ctx, mock.MatchedBy(func(a *models.RegistrationApplication) bool {
		return a.FullName == "Grace Wanjiku" &&
			a.Status == models.RegistrationStatusPending &&
			a.RegistrationFee.Equal(decimal.NewFromInt(500)) &&
			a.AmountPaid.IsZero()
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*models.RegistrationApplication).ID = 42
	}).Return(nil)

	app, err := svc.SubmitApplication(ctx, SubmitRegistrationRequest{
		FullName: "  Grace Wanjiku ",
		Phone:    "254712345678",
		IDNumber: "12345678",
	})

	require.NoError(t, err)
	assert.Equal(t, "REG000042", app.BillingReference())
	assert.True(t, uow.Committed)
}

func TestRegistrationService_SubmitApplication_RejectsExistingClient(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	svc := newTestRegistrationService(uow, new(MockMpesaClient), cache.NewMemoryStore())

	uow.ClientRepo.On("GetByPhone", ctx, "254712345678").Return(testActiveClient(), nil)

	_, err := svc.SubmitApplication(ctx, SubmitRegistrationRequest{
		FullName: "Grace Wanjiku",
		Phone:    "254712345678",
		IDNumber: "12345678",
	})

	assert.True(t, errs.IsConflict(err))
	uow.RegistrationRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegistrationService_SubmitApplication_Validation(t *testing.T) {
	svc := newTestRegistrationService(NewMockUnitOfWork(), new(MockMpesaClient), cache.NewMemoryStore())

	tests := []struct {
		name string
		req  SubmitRegistrationRequest
	}{
		{"missing name", SubmitRegistrationRequest{Phone: "254712345678", IDNumber: "12345678"}},
		{"missing phone", SubmitRegistrationRequest{FullName: "Grace", IDNumber: "12345678"}},
		{"missing id number", SubmitRegistrationRequest{FullName: "Grace", Phone: "254712345678"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SubmitApplication(context.Background(), tt.req)
			assert.True(t, errs.IsValidation(err))
		})
	}
}

func TestRegistrationService_RequestFeePayment_CachesPromptMapping(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	mpesaClient := new(MockMpesaClient)
	store := cache.NewMemoryStore()
	svc := newTestRegistrationService(uow, mpesaClient, store)

	uow.RegistrationRepo.On("GetByID", ctx, int64(42)).Return(&models.RegistrationApplication{
		ID:              42,
		Phone:           "254712345678",
		Status:          models.RegistrationStatusPending,
		RegistrationFee: decimal.NewFromInt(500),
	}, nil)
	mpesaClient.On("STKPush", ctx, mock.MatchedBy(func(req gateway.STKRequest) bool {
		return req.Phone == "254712345678" &&
			req.Amount == "500" &&
			req.AccountReference == "REG000042"
	})).Return(&gateway.STKResponse{CheckoutRequestID: "ws_CO_1", ResponseCode: "0"}, nil)

	err := svc.RequestFeePayment(ctx, 42)

	require.NoError(t, err)
	ref, err := store.Get(ctx, "stk:ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, "REG000042", ref)
}

func TestRegistrationService_RequestFeePayment_RejectsNonPending(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	mpesaClient := new(MockMpesaClient)
	svc := newTestRegistrationService(uow, mpesaClient, cache.NewMemoryStore())

	uow.RegistrationRepo.On("GetByID", ctx, int64(42)).Return(&models.RegistrationApplication{
		ID:     42,
		Status: models.RegistrationStatusPaid,
	}, nil)

	err := svc.RequestFeePayment(ctx, 42)

	assert.True(t, errs.IsConflict(err))
	mpesaClient.AssertNotCalled(t, "STKPush", mock.Anything, mock.Anything)
}

func TestRegistrationService_ApproveApplication_CreatesClient(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	svc := newTestRegistrationService(uow, new(MockMpesaClient), cache.NewMemoryStore())

	uow.RegistrationRepo.On("GetByID", ctx, int64(42)).Return(&models.RegistrationApplication{
		ID:       42,
		FullName: "Grace Wanjiku Kamau",
		Phone:    "254712345678",
		IDNumber: "12345678",
		Status:   models.RegistrationStatusPaid,
	}, nil)
	uow.RegistrationRepo.On("UpdateStatus", ctx, int64(42),
		models.RegistrationStatusPaid, models.RegistrationStatusApproved).Return(nil)
	uow.ClientRepo.On("Create", ctx, mock.MatchedBy(func(c *models.Client) bool {
		return c.FirstName == "Grace" &&
			c.LastName == "Wanjiku Kamau" &&
			c.Phone == "254712345678" &&
			c.Status == "active"
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Client).ID = 7
	}).Return(nil)
	uow.RegistrationRepo.On("UpdateStatus", ctx, int64(42),
		models.RegistrationStatusApproved, models.RegistrationStatusCompleted).Return(nil)

	client, err := svc.ApproveApplication(ctx, 42, 9)

	require.NoError(t, err)
	assert.Equal(t, int64(7), client.ID)
	assert.True(t, uow.Committed)
	uow.RegistrationRepo.AssertExpectations(t)
}

func TestRegistrationService_ApproveApplication_RequiresPaid(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	svc := newTestRegistrationService(uow, new(MockMpesaClient), cache.NewMemoryStore())

	uow.RegistrationRepo.On("GetByID", ctx, int64(42)).Return(&models.RegistrationApplication{
		ID:     42,
		Status: models.RegistrationStatusPending,
	}, nil)

	_, err := svc.ApproveApplication(ctx, 42, 9)

	assert.True(t, errs.IsConflict(err))
	uow.ClientRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegistrationService_RejectApplication(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	svc := newTestRegistrationService(uow, new(MockMpesaClient), cache.NewMemoryStore())

	uow.RegistrationRepo.On("GetByID", ctx, int64(42)).Return(&models.RegistrationApplication{
		ID:     42,
		Status: models.RegistrationStatusPaid,
	}, nil)
	uow.RegistrationRepo.On("UpdateStatus", ctx, int64(42),
		models.RegistrationStatusPaid, models.RegistrationStatusRejected).Return(nil)

	err := svc.RejectApplication(ctx, 42, 9)

	require.NoError(t, err)
	assert.True(t, uow.Committed)
}

func TestRegistrationService_RejectApplication_RejectsTerminal(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	svc := newTestRegistrationService(uow, new(MockMpesaClient), cache.NewMemoryStore())

	uow.RegistrationRepo.On("GetByID", ctx, int64(42)).Return(&models.RegistrationApplication{
		ID:     42,
		Status: models.RegistrationStatusCompleted,
	}, nil)

	err := svc.RejectApplication(ctx, 42, 9)

	assert.True(t, errs.IsConflict(err))
}

func TestSplitFullName(t *testing.T) {
	tests := []struct {
		full  string
		first string
		last  string
	}{
		{"Grace Wanjiku", "Grace", "Wanjiku"},
		{"Grace Wanjiku Kamau", "Grace", "Wanjiku Kamau"},
		{"Grace", "Grace", ""},
		{"", "", ""},
	}

	for _, tt := range tests {
		first, last := splitFullName(tt.full)
		assert.Equal(t, tt.first, first, "full %q", tt.full)
		assert.Equal(t, tt.last, last, "full %q", tt.full)
	}
}
