package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"inphora/errs"
	"inphora/events"
	"inphora/gateway"
	"inphora/models"
)

func approvedLoan() *models.Loan {
	return &models.Loan{
		ID:       42,
		ClientID: 7,
		Amount:   decimal.NewFromInt(10000),
		Status:   models.LoanStatusApproved,
	}
}

func payoutClient() *models.Client {
	phone := "254712345678"
	return &models.Client{
		ID:         7,
		FirstName:  "Grace",
		LastName:   "Wanjiku",
		Phone:      phone,
		MpesaPhone: &phone,
		Status:     "active",
	}
}

func TestDisbursementService_Disburse_MpesaHappyPath(t *testing.T) {
	ctx := context.Background()
	mainUow := NewMockUnitOfWork()
	processingUow := NewMockUnitOfWork()
	mpesaClient := new(MockMpesaClient)
	svc := NewDisbursementService(NewMockUnitOfWorkFactory(mainUow, processingUow), mpesaClient)

	mainUow.LoanRepo.On("GetByID", ctx, int64(42)).Return(approvedLoan(), nil)
	mainUow.ClientRepo.On("GetByID", ctx, int64(7)).Return(payoutClient(), nil)
	mainUow.DisbursementRepo.On("Create", ctx, mock.MatchedBy(func(tx *models.DisbursementTransaction) bool {
		return tx.LoanID == 42 &&
			tx.Status == models.DisbursementStatusPending &&
			tx.CorrelationID != nil && *tx.CorrelationID != ""
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*models.DisbursementTransaction).ID = 55
	}).Return(nil)

	mpesaClient.On("SendB2C", ctx, mock.MatchedBy(func(req gateway.B2CRequest) bool {
		return req.Phone == "254712345678" && req.Amount == "10000"
	})).Return(&gateway.B2CResponse{ConversationID: "AG_1", ResponseCode: "0"}, nil)

	processingUow.DisbursementRepo.On("UpdateStatus", ctx, int64(55),
		models.DisbursementStatusPending, models.DisbursementStatusProcessing).Return(nil)

	transaction, err := svc.Disburse(ctx, DisburseRequest{
		LoanID:      42,
		Method:      models.DisbursementMethodMpesa,
		InitiatedBy: 9,
	})

	require.NoError(t, err)
	assert.Equal(t, models.DisbursementStatusProcessing, transaction.Status)
	// The pending attempt was committed before the gateway was called
	assert.True(t, mainUow.Committed)
	assert.True(t, processingUow.Committed)
	mpesaClient.AssertExpectations(t)
	processingUow.DisbursementRepo.AssertExpectations(t)
}

func TestDisbursementService_Disburse_GatewayFailureLeavesLoanApproved(t *testing.T) {
	ctx := context.Background()
	mainUow := NewMockUnitOfWork()
	failUow := NewMockUnitOfWork()
	mpesaClient := new(MockMpesaClient)
	svc := NewDisbursementService(NewMockUnitOfWorkFactory(mainUow, failUow), mpesaClient)

	mainUow.LoanRepo.On("GetByID", ctx, int64(42)).Return(approvedLoan(), nil)
	mainUow.ClientRepo.On("GetByID", ctx, int64(7)).Return(payoutClient(), nil)
	mainUow.DisbursementRepo.On("Create", ctx, mock.AnythingOfType("*models.DisbursementTransaction")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*models.DisbursementTransaction).ID = 55
		}).Return(nil)

	gatewayErr := errs.NewExternal("mpesa", assert.AnError)
	mpesaClient.On("SendB2C", ctx, mock.Anything).Return(nil, gatewayErr)

	failUow.DisbursementRepo.On("MarkFailed", ctx, int64(55), "", mock.AnythingOfType("string")).Return(nil)

	_, err := svc.Disburse(ctx, DisburseRequest{
		LoanID:      42,
		Method:      models.DisbursementMethodMpesa,
		InitiatedBy: 9,
	})

	assert.Equal(t, gatewayErr, err)
	// The loan's status is never touched on the synchronous failure path
	mainUow.LoanRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	failUow.LoanRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	require.Len(t, failUow.Publisher.Events, 1)
	event := failUow.Publisher.Events[0].(events.DisbursementFailedEvent)
	assert.Equal(t, int64(55), event.TransactionID)
	assert.Equal(t, int64(42), event.LoanID)
}

func TestDisbursementService_Disburse_DirectBankSettlesImmediately(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	svc := NewDisbursementService(NewMockUnitOfWorkFactory(uow), new(MockMpesaClient))

	uow.LoanRepo.On("GetByID", ctx, int64(42)).Return(approvedLoan(), nil)
	uow.ClientRepo.On("GetByID", ctx, int64(7)).Return(payoutClient(), nil)
	uow.DisbursementRepo.On("Create", ctx, mock.AnythingOfType("*models.DisbursementTransaction")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*models.DisbursementTransaction).ID = 55
		}).Return(nil)
	uow.DisbursementRepo.On("UpdateStatus", ctx, int64(55),
		models.DisbursementStatusPending, models.DisbursementStatusProcessing).Return(nil)
	uow.DisbursementRepo.On("MarkCompleted", ctx, int64(55), "RTGS-991", "0", "settled directly").Return(nil)
	uow.LoanRepo.On("UpdateStatus", ctx, int64(42),
		models.LoanStatusApproved, models.LoanStatusActive).Return(nil)

	transaction, err := svc.Disburse(ctx, DisburseRequest{
		LoanID:        42,
		Method:        models.DisbursementMethodBank,
		InitiatedBy:   9,
		BankReference: "RTGS-991",
	})

	require.NoError(t, err)
	assert.Equal(t, models.DisbursementStatusCompleted, transaction.Status)
	assert.True(t, uow.Committed)

	require.Len(t, uow.Publisher.Events, 2)
	completed := uow.Publisher.Events[0].(events.DisbursementCompletedEvent)
	assert.Equal(t, models.DisbursementMethodBank, completed.Method)
	statusChanged := uow.Publisher.Events[1].(events.LoanStatusChangedEvent)
	assert.Equal(t, models.LoanStatusActive, statusChanged.NewStatus)
}

func TestDisbursementService_Disburse_RejectsNonApprovedLoan(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	svc := NewDisbursementService(NewMockUnitOfWorkFactory(uow), new(MockMpesaClient))

	loan := approvedLoan()
	loan.Status = models.LoanStatusPending
	uow.LoanRepo.On("GetByID", ctx, int64(42)).Return(loan, nil)

	_, err := svc.Disburse(ctx, DisburseRequest{
		LoanID:      42,
		Method:      models.DisbursementMethodMpesa,
		InitiatedBy: 9,
	})

	assert.True(t, errs.IsConflict(err))
	uow.DisbursementRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func processingTransaction() *models.DisbursementTransaction {
	correlationID := "corr-123"
	return &models.DisbursementTransaction{
		ID:            55,
		LoanID:        42,
		ClientID:      7,
		Amount:        decimal.NewFromInt(10000),
		Method:        models.DisbursementMethodMpesa,
		Status:        models.DisbursementStatusProcessing,
		CorrelationID: &correlationID,
	}
}

func TestDisbursementService_HandleB2CResult_SuccessActivatesLoan(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	svc := NewDisbursementService(NewMockUnitOfWorkFactory(uow), new(MockMpesaClient))

	uow.DisbursementRepo.On("GetByCorrelationID", ctx, "corr-123").Return(processingTransaction(), nil)
	uow.DisbursementRepo.On("MarkCompleted", ctx, int64(55), "SGH7KLM2RT", "0", "The service request is processed successfully.").Return(nil)
	uow.LoanRepo.On("UpdateStatus", ctx, int64(42),
		models.LoanStatusApproved, models.LoanStatusActive).Return(nil)

	err := svc.HandleB2CResult(ctx, B2CResult{
		CorrelationID:         "corr-123",
		ResultCode:            "0",
		ResultDescription:     "The service request is processed successfully.",
		ExternalTransactionID: "SGH7KLM2RT",
	})

	require.NoError(t, err)
	assert.True(t, uow.Committed)

	require.Len(t, uow.Publisher.Events, 2)
	completed := uow.Publisher.Events[0].(events.DisbursementCompletedEvent)
	assert.Equal(t, int64(42), completed.LoanID)
	statusChanged := uow.Publisher.Events[1].(events.LoanStatusChangedEvent)
	assert.Equal(t, models.LoanStatusActive, statusChanged.NewStatus)
}

func TestDisbursementService_HandleB2CResult_FailureKeepsLoanApproved(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	svc := NewDisbursementService(NewMockUnitOfWorkFactory(uow), new(MockMpesaClient))

	uow.DisbursementRepo.On("GetByCorrelationID", ctx, "corr-123").Return(processingTransaction(), nil)
	uow.DisbursementRepo.On("MarkFailed", ctx, int64(55), "2001", "The initiator information is invalid.").Return(nil)

	err := svc.HandleB2CResult(ctx, B2CResult{
		CorrelationID:     "corr-123",
		ResultCode:        "2001",
		ResultDescription: "The initiator information is invalid.",
	})

	require.NoError(t, err)
	uow.LoanRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	require.Len(t, uow.Publisher.Events, 1)
	event := uow.Publisher.Events[0].(events.DisbursementFailedEvent)
	assert.Equal(t, "The initiator information is invalid.", event.Reason)
}

func TestDisbursementService_HandleB2CResult_UnknownCorrelationIgnored(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	svc := NewDisbursementService(NewMockUnitOfWorkFactory(uow), new(MockMpesaClient))

	uow.DisbursementRepo.On("GetByCorrelationID", ctx, "no-such-id").Return(nil, nil)

	err := svc.HandleB2CResult(ctx, B2CResult{CorrelationID: "no-such-id", ResultCode: "0"})

	require.NoError(t, err)
	uow.DisbursementRepo.AssertNotCalled(t, "MarkCompleted", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	uow.DisbursementRepo.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, uow.Publisher.Events)
}

func TestDisbursementService_HandleB2CResult_ReplayIgnored(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	svc := NewDisbursementService(NewMockUnitOfWorkFactory(uow), new(MockMpesaClient))

	transaction := processingTransaction()
	transaction.Status = models.DisbursementStatusCompleted
	uow.DisbursementRepo.On("GetByCorrelationID", ctx, "corr-123").Return(transaction, nil)

	err := svc.HandleB2CResult(ctx, B2CResult{CorrelationID: "corr-123", ResultCode: "0"})

	require.NoError(t, err)
	uow.DisbursementRepo.AssertNotCalled(t, "MarkCompleted", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, uow.Publisher.Events)
}
