package repository

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inphora/errs"
	"inphora/models"
	"inphora/repository/testutil"
)

func setupLoan(t *testing.T, testDB *testutil.TestDatabase) *models.Loan {
	t.Helper()
	ctx := context.Background()

	client := testutil.CreateTestClient("254712000001", "30000001")
	require.NoError(t, NewClientRepository(testDB.DB).Create(ctx, client))

	product := testutil.CreateTestProduct("Biashara Boost")
	require.NoError(t, NewLoanProductRepository(testDB.DB).Create(ctx, product))

	loan := testutil.CreateTestLoan(client.ID, product.ID, decimal.NewFromInt(10000))
	require.NoError(t, NewLoanRepository(testDB.DB).Create(ctx, loan))
	return loan
}

func TestLoanRepository_ApprovalFlow(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewLoanRepository(testDB.DB)
	ctx := context.Background()

	loan := setupLoan(t, testDB)
	assert.Equal(t, models.LoanStatusPending, loan.Status)
	assert.Equal(t, 1, loan.CurrentApprovalLevel)

	t.Run("advance from level 1", func(t *testing.T) {
		require.NoError(t, repo.AdvanceApprovalLevel(ctx, loan.ID, 1))

		got, err := repo.GetByID(ctx, loan.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.CurrentApprovalLevel)
		assert.Equal(t, models.LoanStatusPending, got.Status)
	})

	t.Run("advance at stale level conflicts", func(t *testing.T) {
		err := repo.AdvanceApprovalLevel(ctx, loan.ID, 1)
		require.Error(t, err)
		assert.True(t, errs.IsConflict(err))
	})

	t.Run("final approval", func(t *testing.T) {
		userRepo := NewUserRepository(testDB.DB)
		manager := testutil.CreateTestUser("manager@example.com", models.RoleManager)
		require.NoError(t, userRepo.Create(ctx, manager))

		require.NoError(t, repo.Approve(ctx, loan.ID, 2, manager.ID))

		got, err := repo.GetByID(ctx, loan.ID)
		require.NoError(t, err)
		assert.Equal(t, models.LoanStatusApproved, got.Status)
		require.NotNil(t, got.ApprovedBy)
		assert.Equal(t, manager.ID, *got.ApprovedBy)
		assert.NotNil(t, got.ApprovedAt)
	})

	t.Run("approve after terminal decision conflicts", func(t *testing.T) {
		err := repo.Approve(ctx, loan.ID, 2, 1)
		require.Error(t, err)
		assert.True(t, errs.IsConflict(err))
	})
}

func TestLoanRepository_UpdateStatus(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewLoanRepository(testDB.DB)
	ctx := context.Background()

	loan := setupLoan(t, testDB)

	t.Run("transition with matching expected status", func(t *testing.T) {
		require.NoError(t, repo.Approve(ctx, loan.ID, 1, 0))
		require.NoError(t, repo.UpdateStatus(ctx, loan.ID, models.LoanStatusApproved, models.LoanStatusActive))

		got, err := repo.GetByID(ctx, loan.ID)
		require.NoError(t, err)
		assert.Equal(t, models.LoanStatusActive, got.Status)
	})

	t.Run("stale expected status conflicts", func(t *testing.T) {
		err := repo.UpdateStatus(ctx, loan.ID, models.LoanStatusApproved, models.LoanStatusActive)
		require.Error(t, err)
		assert.True(t, errs.IsConflict(err))
	})

	t.Run("missing loan not found", func(t *testing.T) {
		_, err := repo.GetByID(ctx, 99999)
		require.Error(t, err)
		assert.True(t, errs.IsNotFound(err))
	})
}

func TestLoanRepository_HasOpenLoan(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewLoanRepository(testDB.DB)
	ctx := context.Background()

	loan := setupLoan(t, testDB)

	open, err := repo.HasOpenLoan(ctx, loan.ClientID)
	require.NoError(t, err)
	assert.True(t, open)

	require.NoError(t, repo.Reject(ctx, loan.ID, 1, "incomplete documents"))

	open, err = repo.HasOpenLoan(ctx, loan.ClientID)
	require.NoError(t, err)
	assert.False(t, open)

	got, err := repo.GetByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusRejected, got.Status)
	require.NotNil(t, got.RejectionReason)
	assert.Equal(t, "incomplete documents", *got.RejectionReason)
}

func TestDisbursementRepository_OneOpenPerLoan(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewDisbursementRepository(testDB.DB)
	loanRepo := NewLoanRepository(testDB.DB)
	ctx := context.Background()

	loan := setupLoan(t, testDB)
	require.NoError(t, loanRepo.Approve(ctx, loan.ID, 1, 0))

	userRepo := NewUserRepository(testDB.DB)
	officer := testutil.CreateTestUser("officer@example.com", models.RoleLoanOfficer)
	require.NoError(t, userRepo.Create(ctx, officer))

	correlationID := "corr-test-1"
	first := &models.DisbursementTransaction{
		LoanID:        loan.ID,
		ClientID:      loan.ClientID,
		Amount:        loan.Amount,
		Method:        models.DisbursementMethodMpesa,
		Status:        models.DisbursementStatusPending,
		CorrelationID: &correlationID,
		InitiatedBy:   officer.ID,
	}
	require.NoError(t, repo.Create(ctx, first))

	t.Run("second open attempt conflicts", func(t *testing.T) {
		dup := &models.DisbursementTransaction{
			LoanID:      loan.ID,
			ClientID:    loan.ClientID,
			Amount:      loan.Amount,
			Method:      models.DisbursementMethodMpesa,
			Status:      models.DisbursementStatusPending,
			InitiatedBy: officer.ID,
		}
		err := repo.Create(ctx, dup)
		require.Error(t, err)
		assert.True(t, errs.IsConflict(err))
	})

	t.Run("lookup by correlation id", func(t *testing.T) {
		got, err := repo.GetByCorrelationID(ctx, correlationID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, first.ID, got.ID)

		missing, err := repo.GetByCorrelationID(ctx, "corr-unknown")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("retry allowed after failure", func(t *testing.T) {
		require.NoError(t, repo.MarkFailed(ctx, first.ID, "1", "insufficient float"))

		retry := &models.DisbursementTransaction{
			LoanID:      loan.ID,
			ClientID:    loan.ClientID,
			Amount:      loan.Amount,
			Method:      models.DisbursementMethodMpesa,
			Status:      models.DisbursementStatusPending,
			InitiatedBy: officer.ID,
		}
		require.NoError(t, repo.Create(ctx, retry))
	})

	t.Run("complete requires processing", func(t *testing.T) {
		attempts, err := repo.GetByLoan(ctx, loan.ID)
		require.NoError(t, err)
		require.Len(t, attempts, 2)

		latest := attempts[0]
		err = repo.MarkCompleted(ctx, latest.ID, "SGH1234", "0", "ok")
		require.Error(t, err)
		assert.True(t, errs.IsConflict(err))

		require.NoError(t, repo.UpdateStatus(ctx, latest.ID, models.DisbursementStatusPending, models.DisbursementStatusProcessing))
		require.NoError(t, repo.MarkCompleted(ctx, latest.ID, "SGH1234", "0", "ok"))

		got, err := repo.GetByID(ctx, latest.ID)
		require.NoError(t, err)
		assert.Equal(t, models.DisbursementStatusCompleted, got.Status)
		require.NotNil(t, got.ExternalTransactionID)
		assert.Equal(t, "SGH1234", *got.ExternalTransactionID)
		assert.NotNil(t, got.CompletedAt)
	})
}

func TestMpesaRepository_Idempotency(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewMpesaRepository(testDB.DB)
	ctx := context.Background()

	payment := testutil.CreateTestIncomingPayment("SGX001", "254712000009", "REG000001", decimal.NewFromInt(100))
	require.NoError(t, repo.Create(ctx, payment))

	t.Run("replayed transaction id conflicts", func(t *testing.T) {
		replay := testutil.CreateTestIncomingPayment("SGX001", "254712000009", "REG000001", decimal.NewFromInt(100))
		err := repo.Create(ctx, replay)
		require.Error(t, err)
		assert.True(t, errs.IsConflict(err))
	})

	t.Run("match is one-shot", func(t *testing.T) {
		loan := setupLoan(t, testDB)
		repaymentRepo := NewRepaymentRepository(testDB.DB)
		repayment := &models.Repayment{
			LoanID:        loan.ID,
			Amount:        payment.Amount,
			PaymentDate:   payment.CreatedAt,
			PaymentMethod: models.PaymentMethodMpesa,
		}
		require.NoError(t, repaymentRepo.Create(ctx, repayment))

		require.NoError(t, repo.MarkMatched(ctx, payment.ID, loan.ClientID, loan.ID, repayment.ID))

		err := repo.MarkMatched(ctx, payment.ID, loan.ClientID, loan.ID, repayment.ID)
		require.Error(t, err)
		assert.True(t, errs.IsConflict(err))

		got, err := repo.GetByTransactionID(ctx, "SGX001")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.IsLoanMatch())
	})

	t.Run("unmatched listing excludes matched", func(t *testing.T) {
		other := testutil.CreateTestIncomingPayment("SGX002", "254712000010", "", decimal.NewFromInt(500))
		require.NoError(t, repo.Create(ctx, other))

		unmatched, err := repo.ListUnmatched(ctx)
		require.NoError(t, err)
		require.Len(t, unmatched, 1)
		assert.Equal(t, "SGX002", unmatched[0].TransactionID)
	})

	t.Run("invalidation removes from the queue", func(t *testing.T) {
		junk := testutil.CreateTestIncomingPayment("SGX003", "254712000011", "", decimal.NewFromInt(50))
		require.NoError(t, repo.Create(ctx, junk))

		require.NoError(t, repo.MarkInvalid(ctx, junk.ID))

		err := repo.MarkInvalid(ctx, junk.ID)
		require.Error(t, err)
		assert.True(t, errs.IsConflict(err))

		unmatched, err := repo.ListUnmatched(ctx)
		require.NoError(t, err)
		for _, u := range unmatched {
			assert.NotEqual(t, "SGX003", u.TransactionID)
		}
	})
}
