package testutil

import (
	"time"

	"github.com/shopspring/decimal"

	"inphora/models"
)

// CreateTestClient creates a test client with default values
func CreateTestClient(phone, idNumber string) *models.Client {
	return &models.Client{
		FirstName:             "Jane",
		LastName:              "Wanjiku",
		Phone:                 phone,
		IDNumber:              idNumber,
		PreferredDisbursement: "mpesa",
		Status:                "active",
	}
}

// CreateTestProduct creates a test loan product with default terms
func CreateTestProduct(name string) *models.LoanProduct {
	return &models.LoanProduct{
		Name:             name,
		InterestRate:     decimal.NewFromInt(10),
		MinAmount:        decimal.NewFromInt(1000),
		MaxAmount:        decimal.NewFromInt(500000),
		MinDurationCount: 1,
		MaxDurationCount: 12,
		DurationUnit:     models.DurationMonths,
		PenaltyRate:      decimal.NewFromInt(5),
		GracePeriodDays:  7,
	}
}

// CreateTestLoan creates a pending test loan for a client and product
func CreateTestLoan(clientID, productID int64, amount decimal.Decimal) *models.Loan {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &models.Loan{
		ClientID:             clientID,
		ProductID:            productID,
		Amount:               amount,
		InterestRate:         decimal.NewFromInt(10),
		DurationCount:        3,
		DurationUnit:         models.DurationMonths,
		RepaymentFrequency:   models.FrequencyMonthly,
		StartDate:            start,
		EndDate:              start.AddDate(0, 0, 90),
		Status:               models.LoanStatusPending,
		CurrentApprovalLevel: 1,
		PenaltyRate:          decimal.NewFromInt(5),
		GracePeriodDays:      7,
	}
}

// CreateTestUser creates a test back-office user
func CreateTestUser(email string, role models.Role) *models.User {
	return &models.User{
		Email:        email,
		FullName:     "Test Operator",
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		Role:         role,
		IsActive:     true,
	}
}

// CreateTestIncomingPayment creates an unmatched inbound payment notification
func CreateTestIncomingPayment(transactionID, phone, billRef string, amount decimal.Decimal) *models.MpesaIncomingTransaction {
	return &models.MpesaIncomingTransaction{
		TransactionID: transactionID,
		Amount:        amount,
		Phone:         phone,
		BillRef:       billRef,
		Status:        models.IncomingStatusUnmatched,
		RawCallback:   []byte(`{"test":true}`),
	}
}
