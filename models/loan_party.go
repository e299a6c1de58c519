package models

import "github.com/shopspring/decimal"

// Guarantor backs a loan application
type Guarantor struct {
	ID       int64   `db:"id"`
	LoanID   int64   `db:"loan_id"`
	Name     string  `db:"name"`
	Phone    string  `db:"phone"`
	IDNumber *string `db:"id_number"`
	Relation string  `db:"relation"`
}

// Collateral is an asset pledged against a loan
type Collateral struct {
	ID             int64           `db:"id"`
	LoanID         int64           `db:"loan_id"`
	Name           string          `db:"name"`
	SerialNumber   *string         `db:"serial_number"`
	EstimatedValue decimal.Decimal `db:"estimated_value"`
	Condition      *string         `db:"condition"`
}

// Referee vouches for a loan applicant
type Referee struct {
	ID       int64  `db:"id"`
	LoanID   int64  `db:"loan_id"`
	Name     string `db:"name"`
	Phone    string `db:"phone"`
	Relation string `db:"relation"`
}

// FinancialAnalysis captures the applicant's business numbers at appraisal time.
// A loan has at most one.
type FinancialAnalysis struct {
	ID           int64           `db:"id"`
	LoanID       int64           `db:"loan_id"`
	DailySales   decimal.Decimal `db:"daily_sales"`
	MonthlySales decimal.Decimal `db:"monthly_sales"`
	GrossProfit  decimal.Decimal `db:"gross_profit"`
	OtherIncome  decimal.Decimal `db:"other_income"`
	CostOfSales  decimal.Decimal `db:"cost_of_sales"`
	Expenditure  decimal.Decimal `db:"expenditure"`
	NetIncome    decimal.Decimal `db:"net_income"`
}
