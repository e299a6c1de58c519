package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"inphora/models"
	"inphora/service"
)

type loanHandler struct {
	loans service.LoanService
}

func newLoanHandler(loans service.LoanService) *loanHandler {
	return &loanHandler{loans: loans}
}

type guarantorRequest struct {
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
	IDNumber string `json:"id_number"`
	Relation string `json:"relation"`
}

type collateralRequest struct {
	Name           string          `json:"name" binding:"required"`
	SerialNumber   string          `json:"serial_number"`
	EstimatedValue decimal.Decimal `json:"estimated_value" binding:"required"`
	Condition      string          `json:"condition"`
}

type refereeRequest struct {
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
	Relation string `json:"relation"`
}

type financialAnalysisRequest struct {
	DailySales   decimal.Decimal `json:"daily_sales"`
	MonthlySales decimal.Decimal `json:"monthly_sales"`
	GrossProfit  decimal.Decimal `json:"gross_profit"`
	OtherIncome  decimal.Decimal `json:"other_income"`
	CostOfSales  decimal.Decimal `json:"cost_of_sales"`
	Expenditure  decimal.Decimal `json:"expenditure"`
	NetIncome    decimal.Decimal `json:"net_income"`
}

type createLoanRequest struct {
	ClientID           int64                     `json:"client_id" binding:"required"`
	ProductID          int64                     `json:"product_id" binding:"required"`
	Amount             decimal.Decimal           `json:"amount" binding:"required"`
	DurationCount      int                       `json:"duration_count" binding:"required,min=1"`
	RepaymentFrequency string                    `json:"repayment_frequency" binding:"omitempty,oneof=daily weekly monthly"`
	StartDate          string                    `json:"start_date" binding:"omitempty,datetime=2006-01-02"`
	WaiveProcessingFee bool                      `json:"waive_processing_fee"`
	Guarantors         []guarantorRequest        `json:"guarantors"`
	Collateral         []collateralRequest       `json:"collateral"`
	Referees           []refereeRequest          `json:"referees"`
	Analysis           *financialAnalysisRequest `json:"financial_analysis"`
}

func (h *loanHandler) Create(c *gin.Context) {
	var req createLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	svcReq := service.CreateLoanRequest{
		ClientID:           req.ClientID,
		ProductID:          req.ProductID,
		Amount:             req.Amount,
		DurationCount:      req.DurationCount,
		RepaymentFrequency: models.RepaymentFrequency(req.RepaymentFrequency),
		WaiveProcessingFee: req.WaiveProcessingFee,
	}
	if req.StartDate != "" {
		startDate, _ := time.Parse("2006-01-02", req.StartDate)
		svcReq.StartDate = startDate
	}
	for _, g := range req.Guarantors {
		guarantor := models.Guarantor{
			Name:     g.Name,
			Phone:    g.Phone,
			Relation: g.Relation,
		}
		if g.IDNumber != "" {
			idNumber := g.IDNumber
			guarantor.IDNumber = &idNumber
		}
		svcReq.Guarantors = append(svcReq.Guarantors, guarantor)
	}
	for _, item := range req.Collateral {
		collateral := models.Collateral{
			Name:           item.Name,
			EstimatedValue: item.EstimatedValue,
		}
		if item.SerialNumber != "" {
			serial := item.SerialNumber
			collateral.SerialNumber = &serial
		}
		if item.Condition != "" {
			condition := item.Condition
			collateral.Condition = &condition
		}
		svcReq.Collateral = append(svcReq.Collateral, collateral)
	}
	for _, ref := range req.Referees {
		svcReq.Referees = append(svcReq.Referees, models.Referee{
			Name:     ref.Name,
			Phone:    ref.Phone,
			Relation: ref.Relation,
		})
	}
	if req.Analysis != nil {
		svcReq.Analysis = &models.FinancialAnalysis{
			DailySales:   req.Analysis.DailySales,
			MonthlySales: req.Analysis.MonthlySales,
			GrossProfit:  req.Analysis.GrossProfit,
			OtherIncome:  req.Analysis.OtherIncome,
			CostOfSales:  req.Analysis.CostOfSales,
			Expenditure:  req.Analysis.Expenditure,
			NetIncome:    req.Analysis.NetIncome,
		}
	}

	loan, err := h.loans.CreateLoan(c.Request.Context(), svcReq)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, loan)
}

func (h *loanHandler) Get(c *gin.Context) {
	id := pathID(c)
	if id == 0 {
		return
	}

	detail, err := h.loans.GetLoan(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"loan":           detail.Loan,
		"client":         detail.Client,
		"schedule":       detail.Schedule,
		"total_interest": detail.TotalInterest,
		"total_repaid":   detail.TotalRepaid,
		"outstanding":    detail.Outstanding,
		"penalty":        detail.Penalty,
		"repayments":     detail.Repayments,
		"approvals":      detail.Approvals,
		"disbursements":  detail.Disbursements,
	})
}

func (h *loanHandler) List(c *gin.Context) {
	loans, err := h.loans.ListLoans(c.Request.Context(), models.LoanStatus(c.Query("status")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loans": loans})
}

type approveLoanRequest struct {
	Notes string `json:"notes"`
}

func (h *loanHandler) Approve(c *gin.Context) {
	id := pathID(c)
	if id == 0 {
		return
	}
	claims := currentClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	// The body is optional; approval notes are the only field
	var req approveLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondBindError(c, err)
		return
	}

	loan, err := h.loans.ApproveLoan(c.Request.Context(), id, claims.UserID, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

type rejectLoanRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *loanHandler) Reject(c *gin.Context) {
	id := pathID(c)
	if id == 0 {
		return
	}
	claims := currentClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req rejectLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	loan, err := h.loans.RejectLoan(c.Request.Context(), id, claims.UserID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

type recordRepaymentRequest struct {
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	PaymentDate   string          `json:"payment_date" binding:"omitempty,datetime=2006-01-02"`
	PaymentMethod string          `json:"payment_method" binding:"required,oneof=mpesa bank manual"`
	Notes         string          `json:"notes"`
}

func (h *loanHandler) RecordRepayment(c *gin.Context) {
	id := pathID(c)
	if id == 0 {
		return
	}

	var req recordRepaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	svcReq := service.RecordRepaymentRequest{
		LoanID:        id,
		Amount:        req.Amount,
		PaymentMethod: models.PaymentMethod(req.PaymentMethod),
		Notes:         req.Notes,
	}
	if req.PaymentDate != "" {
		paymentDate, _ := time.Parse("2006-01-02", req.PaymentDate)
		svcReq.PaymentDate = paymentDate
	}

	repayment, err := h.loans.RecordRepayment(c.Request.Context(), svcReq)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, repayment)
}
