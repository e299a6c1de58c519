package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"inphora/models"
	"inphora/service"
)

type productHandler struct {
	products service.LoanProductService
}

func newProductHandler(products service.LoanProductService) *productHandler {
	return &productHandler{products: products}
}

type productRequest struct {
	Name                 string          `json:"name" binding:"required"`
	Description          string          `json:"description"`
	InterestRate         decimal.Decimal `json:"interest_rate" binding:"required"`
	MinAmount            decimal.Decimal `json:"min_amount" binding:"required"`
	MaxAmount            decimal.Decimal `json:"max_amount" binding:"required"`
	MinDurationCount     int             `json:"min_duration_count" binding:"required,min=1"`
	MaxDurationCount     int             `json:"max_duration_count" binding:"required,min=1"`
	DurationUnit         string          `json:"duration_unit" binding:"required,oneof=days weeks months"`
	PenaltyRate          decimal.Decimal `json:"penalty_rate"`
	GracePeriodDays      int             `json:"grace_period_days" binding:"min=0"`
	InsuranceFee         decimal.Decimal `json:"insurance_fee"`
	TrackingFee          decimal.Decimal `json:"tracking_fee"`
	ValuationFee         decimal.Decimal `json:"valuation_fee"`
	ProcessingFeePercent decimal.Decimal `json:"processing_fee_percent"`
	ProcessingFeeFixed   decimal.Decimal `json:"processing_fee_fixed"`
	RegistrationFee      decimal.Decimal `json:"registration_fee"`
}

func (r *productRequest) toModel() *models.LoanProduct {
	product := &models.LoanProduct{
		Name:                 r.Name,
		InterestRate:         r.InterestRate,
		MinAmount:            r.MinAmount,
		MaxAmount:            r.MaxAmount,
		MinDurationCount:     r.MinDurationCount,
		MaxDurationCount:     r.MaxDurationCount,
		DurationUnit:         models.DurationUnit(r.DurationUnit),
		PenaltyRate:          r.PenaltyRate,
		GracePeriodDays:      r.GracePeriodDays,
		InsuranceFee:         r.InsuranceFee,
		TrackingFee:          r.TrackingFee,
		ValuationFee:         r.ValuationFee,
		ProcessingFeePercent: r.ProcessingFeePercent,
		ProcessingFeeFixed:   r.ProcessingFeeFixed,
		RegistrationFee:      r.RegistrationFee,
	}
	if r.Description != "" {
		product.Description = &r.Description
	}
	return product
}

func (h *productHandler) Create(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	product := req.toModel()
	if err := h.products.CreateProduct(c.Request.Context(), product); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *productHandler) Update(c *gin.Context) {
	id := pathID(c)
	if id == 0 {
		return
	}

	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	product := req.toModel()
	product.ID = id
	if err := h.products.UpdateProduct(c.Request.Context(), product); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *productHandler) Get(c *gin.Context) {
	id := pathID(c)
	if id == 0 {
		return
	}

	product, err := h.products.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *productHandler) List(c *gin.Context) {
	products, err := h.products.ListProducts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}
