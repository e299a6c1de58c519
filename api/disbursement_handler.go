package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"inphora/models"
	"inphora/service"
)

type disbursementHandler struct {
	disbursements service.DisbursementService
}

func newDisbursementHandler(disbursements service.DisbursementService) *disbursementHandler {
	return &disbursementHandler{disbursements: disbursements}
}

type disburseRequest struct {
	Method        string `json:"method" binding:"required,oneof=mpesa bank manual"`
	BankReference string `json:"bank_reference"`
}

func (h *disbursementHandler) Initiate(c *gin.Context) {
	id := pathID(c)
	if id == 0 {
		return
	}
	claims := currentClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req disburseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	transaction, err := h.disbursements.Disburse(c.Request.Context(), service.DisburseRequest{
		LoanID:        id,
		Method:        models.DisbursementMethod(req.Method),
		InitiatedBy:   claims.UserID,
		BankReference: req.BankReference,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, transaction)
}
