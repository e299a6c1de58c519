package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"inphora/service"
)

type registrationHandler struct {
	registration service.RegistrationService
}

func newRegistrationHandler(registration service.RegistrationService) *registrationHandler {
	return &registrationHandler{registration: registration}
}

type submitRegistrationRequest struct {
	FullName string `json:"full_name" binding:"required"`
	Phone    string `json:"phone" binding:"required,msisdn"`
	IDNumber string `json:"id_number" binding:"required"`
	Email    string `json:"email" binding:"omitempty,email"`
	Address  string `json:"address"`
}

// Submit is the public self-service onboarding endpoint
func (h *registrationHandler) Submit(c *gin.Context) {
	var req submitRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	app, err := h.registration.SubmitApplication(c.Request.Context(), service.SubmitRegistrationRequest{
		FullName: req.FullName,
		Phone:    req.Phone,
		IDNumber: req.IDNumber,
		Email:    req.Email,
		Address:  req.Address,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"application_id":    app.ID,
		"status":            app.Status,
		"registration_fee":  app.RegistrationFee,
		"billing_reference": app.BillingReference(),
	})
}

func (h *registrationHandler) RequestFeePrompt(c *gin.Context) {
	id := pathID(c)
	if id == 0 {
		return
	}

	if err := h.registration.RequestFeePayment(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "payment prompt sent"})
}

func (h *registrationHandler) Approve(c *gin.Context) {
	id := pathID(c)
	if id == 0 {
		return
	}
	claims := currentClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	client, err := h.registration.ApproveApplication(c.Request.Context(), id, claims.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, client)
}

func (h *registrationHandler) Reject(c *gin.Context) {
	id := pathID(c)
	if id == 0 {
		return
	}
	claims := currentClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	if err := h.registration.RejectApplication(c.Request.Context(), id, claims.UserID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "application rejected"})
}
