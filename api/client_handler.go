package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"inphora/service"
)

type clientHandler struct {
	clients service.ClientService
}

func newClientHandler(clients service.ClientService) *clientHandler {
	return &clientHandler{clients: clients}
}

// pathID parses the :id path parameter. A zero return means the response
// has already been written.
func pathID(c *gin.Context) int64 {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0
	}
	return id
}

func (h *clientHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	clients, err := h.clients.ListClients(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clients": clients})
}

func (h *clientHandler) Get(c *gin.Context) {
	id := pathID(c)
	if id == 0 {
		return
	}

	client, err := h.clients.GetClient(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

type updateClientRequest struct {
	Phone                 string `json:"phone" binding:"required,msisdn"`
	Email                 string `json:"email" binding:"omitempty,email"`
	Address               string `json:"address"`
	MpesaPhone            string `json:"mpesa_phone" binding:"omitempty,msisdn"`
	BankName              string `json:"bank_name"`
	BankAccountNumber     string `json:"bank_account_number"`
	PreferredDisbursement string `json:"preferred_disbursement" binding:"omitempty,oneof=mpesa bank manual"`
}

func (h *clientHandler) Update(c *gin.Context) {
	id := pathID(c)
	if id == 0 {
		return
	}

	var req updateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	client, err := h.clients.UpdateClient(c.Request.Context(), service.UpdateClientRequest{
		ClientID:              id,
		Phone:                 req.Phone,
		Email:                 req.Email,
		Address:               req.Address,
		MpesaPhone:            req.MpesaPhone,
		BankName:              req.BankName,
		BankAccountNumber:     req.BankAccountNumber,
		PreferredDisbursement: req.PreferredDisbursement,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *clientHandler) Loans(c *gin.Context) {
	id := pathID(c)
	if id == 0 {
		return
	}

	loans, err := h.clients.ClientLoans(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loans": loans})
}
