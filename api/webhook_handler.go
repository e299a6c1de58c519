package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"inphora/service"
)

// webhookHandler receives M-Pesa gateway callbacks. The gateway retries on
// any non-200, so every endpoint acknowledges receipt even when processing
// fails; the raw payload is persisted for reconciliation either way.
type webhookHandler struct {
	disbursements  service.DisbursementService
	reconciliation service.ReconciliationService
}

func newWebhookHandler(disbursements service.DisbursementService, reconciliation service.ReconciliationService) *webhookHandler {
	return &webhookHandler{
		disbursements:  disbursements,
		reconciliation: reconciliation,
	}
}

func acknowledge(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
}

// c2bConfirmation is the paybill confirmation payload
type c2bConfirmation struct {
	TransID       string `json:"TransID"`
	TransAmount   string `json:"TransAmount"`
	MSISDN        string `json:"MSISDN"`
	BillRefNumber string `json:"BillRefNumber"`
}

func (h *webhookHandler) C2BConfirmation(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		acknowledge(c)
		return
	}

	var payload c2bConfirmation
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.WithError(err).Warn("Unparseable C2B confirmation payload")
		acknowledge(c)
		return
	}

	amount, err := decimal.NewFromString(payload.TransAmount)
	if err != nil {
		log.WithFields(log.Fields{
			"transaction_id": payload.TransID,
			"amount":         payload.TransAmount,
		}).Warn("C2B confirmation carries an unparseable amount")
		acknowledge(c)
		return
	}

	if err := h.reconciliation.HandleC2BPayment(c.Request.Context(), service.C2BPayment{
		TransactionID: payload.TransID,
		Amount:        amount,
		Phone:         payload.MSISDN,
		BillRef:       payload.BillRefNumber,
		RawCallback:   raw,
	}); err != nil {
		log.WithError(err).WithField("transaction_id", payload.TransID).
			Error("Failed to process C2B confirmation")
	}
	acknowledge(c)
}

// b2cResultEnvelope wraps the asynchronous payout outcome
type b2cResultEnvelope struct {
	Result struct {
		ResultCode               int    `json:"ResultCode"`
		ResultDesc               string `json:"ResultDesc"`
		OriginatorConversationID string `json:"OriginatorConversationID"`
		TransactionID            string `json:"TransactionID"`
	} `json:"Result"`
}

func (h *webhookHandler) B2CResult(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		acknowledge(c)
		return
	}

	var payload b2cResultEnvelope
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.WithError(err).Warn("Unparseable B2C result payload")
		acknowledge(c)
		return
	}

	if err := h.disbursements.HandleB2CResult(c.Request.Context(), service.B2CResult{
		CorrelationID:         payload.Result.OriginatorConversationID,
		ResultCode:            strconv.Itoa(payload.Result.ResultCode),
		ResultDescription:     payload.Result.ResultDesc,
		ExternalTransactionID: payload.Result.TransactionID,
	}); err != nil {
		log.WithError(err).WithField("correlation_id", payload.Result.OriginatorConversationID).
			Error("Failed to process B2C result")
	}
	acknowledge(c)
}

// B2CTimeout fires when the gateway could not deliver a result in time.
// The attempt stays in processing; the eventual result callback or a
// manual check settles it.
func (h *webhookHandler) B2CTimeout(c *gin.Context) {
	raw, _ := c.GetRawData()
	log.WithField("payload", string(raw)).Warn("B2C queue timeout received")
	acknowledge(c)
}

// stkCallbackEnvelope wraps the collection prompt outcome
type stkCallbackEnvelope struct {
	Body struct {
		StkCallback struct {
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string          `json:"Name"`
					Value json.RawMessage `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

func (h *webhookHandler) STKCallback(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		acknowledge(c)
		return
	}

	var payload stkCallbackEnvelope
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.WithError(err).Warn("Unparseable STK callback payload")
		acknowledge(c)
		return
	}

	callback := service.STKCallback{
		CheckoutRequestID: payload.Body.StkCallback.CheckoutRequestID,
		ResultCode:        payload.Body.StkCallback.ResultCode,
		RawCallback:       raw,
	}
	for _, item := range payload.Body.StkCallback.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			var amount float64
			if json.Unmarshal(item.Value, &amount) == nil {
				callback.Amount = decimal.NewFromFloat(amount)
			}
		case "MpesaReceiptNumber":
			var receipt string
			if json.Unmarshal(item.Value, &receipt) == nil {
				callback.TransactionID = receipt
			}
		case "PhoneNumber":
			var phone json.Number
			if json.Unmarshal(item.Value, &phone) == nil {
				callback.Phone = phone.String()
			}
		}
	}

	if err := h.reconciliation.HandleSTKCallback(c.Request.Context(), callback); err != nil {
		log.WithError(err).WithField("checkout_request_id", callback.CheckoutRequestID).
			Error("Failed to process STK callback")
	}
	acknowledge(c)
}

// ListUnmatched returns payments awaiting manual reconciliation
func (h *webhookHandler) ListUnmatched(c *gin.Context) {
	unmatched, err := h.reconciliation.ListUnmatched(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": unmatched})
}

type manualReconcileRequest struct {
	LoanID int64 `json:"loan_id" binding:"required"`
}

// ManualReconcile applies an unmatched payment to an operator-chosen loan
func (h *webhookHandler) ManualReconcile(c *gin.Context) {
	id := pathID(c)
	if id == 0 {
		return
	}
	claims := currentClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req manualReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.reconciliation.ManualReconcile(c.Request.Context(), id, req.LoanID, claims.UserID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": fmt.Sprintf("payment %d applied to loan %d", id, req.LoanID)})
}

// Invalidate dismisses an unmatched payment that can never be applied
func (h *webhookHandler) Invalidate(c *gin.Context) {
	id := pathID(c)
	if id == 0 {
		return
	}
	claims := currentClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	if err := h.reconciliation.InvalidatePayment(c.Request.Context(), id, claims.UserID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": fmt.Sprintf("payment %d invalidated", id)})
}
