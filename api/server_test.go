package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"inphora/cache"
	"inphora/errs"
	"inphora/models"
	"inphora/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRespondError_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", errs.NewValidation("bad input"), http.StatusBadRequest},
		{"not found", errs.NewNotFound("loan", 42), http.StatusNotFound},
		{"conflict", errs.NewConflict("already open"), http.StatusConflict},
		{"external", errs.NewExternal("mpesa", errors.New("timeout")), http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			respondError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func newAuthServiceWithUser(t *testing.T, role models.Role) (service.AuthService, string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)

	uow := service.NewMockUnitOfWork()
	uow.UserRepo.On("GetByEmail", mock.Anything, "officer@example.com").Return(&models.User{
		ID:           9,
		Email:        "officer@example.com",
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	}, nil)
	uow.UserRepo.On("RecordLogin", mock.Anything, int64(9), mock.AnythingOfType("time.Time")).Return(nil)

	authService := service.NewAuthService(
		service.NewMockUnitOfWorkFactory(uow), cache.NewMemoryStore(), "test-secret", time.Hour)

	result, err := authService.Login(context.Background(), "officer@example.com", "correct horse")
	require.NoError(t, err)
	return authService, result.Token
}

func protectedRouter(authService service.AuthService, required models.Role) *gin.Engine {
	r := gin.New()
	group := r.Group("", Auth(authService))
	group.GET("/guarded", RequireRole(required), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": currentClaims(c).UserID})
	})
	return r
}

func TestAuth_MissingToken(t *testing.T) {
	authService, _ := newAuthServiceWithUser(t, models.RoleViewer)
	r := protectedRouter(authService, models.RoleViewer)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/guarded", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_BadToken(t *testing.T) {
	authService, _ := newAuthServiceWithUser(t, models.RoleViewer)
	r := protectedRouter(authService, models.RoleViewer)

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_ValidTokenPasses(t *testing.T) {
	authService, token := newAuthServiceWithUser(t, models.RoleViewer)
	r := protectedRouter(authService, models.RoleViewer)

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":9`)
}

func TestRequireRole_InsufficientRole(t *testing.T) {
	authService, token := newAuthServiceWithUser(t, models.RoleViewer)
	r := protectedRouter(authService, models.RoleManager)

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireRole_HigherRolePasses(t *testing.T) {
	authService, token := newAuthServiceWithUser(t, models.RoleAdmin)
	r := protectedRouter(authService, models.RoleManager)

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit(t *testing.T) {
	store := cache.NewMemoryStore()
	r := gin.New()
	r.POST("/limited", RateLimit(store, 2), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/limited", nil))
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestWebhook_C2BAlwaysAcknowledges(t *testing.T) {
	// The reconciliation path fails hard, the gateway still gets a 200
	uow := service.NewMockUnitOfWork()
	uow.MpesaRepo.On("Create", mock.Anything, mock.Anything).Return(errors.New("database down"))
	reconciliation := service.NewReconciliationService(
		service.NewMockUnitOfWorkFactory(uow), cache.NewMemoryStore())

	handler := newWebhookHandler(nil, reconciliation)
	r := gin.New()
	r.POST("/c2b", handler.C2BConfirmation)

	body := bytes.NewBufferString(`{"TransID":"SGH7KLM2RT","TransAmount":"500.00","MSISDN":"254712345678","BillRefNumber":"42"}`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/c2b", body))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ResultCode":0`)
}

func TestWebhook_STKCallbackParsesMetadata(t *testing.T) {
	uow := service.NewMockUnitOfWork()
	uow.MpesaRepo.On("Create", mock.Anything, mock.MatchedBy(func(tx *models.MpesaIncomingTransaction) bool {
		return tx.TransactionID == "SGH7KLM2RT" &&
			tx.Amount.String() == "500" &&
			tx.Phone == "254712345678"
	})).Return(errs.NewConflict("already recorded"))
	reconciliation := service.NewReconciliationService(
		service.NewMockUnitOfWorkFactory(uow), cache.NewMemoryStore())

	handler := newWebhookHandler(nil, reconciliation)
	r := gin.New()
	r.POST("/stk", handler.STKCallback)

	body := bytes.NewBufferString(`{
		"Body": {"stkCallback": {
			"CheckoutRequestID": "ws_CO_1",
			"ResultCode": 0,
			"ResultDesc": "Success",
			"CallbackMetadata": {"Item": [
				{"Name": "Amount", "Value": 500},
				{"Name": "MpesaReceiptNumber", "Value": "SGH7KLM2RT"},
				{"Name": "PhoneNumber", "Value": 254712345678}
			]}
		}}
	}`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/stk", body))

	assert.Equal(t, http.StatusOK, w.Code)
	uow.MpesaRepo.AssertExpectations(t)
}

func TestMsisdnPattern(t *testing.T) {
	valid := []string{"0712345678", "254712345678", "+254712345678", "0112345678"}
	invalid := []string{"12345", "0812345678", "25471234567", "notaphone"}

	for _, phone := range valid {
		assert.True(t, msisdnPattern.MatchString(phone), "phone %q", phone)
	}
	for _, phone := range invalid {
		assert.False(t, msisdnPattern.MatchString(phone), "phone %q", phone)
	}
}
