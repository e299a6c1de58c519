package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inphora/errs"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *DarajaClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	client := NewDarajaClient(MpesaConfig{
		ConsumerKey:     "key",
		ConsumerSecret:  "secret",
		Shortcode:       "600000",
		InitiatorName:   "testapi",
		CallbackBaseURL: "https://example.com",
	}, logger)
	client.baseURLOverride = server.URL
	return client
}

func tokenResponse(w http.ResponseWriter) {
	json.NewEncoder(w).Encode(map[string]string{
		"access_token": "test-token",
		"expires_in":   "3599",
	})
}

func TestDarajaClient_SendB2C_Accepted(t *testing.T) {
	var gotPayload map[string]string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			assert.NotEmpty(t, r.Header.Get("Authorization"))
			tokenResponse(w)
		case "/mpesa/b2c/v3/paymentrequest":
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
			json.NewEncoder(w).Encode(map[string]string{
				"ConversationID":           "AG_20240101_000012345",
				"OriginatorConversationID": gotPayload["OriginatorConversationID"],
				"ResponseCode":             "0",
				"ResponseDescription":      "Accept the service request successfully.",
			})
		default:
			t.Fatalf("unexpected request to %s", r.URL.Path)
		}
	})

	resp, err := client.SendB2C(context.Background(), B2CRequest{
		CorrelationID: "corr-123",
		Phone:         "254712345678",
		Amount:        "5000",
		Remarks:       "Loan 42",
	})
	require.NoError(t, err)

	assert.Equal(t, "AG_20240101_000012345", resp.ConversationID)
	assert.Equal(t, "corr-123", gotPayload["OriginatorConversationID"])
	assert.Equal(t, "254712345678", gotPayload["PartyB"])
	assert.Equal(t, "https://example.com/api/v1/mpesa/b2c/result", gotPayload["ResultURL"])
}

func TestDarajaClient_SendB2C_Rejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			tokenResponse(w)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"ResponseCode":        "1",
			"ResponseDescription": "Insufficient funds",
		})
	})

	_, err := client.SendB2C(context.Background(), B2CRequest{
		CorrelationID: "corr-456",
		Phone:         "254712345678",
		Amount:        "5000",
	})
	require.Error(t, err)
	assert.True(t, errs.IsExternal(err))
	assert.Contains(t, err.Error(), "Insufficient funds")
}

func TestDarajaClient_TokenReused(t *testing.T) {
	tokenRequests := 0

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			tokenRequests++
			tokenResponse(w)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"MerchantRequestID": "m-1",
			"CheckoutRequestID": "c-1",
			"ResponseCode":      "0",
		})
	})

	for i := 0; i < 3; i++ {
		_, err := client.STKPush(context.Background(), STKRequest{
			Phone:            "254712345678",
			Amount:           "100",
			AccountReference: "REG000001",
		})
		require.NoError(t, err)
	}

	assert.Equal(t, 1, tokenRequests)
}

func TestDarajaClient_TokenFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
	})

	_, err := client.STKPush(context.Background(), STKRequest{Phone: "254712345678", Amount: "100"})
	require.Error(t, err)
	assert.True(t, errs.IsExternal(err))
}
