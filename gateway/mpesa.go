// Package gateway contains clients for external payment providers.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"inphora/errs"
)

const (
	sandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	productionBaseURL = "https://api.safaricom.co.ke"
)

// B2CRequest describes an outbound business-to-customer payment.
type B2CRequest struct {
	// CorrelationID is echoed back by the provider on the asynchronous
	// result callback and is the sole key used to match it.
	CorrelationID string
	Phone         string
	Amount        string
	Remarks       string
}

// B2CResponse is the synchronous acknowledgement of a B2C request.
type B2CResponse struct {
	ConversationID string
	ResponseCode   string
	ResponseDesc   string
}

// STKRequest describes a customer payment prompt pushed to a handset.
type STKRequest struct {
	Phone            string
	Amount           string
	AccountReference string
	Description      string
}

// STKResponse is the synchronous acknowledgement of an STK push.
type STKResponse struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResponseCode      string
}

// MpesaClient is the gateway surface the services depend on.
type MpesaClient interface {
	// SendB2C initiates an asynchronous payout. A nil error means the
	// provider accepted the request, not that the money moved.
	SendB2C(ctx context.Context, req B2CRequest) (*B2CResponse, error)
	// STKPush prompts a customer to authorize a collection.
	STKPush(ctx context.Context, req STKRequest) (*STKResponse, error)
}

// MpesaConfig holds the Daraja API credentials and endpoints.
type MpesaConfig struct {
	ConsumerKey       string
	ConsumerSecret    string
	Shortcode         string
	InitiatorName     string
	InitiatorPassword string
	Environment       string // "sandbox" or "production"
	CallbackBaseURL   string
	Passkey           string
}

// DarajaClient implements MpesaClient against the Safaricom Daraja API.
type DarajaClient struct {
	config     MpesaConfig
	httpClient *http.Client
	logger     *logrus.Logger

	mu           sync.Mutex
	accessToken  string
	tokenExpires time.Time

	// overrides the API host in tests
	baseURLOverride string
}

// NewDarajaClient creates a Daraja API client.
func NewDarajaClient(config MpesaConfig, logger *logrus.Logger) *DarajaClient {
	return &DarajaClient{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

func (c *DarajaClient) baseURL() string {
	if c.baseURLOverride != "" {
		return c.baseURLOverride
	}
	if c.config.Environment == "production" {
		return productionBaseURL
	}
	return sandboxBaseURL
}

// getAccessToken fetches an OAuth token, reusing the cached one while it
// is still valid.
func (c *DarajaClient) getAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpires) {
		return c.accessToken, nil
	}

	url := c.baseURL() + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errs.NewExternal("mpesa", fmt.Errorf("failed to build token request: %v", err))
	}

	credentials := base64.StdEncoding.EncodeToString(
		[]byte(c.config.ConsumerKey + ":" + c.config.ConsumerSecret))
	req.Header.Set("Authorization", "Basic "+credentials)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errs.NewExternal("mpesa", fmt.Errorf("token request failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", errs.NewExternal("mpesa",
			fmt.Errorf("token request returned %d: %s", resp.StatusCode, string(body)))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", errs.NewExternal("mpesa", fmt.Errorf("failed to decode token response: %v", err))
	}

	c.accessToken = tokenResp.AccessToken
	// Tokens are valid for an hour; refresh a minute early
	c.tokenExpires = time.Now().Add(59 * time.Minute)
	return c.accessToken, nil
}

func (c *DarajaClient) postJSON(ctx context.Context, path string, payload any, out any) error {
	token, err := c.getAccessToken(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+path, bytes.NewReader(body))
	if err != nil {
		return errs.NewExternal("mpesa", fmt.Errorf("failed to build request: %v", err))
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.NewExternal("mpesa", fmt.Errorf("request to %s failed: %v", path, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.NewExternal("mpesa", fmt.Errorf("failed to read response: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		return errs.NewExternal("mpesa",
			fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, string(respBody)))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return errs.NewExternal("mpesa", fmt.Errorf("failed to decode response: %v", err))
	}
	return nil
}

// SendB2C initiates a business-to-customer payout. The provider settles
// asynchronously via the result callback URL carrying the correlation id.
func (c *DarajaClient) SendB2C(ctx context.Context, req B2CRequest) (*B2CResponse, error) {
	payload := map[string]string{
		"OriginatorConversationID": req.CorrelationID,
		"InitiatorName":            c.config.InitiatorName,
		"SecurityCredential":       c.config.InitiatorPassword,
		"CommandID":                "BusinessPayment",
		"Amount":                   req.Amount,
		"PartyA":                   c.config.Shortcode,
		"PartyB":                   req.Phone,
		"Remarks":                  req.Remarks,
		"QueueTimeOutURL":          c.config.CallbackBaseURL + "/api/v1/mpesa/b2c/timeout",
		"ResultURL":                c.config.CallbackBaseURL + "/api/v1/mpesa/b2c/result",
		"Occasion":                 "Loan disbursement",
	}

	var raw struct {
		ConversationID           string `json:"ConversationID"`
		OriginatorConversationID string `json:"OriginatorConversationID"`
		ResponseCode             string `json:"ResponseCode"`
		ResponseDescription      string `json:"ResponseDescription"`
	}
	if err := c.postJSON(ctx, "/mpesa/b2c/v3/paymentrequest", payload, &raw); err != nil {
		return nil, err
	}

	if raw.ResponseCode != "0" {
		return nil, errs.NewExternal("mpesa",
			fmt.Errorf("b2c rejected with code %s: %s", raw.ResponseCode, raw.ResponseDescription))
	}

	c.logger.WithFields(logrus.Fields{
		"correlation_id":  req.CorrelationID,
		"conversation_id": raw.ConversationID,
	}).Info("B2C payment request accepted")

	return &B2CResponse{
		ConversationID: raw.ConversationID,
		ResponseCode:   raw.ResponseCode,
		ResponseDesc:   raw.ResponseDescription,
	}, nil
}

// STKPush prompts the customer's handset to authorize a paybill payment.
func (c *DarajaClient) STKPush(ctx context.Context, req STKRequest) (*STKResponse, error) {
	timestamp := time.Now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString(
		[]byte(c.config.Shortcode + c.config.Passkey + timestamp))

	payload := map[string]string{
		"BusinessShortCode": c.config.Shortcode,
		"Password":          password,
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            req.Amount,
		"PartyA":            req.Phone,
		"PartyB":            c.config.Shortcode,
		"PhoneNumber":       req.Phone,
		"CallBackURL":       c.config.CallbackBaseURL + "/api/v1/mpesa/stk/callback",
		"AccountReference":  req.AccountReference,
		"TransactionDesc":   req.Description,
	}

	var raw struct {
		MerchantRequestID   string `json:"MerchantRequestID"`
		CheckoutRequestID   string `json:"CheckoutRequestID"`
		ResponseCode        string `json:"ResponseCode"`
		ResponseDescription string `json:"ResponseDescription"`
	}
	if err := c.postJSON(ctx, "/mpesa/stkpush/v1/processrequest", payload, &raw); err != nil {
		return nil, err
	}

	if raw.ResponseCode != "0" {
		return nil, errs.NewExternal("mpesa",
			fmt.Errorf("stk push rejected with code %s: %s", raw.ResponseCode, raw.ResponseDescription))
	}

	c.logger.WithFields(logrus.Fields{
		"checkout_request_id": raw.CheckoutRequestID,
		"account_reference":   req.AccountReference,
	}).Info("STK push accepted")

	return &STKResponse{
		MerchantRequestID: raw.MerchantRequestID,
		CheckoutRequestID: raw.CheckoutRequestID,
		ResponseCode:      raw.ResponseCode,
	}, nil
}
