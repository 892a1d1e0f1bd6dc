package paymentgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

type Config struct {
	BaseURL        string
	ClientID       string
	ClientSecret   string
	ReturnURL      string
	CancelURL      string
	RequestTimeout time.Duration
}

// Client talks to the PayPal REST API. Every call takes a context and is
// bounded by RequestTimeout; the OAuth token is cached until shortly
// before expiry.
type Client struct {
	baseURL        string
	clientID       string
	clientSecret   string
	returnURL      string
	cancelURL      string
	requestTimeout time.Duration
	httpClient     *http.Client
	logger         *slog.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewClient(config Config, logger *slog.Logger) *Client {
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL:        strings.TrimRight(config.BaseURL, "/"),
		clientID:       config.ClientID,
		clientSecret:   config.ClientSecret,
		returnURL:      config.ReturnURL,
		cancelURL:      config.CancelURL,
		requestTimeout: timeout,
		httpClient:     &http.Client{Timeout: timeout},
		logger:         logger,
	}
}

// CreatePayment registers a new payment at the gateway and returns the
// approval URL the patient is redirected to.
func (c *Client) CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*CreatePaymentResponse, error) {
	if err := req.Validate(); err != nil {
		c.logger.Error("create payment validation failed", "error", err)
		return nil, fmt.Errorf("validation error: %w", err)
	}

	payload := map[string]interface{}{
		"intent": "sale",
		"payer":  map[string]string{"payment_method": "paypal"},
		"transactions": []map[string]interface{}{
			{
				"amount": map[string]string{
					"total":    formatAmount(req.AmountCents),
					"currency": req.Currency,
				},
				"description":    req.Description,
				"invoice_number": req.InvoiceID,
			},
		},
		"redirect_urls": map[string]string{
			"return_url": c.returnURL,
			"cancel_url": c.cancelURL,
		},
	}

	var resp struct {
		ID    string `json:"id"`
		State string `json:"state"`
		Links []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}

	if err := c.doJSON(ctx, http.MethodPost, "/v1/payments/payment", payload, &resp); err != nil {
		c.logger.Error("create payment failed", "error", err, "invoice_id", req.InvoiceID)
		return nil, err
	}

	var approvalURL string
	for _, link := range resp.Links {
		if link.Rel == "approval_url" {
			approvalURL = link.Href
			break
		}
	}

	c.logger.Info("gateway payment created",
		"gateway_payment_id", resp.ID,
		"invoice_id", req.InvoiceID,
		"state", resp.State)

	return &CreatePaymentResponse{
		PaymentID:   resp.ID,
		ApprovalURL: approvalURL,
		State:       PaymentState(resp.State),
	}, nil
}

// ExecutePayment captures an approved payment. The returned transaction
// id is the sale id refunds must reference.
func (c *Client) ExecutePayment(ctx context.Context, paymentID, payerID string) (*ExecutePaymentResponse, error) {
	if paymentID == "" || payerID == "" {
		return nil, fmt.Errorf("payment id and payer id are required")
	}

	payload := map[string]string{"payer_id": payerID}

	var resp struct {
		ID           string `json:"id"`
		State        string `json:"state"`
		Transactions []struct {
			RelatedResources []struct {
				Sale struct {
					ID    string `json:"id"`
					State string `json:"state"`
				} `json:"sale"`
			} `json:"related_resources"`
		} `json:"transactions"`
	}

	path := fmt.Sprintf("/v1/payments/payment/%s/execute", url.PathEscape(paymentID))
	if err := c.doJSON(ctx, http.MethodPost, path, payload, &resp); err != nil {
		c.logger.Error("execute payment failed", "error", err, "gateway_payment_id", paymentID)
		return nil, err
	}

	var transactionID string
	if len(resp.Transactions) > 0 && len(resp.Transactions[0].RelatedResources) > 0 {
		transactionID = resp.Transactions[0].RelatedResources[0].Sale.ID
	}

	c.logger.Info("gateway payment executed",
		"gateway_payment_id", resp.ID,
		"transaction_id", transactionID,
		"state", resp.State)

	return &ExecutePaymentResponse{
		PaymentID:     resp.ID,
		TransactionID: transactionID,
		State:         PaymentState(resp.State),
	}, nil
}

// RefundSale refunds a captured sale, fully when amountCents is zero.
func (c *Client) RefundSale(ctx context.Context, transactionID string, amountCents int64, currency string) (*RefundResponse, error) {
	if transactionID == "" {
		return nil, fmt.Errorf("transaction id is required")
	}

	payload := map[string]interface{}{}
	if amountCents > 0 {
		payload["amount"] = map[string]string{
			"total":    formatAmount(amountCents),
			"currency": currency,
		}
	}

	var resp struct {
		ID    string `json:"id"`
		State string `json:"state"`
	}

	path := fmt.Sprintf("/v1/payments/sale/%s/refund", url.PathEscape(transactionID))
	if err := c.doJSON(ctx, http.MethodPost, path, payload, &resp); err != nil {
		c.logger.Error("refund failed", "error", err, "transaction_id", transactionID)
		return nil, err
	}

	c.logger.Info("gateway refund issued", "refund_id", resp.ID, "transaction_id", transactionID, "state", resp.State)

	return &RefundResponse{RefundID: resp.ID, State: resp.State}, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out interface{}) error {
	token, err := c.getAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to obtain access token: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode gateway response: %w", err)
		}
	}

	return nil
}

func (c *Client) getAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	form := url.Values{"grant_type": {"client_credentials"}}
	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	httpReq.SetBasicAuth(c.clientID, c.clientSecret)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	c.accessToken = tokenResp.AccessToken
	// renew a minute early so in-flight calls never carry a stale token
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn-60) * time.Second)

	return c.accessToken, nil
}

func formatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
