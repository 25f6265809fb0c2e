package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RazorpayClient creates payment-gateway orders. How the payment is
// actually charged is the gateway's business; this engine only needs the
// gateway order reference to tie the two completion signals together.
type RazorpayClient struct {
	logger    *slog.Logger
	keyID     string
	keySecret string
	apiURL    string
	currency  string
	client    *http.Client
	isEnabled bool
}

// NewRazorpayClient creates the gateway client. With missing credentials
// the client runs disabled and fabricates local order references, which
// keeps development environments working without gateway access.
func NewRazorpayClient(logger *slog.Logger, keyID, keySecret, apiURL, currency string) *RazorpayClient {
	isEnabled := keyID != "" && keySecret != ""

	if !isEnabled {
		logger.Warn("Razorpay client is disabled due to missing credentials")
	} else {
		logger.Info("Razorpay client initialized", "api_url", apiURL)
	}

	return &RazorpayClient{
		logger:    logger,
		keyID:     keyID,
		keySecret: keySecret,
		apiURL:    apiURL,
		currency:  currency,
		client:    &http.Client{Timeout: 10 * time.Second},
		isEnabled: isEnabled,
	}
}

// IsEnabled reports whether real gateway calls are being made.
func (c *RazorpayClient) IsEnabled() bool {
	return c.isEnabled
}

// Currency returns the configured settlement currency.
func (c *RazorpayClient) Currency() string {
	return c.currency
}

type razorpayOrderRequest struct {
	Amount   int64  `json:"amount"` // minor currency units
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type razorpayOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// CreateOrder registers a payment intent with the gateway and returns the
// gateway order reference. Amount is in minor units; receipt carries our
// internal order id for reconciliation on the gateway side.
func (c *RazorpayClient) CreateOrder(ctx context.Context, amount int64, receipt string) (string, error) {
	if !c.isEnabled {
		localID := "order_local_" + uuid.NewString()
		c.logger.Warn("Razorpay client disabled, issuing local order reference",
			"receipt", receipt, "gateway_order_id", localID)
		return localID, nil
	}

	body, err := json.Marshal(razorpayOrderRequest{
		Amount:   amount,
		Currency: c.currency,
		Receipt:  receipt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal gateway order request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create gateway request: %w", err)
	}

	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway order creation failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, respBody)
	}

	var result razorpayOrderResponse
	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode gateway response: %w", err)
	}

	c.logger.InfoContext(ctx, "Gateway order created",
		"gateway_order_id", result.ID, "amount", result.Amount, "receipt", receipt)

	return result.ID, nil
}
