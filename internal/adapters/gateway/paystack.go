package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/earnforge/payments-core/internal/domain"
)

// PaystackGateway drives charges and transfers through the Paystack API.
// Amounts are converted to the minor unit (kobo) on the wire.
type PaystackGateway struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

type Config struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

func NewPaystackGateway(cfg Config) *PaystackGateway {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.paystack.co"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PaystackGateway{
		baseURL:   baseURL,
		secretKey: cfg.SecretKey,
		client:    &http.Client{Timeout: timeout},
	}
}

type paystackResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Reference    string `json:"reference"`
		TransferCode string `json:"transfer_code"`
		Status       string `json:"status"`
	} `json:"data"`
}

func (g *PaystackGateway) Charge(ctx context.Context, amount float64, method string) (domain.GatewayResult, error) {
	body := map[string]any{
		"amount":  int64(amount * 100),
		"channel": method,
	}
	resp, err := g.post(ctx, "/transaction/initialize", body)
	if err != nil {
		return domain.GatewayResult{}, err
	}
	return g.toResult(resp), nil
}

func (g *PaystackGateway) Payout(ctx context.Context, w domain.Withdrawal) (domain.GatewayResult, error) {
	body := map[string]any{
		"source":    "balance",
		"amount":    int64(w.NetAmount * 100),
		"reference": w.WithdrawalID.String(),
		"reason":    "wallet withdrawal",
		"recipient": map[string]any{
			"type":           w.Method,
			"name":           w.AccountDetails.AccountName,
			"account_number": w.AccountDetails.AccountNumber,
			"bank_code":      w.AccountDetails.BankCode,
		},
	}
	resp, err := g.post(ctx, "/transfer", body)
	if err != nil {
		return domain.GatewayResult{}, err
	}
	return g.toResult(resp), nil
}

func (g *PaystackGateway) post(ctx context.Context, path string, body map[string]any) (paystackResponse, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return paystackResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return paystackResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
			return paystackResponse{}, fmt.Errorf("%w: %v", domain.ErrGatewayTimeout, err)
		}
		return paystackResponse{}, fmt.Errorf("paystack request: %w", err)
	}
	defer httpResp.Body.Close()

	var resp paystackResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return paystackResponse{}, fmt.Errorf("decode paystack response: %w", err)
	}
	if httpResp.StatusCode >= 500 {
		return paystackResponse{}, fmt.Errorf("paystack responded %d: %s", httpResp.StatusCode, resp.Message)
	}
	if httpResp.StatusCode >= 400 {
		return paystackResponse{}, fmt.Errorf("%w: %s", domain.ErrGatewayRejected, resp.Message)
	}
	return resp, nil
}

func (g *PaystackGateway) toResult(resp paystackResponse) domain.GatewayResult {
	reference := resp.Data.Reference
	if reference == "" {
		reference = resp.Data.TransferCode
	}
	result := domain.GatewayResult{
		Reference: reference,
		Message:   resp.Message,
	}
	switch resp.Data.Status {
	case "success":
		result.Success = true
	case "pending", "otp", "processing":
		result.Pending = true
	default:
		result.Success = resp.Status
	}
	return result
}
