package providers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/earnforge/payments-core/internal/domain"
)

const cpagripProviderID = "cpagrip"

// CPAGripAdapter integrates the CPAGrip offer wall. Completions arrive
// through postbacks signed with an HMAC-SHA256 token over the colon-joined
// user, transaction, amount and currency fields.
type CPAGripAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type CPAGripConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func NewCPAGripAdapter(cfg CPAGripConfig) *CPAGripAdapter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CPAGripAdapter{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (a *CPAGripAdapter) ProviderID() string { return cpagripProviderID }

func (a *CPAGripAdapter) Authenticate(_ context.Context) error {
	if a.apiKey == "" {
		return fmt.Errorf("%w: cpagrip api key not configured", domain.ErrUnauthorized)
	}
	return nil
}

// RefreshToken is a no-op: CPAGrip authenticates every call with the static
// API key.
func (a *CPAGripAdapter) RefreshToken(_ context.Context) error { return nil }

func (a *CPAGripAdapter) FetchTasks(ctx context.Context, filters domain.TaskFilters) ([]domain.ProviderTask, error) {
	query := url.Values{}
	query.Set("user_id", "feed")
	query.Set("key", a.apiKey)
	if filters.Limit > 0 {
		query.Set("limit", strconv.Itoa(filters.Limit))
	}

	var feed struct {
		Offers []struct {
			OfferID  string  `json:"offer_id"`
			Title    string  `json:"title"`
			Category string  `json:"category"`
			Payout   float64 `json:"payout,string"`
			OfferURL string  `json:"offerlink"`
		} `json:"offers"`
	}
	if err := a.getJSON(ctx, "/common/offer_feed.php", query, &feed); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tasks := make([]domain.ProviderTask, 0, len(feed.Offers))
	for _, offer := range feed.Offers {
		if filters.Category != "" && offer.Category != filters.Category {
			continue
		}
		if offer.Payout < filters.MinReward {
			continue
		}
		tasks = append(tasks, domain.ProviderTask{
			ProviderID: cpagripProviderID,
			ExternalID: offer.OfferID,
			Title:      offer.Title,
			Category:   offer.Category,
			Reward:     offer.Payout,
			Currency:   "USD",
			URL:        offer.OfferURL,
			FetchedAt:  now,
		})
	}
	return tasks, nil
}

func (a *CPAGripAdapter) GetTaskDetails(ctx context.Context, externalID string) (domain.ProviderTask, error) {
	tasks, err := a.FetchTasks(ctx, domain.TaskFilters{})
	if err != nil {
		return domain.ProviderTask{}, err
	}
	for _, task := range tasks {
		if task.ExternalID == externalID {
			return task, nil
		}
	}
	return domain.ProviderTask{}, domain.ErrNotFound
}

// SubmitCompletion is unsupported: offer wall completions are reported by
// the network through signed postbacks, never pushed from our side.
func (a *CPAGripAdapter) SubmitCompletion(_ context.Context, externalID string, _ []byte) error {
	return fmt.Errorf("%w: cpagrip completions arrive via postback (offer %s)", domain.ErrInvalidInput, externalID)
}

func (a *CPAGripAdapter) CheckTaskStatus(ctx context.Context, externalID string) (string, error) {
	query := url.Values{}
	query.Set("key", a.apiKey)
	query.Set("offer_id", externalID)

	var status struct {
		Status string `json:"status"`
	}
	if err := a.getJSON(ctx, "/common/offer_status.php", query, &status); err != nil {
		return "", err
	}
	return status.Status, nil
}

func (a *CPAGripAdapter) CheckPayoutStatus(ctx context.Context, externalID string) (string, error) {
	return a.CheckTaskStatus(ctx, externalID)
}

// Health probes the offer feed with a single-offer request.
func (a *CPAGripAdapter) Health(ctx context.Context) error {
	query := url.Values{}
	query.Set("user_id", "feed")
	query.Set("key", a.apiKey)
	query.Set("limit", "1")
	var probe struct{}
	return a.getJSON(ctx, "/common/offer_feed.php", query, &probe)
}

func (a *CPAGripAdapter) ParsePostback(values url.Values) (domain.Postback, error) {
	userID, err := uuid.Parse(values.Get("user_id"))
	if err != nil {
		return domain.Postback{}, fmt.Errorf("parse user_id: %w", err)
	}
	txnID := values.Get("transaction_id")
	if txnID == "" {
		return domain.Postback{}, fmt.Errorf("transaction_id is required")
	}
	amount, err := strconv.ParseFloat(values.Get("amount"), 64)
	if err != nil || amount <= 0 {
		return domain.Postback{}, fmt.Errorf("invalid amount %q", values.Get("amount"))
	}
	return domain.Postback{
		ProviderID:            cpagripProviderID,
		ExternalTransactionID: txnID,
		UserID:                userID,
		Amount:                amount,
		Currency:              values.Get("currency"),
		OfferName:             values.Get("offer_name"),
		Signature:             values.Get("signature"),
		Raw:                   flatten(values),
	}, nil
}

func (a *CPAGripAdapter) VerifyPostback(p domain.Postback, secret string) error {
	// The signature covers the raw wire values, not our parsed floats.
	payload := fmt.Sprintf("%s:%s:%s:%s",
		p.Raw["user_id"], p.Raw["transaction_id"], p.Raw["amount"], p.Raw["currency"])
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(p.Signature)) {
		return domain.ErrInvalidPostbackSignature
	}
	return nil
}

func (a *CPAGripAdapter) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("cpagrip request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cpagrip responded %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func flatten(values url.Values) map[string]string {
	flat := make(map[string]string, len(values))
	for key := range values {
		flat[key] = values.Get(key)
	}
	return flat
}
