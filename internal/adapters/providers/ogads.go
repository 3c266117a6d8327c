package providers

import (
	"context"
	"crypto/md5"
	"crypto/subtle"
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

const ogadsProviderID = "ogads"

// OGAdsAdapter integrates the OGAds offer wall. OGAds tracks users through
// the aff_sub parameter and authenticates postbacks with an MD5 hash of the
// concatenated user, transaction and amount fields plus the shared secret.
type OGAdsAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type OGAdsConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func NewOGAdsAdapter(cfg OGAdsConfig) *OGAdsAdapter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OGAdsAdapter{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (a *OGAdsAdapter) ProviderID() string { return ogadsProviderID }

func (a *OGAdsAdapter) Authenticate(_ context.Context) error {
	if a.apiKey == "" {
		return fmt.Errorf("%w: ogads api key not configured", domain.ErrUnauthorized)
	}
	return nil
}

func (a *OGAdsAdapter) RefreshToken(_ context.Context) error { return nil }

func (a *OGAdsAdapter) FetchTasks(ctx context.Context, filters domain.TaskFilters) ([]domain.ProviderTask, error) {
	query := url.Values{}
	query.Set("key", a.apiKey)
	if filters.Limit > 0 {
		query.Set("max", strconv.Itoa(filters.Limit))
	}

	var feed struct {
		Offers []struct {
			OfferID int     `json:"offerid"`
			Name    string  `json:"name"`
			Device  string  `json:"device"`
			Payout  float64 `json:"payout,string"`
			Link    string  `json:"link"`
		} `json:"offers"`
	}
	if err := a.getJSON(ctx, "/v2/offers", query, &feed); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tasks := make([]domain.ProviderTask, 0, len(feed.Offers))
	for _, offer := range feed.Offers {
		if offer.Payout < filters.MinReward {
			continue
		}
		if filters.Category != "" && offer.Device != filters.Category {
			continue
		}
		tasks = append(tasks, domain.ProviderTask{
			ProviderID: ogadsProviderID,
			ExternalID: strconv.Itoa(offer.OfferID),
			Title:      offer.Name,
			Category:   offer.Device,
			Reward:     offer.Payout,
			Currency:   "USD",
			URL:        offer.Link,
			FetchedAt:  now,
		})
	}
	return tasks, nil
}

func (a *OGAdsAdapter) GetTaskDetails(ctx context.Context, externalID string) (domain.ProviderTask, error) {
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

func (a *OGAdsAdapter) SubmitCompletion(_ context.Context, externalID string, _ []byte) error {
	return fmt.Errorf("%w: ogads completions arrive via postback (offer %s)", domain.ErrInvalidInput, externalID)
}

func (a *OGAdsAdapter) CheckTaskStatus(ctx context.Context, externalID string) (string, error) {
	query := url.Values{}
	query.Set("key", a.apiKey)
	query.Set("offerid", externalID)

	var status struct {
		Status string `json:"status"`
	}
	if err := a.getJSON(ctx, "/v2/offers/status", query, &status); err != nil {
		return "", err
	}
	return status.Status, nil
}

func (a *OGAdsAdapter) CheckPayoutStatus(ctx context.Context, externalID string) (string, error) {
	return a.CheckTaskStatus(ctx, externalID)
}

// Health probes the offer list with a single-offer request.
func (a *OGAdsAdapter) Health(ctx context.Context) error {
	query := url.Values{}
	query.Set("key", a.apiKey)
	query.Set("max", "1")
	var probe struct{}
	return a.getJSON(ctx, "/v2/offers", query, &probe)
}

func (a *OGAdsAdapter) ParsePostback(values url.Values) (domain.Postback, error) {
	userID, err := uuid.Parse(values.Get("aff_sub"))
	if err != nil {
		return domain.Postback{}, fmt.Errorf("parse aff_sub: %w", err)
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
		ProviderID:            ogadsProviderID,
		ExternalTransactionID: txnID,
		UserID:                userID,
		Amount:                amount,
		Currency:              values.Get("currency"),
		OfferName:             values.Get("offer_title"),
		Signature:             values.Get("hash"),
		Raw:                   flatten(values),
	}, nil
}

func (a *OGAdsAdapter) VerifyPostback(p domain.Postback, secret string) error {
	payload := p.Raw["aff_sub"] + p.Raw["transaction_id"] + p.Raw["amount"] + secret
	sum := md5.Sum([]byte(payload))
	expected := hex.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(expected), []byte(p.Signature)) != 1 {
		return domain.ErrInvalidPostbackSignature
	}
	return nil
}

func (a *OGAdsAdapter) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("ogads request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ogads responded %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
