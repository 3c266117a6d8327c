package providers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/uuid"

	"github.com/earnforge/payments-core/internal/domain"
)

func signCPAGrip(secret, userID, txnID, amount, currency string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s:%s:%s:%s", userID, txnID, amount, currency)
	return hex.EncodeToString(mac.Sum(nil))
}

func cpagripValues(userID uuid.UUID, txnID, amount, currency, signature string) url.Values {
	return url.Values{
		"user_id":        {userID.String()},
		"transaction_id": {txnID},
		"amount":         {amount},
		"currency":       {currency},
		"offer_name":     {"Watch Video"},
		"signature":      {signature},
	}
}

func TestCPAGripParsePostback(t *testing.T) {
	t.Parallel()

	adapter := NewCPAGripAdapter(CPAGripConfig{BaseURL: "https://www.cpagrip.com", APIKey: "key"})
	userID := uuid.New()

	postback, err := adapter.ParsePostback(cpagripValues(userID, "txn-100", "2.50", "USD", "sig"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if postback.UserID != userID || postback.ExternalTransactionID != "txn-100" {
		t.Fatalf("parsed identity wrong: %+v", postback)
	}
	if postback.Amount != 2.5 || postback.Currency != "USD" {
		t.Fatalf("parsed amount/currency wrong: %+v", postback)
	}
	if postback.Raw["amount"] != "2.50" {
		t.Fatalf("raw wire amount lost: %q", postback.Raw["amount"])
	}
}

func TestCPAGripParsePostbackRejectsBadInput(t *testing.T) {
	t.Parallel()

	adapter := NewCPAGripAdapter(CPAGripConfig{})
	userID := uuid.New()

	badUser := cpagripValues(userID, "txn", "1.00", "USD", "sig")
	badUser.Set("user_id", "not-a-uuid")

	tests := []struct {
		name   string
		values url.Values
	}{
		{"bad user id", badUser},
		{"missing transaction id", cpagripValues(userID, "", "1.00", "USD", "sig")},
		{"zero amount", cpagripValues(userID, "txn", "0", "USD", "sig")},
		{"negative amount", cpagripValues(userID, "txn", "-5", "USD", "sig")},
		{"non-numeric amount", cpagripValues(userID, "txn", "lots", "USD", "sig")},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := adapter.ParsePostback(tt.values); err == nil {
				t.Fatalf("expected parse error")
			}
		})
	}
}

func TestCPAGripVerifyPostback(t *testing.T) {
	t.Parallel()

	adapter := NewCPAGripAdapter(CPAGripConfig{})
	const secret = "cpagrip-secret"
	userID := uuid.New()

	signature := signCPAGrip(secret, userID.String(), "txn-7", "1.25", "USD")
	postback, err := adapter.ParsePostback(cpagripValues(userID, "txn-7", "1.25", "USD", signature))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if err := adapter.VerifyPostback(postback, secret); err != nil {
		t.Fatalf("verify failed for valid signature: %v", err)
	}

	if err := adapter.VerifyPostback(postback, "wrong-secret"); !errors.Is(err, domain.ErrInvalidPostbackSignature) {
		t.Fatalf("verify with wrong secret = %v, want ErrInvalidPostbackSignature", err)
	}

	tampered := postback
	tampered.Raw = map[string]string{
		"user_id":        userID.String(),
		"transaction_id": "txn-7",
		"amount":         "9.99",
		"currency":       "USD",
	}
	if err := adapter.VerifyPostback(tampered, secret); !errors.Is(err, domain.ErrInvalidPostbackSignature) {
		t.Fatalf("verify of tampered amount = %v, want ErrInvalidPostbackSignature", err)
	}
}

func TestCPAGripFetchTasksParsesFeed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/common/offer_feed.php" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"offers":[
			{"offer_id":"101","title":"Install Game","category":"mobile","payout":"1.50","offerlink":"https://example.com/101"},
			{"offer_id":"102","title":"Survey","category":"survey","payout":"0.40","offerlink":"https://example.com/102"}
		]}`)
	}))
	defer srv.Close()

	adapter := NewCPAGripAdapter(CPAGripConfig{BaseURL: srv.URL, APIKey: "key"})
	tasks, err := adapter.FetchTasks(context.Background(), domain.TaskFilters{MinReward: 1})
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("fetched %d tasks, want 1 above the reward floor", len(tasks))
	}
	if tasks[0].ExternalID != "101" || tasks[0].Reward != 1.5 {
		t.Fatalf("task parsed wrong: %+v", tasks[0])
	}
}

func TestCPAGripHealthProbe(t *testing.T) {
	t.Parallel()

	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"offers":[]}`)
	}))
	defer healthy.Close()
	if err := NewCPAGripAdapter(CPAGripConfig{BaseURL: healthy.URL, APIKey: "key"}).Health(context.Background()); err != nil {
		t.Fatalf("probe of reachable feed failed: %v", err)
	}

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer broken.Close()
	if err := NewCPAGripAdapter(CPAGripConfig{BaseURL: broken.URL, APIKey: "key"}).Health(context.Background()); err == nil {
		t.Fatalf("expected probe error for 503 feed")
	}
}
