package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

const sandboxSignatureHeader = "X-Sandbox-Signature"

// SandboxGateway is a deterministic in-process provider used outside
// production. Checkouts never leave the service and webhooks are
// authenticated with an HMAC-SHA256 signature over the raw body.
type SandboxGateway struct {
	secret  []byte
	baseURL string
}

func NewSandboxGateway(secret, baseURL string) *SandboxGateway {
	return &SandboxGateway{secret: []byte(secret), baseURL: baseURL}
}

func (g *SandboxGateway) Provider() string { return "sandbox" }

func (g *SandboxGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error) {
	txID := "sbx_" + uuid.NewString()
	return Checkout{
		ExternalTransactionID: txID,
		CheckoutURL:           fmt.Sprintf("%s/sandbox/checkout/%s", g.baseURL, txID),
	}, nil
}

type sandboxEvent struct {
	EventID       string `json:"event_id"`
	TransactionID string `json:"transaction_id"`
	Type          string `json:"type"`
}

func (g *SandboxGateway) ParseWebhook(r *http.Request) (ProviderEvent, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		return ProviderEvent{}, fmt.Errorf("read webhook body: %w", err)
	}
	if !g.verify(body, r.Header.Get(sandboxSignatureHeader)) {
		return ProviderEvent{}, fmt.Errorf("invalid webhook signature")
	}

	var ev sandboxEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ProviderEvent{}, fmt.Errorf("decode webhook body: %w", err)
	}
	if ev.EventID == "" || ev.TransactionID == "" {
		return ProviderEvent{}, fmt.Errorf("webhook missing event or transaction id")
	}

	var typ EventType
	switch ev.Type {
	case "approved":
		typ = EventApproved
	case "cancelled":
		typ = EventCancelled
	default:
		return ProviderEvent{}, fmt.Errorf("unsupported webhook event type %q", ev.Type)
	}

	return ProviderEvent{
		ExternalEventID:       ev.EventID,
		ExternalTransactionID: ev.TransactionID,
		Type:                  typ,
		Raw:                   body,
	}, nil
}

func (g *SandboxGateway) verify(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(signature))
}

// Sign computes the signature the gateway expects for a body. Exposed
// for the sandbox checkout simulator and tests.
func (g *SandboxGateway) Sign(body []byte) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
