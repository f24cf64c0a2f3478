package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// PaddleConfig holds configuration for the Paddle gateway.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY,required"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// PaddleGateway implements Gateway for Paddle Billing.
type PaddleGateway struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
}

var _ Gateway = (*PaddleGateway)(nil)

// NewPaddleGateway creates a Paddle client for the configured environment.
func NewPaddleGateway(cfg PaddleConfig) (*PaddleGateway, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}

	var (
		client *paddle.SDK
		err    error
	)
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.APIKey)
	case "production", "":
		client, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidEnvironment, cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}

	return &PaddleGateway{
		client:   client,
		verifier: paddle.NewWebhookVerifier(cfg.WebhookSecret),
	}, nil
}

func (g *PaddleGateway) CreateCustomer(ctx context.Context, email, accountID string) (string, error) {
	customer, err := g.client.CustomersClient.CreateCustomer(ctx, &paddle.CreateCustomerRequest{
		Email: email,
		CustomData: paddle.CustomData{
			"account_id": accountID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create paddle customer: %w", err)
	}
	return customer.ID, nil
}

// CreateCheckoutSession creates a ready transaction; Paddle's hosted checkout
// for it is the session. Account and plan travel in custom data so webhooks
// can be matched back to the account.
func (g *PaddleGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if req.PriceID == "" {
		return nil, errors.New("price ID is required")
	}
	if req.CustomerID == "" {
		return nil, errors.New("customer ID is required")
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  req.PriceID,
		Quantity: 1,
	})

	txReq := &paddle.CreateTransactionRequest{
		Items:      []paddle.CreateTransactionItems{*item},
		CustomerID: paddle.PtrTo(req.CustomerID),
		CustomData: paddle.CustomData{
			"account_id": req.AccountID,
			"plan_id":    string(req.PlanID),
		},
	}
	if req.CancelURL != "" {
		txReq.CustomData["cancel_url"] = req.CancelURL
	}
	if req.SuccessURL != "" {
		txReq.Checkout = &paddle.TransactionCheckout{
			URL: paddle.PtrTo(req.SuccessURL),
		}
	}

	tx, err := g.client.TransactionsClient.CreateTransaction(ctx, txReq)
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle transaction: %w", err)
	}
	if tx.Checkout == nil || tx.Checkout.URL == nil {
		return nil, errors.New("no checkout URL returned from paddle")
	}

	return &CheckoutSession{
		ID:  tx.ID,
		URL: *tx.Checkout.URL,
	}, nil
}

// WebhookEvent is the subscription state carried by a Paddle webhook.
type WebhookEvent struct {
	ID          string
	Type        string
	AccountID   string
	CustomerID  string
	PriceID     string
	Status      string
	TrialEndsAt *time.Time
	OccurredAt  time.Time
}

// IsSubscriptionEvent reports whether the event describes a subscription.
func (e *WebhookEvent) IsSubscriptionEvent() bool {
	return strings.HasPrefix(e.Type, "subscription.")
}

type paddleEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       struct {
		ID         string         `json:"id"`
		Status     string         `json:"status"`
		CustomerID string         `json:"customer_id"`
		CustomData map[string]any `json:"custom_data"`
		Items      []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
			TrialDates *struct {
				EndsAt time.Time `json:"ends_at"`
			} `json:"trial_dates"`
		} `json:"items"`
	} `json:"data"`
}

// ParseWebhook verifies the Paddle-Signature of payload and decodes it.
func (g *PaddleGateway) ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request for verification: %w", err)
	}
	req.Header.Set("Paddle-Signature", signature)

	valid, err := g.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}
	if !valid {
		return nil, ErrInvalidSignature
	}

	return decodeWebhook(payload)
}

func decodeWebhook(payload []byte) (*WebhookEvent, error) {
	var raw paddleEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, errors.Join(ErrInvalidPayload, err)
	}
	if raw.EventType == "" {
		return nil, fmt.Errorf("%w: missing event_type", ErrInvalidPayload)
	}

	event := &WebhookEvent{
		ID:         raw.EventID,
		Type:       raw.EventType,
		CustomerID: raw.Data.CustomerID,
		Status:     raw.Data.Status,
		OccurredAt: raw.OccurredAt,
	}
	if id, ok := raw.Data.CustomData["account_id"].(string); ok {
		event.AccountID = id
	}
	if len(raw.Data.Items) > 0 {
		item := raw.Data.Items[0]
		event.PriceID = item.Price.ID
		if item.TrialDates != nil && !item.TrialDates.EndsAt.IsZero() {
			ends := item.TrialDates.EndsAt
			event.TrialEndsAt = &ends
		}
	}
	return event, nil
}
