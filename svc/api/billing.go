package api

import (
	"cmp"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/memorialkit/binder"
	"github.com/dmitrymomot/memorialkit/core"
	"github.com/dmitrymomot/memorialkit/handler"
	"github.com/dmitrymomot/memorialkit/pkg/account"
	"github.com/dmitrymomot/memorialkit/pkg/billing"
	"github.com/dmitrymomot/memorialkit/pkg/ratelimit"
	"github.com/dmitrymomot/memorialkit/pkg/session"
	"github.com/dmitrymomot/memorialkit/svc/subscription"
)

// MaxWebhookBodySize caps the payload read from the billing gateway.
const MaxWebhookBodySize = 256 << 10

// SignatureHeader carries the gateway's webhook signature.
const SignatureHeader = "Paddle-Signature"

// WebhookParser verifies and decodes gateway webhooks.
type WebhookParser interface {
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*billing.WebhookEvent, error)
}

// BillingModule serves checkout and the gateway webhook.
type BillingModule struct {
	subscriptions subscription.Service
	webhooks      WebhookParser
	limiter       *ratelimit.Limiter
	errorHandler  handler.ErrorHandler[handler.Context]
	cfg           CheckoutConfig
}

// NewBillingModule creates the billing module. Without a WebhookParser the
// webhook route is not mounted.
func NewBillingModule(
	subscriptions subscription.Service,
	webhooks WebhookParser,
	limiter *ratelimit.Limiter,
	errorHandler handler.ErrorHandler[handler.Context],
	cfg CheckoutConfig,
) *BillingModule {
	return &BillingModule{
		subscriptions: subscriptions,
		webhooks:      webhooks,
		limiter:       limiter,
		errorHandler:  errorHandler,
		cfg:           cfg,
	}
}

func (m *BillingModule) Handle() http.Handler {
	r := chi.NewRouter()

	if m.webhooks != nil {
		r.Post("/webhook", handler.Wrap(m.webhook,
			handler.WithBinder[handler.Context, WebhookRequest](bindWebhook(MaxWebhookBodySize)),
			handler.WithErrorHandler[handler.Context, WebhookRequest](m.errorHandler),
		))
	}

	r.Group(func(r chi.Router) {
		r.Use(session.Require())
		if m.limiter != nil {
			r.Use(ratelimit.Middleware(m.limiter, ratelimit.ProfileCheckout, ratelimit.AccountOrIP(session.AccountID)))
		}

		r.Post("/checkout", handler.Wrap(m.checkout,
			handler.WithBinder[handler.Context, CheckoutRequest](binder.BindJSON()),
			handler.WithErrorHandler[handler.Context, CheckoutRequest](m.errorHandler),
		))
	})

	return r
}

// CheckoutRequest is the body of POST /api/billing/checkout. Empty URLs fall
// back to the configured ones.
type CheckoutRequest struct {
	PlanID     string `json:"planId"`
	SuccessURL string `json:"successUrl,omitempty"`
	CancelURL  string `json:"cancelUrl,omitempty"`
}

func (m *BillingModule) checkout(ctx handler.Context, req CheckoutRequest) handler.Response {
	id, ok := session.FromContext(ctx)
	if !ok {
		return handler.Error(httpError(account.ErrMissingAccountID))
	}

	sess, err := m.subscriptions.Checkout(ctx, billing.Request{
		AccountID:  id.AccountID,
		PlanID:     req.PlanID,
		SuccessURL: cmp.Or(req.SuccessURL, m.cfg.SuccessURL),
		CancelURL:  cmp.Or(req.CancelURL, m.cfg.CancelURL),
	})
	if err != nil {
		return handler.Error(httpError(err))
	}
	return handler.JSON(sess)
}

// WebhookRequest is the raw, unverified webhook delivery.
type WebhookRequest struct {
	Payload   []byte
	Signature string
}

func (m *BillingModule) webhook(ctx handler.Context, req WebhookRequest) handler.Response {
	event, err := m.webhooks.ParseWebhook(ctx, req.Payload, req.Signature)
	if err != nil {
		return handler.Error(httpError(err))
	}
	if err := m.subscriptions.ApplyWebhook(ctx, event); err != nil {
		return handler.Error(httpError(err))
	}
	return handler.EmptyWithStatus(http.StatusOK)
}

// bindWebhook reads the body verbatim; signature verification needs the exact bytes.
func bindWebhook(maxBytes int64) handler.Bind {
	return func(r *http.Request, v any) error {
		req, ok := v.(*WebhookRequest)
		if !ok {
			return binder.ErrBinderNotApplicable
		}

		req.Signature = r.Header.Get(SignatureHeader)
		if req.Signature == "" {
			return errors.Join(core.ErrInvalidSignature, billing.ErrInvalidSignature)
		}

		payload, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return binder.ErrBodyTooLarge
			}
			return errors.Join(core.ErrBadRequest, err)
		}
		if len(payload) == 0 {
			return errors.Join(core.ErrBadRequest, billing.ErrInvalidPayload)
		}
		req.Payload = payload
		return nil
	}
}
