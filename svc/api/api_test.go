package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/memorialkit/handler"
	"github.com/dmitrymomot/memorialkit/pkg/account"
	"github.com/dmitrymomot/memorialkit/pkg/billing"
	"github.com/dmitrymomot/memorialkit/pkg/docstore"
	"github.com/dmitrymomot/memorialkit/pkg/entitlement"
	"github.com/dmitrymomot/memorialkit/pkg/logger"
	"github.com/dmitrymomot/memorialkit/pkg/metrics"
	"github.com/dmitrymomot/memorialkit/pkg/plan"
	"github.com/dmitrymomot/memorialkit/pkg/ratelimit"
	"github.com/dmitrymomot/memorialkit/pkg/session"
	"github.com/dmitrymomot/memorialkit/svc/api"
	"github.com/dmitrymomot/memorialkit/svc/memorial"
	"github.com/dmitrymomot/memorialkit/svc/subscription"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateCustomer(ctx context.Context, email, accountID string) (string, error) {
	args := m.Called(ctx, email, accountID)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if s := args.Get(0); s != nil {
		return s.(*billing.CheckoutSession), args.Error(1)
	}
	return nil, args.Error(1)
}

type stubParser struct {
	event *billing.WebhookEvent
	err   error
}

func (p stubParser) ParseWebhook(context.Context, []byte, string) (*billing.WebhookEvent, error) {
	return p.event, p.err
}

// brokenCounter fails every usage read.
type brokenCounter struct{}

func (brokenCounter) MemorialCount(context.Context, string) (int64, error) {
	return 0, errors.New("connection reset")
}

type fixture struct {
	router   http.Handler
	store    *docstore.Memory
	sessions *session.Manager
	gateway  *mockGateway
}

type fixtureOptions struct {
	usage    account.UsageCounter
	webhooks api.WebhookParser
}

func newFixture(t *testing.T, opts fixtureOptions, accounts ...account.Account) *fixture {
	t.Helper()

	catalog, err := plan.Load(context.Background(), api.PlansConfig{
		ExtendedPrice:  "pri_extended",
		UnlimitedPrice: "pri_unlimited",
	}.Source())
	require.NoError(t, err)

	store := docstore.NewMemory(accounts...)
	var usage account.UsageCounter = store
	if opts.usage != nil {
		usage = opts.usage
	}

	m := metrics.NewMetrics(prometheus.NewRegistry())
	evaluator := entitlement.NewEvaluator(catalog, store, usage, entitlement.WithRecorder(m))
	gw := &mockGateway{}
	orchestrator := billing.NewOrchestrator(catalog, store, gw, billing.WithRecorder(m))
	subscriptions := subscription.NewService(catalog, store, evaluator, orchestrator)

	sessions, err := session.NewManager(session.Config{Secret: "test-secret", Issuer: "memorialkit", TTL: time.Hour})
	require.NoError(t, err)

	limitStore := ratelimit.NewMemoryStore()
	t.Cleanup(func() { _ = limitStore.Close() })
	limiter, err := ratelimit.New(limitStore, ratelimit.MustProfiles(
		ratelimit.Profile{Name: ratelimit.ProfileGeneral, Window: time.Minute, MaxRequests: 100},
		ratelimit.Profile{Name: ratelimit.ProfileStrict, Window: time.Minute, MaxRequests: 3},
		ratelimit.Profile{Name: ratelimit.ProfileCheckout, Window: time.Minute, MaxRequests: 2},
	), ratelimit.WithRecorder(m))
	require.NoError(t, err)

	errorHandler := handler.NewErrorHandler(logger.Nop())

	router := api.Router(api.RouterOptions{
		Log:          logger.Nop(),
		Sessions:     sessions,
		Metrics:      m,
		Memorials:    api.NewMemorialModule(memorial.NewService(evaluator, store), limiter, errorHandler),
		Subscription: api.NewSubscriptionModule(subscriptions, limiter, errorHandler),
		Billing: api.NewBillingModule(subscriptions, opts.webhooks, limiter, errorHandler, api.CheckoutConfig{
			SuccessURL: "https://app.example.com/billing/success",
			CancelURL:  "https://app.example.com/billing",
		}),
	})

	return &fixture{router: router, store: store, sessions: sessions, gateway: gw}
}

func (f *fixture) token(t *testing.T, acc account.Account) string {
	t.Helper()
	tok, err := f.sessions.Issue(&acc)
	require.NoError(t, err)
	return tok
}

func (f *fixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode[handler.ErrorBody](t, rec)
	require.NotNil(t, body.Error)
	return body.Error.Code
}

var (
	baseAccount = account.Account{ID: "acc_base", Email: "base@example.com", PlanID: plan.Base, Status: account.StatusActive}
	fullAccount = account.Account{ID: "acc_full", Email: "full@example.com", PlanID: plan.Base, Status: account.StatusActive, MemorialCount: 1}
	unlimited   = account.Account{ID: "acc_unlimited", Email: "u@example.com", PlanID: plan.Unlimited, Status: account.StatusActive, GatewayCustomerID: "ctm_1"}
)

func TestProbes(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fixtureOptions{})

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/readyz", "", "").Code)

	rec := f.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "memorialkit_")
}

func TestCreateMemorial(t *testing.T) {
	t.Parallel()

	t.Run("requires a session", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, fixtureOptions{}, baseAccount)

		rec := f.do(t, http.MethodPost, "/api/memorials", "", `{"name":"Grandma"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "unauthorized", errorCode(t, rec))
	})

	t.Run("rejects a forged token", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, fixtureOptions{}, baseAccount)

		rec := f.do(t, http.MethodPost, "/api/memorials", "not-a-token", `{"name":"Grandma"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("creates within quota", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, fixtureOptions{}, baseAccount)

		rec := f.do(t, http.MethodPost, "/api/memorials", f.token(t, baseAccount), `{"name":"  Grandma  "}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		resp := decode[api.MemorialResponse](t, rec)
		assert.Equal(t, "Grandma", resp.Memorial.Name)
		assert.Equal(t, baseAccount.ID, resp.Memorial.AccountID)
		assert.False(t, resp.Flagged)
		assert.Equal(t, int64(1), resp.CurrentCount)
		assert.Equal(t, int64(1), resp.MaxAllowed)

		assert.Len(t, f.store.Memorials(context.Background(), baseAccount.ID), 1)
	})

	t.Run("denies over quota with counts", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, fixtureOptions{}, fullAccount)

		rec := f.do(t, http.MethodPost, "/api/memorials", f.token(t, fullAccount), `{"name":"Second"}`)
		require.Equal(t, http.StatusForbidden, rec.Code)

		resp := decode[api.DeniedResponse](t, rec)
		assert.False(t, resp.CanCreate)
		assert.Equal(t, int64(1), resp.CurrentCount)
		assert.Equal(t, int64(1), resp.MaxAllowed)
		assert.Equal(t, "Base", resp.PlanName)
		assert.Equal(t, entitlement.ReasonQuotaExceeded, resp.Reason)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "quota_exceeded", resp.Error.Code)

		assert.Empty(t, f.store.Memorials(context.Background(), fullAccount.ID))
	})

	t.Run("denies an expired trial", func(t *testing.T) {
		t.Parallel()
		ended := time.Now().Add(-48 * time.Hour)
		acc := account.Account{ID: "acc_trial", Email: "t@example.com", PlanID: plan.Extended, Status: account.StatusTrialing, TrialEndsAt: &ended}
		f := newFixture(t, fixtureOptions{}, acc)

		rec := f.do(t, http.MethodPost, "/api/memorials", f.token(t, acc), `{"name":"Grandpa"}`)
		require.Equal(t, http.StatusForbidden, rec.Code)

		resp := decode[api.DeniedResponse](t, rec)
		assert.Equal(t, entitlement.ReasonTrialExpired, resp.Reason)
		assert.Equal(t, "Extended (trial expired)", resp.PlanName)
		assert.Equal(t, "trial_expired", resp.Error.Code)
	})

	t.Run("validates the name", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, fixtureOptions{}, baseAccount)

		rec := f.do(t, http.MethodPost, "/api/memorials", f.token(t, baseAccount), `{"name":"   "}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		body := decode[handler.ErrorBody](t, rec)
		assert.Equal(t, "validation_error", body.Error.Code)
		assert.Contains(t, body.Error.Details, "name")
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, fixtureOptions{}, baseAccount)

		rec := f.do(t, http.MethodPost, "/api/memorials", f.token(t, baseAccount), `{"name":"A","plan":"unlimited"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("fails closed when usage is unreadable", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, fixtureOptions{usage: brokenCounter{}}, baseAccount)

		rec := f.do(t, http.MethodPost, "/api/memorials", f.token(t, baseAccount), `{"name":"Grandma"}`)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "service_unavailable", errorCode(t, rec))
		assert.Empty(t, f.store.Memorials(context.Background(), baseAccount.ID))
	})

	t.Run("throttles before evaluating", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, fixtureOptions{}, unlimited)
		tok := f.token(t, unlimited)

		for range 3 {
			rec := f.do(t, http.MethodPost, "/api/memorials", tok, `{"name":"Memorial"}`)
			require.Equal(t, http.StatusCreated, rec.Code)
		}

		rec := f.do(t, http.MethodPost, "/api/memorials", tok, `{"name":"Memorial"}`)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, "rate_limited", errorCode(t, rec))
		assert.Len(t, f.store.Memorials(context.Background(), unlimited.ID), 3)
	})
}

func TestSubscriptionStatus(t *testing.T) {
	t.Parallel()

	t.Run("reports plan and limits", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, fixtureOptions{}, fullAccount)

		rec := f.do(t, http.MethodGet, "/api/subscription", f.token(t, fullAccount), "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		st := decode[subscription.SubscriptionStatus](t, rec)
		assert.Equal(t, plan.Base, st.PlanID)
		assert.Equal(t, account.StatusActive, st.SubscriptionStatus)
		assert.Equal(t, int64(1), st.MemorialCount)
		assert.Equal(t, int64(1), st.MaxMemorials)
		assert.False(t, st.CanCreate)
		assert.Equal(t, "Base", st.PlanName)
		assert.False(t, st.IsTrialActive)
		assert.Equal(t, subscription.Limits{Base: 1, Extended: 10, Unlimited: plan.NoLimit}, st.Limits)
	})

	t.Run("unknown account", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, fixtureOptions{})

		rec := f.do(t, http.MethodGet, "/api/subscription", f.token(t, baseAccount), "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "not_found", errorCode(t, rec))
	})

	t.Run("requires a session", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, fixtureOptions{})

		assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/subscription", "", "").Code)
	})
}

func TestCheckout(t *testing.T) {
	t.Parallel()

	t.Run("opens a session", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, fixtureOptions{}, unlimited)
		f.gateway.On("CreateCheckoutSession", mock.Anything, billing.CheckoutRequest{
			CustomerID: "ctm_1",
			PriceID:    "pri_extended",
			AccountID:  unlimited.ID,
			PlanID:     plan.Extended,
			SuccessURL: "https://app.example.com/billing/success",
			CancelURL:  "https://app.example.com/back",
		}).Return(&billing.CheckoutSession{ID: "txn_1", URL: "https://pay.example.com/txn_1"}, nil).Once()

		rec := f.do(t, http.MethodPost, "/api/billing/checkout", f.token(t, unlimited),
			`{"planId":"extended","cancelUrl":"https://app.example.com/back"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		body := decode[map[string]string](t, rec)
		assert.Equal(t, map[string]string{"sessionId": "txn_1", "url": "https://pay.example.com/txn_1"}, body)
		f.gateway.AssertExpectations(t)
	})

	t.Run("stores a newly created customer", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, fixtureOptions{}, baseAccount)
		f.gateway.On("CreateCustomer", mock.Anything, baseAccount.Email, baseAccount.ID).Return("ctm_new", nil).Once()
		f.gateway.On("CreateCheckoutSession", mock.Anything, mock.Anything).
			Return(&billing.CheckoutSession{ID: "txn_2", URL: "https://pay.example.com/txn_2"}, nil).Once()

		rec := f.do(t, http.MethodPost, "/api/billing/checkout", f.token(t, baseAccount), `{"planId":"unlimited"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		acc, err := f.store.Account(context.Background(), baseAccount.ID)
		require.NoError(t, err)
		assert.Equal(t, "ctm_new", acc.GatewayCustomerID)
	})

	t.Run("rejects a plan without a price", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, fixtureOptions{}, unlimited)

		rec := f.do(t, http.MethodPost, "/api/billing/checkout", f.token(t, unlimited), `{"planId":"base"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_plan", errorCode(t, rec))
	})

	t.Run("validates the body", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, fixtureOptions{}, unlimited)

		rec := f.do(t, http.MethodPost, "/api/billing/checkout", f.token(t, unlimited), `{"successUrl":"not a url"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		body := decode[handler.ErrorBody](t, rec)
		assert.Equal(t, "validation_error", body.Error.Code)
		assert.Contains(t, body.Error.Details, "planId")
		assert.Contains(t, body.Error.Details, "successUrl")
	})

	t.Run("unknown account", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, fixtureOptions{})

		rec := f.do(t, http.MethodPost, "/api/billing/checkout", f.token(t, unlimited), `{"planId":"extended"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("gateway failure", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, fixtureOptions{}, unlimited)
		f.gateway.On("CreateCheckoutSession", mock.Anything, mock.Anything).
			Return(nil, errors.New("paddle: 502")).Once()

		rec := f.do(t, http.MethodPost, "/api/billing/checkout", f.token(t, unlimited), `{"planId":"extended"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "internal_server_error", errorCode(t, rec))
	})

	t.Run("budget is separate from memorial creation", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, fixtureOptions{}, unlimited)
		tok := f.token(t, unlimited)
		f.gateway.On("CreateCheckoutSession", mock.Anything, mock.Anything).
			Return(&billing.CheckoutSession{ID: "txn_3", URL: "https://pay.example.com/txn_3"}, nil).Twice()

		for range 3 {
			require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/memorials", tok, `{"name":"Memorial"}`).Code)
		}
		require.Equal(t, http.StatusTooManyRequests, f.do(t, http.MethodPost, "/api/memorials", tok, `{"name":"Memorial"}`).Code)

		for range 2 {
			rec := f.do(t, http.MethodPost, "/api/billing/checkout", tok, `{"planId":"extended"}`)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		}

		rec := f.do(t, http.MethodPost, "/api/billing/checkout", tok, `{"planId":"extended"}`)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		f.gateway.AssertExpectations(t)
	})
}

func TestWebhook(t *testing.T) {
	t.Parallel()

	post := func(f *fixture, signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/billing/webhook", strings.NewReader(`{"event_type":"subscription.updated"}`))
		if signature != "" {
			req.Header.Set(api.SignatureHeader, signature)
		}
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		return rec
	}

	t.Run("applies a verified event", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, fixtureOptions{webhooks: stubParser{event: &billing.WebhookEvent{
			ID:         "evt_1",
			Type:       "subscription.updated",
			AccountID:  baseAccount.ID,
			CustomerID: "ctm_9",
			PriceID:    "pri_unlimited",
			Status:     "active",
		}}}, baseAccount)

		rec := post(f, "ts=1;h1=abc")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		acc, err := f.store.Account(context.Background(), baseAccount.ID)
		require.NoError(t, err)
		assert.Equal(t, plan.Unlimited, acc.PlanID)
		assert.Equal(t, "ctm_9", acc.GatewayCustomerID)
	})

	t.Run("missing signature", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, fixtureOptions{webhooks: stubParser{}}, baseAccount)

		rec := post(f, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_signature", errorCode(t, rec))
	})

	t.Run("bad signature", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, fixtureOptions{webhooks: stubParser{err: billing.ErrInvalidSignature}}, baseAccount)

		rec := post(f, "ts=1;h1=forged")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_signature", errorCode(t, rec))
	})

	t.Run("not mounted without a parser", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, fixtureOptions{}, baseAccount)

		assert.Equal(t, http.StatusNotFound, post(f, "ts=1;h1=abc").Code)
	})
}
