package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/memorialkit/handler"
	"github.com/dmitrymomot/memorialkit/pkg/account"
	"github.com/dmitrymomot/memorialkit/pkg/ratelimit"
	"github.com/dmitrymomot/memorialkit/pkg/session"
	"github.com/dmitrymomot/memorialkit/svc/subscription"
)

// SubscriptionModule serves the caller's plan, trial and quota state.
type SubscriptionModule struct {
	subscriptions subscription.Service
	limiter       *ratelimit.Limiter
	errorHandler  handler.ErrorHandler[handler.Context]
}

func NewSubscriptionModule(
	subscriptions subscription.Service,
	limiter *ratelimit.Limiter,
	errorHandler handler.ErrorHandler[handler.Context],
) *SubscriptionModule {
	return &SubscriptionModule{
		subscriptions: subscriptions,
		limiter:       limiter,
		errorHandler:  errorHandler,
	}
}

func (m *SubscriptionModule) Handle() http.Handler {
	r := chi.NewRouter()
	r.Use(session.Require())
	if m.limiter != nil {
		r.Use(ratelimit.Middleware(m.limiter, ratelimit.ProfileGeneral, ratelimit.AccountOrIP(session.AccountID)))
	}

	r.Get("/", handler.Wrap(m.status,
		handler.WithErrorHandler[handler.Context, struct{}](m.errorHandler),
	))

	return r
}

func (m *SubscriptionModule) status(ctx handler.Context, _ struct{}) handler.Response {
	id, ok := session.FromContext(ctx)
	if !ok {
		return handler.Error(httpError(account.ErrMissingAccountID))
	}

	st, err := m.subscriptions.Status(ctx, id.AccountID)
	if err != nil {
		return handler.Error(httpError(err))
	}
	return handler.JSON(st)
}
