package subscription

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmitrymomot/memorialkit/pkg/account"
	"github.com/dmitrymomot/memorialkit/pkg/billing"
	"github.com/dmitrymomot/memorialkit/pkg/entitlement"
	"github.com/dmitrymomot/memorialkit/pkg/logger"
	"github.com/dmitrymomot/memorialkit/pkg/plan"
)

// Service is the account-facing subscription API.
type Service interface {
	// Status returns the subscription and quota view of an account.
	Status(ctx context.Context, accountID string) (*SubscriptionStatus, error)

	// Checkout opens a checkout session and persists a newly created
	// gateway customer ID onto the account.
	Checkout(ctx context.Context, req billing.Request) (*billing.Session, error)

	// ApplyWebhook updates the account a subscription webhook refers to.
	// Events that cannot be matched to an account are logged and dropped.
	ApplyWebhook(ctx context.Context, event *billing.WebhookEvent) error
}

// Store is the account storage the service reads and writes.
type Store interface {
	account.Reader
	account.Writer
}

// SessionCreator opens checkout sessions. *billing.Orchestrator satisfies it.
type SessionCreator interface {
	CreateSession(ctx context.Context, req billing.Request) (*billing.Session, error)
}

type service struct {
	catalog   *plan.Catalog
	store     Store
	evaluator *entitlement.Evaluator
	checkout  SessionCreator
	log       *slog.Logger
}

// NewService creates an account Service.
func NewService(catalog *plan.Catalog, store Store, evaluator *entitlement.Evaluator, checkout SessionCreator, opts ...ServiceOption) Service {
	if catalog == nil || store == nil || evaluator == nil || checkout == nil {
		panic("subscription: catalog, store, evaluator and checkout are required")
	}

	s := &service{
		catalog:   catalog,
		store:     store,
		evaluator: evaluator,
		checkout:  checkout,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Status(ctx context.Context, accountID string) (*SubscriptionStatus, error) {
	if accountID == "" {
		return nil, account.ErrMissingAccountID
	}

	acc, err := s.store.Account(ctx, accountID)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return nil, err
		}
		return nil, errors.Join(entitlement.ErrUpstreamUnavailable, err)
	}

	decision, err := s.evaluator.EvaluateSnapshot(ctx, acc.Snapshot())
	if err != nil {
		return nil, err
	}

	count := acc.MemorialCount
	if decision.Reason == entitlement.ReasonAllowed || decision.Reason == entitlement.ReasonQuotaExceeded {
		if !decision.Unlimited() {
			count = decision.CurrentCount
		}
	}

	st := &SubscriptionStatus{
		PlanID:             acc.PlanID,
		SubscriptionStatus: acc.Status,
		TrialEndsAt:        acc.TrialEndsAt,
		MemorialCount:      count,
		MaxMemorials:       decision.MaxAllowed,
		CanCreate:          decision.CanCreate,
		PlanName:           decision.PlanName,
		Limits:             limitsFrom(s.catalog),
	}
	if acc.IsTrialing() {
		// Same instant the decision was made at.
		st.IsTrialActive = decision.Trial.IsActive
		st.TrialDaysRemaining = decision.Trial.DaysRemaining
	}
	return st, nil
}

func (s *service) Checkout(ctx context.Context, req billing.Request) (*billing.Session, error) {
	sess, err := s.checkout.CreateSession(ctx, req)
	if err != nil {
		return nil, err
	}

	if sess.CustomerCreated {
		// The session is valid either way; a lost customer ID only means the
		// next checkout creates another gateway identity.
		if err := s.store.SetGatewayCustomerID(ctx, sess.AccountID, sess.CustomerID); err != nil {
			s.log.ErrorContext(ctx, "failed to persist gateway customer ID",
				logger.Component("subscription"),
				logger.AccountID(sess.AccountID),
				logger.Error(err),
			)
		}
	}
	return sess, nil
}

func (s *service) ApplyWebhook(ctx context.Context, event *billing.WebhookEvent) error {
	log := s.log.With(
		logger.Component("subscription"),
		slog.String("event_id", event.ID),
		slog.String("event_type", event.Type),
	)

	if !event.IsSubscriptionEvent() {
		log.DebugContext(ctx, "ignoring non-subscription webhook")
		return nil
	}
	if event.AccountID == "" {
		log.WarnContext(ctx, "subscription webhook without account reference")
		return nil
	}

	upd, err := s.updateFromEvent(event)
	if err != nil {
		log.WarnContext(ctx, "subscription webhook not applied",
			logger.AccountID(event.AccountID),
			logger.Error(err),
		)
		return nil
	}

	if err := s.store.UpdateSubscription(ctx, event.AccountID, upd); err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			log.WarnContext(ctx, "subscription webhook for unknown account", logger.AccountID(event.AccountID))
			return nil
		}
		return errors.Join(ErrUpdateFailed, err)
	}

	log.InfoContext(ctx, "subscription updated from webhook", logger.AccountID(event.AccountID))
	return nil
}

func (s *service) updateFromEvent(event *billing.WebhookEvent) (account.SubscriptionUpdate, error) {
	var upd account.SubscriptionUpdate

	status, ok := mapGatewayStatus(event.Status)
	if ok {
		upd.Status = &status
	}

	if event.PriceID != "" {
		p, err := s.catalog.ByPriceID(event.PriceID)
		if err != nil {
			return upd, errors.Join(ErrUnknownPrice, err)
		}
		upd.PlanID = &p.ID
	}

	if ok && status == account.StatusCanceled {
		base := plan.Base
		upd.PlanID = &base
	}

	switch {
	case event.TrialEndsAt != nil && (!ok || status == account.StatusTrialing):
		t := event.TrialEndsAt.UTC()
		upd.TrialEndsAt = &t
	case ok && status != account.StatusTrialing:
		upd.ClearTrial = true
	}

	if event.CustomerID != "" {
		upd.GatewayCustomerID = &event.CustomerID
	}
	return upd, nil
}

// mapGatewayStatus converts a Paddle subscription status. Paused
// subscriptions are treated as canceled.
func mapGatewayStatus(raw string) (account.Status, bool) {
	switch raw {
	case "active":
		return account.StatusActive, true
	case "trialing":
		return account.StatusTrialing, true
	case "past_due":
		return account.StatusPastDue, true
	case "canceled", "paused":
		return account.StatusCanceled, true
	}
	return "", false
}
