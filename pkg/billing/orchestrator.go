package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dmitrymomot/memorialkit/pkg/account"
	"github.com/dmitrymomot/memorialkit/pkg/logger"
	"github.com/dmitrymomot/memorialkit/pkg/plan"
)

// DefaultTimeout bounds the gateway calls of one CreateSession.
const DefaultTimeout = 10 * time.Second

// Config is the orchestrator configuration read from the environment.
type Config struct {
	Timeout time.Duration `env:"BILLING_CHECKOUT_TIMEOUT" envDefault:"10s"`
}

// Request asks for a checkout session upgrading AccountID to PlanID.
type Request struct {
	AccountID  string `json:"-" validate:"required"`
	PlanID     string `json:"planId" validate:"required"`
	SuccessURL string `json:"successUrl,omitempty" validate:"omitempty,url"`
	CancelURL  string `json:"cancelUrl,omitempty" validate:"omitempty,url"`
}

// Session is an opened checkout.
type Session struct {
	SessionID   string  `json:"sessionId"`
	RedirectURL string  `json:"url"`
	AccountID   string  `json:"-"`
	PlanID      plan.ID `json:"-"`
	CustomerID  string  `json:"-"`
	// CustomerCreated is true when CustomerID was created by this call and
	// is not yet stored on the account.
	CustomerCreated bool `json:"-"`
}

// Recorder observes checkout outcomes, e.g. for metrics.
type Recorder interface {
	CheckoutSession(outcome string, d time.Duration)
}

// Orchestrator opens checkout sessions.
type Orchestrator struct {
	catalog  *plan.Catalog
	accounts account.Reader
	gateway  Gateway
	validate *validator.Validate
	timeout  time.Duration
	log      *slog.Logger
	recorder Recorder
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeout bounds gateway calls. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// NewOrchestrator creates an Orchestrator. Panics if any dependency is nil.
func NewOrchestrator(catalog *plan.Catalog, accounts account.Reader, gateway Gateway, opts ...Option) *Orchestrator {
	if catalog == nil {
		panic("billing: plan catalog is required")
	}
	if accounts == nil {
		panic("billing: account reader is required")
	}
	if gateway == nil {
		panic("billing: gateway is required")
	}

	o := &Orchestrator{
		catalog:  catalog,
		accounts: accounts,
		gateway:  gateway,
		validate: newValidator(),
		timeout:  DefaultTimeout,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// CreateSession validates req and opens a checkout session for it.
//
// Errors wrap ErrInvalidRequest or ErrInvalidPlan for bad input,
// ErrAccountNotFound for an unknown account, and ErrGatewayUnavailable when
// the gateway fails or does not answer within the timeout.
func (o *Orchestrator) CreateSession(ctx context.Context, req Request) (_ *Session, err error) {
	start := time.Now()
	defer func() {
		if o.recorder != nil {
			o.recorder.CheckoutSession(outcome(err), time.Since(start))
		}
	}()

	if err := o.validate.StructCtx(ctx, req); err != nil {
		return nil, errors.Join(ErrInvalidRequest, err)
	}

	p, err := o.catalog.Lookup(req.PlanID)
	if err != nil {
		return nil, errors.Join(ErrInvalidPlan, err)
	}
	if !p.Purchasable() {
		return nil, fmt.Errorf("%w: %s has no price", ErrInvalidPlan, p.ID)
	}

	acc, err := o.accounts.Account(ctx, req.AccountID)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return nil, errors.Join(ErrAccountNotFound, err)
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	sess := &Session{
		AccountID:  acc.ID,
		PlanID:     p.ID,
		CustomerID: acc.GatewayCustomerID,
	}

	if !acc.HasGatewayCustomer() {
		if acc.Email == "" {
			return nil, fmt.Errorf("%w: account has no email for a new billing customer", ErrInvalidRequest)
		}
		customerID, err := o.gateway.CreateCustomer(ctx, acc.Email, acc.ID)
		if err != nil {
			o.logGatewayError(ctx, "create customer", acc.ID, p.ID, err)
			return nil, errors.Join(ErrGatewayUnavailable, err)
		}
		sess.CustomerID = customerID
		sess.CustomerCreated = true
	}

	checkout, err := o.gateway.CreateCheckoutSession(ctx, CheckoutRequest{
		CustomerID: sess.CustomerID,
		PriceID:    p.PriceID,
		AccountID:  acc.ID,
		PlanID:     p.ID,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		o.logGatewayError(ctx, "create checkout session", acc.ID, p.ID, err)
		return nil, errors.Join(ErrGatewayUnavailable, err)
	}
	if checkout == nil || checkout.URL == "" {
		return nil, fmt.Errorf("%w: gateway returned no checkout URL", ErrGatewayUnavailable)
	}

	sess.SessionID = checkout.ID
	sess.RedirectURL = checkout.URL

	o.log.InfoContext(ctx, "checkout session created",
		logger.Component("billing"),
		logger.AccountID(acc.ID),
		logger.PlanID(p.ID),
		slog.String("session_id", checkout.ID),
		slog.Bool("customer_created", sess.CustomerCreated),
	)

	return sess, nil
}

func (o *Orchestrator) logGatewayError(ctx context.Context, op, accountID string, planID plan.ID, err error) {
	o.log.ErrorContext(ctx, "billing gateway call failed",
		logger.Component("billing"),
		slog.String("operation", op),
		logger.AccountID(accountID),
		logger.PlanID(planID),
		logger.Error(err),
	)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrInvalidPlan):
		return "invalid"
	case errors.Is(err, ErrAccountNotFound):
		return "not_found"
	default:
		return "failed"
	}
}
