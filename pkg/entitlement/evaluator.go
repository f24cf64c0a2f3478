package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/memorialkit/pkg/account"
	"github.com/dmitrymomot/memorialkit/pkg/logger"
	"github.com/dmitrymomot/memorialkit/pkg/plan"
	"github.com/dmitrymomot/memorialkit/pkg/trial"
)

// Remediator acts on a memorial created past its plan's cap.
// account.MemorialStore satisfies it.
type Remediator interface {
	FlagMemorial(ctx context.Context, id uuid.UUID, reason string) error
}

// Recorder observes evaluator outcomes, e.g. for metrics.
type Recorder interface {
	EntitlementDecision(reason Reason)
	Overshoot(planID string)
}

// Evaluator makes create-eligibility decisions. It holds no mutable state and
// is safe for concurrent use.
type Evaluator struct {
	catalog    *plan.Catalog
	accounts   account.Reader
	usage      account.UsageCounter
	remediator Remediator
	recorder   Recorder
	now        func() time.Time
	log        *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithRemediator sets where over-quota memorials are flagged. Without one,
// Reconcile only reports and logs the overshoot.
func WithRemediator(r Remediator) Option {
	return func(e *Evaluator) { e.remediator = r }
}

func WithRecorder(r Recorder) Option {
	return func(e *Evaluator) { e.recorder = r }
}

// WithClock replaces time.Now for trial computation.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(e *Evaluator) {
		if log != nil {
			e.log = log
		}
	}
}

// NewEvaluator creates an Evaluator. Panics if catalog, accounts or usage is nil.
func NewEvaluator(catalog *plan.Catalog, accounts account.Reader, usage account.UsageCounter, opts ...Option) *Evaluator {
	if catalog == nil {
		panic("entitlement: plan catalog is required")
	}
	if accounts == nil {
		panic("entitlement: account reader is required")
	}
	if usage == nil {
		panic("entitlement: usage counter is required")
	}

	e := &Evaluator{
		catalog:  catalog,
		accounts: accounts,
		usage:    usage,
		now:      time.Now,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate decides for the live account record.
// Returns account.ErrAccountNotFound for an unknown account. Any other read
// failure returns a denying Decision together with an error wrapping
// ErrUpstreamUnavailable.
func (e *Evaluator) Evaluate(ctx context.Context, accountID string) (Decision, error) {
	if accountID == "" {
		return Decision{}, account.ErrMissingAccountID
	}

	acc, err := e.accounts.Account(ctx, accountID)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return Decision{}, err
		}
		return e.failClosed(ctx, Decision{}, accountID, err)
	}

	return e.evaluate(ctx, acc.Snapshot())
}

// EvaluateSnapshot decides from session-carried account fields without reading
// the account record. Only the usage counter is read.
func (e *Evaluator) EvaluateSnapshot(ctx context.Context, snap account.Snapshot) (Decision, error) {
	if snap.AccountID == "" {
		return Decision{}, account.ErrMissingAccountID
	}
	return e.evaluate(ctx, snap)
}

func (e *Evaluator) evaluate(ctx context.Context, snap account.Snapshot) (Decision, error) {
	p, err := e.catalog.Get(snap.PlanID)
	if err != nil {
		e.log.WarnContext(ctx, "account references unknown plan",
			logger.Component("entitlement"),
			logger.AccountID(snap.AccountID),
			logger.PlanID(snap.PlanID),
		)
		return e.record(Decision{
			PlanID:   snap.PlanID,
			PlanName: string(snap.PlanID),
			Reason:   ReasonUnknownPlan,
		}), nil
	}

	d := Decision{
		MaxAllowed: p.MaxMemorials,
		PlanID:     p.ID,
		PlanName:   p.Name,
	}

	if snap.Status == account.StatusTrialing {
		d.Trial = trial.Compute(snap.TrialEndsAt, e.now())
		if p.TrialGated && !d.Trial.IsActive {
			d.PlanName = trialExpiredName(p.Name)
			d.Reason = ReasonTrialExpired
			return e.record(d), nil
		}
	}

	if p.IsUnlimited() {
		d.CanCreate = true
		d.Reason = ReasonAllowed
		return e.record(d), nil
	}

	count, err := e.usage.MemorialCount(ctx, snap.AccountID)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return Decision{}, err
		}
		return e.failClosed(ctx, d, snap.AccountID, err)
	}

	d.CurrentCount = count
	d.CanCreate = p.Allows(count)
	if d.CanCreate {
		d.Reason = ReasonAllowed
	} else {
		d.Reason = ReasonQuotaExceeded
	}
	return e.record(d), nil
}

func (e *Evaluator) failClosed(ctx context.Context, d Decision, accountID string, cause error) (Decision, error) {
	e.log.ErrorContext(ctx, "entitlement check failed closed",
		logger.Component("entitlement"),
		logger.AccountID(accountID),
		logger.Error(cause),
	)
	d.CanCreate = false
	d.Reason = ReasonUpstreamUnavailable
	return e.record(d), errors.Join(ErrUpstreamUnavailable, cause)
}

func (e *Evaluator) record(d Decision) Decision {
	if e.recorder != nil {
		e.recorder.EntitlementDecision(d.Reason)
	}
	return d
}

// Reconciliation reports what Reconcile found.
type Reconciliation struct {
	Overshoot  bool
	Count      int64
	MaxAllowed int64
	Flagged    bool
}

// Reconcile checks the counter value returned by the increment that followed
// creating memorialID. If it exceeds the plan's cap, the memorial is flagged
// through the Remediator. It never deletes.
func (e *Evaluator) Reconcile(ctx context.Context, accountID string, planID plan.ID, memorialID uuid.UUID, postIncrementCount int64) (Reconciliation, error) {
	p, err := e.catalog.Get(planID)
	if err != nil {
		return Reconciliation{Count: postIncrementCount}, err
	}

	res := Reconciliation{Count: postIncrementCount, MaxAllowed: p.MaxMemorials}
	if !p.Exceeded(postIncrementCount) {
		return res, nil
	}
	res.Overshoot = true

	if e.recorder != nil {
		e.recorder.Overshoot(string(p.ID))
	}
	e.log.WarnContext(ctx, "memorial count exceeds plan cap",
		logger.Component("entitlement"),
		logger.AccountID(accountID),
		logger.PlanID(p.ID),
		logger.MemorialID(memorialID),
		slog.Int64("count", postIncrementCount),
		slog.Int64("max", p.MaxMemorials),
	)

	if e.remediator == nil {
		return res, nil
	}

	reason := fmt.Sprintf("memorial count %d exceeds %s plan limit of %d", postIncrementCount, p.Name, p.MaxMemorials)
	if err := e.remediator.FlagMemorial(ctx, memorialID, reason); err != nil {
		return res, errors.Join(ErrRemediationFailed, err)
	}
	res.Flagged = true
	return res, nil
}
