package memorial

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrymomot/memorialkit/pkg/account"
	"github.com/dmitrymomot/memorialkit/pkg/entitlement"
	"github.com/dmitrymomot/memorialkit/pkg/logger"
)

// DefaultMaxNameLength caps memorial names, in runes.
const DefaultMaxNameLength = 200

// FlagReasonNotCounted marks a memorial whose usage increment failed.
const FlagReasonNotCounted = "usage counter not incremented"

// Service creates memorials.
type Service interface {
	// Create checks entitlement and creates a memorial for in.AccountID.
	// A denial returns *DeniedError. A store failure during the check
	// returns an error wrapping entitlement.ErrUpstreamUnavailable.
	Create(ctx context.Context, in CreateInput) (*Result, error)
}

// CreateInput is a creation request.
type CreateInput struct {
	AccountID string
	Name      string
	// Snapshot is the session copy of the account's plan fields. Only used
	// with WithSessionSnapshots.
	Snapshot *account.Snapshot
}

// Result is a created memorial and the quota state after creating it.
type Result struct {
	Memorial account.Memorial
	Decision entitlement.Decision
	Count    int64 // counter value after the increment
	Flagged  bool  // created past the cap by a concurrent request
}

type service struct {
	evaluator   *entitlement.Evaluator
	store       account.MemorialStore
	useSnapshot bool
	maxNameLen  int
	now         func() time.Time
	log         *slog.Logger
}

// NewService creates a memorial Service.
func NewService(evaluator *entitlement.Evaluator, store account.MemorialStore, opts ...ServiceOption) Service {
	if evaluator == nil {
		panic("memorial: evaluator is required")
	}
	if store == nil {
		panic("memorial: store is required")
	}

	s := &service{
		evaluator:  evaluator,
		store:      store,
		maxNameLen: DefaultMaxNameLength,
		now:        time.Now,
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Create(ctx context.Context, in CreateInput) (*Result, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if utf8.RuneCountInString(name) > s.maxNameLen {
		return nil, fmt.Errorf("%w: longer than %d characters", ErrInvalidName, s.maxNameLen)
	}

	decision, err := s.decide(ctx, in)
	if err != nil {
		return nil, err
	}
	if !decision.CanCreate {
		return nil, &DeniedError{Decision: decision}
	}

	mem := account.Memorial{
		AccountID: in.AccountID,
		Name:      name,
		CreatedAt: s.now().UTC(),
	}
	id, err := s.store.CreateMemorial(ctx, &mem)
	if err != nil {
		return nil, errors.Join(ErrCreateFailed, err)
	}
	mem.ID = id

	count, err := s.store.IncrementMemorialCount(ctx, in.AccountID)
	if err != nil {
		// An uncounted memorial would let the next check pass; hold it for review.
		if flagErr := s.store.FlagMemorial(ctx, id, FlagReasonNotCounted); flagErr != nil {
			err = errors.Join(err, flagErr)
		}
		s.log.ErrorContext(ctx, "memorial created without counter increment",
			logger.Component("memorial"),
			logger.AccountID(in.AccountID),
			logger.MemorialID(id),
			logger.Error(err),
		)
		return nil, errors.Join(ErrCounterNotBumped, err)
	}

	res := &Result{Memorial: mem, Decision: decision, Count: count}
	if decision.Unlimited() {
		return res, nil
	}

	rec, err := s.evaluator.Reconcile(ctx, in.AccountID, decision.PlanID, id, count)
	if err != nil {
		// The memorial exists; a failed flag is logged and left for review.
		s.log.ErrorContext(ctx, "overshoot reconciliation failed",
			logger.Component("memorial"),
			logger.AccountID(in.AccountID),
			logger.MemorialID(id),
			logger.Error(err),
		)
	}
	if rec.Flagged {
		res.Flagged = true
		res.Memorial.Moderation = account.ModerationFlagged
	}
	return res, nil
}

func (s *service) decide(ctx context.Context, in CreateInput) (entitlement.Decision, error) {
	if s.useSnapshot && in.Snapshot != nil {
		snap := *in.Snapshot
		snap.AccountID = in.AccountID
		return s.evaluator.EvaluateSnapshot(ctx, snap)
	}
	return s.evaluator.Evaluate(ctx, in.AccountID)
}
