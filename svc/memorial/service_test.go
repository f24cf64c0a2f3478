package memorial_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/memorialkit/pkg/account"
	"github.com/dmitrymomot/memorialkit/pkg/docstore"
	"github.com/dmitrymomot/memorialkit/pkg/entitlement"
	"github.com/dmitrymomot/memorialkit/pkg/plan"
	"github.com/dmitrymomot/memorialkit/svc/memorial"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newCatalog(t *testing.T) *plan.Catalog {
	t.Helper()
	catalog, err := plan.Load(context.Background(), plan.NewInMemSource(plan.DefaultPlans()...))
	require.NoError(t, err)
	return catalog
}

func newService(t *testing.T, st account.Store, opts ...memorial.ServiceOption) memorial.Service {
	t.Helper()
	ev := entitlement.NewEvaluator(newCatalog(t), st, st,
		entitlement.WithRemediator(st),
		entitlement.WithClock(fixedClock),
	)
	return memorial.NewService(ev, st, append([]memorial.ServiceOption{memorial.WithClock(fixedClock)}, opts...)...)
}

func activeAccount(id string, planID plan.ID, count int64) account.Account {
	return account.Account{ID: id, PlanID: planID, Status: account.StatusActive, MemorialCount: count}
}

func TestCreate(t *testing.T) {
	t.Parallel()

	st := docstore.NewMemory(activeAccount("acc_1", plan.Extended, 3))
	svc := newService(t, st)

	res, err := svc.Create(context.Background(), memorial.CreateInput{AccountID: "acc_1", Name: "  Grandma Rose  "})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, res.Memorial.ID)
	assert.Equal(t, "Grandma Rose", res.Memorial.Name)
	assert.Equal(t, "acc_1", res.Memorial.AccountID)
	assert.Equal(t, testNow, res.Memorial.CreatedAt)
	assert.Equal(t, int64(4), res.Count)
	assert.False(t, res.Flagged)
	assert.Equal(t, entitlement.ReasonAllowed, res.Decision.Reason)
	assert.Equal(t, int64(3), res.Decision.CurrentCount)

	stored, err := st.Memorial(context.Background(), res.Memorial.ID)
	require.NoError(t, err)
	assert.Equal(t, account.ModerationNone, stored.Moderation)
}

func TestCreate_Denied(t *testing.T) {
	t.Parallel()

	st := docstore.NewMemory(activeAccount("acc_1", plan.Base, 1))
	svc := newService(t, st)

	_, err := svc.Create(context.Background(), memorial.CreateInput{AccountID: "acc_1", Name: "Second"})
	require.ErrorIs(t, err, memorial.ErrNotEntitled)

	var denied *memorial.DeniedError
	require.ErrorAs(t, err, &denied)
	assert.False(t, denied.Decision.CanCreate)
	assert.Equal(t, entitlement.ReasonQuotaExceeded, denied.Decision.Reason)
	assert.Equal(t, int64(1), denied.Decision.CurrentCount)
	assert.Equal(t, int64(1), denied.Decision.MaxAllowed)
	assert.Equal(t, "Base", denied.Decision.PlanName)

	assert.Empty(t, st.Memorials(context.Background(), "acc_1"))
	count, err := st.MemorialCount(context.Background(), "acc_1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCreate_TrialExpired(t *testing.T) {
	t.Parallel()

	ended := testNow.Add(-time.Hour)
	st := docstore.NewMemory(account.Account{
		ID: "acc_1", PlanID: plan.Extended, Status: account.StatusTrialing, TrialEndsAt: &ended,
	})
	svc := newService(t, st)

	_, err := svc.Create(context.Background(), memorial.CreateInput{AccountID: "acc_1", Name: "Dad"})

	var denied *memorial.DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, entitlement.ReasonTrialExpired, denied.Decision.Reason)
	assert.Equal(t, "Extended (trial expired)", denied.Decision.PlanName)
}

func TestCreate_InvalidName(t *testing.T) {
	t.Parallel()

	st := docstore.NewMemory(activeAccount("acc_1", plan.Extended, 0))
	svc := newService(t, st, memorial.WithMaxNameLength(5))

	for _, name := range []string{"", "   ", "toolong"} {
		_, err := svc.Create(context.Background(), memorial.CreateInput{AccountID: "acc_1", Name: name})
		assert.ErrorIs(t, err, memorial.ErrInvalidName, "name %q", name)
	}

	_, err := svc.Create(context.Background(), memorial.CreateInput{AccountID: "acc_1", Name: "Nana"})
	assert.NoError(t, err)
}

func TestCreate_UnknownAccount(t *testing.T) {
	t.Parallel()

	svc := newService(t, docstore.NewMemory())

	_, err := svc.Create(context.Background(), memorial.CreateInput{AccountID: "missing", Name: "x"})
	assert.ErrorIs(t, err, account.ErrAccountNotFound)
}

func TestCreate_Unlimited(t *testing.T) {
	t.Parallel()

	st := docstore.NewMemory(activeAccount("acc_1", plan.Unlimited, 500))
	svc := newService(t, st)

	res, err := svc.Create(context.Background(), memorial.CreateInput{AccountID: "acc_1", Name: "One more"})
	require.NoError(t, err)
	assert.Equal(t, int64(501), res.Count)
	assert.True(t, res.Decision.Unlimited())
	assert.False(t, res.Flagged)
}

type failingCounter struct {
	*docstore.Memory
	readErr      error
	incrementErr error
}

func (f *failingCounter) MemorialCount(ctx context.Context, accountID string) (int64, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	return f.Memory.MemorialCount(ctx, accountID)
}

func (f *failingCounter) IncrementMemorialCount(ctx context.Context, accountID string) (int64, error) {
	if f.incrementErr != nil {
		return 0, f.incrementErr
	}
	return f.Memory.IncrementMemorialCount(ctx, accountID)
}

func TestCreate_FailsClosedOnCounterRead(t *testing.T) {
	t.Parallel()

	st := &failingCounter{
		Memory:  docstore.NewMemory(activeAccount("acc_1", plan.Extended, 0)),
		readErr: errors.New("connection reset"),
	}
	svc := newService(t, st)

	_, err := svc.Create(context.Background(), memorial.CreateInput{AccountID: "acc_1", Name: "x"})
	require.ErrorIs(t, err, entitlement.ErrUpstreamUnavailable)
	assert.NotErrorIs(t, err, memorial.ErrNotEntitled)
	assert.Empty(t, st.Memorials(context.Background(), "acc_1"))
}

func TestCreate_IncrementFailure(t *testing.T) {
	t.Parallel()

	st := &failingCounter{
		Memory:       docstore.NewMemory(activeAccount("acc_1", plan.Extended, 0)),
		incrementErr: errors.New("write concern timeout"),
	}
	svc := newService(t, st)

	_, err := svc.Create(context.Background(), memorial.CreateInput{AccountID: "acc_1", Name: "x"})
	assert.ErrorIs(t, err, memorial.ErrCounterNotBumped)
}

func TestCreate_IncrementFailureFlagsOrphan(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := &failingCounter{
		Memory:       docstore.NewMemory(activeAccount("acc_1", plan.Base, 0)),
		incrementErr: errors.New("write concern timeout"),
	}
	svc := newService(t, st)

	_, err := svc.Create(ctx, memorial.CreateInput{AccountID: "acc_1", Name: "first"})
	require.ErrorIs(t, err, memorial.ErrCounterNotBumped)

	stored := st.Memorials(ctx, "acc_1")
	require.Len(t, stored, 1)
	assert.Equal(t, account.ModerationFlagged, stored[0].Moderation)
	assert.Equal(t, memorial.FlagReasonNotCounted, stored[0].FlagReason)

	// The counter recovers; the plan's single slot is still available once.
	st.incrementErr = nil
	res, err := svc.Create(ctx, memorial.CreateInput{AccountID: "acc_1", Name: "second"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Count)

	_, err = svc.Create(ctx, memorial.CreateInput{AccountID: "acc_1", Name: "third"})
	require.ErrorIs(t, err, memorial.ErrNotEntitled)

	var active int
	for _, m := range st.Memorials(ctx, "acc_1") {
		if m.Moderation != account.ModerationFlagged {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

type unflaggableStore struct {
	failingCounter
}

func (u *unflaggableStore) FlagMemorial(context.Context, uuid.UUID, string) error {
	return errors.New("flag write failed")
}

func TestCreate_IncrementAndFlagFailure(t *testing.T) {
	t.Parallel()

	st := &unflaggableStore{failingCounter{
		Memory:       docstore.NewMemory(activeAccount("acc_1", plan.Base, 0)),
		incrementErr: errors.New("write concern timeout"),
	}}
	svc := newService(t, st)

	_, err := svc.Create(context.Background(), memorial.CreateInput{AccountID: "acc_1", Name: "x"})
	require.ErrorIs(t, err, memorial.ErrCounterNotBumped)
	assert.Contains(t, err.Error(), "write concern timeout")
	assert.Contains(t, err.Error(), "flag write failed")
}

func TestCreate_SessionSnapshot(t *testing.T) {
	t.Parallel()

	// The stored record still says base at cap; the session already carries
	// the upgraded plan.
	st := docstore.NewMemory(activeAccount("acc_1", plan.Base, 1))
	snap := &account.Snapshot{PlanID: plan.Extended, Status: account.StatusActive}

	live := newService(t, st)
	_, err := live.Create(context.Background(), memorial.CreateInput{AccountID: "acc_1", Name: "x", Snapshot: snap})
	require.ErrorIs(t, err, memorial.ErrNotEntitled)

	fromSession := newService(t, st, memorial.WithSessionSnapshots())
	res, err := fromSession.Create(context.Background(), memorial.CreateInput{AccountID: "acc_1", Name: "x", Snapshot: snap})
	require.NoError(t, err)
	assert.Equal(t, plan.Extended, res.Decision.PlanID)
	assert.Equal(t, int64(2), res.Count)
}

// barrierStore holds every CreateMemorial call until n callers arrived, so
// all of them have already passed the entitlement check.
type barrierStore struct {
	*docstore.Memory
	arrived sync.WaitGroup
}

func (b *barrierStore) CreateMemorial(ctx context.Context, m *account.Memorial) (uuid.UUID, error) {
	b.arrived.Done()
	b.arrived.Wait()
	return b.Memory.CreateMemorial(ctx, m)
}

func TestCreate_ConcurrentOvershootIsFlagged(t *testing.T) {
	t.Parallel()

	st := &barrierStore{Memory: docstore.NewMemory(activeAccount("acc_1", plan.Extended, 9))}
	st.arrived.Add(2)
	svc := newService(t, st)

	var (
		wg      sync.WaitGroup
		results [2]*memorial.Result
		errs    [2]error
	)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = svc.Create(context.Background(), memorial.CreateInput{AccountID: "acc_1", Name: "concurrent"})
		}()
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	flagged := 0
	var flaggedID uuid.UUID
	for _, res := range results {
		assert.True(t, res.Decision.CanCreate, "both requests pass the check at cap-1")
		if res.Flagged {
			flagged++
			flaggedID = res.Memorial.ID
			assert.Equal(t, int64(11), res.Count)
		}
	}
	require.Equal(t, 1, flagged, "exactly the overshooting memorial is flagged")

	all := st.Memorials(context.Background(), "acc_1")
	assert.Len(t, all, 2, "nothing is deleted")

	stored, err := st.Memorial(context.Background(), flaggedID)
	require.NoError(t, err)
	assert.Equal(t, account.ModerationFlagged, stored.Moderation)
	assert.True(t, strings.Contains(stored.FlagReason, "exceeds"))
}

func TestNewService_PanicsOnMissingDependencies(t *testing.T) {
	t.Parallel()

	st := docstore.NewMemory()
	ev := entitlement.NewEvaluator(newCatalog(t), st, st)

	assert.Panics(t, func() { memorial.NewService(nil, st) })
	assert.Panics(t, func() { memorial.NewService(ev, nil) })
}
