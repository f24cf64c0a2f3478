package session_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/memorialkit/pkg/account"
	"github.com/dmitrymomot/memorialkit/pkg/plan"
	"github.com/dmitrymomot/memorialkit/pkg/session"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newManager(t *testing.T, now func() time.Time) *session.Manager {
	t.Helper()
	m, err := session.NewManager(session.Config{
		Secret: "test-secret",
		Issuer: "memorialkit",
		TTL:    time.Hour,
	}, session.WithClock(now))
	require.NoError(t, err)
	return m
}

func fixedNow() time.Time { return testNow }

func TestNewManager_RequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := session.NewManager(session.Config{})
	assert.ErrorIs(t, err, session.ErrMissingSecret)
}

func TestManager_IssueVerify(t *testing.T) {
	t.Parallel()

	m := newManager(t, fixedNow)
	ends := testNow.Add(72 * time.Hour)
	acc := &account.Account{
		ID:          "acc_1",
		Email:       "owner@example.com",
		PlanID:      plan.Extended,
		Status:      account.StatusTrialing,
		TrialEndsAt: &ends,
	}

	token, err := m.Issue(acc)
	require.NoError(t, err)

	id, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "acc_1", id.AccountID)
	assert.Equal(t, "owner@example.com", id.Email)
	assert.Equal(t, plan.Extended, id.Snapshot.PlanID)
	assert.Equal(t, account.StatusTrialing, id.Snapshot.Status)
	assert.Equal(t, "acc_1", id.Snapshot.AccountID)
	require.NotNil(t, id.Snapshot.TrialEndsAt)
	assert.True(t, ends.Equal(*id.Snapshot.TrialEndsAt))
	assert.True(t, testNow.Add(time.Hour).Equal(id.ExpiresAt))
}

func TestManager_VerifyWithoutTrial(t *testing.T) {
	t.Parallel()

	m := newManager(t, fixedNow)
	token, err := m.Issue(&account.Account{ID: "acc_2", PlanID: plan.Base, Status: account.StatusActive})
	require.NoError(t, err)

	id, err := m.Verify(token)
	require.NoError(t, err)
	assert.Nil(t, id.Snapshot.TrialEndsAt)
}

func TestManager_VerifyRejects(t *testing.T) {
	t.Parallel()

	m := newManager(t, fixedNow)
	acc := &account.Account{ID: "acc_1", PlanID: plan.Base, Status: account.StatusActive}

	t.Run("empty", func(t *testing.T) {
		_, err := m.Verify("")
		assert.ErrorIs(t, err, session.ErrMissingToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.Verify("not-a-token")
		assert.ErrorIs(t, err, session.ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := m.Issue(acc)
		require.NoError(t, err)

		later := newManager(t, func() time.Time { return testNow.Add(2 * time.Hour) })
		_, err = later.Verify(token)
		assert.ErrorIs(t, err, session.ErrInvalidToken)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := session.NewManager(session.Config{Secret: "other", Issuer: "memorialkit"}, session.WithClock(fixedNow))
		require.NoError(t, err)
		token, err := other.Issue(acc)
		require.NoError(t, err)

		_, err = m.Verify(token)
		assert.ErrorIs(t, err, session.ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, err := session.NewManager(session.Config{Secret: "test-secret", Issuer: "someone-else"}, session.WithClock(fixedNow))
		require.NoError(t, err)
		token, err := other.Issue(acc)
		require.NoError(t, err)

		_, err = m.Verify(token)
		assert.ErrorIs(t, err, session.ErrInvalidToken)
	})

	t.Run("missing subject", func(t *testing.T) {
		token, err := m.Issue(&account.Account{PlanID: plan.Base, Status: account.StatusActive})
		require.NoError(t, err)

		_, err = m.Verify(token)
		assert.ErrorIs(t, err, session.ErrMissingSubject)
	})

	t.Run("unsigned", func(t *testing.T) {
		claims := session.Claims{
			Plan: "base",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "acc_1",
				Issuer:    "memorialkit",
				ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = m.Verify(token)
		assert.ErrorIs(t, err, session.ErrInvalidToken)
	})
}
