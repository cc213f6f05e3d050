package domain

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withGrant(t *testing.T, fn func(Grant) error) error {
	t.Helper()
	return NewAuthority("auth").Authorize(fn)
}

func TestLenderRecord_Cycle(t *testing.T) {
	rec := NewLenderRecord("rec-1", "pool-1", "key-1", t0)

	require.NoError(t, withGrant(t, func(g Grant) error { return rec.Enter(g, TierNone, t0) }))
	assert.True(t, rec.Open)

	err := withGrant(t, func(g Grant) error { return rec.Enter(g, TierNone, t0) })
	assert.ErrorIs(t, err, ErrAlreadyOpen)

	require.NoError(t, withGrant(t, func(g Grant) error { return rec.Exit(g, t0) }))
	assert.False(t, rec.Open)
	assert.Equal(t, 1, rec.CompletedCount)

	err = withGrant(t, func(g Grant) error { return rec.Exit(g, t0) })
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.Equal(t, 1, rec.CompletedCount)
}

func TestLenderRecord_RequiresGrant(t *testing.T) {
	rec := NewLenderRecord("rec-1", "pool-1", "key-1", t0)
	assert.ErrorIs(t, rec.Enter(Grant{}, TierNone, t0), ErrUnauthorized)
	assert.False(t, rec.Open)
}

func TestRecord_TierFlags(t *testing.T) {
	rec := NewLenderRecord("rec-1", "pool-1", "key-1", t0)

	require.NoError(t, withGrant(t, func(g Grant) error { return rec.Enter(g, TierL1, t0) }))
	assert.True(t, rec.Tier1)
	assert.False(t, rec.Tier2)
	require.NoError(t, withGrant(t, func(g Grant) error { return rec.Exit(g, t0) }))

	require.NoError(t, withGrant(t, func(g Grant) error { return rec.Enter(g, TierL2, t0) }))
	assert.False(t, rec.Tier1)
	assert.True(t, rec.Tier2)
}

func TestTicket_Authenticate(t *testing.T) {
	rec := NewLenderRecord("rec-1", "pool-1", "key-1", t0)
	tk := rec.Ticket()

	assert.NoError(t, rec.Authenticate(tk))

	bad := tk
	bad.Key = "other"
	assert.ErrorIs(t, rec.Authenticate(bad), ErrUnauthorized)

	wrongRole := tk
	wrongRole.Role = RoleBorrower
	assert.ErrorIs(t, rec.Authenticate(wrongRole), ErrWrongRole)
}

func TestBorrowerRecord_FullSettle(t *testing.T) {
	rec := NewBorrowerRecord("b-1", "pool-1", "key", t0)
	require.NoError(t, withGrant(t, func(g Grant) error { return rec.Enter(g, TierNone, d("321"), t0) }))

	var (
		applied = d("0")
		full    bool
	)
	require.NoError(t, withGrant(t, func(g Grant) (err error) {
		applied, full, err = rec.Settle(g, d("400"), t0)
		return err
	}))

	assert.True(t, full)
	assert.True(t, d("321").Equal(applied))
	assert.True(t, rec.Owed.IsZero())
	assert.False(t, rec.Open)
	assert.Equal(t, 1, rec.CompletedCount)
}

func TestBorrowerRecord_PartialSettle(t *testing.T) {
	rec := NewBorrowerRecord("b-1", "pool-1", "key", t0)
	require.NoError(t, withGrant(t, func(g Grant) error { return rec.Enter(g, TierNone, d("321"), t0) }))

	var full bool
	require.NoError(t, withGrant(t, func(g Grant) (err error) {
		_, full, err = rec.Settle(g, d("200"), t0)
		return err
	}))

	assert.False(t, full)
	assert.True(t, d("121").Equal(rec.Owed))
	assert.True(t, rec.Open)
	assert.Equal(t, 0, rec.CompletedCount)
}

func TestBorrowerRecord_SettleClosed(t *testing.T) {
	rec := NewBorrowerRecord("b-1", "pool-1", "key", t0)
	err := withGrant(t, func(g Grant) error {
		_, _, err := rec.Settle(g, d("1"), t0)
		return err
	})
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "already_open", Outcome(ErrAlreadyOpen))
	assert.Equal(t, "ratio_out_of_bounds", Outcome(&RatioError{Bound: AboveMaximum}))
	assert.Equal(t, "invalid_input", Outcome(ErrInvalidAmount))
	assert.Equal(t, "wrong_asset", Outcome(ErrWrongAsset))
	assert.Equal(t, "unauthorized", Outcome(ErrUnauthorized))
	assert.Equal(t, "wrong_role", Outcome(fmt.Errorf("lending.Lend: %w", ErrWrongRole)))
	assert.Equal(t, "timeout", Outcome(fmt.Errorf("commit: %w", context.DeadlineExceeded)))
	assert.Equal(t, "canceled", Outcome(context.Canceled))
	assert.Equal(t, "not_found", Outcome(ErrPoolNotFound))
	assert.Equal(t, "error", Outcome(assert.AnError))
}
