package remote_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/alejandrodnm/lendpool/internal/adapters/httpapi"
	"github.com/alejandrodnm/lendpool/internal/adapters/remote"
	"github.com/alejandrodnm/lendpool/internal/adapters/storage"
	"github.com/alejandrodnm/lendpool/internal/application/lending"
	"github.com/alejandrodnm/lendpool/internal/application/simulate"
	"github.com/alejandrodnm/lendpool/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var d = domain.Dec

func newRemote(t *testing.T) (*remote.Client, *lending.Engine) {
	t.Helper()
	srv, eng := newServer(t)
	return remote.NewClient(srv.URL, 1000, 1000), eng
}

func newServer(t *testing.T) (*httptest.Server, *lending.Engine) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	eng, _, err := lending.Create(context.Background(), store, lending.CreateParams{
		InitialBaseDeposit: domain.NewBucket(domain.AssetBase, d("5000")),
		StartAmount:        d("1000"),
		Fee:                d("7"),
		Reward:             d("5"),
	})
	require.NoError(t, err)

	srv := httptest.NewServer(httpapi.New(httpapi.Config{RatePerSec: 1000, Burst: 1000}, eng, nil, nil).Handler())
	t.Cleanup(srv.Close)
	return srv, eng
}

func TestClient_Pool(t *testing.T) {
	c, eng := newRemote(t)

	p, err := c.Pool(context.Background())
	require.NoError(t, err)
	assert.Equal(t, eng.PoolID(), p.ID)
	assert.Equal(t, domain.AssetBase, p.Base.Asset())
	assert.True(t, p.Base.Amount().Equal(d("5000")))
	assert.True(t, p.Yield.Amount().Equal(d("1000")))
	assert.True(t, p.Params.MaxRatioLend.Equal(d("20")))
	assert.Equal(t, domain.DefaultTierHigh, p.Params.TierHigh)
	assert.True(t, p.LoanFloor().Equal(d("750")))
}

func TestClient_LendWithdraw(t *testing.T) {
	c, eng := newRemote(t)
	ctx := context.Background()

	tk, err := c.Register(ctx)
	require.NoError(t, err)
	lnd, err := c.Lend(ctx, domain.NewBucket(domain.AssetBase, d("300")), tk)
	require.NoError(t, err)
	assert.Equal(t, domain.AssetYield, lnd.Asset)
	assert.True(t, lnd.Amount.Equal(d("315")), lnd.Amount.String())

	rec, err := c.Lender(ctx, tk)
	require.NoError(t, err)
	assert.True(t, rec.Open)

	base, err := c.WithdrawLend(ctx, lnd, tk)
	require.NoError(t, err)
	assert.Equal(t, domain.AssetBase, base.Asset)
	assert.True(t, base.Amount.Equal(d("315")))
	assert.True(t, eng.MainPoolSize().Equal(d("4985")))
}

func TestClient_BorrowRepay(t *testing.T) {
	c, _ := newRemote(t)
	ctx := context.Background()

	tk, err := c.RegisterBorrower(ctx)
	require.NoError(t, err)
	_, err = c.Borrow(ctx, d("300"), tk)
	require.NoError(t, err)

	rec, err := c.Borrower(ctx, tk)
	require.NoError(t, err)
	assert.True(t, rec.Open)
	assert.True(t, rec.Owed.Equal(d("321")), rec.Owed.String())

	change, err := c.Repay(ctx, domain.NewBucket(domain.AssetBase, d("400")), tk)
	require.NoError(t, err)
	assert.True(t, change.Amount.Equal(d("79")))
}

func TestClient_DomainErrors(t *testing.T) {
	c, _ := newRemote(t)
	ctx := context.Background()

	tk, err := c.RegisterBorrower(ctx)
	require.NoError(t, err)

	_, err = c.Borrow(ctx, d("750"), tk)
	var ratioErr *domain.RatioError
	require.True(t, errors.As(err, &ratioErr), "got %v", err)
	assert.Equal(t, domain.AboveMaximum, ratioErr.Bound)
	assert.True(t, ratioErr.MaxAmount.Equal(d("600")))
	assert.ErrorIs(t, err, domain.ErrRatioOutOfBounds)

	_, err = c.Repay(ctx, domain.NewBucket(domain.AssetBase, d("10")), tk)
	assert.ErrorIs(t, err, domain.ErrNotOpen)
	assert.Equal(t, "not_open", domain.Outcome(err))

	forged := tk
	forged.Key = "nope"
	_, err = c.Borrower(ctx, forged)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// mismo error que devolvería el engine en local
	_, err = c.Borrow(ctx, d("300"), lenderTicket(t, c))
	assert.ErrorIs(t, err, domain.ErrWrongRole)
	assert.NotErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, "wrong_role", domain.Outcome(err))

	// el activo se valida antes de salir a la red
	_, err = c.Lend(ctx, domain.NewBucket(domain.AssetYield, d("10")), tk)
	assert.ErrorIs(t, err, domain.ErrWrongAsset)
}

func lenderTicket(t *testing.T, c *remote.Client) domain.Ticket {
	t.Helper()
	tk, err := c.Register(context.Background())
	require.NoError(t, err)
	return tk
}

func TestClient_GatewayTimeout(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	defer srv.Close()

	c := remote.NewClient(srv.URL, 1000, 1000)
	_, err := c.Borrow(context.Background(), d("300"), domain.Ticket{ID: "b", Role: domain.RoleBorrower})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "timeout", domain.Outcome(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_RetriesRateLimited(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"l-1","role":"lender","key":"k"}`))
	}))
	defer srv.Close()

	c := remote.NewClient(srv.URL, 1000, 1000)
	tk, err := c.Register(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "l-1", tk.ID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_PostNotRetriedOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"store down","outcome":"error"}`))
	}))
	defer srv.Close()

	c := remote.NewClient(srv.URL, 1000, 1000)
	_, err := c.Register(context.Background())
	require.Error(t, err)
	assert.Equal(t, "error", domain.Outcome(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_SnapshotFallsBackToLastKnown(t *testing.T) {
	srv, eng := newServer(t)
	c := remote.NewClient(srv.URL, 1000, 1000)
	assert.Equal(t, eng.PoolID(), c.Snapshot().ID)

	srv.Close()
	p := c.Snapshot()
	assert.Equal(t, eng.PoolID(), p.ID)
	assert.True(t, p.Base.Amount().Equal(d("5000")))

	fresh := remote.NewClient(srv.URL, 1000, 1000)
	assert.Empty(t, fresh.Snapshot().ID)
}

func TestClient_DrivesSimulation(t *testing.T) {
	c, eng := newRemote(t)

	summary, err := simulate.Run(context.Background(), c, simulate.Config{
		Lenders: 2, Borrowers: 2, Steps: 6, RatePerSec: 10000, Seed: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, 4+4*6, summary.Attempted)
	assert.NotContains(t, summary.Rejected, "error")

	local := eng.Snapshot()
	seen := c.Snapshot()
	assert.True(t, local.Base.Amount().Equal(seen.Base.Amount()))
	assert.True(t, local.Yield.Amount().Equal(seen.Yield.Amount()))
}
