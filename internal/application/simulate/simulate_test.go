package simulate_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/alejandrodnm/lendpool/internal/adapters/storage"
	"github.com/alejandrodnm/lendpool/internal/application/lending"
	"github.com/alejandrodnm/lendpool/internal/application/simulate"
	"github.com/alejandrodnm/lendpool/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) (*lending.Engine, *storage.SQLiteStorage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	eng, _, err := lending.Create(context.Background(), store, lending.CreateParams{
		InitialBaseDeposit: domain.NewBucket(domain.AssetBase, domain.Dec("5000")),
		StartAmount:        domain.Dec("1000"),
		Fee:                domain.Dec("7"),
		Reward:             domain.Dec("5"),
	})
	require.NoError(t, err)
	return eng, store
}

func TestRun_AccountsForEveryAttempt(t *testing.T) {
	eng, store := newEngine(t)
	ctx := context.Background()

	summary, err := simulate.Run(ctx, eng, simulate.Config{
		Lenders: 3, Borrowers: 3, Steps: 10, RatePerSec: 10000, Seed: 7,
	})
	require.NoError(t, err)

	rejected := 0
	for outcome, n := range summary.Rejected {
		assert.NotEqual(t, "error", outcome)
		rejected += n
	}
	assert.Equal(t, summary.Attempted, summary.Committed+rejected)
	// 6 registros + 10 pasos por parte
	assert.Equal(t, 6+6*10, summary.Attempted)
	assert.Positive(t, summary.Committed)

	// Cada operación aceptada está en el journal (más el create).
	ops, err := store.RecentOperations(ctx, eng.PoolID(), 1000)
	require.NoError(t, err)
	assert.Len(t, ops, summary.Committed+1)

	// Y el estado vivo coincide con el persistido.
	snap := eng.Snapshot()
	stored, err := store.LoadPool(ctx, snap.ID)
	require.NoError(t, err)
	assert.True(t, snap.Base.Amount().Equal(stored.Base.Amount()))
	assert.True(t, snap.Yield.Amount().Equal(stored.Yield.Amount()))
	assert.True(t, snap.CumulativeRepaid.Equal(stored.CumulativeRepaid))
}

func TestRun_CancelledContext(t *testing.T) {
	eng, _ := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := simulate.Run(ctx, eng, simulate.Config{Lenders: 1, Borrowers: 1, Steps: 5})
	assert.ErrorIs(t, err, context.Canceled)
}

// slowLends hace que la mitad de los lends venzan como lo haría una petición remota.
type slowLends struct {
	*lending.Engine
	calls atomic.Int32
}

func (p *slowLends) Lend(ctx context.Context, tokens domain.Bucket, t domain.Ticket) (domain.Bucket, error) {
	if p.calls.Add(1)%2 == 1 {
		return domain.Bucket{}, fmt.Errorf("remote /lend: %w", context.DeadlineExceeded)
	}
	return p.Engine.Lend(ctx, tokens, t)
}

func TestRun_RequestTimeoutIsNotFatal(t *testing.T) {
	eng, _ := newEngine(t)
	pool := &slowLends{Engine: eng}

	summary, err := simulate.Run(context.Background(), pool, simulate.Config{
		Lenders: 2, Borrowers: 1, Steps: 6, RatePerSec: 10000, Seed: 1,
	})
	require.NoError(t, err)
	assert.Positive(t, summary.Rejected["timeout"])
	assert.Equal(t, 3+3*6, summary.Attempted)
}

func TestRun_Defaults(t *testing.T) {
	eng, _ := newEngine(t)

	summary, err := simulate.Run(context.Background(), eng, simulate.Config{RatePerSec: 10000, Steps: 2})
	require.NoError(t, err)
	assert.Equal(t, simulate.DefaultLenders, summary.Lenders)
	assert.Equal(t, simulate.DefaultBorrowers, summary.Borrowers)
}
