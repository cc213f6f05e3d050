package metrics_test

import (
	"testing"
	"time"

	"github.com/alejandrodnm/lendpool/internal/adapters/metrics"
	"github.com/alejandrodnm/lendpool/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPool(t *testing.T) domain.Pool {
	t.Helper()
	p, err := domain.NewPool("p", domain.NewAuthority("a"),
		domain.NewBucket(domain.AssetBase, domain.Dec("5000")), domain.Dec("1000"),
		domain.DefaultPoolParams(domain.Dec("7"), domain.Dec("5")), time.Now())
	require.NoError(t, err)
	return p
}

func TestPrometheus_OperationCommitted(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewPrometheus(reg)
	pool := testPool(t)
	pool.CumulativeRepaid = domain.Dec("321")

	m.OperationCommitted(domain.Operation{
		Kind:   domain.OpRepay,
		Minted: domain.Dec("21"),
		Burned: domain.Dec("0"),
	}, pool)
	m.OperationCommitted(domain.Operation{
		Kind:   domain.OpWithdrawLend,
		Minted: domain.Dec("0"),
		Burned: domain.Dec("15"),
	}, pool)

	assert.Equal(t, 5000.0, gathered(t, reg, "lendpool_base_reserve"))
	assert.Equal(t, 1000.0, gathered(t, reg, "lendpool_yield_reserve"))
	assert.Equal(t, 321.0, gathered(t, reg, "lendpool_cumulative_repaid"))
	assert.Equal(t, 21.0, gathered(t, reg, "lendpool_yield_minted_total"))
	assert.Equal(t, 15.0, gathered(t, reg, "lendpool_yield_burned_total"))
	assertSeries(t, reg, "lendpool_operations_total", 2)
}

func TestPrometheus_PoolOpened(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewPrometheus(reg)
	pool := testPool(t)
	pool.CumulativeRepaid = domain.Dec("50")

	m.PoolOpened(pool)

	assert.Equal(t, 5000.0, gathered(t, reg, "lendpool_base_reserve"))
	assert.Equal(t, 1000.0, gathered(t, reg, "lendpool_yield_reserve"))
	assert.Equal(t, 50.0, gathered(t, reg, "lendpool_cumulative_repaid"))
	assertSeries(t, reg, "lendpool_operations_total", 0)
}

func TestPrometheus_OperationRejected(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewPrometheus(reg)

	m.OperationRejected(domain.OpBorrow, &domain.RatioError{Bound: domain.AboveMaximum})
	m.OperationRejected(domain.OpBorrow, &domain.RatioError{Bound: domain.BelowMinimum})
	m.OperationRejected(domain.OpLend, domain.ErrPoolUnhealthy)

	families, err := reg.Gather()
	require.NoError(t, err)

	counts := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "lendpool_operations_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			counts[labels["op"]+"/"+labels["outcome"]] = metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 2.0, counts["borrow/ratio_out_of_bounds"])
	assert.Equal(t, 1.0, counts["lend/pool_unhealthy"])
}

func TestPrometheus_ObserveRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewPrometheus(reg)

	m.ObserveRequest("/lend", "POST", "200", 0.01)
	m.ObserveRequest("", "GET", "404", 0.001)

	assertSeries(t, reg, "lendpool_http_requests_total", 2)
	assertSeries(t, reg, "lendpool_http_request_duration_seconds", 2)
}

func TestPrometheus_NilIsNoop(t *testing.T) {
	var m *metrics.Prometheus
	assert.NotPanics(t, func() {
		m.PoolOpened(domain.Pool{})
		m.OperationCommitted(domain.Operation{}, domain.Pool{})
		m.OperationRejected(domain.OpLend, domain.ErrNotOpen)
		m.ObserveRequest("/pool", "GET", "200", 0.1)
	})
}

// gathered devuelve el valor de una métrica sin labels (gauge o counter).
func gathered(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		require.Len(t, mf.GetMetric(), 1)
		m := mf.GetMetric()[0]
		if c := m.GetCounter(); c != nil {
			return c.GetValue()
		}
		return m.GetGauge().GetValue()
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func assertSeries(t *testing.T, reg *prometheus.Registry, name string, want int) {
	t.Helper()
	n, err := testutil.GatherAndCount(reg, name)
	require.NoError(t, err)
	assert.Equal(t, want, n, name)
}
