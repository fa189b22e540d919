package observability

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
)

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	HandlerFor(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_RecordOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.RecordOperation("submit_order", "ok", 3*time.Millisecond)
	m.RecordOperation("submit_order", "ok", time.Millisecond)
	m.RecordOperation("submit_order", "replay", time.Millisecond)

	out := scrape(t, reg)
	assert.Contains(t, out, `test_engine_operations_total{operation="submit_order",outcome="ok"} 2`)
	assert.Contains(t, out, `test_engine_operations_total{operation="submit_order",outcome="replay"} 1`)
	assert.Contains(t, out, `test_engine_operation_duration_seconds_count{operation="submit_order"} 3`)
}

func TestMetrics_Notify(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.Notify(context.Background(), []*domain.Event{
		{Kind: domain.EventOrderSubmitted, At: 10},
		{Kind: domain.EventOrderSubmitted, At: 11},
		{Kind: domain.EventTradeExecuted, Trade: &domain.TradePair{MatchedAmount: 10, ExecutionPrice: 105}, At: 12},
		{Kind: domain.EventRoundCompleted, Attributes: map[string]string{"fees": "105"}, At: 12},
		{Kind: domain.EventExecutorSlashed, Attributes: map[string]string{"violation": "MISSED_HEARTBEAT"}, At: 13},
		{Kind: domain.EventRoundFailed, At: 14},
	})
	m.RecordNoncesPruned(4)

	out := scrape(t, reg)
	assert.Contains(t, out, `test_protocol_events_total{kind="order_submitted"} 2`)
	assert.Contains(t, out, "test_protocol_orders_submitted_total 2")
	assert.Contains(t, out, "test_protocol_trades_executed_total 1")
	assert.Contains(t, out, "test_protocol_volume_base_units_total 10")
	assert.Contains(t, out, "test_protocol_fees_quote_units_total 105")
	assert.Contains(t, out, `test_protocol_rounds_total{status="COMPLETED"} 1`)
	assert.Contains(t, out, `test_protocol_rounds_total{status="FAILED"} 1`)
	assert.Contains(t, out, `test_protocol_executor_slashes_total{violation="MISSED_HEARTBEAT"} 1`)
	assert.Contains(t, out, "test_maintenance_nonces_pruned_total 4")
	assert.Contains(t, out, "test_health_last_commit_timestamp 14")
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics("test", prometheus.NewRegistry())
		NewMetrics("test", prometheus.NewRegistry())
	})
}
