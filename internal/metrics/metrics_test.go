package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_CountsMutations(t *testing.T) {
	r := New()
	r.MutationStarted()
	r.MutationStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(r.inflight))

	r.MutationSettled("checkout_book", OutcomeConfirmed, time.Second)
	r.MutationSettled("checkout_book", OutcomeRolledBack, time.Second)
	assert.Equal(t, 0.0, testutil.ToFloat64(r.inflight))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.mutations.WithLabelValues("checkout_book", OutcomeConfirmed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.mutations.WithLabelValues("checkout_book", OutcomeRolledBack)))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	r.MutationStarted()
	r.MutationSettled("x", OutcomeConfirmed, 0)
	r.RollbackConflict("x")
	r.PushTick()
	r.PushMessage("bus_update")
	r.StoreChange("bus", "update")
}

func TestRecorder_HandlerExposesMetrics(t *testing.T) {
	r := New()
	r.PushTick()
	r.PushMessage("bus_update")
	r.StoreChange("", "sync")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "quad_push_ticks_total 1")
	assert.Contains(t, string(body), `quad_push_messages_total{type="bus_update"} 1`)
	assert.Contains(t, string(body), `quad_store_changes_total{kind="sync",op="sync"} 1`)
}
