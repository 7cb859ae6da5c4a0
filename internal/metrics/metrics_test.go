package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuthOperation("signin", "ok")
	c.RecordAuthOperation("signin", "ok")
	c.RecordAuthOperation("signin", "rejected")
	c.RecordGateDecision("Pending")
	c.RecordUserIDLookup("remote_call_failed", 150*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.authOps.WithLabelValues("signin", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.authOps.WithLabelValues("signin", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.gateDecisions.WithLabelValues("Pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.lookups.WithLabelValues("remote_call_failed")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.lookupDuration))
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordGateDecision("Authenticated")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `authgate_gate_decisions_total{state="Authenticated"} 1`)
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	r.RecordAuthOperation("signout", "ok")
	r.RecordGateDecision("Pending")
	r.RecordUserIDLookup("ok", time.Second)
}
