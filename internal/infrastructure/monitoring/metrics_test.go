package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsQueue(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordEnqueued(1)
	m.RecordEnqueued(2)
	m.RecordDropped(1)
	m.RecordDropped(0)
	m.SetQueues(1, 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TracesEnqueued))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TracesDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PendingTraces))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.InFlightTraces))

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.TracesEnqueued)
	assert.Equal(t, int64(1), snap.TracesDropped)
}

func TestMetricsDelivery(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	NewTimer(m, "local", 4).Stop(OutcomeSuccess)
	NewTimer(m, "local", 2).Stop(OutcomeFailure)
	m.RecordHandshake("net", OutcomeSuccess)
	m.RecordHandshake("net", OutcomeFailure)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.TracesDelivered))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Deliveries.WithLabelValues("local", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Deliveries.WithLabelValues("local", OutcomeFailure)))

	snap := m.Snapshot()
	assert.Equal(t, int64(4), snap.TracesDelivered)
	assert.Equal(t, int64(1), snap.DeliveryFailures)
	assert.Equal(t, int64(1), snap.HandshakeFailures)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordEnqueued(1)
		m.RecordDropped(1)
		m.SetQueues(0, 0)
		m.RecordHandshake("net", OutcomeSuccess)
		m.RecordDelivery("net", OutcomeSuccess, 1, time.Millisecond)
		m.RecordPayload("lines", 10)
		m.SetBreakerState("net", 2)
		m.RecordHTTPRequest("GET", "/", "200", time.Millisecond)
		m.RecordBatchCollected("text/plain")
		NewTimer(m, "net", 1).Stop(OutcomeCancelled)
	})
	assert.Equal(t, Snapshot{}, m.Snapshot())
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics(prometheus.NewRegistry())

	router := gin.New()
	router.Use(Middleware(m))
	router.POST("/start/:code", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodPost, "/start/abc", nil)
	require.NoError(t, err)
	router.ServeHTTP(w, req)

	w = httptest.NewRecorder()
	req, err = http.NewRequest(http.MethodGet, "/missing", nil)
	require.NoError(t, err)
	router.ServeHTTP(w, req)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "/start/:code", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}
