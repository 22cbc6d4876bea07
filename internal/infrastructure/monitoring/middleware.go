package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for collector request metrics
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// Route template keeps tracking codes out of the label set
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// Timer measures a delivery from dispatch to outcome
type Timer struct {
	start   time.Time
	metrics *Metrics
	sink    string
	traces  int
}

// NewTimer starts timing a delivery of traces to sink
func NewTimer(metrics *Metrics, sink string, traces int) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		sink:    sink,
		traces:  traces,
	}
}

// Stop records the delivery outcome and duration
func (t *Timer) Stop(outcome string) {
	t.metrics.RecordDelivery(t.sink, outcome, t.traces, time.Since(t.start))
}
