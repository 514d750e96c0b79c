package middleware

import (
	"net/http"
	"sync/atomic"
)

// Counters are the process-wide request counters exposed on /metrics.
type Counters struct {
	Requests        atomic.Int64
	ClientErrors    atomic.Int64
	ServerErrors    atomic.Int64
	TenantRejected  atomic.Int64
	PartiallyLinked atomic.Int64
}

// MetricsCollector collects request metrics.
type MetricsCollector struct {
	counters *Counters
}

func NewMetricsCollector(c *Counters) *MetricsCollector {
	return &MetricsCollector{counters: c}
}

// Middleware returns middleware that counts requests by outcome.
func (mc *MetricsCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mc.counters.Requests.Add(1)

		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		switch {
		case rw.statusCode == http.StatusMultiStatus:
			mc.counters.PartiallyLinked.Add(1)
		case rw.statusCode >= 500:
			mc.counters.ServerErrors.Add(1)
		case rw.statusCode >= 400:
			mc.counters.ClientErrors.Add(1)
		}
		if ri := infoFromContext(r.Context()); ri != nil && ri.tenantRejected {
			mc.counters.TenantRejected.Add(1)
		}
	})
}
