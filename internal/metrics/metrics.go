package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
)

var (
    // Registry is the dedicated Prometheus registry for the gateway.
    Registry = prometheus.NewRegistry()
    // HTTPRequests counts requests by method, path, and status.
    HTTPRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
        []string{"method", "path", "status"},
    )
    // HTTPDuration records request durations in seconds.
    HTTPDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
        []string{"method", "path", "status"},
    )

    // UpstreamCalls counts outbound carrier API calls by carrier, call kind and outcome.
    UpstreamCalls = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "upstream_calls_total", Help: "Outbound carrier API calls by carrier, kind and outcome."},
        []string{"carrier", "kind", "outcome"},
    )
    // QuoteDuration tracks full adapter quote latencies in seconds.
    QuoteDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "quote_duration_seconds", Help: "Carrier quote duration in seconds.", Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60}},
        []string{"carrier", "outcome"},
    )
    // RateLimited counts rejected gateway requests by client bucket kind.
    RateLimited = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "rate_limited_total", Help: "Requests rejected by the admission limiter."},
        []string{"bucket"},
    )
    // SessionLogins counts carrier login attempts by carrier and result.
    SessionLogins = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "session_logins_total", Help: "Carrier session logins by carrier and result."},
        []string{"carrier", "result"},
    )
)

// RegisterDefault registers collectors to the gateway registry.
func RegisterDefault() {
    regOnce.Do(func() {
        Registry.MustRegister(HTTPRequests)
        Registry.MustRegister(HTTPDuration)
        Registry.MustRegister(UpstreamCalls)
        Registry.MustRegister(QuoteDuration)
        Registry.MustRegister(RateLimited)
        Registry.MustRegister(SessionLogins)
        // Go/process collectors on our registry
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once
