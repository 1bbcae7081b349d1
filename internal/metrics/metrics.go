package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Match outcomes reported by dispatch_match_total.
const (
	OutcomeAssigned = "assigned"
	OutcomeNoMatch  = "no_match"
	OutcomeSkipped  = "skipped"
	OutcomeConflict = "conflict"
	OutcomeFailed   = "failed"
)

// Notification results reported by notify_messages_total.
const (
	ResultDelivered = "delivered"
	ResultFailed    = "failed"
	ResultDropped   = "dropped"
)

// NewRateLimitExceededTotal counts requests rejected by the rate limiter.
func NewRateLimitExceededTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_exceeded_total",
		Help: "Total number of rejected HTTP requests due to rate limiting",
	})
}

// NewNotifyGatewayRetriesTotal counts retries of the notify gRPC client.
func NewNotifyGatewayRetriesTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notify_gateway_retries_total",
		Help: "Total number of retry attempts performed by the notify gateway",
	})
}

// NewJobRetriesTotal counts retries of match jobs.
func NewJobRetriesTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_job_retries_total",
		Help: "Total number of match job retry attempts",
	})
}

// NewMatchTotal counts match job outcomes.
func NewMatchTotal() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_match_total",
		Help: "Match job outcomes",
	}, []string{"outcome"})
}

// NewTransitionsTotal counts applied delivery status transitions.
func NewTransitionsTotal() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_transitions_total",
		Help: "Applied delivery status transitions",
	}, []string{"from", "to"})
}

// NewChannelsOpen tracks open realtime channels.
func NewChannelsOpen() prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "notify_channels_open",
		Help: "Currently open realtime channels",
	})
}

// NewMessagesTotal counts realtime sends by result.
func NewMessagesTotal() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_messages_total",
		Help: "Realtime messages by result",
	}, []string{"result"})
}

// NewHTTPRequestsTotal counts HTTP requests.
func NewHTTPRequestsTotal() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
}

// NewHTTPRequestDuration observes HTTP request latency.
func NewHTTPRequestDuration() *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
}

// Dispatch groups the collectors used by the dispatch pipeline.
type Dispatch struct {
	Matches     *prometheus.CounterVec
	Transitions *prometheus.CounterVec
	JobRetries  prometheus.Counter
}

// NewDispatch builds unregistered dispatch collectors.
func NewDispatch() *Dispatch {
	return &Dispatch{
		Matches:     NewMatchTotal(),
		Transitions: NewTransitionsTotal(),
		JobRetries:  NewJobRetriesTotal(),
	}
}

// Collectors lists every collector for registration.
func (d *Dispatch) Collectors() []prometheus.Collector {
	return []prometheus.Collector{d.Matches, d.Transitions, d.JobRetries}
}

// Notify groups the collectors used by the notification router.
type Notify struct {
	ChannelsOpen prometheus.Gauge
	Messages     *prometheus.CounterVec
}

// NewNotify builds unregistered notify collectors.
func NewNotify() *Notify {
	return &Notify{ChannelsOpen: NewChannelsOpen(), Messages: NewMessagesTotal()}
}

// Collectors lists every collector for registration.
func (n *Notify) Collectors() []prometheus.Collector {
	return []prometheus.Collector{n.ChannelsOpen, n.Messages}
}

// HTTP groups the collectors used by the observability middleware.
type HTTP struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewHTTP builds unregistered HTTP collectors.
func NewHTTP() *HTTP {
	return &HTTP{Requests: NewHTTPRequestsTotal(), Duration: NewHTTPRequestDuration()}
}

// Collectors lists every collector for registration.
func (h *HTTP) Collectors() []prometheus.Collector {
	return []prometheus.Collector{h.Requests, h.Duration}
}

// NewRegistry returns a registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Register registers every collector, stopping at the first failure.
func Register(reg prometheus.Registerer, cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("register collector: %w", err)
		}
	}
	return nil
}
