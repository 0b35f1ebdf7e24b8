// Package metrics provides lightweight counters for the engine. They are
// plain atomics so the hot paths never contend; Snapshot exists for
// periodic logging.
package metrics

import "sync/atomic"

// Counters aggregates client and server side event counts.
type Counters struct {
	// Client side.
	RequestsSent     atomic.Int64
	RepliesMatched   atomic.Int64
	RepliesDiscarded atomic.Int64
	RequestTimeouts  atomic.Int64

	// Server side.
	DatagramsReceived atomic.Int64
	DatagramsDropped  atomic.Int64
	ResponsesSent     atomic.Int64
}

// NewCounters returns a zeroed counter set.
func NewCounters() *Counters {
	return &Counters{}
}

// Snapshot returns the current values keyed by metric name.
func (c *Counters) Snapshot() map[string]int64 {
	return map[string]int64{
		"coap_requests_sent_total":      c.RequestsSent.Load(),
		"coap_replies_matched_total":    c.RepliesMatched.Load(),
		"coap_replies_discarded_total":  c.RepliesDiscarded.Load(),
		"coap_request_timeouts_total":   c.RequestTimeouts.Load(),
		"coap_datagrams_received_total": c.DatagramsReceived.Load(),
		"coap_datagrams_dropped_total":  c.DatagramsDropped.Load(),
		"coap_responses_sent_total":     c.ResponsesSent.Load(),
	}
}
