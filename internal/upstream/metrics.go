package upstream

import "sync/atomic"

// Metrics tracks per-session traffic counters, exposed through
// Session.Stats; the GET /clients body does not include them. Adapted from
// the teacher's metrics/websocket.go WSCollector.
type Metrics struct {
	messagesSent     atomic.Int64
	messagesReceived atomic.Int64
	errors           atomic.Int64
	reconnects       atomic.Int64
}

// Stats is a point-in-time snapshot of Metrics.
type Stats struct {
	MessagesSent     int64 `json:"messagesSent"`
	MessagesReceived int64 `json:"messagesReceived"`
	Errors           int64 `json:"errors"`
	Reconnects       int64 `json:"reconnects"`
}

func (m *Metrics) recordSent()     { m.messagesSent.Add(1) }
func (m *Metrics) recordReceived() { m.messagesReceived.Add(1) }
func (m *Metrics) recordError()    { m.errors.Add(1) }
func (m *Metrics) recordReconnect() { m.reconnects.Add(1) }

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() Stats {
	return Stats{
		MessagesSent:     m.messagesSent.Load(),
		MessagesReceived: m.messagesReceived.Load(),
		Errors:           m.errors.Load(),
		Reconnects:       m.reconnects.Load(),
	}
}
