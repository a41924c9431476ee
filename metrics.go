package dmx

import (
	"errors"
	"time"

	"go.uber.org/atomic"
)

// Metrics tracks link activity across calls. Counters only observe; they
// never serialize access to a port.
type Metrics struct {
	// Port access
	PortOpens    atomic.Int64 // Total open attempts
	OpenFailures atomic.Int64 // Failed opens (including read timeout setup)

	// Handshakes
	Handshakes            atomic.Int64 // Total handshake attempts that reached the device
	HandshakesConfirmed   atomic.Int64
	HandshakesDenied      atomic.Int64
	HandshakesUnreachable atomic.Int64

	// Writes
	CommandsSent  atomic.Int64 // Commands fully written
	WriteErrors   atomic.Int64
	WriteTimeouts atomic.Int64
	BytesWritten  atomic.Int64
	BytesRead     atomic.Int64
	MaxWriteTime  atomic.Int64 // Slowest write (ns)
	LastWriteTime atomic.Int64 // Unix timestamp of last successful write

	LastErrorTime atomic.Int64 // Unix timestamp of last error
}

// MetricsSnapshot is a point-in-time copy of Metrics for display or export.
type MetricsSnapshot struct {
	Timestamp             time.Time     `json:"timestamp"`
	PortOpens             int64         `json:"port_opens"`
	OpenFailures          int64         `json:"open_failures"`
	Handshakes            int64         `json:"handshakes"`
	HandshakesConfirmed   int64         `json:"handshakes_confirmed"`
	HandshakesDenied      int64         `json:"handshakes_denied"`
	HandshakesUnreachable int64         `json:"handshakes_unreachable"`
	CommandsSent          int64         `json:"commands_sent"`
	WriteErrors           int64         `json:"write_errors"`
	WriteTimeouts         int64         `json:"write_timeouts"`
	BytesWritten          int64         `json:"bytes_written"`
	BytesRead             int64         `json:"bytes_read"`
	MaxWriteLatency       time.Duration `json:"max_write_latency"`
	OpenSuccessRate       float64       `json:"open_success_rate"`
	LastWriteTime         int64         `json:"last_write_time"`
	LastErrorTime         int64         `json:"last_error_time"`
}

func (m *Metrics) recordError() {
	m.LastErrorTime.Store(time.Now().Unix())
}

// recordWrite counts n even on failure; a timed-out write may have sent part
// of its payload.
func (m *Metrics) recordWrite(n int, err error, elapsed time.Duration) {
	m.BytesWritten.Add(int64(n))
	if err != nil {
		if errors.Is(err, ErrWriteTimeout) {
			m.WriteTimeouts.Inc()
		}
		m.WriteErrors.Inc()
		m.recordError()
		return
	}

	m.LastWriteTime.Store(time.Now().Unix())

	ns := elapsed.Nanoseconds()
	for {
		current := m.MaxWriteTime.Load()
		if ns <= current || m.MaxWriteTime.CompareAndSwap(current, ns) {
			break
		}
	}
}

func (m *Metrics) recordHandshake(status HandshakeStatus) {
	m.Handshakes.Inc()
	switch status {
	case HandshakeConfirmed:
		m.HandshakesConfirmed.Inc()
	case HandshakeDenied:
		m.HandshakesDenied.Inc()
	default:
		m.HandshakesUnreachable.Inc()
	}
}

func (m *Metrics) calculateOpenSuccessRate() float64 {
	opens := m.PortOpens.Load()
	if opens == 0 {
		return 100.0
	}
	return float64(opens-m.OpenFailures.Load()) / float64(opens) * 100
}

func (m *Metrics) snapshot() *MetricsSnapshot {
	return &MetricsSnapshot{
		Timestamp:             time.Now(),
		PortOpens:             m.PortOpens.Load(),
		OpenFailures:          m.OpenFailures.Load(),
		Handshakes:            m.Handshakes.Load(),
		HandshakesConfirmed:   m.HandshakesConfirmed.Load(),
		HandshakesDenied:      m.HandshakesDenied.Load(),
		HandshakesUnreachable: m.HandshakesUnreachable.Load(),
		CommandsSent:          m.CommandsSent.Load(),
		WriteErrors:           m.WriteErrors.Load(),
		WriteTimeouts:         m.WriteTimeouts.Load(),
		BytesWritten:          m.BytesWritten.Load(),
		BytesRead:             m.BytesRead.Load(),
		MaxWriteLatency:       time.Duration(m.MaxWriteTime.Load()),
		OpenSuccessRate:       m.calculateOpenSuccessRate(),
		LastWriteTime:         m.LastWriteTime.Load(),
		LastErrorTime:         m.LastErrorTime.Load(),
	}
}

// reset zeroes every counter in place so the Metrics value is never replaced
// while other calls hold it.
func (m *Metrics) reset() {
	for _, c := range []*atomic.Int64{
		&m.PortOpens, &m.OpenFailures,
		&m.Handshakes, &m.HandshakesConfirmed, &m.HandshakesDenied, &m.HandshakesUnreachable,
		&m.CommandsSent, &m.WriteErrors, &m.WriteTimeouts, &m.BytesWritten, &m.BytesRead,
		&m.MaxWriteTime, &m.LastWriteTime, &m.LastErrorTime,
	} {
		c.Store(0)
	}
}
