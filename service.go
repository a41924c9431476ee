package dmx

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const ServiceName = "dmx"

// Service runs the link operations. It holds no port state: every call opens
// and closes its own handle, so one Service may be shared freely between
// goroutines. Concurrent calls on the same port are arbitrated by the OS
// exclusive open only.
//
// The zero value is usable and discards its logs. A Service must not be
// copied after first use.
type Service struct {
	logger  zerolog.Logger
	metrics Metrics

	useGlobalLogger bool
}

// NewService returns a Service that logs through logger.
func NewService(logger zerolog.Logger) *Service {
	return &Service{
		logger: logger.With().Str("service", ServiceName).Logger(),
	}
}

// defaultService backs the package-level functions. Its logger is resolved
// lazily from zerolog's global logger so hosts can configure that first.
var defaultService = &Service{useGlobalLogger: true}

// Logger returns the logger the service writes to.
func (s *Service) Logger() *zerolog.Logger {
	if s.useGlobalLogger {
		l := log.Logger.With().Str("service", ServiceName).Logger()
		return &l
	}
	return &s.logger
}

// MetricsSnapshot returns a copy of the service counters.
func (s *Service) MetricsSnapshot() *MetricsSnapshot {
	return s.metrics.snapshot()
}

// ResetMetrics clears all counters (useful for testing)
func (s *Service) ResetMetrics() {
	s.metrics.reset()
}

// ListPorts enumerates ports through the default service.
func ListPorts() []string {
	return defaultService.ListPorts()
}

// AvailablePorts enumerates ports through the default service, keeping the error.
func AvailablePorts() ([]string, error) {
	return defaultService.AvailablePorts()
}

// DetailedPorts enumerates ports with USB metadata through the default service.
func DetailedPorts() ([]PortInfo, error) {
	return defaultService.DetailedPorts()
}

// CheckHandshake runs a handshake through the default service.
func CheckHandshake(port string) (bool, error) {
	return defaultService.CheckHandshake(port)
}

// Handshake runs a handshake through the default service and reports the detailed outcome.
func Handshake(port string) (HandshakeResult, error) {
	return defaultService.Handshake(port)
}

// SendCommand sends one channel/value command through the default service.
func SendCommand(port string, channel uint16, value uint8) error {
	return defaultService.SendCommand(port, channel, value)
}

// DefaultMetricsSnapshot returns the counters of the default service.
func DefaultMetricsSnapshot() *MetricsSnapshot {
	return defaultService.MetricsSnapshot()
}
