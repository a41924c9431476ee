package dmx

import (
	"time"

	gobug "go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// allow tests to override the OS serial layer
var (
	openPort             = func(name string, mode *gobug.Mode) (portHandle, error) { return gobug.Open(name, mode) }
	getPortsList         = gobug.GetPortsList
	getDetailedPortsList = enumerator.GetDetailedPortsList
)

// portHandle is the subset of go.bug.st/serial.Port used by the link operations.
type portHandle interface {
	SetReadTimeout(timeout time.Duration) error
	ResetInputBuffer() error
	Write([]byte) (int, error)
	Read([]byte) (int, error)
	Close() error
}
