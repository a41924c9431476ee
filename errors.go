package dmx

import (
	"errors"
	"fmt"
)

var (
	ErrWriteTimeout = errors.New("dmx: write timeout")
	ErrReadTimeout  = errors.New("dmx: read timeout")
	ErrShortWrite   = errors.New("dmx: partial write: not all bytes written")
)

// Operation names carried by PortError.
const (
	OpOpen  = "open"
	OpWrite = "write"
)

// PortError reports a failed open or write on a named port. The message
// carries the driver's own text; Unwrap exposes the driver error so callers
// can still match *serial.PortError codes with errors.As.
type PortError struct {
	Op   string
	Port string
	Err  error
}

func (e *PortError) Error() string {
	return fmt.Sprintf("dmx: %s %s: %v", e.Op, e.Port, e.Err)
}

func (e *PortError) Unwrap() error {
	return e.Err
}

func newPortError(op, port string, err error) *PortError {
	return &PortError{Op: op, Port: port, Err: err}
}
