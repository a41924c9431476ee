package dmx

import (
	"context"
	"errors"
	"time"

	"go.uber.org/atomic"
)

// errReleased is returned by a scopedPort once its call has given the handle back.
var errReleased = errors.New("dmx: port released")

// writeResult holds the result of a bounded write
type writeResult struct {
	n   int
	err error
}

// scopedPort is the handle passed to a withPort callback. Once withPort
// returns it refuses further writes, so a writer goroutine that outlived a
// timeout cannot touch the closed descriptor (or whatever reuses its number).
type scopedPort struct {
	portHandle
	released atomic.Bool
}

func (p *scopedPort) Write(b []byte) (int, error) {
	if p.released.Load() {
		return 0, errReleased
	}
	return p.portHandle.Write(b)
}

// withPort opens name, applies readTimeout, runs fn and closes the port on
// every exit path. Each call owns its handle; nothing is pooled or shared, so
// a concurrent call on the same name fails in the OS open instead of waiting.
func (s *Service) withPort(name string, readTimeout time.Duration, fn func(h portHandle) error) (err error) {
	s.metrics.PortOpens.Inc()

	h, err := openPort(name, lineMode())
	if err != nil {
		s.metrics.OpenFailures.Inc()
		s.metrics.recordError()
		s.Logger().Debug().Err(err).Str("port", name).Str("op", OpOpen).Msg("open failed")
		return newPortError(OpOpen, name, err)
	}
	sp := &scopedPort{portHandle: h}

	defer func() {
		sp.released.Store(true)
		if e := h.Close(); e != nil {
			s.Logger().Debug().Err(e).Str("port", name).Msg("close failed")
			// the operation result wins; a close error is only added to a failure
			if err != nil {
				err = errors.Join(err, e)
			}
		}
	}()

	if err = h.SetReadTimeout(readTimeout); err != nil {
		s.metrics.OpenFailures.Inc()
		s.metrics.recordError()
		return newPortError(OpOpen, name, err)
	}

	return fn(sp)
}

// writeFull writes all of data within timeout. A write that reports zero
// bytes without an error is treated as a short write rather than retried forever.
//
// On timeout the byte count written so far is returned with ErrWriteTimeout.
// The driver has no write deadline and Close does not interrupt a blocked
// write, so the goroutine stays in that one syscall until the device drains;
// the scopedPort stops it from issuing another.
func writeFull(h portHandle, data []byte, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var written atomic.Int64
	resultCh := make(chan writeResult, 1)
	go func() {
		for int(written.Load()) < len(data) {
			n, err := h.Write(data[written.Load():])
			if err != nil {
				resultCh <- writeResult{int(written.Load()), err}
				return
			}
			if n == 0 {
				resultCh <- writeResult{int(written.Load()), ErrShortWrite}
				return
			}
			written.Add(int64(n))
		}
		resultCh <- writeResult{int(written.Load()), nil}
	}()

	select {
	case result := <-resultCh:
		return result.n, result.err
	case <-ctx.Done():
		return int(written.Load()), ErrWriteTimeout
	}
}

// readByte reads a single byte. go.bug.st/serial reports a read timeout as
// zero bytes with a nil error, which is mapped to ErrReadTimeout.
func readByte(h portHandle) (byte, error) {
	var buf [1]byte
	n, err := h.Read(buf[:])
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrReadTimeout
	}
	return buf[0], nil
}
