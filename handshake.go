package dmx

import "time"

// HandshakeChallenge is written to the device to ask it to identify itself.
const HandshakeChallenge = "CHECK\n"

// HandshakeAck is the single byte a compatible controller answers with.
const HandshakeAck byte = '!'

// HandshakeStatus classifies a handshake that got as far as sending the challenge.
type HandshakeStatus int

const (
	// HandshakeUnreachable means no reply byte was read (timeout or read error).
	HandshakeUnreachable HandshakeStatus = iota
	// HandshakeDenied means a reply arrived but it was not HandshakeAck.
	HandshakeDenied
	// HandshakeConfirmed means the device answered with HandshakeAck.
	HandshakeConfirmed
)

func (hs HandshakeStatus) String() string {
	switch hs {
	case HandshakeConfirmed:
		return "confirmed"
	case HandshakeDenied:
		return "denied"
	default:
		return "unreachable"
	}
}

// HandshakeResult is the detailed outcome of Handshake.
type HandshakeResult struct {
	Status HandshakeStatus
	// Received is the reply byte; valid unless Status is HandshakeUnreachable.
	Received byte
	// Reason is why no reply was read; nil unless Status is HandshakeUnreachable.
	Reason  error
	Elapsed time.Duration
}

// Confirmed collapses the result to the boolean handshake contract.
func (r HandshakeResult) Confirmed() bool {
	return r.Status == HandshakeConfirmed
}

// CheckHandshake reports whether the device on port answers the challenge.
// Only open and write failures are errors; a timeout, a read error or a wrong
// reply byte all yield false.
func (s *Service) CheckHandshake(port string) (bool, error) {
	result, err := s.Handshake(port)
	if err != nil {
		return false, err
	}
	return result.Confirmed(), nil
}

// Handshake opens port, clears pending input, writes HandshakeChallenge and
// waits up to HandshakeTimeout for one reply byte. The returned error is
// always a *PortError from the open or the write, possibly joined with a
// close error. Reply problems are reported through the result instead.
func (s *Service) Handshake(port string) (HandshakeResult, error) {
	var result HandshakeResult
	start := time.Now()

	err := s.withPort(port, HandshakeTimeout, func(h portHandle) error {
		if err := h.ResetInputBuffer(); err != nil {
			s.Logger().Debug().Err(err).Str("port", port).Msg("clearing input buffer")
		}

		writeStart := time.Now()
		n, err := writeFull(h, []byte(HandshakeChallenge), HandshakeTimeout)
		s.metrics.recordWrite(n, err, time.Since(writeStart))
		if err != nil {
			return newPortError(OpWrite, port, err)
		}

		b, err := readByte(h)
		switch {
		case err != nil:
			result.Status = HandshakeUnreachable
			result.Reason = err
		case b == HandshakeAck:
			s.metrics.BytesRead.Inc()
			result.Status = HandshakeConfirmed
			result.Received = b
		default:
			s.metrics.BytesRead.Inc()
			result.Status = HandshakeDenied
			result.Received = b
		}
		return nil
	})
	result.Elapsed = time.Since(start)
	if err != nil {
		return HandshakeResult{}, err
	}

	s.metrics.recordHandshake(result.Status)

	ev := s.Logger().Debug().
		Str("port", port).
		Stringer("status", result.Status).
		Dur("elapsed", result.Elapsed)
	if result.Status == HandshakeUnreachable {
		ev = ev.AnErr("reason", result.Reason)
	} else {
		ev = ev.Str("received", string(rune(result.Received)))
	}
	ev.Msg("handshake")

	return result, nil
}
