package dmx

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Command sets one channel to one value. On the wire it is the decimal
// channel, a comma, the decimal value and a newline, e.g. "12,200\n".
type Command struct {
	Channel uint16
	Value   uint8
}

// AppendText appends the wire form of c to b.
func (c Command) AppendText(b []byte) ([]byte, error) {
	b = strconv.AppendUint(b, uint64(c.Channel), 10)
	b = append(b, ',')
	b = strconv.AppendUint(b, uint64(c.Value), 10)
	return append(b, '\n'), nil
}

// MarshalText returns the wire form of c.
func (c Command) MarshalText() ([]byte, error) {
	return c.AppendText(make([]byte, 0, len("65535,255\n")))
}

// String returns the wire form without the trailing newline.
func (c Command) String() string {
	return strconv.FormatUint(uint64(c.Channel), 10) + "," + strconv.FormatUint(uint64(c.Value), 10)
}

// ParseCommand parses "channel,value". A trailing newline and surrounding
// spaces are accepted so wire payloads round-trip.
func ParseCommand(s string) (Command, error) {
	chPart, valPart, ok := strings.Cut(strings.TrimSpace(s), ",")
	if !ok {
		return Command{}, fmt.Errorf("dmx: command %q: expected channel,value", s)
	}

	ch, err := strconv.ParseUint(strings.TrimSpace(chPart), 10, 16)
	if err != nil {
		return Command{}, fmt.Errorf("dmx: command %q: channel: %w", s, err)
	}
	val, err := strconv.ParseUint(strings.TrimSpace(valPart), 10, 8)
	if err != nil {
		return Command{}, fmt.Errorf("dmx: command %q: value: %w", s, err)
	}

	return Command{Channel: uint16(ch), Value: uint8(val)}, nil
}

// SendCommand writes one channel/value command to port and returns without
// waiting for any acknowledgment. The write is bounded by CommandTimeout.
func (s *Service) SendCommand(port string, channel uint16, value uint8) error {
	return s.Send(port, Command{Channel: channel, Value: value})
}

// Send is SendCommand for an already built Command.
func (s *Service) Send(port string, cmd Command) error {
	payload, _ := cmd.MarshalText()

	return s.withPort(port, CommandTimeout, func(h portHandle) error {
		start := time.Now()
		n, err := writeFull(h, payload, CommandTimeout)
		s.metrics.recordWrite(n, err, time.Since(start))
		if err != nil {
			s.Logger().Debug().Err(err).Str("port", port).Stringer("command", cmd).Msg("command write failed")
			return newPortError(OpWrite, port, err)
		}

		s.metrics.CommandsSent.Inc()
		s.Logger().Trace().Str("port", port).Stringer("command", cmd).Int("bytes", n).Msg("command sent")
		return nil
	})
}
