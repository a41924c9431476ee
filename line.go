package dmx

import (
	"time"

	gobug "go.bug.st/serial"
)

type BaudRate int

func (b BaudRate) Int() int {
	return int(b)
}

type DataBits int

func (d DataBits) Int() int {
	return int(d)
}

type Parity gobug.Parity

func (pa Parity) Get() gobug.Parity {
	return gobug.Parity(pa)
}

type StopBits gobug.StopBits

func (sb StopBits) Get() gobug.StopBits {
	return gobug.StopBits(sb)
}

// Line settings expected by the controller firmware. They are part of the
// wire contract and are not configurable.
const (
	Baud115200 BaudRate = 115200
	DataBits8  DataBits = 8
	// ParityNone represents no parity bit
	ParityNone = Parity(gobug.NoParity)
	// StopBits1 represents 1 stop bit
	StopBits1 = StopBits(gobug.OneStopBit)
)

const (
	// HandshakeTimeout bounds both the challenge write and the one-byte reply read.
	HandshakeTimeout = 1000 * time.Millisecond

	// CommandTimeout bounds the command write only. No reply is ever read.
	CommandTimeout = 10 * time.Millisecond
)

// lineMode returns a fresh mode for every open so callers never share one.
func lineMode() *gobug.Mode {
	return &gobug.Mode{
		BaudRate: Baud115200.Int(),
		DataBits: DataBits8.Int(),
		Parity:   ParityNone.Get(),
		StopBits: StopBits1.Get(),
	}
}
