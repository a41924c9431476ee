package dmx

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	gobug "go.bug.st/serial"
)

type mockPort struct {
	mu     sync.Mutex
	writes [][]byte
	// replies are handed out one per Read call; with none left Read reports
	// a timeout the way go.bug.st/serial does (0 bytes, nil error).
	replies     [][]byte
	readTimeout time.Duration
	readCalls   int
	resets      int
	closed      bool

	readErr  error
	writeErr error
	resetErr error
	// writeN, if non-zero, caps how many bytes a single Write reports.
	writeN int
	// zeroWrite makes Write report success with 0 bytes.
	zeroWrite bool

	// writeBlock and readBlock, if non-nil, hold the call until closed (or
	// until Close for writeBlock). blockAfter lets that many writes through first.
	writeBlock chan struct{}
	blockAfter int
	readBlock  chan struct{}
	// reading is closed once the first Read starts.
	reading     chan struct{}
	readingOnce sync.Once

	onClose func()
}

func newMockPort(replies ...string) *mockPort {
	mp := &mockPort{reading: make(chan struct{})}
	for _, r := range replies {
		mp.replies = append(mp.replies, []byte(r))
	}
	return mp
}

func (m *mockPort) SetReadTimeout(d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readTimeout = d
	return nil
}

func (m *mockPort) ResetInputBuffer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	return m.resetErr
}

func (m *mockPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	block := m.writeBlock != nil && len(m.writes) >= m.blockAfter
	m.mu.Unlock()
	if block {
		<-m.writeBlock
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	if m.zeroWrite {
		return 0, nil
	}
	if m.writeN > 0 && len(p) > m.writeN {
		p = p[:m.writeN]
	}
	cp := make([]byte, len(p))
	copy(cp, p)
	m.writes = append(m.writes, cp)
	return len(p), nil
}

func (m *mockPort) Read(p []byte) (int, error) {
	m.readingOnce.Do(func() { close(m.reading) })
	if m.readBlock != nil {
		<-m.readBlock
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.readCalls++
	if m.readErr != nil {
		return 0, m.readErr
	}
	if len(m.replies) == 0 {
		return 0, nil
	}
	n := copy(p, m.replies[0])
	m.replies = m.replies[1:]
	return n, nil
}

func (m *mockPort) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	if m.writeBlock != nil {
		close(m.writeBlock)
	}
	onClose := m.onClose
	m.mu.Unlock()

	if onClose != nil {
		onClose()
	}
	return nil
}

// written returns everything written to the port, concatenated.
func (m *mockPort) written() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []byte
	for _, w := range m.writes {
		out = append(out, w...)
	}
	return string(out)
}

func (m *mockPort) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

func (m *mockPort) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// openRecord captures one call to openPort.
type openRecord struct {
	name string
	mode gobug.Mode
}

// mockOS stands in for the OS serial layer. Ports are exclusive: a second
// open of a name that is still open fails, as with TIOCEXCL or Windows COM ports.
type mockOS struct {
	mu      sync.Mutex
	ports   map[string][]*mockPort
	busy    map[string]bool
	opens   []openRecord
	openErr error
}

var errPortBusy = errors.New("Serial port busy")

func installMockOS(t *testing.T) *mockOS {
	t.Helper()

	m := &mockOS{
		ports: map[string][]*mockPort{},
		busy:  map[string]bool{},
	}

	prevOpen := openPort
	openPort = m.open
	t.Cleanup(func() { openPort = prevOpen })

	return m
}

// add queues mp to be returned by the next open of name.
func (m *mockOS) add(name string, mp *mockPort) *mockPort {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ports[name] = append(m.ports[name], mp)
	return mp
}

func (m *mockOS) open(name string, mode *gobug.Mode) (portHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.opens = append(m.opens, openRecord{name: name, mode: *mode})
	if m.openErr != nil {
		return nil, m.openErr
	}
	if m.busy[name] {
		return nil, errPortBusy
	}
	queue := m.ports[name]
	if len(queue) == 0 {
		return nil, errors.New("no such file or directory")
	}
	mp := queue[0]
	if len(queue) > 1 {
		m.ports[name] = queue[1:]
	}

	m.busy[name] = true
	mp.mu.Lock()
	mp.closed = false
	mp.onClose = func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.busy[name] = false
	}
	mp.mu.Unlock()

	return mp, nil
}

func (m *mockOS) openCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.opens)
}

func newTestService() *Service {
	return NewService(zerolog.Nop())
}
