//go:build linux

package main

import (
	"bufio"
	"os"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// openLoopback returns the controller side of a pseudo-terminal and the
// device name dmxctl should open.
func openLoopback(t *testing.T) (*os.File, string) {
	t.Helper()

	master, slave, err := pty.Open()
	if err != nil {
		t.Skipf("pseudo-terminals unavailable: %v", err)
	}
	t.Cleanup(func() { master.Close(); slave.Close() })

	p, err := serial.Open(slave.Name(), &serial.Mode{BaudRate: 115200, DataBits: 8})
	if err != nil {
		t.Skipf("pty not usable as a serial port: %v", err)
	}
	require.NoError(t, p.Close())

	return master, slave.Name()
}

// answer waits for the handshake challenge on the controller side and replies
// with reply.
func answer(t *testing.T, master *os.File, reply byte) {
	t.Helper()

	go func() {
		r := bufio.NewReader(master)
		if _, err := r.ReadString('\n'); err != nil {
			return
		}
		_, _ = master.Write([]byte{reply})
	}()
}

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()

	lines := make(chan string, 1)
	go func() {
		line, err := r.ReadString('\n')
		if err == nil {
			lines <- line
		}
	}()

	select {
	case line := <-lines:
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for data from dmxctl")
	}
	return ""
}

func TestCheckConfirmed(t *testing.T) {
	master, name := openLoopback(t)
	answer(t, master, '!')

	out, err := run(t, "check", "--config", tempConfig(t), "--port", name)
	require.NoError(t, err)
	assert.Equal(t, name+": confirmed\n", out)
}

func TestCheckDeniedIsNotConfirmed(t *testing.T) {
	master, name := openLoopback(t)
	answer(t, master, '?')

	out, err := run(t, "check", "--config", tempConfig(t), "--port", name)
	assert.ErrorIs(t, err, errNotConfirmed)
	assert.Equal(t, name+": denied (received 0x3f)\n", out)
}

func TestCheckNoAnswerIsNotConfirmed(t *testing.T) {
	_, name := openLoopback(t)

	out, err := run(t, "check", "--config", tempConfig(t), "--port", name)
	assert.ErrorIs(t, err, errNotConfirmed)
	assert.Contains(t, out, name+": no answer")
}

func TestCheckUsesConfiguredPort(t *testing.T) {
	master, name := openLoopback(t)
	answer(t, master, '!')

	path := tempConfig(t)
	require.NoError(t, savePort(path, name))

	out, err := run(t, "check", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "confirmed")
}

func TestSendSeveralPairsInOrder(t *testing.T) {
	master, name := openLoopback(t)
	r := bufio.NewReader(master)

	out, err := run(t, "send", "--config", tempConfig(t), "--port", name,
		"--log-level", "debug", "--log-format", "json",
		"1,255", "2,128", "3,0")
	require.NoError(t, err)

	assert.Equal(t, "1,255\n", readLine(t, r))
	assert.Equal(t, "2,128\n", readLine(t, r))
	assert.Equal(t, "3,0\n", readLine(t, r))

	// one open and one write per pair
	assert.Contains(t, out, `"port_opens":3`)
	assert.Contains(t, out, `"commands_sent":3`)
}

func TestSetPortChecksHandshake(t *testing.T) {
	master, name := openLoopback(t)
	answer(t, master, '!')
	path := tempConfig(t)

	out, err := run(t, "set-port", "--config", path, name)
	require.NoError(t, err)
	assert.Contains(t, out, "port set to "+name)

	v := viper.New()
	require.NoError(t, loadConfig(v, path))
	assert.Equal(t, name, v.GetString(PortCfgKey))
}

func TestSetPortRejectsSilentPort(t *testing.T) {
	_, name := openLoopback(t)
	path := tempConfig(t)

	_, err := run(t, "set-port", "--config", path, name)
	assert.ErrorIs(t, err, errHandshakeFailed)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "config must not be written")
}
