package systemd

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "hwbot/pkg/logx"
)

func listenNotify(t *testing.T) *net.UnixConn {
	t.Helper()
	dir, err := os.MkdirTemp("", "sd")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	path := filepath.Join(dir, "notify.sock")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	t.Setenv("NOTIFY_SOCKET", path)
	return conn
}

func read(t *testing.T, conn *net.UnixConn) string {
	t.Helper()
	buf := make([]byte, 256)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, err := conn.Read(buf)
	require.NoError(t, err)
	return string(buf[:n])
}

func TestNotifierSendsStates(t *testing.T) {
	conn := listenNotify(t)
	n := New(logx.Nop())

	n.Ready()
	assert.Equal(t, "READY=1", read(t, conn))
	n.Watchdog()
	assert.Equal(t, "WATCHDOG=1", read(t, conn))
	n.Status("polling")
	assert.Equal(t, "STATUS=polling", read(t, conn))
	n.Stopping()
	assert.Equal(t, "STOPPING=1", read(t, conn))
}

func TestNotifierOutsideSystemd(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	t.Setenv("WATCHDOG_USEC", "")
	n := New(logx.Nop())

	n.Ready()
	_, ok := n.WatchdogInterval()
	assert.False(t, ok)
}

func TestWatchdogInterval(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", "30000000")
	t.Setenv("WATCHDOG_PID", "")
	d, ok := New(logx.Nop()).WatchdogInterval()
	assert.True(t, ok)
	assert.Equal(t, 30*time.Second, d)
}
