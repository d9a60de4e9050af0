package dbsupervisor

import (
	"net"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderConfigWritesSecureTempFile(t *testing.T) {
	path, err := renderConfig(Config{ConfigTemplate: "listen={{.ListenAddr}}\n", ListenAddr: "127.0.0.1:6399"})
	require.NoError(t, err)
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "listen=127.0.0.1:6399\n", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestBindReadySocketAndAwaitReadySucceeds(t *testing.T) {
	path, conn, err := bindReadySocket("")
	require.NoError(t, err)
	defer conn.Close()
	defer os.Remove(path)

	go func() {
		client, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: path, Net: "unixgram"})
		if err != nil {
			return
		}
		defer client.Close()
		client.Write([]byte(" READY=1 \n"))
	}()

	err = awaitReady(conn, 2*time.Second)
	assert.NoError(t, err)
}

func TestAwaitReadyRejectsWrongPayload(t *testing.T) {
	path, conn, err := bindReadySocket("")
	require.NoError(t, err)
	defer conn.Close()
	defer os.Remove(path)

	go func() {
		client, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: path, Net: "unixgram"})
		if err != nil {
			return
		}
		defer client.Close()
		client.Write([]byte("NOT=READY"))
	}()

	err = awaitReady(conn, 2*time.Second)
	assert.Error(t, err)
}

func TestAwaitReadyTimesOutWithNoSender(t *testing.T) {
	path, conn, err := bindReadySocket("")
	require.NoError(t, err)
	defer conn.Close()
	defer os.Remove(path)

	err = awaitReady(conn, 100*time.Millisecond)
	assert.Error(t, err)
}

func TestSupervisorAwaitExitReportsCleanExit(t *testing.T) {
	cmd := exec.Command("sh", "-c", "exit 0")
	require.NoError(t, cmd.Start())
	s := &Supervisor{cmd: cmd}
	assert.NoError(t, s.AwaitExit())
}

func TestSupervisorShutdownSignalsProcess(t *testing.T) {
	cmd := exec.Command("sh", "-c", "trap 'exit 0' INT; sleep 5")
	require.NoError(t, cmd.Start())
	s := &Supervisor{cmd: cmd}

	require.NoError(t, s.Shutdown())

	done := make(chan error, 1)
	go func() { done <- s.AwaitExit() }()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("process did not exit after SIGINT")
	}
}
