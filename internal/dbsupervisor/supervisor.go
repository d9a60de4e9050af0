// Package dbsupervisor starts and supervises the auxiliary database
// process (spec.md §4.6): it renders a config file, binds a readiness
// datagram socket, spawns the database binary, and waits for its
// `READY=1` announcement before handing back a child-exit-await task and
// a DBHandle plugins can use.
//
// Grounded on the teacher's Redis client construction
// (api/internal/cache/cache.go) for the handle half; the process
// supervision half (render config, spawn, await readiness, SIGINT on
// shutdown) has no corpus precedent, so it is built directly from
// spec.md §4.6 using only os/exec, net and text/template — see DESIGN.md for why no
// third-party process-supervisor library applies.
package dbsupervisor

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"text/template"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/projekt-utopia/uCore/internal/apperrors"
)

// readyPayload is the exact (post-trim) datagram payload the database
// binary must send once it is ready to accept connections (spec.md §4.6).
const readyPayload = "READY=1"

// Config controls how the supervisor renders and launches the database.
type Config struct {
	// Bin is the path to the database binary.
	Bin string
	// ConfigTemplate is rendered with Config as its data and written to
	// a secure temp file before the binary is spawned.
	ConfigTemplate string
	// ReadySocketEnvVar names the environment variable the spawned
	// binary is told the readiness datagram socket path through.
	ReadySocketEnvVar string
	// ReadySocketPath is the path the supervisor binds its readiness
	// datagram socket at (spec.md §6 UTOPIA_DB_SOCKET_PATH).
	ReadySocketPath string
	// ListenAddr is the TCP/unix address the database listens on for
	// real client traffic (including this core's own DBHandle).
	ListenAddr string
	// ReadyTimeout bounds how long the supervisor waits for READY=1.
	ReadyTimeout time.Duration
}

// Supervisor holds the spawned child and the readiness socket used to
// start it, so Shutdown can signal the child and Cleanup can remove the
// socket and rendered config.
type Supervisor struct {
	log        zerolog.Logger
	cmd        *exec.Cmd
	readySock  *net.UnixConn
	configPath string
}

// Start renders the config, binds the datagram socket, spawns the
// binary, and blocks until READY=1 arrives or ReadyTimeout elapses
// (spec.md §4.6).
func Start(ctx context.Context, log zerolog.Logger, cfg Config) (*Supervisor, error) {
	configPath, err := renderConfig(cfg)
	if err != nil {
		return nil, apperrors.New(apperrors.ClassDatabaseFatal, "Error rendering database config", err)
	}

	sockPath, readySock, err := bindReadySocket(cfg.ReadySocketPath)
	if err != nil {
		os.Remove(configPath)
		return nil, apperrors.New(apperrors.ClassDatabaseFatal, "Error binding database readiness socket", err)
	}

	cmd := exec.CommandContext(ctx, cfg.Bin, "--config", configPath)
	cmd.Env = append(os.Environ(), fmt.Sprintf("%s=%s", cfg.ReadySocketEnvVar, sockPath))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		readySock.Close()
		os.Remove(sockPath)
		os.Remove(configPath)
		return nil, apperrors.New(apperrors.ClassDatabaseFatal, "Error spawning database process", err)
	}

	if err := awaitReady(readySock, cfg.ReadyTimeout); err != nil {
		cmd.Process.Kill()
		readySock.Close()
		os.Remove(sockPath)
		os.Remove(configPath)
		return nil, apperrors.New(apperrors.ClassDatabaseFatal, "Error waiting for database readiness", err)
	}

	log.Info().Int("pid", cmd.Process.Pid).Msg("database process ready")
	return &Supervisor{log: log, cmd: cmd, readySock: readySock, configPath: configPath}, nil
}

func renderConfig(cfg Config) (string, error) {
	tmpl, err := template.New("dbconfig").Parse(cfg.ConfigTemplate)
	if err != nil {
		return "", fmt.Errorf("dbsupervisor: parsing config template: %w", err)
	}

	f, err := os.CreateTemp("", "utopia-core-db-*.conf")
	if err != nil {
		return "", fmt.Errorf("dbsupervisor: creating temp config: %w", err)
	}
	defer f.Close()
	if err := f.Chmod(0600); err != nil {
		return "", fmt.Errorf("dbsupervisor: securing temp config: %w", err)
	}
	if err := tmpl.Execute(f, cfg); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("dbsupervisor: rendering config: %w", err)
	}
	return f.Name(), nil
}

// bindReadySocket binds the readiness datagram socket at path, or at a
// freshly reserved temp path if path is empty.
func bindReadySocket(path string) (sockPath string, conn *net.UnixConn, err error) {
	if path == "" {
		f, err := os.CreateTemp("", "utopia-core-db-ready-*.sock")
		if err != nil {
			return "", nil, fmt.Errorf("dbsupervisor: reserving readiness socket path: %w", err)
		}
		path = f.Name()
		f.Close()
		os.Remove(path)
	} else {
		os.Remove(path)
	}
	sockPath = path

	addr := &net.UnixAddr{Name: sockPath, Net: "unixgram"}
	conn, err = net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return "", nil, fmt.Errorf("dbsupervisor: binding readiness socket: %w", err)
	}
	return sockPath, conn, nil
}

func awaitReady(conn *net.UnixConn, timeout time.Duration) error {
	if timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return fmt.Errorf("dbsupervisor: setting readiness deadline: %w", err)
		}
	}
	buf := make([]byte, 64)
	n, err := conn.Read(buf)
	if err != nil {
		return fmt.Errorf("dbsupervisor: reading readiness datagram: %w", err)
	}
	payload := strings.TrimSpace(string(buf[:n]))
	if payload != readyPayload {
		return fmt.Errorf("dbsupervisor: unexpected readiness payload %q", payload)
	}
	return nil
}

// AwaitExit blocks until the database process exits and returns the
// error cmd.Wait reports (nil on a clean exit). The Event Loop runs this
// as its database-death internal future (spec.md §4.6, §4.8).
func (s *Supervisor) AwaitExit() error {
	return s.cmd.Wait()
}

// Shutdown sends SIGINT to the database process for graceful
// termination (spec.md §4.6 "On shutdown").
func (s *Supervisor) Shutdown() error {
	if s.cmd.Process == nil {
		return nil
	}
	return s.cmd.Process.Signal(syscall.SIGINT)
}

// Cleanup removes the rendered config file and readiness socket. Call
// after AwaitExit has returned.
func (s *Supervisor) Cleanup() {
	if s.readySock != nil {
		if addr, ok := s.readySock.LocalAddr().(*net.UnixAddr); ok {
			os.Remove(addr.Name)
		}
		s.readySock.Close()
	}
	os.Remove(s.configPath)
}

// redisHandle adapts a *redis.Client to pluginapi.DBHandle behind a
// single-writer/multi-reader lock, per spec.md §4.6 "Shared resources".
type redisHandle struct {
	client *redis.Client
	lock   sync.RWMutex
}

// NewHandle wraps client as the DBHandle passed to every plugin's Init
// (spec.md §4.3 "DB handle").
func NewHandle(client *redis.Client) *redisHandle {
	return &redisHandle{client: client}
}

// Client exposes the underlying Redis client to core components that
// aren't bound by the plugin-facing locking contract (e.g. readiness
// probes at startup).
func (h *redisHandle) Client() *redis.Client { return h.client }

func (h *redisHandle) Lock() (unlock func()) {
	h.lock.Lock()
	return h.lock.Unlock
}

func (h *redisHandle) RLock() (runlock func()) {
	h.lock.RLock()
	return h.lock.RUnlock
}
