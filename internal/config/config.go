// Package config loads the core's startup configuration from the process
// environment. Grounded on the teacher's cmd/main.go getEnv/getEnvInt
// helpers: the teacher reaches for plain env vars here rather than a
// config library, so this package keeps that idiom instead of importing
// one the corpus doesn't reach for in this spot.
package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
)

// Config holds everything the core needs to start.
type Config struct {
	// SocketPath is where the frontend-facing Unix listening socket binds.
	SocketPath string

	// PluginDir is the directory scanned for loadable plugin shared
	// objects (*.so).
	PluginDir string

	// DBBin is the path to the auxiliary key-value database binary.
	DBBin string

	// DBSocketPath is the Unix datagram socket path the database
	// supervisor listens on for the readiness sentinel.
	DBSocketPath string

	// DBListenAddr is the TCP/Unix address the spawned database binary
	// serves its client protocol on, handed to plugins via the shared
	// handle.
	DBListenAddr string

	LogLevel  string
	LogPretty bool

	// MetricsAddr, if non-empty, is the loopback address the Prometheus
	// metrics endpoint listens on. Empty disables it.
	MetricsAddr string
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// runtimeDir resolves XDG_RUNTIME_DIR. spec.md §6 lists it as required,
// with no fallback — matching the original implementation's
// env::var("XDG_RUNTIME_DIR").expect(...), which hard-fails rather than
// substituting anything. Load must fail here, not silently default
// SocketPath/DBSocketPath/DBListenAddr under $HOME.
func runtimeDir() (string, error) {
	d := os.Getenv("XDG_RUNTIME_DIR")
	if d == "" {
		return "", fmt.Errorf("resolve runtime dir: XDG_RUNTIME_DIR is required and not set")
	}
	return d, nil
}

// dataHome resolves XDG_DATA_HOME, falling back under the home directory.
func dataHome() (string, error) {
	if d := os.Getenv("XDG_DATA_HOME"); d != "" {
		return d, nil
	}
	home := os.Getenv("HOME")
	if home == "" {
		u, err := user.Current()
		if err != nil {
			return "", fmt.Errorf("resolve data home: %w", err)
		}
		home = u.HomeDir
	}
	return filepath.Join(home, ".local", "share"), nil
}

// Load builds a Config from the process environment.
func Load() (*Config, error) {
	rd, err := runtimeDir()
	if err != nil {
		return nil, err
	}
	dh, err := dataHome()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		SocketPath:   getEnv("UTOPIA_SOCKET_PATH", filepath.Join(rd, "utopia.sock")),
		PluginDir:    getEnv("UTOPIA_PLUGIN_DIR", filepath.Join(dh, "utopia", "plugins")),
		DBBin:        getEnv("UTOPIA_DB_BIN", "utopia-db"),
		DBSocketPath: getEnv("UTOPIA_DB_SOCKET_PATH", filepath.Join(rd, "utopia-db-ready.sock")),
		DBListenAddr: getEnv("UTOPIA_DB_LISTEN_ADDR", filepath.Join(rd, "utopia-db.sock")),
		LogLevel:     getEnv("UTOPIA_LOG_LEVEL", "info"),
		LogPretty:    getEnvBool("UTOPIA_LOG_PRETTY", false),
		MetricsAddr:  getEnv("UTOPIA_METRICS_ADDR", ""),
	}
	return cfg, nil
}
