package frontend

import (
	"fmt"
	"net"
	"os"
)

// Listener binds a Unix domain socket at path, unlinking any stale
// socket file left by a previous run (spec.md §4.1). The caller is
// responsible for unlinking path again on clean shutdown.
func Listener(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("frontend: clearing stale socket %s: %w", path, err)
	}
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("frontend: listen on %s: %w", path, err)
	}
	return l, nil
}

// AcceptLoop runs Accept in a goroutine and forwards each new connection
// to conns, until the listener is closed. This is the Event Loop's "new
// socket connections" source (spec.md §3).
func AcceptLoop(l net.Listener, conns chan<- net.Conn, errs chan<- error) {
	go func() {
		for {
			c, err := l.Accept()
			if err != nil {
				errs <- err
				return
			}
			conns <- c
		}
	}()
}
