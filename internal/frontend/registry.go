// Package frontend implements the Frontend Registry and connection
// transport described in spec.md §4.1/§4.2: a listening Unix socket, the
// handshake that promotes a raw stream to a named frontend, and the
// name→connection map the Event Loop dispatches through.
//
// Grounded on the register/unregister/broadcast channel shape of
// streamspace's internal/websocket.Hub, adapted to this design's
// single-owner model: the registry has no internal mutex and no writer
// goroutine, because the Event Loop is its only caller (spec.md §4.2
// "Concurrency").
package frontend

import (
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"github.com/projekt-utopia/uCore/internal/apperrors"
	"github.com/projekt-utopia/uCore/internal/wire"
)

// Registry is the frontend-name → connection map (spec.md §4.2). It must
// only ever be touched from the Event Loop goroutine.
type Registry struct {
	log         zerolog.Logger
	conns       map[string]*connection
	Messages    chan InboundMessage
	Disconnects chan Disconnected
}

// New builds an empty Registry. messageBuffer sizes the fan-in channel
// connection goroutines publish onto. log is attached to every
// connection's read loop for decode-error reporting (spec.md §7).
func New(log zerolog.Logger, messageBuffer int) *Registry {
	return &Registry{
		log:         log,
		conns:       make(map[string]*connection),
		Messages:    make(chan InboundMessage, messageBuffer),
		Disconnects: make(chan Disconnected, messageBuffer),
	}
}

// Insert promotes a handshaken connection to a registered frontend: it
// sends the handshake ack and, only if that write succeeds, adds the
// connection to the map and starts its read loop (spec.md §4.2
// "insert(name, stream)").
func (r *Registry) Insert(name string, conn net.Conn) error {
	c := newConnection(r.log, name, conn)
	if err := c.write(wire.NewCoreEvent(nil, wire.CoreAction{Kind: "SignalSuccessHandshake", HandshakeName: name})); err != nil {
		conn.Close()
		return err
	}
	r.conns[name] = c
	go c.readLoop(r.Messages, r.Disconnects)
	return nil
}

// Write serializes event and writes it to the named frontend
// (spec.md §4.2 "write(name, event)").
func (r *Registry) Write(name string, event wire.CoreEvent) error {
	c, ok := r.conns[name]
	if !ok {
		return apperrors.New(apperrors.ClassTransport, "Error writing to frontend",
			fmt.Errorf("%w: frontend %s not registered", apperrors.ErrItemNotFound, name))
	}
	if err := c.write(event); err != nil {
		return apperrors.New(apperrors.ClassTransport, "Error writing to frontend", err)
	}
	return nil
}

// Broadcast writes event to every registered frontend. A write failure
// on one connection does not stop the others; failures are collected
// and returned together (spec.md §4.2 "broadcast(event)").
func (r *Registry) Broadcast(event wire.CoreEvent) []error {
	var errs []error
	for name, c := range r.conns {
		if err := c.write(event); err != nil {
			errs = append(errs, fmt.Errorf("broadcast to %s: %w", name, err))
		}
	}
	return errs
}

// Remove drops name from the registry and closes its stream. Called by
// the Event Loop when a Disconnected event is observed
// (spec.md §3 "garbage-collected on the next loop iteration").
func (r *Registry) Remove(name string) {
	c, ok := r.conns[name]
	if !ok {
		return
	}
	c.conn.Close()
	delete(r.conns, name)
}

// Names returns the currently registered frontend names.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.conns))
	for name := range r.conns {
		out = append(out, name)
	}
	return out
}

// Len reports how many frontends are currently registered.
func (r *Registry) Len() int {
	return len(r.conns)
}
