package frontend

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog"

	"github.com/projekt-utopia/uCore/internal/wire"
)

// maxHandshakeBytes is the upper bound on the raw handshake payload
// before whitespace stripping (spec.md §4.1).
const maxHandshakeBytes = 64

// connection wraps one accepted socket stream after it has named itself
// (spec.md §4.2). Reads happen on a dedicated goroutine that feeds
// Registry.Messages; writes are issued inline by the Event Loop, except
// for the Error reply the read goroutine itself sends for a line it
// cannot decode.
type connection struct {
	name   string
	conn   net.Conn
	reader *bufio.Reader
	log    zerolog.Logger
}

// InboundMessage is one frontend-originating event, tagged with the name
// of the frontend that sent it (spec.md §4.2 "poll").
type InboundMessage struct {
	Name  string
	Event wire.FrontendEvent
}

// Disconnected reports that a frontend's stream yielded EOF or an
// unrecoverable read error; the Event Loop garbage-collects it on the
// next iteration (spec.md §3).
type Disconnected struct {
	Name string
	Err  error
}

// HandshakeResult is the outcome of reading a new connection's naming
// line (spec.md §4.1). It arrives on the Event Loop's internal-futures
// source, not the frontend-messages source, because a connection is not
// yet a frontend until this resolves.
type HandshakeResult struct {
	Conn net.Conn
	Name string
	Err  error
}

// readHandshake reads up to maxHandshakeBytes of UTF-8 terminated by a
// newline, strips all whitespace, and rejects an empty result
// (spec.md §4.1, §8 edge cases).
func readHandshake(conn net.Conn) (string, error) {
	reader := bufio.NewReaderSize(conn, maxHandshakeBytes+1)
	raw, err := reader.ReadString('\n')
	if err != nil && len(raw) == 0 {
		return "", fmt.Errorf("frontend: handshake read failed: %w", err)
	}
	if len(strings.TrimSuffix(raw, "\n")) > maxHandshakeBytes {
		return "", fmt.Errorf("frontend: handshake payload exceeds %d bytes", maxHandshakeBytes)
	}
	name := stripWhitespace(raw)
	if name == "" {
		return "", fmt.Errorf("frontend: empty handshake name")
	}
	return name, nil
}

func stripWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if !isSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}

// BeginHandshake spawns the handshake-read goroutine for a freshly
// accepted connection and reports the result on results.
func BeginHandshake(conn net.Conn, results chan<- HandshakeResult) {
	go func() {
		name, err := readHandshake(conn)
		if err != nil {
			conn.Close()
			results <- HandshakeResult{Conn: conn, Err: err}
			return
		}
		results <- HandshakeResult{Conn: conn, Name: name}
	}()
}

func newConnection(log zerolog.Logger, name string, conn net.Conn) *connection {
	return &connection{name: name, conn: conn, reader: bufio.NewReader(conn), log: log}
}

// write serializes ev as one newline-delimited JSON document
// (spec.md §9's recommended replacement for the original 255-byte
// fixed-chunk framing).
func (c *connection) write(ev wire.CoreEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("frontend: encode event for %s: %w", c.name, err)
	}
	data = append(data, '\n')
	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("frontend: write to %s: %w", c.name, err)
	}
	return nil
}

// readLoop decodes one newline-delimited FrontendEvent per line and
// forwards it to messages, tagged with the connection's name. A line
// that fails to decode — malformed JSON, or a structurally valid
// envelope whose action names an unrecognized variant — is logged and
// answered with an Error reply echoing whatever uuid can be recovered
// from the line, per spec.md §7's transport policy; the connection
// stays open and the loop continues. It exits (and reports Disconnected)
// only on EOF or an unrecoverable read error.
func (c *connection) readLoop(messages chan<- InboundMessage, disconnects chan<- Disconnected) {
	for {
		line, err := c.reader.ReadBytes('\n')
		if len(line) > 0 {
			var ev wire.FrontendEvent
			if jsonErr := json.Unmarshal(line, &ev); jsonErr == nil {
				messages <- InboundMessage{Name: c.name, Event: ev}
			} else {
				c.log.Error().Err(jsonErr).Str("frontend", c.name).Msg("decoding frontend message failed")
				reply := wire.NewCoreEvent(recoverUUID(line), wire.CoreAction{
					Kind:      "Error",
					ErrTag:    "Error decoding message",
					ErrDetail: jsonErr.Error(),
				})
				if writeErr := c.write(reply); writeErr != nil {
					c.log.Error().Err(writeErr).Str("frontend", c.name).Msg("replying to decode error failed")
				}
			}
		}
		if err != nil {
			disconnects <- Disconnected{Name: c.name, Err: err}
			return
		}
	}
}

// recoverUUID best-effort decodes just the uuid field of a line that
// failed to decode as a full FrontendEvent, so the Error reply can still
// echo the caller's correlation id (spec.md §7). Returns nil if even
// that much can't be recovered.
func recoverUUID(line []byte) *string {
	var partial struct {
		UUID *string `json:"uuid"`
	}
	if err := json.Unmarshal(line, &partial); err != nil {
		return nil
	}
	return partial.UUID
}
