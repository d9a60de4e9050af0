package frontend

import (
	"bufio"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projekt-utopia/uCore/internal/wire"
)

func TestReadHandshakeStripsWhitespaceAndAccepts(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	go func() { client.Write([]byte("  front A \n")) }()

	name, err := readHandshake(server)
	require.NoError(t, err)
	assert.Equal(t, "frontA", name)
}

func TestReadHandshakeRejectsAllWhitespace(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	go func() { client.Write([]byte("    \n")) }()

	_, err := readHandshake(server)
	assert.Error(t, err)
}

func TestReadHandshakeRejectsOverlong(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	go func() { client.Write([]byte(strings.Repeat("a", 65) + "\n")) }()

	_, err := readHandshake(server)
	assert.Error(t, err)
}

func TestRegistryInsertSendsHandshakeAck(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	r := New(zerolog.Nop(), 8)
	errCh := make(chan error, 1)
	go func() { errCh <- r.Insert("frontA", server) }()

	reader := bufio.NewReader(client)
	line, err := reader.ReadBytes('\n')
	require.NoError(t, err)

	var ev wire.CoreEvent
	require.NoError(t, json.Unmarshal(line, &ev))
	assert.Equal(t, "SignalSuccessHandshake", ev.Action.Kind)
	assert.Equal(t, "frontA", ev.Action.HandshakeName)
	require.NoError(t, <-errCh)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryWriteUnknownFrontendErrors(t *testing.T) {
	r := New(zerolog.Nop(), 8)
	err := r.Write("ghost", wire.NewCoreEvent(nil, wire.CoreAction{Kind: "ResponseGameLibrary"}))
	assert.Error(t, err)
}

func TestRegistryBroadcastIsolatesFailures(t *testing.T) {
	clientA, serverA := net.Pipe()
	defer clientA.Close()
	clientB, serverB := net.Pipe()

	r := New(zerolog.Nop(), 8)
	go func() { r.Insert("A", serverA) }()
	go func() { r.Insert("B", serverB) }()

	drain := func(c net.Conn) { bufio.NewReader(c).ReadBytes('\n') }
	drain(clientA)
	drain(clientB)

	// B's client end is closed, so writes to B now fail; A must still
	// receive its broadcast (spec.md §4.2 "an error on one does not stop
	// the others").
	clientB.Close()
	serverB.Close()

	done := make(chan struct{})
	var got wire.CoreEvent
	go func() {
		reader := bufio.NewReader(clientA)
		line, _ := reader.ReadBytes('\n')
		json.Unmarshal(line, &got)
		close(done)
	}()

	errs := r.Broadcast(wire.NewCoreEvent(nil, wire.CoreAction{Kind: "ResponseGameLibrary"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for A's broadcast")
	}
	assert.Equal(t, "ResponseGameLibrary", got.Action.Kind)
	assert.NotEmpty(t, errs)
}

func TestConnectionReadLoopForwardsMessageThenDisconnect(t *testing.T) {
	client, server := net.Pipe()

	r := New(zerolog.Nop(), 8)
	go func() { r.Insert("frontA", server) }()
	bufio.NewReader(client).ReadBytes('\n') // drain handshake ack

	uuid := "r1"
	go func() {
		client.Write([]byte(`{"version":"0.0.0","uuid":"r1","action":"GetGameLibrary"}` + "\n"))
		client.Close()
	}()

	select {
	case msg := <-r.Messages:
		assert.Equal(t, "frontA", msg.Name)
		require.NotNil(t, msg.Event.UUID)
		assert.Equal(t, uuid, *msg.Event.UUID)
		assert.Equal(t, "GetGameLibrary", msg.Event.Action.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inbound message")
	}

	select {
	case d := <-r.Disconnects:
		assert.Equal(t, "frontA", d.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for disconnect")
	}
}

// spec.md §7 transport policy / §8 "Message envelope with unknown action
// variant → decode error, reported per transport policy": a line that
// fails to decode must not be dropped silently — it gets an Error reply
// echoing its uuid, and the connection stays open for the next line.
func TestConnectionReadLoopRepliesErrorOnUnknownActionVariant(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	r := New(zerolog.Nop(), 8)
	go func() { r.Insert("frontA", server) }()
	bufio.NewReader(client).ReadBytes('\n') // drain handshake ack

	reader := bufio.NewReader(client)
	go func() {
		client.Write([]byte(`{"version":"0.0.0","uuid":"bad1","action":"NotARealAction"}` + "\n"))
	}()

	line, err := reader.ReadBytes('\n')
	require.NoError(t, err)
	var ev wire.CoreEvent
	require.NoError(t, json.Unmarshal(line, &ev))
	assert.Equal(t, "Error", ev.Action.Kind)
	require.NotNil(t, ev.UUID)
	assert.Equal(t, "bad1", *ev.UUID)
	assert.NotEmpty(t, ev.Action.ErrDetail)

	// the connection must still be usable afterward.
	go func() {
		client.Write([]byte(`{"version":"0.0.0","uuid":"ok1","action":"GetGameLibrary"}` + "\n"))
	}()
	select {
	case msg := <-r.Messages:
		assert.Equal(t, "GetGameLibrary", msg.Event.Action.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inbound message after decode error")
	}
}

// Malformed (non-JSON) lines get the same treatment, without a
// recoverable uuid.
func TestConnectionReadLoopRepliesErrorOnMalformedJSON(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	r := New(zerolog.Nop(), 8)
	go func() { r.Insert("frontA", server) }()
	bufio.NewReader(client).ReadBytes('\n') // drain handshake ack

	reader := bufio.NewReader(client)
	go func() { client.Write([]byte("not json at all\n")) }()

	line, err := reader.ReadBytes('\n')
	require.NoError(t, err)
	var ev wire.CoreEvent
	require.NoError(t, json.Unmarshal(line, &ev))
	assert.Equal(t, "Error", ev.Action.Kind)
	assert.Nil(t, ev.UUID)
}
