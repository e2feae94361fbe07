package relay

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schollz/gridlive/internal/clock"
	"github.com/schollz/gridlive/internal/scheduler"
)

func TestWriteFrameThenReadFrameRoundTrips(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	env := Envelope{
		Kind:       EnvelopeState,
		Instance:   "alpha",
		ClockState: &clock.State{Tempo: 120, Beat: 4.5},
	}

	go func() {
		_ = writeFrame(client, env)
	}()

	got, err := readFrame(server)
	require.NoError(t, err)
	assert.Equal(t, env.Kind, got.Kind)
	assert.Equal(t, env.Instance, got.Instance)
	require.NotNil(t, got.ClockState)
	assert.Equal(t, 120.0, got.ClockState.Tempo)
}

func TestShouldRelayDistinguishesSceneMutationsFromLocalMessages(t *testing.T) {
	assert.True(t, ShouldRelay(scheduler.MsgInsertFrame))
	assert.True(t, ShouldRelay(scheduler.MsgSetLineLength))
	assert.True(t, ShouldRelay(scheduler.MsgAddLine))

	assert.False(t, ShouldRelay(scheduler.MsgSetTempo))
	assert.False(t, ShouldRelay(scheduler.MsgTransportStart))
	assert.False(t, ShouldRelay(scheduler.MsgGetScene))
	assert.False(t, ShouldRelay(scheduler.MsgGetSnapshot))
	assert.False(t, ShouldRelay(scheduler.MsgGetClock))
	assert.False(t, ShouldRelay(scheduler.MsgGetScript))
}

func TestClientCaptureReturnsZeroStateBeforeAnyCommit(t *testing.T) {
	c := NewClient("alpha")
	s, err := c.Capture()
	require.NoError(t, err)
	assert.Equal(t, clock.State{}, s)
}

func TestClientCommitWithoutConnectionStillLatchesLocalState(t *testing.T) {
	c := NewClient("alpha")
	require.NoError(t, c.Commit(clock.State{Tempo: 128}))

	s, err := c.Capture()
	require.NoError(t, err)
	assert.Equal(t, 128.0, s.Tempo)
}

func TestClientForwardWhileDisconnectedQueuesNothing(t *testing.T) {
	c := NewClient("alpha")
	// Not connected: Forward must not panic or block even for a
	// relay-worthy kind.
	c.Forward(scheduler.Message{Kind: scheduler.MsgInsertFrame})
	assert.Empty(t, c.outbound)
}

func TestServerRoundTripRegistersAndBroadcastsState(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	serverDone := make(chan struct{})
	var registeredEnv Envelope
	go func() {
		defer close(serverDone)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		registeredEnv, _ = readFrame(conn)

		reply := Envelope{
			Kind:       EnvelopeBroadcast,
			Instance:   "server",
			ClockState: &clock.State{Tempo: 90},
		}
		_ = writeFrame(conn, reply)
	}()

	c := NewClient("alpha")
	require.NoError(t, c.Connect(ln.Addr().String()))
	defer c.Close()

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.last.Tempo == 90
	}, time.Second, 5*time.Millisecond)

	<-serverDone
	assert.Equal(t, EnvelopeRegister, registeredEnv.Kind)
	assert.Equal(t, "alpha", registeredEnv.Instance)
}
