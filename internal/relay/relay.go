// Package relay implements the network-relay peer client: a length-
// prefixed TCP connection to a relay server that mirrors Scheduler
// mutation messages between performance instances and carries Clock
// tempo/beat state, so relay degrades the same way a LoopbackPeerGroup
// does when no server is reachable.
package relay

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/schollz/gridlive/internal/clock"
	"github.com/schollz/gridlive/internal/scheduler"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EnvelopeKind enumerates the relay wire protocol's message variants.
type EnvelopeKind string

const (
	EnvelopeRegister   EnvelopeKind = "register"
	EnvelopeRegistered EnvelopeKind = "registered"
	EnvelopeState      EnvelopeKind = "state_update"
	EnvelopeBroadcast  EnvelopeKind = "broadcast"
	EnvelopePing       EnvelopeKind = "ping"
	EnvelopePong       EnvelopeKind = "pong"
	EnvelopeError      EnvelopeKind = "error"
)

// Envelope is the single frame type exchanged with a relay server:
// instance registration, mutation mirroring, and clock state, all in one
// sum type rather than the original's separate update/broadcast structs.
type Envelope struct {
	Kind        EnvelopeKind
	Instance    string
	Message     *scheduler.Message `json:",omitempty"`
	ClockState  *clock.State       `json:",omitempty"`
	Text        string             `json:",omitempty"`
	TimestampMs int64
}

// Client connects to a relay server and implements clock.PeerGroup: it
// degrades to the last-known state when the connection is down, the
// same "unreachable peer group" rule a LoopbackPeerGroup follows.
type Client struct {
	instanceName string

	mu        sync.Mutex
	conn      net.Conn
	connected bool
	last      clock.State

	outbound chan Envelope
	inbound  chan scheduler.Message

	logf func(format string, args ...interface{})
}

// NewClient builds a disconnected Client; call Connect to dial.
func NewClient(instanceName string) *Client {
	return &Client{
		instanceName: instanceName,
		outbound:     make(chan Envelope, 256),
		inbound:      make(chan scheduler.Message, 256),
		logf:         log.Printf,
	}
}

// Connect dials addr, registers instanceName, and starts the reader and
// writer goroutines. A failed dial leaves the Client usable in its
// degraded (loopback) mode.
func (c *Client) Connect(addr string) error {
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("relay: dial %s: %w", addr, err)
	}

	if err := writeFrame(conn, Envelope{Kind: EnvelopeRegister, Instance: c.instanceName}); err != nil {
		conn.Close()
		return fmt.Errorf("relay: register: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readLoop(conn)
	go c.writeLoop(conn)
	return nil
}

// Connected reports whether the relay connection is currently live.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) readLoop(conn net.Conn) {
	for {
		env, err := readFrame(conn)
		if err != nil {
			if err != io.EOF {
				c.logf("relay: read error: %v", err)
			}
			c.mu.Lock()
			c.connected = false
			c.mu.Unlock()
			return
		}
		c.handleEnvelope(env)
	}
}

func (c *Client) writeLoop(conn net.Conn) {
	for env := range c.outbound {
		if err := writeFrame(conn, env); err != nil {
			c.logf("relay: write error: %v", err)
			c.mu.Lock()
			c.connected = false
			c.mu.Unlock()
			return
		}
	}
}

func (c *Client) handleEnvelope(env Envelope) {
	switch env.Kind {
	case EnvelopeState, EnvelopeBroadcast:
		if env.ClockState != nil {
			c.mu.Lock()
			c.last = *env.ClockState
			c.mu.Unlock()
		}
		if env.Message != nil {
			select {
			case c.inbound <- *env.Message:
			default:
				c.logf("relay: inbound queue full, dropping message from %s", env.Instance)
			}
		}
	case EnvelopeError:
		c.logf("relay: server error: %s", env.Text)
	}
}

// Capture implements clock.PeerGroup: it returns the most recent clock
// state, whether received from the relay or passed to Commit (connected
// or not), or the zero State before either has happened.
func (c *Client) Capture() (clock.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, nil
}

// Commit implements clock.PeerGroup: it records the state locally and,
// if connected, mirrors it to the relay for other instances to observe.
func (c *Client) Commit(s clock.State) error {
	c.mu.Lock()
	c.last = s
	connected := c.connected
	c.mu.Unlock()

	if !connected {
		return nil
	}
	select {
	case c.outbound <- Envelope{Kind: EnvelopeState, Instance: c.instanceName, ClockState: &s, TimestampMs: nowMillis()}:
	default:
		c.logf("relay: outbound queue full, dropping clock commit")
	}
	return nil
}

// Inbound returns the channel of Scheduler messages received from other
// instances via the relay, to be fed into Scheduler.Send by the caller.
func (c *Client) Inbound() <-chan scheduler.Message { return c.inbound }

// Forward mirrors a locally-applied mutation message to the relay, if
// both the connection is live and the message kind is relay-worthy.
func (c *Client) Forward(m scheduler.Message) {
	if !ShouldRelay(m.Kind) {
		return
	}
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()
	if !connected {
		return
	}
	cp := m
	cp.Reply = nil // not serializable, and meaningless to a remote instance
	select {
	case c.outbound <- Envelope{Kind: EnvelopeState, Instance: c.instanceName, Message: &cp, TimestampMs: nowMillis()}:
	default:
		c.logf("relay: outbound queue full, dropping message kind %d", m.Kind)
	}
}

// Close shuts down the connection and both goroutines.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	close(c.outbound)
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// ShouldRelay reports whether a mutation of this kind should be mirrored
// to other instances: scene mutations are, transport/tempo/device/query
// messages are local-only, mirroring the original relay client's
// should_relay partition of scene-structure changes from local state.
func ShouldRelay(kind scheduler.MessageKind) bool {
	switch kind {
	case scheduler.MsgEnableFrames, scheduler.MsgDisableFrames, scheduler.MsgUploadScript,
		scheduler.MsgSetFrameName, scheduler.MsgSetScriptLanguage, scheduler.MsgSetFrameRepetitions,
		scheduler.MsgInsertFrame, scheduler.MsgRemoveFrame, scheduler.MsgUpdateLineFrames,
		scheduler.MsgAddLine, scheduler.MsgRemoveLine, scheduler.MsgSetLine,
		scheduler.MsgSetLineStartFrame, scheduler.MsgSetLineEndFrame, scheduler.MsgSetLineLength,
		scheduler.MsgSetLineSpeedFactor, scheduler.MsgSetSceneLength,
		scheduler.MsgDuplicateFrameRange, scheduler.MsgRemoveFramesMultiLine, scheduler.MsgInsertDuplicatedBlocks:
		return true
	default:
		return false
	}
}

func writeFrame(w io.Writer, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func readFrame(r io.Reader) (Envelope, error) {
	var env Envelope
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return env, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return env, err
	}
	err := json.Unmarshal(data, &env)
	return env, err
}

func nowMillis() int64 { return time.Now().UnixMilli() }
