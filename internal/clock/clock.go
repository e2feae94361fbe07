// Package clock implements the beat-accurate, network-synchronized musical
// timeline shared by every other core component.
package clock

import (
	"log"
	"math"
	"sync"
	"time"
)

// MinTempo is the lowest tempo Clock will accept; set_tempo clamps to it.
const MinTempo = 20.0

// State is a latched snapshot of session timing: tempo, quantum (beats per
// bar), phase, beat position, and the microsecond time the snapshot was
// taken at.
type State struct {
	Tempo      float64
	Quantum    float64
	Phase      float64
	Beat       float64
	Micros     int64
	DriftMicros int64
}

// PeerGroup abstracts the external network-clock peer group (e.g. an
// Ableton-Link-style session). Capture latches the shared peer state;
// Commit publishes local changes back to the group.
type PeerGroup interface {
	Capture() (State, error)
	Commit(State) error
}

// LoopbackPeerGroup is a PeerGroup of one: it just holds the last
// committed state. Used when no relay peer is configured, which is the
// "unreachable peer group degrades to a local-only clock" case — Capture
// never errors.
type LoopbackPeerGroup struct {
	mu    sync.Mutex
	state State
}

func NewLoopbackPeerGroup(initial State) *LoopbackPeerGroup {
	return &LoopbackPeerGroup{state: initial}
}

func (l *LoopbackPeerGroup) Capture() (State, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state, nil
}

func (l *LoopbackPeerGroup) Commit(s State) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = s
	return nil
}

// Clock is the single authoritative musical timeline. Reads are served
// from the last captured State; Capture/Commit define the snapshot
// boundary that keeps readers consistent in between.
type Clock struct {
	mu      sync.RWMutex
	peers   PeerGroup
	state   State
	nowFunc func() int64 // current wall time in micros; overridable for tests
}

// New creates a Clock backed by peers, defaulting to a zero (uninitialized)
// tempo until SetTempo or Capture latches a real one.
func New(peers PeerGroup) *Clock {
	if peers == nil {
		peers = NewLoopbackPeerGroup(State{Quantum: 4})
	}
	return &Clock{
		peers:   peers,
		nowFunc: func() int64 { return time.Now().UnixMicro() },
	}
}

// SetNowFunc overrides the wall-clock source; used by tests to drive the
// Clock deterministically.
func (c *Clock) SetNowFunc(f func() int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nowFunc = f
}

func (c *Clock) now() int64 {
	if c.nowFunc != nil {
		return c.nowFunc()
	}
	return time.Now().UnixMicro()
}

// Capture latches the shared network clock into the local session state.
// Subsequent reads are consistent with this snapshot until the next
// Capture. An unreachable peer group degrades to the last known local
// state; no error is surfaced to callers.
func (c *Clock) Capture() {
	s, err := c.peers.Capture()
	if err != nil {
		log.Printf("clock: peer group unreachable, staying on local state: %v", err)
		return
	}
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Commit publishes local session changes (tempo, start/stop) back to the
// network peer group. A peer-group error is logged, never returned —
// commit never blocks the caller on network trouble.
func (c *Clock) Commit() {
	c.mu.RLock()
	s := c.state
	c.mu.RUnlock()
	if err := c.peers.Commit(s); err != nil {
		log.Printf("clock: commit to peer group failed: %v", err)
	}
}

// SetTempo clamps bpm to at least MinTempo, stamps the change with the
// current network time, and commits it.
func (c *Clock) SetTempo(bpm float64) {
	if bpm < MinTempo {
		bpm = MinTempo
	}
	c.mu.Lock()
	c.state.Tempo = bpm
	c.state.Micros = c.now()
	c.mu.Unlock()
	c.Commit()
}

func (c *Clock) Micros() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Micros
}

func (c *Clock) Beat() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Beat
}

func (c *Clock) Tempo() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Tempo
}

func (c *Clock) Quantum() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state.Quantum == 0 {
		return 4
	}
	return c.state.Quantum
}

// BeatsToMicros converts a beat count into an absolute microsecond
// duration: round(b / tempo * 60_000_000). Tempo 0 (not yet initialized)
// returns 0.
func (c *Clock) BeatsToMicros(b float64) uint64 {
	t := c.Tempo()
	if t == 0 {
		return 0
	}
	v := math.Round(b / t * 60_000_000.0)
	if v < 0 {
		return 0
	}
	return uint64(v)
}

// MicrosToBeats is the inverse of BeatsToMicros; tempo 0 returns 0.
func (c *Clock) MicrosToBeats(m uint64) float64 {
	t := c.Tempo()
	if t == 0 {
		return 0
	}
	return float64(m) / 60_000_000.0 * t
}

// DateAtBeat returns the absolute microsecond time at which beat b occurs,
// relative to the clock's own micros origin (Micros() + offset for b
// beats from the current Beat).
func (c *Clock) DateAtBeat(b float64) int64 {
	c.mu.RLock()
	cur := c.state
	c.mu.RUnlock()
	if cur.Tempo == 0 {
		return 0
	}
	deltaBeats := b - cur.Beat
	deltaMicros := int64(math.Round(deltaBeats / cur.Tempo * 60_000_000.0))
	return cur.Micros + deltaMicros
}

// BeatAtDate is the inverse of DateAtBeat.
func (c *Clock) BeatAtDate(t int64) float64 {
	c.mu.RLock()
	cur := c.state
	c.mu.RUnlock()
	if cur.Tempo == 0 {
		return 0
	}
	deltaMicros := t - cur.Micros
	return cur.Beat + float64(deltaMicros)/60_000_000.0*cur.Tempo
}

// NextPhaseResetDate returns the next absolute microsecond time at which
// phase wraps to zero, used to synchronize loop starts across peers.
func (c *Clock) NextPhaseResetDate() int64 {
	c.mu.RLock()
	cur := c.state
	c.mu.RUnlock()
	if cur.Tempo == 0 || cur.Quantum == 0 {
		return cur.Micros
	}
	beatsUntilReset := cur.Quantum - math.Mod(cur.Phase, cur.Quantum)
	if beatsUntilReset <= 0 {
		beatsUntilReset += cur.Quantum
	}
	deltaMicros := int64(math.Round(beatsUntilReset / cur.Tempo * 60_000_000.0))
	return cur.Micros + deltaMicros
}

// Advance moves the latched state forward to the given absolute
// microsecond time, recomputing Beat and Phase from Tempo. Callers
// (typically the Scheduler, once per tick) use this instead of Capture
// when driving a local-only session.
func (c *Clock) Advance(toMicros int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Tempo == 0 {
		c.state.Micros = toMicros
		return
	}
	deltaMicros := toMicros - c.state.Micros
	deltaBeats := float64(deltaMicros) / 60_000_000.0 * c.state.Tempo
	c.state.Beat += deltaBeats
	if c.state.Quantum > 0 {
		c.state.Phase = math.Mod(c.state.Beat, c.state.Quantum)
		if c.state.Phase < 0 {
			c.state.Phase += c.state.Quantum
		}
	}
	c.state.Micros = toMicros
}

// NowMicros returns the clock's wall-time source, independent of the
// latched musical state; the Scheduler uses this to decide when to call
// Advance.
func (c *Clock) NowMicros() int64 {
	return c.now()
}

// State returns a copy of the currently latched state.
func (c *Clock) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}
