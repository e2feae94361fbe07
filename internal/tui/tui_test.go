package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schollz/gridlive/internal/modulation"
	"github.com/schollz/gridlive/internal/scheduler"
)

func newTestModel(t *testing.T) *Model {
	t.Helper()
	sched := scheduler.New(nil, modulation.NewBank(nil))
	m := New(sched, nil, "")
	m.snap = scheduler.Snapshot{
		Scene: scheduler.Scene{
			Lines: []*scheduler.Line{
				scheduler.NewLine(scheduler.NewFrame(1, nil), scheduler.NewFrame(1, nil)),
			},
		},
		TempoBPM: 120,
	}
	return m
}

func TestSpaceTogglesPlayingAndSendsTransportMessages(t *testing.T) {
	m := newTestModel(t)
	assert.False(t, m.playing)

	_, _ = m.handleKey(tea.KeyMsg{Type: tea.KeySpace})
	assert.True(t, m.playing)
	assert.Equal(t, "playing", m.status)

	_, _ = m.handleKey(tea.KeyMsg{Type: tea.KeySpace})
	assert.False(t, m.playing)
	assert.Equal(t, "stopped", m.status)
}

func TestCursorMovementStaysWithinLineBounds(t *testing.T) {
	m := newTestModel(t)
	_, _ = m.handleKey(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 0, m.cursorLine) // already at top

	_, _ = m.handleKey(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 0, m.cursorLine) // only one line exists
}

func TestTempoKeysRunWithoutPanicking(t *testing.T) {
	m := newTestModel(t)
	_, _ = m.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("+")})
	// Send is fire-and-forget into the scheduler's inbound queue; a
	// direct read-back isn't available without a tick, so this just
	// exercises the handler without panicking.
	_, _ = m.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("-")})
}

func TestFrameLabelReflectsEnabledAndName(t *testing.T) {
	f := scheduler.NewFrame(1, nil)
	assert.Equal(t, "##", frameLabel(f))

	f.Enabled = false
	assert.Equal(t, "--", frameLabel(f))

	f.Name = "kick"
	assert.Equal(t, "kick", frameLabel(f))
}

func TestTransportLabelReflectsPlayingState(t *testing.T) {
	m := newTestModel(t)
	assert.Equal(t, "[stopped]", m.transportLabel())
	m.playing = true
	assert.Equal(t, "[playing]", m.transportLabel())
}

func TestViewRendersWithoutPanicking(t *testing.T) {
	m := newTestModel(t)
	out := m.View()
	assert.Contains(t, out, "gridlive")
}

func TestQuerySnapshotTimesOutWithoutATickLoop(t *testing.T) {
	m := newTestModel(t)
	cmd := m.querySnapshot()
	require.NotNil(t, cmd)

	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()

	select {
	case msg := <-done:
		assert.Nil(t, msg) // no one is calling sched.Tick, so the reply never arrives
	case <-time.After(time.Second):
		t.Fatal("querySnapshot command did not return")
	}
}
