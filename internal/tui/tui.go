// Package tui is the bubbletea front end: one status/grid view driving
// the Scheduler through its message bus only, never touching the Scene
// directly — the sharply reduced replacement for the teacher's dozen
// tracker-grid views, since the grid editor and source-language
// frontends are out of this repository's scope.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/schollz/gridlive/internal/relay"
	"github.com/schollz/gridlive/internal/scheduler"
	"github.com/schollz/gridlive/internal/storage"
)

// styles mirrors the teacher's getCommonStyles: one small style set
// reused across the single view this package renders.
type styles struct {
	selected lipgloss.Style
	normal   lipgloss.Style
	label    lipgloss.Style
	playback lipgloss.Style
	disabled lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		selected: lipgloss.NewStyle().Background(lipgloss.Color("7")).Foreground(lipgloss.Color("0")),
		normal:   lipgloss.NewStyle().Foreground(lipgloss.Color("15")),
		label:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		playback: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		disabled: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// tickMsg drives the 15fps snapshot refresh; playback itself advances on
// the Scheduler's own tick loop, owned by the caller (cmd/gridlive), not
// by this UI — the same separation the teacher keeps between
// WaveformTickMsg (redraw) and input.TickMsg (advance).
type tickMsg struct{}

func tick() tea.Cmd {
	return tea.Tick(time.Second/15, func(time.Time) tea.Msg { return tickMsg{} })
}

// snapshotMsg carries a freshly queried Snapshot back into Update.
type snapshotMsg struct {
	snap scheduler.Snapshot
}

// Model is the single top-level bubbletea model for a gridlive session.
type Model struct {
	sched      *scheduler.Scheduler
	relayClient *relay.Client
	saveFolder string

	snap    scheduler.Snapshot
	playing bool

	cursorLine  int
	cursorFrame int

	status string
	width  int
	height int
}

// New builds a Model driving sched, optionally mirroring mutations over
// relayClient, and autosaving to saveFolder.
func New(sched *scheduler.Scheduler, relayClient *relay.Client, saveFolder string) *Model {
	return &Model{sched: sched, relayClient: relayClient, saveFolder: saveFolder}
}

func (m *Model) Init() tea.Cmd {
	return tick()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.querySnapshot(), tick())

	case snapshotMsg:
		m.snap = msg.snap
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case " ":
		if m.playing {
			m.send(scheduler.Message{Kind: scheduler.MsgTransportStop, Timing: scheduler.AtImmediate()})
			m.status = "stopped"
		} else {
			m.send(scheduler.Message{Kind: scheduler.MsgTransportStart, Timing: scheduler.AtImmediate()})
			m.status = "playing"
		}
		m.playing = !m.playing

	case "up", "k":
		if m.cursorLine > 0 {
			m.cursorLine--
		}

	case "down", "j":
		if m.cursorLine < len(m.snap.Scene.Lines)-1 {
			m.cursorLine++
		}

	case "left", "h":
		if m.cursorFrame > 0 {
			m.cursorFrame--
		}

	case "right", "l":
		m.cursorFrame++

	case "e":
		m.send(scheduler.Message{
			Kind: scheduler.MsgEnableFrames, Line: m.cursorLine, Indices: []int{m.cursorFrame},
			Timing: scheduler.AtNextBeat(),
		})

	case "d":
		m.send(scheduler.Message{
			Kind: scheduler.MsgDisableFrames, Line: m.cursorLine, Indices: []int{m.cursorFrame},
			Timing: scheduler.AtNextBeat(),
		})

	case "+", "=":
		m.send(scheduler.Message{Kind: scheduler.MsgSetTempo, Tempo: m.snap.TempoBPM + 1, Timing: scheduler.AtImmediate()})

	case "-":
		m.send(scheduler.Message{Kind: scheduler.MsgSetTempo, Tempo: m.snap.TempoBPM - 1, Timing: scheduler.AtImmediate()})

	case "ctrl+s":
		m.saveNow()
	}
	return m, nil
}

// send forwards a mutation to the Scheduler and, if it's relay-worthy,
// mirrors it to any configured relay peer — the caller-driven forwarding
// decision documented in relay's design notes.
func (m *Model) send(msg scheduler.Message) {
	m.sched.Send(msg)
	if m.relayClient != nil {
		m.relayClient.Forward(msg)
	}
}

func (m *Model) querySnapshot() tea.Cmd {
	return func() tea.Msg {
		reply := make(chan any, 1)
		m.sched.Send(scheduler.Message{Kind: scheduler.MsgGetSnapshot, Timing: scheduler.AtImmediate(), Reply: reply})

		select {
		case v := <-reply:
			if snap, ok := v.(scheduler.Snapshot); ok {
				return snapshotMsg{snap: snap}
			}
		case <-time.After(200 * time.Millisecond):
		}
		return nil
	}
}

func (m *Model) saveNow() {
	if m.saveFolder == "" {
		return
	}
	doc := storage.Document{
		Scene:       &m.snap.Scene,
		TempoBPM:    m.snap.TempoBPM,
		DriftMicros: m.snap.DriftMicros,
	}
	if err := storage.Save(doc, m.saveFolder); err != nil {
		m.status = fmt.Sprintf("save failed: %v", err)
		return
	}
	m.status = "saved"
}

func (m *Model) View() string {
	st := defaultStyles()
	var b strings.Builder

	header := fmt.Sprintf("gridlive  tempo=%.1f  beat=%.2f  %s", m.snap.TempoBPM, m.snap.BeatPos, m.transportLabel())
	b.WriteString(st.label.Render(header))
	b.WriteString("\n\n")

	for lineIdx, line := range m.snap.Scene.Lines {
		b.WriteString(m.renderLine(st, lineIdx, line))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(st.label.Render("space: play/stop  hjkl/arrows: move  e/d: enable/disable frame  +/-: tempo  ctrl+s: save  q: quit"))
	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(st.label.Render(m.status))
	}

	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

func (m *Model) transportLabel() string {
	if m.playing {
		return "[playing]"
	}
	return "[stopped]"
}

func (m *Model) renderLine(st styles, lineIdx int, line *scheduler.Line) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-3d ", lineIdx)

	playheadFrame := -1
	for _, ps := range line.Playheads {
		playheadFrame = ps.CurrentFrame
	}

	for frameIdx, frame := range line.Frames {
		text := fmt.Sprintf(" %s ", frameLabel(frame))
		style := st.normal
		if !frame.Enabled {
			style = st.disabled
		}
		if frameIdx == playheadFrame {
			style = st.playback
		}
		if lineIdx == m.cursorLine && frameIdx == m.cursorFrame {
			style = st.selected
		}
		b.WriteString(style.Render(text))
	}
	return b.String()
}

func frameLabel(f *scheduler.Frame) string {
	if f.Name != "" {
		return f.Name
	}
	if !f.Enabled {
		return "--"
	}
	return "##"
}

// Run starts the bubbletea program and blocks until the user quits.
func Run(m *Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
