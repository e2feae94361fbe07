package oscserver

import (
	"testing"

	"github.com/hypebeast/go-osc/osc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schollz/gridlive/internal/scheduler"
)

func newTestServer() (*Server, *[]scheduler.Message) {
	var received []scheduler.Message
	s := New("127.0.0.1:0", func(m scheduler.Message) {
		received = append(received, m)
	})
	return s, &received
}

func TestHandleSetTempoForwardsTempo(t *testing.T) {
	s, received := newTestServer()
	msg := osc.NewMessage("/tempo")
	msg.Append(float32(128.5))

	s.handleSetTempo(msg)

	require.Len(t, *received, 1)
	assert.Equal(t, scheduler.MsgSetTempo, (*received)[0].Kind)
	assert.InDelta(t, 128.5, (*received)[0].Tempo, 0.001)
}

func TestHandleSetTempoIgnoresMissingArgument(t *testing.T) {
	s, received := newTestServer()
	s.handleSetTempo(osc.NewMessage("/tempo"))
	assert.Empty(t, *received)
}

func TestHandleTransportStartAndStop(t *testing.T) {
	s, received := newTestServer()
	s.handleTransportStart(osc.NewMessage("/transport/start"))
	s.handleTransportStop(osc.NewMessage("/transport/stop"))

	require.Len(t, *received, 2)
	assert.Equal(t, scheduler.MsgTransportStart, (*received)[0].Kind)
	assert.Equal(t, scheduler.MsgTransportStop, (*received)[1].Kind)
}

func TestHandleEnableFramesForwardsLineAndFrame(t *testing.T) {
	s, received := newTestServer()
	msg := osc.NewMessage("/frame/enable")
	msg.Append(int32(2))
	msg.Append(int32(5))

	s.handleEnableFrames(msg)

	require.Len(t, *received, 1)
	assert.Equal(t, scheduler.MsgEnableFrames, (*received)[0].Kind)
	assert.Equal(t, 2, (*received)[0].Line)
	assert.Equal(t, 5, (*received)[0].Frame)
}

func TestHandleSetFrameRepetitionsRequiresThreeArgs(t *testing.T) {
	s, received := newTestServer()
	msg := osc.NewMessage("/frame/repetitions")
	msg.Append(int32(0))
	msg.Append(int32(1))

	s.handleSetFrameRepetitions(msg) // missing count
	assert.Empty(t, *received)

	msg.Append(int32(4))
	s.handleSetFrameRepetitions(msg)
	require.Len(t, *received, 1)
	assert.Equal(t, 4, (*received)[0].Repetitions)
}

func TestHandleSetLineLengthAndSpeed(t *testing.T) {
	s, received := newTestServer()

	lengthMsg := osc.NewMessage("/line/length")
	lengthMsg.Append(int32(1))
	lengthMsg.Append(float32(8.0))
	s.handleSetLineLength(lengthMsg)

	speedMsg := osc.NewMessage("/line/speed")
	speedMsg.Append(int32(1))
	speedMsg.Append(float32(1.5))
	s.handleSetLineSpeedFactor(speedMsg)

	require.Len(t, *received, 2)
	assert.Equal(t, scheduler.MsgSetLineLength, (*received)[0].Kind)
	assert.InDelta(t, 8.0, (*received)[0].Length, 0.001)
	assert.Equal(t, scheduler.MsgSetLineSpeedFactor, (*received)[1].Kind)
	assert.InDelta(t, 1.5, (*received)[1].Speed, 0.001)
}
