package oscdevice

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/hypebeast/go-osc/osc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schollz/gridlive/internal/vm"
)

func listenUDP(t *testing.T) (*net.UDPConn, int) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, conn.LocalAddr().(*net.UDPAddr).Port
}

func readOSCMessage(t *testing.T, conn *net.UDPConn) *osc.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 65536)
	n, _, err := conn.ReadFromUDP(buf)
	require.NoError(t, err)
	pkt, err := osc.ParsePacket(string(buf[:n]))
	require.NoError(t, err)
	msg, ok := pkt.(*osc.Message)
	require.True(t, ok)
	return msg
}

func TestDispatchOSCSendsPositionalArgsToDeviceAddress(t *testing.T) {
	conn, port := listenUDP(t)

	s := NewSink(nil)
	s.Dispatch(vm.Resolved{
		Kind:    vm.EventOSC,
		Device:  "127.0.0.1:" + portString(port),
		Address: "/instrument",
		Args:    []vm.Value{vm.Integer(3), vm.Float(0.5)},
	})

	msg := readOSCMessage(t, conn)
	assert.Equal(t, "/instrument", msg.Address)
	require.Len(t, msg.Arguments, 2)
}

func TestDispatchDirtSendsNamedKeyValuePairs(t *testing.T) {
	conn, port := listenUDP(t)

	s := NewSink(nil)
	s.Dispatch(vm.Resolved{
		Kind:   vm.EventDirt,
		Device: "127.0.0.1:" + portString(port),
		Keys:   []string{"s", "voice"},
		Args:   []vm.Value{vm.String("bd"), vm.String("s")},
	})

	msg := readOSCMessage(t, conn)
	assert.Equal(t, DirtAddress, msg.Address)
	require.Len(t, msg.Arguments, 4)
	assert.Equal(t, "s", msg.Arguments[0])
	assert.Equal(t, "bd", msg.Arguments[1])
}

func TestDispatchDirtHonorsExplicitAddress(t *testing.T) {
	conn, port := listenUDP(t)

	s := NewSink(nil)
	s.Dispatch(vm.Resolved{
		Kind:    vm.EventDirt,
		Device:  "127.0.0.1:" + portString(port),
		Address: "/stop",
		Keys:    []string{"voice"},
		Args:    []vm.Value{vm.String("s1")},
	})

	msg := readOSCMessage(t, conn)
	assert.Equal(t, "/stop", msg.Address)
}

func TestDispatchIgnoresNonOSCNonDirtKinds(t *testing.T) {
	s := NewSink(nil)
	// Must not panic and must not attempt to resolve a device for an
	// unrelated kind.
	s.Dispatch(vm.Resolved{Kind: vm.EventMIDINoteOn, Device: "nonexistent"})
}

func TestClientResolutionFallsBackToResolveFunc(t *testing.T) {
	conn, port := listenUDP(t)

	s := NewSink(func(device string) (string, int) {
		if device == "main" {
			return "127.0.0.1", port
		}
		return "", 0
	})
	s.Dispatch(vm.Resolved{Kind: vm.EventOSC, Device: "main", Address: "/ping"})

	msg := readOSCMessage(t, conn)
	assert.Equal(t, "/ping", msg.Address)
}

func TestUnknownDeviceDoesNotPanic(t *testing.T) {
	s := NewSink(nil)
	s.Dispatch(vm.Resolved{Kind: vm.EventOSC, Device: "unresolvable", Address: "/x"})
}

func portString(p int) string {
	return strconv.Itoa(p)
}
