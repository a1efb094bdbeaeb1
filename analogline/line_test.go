package analogline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tg2sip/circuitcore/circuit"
)

type noopDriver struct{}

func (noopDriver) ApplyStatus(*circuit.Circuit, circuit.Status, bool) bool { return true }
func (noopDriver) SendEvent(*circuit.Circuit, circuit.EventType, map[string]string) bool {
	return false
}

func newTestLine(t *testing.T, g *Group, code uint32, typ Type) *AnalogLine {
	t.Helper()
	require.True(t, g.Insert(circuit.New(code, typ.String(), noopDriver{}, nil), nil))
	l := New(typ, g, code, DefaultOptions(), nil)
	require.True(t, l.Valid())
	return l
}

// State changes are forward-only, with a reset to Idle always allowed.
func TestLineChangeStateForwardOnly(t *testing.T) {
	g := NewOwningGroup(FXO, "g1", false, 0, circuit.NewStrategy(circuit.Increment, 0), nil)
	l := newTestLine(t, g, 0, FXO)

	require.True(t, l.ChangeState(Dialing, false))
	require.True(t, l.ChangeState(Ringing, false))

	assert.False(t, l.ChangeState(Dialing, false), "must not move backward from Ringing to Dialing")
	assert.Equal(t, Ringing, l.State())

	assert.True(t, l.ChangeState(Idle, false), "a reset to Idle is always permitted")
	assert.Equal(t, Idle, l.State())

	assert.True(t, l.ChangeState(Dialing, false), "after reset, forward progress is possible again")
}

// OutOfService is only entered/left via Enable, never the ordinary table.
func TestLineChangeStateRejectsOutOfService(t *testing.T) {
	g := NewOwningGroup(FXO, "g1", false, 0, circuit.NewStrategy(circuit.Increment, 0), nil)
	l := newTestLine(t, g, 0, FXO)

	assert.False(t, l.ChangeState(OutOfService, false))
	assert.Equal(t, Idle, l.State())

	require.True(t, l.Enable(false, false, false))
	assert.Equal(t, OutOfService, l.State())
	assert.False(t, l.ChangeState(Dialing, false), "no ordinary transition is permitted out of OutOfService")

	require.True(t, l.Enable(true, false, false))
	assert.Equal(t, Idle, l.State())
}

// SetPeer is symmetric — linking or unlinking one side updates the other.
func TestLineSetPeerSymmetric(t *testing.T) {
	g := NewOwningGroup(FXO, "g1", false, 0, circuit.NewStrategy(circuit.Increment, 0), nil)
	a := newTestLine(t, g, 0, FXO)
	b := newTestLine(t, g, 1, FXO)

	require.True(t, a.SetPeer(b, true))
	assert.Equal(t, b, a.Peer())
	assert.Equal(t, a, b.Peer())

	require.True(t, a.SetPeer(nil, true))
	assert.Nil(t, a.Peer())
	assert.Nil(t, b.Peer(), "unlinking a must also clear b's back-reference")
}

func TestLineSetPeerRejectsSelf(t *testing.T) {
	g := NewOwningGroup(FXO, "g1", false, 0, circuit.NewStrategy(circuit.Increment, 0), nil)
	a := newTestLine(t, g, 0, FXO)
	assert.False(t, a.SetPeer(a, true))
}

// A re-linked peer drops its old partner symmetrically.
func TestLineSetPeerReplacesOldPeer(t *testing.T) {
	g := NewOwningGroup(FXO, "g1", false, 0, circuit.NewStrategy(circuit.Increment, 0), nil)
	a := newTestLine(t, g, 0, FXO)
	b := newTestLine(t, g, 1, FXO)
	c := newTestLine(t, g, 2, FXO)

	require.True(t, a.SetPeer(b, true))
	require.True(t, a.SetPeer(c, true))

	assert.Equal(t, c, a.Peer())
	assert.Nil(t, b.Peer(), "b must be unlinked once a re-peers with c")
	assert.Equal(t, a, c.Peer())
}

// A line's GetMonitorEvent (used by a monitor group's GetEvent) fairly
// alternates between the two sides of a peered pair instead of always
// favoring one line.
func TestMonitorGetEventAlternatesSides(t *testing.T) {
	fxo := NewOwningGroup(FXO, "fxo", false, 0, circuit.NewStrategy(circuit.Increment, 0), nil)
	a := newTestLine(t, fxo, 0, FXO)

	mon := NewMonitorGroup("mon", fxo, 0, circuit.NewStrategy(circuit.Increment, 0), nil)
	require.True(t, mon.Insert(circuit.New(1, "monitor", noopDriver{}, nil), nil))
	b := New(Monitor, mon, 1, DefaultOptions(), nil)
	require.True(t, b.Valid())

	require.True(t, a.SetPeer(b, true))

	a.Circuit().EnqueueEvent(circuit.EventOffHook, "off-hook", nil)
	b.Circuit().EnqueueEvent(circuit.EventOnHook, "on-hook", nil)

	now := time.Now()
	first := a.GetMonitorEvent(now)
	require.NotNil(t, first)
	first.Circuit.Terminate()

	second := a.GetMonitorEvent(now)
	require.NotNil(t, second)

	assert.NotEqual(t, first.Line, second.Line, "the two polls must observe different sides of the pair")
}

// checkTimeouts forces CallEnded once a per-state timer expires.
func TestLineCheckTimeoutsForcesCallEnded(t *testing.T) {
	g := NewOwningGroup(FXO, "g1", false, 0, circuit.NewStrategy(circuit.Increment, 0), nil)
	opts := DefaultOptions()
	opts.RingTimeout = 10 * time.Millisecond
	require.True(t, g.Insert(circuit.New(0, "fxo", noopDriver{}, nil), nil))
	l := New(FXO, g, 0, opts, nil)
	require.True(t, l.Valid())

	require.True(t, l.ChangeState(Ringing, false))

	l.GetEvent(time.Now().Add(20 * time.Millisecond))

	assert.Equal(t, CallEnded, l.State())
}
