package signalling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tg2sip/circuitcore/circuit"
)

// Call.Enqueue/Dequeue is a plain FIFO.
func TestCallMessageFIFO(t *testing.T) {
	ctl := NewControl(circuit.NewStrategy(circuit.Increment, 0), nil)
	c := NewCall(ctl, true, false)

	c.Enqueue(NewMessage("setup", nil))
	c.Enqueue(NewMessage("info", map[string]string{"k": "v"}))

	first := c.Dequeue(true)
	require.NotNil(t, first)
	assert.Equal(t, "setup", first.Name)

	second := c.Dequeue(false)
	require.NotNil(t, second)
	assert.Equal(t, "info", second.Name)
	// remove=false must leave it at the head.
	again := c.Dequeue(true)
	require.NotNil(t, again)
	assert.Equal(t, "info", again.Name)

	assert.Nil(t, c.Dequeue(true), "queue must be empty after draining both messages")
}

// Call.GetEvent only ever exposes one in-flight event at a time, same
// discipline as circuit.Circuit.GetEvent.
func TestCallEventQueueSingleInFlight(t *testing.T) {
	ctl := NewControl(circuit.NewStrategy(circuit.Increment, 0), nil)
	c := NewCall(ctl, false, false)

	e1 := newEvent(Ringing, nil, c, ctl)
	e2 := newEvent(Answer, nil, c, ctl)
	c.Deliver(e1)
	c.Deliver(e2)

	got1 := c.GetEvent()
	require.NotNil(t, got1)
	assert.Equal(t, Ringing, got1.Type)

	assert.Nil(t, c.GetEvent(), "second event must wait for the first to terminate")

	got1.Terminate()
	got2 := c.GetEvent()
	require.NotNil(t, got2)
	assert.Equal(t, Answer, got2.Type)
}

// Release carries the textual reason through to the event it builds.
func TestCallReleaseCarriesReason(t *testing.T) {
	ctl := NewControl(circuit.NewStrategy(circuit.Increment, 0), nil)
	c := NewCall(ctl, true, false)

	ev := c.Release("normal clearing")
	require.NotNil(t, ev)
	assert.Equal(t, Release, ev.Type)
	assert.Equal(t, "normal clearing", ev.Reason)
	assert.Equal(t, c, ev.Call())
}

// Once Control is exiting and every call has drained, GetEvent emits
// exactly one terminal Disable event and never again.
func TestControlDisableDrainIsSingleShot(t *testing.T) {
	ctl := NewControl(circuit.NewStrategy(circuit.Increment, 0), nil)
	a := NewCall(ctl, true, false)
	b := NewCall(ctl, false, false)
	ctl.AddCall(a)
	ctl.AddCall(b)

	ctl.SetExiting(true)
	assert.Nil(t, ctl.GetEvent(), "Disable must not fire while calls remain registered")

	ctl.RemoveCall(a, true)
	assert.Nil(t, ctl.GetEvent(), "Disable must not fire until every call has drained")

	ctl.RemoveCall(b, true)
	ev := ctl.GetEvent()
	require.NotNil(t, ev)
	assert.Equal(t, Disable, ev.Type)

	assert.Nil(t, ctl.GetEvent(), "Disable must only be emitted once")
}

// ReserveCircuit releases whatever circuit the call previously held before
// taking a new one.
func TestControlReserveCircuitReleasesPrevious(t *testing.T) {
	g := circuit.NewGroup("test", 0, circuit.NewStrategy(circuit.Increment, 0), nil)
	g.Insert(circuit.New(0, "test", nil, nil), nil)
	g.Insert(circuit.New(1, "test", nil, nil), nil)

	ctl := NewControl(circuit.NewStrategy(circuit.Increment, 0), nil)
	ctl.Attach(g, nil)

	call := NewCall(ctl, true, false)
	first := ctl.ReserveCircuit(call, 0, "", false, false)
	require.NotNil(t, first)
	assert.Equal(t, first, call.ReservedCircuit())

	second := ctl.ReserveCircuit(call, 0, "", false, false)
	require.NotNil(t, second)
	assert.NotEqual(t, first.Code, second.Code)
	assert.Equal(t, circuit.Idle, first.Status(), "previous reservation must be released")
}

// Attach is a no-op when the group is unchanged, and pushes the controller's
// strategy down onto a freshly attached group.
func TestControlAttachPushesStrategy(t *testing.T) {
	strat := circuit.NewStrategy(circuit.Highest, circuit.OnlyEven)
	ctl := NewControl(strat, nil)
	g := circuit.NewGroup("test", 0, circuit.NewStrategy(circuit.Increment, 0), nil)

	ctl.Attach(g, nil)
	assert.Equal(t, strat, g.Strategy())

	var cleaned bool
	ctl.Attach(g, func(string) { cleaned = true })
	assert.False(t, cleaned, "re-attaching the same group must not run cleanup")
}
