package signalling

import (
	"sync"

	uuid "github.com/satori/go.uuid"

	"github.com/tg2sip/circuitcore/circuit"
)

// Call is an in-flight signalling session tracked by a Control. It owns an
// inbound message queue and tracks the one event currently delivered to an
// external consumer.
type Call struct {
	ID         string
	Outgoing   bool
	SignalOnly bool

	mu         sync.Mutex
	controller *Control
	messages   []*Message
	events     []*Event
	lastEvent  *Event
	reserved   *circuit.Circuit
}

// NewCall creates a call bound to ctrl. It does not add the call to ctrl's
// call list: protocol layers create calls, register them with
// Control.AddCall, and Control.RemoveCall de-registers them on termination.
func NewCall(ctrl *Control, outgoing, signalOnly bool) *Call {
	return &Call{
		ID:         uuid.NewV4().String(),
		Outgoing:   outgoing,
		SignalOnly: signalOnly,
		controller: ctrl,
	}
}

// Controller returns the owning controller, or nil once removed.
func (c *Call) Controller() *Control {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

// Enqueue appends msg to the inbound FIFO.
func (c *Call) Enqueue(msg *Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

// Dequeue returns the head message. When remove is true, it is also popped.
func (c *Call) Dequeue(remove bool) *Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return nil
	}
	msg := c.messages[0]
	if remove {
		c.messages = c.messages[1:]
	}
	return msg
}

// GetEvent returns the head of the call's event queue, provided no event is
// currently in flight: lastEvent tracks the one event currently owned by an
// external consumer, mirroring circuit.Circuit.GetEvent.
func (c *Call) GetEvent() *Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastEvent != nil || len(c.events) == 0 {
		return nil
	}
	ev := c.events[0]
	c.events = c.events[1:]
	c.lastEvent = ev
	return ev
}

// Deliver queues ev for this call. Protocol layers that raise circuit- or
// timer-driven events append them here; GetEvent hands them out one at a
// time, in order.
func (c *Call) Deliver(ev *Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

// ReservedCircuit returns the circuit currently reserved on this call's
// behalf, or nil.
func (c *Call) ReservedCircuit() *circuit.Circuit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reserved
}

// takeReservedCircuit clears and returns any circuit previously reserved on
// this call's behalf.
func (c *Call) takeReservedCircuit() *circuit.Circuit {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.reserved
	c.reserved = nil
	return prev
}

func (c *Call) setReservedCircuit(ci *circuit.Circuit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reserved = ci
}

func (c *Call) eventTerminated(e *Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastEvent == e {
		c.lastEvent = nil
	}
}

// Release builds and returns a Release event carrying reason. There is no
// upstream precedent for a textual release reason on a call; this is an
// added convenience so a caller can explain why a call ended without
// inventing its own side channel. The caller is responsible for delivering
// it through the owning Control.
func (c *Call) Release(reason string) *Event {
	ctrl := c.Controller()
	ev := newEvent(Release, nil, c, ctrl)
	ev.Reason = reason
	return ev
}

// Close drains the message queue and de-registers the call from its
// controller. It does not delete the call object itself — the controller
// already holds the authoritative reference and removes it from its own
// list separately.
func (c *Call) Close() {
	c.mu.Lock()
	c.messages = nil
	ctrl := c.controller
	c.controller = nil
	c.mu.Unlock()
	if ctrl != nil {
		ctrl.removeCallQuiet(c)
	}
}
