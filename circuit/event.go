package circuit

import uuid "github.com/satori/go.uuid"

// EventType tags the kind of notification a CircuitEvent carries. The
// concrete set is driver-defined; these are the vocabulary a driver is
// expected to emit.
type EventType string

const (
	EventDtmf       EventType = "dtmf"
	EventPulseDigit EventType = "pulse-digit"
	EventPulseStart EventType = "pulse-start"
	EventAlarm      EventType = "alarm"
	EventNoAlarm    EventType = "no-alarm"
	EventRingBegin  EventType = "ring-begin"
	EventRingEnd    EventType = "ring-end"
	EventPolarity   EventType = "polarity"
	EventOnHook     EventType = "on-hook"
	EventOffHook    EventType = "off-hook"
	EventFlash      EventType = "flash"
	EventWink       EventType = "wink"
	EventStartLine  EventType = "start-line"
	EventTimeout    EventType = "timeout"
)

// Event is a typed, named, parameterized notification originating at a
// Circuit. It owns a strong reference to the circuit it came from so the
// circuit cannot be freed out from under an in-flight event; Terminate
// must be called exactly once by whoever last holds the event so the
// circuit's "last event" slot is freed for the next delivery.
type Event struct {
	ID     string
	Type   EventType
	Name   string
	Params map[string]string

	circuit *Circuit
}

// newEvent is used internally by Circuit.EnqueueEvent.
func newEvent(c *Circuit, typ EventType, name string, params map[string]string) *Event {
	if params == nil {
		params = map[string]string{}
	}
	id, _ := uuid.NewV4()
	return &Event{
		ID:      id.String(),
		Type:    typ,
		Name:    name,
		Params:  params,
		circuit: c,
	}
}

// Circuit returns the circuit this event originated from.
func (e *Event) Circuit() *Circuit { return e.circuit }

// Terminate notifies the originating circuit that this event has been fully
// consumed. Safe to call more than once; only the first call has an effect.
func (e *Event) Terminate() {
	if e == nil || e.circuit == nil {
		return
	}
	e.circuit.eventTerminated(e)
}
