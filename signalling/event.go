package signalling

import (
	"fmt"

	uuid "github.com/satori/go.uuid"
)

// Type tags a SignallingEvent.
type Type int

const (
	Unknown Type = iota
	Generic
	NewCall
	Accept
	Connect
	Complete
	Progress
	Ringing
	Answer
	Transfer
	Suspend
	Resume
	Release
	Info
	Message
	Facility
	Enable
	Disable
	Reset
	Verify
)

func (t Type) String() string {
	switch t {
	case Unknown:
		return "Unknown"
	case Generic:
		return "Generic"
	case NewCall:
		return "NewCall"
	case Accept:
		return "Accept"
	case Connect:
		return "Connect"
	case Complete:
		return "Complete"
	case Progress:
		return "Progress"
	case Ringing:
		return "Ringing"
	case Answer:
		return "Answer"
	case Transfer:
		return "Transfer"
	case Suspend:
		return "Suspend"
	case Resume:
		return "Resume"
	case Release:
		return "Release"
	case Info:
		return "Info"
	case Message:
		return "Message"
	case Facility:
		return "Facility"
	case Enable:
		return "Enable"
	case Disable:
		return "Disable"
	case Reset:
		return "Reset"
	case Verify:
		return "Verify"
	default:
		return fmt.Sprintf("Unknown(%d)", int(t))
	}
}

// Event is a value object carrying references to the call and controller it
// originated from.
type Event struct {
	ID   string
	Type Type

	// Reason carries a textual release reason on a Release event. There is
	// no upstream precedent for this field; it is an invented convenience
	// so callers have a place to explain why a call ended. Empty for every
	// other type.
	Reason string

	message    *Message
	call       *Call
	controller *Control
}

// newEvent builds an event holding msg, call and ctrl as given. It does not
// check whether call is still registered with a controller.
func newEvent(typ Type, msg *Message, call *Call, ctrl *Control) *Event {
	return &Event{
		ID:         uuid.NewV4().String(),
		Type:       typ,
		message:    msg,
		call:       call,
		controller: ctrl,
	}
}

func (e *Event) Message() *Message { return e.message }
func (e *Event) Call() *Call       { return e.call }
func (e *Event) Controller() *Control {
	return e.controller
}

// Terminate notifies the attached call (if any) that this event has been
// consumed, so the call may deliver its next queued event.
func (e *Event) Terminate() {
	if e == nil || e.call == nil {
		return
	}
	e.call.eventTerminated(e)
}
