package analogline

import (
	"fmt"

	"github.com/discoviking/fsm"
)

// State is the finite-state-machine state of an AnalogLine. Declared in
// call-progress order so State > State comparisons implement the
// forward-only invariant directly.
type State int

const (
	OutOfService State = iota
	Idle
	Dialing
	DialComplete
	Ringing
	Answered
	CallEnded
	OutOfOrder
)

func (s State) String() string {
	switch s {
	case OutOfService:
		return "out-of-service"
	case Idle:
		return "idle"
	case Dialing:
		return "dialing"
	case DialComplete:
		return "dial-complete"
	case Ringing:
		return "ringing"
	case Answered:
		return "answered"
	case CallEnded:
		return "call-ended"
	case OutOfOrder:
		return "out-of-order"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

func (s State) fsmState() fsm.State { return fsm.State(s.String()) }

// orderedStates excludes OutOfService: that state is only entered/left via
// Enable, never through the ordinary forward-only table.
var orderedStates = []State{Idle, Dialing, DialComplete, Ringing, Answered, CallEnded, OutOfOrder}

// changeTable is built once: from any ordinary state, Idle (reset) or any
// strictly-later state (forward-only) is reachable.
var changeTable = buildChangeTable()

func buildChangeTable() fsm.Table {
	t := fsm.Table{}
	for _, from := range orderedStates {
		for _, to := range orderedStates {
			if to == Idle || to > from {
				t[fsm.Key{State: from.fsmState(), Input: fsm.Input(to.String())}] = fsm.Transition{Next: to.fsmState()}
			}
		}
	}
	return t
}
