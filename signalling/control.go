package signalling

import (
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tevino/abool"

	"github.com/tg2sip/circuitcore/circuit"
	"github.com/tg2sip/circuitcore/dumper"
)

// Control is the root controller: it holds the active group, the set of
// live calls, the shutdown flag, and an optional dumper; it pumps events
// from its calls.
type Control struct {
	mu       sync.Mutex
	group    *circuit.Group
	calls    []*Call
	strategy circuit.Strategy
	dumper   dumper.Dumper

	exiting        *abool.AtomicBool
	disableEmitted *abool.AtomicBool

	log *logrus.Entry
}

// NewControl creates a controller with no attached group.
func NewControl(strategy circuit.Strategy, log *logrus.Entry) *Control {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Control{
		strategy:       strategy,
		exiting:        abool.New(),
		disableEmitted: abool.New(),
		log:            log.WithField("component", "call-control"),
	}
}

// Group returns the currently attached group, or nil.
func (ctl *Control) Group() *circuit.Group {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	return ctl.group
}

// Attach installs a new group, running cleanup on the old one first. A no-op
// when newGroup already equals the current group.
func (ctl *Control) Attach(newGroup *circuit.Group, cleanup func(reason string)) {
	ctl.mu.Lock()
	if ctl.group == newGroup {
		ctl.mu.Unlock()
		return
	}
	old := ctl.group
	ctl.mu.Unlock()

	if old != nil && cleanup != nil {
		cleanup("group detached")
	}

	ctl.mu.Lock()
	ctl.group = newGroup
	strategy := ctl.strategy
	ctl.mu.Unlock()

	if newGroup != nil {
		newGroup.SetStrategy(strategy)
	}
}

// SetStrategy updates the controller's default strategy and, if a group is
// attached, pushes it down to the group as well.
func (ctl *Control) SetStrategy(s circuit.Strategy) {
	ctl.mu.Lock()
	ctl.strategy = s
	g := ctl.group
	ctl.mu.Unlock()
	if g != nil {
		g.SetStrategy(s)
	}
}

// ReserveCircuit reserves a circuit on call's behalf, releasing whatever
// circuit call previously held. When list is non-empty and mandatory is
// false and reverseRestrict is true, the parity flags are inverted for this
// call only. ReserveFromList is always invoked as
// (list, mandatory, checkLockMask, strategy), never with the arguments
// swapped.
func (ctl *Control) ReserveCircuit(call *Call, checkLockMask uint32, list string, mandatory, reverseRestrict bool) *circuit.Circuit {
	ctl.mu.Lock()
	g := ctl.group
	strategy := ctl.strategy
	ctl.mu.Unlock()
	if g == nil {
		return nil
	}

	if prev := call.takeReservedCircuit(); prev != nil {
		ctl.ReleaseCircuit(prev, false)
	}

	var c *circuit.Circuit
	if list != "" {
		strat := strategy
		if !mandatory && reverseRestrict {
			strat = strat.ReverseParity()
		}
		c = g.ReserveFromList(list, mandatory, checkLockMask, &strat)
	} else {
		c = g.Reserve(checkLockMask, &strategy)
	}
	if c != nil {
		call.setReservedCircuit(c)
	}
	return c
}

// ReleaseCircuit sets c Idle with sync. It does not clear c from a Call that
// recorded it as its reserved circuit; ReserveCircuit does that itself before
// releasing a call's previous circuit.
func (ctl *Control) ReleaseCircuit(c *circuit.Circuit, sync bool) {
	if c == nil {
		return
	}
	c.SetStatus(circuit.Idle, sync)
}

// AddCall registers a call with the controller.
func (ctl *Control) AddCall(c *Call) {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	ctl.calls = append(ctl.calls, c)
}

// RemoveCall de-registers a call. When del is true, the call is also closed.
func (ctl *Control) RemoveCall(c *Call, del bool) {
	ctl.removeCallQuiet(c)
	if del {
		c.Close()
	}
}

// removeCallQuiet de-registers c without recursing back into Close (called
// both from RemoveCall and from Call.Close itself).
func (ctl *Control) removeCallQuiet(c *Call) {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	for i, existing := range ctl.calls {
		if existing == c {
			ctl.calls = append(ctl.calls[:i], ctl.calls[i+1:]...)
			return
		}
	}
}

// ClearCalls closes and removes every tracked call.
func (ctl *Control) ClearCalls() {
	ctl.mu.Lock()
	calls := append([]*Call(nil), ctl.calls...)
	ctl.calls = nil
	ctl.mu.Unlock()
	for _, c := range calls {
		c.Close()
	}
}

// SetExiting flips the shutdown flag. GetEvent begins emitting a terminal
// Disable event once the call set has drained.
func (ctl *Control) SetExiting(v bool) {
	if v {
		ctl.exiting.Set()
	} else {
		ctl.exiting.UnSet()
		ctl.disableEmitted.UnSet()
	}
}

func (ctl *Control) Exiting() bool { return ctl.exiting.IsSet() }

// SetDumper installs an event-dumping sink, closing any previous one.
func (ctl *Control) SetDumper(d dumper.Dumper) {
	ctl.mu.Lock()
	old := ctl.dumper
	ctl.dumper = d
	ctl.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
}

// GetEvent pumps one event out of the controller's calls. It snapshots the
// call list under lock, then releases the lock before recursing into each
// call's own GetEvent, avoiding a nested-lock deadlock between the
// controller and per-call mutexes — the same release-then-recurse shape as
// Gateway.Start's select loop in the teacher.
func (ctl *Control) GetEvent() *Event {
	ctl.mu.Lock()
	snapshot := append([]*Call(nil), ctl.calls...)
	ctl.mu.Unlock()

	for _, call := range snapshot {
		ev := call.GetEvent()
		if ev == nil {
			continue
		}
		if !ctl.processEvent(ev) {
			return ev
		}
	}

	if ctl.exiting.IsSet() {
		ctl.mu.Lock()
		empty := len(ctl.calls) == 0
		ctl.mu.Unlock()
		if empty && ctl.disableEmitted.SetToIf(false, true) {
			ev := newEvent(Disable, nil, nil, ctl)
			ctl.log.Info("emitting terminal Disable event")
			return ev
		}
	}
	return nil
}

// processEvent offers ev to the controller's own handling before returning
// it to the GetEvent caller. It writes the event type to the dumper, if one
// is installed, and never consumes the event: it always returns false.
func (ctl *Control) processEvent(ev *Event) bool {
	if ctl.dumper != nil {
		ctl.dumper.Dump(ev.Type.String())
	}
	return false
}
