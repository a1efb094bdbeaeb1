package circuit

import (
	"fmt"
	"sync"

	"github.com/discoviking/fsm"
	"github.com/sirupsen/logrus"
)

// Status is the lifecycle state of a Circuit.
type Status int

const (
	Missing Status = iota
	Disabled
	Idle
	Reserved
	Connected
	Special
)

func (s Status) String() string {
	switch s {
	case Missing:
		return "missing"
	case Disabled:
		return "disabled"
	case Idle:
		return "idle"
	case Reserved:
		return "reserved"
	case Connected:
		return "connected"
	case Special:
		return "special"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

func (s Status) fsmState() fsm.State { return fsm.State(s.String()) }

// Administrative lock bits, distinct from the runtime mutex that guards a
// Circuit's own fields.
const (
	LockLocal uint32 = 1 << iota
	LockRemote
	LockMaintenance
)

const reserveInput fsm.Input = "reserve"

// reserveRules is the one guarded transition this package enforces: reserve
// only ever succeeds out of Idle. Every other status change goes through
// SetStatus, which the driver may refuse but which this package does not
// otherwise constrain.
var reserveRules = fsm.Table{
	fsm.Key{State: Idle.fsmState(), Input: reserveInput}: fsm.Transition{Next: Reserved.fsmState()},
}

// Driver is the hardware/software backend behind a Circuit. Drivers live
// outside this package; a nil Driver means no backend is attached.
type Driver interface {
	// ApplyStatus is asked to confirm a status change. sync requests the
	// driver complete any pending hardware reconfiguration synchronously.
	// Returning false refuses the transition.
	ApplyStatus(c *Circuit, newStatus Status, sync bool) bool
	// SendEvent pushes an outbound event toward the driver. The base
	// behaviour (no driver attached) is to refuse.
	SendEvent(c *Circuit, typ EventType, params map[string]string) bool
}

// Circuit is one addressable signalling/media channel.
type Circuit struct {
	mu sync.Mutex

	Code uint32
	Type string

	status    Status
	reserveFn *fsm.FSM

	lockFlags uint32

	events    []*Event
	lastEvent *Event

	group *Group // weak back-reference, guarded by mu
	span  *Span  // weak back-reference, guarded by mu

	driver Driver
	log    *logrus.Entry
}

// New creates a detached circuit (status Idle, no group/span). Groups attach
// it via Insert.
func New(code uint32, typ string, driver Driver, log *logrus.Entry) *Circuit {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	m, _ := fsm.NewFSM(Idle.fsmState(), reserveRules)
	return &Circuit{
		Code:      code,
		Type:      typ,
		status:    Idle,
		reserveFn: m,
		driver:    driver,
		log:       log.WithField("circuit", code),
	}
}

// Status returns the current status.
func (c *Circuit) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// SetStatus transitions the circuit to newStatus. Returns false when the
// driver refuses.
func (c *Circuit) SetStatus(newStatus Status, sync bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setStatusLocked(newStatus, sync)
}

func (c *Circuit) setStatusLocked(newStatus Status, sync bool) bool {
	if c.status == newStatus {
		return true
	}
	if c.driver != nil && !c.driver.ApplyStatus(c, newStatus, sync) {
		c.log.Debugf("driver refused status %s -> %s", c.status, newStatus)
		return false
	}
	c.log.Debugf("status %s -> %s", c.status, newStatus)
	c.status = newStatus
	if newStatus == Idle {
		// keep the reservation FSM's notion of "current" in sync so a
		// later Reserve sees the right starting state.
		c.reserveFn.State = Idle.fsmState()
	}
	return true
}

// Reserve atomically transitions Idle -> Reserved. Any other starting
// status fails.
func (c *Circuit) Reserve() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != Idle {
		return false
	}
	if _, ok := reserveRules[fsm.Key{State: c.reserveFn.State, Input: reserveInput}]; !ok {
		return false
	}
	if c.driver != nil && !c.driver.ApplyStatus(c, Reserved, false) {
		return false
	}
	c.reserveFn.Spin(reserveInput)
	c.status = Reserved
	c.log.Debug("reserved")
	return true
}

// Lock sets the bits in mask. Unlock clears them. Locked reports whether any
// bit in mask is currently set.
func (c *Circuit) Lock(mask uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lockFlags |= mask
}

func (c *Circuit) Unlock(mask uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lockFlags &^= mask
}

func (c *Circuit) Locked(mask uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lockFlags&mask != 0
}

// EnqueueEvent appends a new event to the circuit's FIFO queue and returns
// it so the caller (usually a driver) can fill in parameters before anyone
// else observes it.
func (c *Circuit) EnqueueEvent(typ EventType, name string, params map[string]string) *Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := newEvent(c, typ, name, params)
	c.events = append(c.events, e)
	return e
}

// GetEvent returns the head of the queue only if no event is currently in
// flight: at most one outstanding event per circuit at a time. The returned
// event becomes the in-flight event until Terminate is called on it.
func (c *Circuit) GetEvent() *Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastEvent != nil || len(c.events) == 0 {
		return nil
	}
	e := c.events[0]
	c.events = c.events[1:]
	c.lastEvent = e
	return e
}

// eventTerminated clears lastEvent if e is still the in-flight event,
// letting the next GetEvent deliver.
func (c *Circuit) eventTerminated(e *Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastEvent == e {
		c.lastEvent = nil
	}
}

// SendEvent pushes an outbound event toward the driver. The base
// implementation (no driver) refuses.
func (c *Circuit) SendEvent(typ EventType, params map[string]string) bool {
	c.mu.Lock()
	driver := c.driver
	c.mu.Unlock()
	if driver == nil {
		return false
	}
	return driver.SendEvent(c, typ, params)
}

// Group returns the owning group, or nil if the circuit is detached
// (Missing).
func (c *Circuit) Group() *Group {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.group
}

func (c *Circuit) attach(g *Group, s *Span) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.group = g
	c.span = s
}

// detach marks the circuit Missing and clears its group/span back-references:
// a Missing circuit is always detached from any group or span.
func (c *Circuit) detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = Missing
	c.group = nil
	c.span = nil
}
