package analogline

import (
	"sync"
	"time"

	"github.com/discoviking/fsm"
	"github.com/sirupsen/logrus"
	"github.com/tevino/abool"

	"github.com/tg2sip/circuitcore/circuit"
)

// Type is the analog interface type of a line.
type Type int

const (
	Unknown Type = iota
	FXO
	FXS
	Monitor
)

func (t Type) String() string {
	switch t {
	case FXO:
		return "fxo"
	case FXS:
		return "fxs"
	case Monitor:
		return "monitor"
	default:
		return "unknown"
	}
}

// CallSetupMode is the `callsetup` configuration key.
type CallSetupMode int

const (
	CallSetupAfter CallSetupMode = iota
	CallSetupBefore
	CallSetupNone
)

// Options configures a line at construction time.
type Options struct {
	InbandDTMF       bool
	AcceptPulse      bool
	AnswerOnPolarity bool
	HangupOnPolarity bool
	PolarityControl  bool
	EchoCancel       int // -1 off, 0 default, +1 on
	CallSetup        CallSetupMode
	CallSetupTimeout time.Duration
	RingTimeout      time.Duration
	AlarmTimeout     time.Duration
	DelayDial        time.Duration
	OutOfService     bool
	Connect          bool
}

// DefaultOptions returns a line's out-of-the-box configuration.
func DefaultOptions() Options {
	return Options{
		AcceptPulse:      true,
		CallSetupTimeout: 2000 * time.Millisecond,
		RingTimeout:      10000 * time.Millisecond,
		AlarmTimeout:     30000 * time.Millisecond,
		DelayDial:        2000 * time.Millisecond,
		Connect:          true,
	}
}

// AnalogLine pairs a Circuit with line-side semantics and a finite state
// machine.
type AnalogLine struct {
	Type Type

	mu             sync.Mutex
	state          State
	stateFSM       *fsm.FSM
	stateEnteredAt time.Time

	circuit *circuit.Circuit
	group   *Group
	peer    *AnalogLine

	opts         Options
	getPeerEvent *abool.AtomicBool

	log *logrus.Entry
}

// New constructs a line from cfg/opts. On any acceptance-rule failure the
// returned line has Type Unknown and a nil circuit: callers must call
// Valid() before use.
func New(lineType Type, group *Group, circuitCode uint32, opts Options, log *logrus.Entry) *AnalogLine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	l := &AnalogLine{
		state:        Idle,
		opts:         opts,
		getPeerEvent: abool.New(),
		log:          log,
	}
	m, _ := fsm.NewFSM(Idle.fsmState(), changeTable)
	l.stateFSM = m

	if group == nil {
		log.Warn("circuit group is missing")
		return l
	}
	if group.hasLine(circuitCode) {
		log.Warn("circuit already allocated")
		return l
	}
	c := group.circuits().Find(circuitCode, true)
	if c == nil {
		log.Warn("circuit is missing")
		return l
	}

	l.Type = lineType
	l.circuit = c
	l.group = group
	l.log = log.WithField("circuit", circuitCode)
	l.stateEnteredAt = time.Now()

	if opts.OutOfService {
		l.state = OutOfService
		l.stateFSM.State = OutOfService.fsmState()
		c.SetStatus(circuit.Disabled, false)
	} else {
		c.SetStatus(circuit.Idle, false)
		if opts.Connect {
			l.Connect(false)
		}
	}
	return l
}

// Valid reports whether construction succeeded.
func (l *AnalogLine) Valid() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Type != Unknown && l.circuit != nil
}

func (l *AnalogLine) Circuit() *circuit.Circuit {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.circuit
}

// Group returns the owning line group, or nil once the line is closed.
func (l *AnalogLine) Group() *Group {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.group
}

func (l *AnalogLine) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *AnalogLine) Peer() *AnalogLine {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.peer
}

// ChangeState drives the forward-only state machine.
func (l *AnalogLine) ChangeState(newState State, sync bool) bool {
	l.mu.Lock()
	cur := l.state
	if cur == newState {
		l.mu.Unlock()
		return true
	}
	if cur == OutOfService || newState == OutOfService {
		l.mu.Unlock()
		return false
	}
	key := fsm.Key{State: l.stateFSM.State, Input: fsm.Input(newState.String())}
	if _, ok := changeTable[key]; !ok {
		l.mu.Unlock()
		return false
	}
	l.stateFSM.Spin(fsm.Input(newState.String()))
	l.state = newState
	l.stateEnteredAt = time.Now()
	peer := l.peer
	l.mu.Unlock()

	l.log.Debugf("state %s -> %s", cur, newState)
	if sync && peer != nil {
		peer.ChangeState(newState, false)
	}
	return true
}

// Enable moves the line into or out of service. ok=true from OutOfService
// enters Idle (and reserves the circuit); ok=false from any other state
// enters OutOfService (and disables the circuit).
func (l *AnalogLine) Enable(ok, sync, connectNow bool) bool {
	l.mu.Lock()
	cur := l.state
	c := l.circuit
	l.mu.Unlock()

	switch {
	case ok && cur == OutOfService:
		l.mu.Lock()
		l.state = Idle
		l.stateFSM.State = Idle.fsmState()
		l.stateEnteredAt = time.Now()
		l.mu.Unlock()
		if c != nil {
			c.SetStatus(circuit.Reserved, false)
		}
		if connectNow {
			l.Connect(false)
		}
	case !ok && cur != OutOfService:
		l.mu.Lock()
		l.state = OutOfService
		l.stateFSM.State = OutOfService.fsmState()
		l.stateEnteredAt = time.Now()
		l.mu.Unlock()
		l.Disconnect(false)
		if c != nil {
			c.SetStatus(circuit.Disabled, false)
		}
	default:
		return false
	}

	if sync {
		if peer := l.Peer(); peer != nil {
			peer.Enable(ok, false, connectNow)
		}
	}
	return true
}

// SetPeer links this line to other, unlinking any previous peer
// symmetrically.
func (l *AnalogLine) SetPeer(other *AnalogLine, sync bool) bool {
	if other != nil && other == l {
		return false
	}
	l.mu.Lock()
	old := l.peer
	l.peer = other
	l.mu.Unlock()

	if sync {
		if old != nil && old != other {
			old.SetPeer(nil, false)
		}
		if other != nil {
			other.SetPeer(l, false)
		}
	}
	return true
}

// Connect delegates to the circuit and retrains the echo canceller.
func (l *AnalogLine) Connect(sync bool) bool {
	l.mu.Lock()
	c := l.circuit
	peer := l.peer
	l.mu.Unlock()
	if c == nil {
		return false
	}
	ok := c.SetStatus(circuit.Connected, sync)
	if ok {
		l.resetEcho(true)
	}
	if sync && peer != nil {
		peer.Connect(false)
	}
	return ok
}

// Disconnect delegates to the circuit and resets the echo canceller.
func (l *AnalogLine) Disconnect(sync bool) bool {
	l.mu.Lock()
	c := l.circuit
	peer := l.peer
	l.mu.Unlock()
	if c == nil {
		return false
	}
	ok := c.SetStatus(circuit.Idle, sync)
	if ok {
		l.resetEcho(false)
	}
	if sync && peer != nil {
		peer.Disconnect(false)
	}
	return ok
}

// resetEcho drives the circuit's echocancel/echotrain parameters when the
// tri-state echocancel option is not left at its default.
func (l *AnalogLine) resetEcho(train bool) {
	l.mu.Lock()
	ec := l.opts.EchoCancel
	c := l.circuit
	l.mu.Unlock()
	if c == nil || ec == 0 {
		return
	}
	value := "on"
	if ec < 0 {
		value = "off"
	}
	c.SendEvent(circuit.EventType("echocancel"), map[string]string{"value": value})
	if ec > 0 && train {
		c.SendEvent(circuit.EventType("echotrain"), nil)
	}
}

// SendEvent forwards to the circuit, rejecting while OutOfService and
// rejecting DTMF/pulse-digit events when inband DTMF handling is configured.
func (l *AnalogLine) SendEvent(typ circuit.EventType, params map[string]string) bool {
	l.mu.Lock()
	state := l.state
	inband := l.opts.InbandDTMF
	c := l.circuit
	l.mu.Unlock()

	if state == OutOfService {
		return false
	}
	if inband && (typ == circuit.EventDtmf || typ == circuit.EventPulseDigit) {
		return false
	}
	if c == nil {
		return false
	}
	return c.SendEvent(typ, params)
}

// Event wraps a circuit event with the line it was observed on.
type Event struct {
	Line    *AnalogLine
	Circuit *circuit.Event
}

// GetEvent pulls one event from the underlying circuit. Timeouts are ticked
// only when no event is returned: while OutOfService, when the line has no
// circuit, or when the circuit has nothing to deliver.
func (l *AnalogLine) GetEvent(now time.Time) *Event {
	l.mu.Lock()
	state := l.state
	c := l.circuit
	acceptPulse := l.opts.AcceptPulse
	l.mu.Unlock()

	if state == OutOfService {
		l.checkTimeouts(now)
		return nil
	}
	if c == nil {
		l.checkTimeouts(now)
		return nil
	}
	ev := c.GetEvent()
	if ev == nil {
		l.checkTimeouts(now)
		return nil
	}
	if !acceptPulse && (ev.Type == circuit.EventPulseDigit || ev.Type == circuit.EventPulseStart) {
		ev.Terminate()
		return nil
	}
	return &Event{Line: l, Circuit: ev}
}

// GetMonitorEvent alternates between self and peer so a monitored pair is
// polled fairly.
func (l *AnalogLine) GetMonitorEvent(now time.Time) *Event {
	peerFirst := l.getPeerEvent.Toggle()
	peer := l.Peer()

	if peerFirst {
		if peer != nil {
			if ev := peer.GetEvent(now); ev != nil {
				return ev
			}
		}
		return l.GetEvent(now)
	}
	if ev := l.GetEvent(now); ev != nil {
		return ev
	}
	if peer != nil {
		return peer.GetEvent(now)
	}
	return nil
}

// checkTimeouts advances per-line timers on each GetEvent call that returns
// no event. Exceeding
// the timeout bound to the current state raises a circuit Timeout event and
// forces the line to CallEnded.
func (l *AnalogLine) checkTimeouts(now time.Time) {
	l.mu.Lock()
	state := l.state
	since := now.Sub(l.stateEnteredAt)
	var limit time.Duration
	switch state {
	case Dialing, DialComplete:
		limit = l.opts.CallSetupTimeout
	case Ringing:
		limit = l.opts.RingTimeout
	}
	c := l.circuit
	l.mu.Unlock()

	if limit <= 0 || since < limit {
		return
	}
	if c != nil {
		c.EnqueueEvent(circuit.EventTimeout, "timeout", map[string]string{"state": state.String()})
	}
	l.ChangeState(CallEnded, false)
}

// Close disconnects, idles the circuit, unlinks the peer and leaves the
// group.
func (l *AnalogLine) Close() {
	l.Disconnect(false)
	l.mu.Lock()
	c := l.circuit
	g := l.group
	l.circuit = nil
	l.group = nil
	l.mu.Unlock()

	if c != nil {
		c.SetStatus(circuit.Idle, false)
	}
	l.SetPeer(nil, true)
	if g != nil {
		g.removeLineByValue(l)
	}
}
