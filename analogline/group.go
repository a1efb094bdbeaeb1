package analogline

import (
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tg2sip/circuitcore/circuit"
)

// Group is a circuit.Group specialized for analog lines: it additionally
// owns the list of lines and, for a monitor group, a reference to a
// parallel FXO group. Go has no inheritance, so this embeds a *circuit.Group
// to reuse its methods — the teacher's own composition-over-mutex-reuse
// style (ContactCache/SIPClient hang their methods directly off a struct
// that owns its own sync.Mutex) is the model; here the embedded circuit.Group
// already owns its mutex, so Group adds its own for the line list only.
type Group struct {
	*circuit.Group

	Type  Type
	Name  string
	Slave bool

	mu       sync.Mutex
	lines    map[uint32]*AnalogLine
	fxoGroup *Group // set only for a monitor group
	log      *logrus.Entry
}

// NewOwningGroup creates a group that owns FXO or FXS lines directly.
// slave is only meaningful for FXO.
func NewOwningGroup(lineType Type, name string, slave bool, base uint32, strategy circuit.Strategy, log *logrus.Entry) *Group {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Group{
		Group: circuit.NewGroup(name, base, strategy, log),
		Type:  lineType,
		Name:  name,
		Slave: slave,
		lines: map[uint32]*AnalogLine{},
		log:   log.WithField("analog-group", name),
	}
}

// NewMonitorGroup creates an FXS monitor group paired with fxoGroup. A nil
// fxoGroup is accepted (warn but continue).
func NewMonitorGroup(name string, fxoGroup *Group, base uint32, strategy circuit.Strategy, log *logrus.Entry) *Group {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	g := &Group{
		Group:    circuit.NewGroup(name, base, strategy, log),
		Type:     FXS,
		Name:     name,
		lines:    map[uint32]*AnalogLine{},
		fxoGroup: fxoGroup,
		log:      log.WithField("analog-group", name),
	}
	if fxoGroup == nil {
		g.log.Warn("monitor group created without a paired fxo group")
	}
	return g
}

// IsMonitor reports whether this group has a paired FXO group. A group made
// by NewMonitorGroup with a nil fxoGroup reports false and is handled like an
// owning group.
func (g *Group) IsMonitor() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fxoGroup != nil
}

func (g *Group) FXOGroup() *Group {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fxoGroup
}

func (g *Group) circuits() *circuit.Group { return g.Group }

func (g *Group) hasLine(code uint32) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.lines[code]
	return ok
}

// AppendLine registers line with the group, validating its type and group
// back-reference. On failure, when destructOnFail is true the line is
// closed.
func (g *Group) AppendLine(line *AnalogLine, destructOnFail bool) bool {
	ok := line.Type == g.Type && line.Group() == g
	// A monitor group's member lines may be tagged Monitor instead of FXS to
	// mark their dual-observer role; accept that case too.
	if !ok && g.IsMonitor() && line.Type == Monitor && line.Group() == g {
		ok = true
	}
	if !ok {
		g.log.Warnf("append_line rejected: type=%s group-match=%v", line.Type, line.Group() == g)
		if destructOnFail {
			line.Close()
		}
		return false
	}
	code := uint32(0)
	if c := line.Circuit(); c != nil {
		code = c.Code
	}
	g.mu.Lock()
	g.lines[code] = line
	g.mu.Unlock()
	return true
}

// RemoveLineByCode removes the line backed by the given circuit code.
func (g *Group) RemoveLineByCode(code uint32) *AnalogLine {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.lines[code]
	if !ok {
		return nil
	}
	delete(g.lines, code)
	return l
}

// removeLineByValue removes line regardless of its circuit code, used by
// AnalogLine.Close.
func (g *Group) removeLineByValue(line *AnalogLine) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for code, l := range g.lines {
		if l == line {
			delete(g.lines, code)
			return
		}
	}
}

// FindLineByCode looks up a line by the circuit code that backs it.
func (g *Group) FindLineByCode(code uint32) *AnalogLine {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lines[code]
}

// FindLineByAddress looks a line up by an arbitrary address string an
// external protocol layer assigned to it (stored via AnalogLine metadata is
// out of this core's scope — callers index their own address->code map and
// use FindLineByCode; this helper simply scans for a line whose circuit code,
// rendered as "cic:<code>", equals address).
func (g *Group) FindLineByAddress(address string) *AnalogLine {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, l := range g.lines {
		if c := l.Circuit(); c != nil && circuitAddress(c.Code) == address {
			return l
		}
	}
	return nil
}

func circuitAddress(code uint32) string {
	return "cic:" + strconv.FormatUint(uint64(code), 10)
}

// snapshotLines returns the current lines under lock, for the
// snapshot-then-iterate pattern GetEvent requires.
func (g *Group) snapshotLines() []*AnalogLine {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*AnalogLine, 0, len(g.lines))
	for _, l := range g.lines {
		out = append(out, l)
	}
	return out
}

// GetEvent iterates every line, using GetMonitorEvent instead of GetEvent
// when this is a monitor group so events from either side of a pair are
// observed.
func (g *Group) GetEvent(now time.Time) *Event {
	monitor := g.IsMonitor()
	for _, l := range g.snapshotLines() {
		var ev *Event
		if monitor {
			ev = l.GetMonitorEvent(now)
		} else {
			ev = l.GetEvent(now)
		}
		if ev != nil {
			return ev
		}
	}
	return nil
}

// Destroy detaches every line from the group, clears the line set, then
// the owning FXO sub-group (if any), then falls through to circuit.Group's
// own destruction.
func (g *Group) Destroy() {
	g.mu.Lock()
	lines := make([]*AnalogLine, 0, len(g.lines))
	for _, l := range g.lines {
		lines = append(lines, l)
	}
	g.lines = map[uint32]*AnalogLine{}
	fxo := g.fxoGroup
	g.fxoGroup = nil
	g.mu.Unlock()

	for _, l := range lines {
		l.mu.Lock()
		l.group = nil
		l.mu.Unlock()
	}
	if fxo != nil {
		fxo.Destroy()
	}
	g.Group.Destroy()
}
