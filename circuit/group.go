package circuit

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Group owns circuits and spans for one trunk/controller and implements the
// reservation allocator and strategy engine.
type Group struct {
	mu sync.Mutex

	Name     string
	base     uint32
	last     uint32
	strategy Strategy
	used     uint32

	circuits map[uint32]*Circuit
	spans    map[string]*Span

	log *logrus.Entry
}

// NewGroup creates an empty group. base is the global offset added to local
// codes; strategy is the group's default reservation policy.
func NewGroup(name string, base uint32, strategy Strategy, log *logrus.Entry) *Group {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Group{
		Name:     name,
		base:     base,
		strategy: strategy,
		circuits: map[uint32]*Circuit{},
		spans:    map[string]*Span{},
		log:      log.WithField("group", name),
	}
}

func (g *Group) Base() uint32 { return g.base }

func (g *Group) Strategy() Strategy {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.strategy
}

func (g *Group) SetStrategy(s Strategy) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.strategy = s
}

// Insert adds a circuit under the given span (span may be nil). Fails if the
// local code is already occupied: a group never holds more than one circuit
// per code.
func (g *Group) Insert(c *Circuit, span *Span) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.circuits[c.Code]; exists {
		return false
	}
	g.circuits[c.Code] = c
	c.attach(g, span)
	if span != nil {
		span.addCode(c.Code)
	}
	if c.Code >= g.last {
		g.last = c.Code + 1
	}
	return true
}

// Remove detaches the circuit at local code and recomputes last when the
// maximum code was removed.
func (g *Group) Remove(code uint32) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.removeLocked(code)
}

func (g *Group) removeLocked(code uint32) bool {
	c, ok := g.circuits[code]
	if !ok {
		return false
	}
	delete(g.circuits, code)
	c.detach()
	if code == g.last-1 {
		g.rescanLastLocked()
	}
	return true
}

func (g *Group) rescanLastLocked() {
	var max uint32
	found := false
	for code := range g.circuits {
		if !found || code >= max {
			max = code
			found = true
		}
	}
	if found {
		g.last = max + 1
	} else {
		g.last = 0
	}
}

// insertSpan registers span with the group; called from NewSpan.
func (g *Group) insertSpan(s *Span) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.spans[s.ID] = s
}

// RemoveSpan detaches a span. When delCics is true, every circuit registered
// under the span is also removed from the group.
func (g *Group) RemoveSpan(s *Span, delCics, delSpan bool) {
	if delCics {
		for _, code := range s.Codes() {
			g.Remove(code)
		}
	}
	if delSpan {
		g.mu.Lock()
		delete(g.spans, s.ID)
		g.mu.Unlock()
	}
}

// Find looks up a circuit. When local is true, code is interpreted as a
// local code; otherwise it is a global code (base + local).
func (g *Group) Find(code uint32, local bool) *Circuit {
	g.mu.Lock()
	defer g.mu.Unlock()
	lc := code
	if !local {
		if code < g.base {
			return nil
		}
		lc = code - g.base
	}
	return g.circuits[lc]
}

func (g *Group) Status(code uint32) (Status, bool) {
	c := g.Find(code, true)
	if c == nil {
		return Missing, false
	}
	return c.Status(), true
}

func (g *Group) SetStatus(code uint32, newStatus Status, sync bool) bool {
	c := g.Find(code, true)
	if c == nil {
		return false
	}
	return c.SetStatus(newStatus, sync)
}

// GetCicList renders every owned local code, comma separated, in ascending
// order.
func (g *Group) GetCicList() string {
	g.mu.Lock()
	codes := make([]uint32, 0, len(g.circuits))
	for code := range g.circuits {
		codes = append(codes, code)
	}
	g.mu.Unlock()
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = strconv.FormatUint(uint64(c), 10)
	}
	return strings.Join(parts, ",")
}

// Reserve runs the strategy-driven allocator. strategy of nil means "use the
// group's configured strategy".
func (g *Group) Reserve(checkLockMask uint32, strategy *Strategy) *Circuit {
	g.mu.Lock()
	last := g.last
	used := g.used
	strat := g.strategy
	if strategy != nil {
		strat = *strategy
	}
	g.mu.Unlock()

	if last < 1 {
		return nil
	}

	if c := g.reserveScan(last, used, strat, checkLockMask); c != nil {
		return c
	}

	if strat.Has(Fallback) {
		return g.reserveScan(last, used, strat.ReverseParity(), checkLockMask)
	}
	return nil
}

func (g *Group) reserveScan(last, used uint32, strat Strategy, checkLockMask uint32) *Circuit {
	sel := strat.Selector()
	flags := strat.Flags()
	var n uint32
	switch sel {
	case Increment:
		n = (used + 1) % last
	case Decrement:
		if used == 0 {
			n = last - 1
		} else {
			n = used - 1
		}
	case Lowest:
		n = 0
	case Highest:
		n = last - 1
	case Random:
		if last > 1 {
			// Bounded draw instead of retrying rand.Intn(last) until it
			// misses `used`: pick from the last-1 remaining values and skip
			// over `used` directly, so this always terminates in one draw.
			n = uint32(rand.Intn(int(last - 1)))
			if n >= used {
				n++
			}
		}
	default:
		n = (used + 1) % last
	}

	n = adjustParity(n, flags)

	start := n
	budget := last
	if flags&(OnlyOdd|OnlyEven) != 0 {
		budget = (budget + 1) / 2
	}

	for i := uint32(0); i < budget; i++ {
		c := g.Find(n, true)
		if c != nil && !c.Locked(checkLockMask) {
			if c.Reserve() {
				g.mu.Lock()
				g.used = n
				g.mu.Unlock()
				return c
			}
		}
		next := advance(n, last, sel, flags)
		if next == start {
			break
		}
		n = next
	}
	return nil
}

func adjustParity(n uint32, flags Flag) uint32 {
	switch {
	case flags&OnlyEven != 0 && n%2 != 0:
		return n &^ 1
	case flags&OnlyOdd != 0 && n%2 == 0:
		return n | 1
	default:
		return n
	}
}

func advance(n, last uint32, sel Selector, flags Flag) uint32 {
	delta := uint32(1)
	if flags&(OnlyOdd|OnlyEven) != 0 {
		delta = 2
	}
	switch sel {
	case Increment, Lowest:
		n += delta
		if n >= last {
			n = delta % last
		}
		return n
	case Decrement, Highest:
		if n >= delta {
			n -= delta
		} else {
			n = adjustParity(last-1, flags)
		}
		return n
	default: // Random and anything else
		return (n + 1) % last
	}
}

// ReserveFromList tries each global code in csv, in order, before optionally
// falling through to Reserve. When mandatory is true, failing to find a free
// listed circuit returns nil without falling through.
func (g *Group) ReserveFromList(csv string, mandatory bool, checkLockMask uint32, strategy *Strategy) *Circuit {
	for _, tok := range strings.Split(csv, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		global, err := strconv.ParseUint(tok, 10, 32)
		if err != nil {
			continue
		}
		c := g.Find(uint32(global), false)
		if c == nil || c.Locked(checkLockMask) {
			continue
		}
		if c.Reserve() {
			g.mu.Lock()
			g.used = uint32(global) - g.base
			g.mu.Unlock()
			return c
		}
	}
	if mandatory {
		return nil
	}
	return g.Reserve(checkLockMask, strategy)
}

// Destroy marks every owned circuit Missing and detaches it, then clears the
// group's circuit and span sets.
func (g *Group) Destroy() {
	g.mu.Lock()
	circuits := make([]*Circuit, 0, len(g.circuits))
	for _, c := range g.circuits {
		circuits = append(circuits, c)
	}
	g.circuits = map[uint32]*Circuit{}
	g.spans = map[string]*Span{}
	g.mu.Unlock()

	for _, c := range circuits {
		c.detach()
	}
}

func (g *Group) String() string {
	return fmt.Sprintf("Group(%s base=%d last=%d)", g.Name, g.base, g.last)
}
