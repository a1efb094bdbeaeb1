package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nilDriver struct{}

func (nilDriver) ApplyStatus(*Circuit, Status, bool) bool               { return true }
func (nilDriver) SendEvent(*Circuit, EventType, map[string]string) bool { return false }

func newTestGroup(n int, strategy Strategy) *Group {
	g := NewGroup("test", 0, strategy, nil)
	for i := 0; i < n; i++ {
		g.Insert(New(uint32(i), "test", nilDriver{}, nil), nil)
	}
	return g
}

// Codes stay unique within a group, and last always tracks one past the
// highest code currently held.
func TestGroupInsertRemoveUniqueCodes(t *testing.T) {
	g := newTestGroup(5, NewStrategy(Increment, 0))
	assert.Equal(t, uint32(5), g.last)

	assert.False(t, g.Insert(New(2, "test", nilDriver{}, nil), nil), "duplicate code must be rejected")

	assert.True(t, g.Remove(4))
	assert.Equal(t, uint32(4), g.last, "removing the maximum code must rescan last")

	assert.Nil(t, g.Find(4, true))
}

// Increment strategy round-robins forward from the last-used code.
func TestReserveIncrementFairness(t *testing.T) {
	g := newTestGroup(5, NewStrategy(Increment, 0))
	var got []uint32
	for i := 0; i < 5; i++ {
		c := g.Reserve(0, nil)
		require.NotNil(t, c)
		got = append(got, c.Code)
	}
	assert.Equal(t, []uint32{1, 2, 3, 4, 0}, got)
	assert.Nil(t, g.Reserve(0, nil), "no idle circuits left")
}

// Even-only allocation exhausts every even circuit before falling back to
// an odd one.
func TestReserveEvenOnlyWithFallback(t *testing.T) {
	g := newTestGroup(10, NewStrategy(Increment, OnlyEven|Fallback))

	var evens []uint32
	for i := 0; i < 5; i++ {
		c := g.Reserve(0, nil)
		require.NotNil(t, c)
		evens = append(evens, c.Code)
	}
	assert.Equal(t, []uint32{0, 2, 4, 6, 8}, evens, "every even circuit must be exhausted before any fallback")

	c := g.Reserve(0, nil)
	require.NotNil(t, c, "must fall back to an odd circuit once the evens are exhausted")
	assert.Equal(t, uint32(1), c.Code%2, "fallback circuit must be odd")
}

// With no Fallback flag, exhausting the restricted parity returns nothing.
func TestReserveNoFallbackReturnsNone(t *testing.T) {
	g := newTestGroup(4, NewStrategy(Increment, OnlyOdd))
	// reserve both odds
	require.NotNil(t, g.Reserve(0, nil))
	require.NotNil(t, g.Reserve(0, nil))
	assert.Nil(t, g.Reserve(0, nil), "without Fallback, no even substitute is offered")
}

// A mandatory list-directed reservation skips already-taken entries but
// never falls through to the ordinary allocator.
func TestReserveFromListMandatory(t *testing.T) {
	g := newTestGroup(10, NewStrategy(Increment, 0))
	require.True(t, g.Find(3, true).Reserve())
	require.True(t, g.Find(5, true).Reserve())

	c := g.ReserveFromList("3,5,7", true, 0, nil)
	require.NotNil(t, c, "must skip already-reserved list entries and land on the first free one")
	assert.Equal(t, uint32(7), c.Code)

	none := g.ReserveFromList("3,5,7", true, 0, nil)
	assert.Nil(t, none, "mandatory list reservation must not fall through once every listed circuit is taken")
}

// A non-mandatory list-directed reservation falls through to the ordinary
// allocator once every listed circuit is taken.
func TestReserveFromListFallsThrough(t *testing.T) {
	g := newTestGroup(4, NewStrategy(Lowest, 0))
	require.True(t, g.Find(0, true).Reserve())
	require.True(t, g.Find(1, true).Reserve())

	c := g.ReserveFromList("0,1", false, 0, nil)
	require.NotNil(t, c, "falls through to Reserve when the list is exhausted")
	assert.Equal(t, uint32(2), c.Code)
}

// Removing a span with delCics=true cascades: every circuit that was
// inserted under it is also removed from the group.
func TestRemoveSpanCascades(t *testing.T) {
	g := newTestGroup(8, NewStrategy(Increment, 0))
	span := NewSpan("span-a", g)
	for _, code := range []uint32{4, 5, 6} {
		c := g.Find(code, true)
		require.NotNil(t, c)
		g.Remove(code)
		require.True(t, g.Insert(c, span))
	}

	g.RemoveSpan(span, true, true)

	assert.Nil(t, g.Find(4, true))
	assert.Nil(t, g.Find(5, true))
	assert.Nil(t, g.Find(6, true))
}

// At most one in-flight event per circuit at a time.
func TestCircuitSingleInFlightEvent(t *testing.T) {
	c := New(0, "test", nilDriver{}, nil)
	c.EnqueueEvent(EventDtmf, "dtmf", map[string]string{"digit": "1"})
	c.EnqueueEvent(EventDtmf, "dtmf", map[string]string{"digit": "2"})

	e1 := c.GetEvent()
	require.NotNil(t, e1)
	assert.Equal(t, "1", e1.Params["digit"])

	assert.Nil(t, c.GetEvent(), "a second event must not be delivered while one is in flight")

	e1.Terminate()
	e2 := c.GetEvent()
	require.NotNil(t, e2)
	assert.Equal(t, "2", e2.Params["digit"])
}

func TestCircuitReserveExclusivity(t *testing.T) {
	c := New(0, "test", nilDriver{}, nil)
	assert.True(t, c.Reserve())
	assert.False(t, c.Reserve(), "reserve must fail once already Reserved")
	assert.True(t, c.SetStatus(Idle, false))
	assert.True(t, c.Reserve())
}
