package circuit

import (
	"fmt"
	"strings"
)

// Selector picks the scan order the reservation allocator uses when looking
// for a free circuit. It occupies the low 12 bits of a Strategy word.
type Selector uint32

const (
	Increment Selector = 1
	Decrement Selector = 2
	Lowest    Selector = 3
	Highest   Selector = 4
	Random    Selector = 5
)

// Flag bits occupy the high bits of a Strategy word, above the 12-bit
// selector field.
type Flag uint32

const (
	selectorMask = 0x0fff
	flagShift    = 12

	OnlyOdd  Flag = 1 << (iota + flagShift)
	OnlyEven Flag = 1 << (iota + flagShift)
	Fallback Flag = 1 << (iota + flagShift)
)

// Strategy packs a Selector and a set of Flags into one word, per spec:
// low 12 bits hold the selector, higher bits hold OnlyOdd/OnlyEven/Fallback.
type Strategy uint32

// NewStrategy packs sel and flags into a single Strategy word.
func NewStrategy(sel Selector, flags Flag) Strategy {
	return Strategy(uint32(sel)&selectorMask | uint32(flags))
}

func (s Strategy) Selector() Selector { return Selector(uint32(s) & selectorMask) }
func (s Strategy) Flags() Flag        { return Flag(uint32(s) &^ selectorMask) }
func (s Strategy) Has(f Flag) bool    { return uint32(s)&uint32(f) != 0 }

// WithFlags returns a copy of s with flags replaced.
func (s Strategy) WithFlags(flags Flag) Strategy {
	return NewStrategy(s.Selector(), flags)
}

// ReverseParity swaps OnlyOdd <-> OnlyEven, keeping the selector and any
// other flags (notably Fallback) untouched. Used by CallControl when a
// caller asks for reverse_restrict on a list-directed reservation.
func (s Strategy) ReverseParity() Strategy {
	flags := s.Flags()
	switch {
	case flags&OnlyOdd != 0:
		flags = flags&^OnlyOdd | OnlyEven
	case flags&OnlyEven != 0:
		flags = flags&^OnlyEven | OnlyOdd
	}
	return s.WithFlags(flags)
}

func (sel Selector) String() string {
	switch sel {
	case Increment:
		return "increment"
	case Decrement:
		return "decrement"
	case Lowest:
		return "lowest"
	case Highest:
		return "highest"
	case Random:
		return "random"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(sel))
	}
}

// ParseSelector parses the `strategy` configuration key.
func ParseSelector(s string) (Selector, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "increment":
		return Increment, nil
	case "decrement":
		return Decrement, nil
	case "lowest":
		return Lowest, nil
	case "highest":
		return Highest, nil
	case "random":
		return Random, nil
	default:
		return 0, fmt.Errorf("circuit: unknown strategy %q", s)
	}
}

// ParseRestrict parses the `strategy-restrict` configuration key. Ignored by
// callers when the selector is Random.
func ParseRestrict(s string) (Flag, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return 0, nil
	case "odd":
		return OnlyOdd, nil
	case "even":
		return OnlyEven, nil
	case "odd-fallback":
		return OnlyOdd | Fallback, nil
	case "even-fallback":
		return OnlyEven | Fallback, nil
	default:
		return 0, fmt.Errorf("circuit: unknown strategy-restrict %q", s)
	}
}
