// Package driver provides a minimal in-memory circuit.Driver used by
// cmd/circuitctl in place of a real trunk, the way the teacher's tgvoip
// package falls back to a stub Controller when the cgo media backend isn't
// built (tgvoip/stub.go).
package driver

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tg2sip/circuitcore/circuit"
)

// Memory is a circuit.Driver that accepts every status change and records
// outbound SendEvent calls for inspection, instead of touching real
// hardware.
type Memory struct {
	mu  sync.Mutex
	log *logrus.Entry
	out []Outbound
}

// Outbound records one outbound SendEvent call.
type Outbound struct {
	Code   uint32
	Type   circuit.EventType
	Params map[string]string
}

// New creates a Memory driver.
func New(log *logrus.Entry) *Memory {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Memory{log: log.WithField("driver", "memory")}
}

// ApplyStatus always accepts the transition.
func (m *Memory) ApplyStatus(c *circuit.Circuit, newStatus circuit.Status, sync bool) bool {
	m.log.Debugf("circuit %d status -> %s (sync=%v)", c.Code, newStatus, sync)
	return true
}

// SendEvent records the outbound event and reports success.
func (m *Memory) SendEvent(c *circuit.Circuit, typ circuit.EventType, params map[string]string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.out = append(m.out, Outbound{Code: c.Code, Type: typ, Params: params})
	m.log.Debugf("circuit %d <- %s %v", c.Code, typ, params)
	return true
}

// Outbound returns every outbound event recorded so far.
func (m *Memory) Outbound() []Outbound {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Outbound(nil), m.out...)
}

// Inject pushes a driver-originated event onto c's queue, simulating
// hardware input for tests/demos.
func (m *Memory) Inject(c *circuit.Circuit, typ circuit.EventType, name string, params map[string]string) *circuit.Event {
	return c.EnqueueEvent(typ, name, params)
}
