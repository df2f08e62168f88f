// Package power owns the device ON/OFF lifecycle.
//
// A [Machine] only decides transitions. Applying the side effects of a
// [Transition] (joining the network, greeting, clearing the display) is the
// caller's job.
package power

import (
	"sync/atomic"
	"time"

	"bmo/internal/button"
)

type State uint32

const (
	Off State = iota
	On
)

func (s State) String() string {
	switch s {
	case Off:
		return "OFF"
	case On:
		return "ON"
	default:
		return "UNKNOWN"
	}
}

// Transition is the result of a qualifying press edge.
type Transition struct {
	From State
	To   State
	At   time.Time
}

// Boot reports whether the transition powers the device up.
func (t Transition) Boot() bool { return t.From == Off && t.To == On }

// Machine is the single DeviceState holder. State is stored atomically so
// status readers outside the control loop never race with it.
type Machine struct {
	state atomic.Uint32
}

func NewMachine() *Machine { return &Machine{} }

func (m *Machine) State() State { return State(m.state.Load()) }

func (m *Machine) On() bool { return m.State() == On }

// HandleEdge toggles the state on a press edge. Release edges never
// produce a transition.
func (m *Machine) HandleEdge(e button.Edge) (Transition, bool) {
	if !e.Pressed {
		return Transition{}, false
	}

	from := m.State()
	to := On
	if from == On {
		to = Off
	}
	m.state.Store(uint32(to))

	return Transition{From: from, To: to, At: e.At}, true
}

// Rollback restores the state a transition started from. It is used when a
// boot is abandoned before completing.
func (m *Machine) Rollback(t Transition) {
	m.state.CompareAndSwap(uint32(t.To), uint32(t.From))
}
