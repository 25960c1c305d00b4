package repository

import "fmt"

// State is the dispatcher_processes.state enum. The database stores it as
// a string; it round-trips unchanged.
type State string

const (
	StateCreated    State = "created"
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateError      State = "error"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// MustParseState converts a database state string. An unknown value means
// the schema and the binary disagree, which is unrecoverable: panic.
func MustParseState(s string) State {
	switch State(s) {
	case StateCreated, StatePending, StateProcessing, StateError, StateCompleted, StateFailed:
		return State(s)
	default:
		panic(fmt.Sprintf("process-dispatcher: unknown process state %q", s))
	}
}

// Terminal reports whether the state is final. Completed and failed rows
// are never rescheduled on the same day nor claimed by supervisors; every
// other state counts as active.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// String returns the database representation.
func (s State) String() string {
	return string(s)
}

// Mode is the dispatcher_processes.mode column, a TINYINT discriminating
// how a supervisor should execute the process.
type Mode uint8

const (
	ModeRegular Mode = 1
	ModeSandbox Mode = 2
)

// MustParseMode converts a database mode value, panicking on anything but
// the two known discriminants.
func MustParseMode(v uint8) Mode {
	switch Mode(v) {
	case ModeRegular, ModeSandbox:
		return Mode(v)
	default:
		panic(fmt.Sprintf("process-dispatcher: unknown process mode %d", v))
	}
}

// String returns the display name used in API responses.
func (m Mode) String() string {
	switch m {
	case ModeRegular:
		return "Regular"
	case ModeSandbox:
		return "Sandbox"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}
