package discovery

import "fmt"

// Phase is a discovery phase.
type Phase int

// Discovery phases, in order.
const (
	PhaseInit Phase = iota
	PhaseDiscover
	PhaseInject
	PhaseRegister
	PhaseFinalized
)

// String returns a string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "INIT"
	case PhaseDiscover:
		return "DISCOVER"
	case PhaseInject:
		return "INJECT"
	case PhaseRegister:
		return "REGISTER"
	case PhaseFinalized:
		return "FINALIZED"
	default:
		return "UNKNOWN"
	}
}

// PhaseError is the panic value for an operation invoked outside its phase.
type PhaseError struct {
	Op   string
	Want Phase
	Got  Phase
}

// Error implements the error interface.
func (e *PhaseError) Error() string {
	return fmt.Sprintf("discovery: %s requires phase %s, registry is in %s", e.Op, e.Want, e.Got)
}

// require panics unless the registry is in phase want.
func (r *registry) require(op string, want Phase) {
	if r.phase != want {
		panic(&PhaseError{Op: op, Want: want, Got: r.phase})
	}
}
