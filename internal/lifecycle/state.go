package lifecycle

import (
	"fmt"

	avErrors "github.com/sudoblockio/ansible-vagrant/pkg/errors"
)

// Phase is a step of the lifecycle state machine.
type Phase int

const (
	NotStarted Phase = iota
	Provisioning
	Provisioned
	Configuring
	Configured
	TornDown
	// Errored is absorbing until teardown; State.FailedPhase says where.
	Errored
)

func (p Phase) String() string {
	switch p {
	case NotStarted:
		return "not started"
	case Provisioning:
		return "provisioning"
	case Provisioned:
		return "provisioned"
	case Configuring:
		return "configuring"
	case Configured:
		return "configured"
	case TornDown:
		return "torn down"
	case Errored:
		return "errored"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// State is the tagged lifecycle state. FailedPhase and Err are set once a
// phase fails and are kept through teardown.
type State struct {
	Phase       Phase
	FailedPhase avErrors.Phase
	Err         error
}

// Failed reports whether any phase failed.
func (s State) Failed() bool {
	return s.Err != nil
}

func (s State) String() string {
	if s.Phase == Errored {
		return fmt.Sprintf("errored during %s", s.FailedPhase)
	}
	if s.Phase == TornDown && s.Err != nil {
		return fmt.Sprintf("torn down after %s failure", s.FailedPhase)
	}
	return s.Phase.String()
}

// Transition is published to Options.OnTransition on every state change.
type Transition struct {
	RunID   string
	Machine string
	From    State
	To      State
}

// allowed lists legal forward moves. Errored and TornDown are reachable from
// every state and are handled separately.
var allowed = map[Phase]Phase{
	NotStarted:   Provisioning,
	Provisioning: Provisioned,
	Provisioned:  Configuring,
	Configuring:  Configured,
}

func canTransition(from, to Phase) bool {
	switch {
	case from == TornDown:
		return false
	case to == TornDown:
		return true
	case to == Errored:
		return from != Errored
	default:
		return allowed[from] == to
	}
}
