package shutdown

import (
	"context"
	"errors"
	"fmt"

	"github.com/sudoblockio/ansible-vagrant/internal/logger"
)

// ErrNotCreated is returned by a Machine when there is nothing left to halt
// or destroy.
var ErrNotCreated = errors.New("machine not created")

// Machine is the part of a VM handle the policy needs.
type Machine interface {
	Halt(ctx context.Context) error
	Destroy(ctx context.Context) error
}

// Policy applies a Mode to a machine.
type Policy struct {
	Log *logger.Logger
}

// Apply issues at most one teardown command for mode. A machine reporting
// ErrNotCreated is logged and treated as already torn down, so applying
// Destroy repeatedly to the same handle succeeds.
func (p Policy) Apply(ctx context.Context, mode Mode, machine Machine) error {
	if machine == nil {
		return errors.New("shutdown: nil machine")
	}

	var (
		action string
		err    error
	)
	switch mode {
	case None:
		p.Log.Info("shutdown mode none, leaving machine running")
		return nil
	case Halt:
		action = "halt"
		err = machine.Halt(ctx)
	case Destroy, Unset:
		action = "destroy"
		err = machine.Destroy(ctx)
	default:
		return fmt.Errorf("shutdown: unknown mode %d", int(mode))
	}

	if errors.Is(err, ErrNotCreated) {
		p.Log.WarnErr(err, action+" skipped, machine already gone")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s machine: %w", action, err)
	}
	p.Log.Info(action + " complete")
	return nil
}
