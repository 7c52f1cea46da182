package vagrant

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sudoblockio/ansible-vagrant/internal/shutdown"
)

// State values reported by `vagrant status --machine-readable`.
const (
	StateNotCreated = "not_created"
	StateRunning    = "running"
	StatePowerOff   = "poweroff"
	StateShutoff    = "shutoff"
	StateSaved      = "saved"
)

// Machine is a handle on one vagrant machine. It remembers a successful
// destroy so later teardown calls do not spawn another process.
type Machine struct {
	client *Client
	name   string

	mu        sync.Mutex
	destroyed bool
}

var _ shutdown.Machine = (*Machine)(nil)

// Name returns the machine selector, empty for the primary machine.
func (m *Machine) Name() string {
	return m.name
}

func (m *Machine) args(base ...string) []string {
	if m.name != "" {
		return append(base, m.name)
	}
	return base
}

// Up brings the machine up with the client's provider. Vagrant treats this as
// a no-op for a running machine.
func (m *Machine) Up(ctx context.Context) error {
	args := []string{"up"}
	if m.client.Provider != "" {
		args = append(args, "--provider", m.client.Provider)
	}
	if _, err := m.client.run(ctx, m.args(args...)...); err != nil {
		return err
	}

	m.mu.Lock()
	m.destroyed = false
	m.mu.Unlock()
	return nil
}

// SSHConfig returns the raw connection description for the machine.
func (m *Machine) SSHConfig(ctx context.Context) (string, error) {
	res, err := m.client.run(ctx, m.args("ssh-config")...)
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// Halt powers the machine off, keeping its disk.
func (m *Machine) Halt(ctx context.Context) error {
	if m.isDestroyed() {
		return shutdown.ErrNotCreated
	}
	if _, err := m.client.run(ctx, m.args("halt")...); err != nil {
		return m.classify(ctx, err)
	}
	return nil
}

// Destroy removes the machine without prompting.
func (m *Machine) Destroy(ctx context.Context) error {
	if m.isDestroyed() {
		return shutdown.ErrNotCreated
	}
	if _, err := m.client.run(ctx, m.args("destroy", "-f")...); err != nil {
		return m.classify(ctx, err)
	}

	m.mu.Lock()
	m.destroyed = true
	m.mu.Unlock()
	return nil
}

// Status returns the machine state reported by vagrant.
func (m *Machine) Status(ctx context.Context) (string, error) {
	res, err := m.client.run(ctx, m.args("status", "--machine-readable")...)
	if err != nil {
		return "", err
	}
	states := ParseStatus(res.Stdout)
	if state, ok := states[m.name]; ok {
		return state, nil
	}
	if m.name == "" && len(states) == 1 {
		for _, state := range states {
			return state, nil
		}
	}
	return "", fmt.Errorf("vagrant status: no state reported for machine %q", m.name)
}

func (m *Machine) isDestroyed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.destroyed
}

// classify turns a teardown failure on a machine that does not exist into
// shutdown.ErrNotCreated.
func (m *Machine) classify(ctx context.Context, err error) error {
	state, statusErr := m.Status(ctx)
	if statusErr == nil && state == StateNotCreated {
		return fmt.Errorf("%w: %v", shutdown.ErrNotCreated, err)
	}
	return err
}

// ParseStatus extracts target→state pairs from machine-readable status output.
// Rows look like "1700000000,default,state,running".
func ParseStatus(out string) map[string]string {
	states := map[string]string{}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Split(strings.TrimSpace(line), ",")
		if len(fields) < 4 || fields[2] != "state" {
			continue
		}
		states[fields[1]] = fields[3]
	}
	return states
}
