package lifecycle

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/sudoblockio/ansible-vagrant/internal/ansible"
	"github.com/sudoblockio/ansible-vagrant/internal/logger"
	"github.com/sudoblockio/ansible-vagrant/internal/remotehost"
	"github.com/sudoblockio/ansible-vagrant/internal/shutdown"
	"github.com/sudoblockio/ansible-vagrant/internal/sshconfig"
	avErrors "github.com/sudoblockio/ansible-vagrant/pkg/errors"
)

// Session is one lifecycle run. It is created by Orchestrator.Start and owns
// the machine until Teardown.
type Session struct {
	id        string
	req       resolvedRequest
	log       *logger.Logger
	policy    shutdown.Policy
	observer  func(Transition)
	teardownC context.Context
	startedAt time.Time
	machine   Machine

	mu         sync.Mutex
	state      State
	descriptor sshconfig.Descriptor
	host       remotehost.Host
	result     ansible.Result

	configureAttempted bool
	teardownOnce       sync.Once
}

// ID returns the run identifier used for logs and artifacts.
func (s *Session) ID() string { return s.id }

// Machine returns the machine name, empty for the Vagrantfile's default.
func (s *Session) Machine() string { return s.req.Machine }

// ShutdownMode returns the mode Teardown applies.
func (s *Session) ShutdownMode() shutdown.Mode { return s.req.Mode }

// ArtifactDir returns the root directory for playbook artifacts.
func (s *Session) ArtifactDir() string { return s.req.ArtifactDir }

// RunArtifactDir returns the per-run directory holding playbook output and
// the run manifest.
func (s *Session) RunArtifactDir() string {
	return filepath.Join(s.req.ArtifactDir, "artifacts", s.id)
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Descriptor returns the parsed connection, zero until the connect phase
// succeeds.
func (s *Session) Descriptor() sshconfig.Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.descriptor
}

// Host returns the remote host handle. It is built in the connect phase and
// nil before then; commands against it are only meaningful once the run
// reached Configured.
func (s *Session) Host() remotehost.Host {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.host
}

// Result returns the playbook result, zero if configuration never ran.
func (s *Session) Result() ansible.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Teardown closes the host and applies the shutdown mode. It runs once;
// later calls return immediately. Failures are logged, never returned, so
// they cannot mask the error that ended the run.
func (s *Session) Teardown() {
	s.teardownOnce.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error(fmt.Errorf("panic: %v", r), "teardown panicked")
				s.mu.Lock()
				s.state = State{Phase: TornDown, FailedPhase: s.state.FailedPhase, Err: s.state.Err}
				s.mu.Unlock()
			}
		}()

		if host := s.Host(); host != nil {
			if err := host.Close(); err != nil {
				s.log.WarnErr(err, "close remote host")
			}
		}
		if err := s.policy.Apply(s.teardownC, s.req.Mode, s.machine); err != nil {
			s.log.WarnErr(err, "teardown failed")
		}
		s.markTornDown()
	})
}

func (s *Session) markTornDown() {
	s.mu.Lock()
	cur := s.state
	s.mu.Unlock()
	if cur.Phase == TornDown {
		return
	}
	s.transition(State{Phase: TornDown, FailedPhase: cur.FailedPhase, Err: cur.Err})
}

func (s *Session) fail(phase avErrors.Phase, err error) error {
	s.transition(State{Phase: Errored, FailedPhase: phase, Err: err})
	s.log.With("phase", phase.String()).Error(err, phase.String()+" failed")
	return err
}

func (s *Session) transition(to State) {
	s.mu.Lock()
	from := s.state
	if !canTransition(from.Phase, to.Phase) {
		s.mu.Unlock()
		s.log.Warn(fmt.Sprintf("ignoring transition %s -> %s", from, to))
		return
	}
	s.state = to
	s.mu.Unlock()

	s.log.With("state", to.String()).Debug("state changed")
	if s.observer != nil {
		s.observer(Transition{RunID: s.id, Machine: s.req.Machine, From: from, To: to})
	}
}

func (s *Session) setDescriptor(d sshconfig.Descriptor) {
	s.mu.Lock()
	s.descriptor = d
	s.mu.Unlock()
}

func (s *Session) setResult(r ansible.Result) {
	s.mu.Lock()
	s.result = r
	s.mu.Unlock()
}

func (s *Session) setHost(h remotehost.Host) {
	s.mu.Lock()
	s.host = h
	s.mu.Unlock()
}
