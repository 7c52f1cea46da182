// Package lifecycle provisions a vagrant machine, configures it with
// ansible-playbook and hands back a remote host, guaranteeing teardown
// through a registered finalizer.
package lifecycle

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/sudoblockio/ansible-vagrant/internal/ansible"
	"github.com/sudoblockio/ansible-vagrant/internal/execx"
	"github.com/sudoblockio/ansible-vagrant/internal/logger"
	"github.com/sudoblockio/ansible-vagrant/internal/preflight"
	"github.com/sudoblockio/ansible-vagrant/internal/project"
	"github.com/sudoblockio/ansible-vagrant/internal/remotehost"
	"github.com/sudoblockio/ansible-vagrant/internal/shutdown"
	"github.com/sudoblockio/ansible-vagrant/internal/sshconfig"
	"github.com/sudoblockio/ansible-vagrant/internal/vagrant"
	avErrors "github.com/sudoblockio/ansible-vagrant/pkg/errors"
)

// Machine is a VM handle the orchestrator drives.
type Machine interface {
	Up(ctx context.Context) error
	SSHConfig(ctx context.Context) (string, error)
	shutdown.Machine
}

// MachineConfig is what a MachineFactory needs to address one machine.
type MachineConfig struct {
	VagrantFile string
	Provider    string
	Name        string
	DotfilePath string
	Log         *logger.Logger
}

// MachineFactory creates the handle for one run.
type MachineFactory func(cfg MachineConfig) Machine

// VagrantMachines returns a MachineFactory backed by the vagrant CLI.
func VagrantMachines(runner execx.Runner) MachineFactory {
	return func(cfg MachineConfig) Machine {
		client := &vagrant.Client{
			VagrantFile: cfg.VagrantFile,
			Provider:    cfg.Provider,
			DotfilePath: cfg.DotfilePath,
			Runner:      runner,
			Log:         cfg.Log,
		}
		return client.Machine(cfg.Name)
	}
}

// Configurer applies a playbook to a provisioned machine.
type Configurer interface {
	Run(ctx context.Context, inv ansible.Invocation) (ansible.Result, error)
}

// Options configures an Orchestrator. Zero values select production
// implementations.
type Options struct {
	Machines   MachineFactory
	Configurer Configurer
	Hosts      remotehost.Factory
	LookPath   preflight.LookPathFunc
	Logger     *logger.Logger
	Settings   *project.Settings

	// OnTransition observes every state change. It runs synchronously on the
	// orchestrating goroutine.
	OnTransition func(Transition)

	// IsolateState gives each run its own VAGRANT_DOTFILE_PATH under
	// StateRoot, defaulting to <project>/.vagrant/runs.
	IsolateState bool
	StateRoot    string

	// RequireLayout rejects project directories without tests/ and roles/.
	RequireLayout bool

	// SkipManifest disables writing run.yaml to the artifact directory.
	SkipManifest bool

	Getwd func() (string, error)
	Now   func() time.Time
}

// Orchestrator runs lifecycles. It holds only read-only defaults and may be
// shared by concurrent runs.
type Orchestrator struct {
	opts Options
}

// New returns an Orchestrator with defaults filled in.
func New(opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Machines == nil {
		opts.Machines = VagrantMachines(execx.OSRunner{})
	}
	if opts.Configurer == nil {
		opts.Configurer = &ansible.Runner{Log: opts.Logger.With("component", "ansible")}
	}
	if opts.Hosts == nil {
		opts.Hosts = remotehost.SSHFactory{Log: opts.Logger.With("component", "remotehost")}
	}
	if opts.LookPath == nil {
		opts.LookPath = exec.LookPath
	}
	if opts.Settings == nil {
		opts.Settings = &project.Settings{}
	}
	if opts.Getwd == nil {
		opts.Getwd = os.Getwd
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{opts: opts}
}

// Run executes the lifecycle and returns the configured host. Teardown is
// registered with reg before the machine is touched and runs when reg's scope
// ends, whatever the outcome.
func (o *Orchestrator) Run(ctx context.Context, req Request, reg Registrar) (remotehost.Host, error) {
	session, err := o.Start(ctx, req, reg)
	if err != nil {
		return nil, err
	}
	return session.Host(), nil
}

// Start is Run returning the whole Session. On failure the session is still
// returned when teardown was registered, so callers can inspect its state.
func (o *Orchestrator) Start(ctx context.Context, req Request, reg Registrar) (*Session, error) {
	if reg == nil {
		return nil, avErrors.NewValidationError("registrar", "a registrar is required to guarantee teardown", nil)
	}

	resolved, err := o.resolve(req)
	if err != nil {
		return nil, err
	}

	if err := preflight.Require(o.opts.LookPath, preflight.BinariesFor(resolved.Provider)...); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	log := o.opts.Logger.WithFields(map[string]any{
		"run_id":   id,
		"machine":  machineLabel(resolved.Machine),
		"provider": resolved.Provider,
	})

	var dotfile string
	if o.opts.IsolateState {
		root := o.opts.StateRoot
		if root == "" {
			root = filepath.Join(resolved.ProjectDir, ".vagrant", "runs")
		}
		dotfile = filepath.Join(root, id)
	}

	s := &Session{
		id:        id,
		req:       resolved,
		log:       log,
		policy:    shutdown.Policy{Log: log.With("phase", avErrors.PhaseTeardown.String())},
		observer:  o.opts.OnTransition,
		teardownC: context.WithoutCancel(ctx),
		startedAt: o.opts.Now(),
	}
	s.machine = o.opts.Machines(MachineConfig{
		VagrantFile: resolved.VagrantFile,
		Provider:    resolved.Provider,
		Name:        resolved.Machine,
		DotfilePath: dotfile,
		Log:         log.With("component", "vagrant"),
	})

	reg.Cleanup(s.Teardown)

	err = o.execute(ctx, s)
	if !o.opts.SkipManifest && s.configureAttempted {
		o.writeManifest(s)
	}
	return s, err
}

func (o *Orchestrator) execute(ctx context.Context, s *Session) error {
	req := s.req

	s.transition(State{Phase: Provisioning})
	s.log.With("phase", avErrors.PhaseProvision.String()).Info("bringing machine up")
	if err := s.machine.Up(ctx); err != nil {
		return s.fail(avErrors.PhaseProvision, &avErrors.ProvisionError{
			Machine: req.Machine,
			Tail:    tailOf(err),
			Err:     err,
		})
	}
	s.transition(State{Phase: Provisioned})

	connectLog := s.log.With("phase", avErrors.PhaseConnect.String())
	raw, err := s.machine.SSHConfig(ctx)
	if err != nil {
		return s.fail(avErrors.PhaseConnect, avErrors.NewConnectionParseError("describe connection", err))
	}
	desc, err := sshconfig.Parse(raw, req.Machine)
	if err != nil {
		return s.fail(avErrors.PhaseConnect, err)
	}
	s.setDescriptor(desc)
	host, err := o.opts.Hosts.New(desc)
	if err != nil {
		return s.fail(avErrors.PhaseConnect, avErrors.NewConnectionParseError("build remote host", err))
	}
	s.setHost(host)
	connectLog.With("address", desc.Address()).Info("connection described")

	s.transition(State{Phase: Configuring})
	s.configureAttempted = true
	result, err := o.opts.Configurer.Run(ctx, ansible.Invocation{
		Playbook:      req.Playbook,
		ProjectDir:    req.ProjectDir,
		InventoryFile: req.InventoryFile,
		InventoryMode: req.InventoryMode,
		ExtraVars:     req.ExtraVars,
		ArtifactDir:   req.ArtifactDir,
		RunID:         s.id,
		Connection:    desc,
	})
	s.setResult(result)
	if err != nil {
		return s.fail(avErrors.PhaseConfigure, &avErrors.ConfigurationError{
			Playbook: req.Playbook,
			ExitCode: result.ExitCode,
			Err:      err,
		})
	}
	if result.ExitCode != 0 {
		return s.fail(avErrors.PhaseConfigure, &avErrors.ConfigurationError{
			Playbook: req.Playbook,
			ExitCode: result.ExitCode,
			Summary:  result.Summary,
			Tail:     avErrors.Tail(avErrors.JoinOutput(result.Stdout, result.Stderr), avErrors.DefaultTailLines),
		})
	}

	s.transition(State{Phase: Configured})
	s.log.Info("machine configured")
	return nil
}

func (o *Orchestrator) writeManifest(s *Session) {
	desc := s.Descriptor()
	req := s.req
	rev, err := project.Revision(req.ProjectDir)
	if err != nil {
		s.log.WarnErr(err, "could not read project revision")
	}

	m := project.Manifest{
		RunID:        s.id,
		Playbook:     req.Playbook,
		VagrantFile:  req.VagrantFile,
		Provider:     req.Provider,
		Machine:      req.Machine,
		ShutdownMode: req.Mode.String(),
		Inventory:    req.InventoryFile,
		Revision:     rev,
		ExitCode:     s.Result().ExitCode,
		StartedAt:    s.startedAt,
		FinishedAt:   o.opts.Now(),
	}
	if desc.Host != "" {
		m.Connection = desc.SSHURL()
	}
	if _, err := project.WriteManifest(s.RunArtifactDir(), m); err != nil {
		s.log.WarnErr(err, "could not write run manifest")
	}
}

func tailOf(err error) string {
	var cmdErr *avErrors.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Tail(avErrors.DefaultTailLines)
	}
	return ""
}

func machineLabel(name string) string {
	if name == "" {
		return "default"
	}
	return name
}
