package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sudoblockio/ansible-vagrant/internal/ansible"
	"github.com/sudoblockio/ansible-vagrant/internal/execx"
	"github.com/sudoblockio/ansible-vagrant/internal/lifecycle"
	"github.com/sudoblockio/ansible-vagrant/internal/project"
	"github.com/sudoblockio/ansible-vagrant/internal/remotehost"
	"github.com/sudoblockio/ansible-vagrant/internal/shutdown"
	"github.com/sudoblockio/ansible-vagrant/internal/tui"
)

type runOptions struct {
	Playbook       string
	VagrantFile    string
	Provider       string
	Machine        string
	ExtraVars      []string
	Inventory      string
	InventoryMode  string
	ArtifactDir    string
	ProjectDir     string
	Shutdown       shutdown.Mode
	IsolateState   bool
	AssertFiles    []string
	AssertServices []string
	AssertPackages []string

	ConfigPath     string
	Verbose        bool
	NonInteractive bool
}

func (o runOptions) hasAssertions() bool {
	return len(o.AssertFiles)+len(o.AssertServices)+len(o.AssertPackages) > 0
}

// runDeps are the seams the run command needs for tests.
type runDeps struct {
	orchestratorOptions lifecycle.Options
	getenv              func(string) string
}

var runCmdRunner = runLifecycle

func newRunCmd(root *rootFlags) *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Bring a machine up, apply a playbook, run assertions and tear it down",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Verbose = root.verbose
			opts.ConfigPath = root.configPath
			opts.NonInteractive = !isTerminal(cmd.OutOrStdout())

			if err := validateRunOptions(opts); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runCmdRunner(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), opts, runDeps{getenv: os.Getenv})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Playbook, "playbook", "p", "", "Playbook to apply, relative to the project directory")
	f.StringVar(&opts.VagrantFile, "vagrant-file", "", "Vagrantfile to use (default: Vagrantfile in the project directory)")
	f.StringVar(&opts.Provider, "provider", "", "Vagrant provider: virtualbox or libvirt")
	f.StringVarP(&opts.Machine, "machine", "m", "", "Machine name in a multi-machine Vagrantfile")
	f.StringArrayVarP(&opts.ExtraVars, "extra-vars", "e", nil, "Extra variable as key=value (repeatable)")
	f.StringVarP(&opts.Inventory, "inventory", "i", "", "Inventory file or host list passed to ansible-playbook")
	f.StringVar(&opts.InventoryMode, "inventory-mode", "", "auto or synthesized")
	f.StringVar(&opts.ArtifactDir, "artifact-dir", "", "Directory for playbook artifacts (default: <project>/.artifacts)")
	f.StringVar(&opts.ProjectDir, "project-dir", "", "Ansible project directory (default: current directory)")
	f.Var(&opts.Shutdown, "shutdown", "Teardown mode: halt, destroy or none (default: destroy)")
	f.BoolVar(&opts.IsolateState, "isolate-state", false, "Keep vagrant state for this run in its own directory")
	f.StringArrayVar(&opts.AssertFiles, "assert-file", nil, "Assert that a file exists on the machine (repeatable)")
	f.StringArrayVar(&opts.AssertServices, "assert-service", nil, "Assert that a service is running (repeatable)")
	f.StringArrayVar(&opts.AssertPackages, "assert-package", nil, "Assert that a package is installed (repeatable)")
	cmd.MarkFlagRequired("playbook") //nolint:errcheck

	return cmd
}

func runLifecycle(ctx context.Context, stdout, stderr io.Writer, opts runOptions, deps runDeps) error {
	extraVars, err := parseExtraVars(opts.ExtraVars)
	if err != nil {
		return err
	}
	inventoryMode, err := ansible.ParseInventoryMode(opts.InventoryMode)
	if err != nil {
		return err
	}

	startDir := opts.ProjectDir
	if startDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		startDir = project.InferProjectDir(wd)
	}
	settings, err := project.LoadOrDefault(opts.ConfigPath, startDir)
	if err != nil {
		return err
	}
	if deps.getenv != nil {
		if err := settings.ApplyEnv(deps.getenv); err != nil {
			return err
		}
	}

	logOut := stderr
	if !opts.NonInteractive && !opts.Verbose {
		logOut = io.Discard
	}
	log, err := newLogger(opts.Verbose, logOut)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	info := tui.Info{
		Playbook:     opts.Playbook,
		Machine:      opts.Machine,
		ShutdownMode: shutdown.Resolve(opts.Shutdown, settings.ShutdownMode).String(),
	}
	var rep reporter
	if opts.NonInteractive {
		rep = &summaryReporter{recorder: tui.NewRecorder(info, opts.hasAssertions()), out: stdout}
	} else {
		rep = startProgram(tui.NewModel(info, opts.hasAssertions(), false), stdout, cancel)
	}

	orchOpts := deps.orchestratorOptions
	orchOpts.Logger = log
	orchOpts.Settings = settings
	orchOpts.IsolateState = orchOpts.IsolateState || opts.IsolateState
	orchOpts.OnTransition = rep.Transition
	if orchOpts.Machines == nil {
		orchOpts.Machines = lifecycle.VagrantMachines(execx.OSRunner{Echo: streamTo(opts, stderr), EchoErr: streamTo(opts, stderr)})
	}
	if orchOpts.Configurer == nil {
		orchOpts.Configurer = &ansible.Runner{Log: log.With("component", "ansible"), Stream: streamTo(opts, stderr)}
	}

	fin := &lifecycle.Finalizers{}
	defer fin.Run()

	host, runErr := lifecycle.New(orchOpts).Run(ctx, lifecycle.Request{
		Playbook:      opts.Playbook,
		VagrantFile:   opts.VagrantFile,
		Provider:      opts.Provider,
		Machine:       opts.Machine,
		ExtraVars:     extraVars,
		InventoryFile: opts.Inventory,
		InventoryMode: inventoryMode,
		ArtifactDir:   opts.ArtifactDir,
		ProjectDir:    opts.ProjectDir,
		ShutdownMode:  opts.Shutdown,
	}, fin)
	if runErr == nil {
		runErr = runAssertions(ctx, host, opts, rep)
	}

	fin.Run()
	if err := rep.Finish(runErr); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func streamTo(opts runOptions, w io.Writer) io.Writer {
	if opts.NonInteractive && opts.Verbose {
		return w
	}
	return nil
}

func runAssertions(ctx context.Context, host remotehost.Host, opts runOptions, rep reporter) error {
	failed := 0
	report := func(passed bool, message string) {
		if !passed {
			failed++
		}
		rep.Assertion(passed, message)
	}

	for _, path := range opts.AssertFiles {
		f, err := host.File(ctx, path)
		if err != nil {
			report(false, fmt.Sprintf("file %s: %v", path, err))
			continue
		}
		report(f.Exists, fmt.Sprintf("file %s exists", path))
	}
	for _, name := range opts.AssertServices {
		svc, err := host.Service(ctx, name)
		if err != nil {
			report(false, fmt.Sprintf("service %s: %v", name, err))
			continue
		}
		report(svc.Running, fmt.Sprintf("service %s running", name))
	}
	for _, name := range opts.AssertPackages {
		pkg, err := host.Package(ctx, name)
		if err != nil {
			report(false, fmt.Sprintf("package %s: %v", name, err))
			continue
		}
		msg := fmt.Sprintf("package %s installed", name)
		if pkg.Version != "" {
			msg += " (" + pkg.Version + ")"
		}
		report(pkg.Installed, msg)
	}

	if failed > 0 {
		return fmt.Errorf("%d assertion(s) failed", failed)
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
