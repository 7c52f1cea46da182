// Package vagrant drives machines through the vagrant command-line tool.
package vagrant

import (
	"context"
	"path/filepath"

	"github.com/sudoblockio/ansible-vagrant/internal/execx"
	"github.com/sudoblockio/ansible-vagrant/internal/logger"
	avErrors "github.com/sudoblockio/ansible-vagrant/pkg/errors"
)

// DefaultBinary is the executable looked up on PATH.
const DefaultBinary = "vagrant"

// Client holds the settings shared by every machine of one Vagrantfile.
type Client struct {
	Binary      string
	VagrantFile string
	Provider    string
	// DotfilePath isolates vagrant's state directory when set.
	DotfilePath string
	Runner      execx.Runner
	Log         *logger.Logger
}

// Machine returns a handle for name. An empty name addresses the primary
// (or only) machine of the Vagrantfile.
func (c *Client) Machine(name string) *Machine {
	return &Machine{client: c, name: name}
}

func (c *Client) binary() string {
	if c.Binary != "" {
		return c.Binary
	}
	return DefaultBinary
}

func (c *Client) runner() execx.Runner {
	if c.Runner != nil {
		return c.Runner
	}
	return execx.OSRunner{}
}

// Env returns the variables that point vagrant at the configured Vagrantfile.
func (c *Client) Env() map[string]string {
	env := map[string]string{}
	if c.VagrantFile != "" {
		env["VAGRANT_CWD"] = filepath.Dir(c.VagrantFile)
		env["VAGRANT_VAGRANTFILE"] = filepath.Base(c.VagrantFile)
	}
	if c.DotfilePath != "" {
		env["VAGRANT_DOTFILE_PATH"] = c.DotfilePath
	}
	return env
}

func (c *Client) run(ctx context.Context, args ...string) (execx.Result, error) {
	cmd := execx.Command{
		Name: c.binary(),
		Args: args,
		Env:  c.Env(),
	}
	if c.VagrantFile != "" {
		cmd.Dir = filepath.Dir(c.VagrantFile)
	}

	c.Log.With("command", cmd.String()).Debug("running vagrant")
	res, err := c.runner().Run(ctx, cmd)
	if err != nil {
		return res, &avErrors.CommandError{
			Command:  cmd.Argv(),
			ExitCode: res.ExitCode,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
			Err:      err,
		}
	}
	if !res.Success() {
		c.Log.WithFields(map[string]any{
			"command":   cmd.String(),
			"exit_code": res.ExitCode,
			"output":    avErrors.Tail(execx.PrimaryOutput(res), avErrors.DefaultTailLines),
		}).Warn("vagrant command failed")
		return res, &avErrors.CommandError{
			Command:  cmd.Argv(),
			ExitCode: res.ExitCode,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
		}
	}
	return res, nil
}
