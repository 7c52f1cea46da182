// Package ansible runs ansible-playbook against a provisioned machine and keeps
// the run's output in an artifact directory.
package ansible

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sudoblockio/ansible-vagrant/internal/execx"
	"github.com/sudoblockio/ansible-vagrant/internal/logger"
	"github.com/sudoblockio/ansible-vagrant/internal/sshconfig"
)

// DefaultBinary is the playbook executable looked up on PATH.
const DefaultBinary = "ansible-playbook"

// DefaultArtifactSubdir is used under the project directory when no artifact
// directory is given.
const DefaultArtifactSubdir = ".artifacts"

// Invocation is everything needed for one playbook run.
type Invocation struct {
	Playbook      string
	ProjectDir    string
	InventoryFile string
	InventoryMode InventoryMode
	ExtraVars     map[string]string
	ArtifactDir   string
	// RunID names the per-run artifact subdirectory.
	RunID      string
	Connection sshconfig.Descriptor
}

// Result is the outcome of a playbook run. ExitCode is non-zero on failure;
// Summary holds the failed tasks and hosts extracted from the output.
type Result struct {
	ExitCode    int
	Stdout      string
	Stderr      string
	ArtifactDir string
	Summary     string
}

// Runner builds and executes ansible-playbook command lines.
type Runner struct {
	Binary string
	Exec   execx.Runner
	Log    *logger.Logger
	// Stream receives live playbook output when set.
	Stream io.Writer
}

// Run executes the playbook. The returned error covers failures to prepare or
// start the run; a playbook that ran and failed is reported via Result.ExitCode.
func (r *Runner) Run(ctx context.Context, inv Invocation) (Result, error) {
	if inv.Playbook == "" {
		return Result{}, errors.New("ansible: playbook is required")
	}
	if inv.RunID == "" {
		inv.RunID = time.Now().UTC().Format("20060102T150405Z")
	}
	if inv.ArtifactDir == "" {
		inv.ArtifactDir = filepath.Join(inv.ProjectDir, DefaultArtifactSubdir)
	}
	// ansible-playbook runs from ProjectDir; relative paths must not depend on it.
	artifactDir, err := filepath.Abs(inv.ArtifactDir)
	if err != nil {
		return Result{}, fmt.Errorf("resolve artifact dir: %w", err)
	}
	inv.ArtifactDir = artifactDir

	runDir := filepath.Join(inv.ArtifactDir, "artifacts", inv.RunID)
	envDir := filepath.Join(inv.ArtifactDir, "env")
	for _, dir := range []string{runDir, envDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Result{}, fmt.Errorf("create artifact dir: %w", err)
		}
	}

	inventory, err := r.inventory(inv)
	if err != nil {
		return Result{}, err
	}

	varsFile := filepath.Join(envDir, "extravars")
	if err := writeExtraVars(varsFile, MergeExtraVars(inv.ExtraVars, inv.Connection)); err != nil {
		return Result{}, err
	}

	args := []string{"-i", inventory, "--extra-vars", "@" + varsFile, inv.Playbook}
	cmd := execx.Command{
		Name:   r.binary(),
		Args:   args,
		Dir:    inv.ProjectDir,
		Env:    Env(inv.ProjectDir),
		Stdout: r.Stream,
		Stderr: r.Stream,
	}

	log := r.Log.WithFields(map[string]any{"playbook": inv.Playbook, "inventory": inventory})
	log.Info("running playbook")

	res, err := r.exec().Run(ctx, cmd)
	out := Result{
		ExitCode:    res.ExitCode,
		Stdout:      res.Stdout,
		Stderr:      res.Stderr,
		ArtifactDir: runDir,
	}
	if writeErr := writeOutputs(runDir, cmd, out); writeErr != nil {
		log.WarnErr(writeErr, "failed to write playbook artifacts")
	}
	if err != nil {
		return out, fmt.Errorf("run %s: %w", r.binary(), err)
	}
	if out.ExitCode != 0 {
		out.Summary = SummarizeFailures(out.Stdout + "\n" + out.Stderr)
	}
	return out, nil
}

func (r *Runner) inventory(inv Invocation) (string, error) {
	if inv.InventoryMode == InventoryAuto && inv.InventoryFile != "" {
		return inv.InventoryFile, nil
	}
	hosts, err := PlayHosts(inv.Playbook)
	if err != nil {
		return "", err
	}
	return HostList(hosts), nil
}

func (r *Runner) binary() string {
	if r.Binary != "" {
		return r.Binary
	}
	return DefaultBinary
}

func (r *Runner) exec() execx.Runner {
	if r.Exec != nil {
		return r.Exec
	}
	return execx.OSRunner{}
}

// Env returns the ansible settings applied to every run.
func Env(projectDir string) map[string]string {
	env := map[string]string{
		"ANSIBLE_HOST_KEY_CHECKING":   "False",
		"ANSIBLE_RETRY_FILES_ENABLED": "False",
	}
	if projectDir != "" {
		env["ANSIBLE_ROLES_PATH"] = filepath.Join(projectDir, "roles")
	}
	return env
}

// MergeExtraVars layers the connection variables over the user's extra vars.
func MergeExtraVars(user map[string]string, conn sshconfig.Descriptor) map[string]any {
	merged := make(map[string]any, len(user)+8)
	for k, v := range user {
		merged[k] = v
	}
	for k, v := range ConnectionVars(conn) {
		merged[k] = v
	}
	return merged
}

func writeExtraVars(path string, vars map[string]any) error {
	data, err := yaml.Marshal(vars)
	if err != nil {
		return fmt.Errorf("encode extra vars: %w", err)
	}
	// Holds the private key path.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write extra vars: %w", err)
	}
	return nil
}

func writeOutputs(dir string, cmd execx.Command, res Result) error {
	files := map[string]string{
		"stdout":  res.Stdout,
		"stderr":  res.Stderr,
		"rc":      strconv.Itoa(res.ExitCode),
		"command": strings.Join(cmd.Argv(), " "),
	}
	var errs []error
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content+"\n"), 0o644); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
