package errors

import (
	"fmt"
	"strings"
)

// DefaultTailLines is the number of trailing output lines kept in diagnostics.
const DefaultTailLines = 20

// Phase identifies the lifecycle phase responsible for a failure.
type Phase int

const (
	// PhaseRequest covers request resolution before any external call.
	PhaseRequest Phase = iota + 1
	// PhasePreflight covers the required-binary lookup.
	PhasePreflight
	// PhaseProvision covers bringing the machine up.
	PhaseProvision
	// PhaseConnect covers describing and parsing the machine connection.
	PhaseConnect
	// PhaseConfigure covers the configuration-management run.
	PhaseConfigure
	// PhaseTeardown covers the shutdown policy.
	PhaseTeardown
)

func (p Phase) String() string {
	switch p {
	case PhaseRequest:
		return "request"
	case PhasePreflight:
		return "preflight"
	case PhaseProvision:
		return "provision"
	case PhaseConnect:
		return "connect"
	case PhaseConfigure:
		return "configure"
	case PhaseTeardown:
		return "teardown"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// PhaseError is implemented by every error surfaced from a lifecycle run.
type PhaseError interface {
	error
	Phase() Phase
}

var (
	_ PhaseError = (*ValidationError)(nil)
	_ PhaseError = (*VagrantfileNotFoundError)(nil)
	_ PhaseError = (*PlaybookNotFoundError)(nil)
	_ PhaseError = (*InvalidProjectLayoutError)(nil)
	_ PhaseError = (*MissingBinaryError)(nil)
	_ PhaseError = (*ProvisionError)(nil)
	_ PhaseError = (*ConnectionParseError)(nil)
	_ PhaseError = (*AmbiguousMachineError)(nil)
	_ PhaseError = (*HostNotFoundError)(nil)
	_ PhaseError = (*ConfigurationError)(nil)
)

// Tail returns the last n non-empty-trailing lines of s.
func Tail(s string, n int) string {
	s = strings.TrimRight(s, "\r\n\t ")
	if s == "" || n <= 0 {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// ValidationError captures request or settings validation issues.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Phase implements PhaseError.
func (e *ValidationError) Phase() Phase { return PhaseRequest }

// VagrantfileNotFoundError reports a missing VM definition file.
type VagrantfileNotFoundError struct {
	Path string
}

func (e *VagrantfileNotFoundError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("Vagrantfile not found at: %q", e.Path)
}

// Phase implements PhaseError.
func (e *VagrantfileNotFoundError) Phase() Phase { return PhaseRequest }

// PlaybookNotFoundError reports a playbook that could not be resolved.
type PlaybookNotFoundError struct {
	Playbook   string
	ProjectDir string
	Tried      string
}

func (e *PlaybookNotFoundError) Error() string {
	if e == nil {
		return ""
	}
	if e.Tried != "" && e.Tried != e.Playbook {
		return fmt.Sprintf("playbook not found relative to project_dir. project_dir=%q, playbook=%q, tried=%q",
			e.ProjectDir, e.Playbook, e.Tried)
	}
	return fmt.Sprintf("playbook not found: %q", e.Playbook)
}

// Phase implements PhaseError.
func (e *PlaybookNotFoundError) Phase() Phase { return PhaseRequest }

// InvalidProjectLayoutError reports a project directory without roles/ or tests/.
type InvalidProjectLayoutError struct {
	ProjectDir string
	Missing    []string
}

func (e *InvalidProjectLayoutError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("invalid ansible project layout: expected sibling 'tests' and 'roles' under project_dir; "+
		"resolved project_dir=%q, missing=%s", e.ProjectDir, strings.Join(e.Missing, ", "))
}

// Phase implements PhaseError.
func (e *InvalidProjectLayoutError) Phase() Phase { return PhaseRequest }

// MissingBinaryError reports a required executable absent from PATH.
// Binary is the first missing name; Missing lists all of them.
type MissingBinaryError struct {
	Binary  string
	Missing []string
}

// NewMissingBinaryError constructs a MissingBinaryError from the missing names in lookup order.
func NewMissingBinaryError(missing []string) error {
	if len(missing) == 0 {
		return nil
	}
	return &MissingBinaryError{Binary: missing[0], Missing: append([]string(nil), missing...)}
}

func (e *MissingBinaryError) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Missing) > 1 {
		return fmt.Sprintf("missing required binaries: %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("missing required binary: %s", e.Binary)
}

// Phase implements PhaseError.
func (e *MissingBinaryError) Phase() Phase { return PhasePreflight }

// CommandError represents an external command that exited non-zero.
type CommandError struct {
	Command  []string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s exited with code %d", strings.Join(e.Command, " "), e.ExitCode)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if tail := e.Tail(DefaultTailLines); tail != "" {
		msg = fmt.Sprintf("%s: %s", msg, tail)
	}
	return msg
}

// Unwrap exposes the underlying error.
func (e *CommandError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Tail returns the last n lines of the captured output, stderr after stdout.
func (e *CommandError) Tail(n int) string {
	if e == nil {
		return ""
	}
	return Tail(joinOutput(e.Stdout, e.Stderr), n)
}

// ProvisionError reports a failure bringing the machine up.
type ProvisionError struct {
	Machine string
	Tail    string
	Err     error
}

func (e *ProvisionError) Error() string {
	if e == nil {
		return ""
	}
	target := e.Machine
	if target == "" {
		target = "default"
	}
	msg := fmt.Sprintf("provision error: machine %s failed to come up", target)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	} else if e.Tail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Tail)
	}
	return msg
}

// Unwrap exposes the underlying error.
func (e *ProvisionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Phase implements PhaseError.
func (e *ProvisionError) Phase() Phase { return PhaseProvision }

// ConnectionParseError reports malformed or unusable connection metadata.
type ConnectionParseError struct {
	Message string
	Err     error
}

// NewConnectionParseError constructs a ConnectionParseError.
func NewConnectionParseError(message string, err error) error {
	return &ConnectionParseError{Message: message, Err: err}
}

func (e *ConnectionParseError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("ssh-config error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("ssh-config error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ConnectionParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Phase implements PhaseError.
func (e *ConnectionParseError) Phase() Phase { return PhaseConnect }

// AmbiguousMachineError reports several machine blocks with no selector.
// It unwraps to a ConnectionParseError.
type AmbiguousMachineError struct {
	Machines []string
}

func (e *AmbiguousMachineError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("ssh-config error: %d machines found (%s); a machine name is required",
		len(e.Machines), strings.Join(e.Machines, ", "))
}

// Unwrap returns the ConnectionParseError this error specialises.
func (e *AmbiguousMachineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return &ConnectionParseError{Message: "ambiguous machine"}
}

// Phase implements PhaseError.
func (e *AmbiguousMachineError) Phase() Phase { return PhaseConnect }

// HostNotFoundError reports a machine selector with no matching block.
// It unwraps to a ConnectionParseError.
type HostNotFoundError struct {
	Machine   string
	Available []string
}

func (e *HostNotFoundError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("ssh-config error: host %q not found. Available: [%s]", e.Machine, strings.Join(e.Available, ", "))
}

// Unwrap returns the ConnectionParseError this error specialises.
func (e *HostNotFoundError) Unwrap() error {
	if e == nil {
		return nil
	}
	return &ConnectionParseError{Message: "host not found"}
}

// Phase implements PhaseError.
func (e *HostNotFoundError) Phase() Phase { return PhaseConnect }

// ConfigurationError reports a failed configuration-management run. Summary
// holds the extracted task/host failures when the output contained any.
type ConfigurationError struct {
	Playbook string
	ExitCode int
	Summary  string
	Tail     string
	Err      error
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("configuration error: playbook %s failed", e.Playbook)
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	msg = fmt.Sprintf("%s (rc=%d)", msg, e.ExitCode)
	if e.Summary != "" {
		return fmt.Sprintf("%s:\n%s", msg, e.Summary)
	}
	if e.Tail != "" {
		return fmt.Sprintf("%s:\n%s", msg, e.Tail)
	}
	return msg
}

// Unwrap exposes the underlying error.
func (e *ConfigurationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Phase implements PhaseError.
func (e *ConfigurationError) Phase() Phase { return PhaseConfigure }

func joinOutput(stdout, stderr string) string {
	stdout = strings.TrimSpace(stdout)
	stderr = strings.TrimSpace(stderr)
	switch {
	case stdout == "":
		return stderr
	case stderr == "":
		return stdout
	default:
		return stdout + "\n" + stderr
	}
}

// JoinOutput concatenates stdout and stderr for diagnostics.
func JoinOutput(stdout, stderr string) string {
	return joinOutput(stdout, stderr)
}
