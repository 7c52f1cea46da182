// Package remotehost provides the handle returned to callers after a
// successful lifecycle run: command execution plus file, package and service
// inspection on the provisioned machine.
package remotehost

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	"github.com/sudoblockio/ansible-vagrant/internal/sshconfig"
)

// Host is a machine reachable over the connection described by Descriptor.
type Host interface {
	Descriptor() sshconfig.Descriptor
	// Run executes command with args quoted for a POSIX shell.
	Run(ctx context.Context, command string, args ...string) (CommandResult, error)
	File(ctx context.Context, path string) (*File, error)
	ReadFile(ctx context.Context, path string) ([]byte, error)
	Package(ctx context.Context, name string) (PackageInfo, error)
	Service(ctx context.Context, name string) (ServiceInfo, error)
	Close() error
}

// Factory builds Host handles bound to a descriptor.
type Factory interface {
	New(desc sshconfig.Descriptor) (Host, error)
}

// CommandResult is the outcome of a remote command. A non-zero ExitStatus is
// not an error.
type CommandResult struct {
	Command    string
	Stdout     string
	Stderr     string
	ExitStatus int
}

// Succeeded reports a zero exit status.
func (r CommandResult) Succeeded() bool {
	return r.ExitStatus == 0
}

// File describes a remote path at the time it was inspected.
type File struct {
	Path        string
	Exists      bool
	IsFile      bool
	IsDirectory bool
	IsSymlink   bool
	Mode        fs.FileMode
	Size        int64

	read func(ctx context.Context) ([]byte, error)
}

// Contains reports whether the file's content includes substr.
func (f *File) Contains(ctx context.Context, substr string) (bool, error) {
	if f == nil || !f.Exists {
		return false, fmt.Errorf("%s: %w", f.pathOrEmpty(), fs.ErrNotExist)
	}
	if !f.IsFile {
		return false, fmt.Errorf("%s: not a regular file", f.Path)
	}
	data, err := f.read(ctx)
	if err != nil {
		return false, err
	}
	return strings.Contains(string(data), substr), nil
}

func (f *File) pathOrEmpty() string {
	if f == nil {
		return ""
	}
	return f.Path
}

// PackageInfo describes a package as reported by the system package database.
type PackageInfo struct {
	Name      string
	Installed bool
	Version   string
}

// ServiceInfo describes a systemd unit.
type ServiceInfo struct {
	Name    string
	Running bool
	Enabled bool
}

type commandRunner interface {
	Run(ctx context.Context, command string, args ...string) (CommandResult, error)
}

const exitCommandNotFound = 127

func inspectPackage(ctx context.Context, r commandRunner, name string) (PackageInfo, error) {
	info := PackageInfo{Name: name}

	res, err := r.Run(ctx, "dpkg-query", "-W", "-f=${Status} ${Version}", name)
	if err != nil {
		return info, err
	}
	if res.ExitStatus != exitCommandNotFound {
		fields := strings.Fields(res.Stdout)
		if res.Succeeded() && strings.Contains(res.Stdout, "ok installed") && len(fields) > 0 {
			info.Installed = true
			info.Version = fields[len(fields)-1]
		}
		return info, nil
	}

	res, err = r.Run(ctx, "rpm", "-q", "--qf", "%{VERSION}-%{RELEASE}", name)
	if err != nil {
		return info, err
	}
	if res.ExitStatus == exitCommandNotFound {
		return info, fmt.Errorf("package %s: neither dpkg-query nor rpm is available", name)
	}
	if res.Succeeded() {
		info.Installed = true
		info.Version = strings.TrimSpace(res.Stdout)
	}
	return info, nil
}

func inspectService(ctx context.Context, r commandRunner, name string) (ServiceInfo, error) {
	info := ServiceInfo{Name: name}

	active, err := r.Run(ctx, "systemctl", "is-active", name)
	if err != nil {
		return info, err
	}
	if active.ExitStatus == exitCommandNotFound {
		return info, fmt.Errorf("service %s: systemctl is not available", name)
	}
	info.Running = active.Succeeded()

	enabled, err := r.Run(ctx, "systemctl", "is-enabled", name)
	if err != nil {
		return info, err
	}
	info.Enabled = enabled.Succeeded()
	return info, nil
}

// ShellQuote quotes s for a POSIX shell.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./=:,@%+", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

func commandLine(command string, args []string) string {
	if len(args) == 0 {
		return command
	}
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, command)
	for _, a := range args {
		parts = append(parts, ShellQuote(a))
	}
	return strings.Join(parts, " ")
}
