package remotehost

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/sudoblockio/ansible-vagrant/internal/logger"
	"github.com/sudoblockio/ansible-vagrant/internal/sshconfig"
)

// DefaultDialTimeout bounds the TCP connect and SSH handshake.
const DefaultDialTimeout = 30 * time.Second

// SSHFactory builds hosts that connect lazily over SSH on first use.
type SSHFactory struct {
	// Timeout overrides a ConnectTimeout option on the descriptor. With
	// neither, DefaultDialTimeout applies.
	Timeout time.Duration
	// HostKeyCallback defaults to ssh.InsecureIgnoreHostKey.
	HostKeyCallback ssh.HostKeyCallback
	Log             *logger.Logger
}

var _ Factory = SSHFactory{}

// New implements Factory. It validates the descriptor but does not dial.
func (f SSHFactory) New(desc sshconfig.Descriptor) (Host, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = connectTimeout(desc)
	}
	callback := f.HostKeyCallback
	if callback == nil {
		callback = ssh.InsecureIgnoreHostKey()
	}
	return &sshHost{
		desc:            desc,
		timeout:         timeout,
		hostKeyCallback: callback,
		log:             f.Log.With("host", desc.Address()),
	}, nil
}

// connectTimeout honours a ConnectTimeout option (in seconds) from the
// ssh-config output.
func connectTimeout(desc sshconfig.Descriptor) time.Duration {
	if raw, ok := desc.Option("ConnectTimeout"); ok {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return DefaultDialTimeout
}

type sshHost struct {
	desc            sshconfig.Descriptor
	timeout         time.Duration
	hostKeyCallback ssh.HostKeyCallback
	log             *logger.Logger

	mu     sync.Mutex
	client *ssh.Client
	sftp   *sftp.Client
	closed bool
}

var _ Host = (*sshHost)(nil)

func (h *sshHost) Descriptor() sshconfig.Descriptor {
	return h.desc
}

func (h *sshHost) String() string {
	return h.desc.SSHURL()
}

func (h *sshHost) connect(ctx context.Context) (*ssh.Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, errors.New("remotehost: host is closed")
	}
	if h.client != nil {
		return h.client, nil
	}

	auth, err := publicKeyAuth(h.desc.IdentityFile)
	if err != nil {
		return nil, err
	}
	config := &ssh.ClientConfig{
		User:            h.desc.User,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: h.hostKeyCallback,
		Timeout:         h.timeout,
	}

	addr := h.desc.Address()
	dialer := net.Dialer{Timeout: h.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(h.timeout))
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Time{})

	h.client = ssh.NewClient(sshConn, chans, reqs)
	h.log.Debug("ssh connection established")
	return h.client, nil
}

func publicKeyAuth(path string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read private key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("unable to parse private key %s: %w", path, err)
	}
	return ssh.PublicKeys(signer), nil
}

func (h *sshHost) Run(ctx context.Context, command string, args ...string) (CommandResult, error) {
	line := commandLine(command, args)
	result := CommandResult{Command: line, ExitStatus: -1}

	client, err := h.connect(ctx)
	if err != nil {
		return result, err
	}
	session, err := client.NewSession()
	if err != nil {
		return result, fmt.Errorf("unable to create SSH session: %w", err)
	}
	defer func() { _ = session.Close() }()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(line) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		return result, ctx.Err()
	case err = <-done:
	}

	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	var exitErr *ssh.ExitError
	switch {
	case err == nil:
		result.ExitStatus = 0
	case errors.As(err, &exitErr):
		result.ExitStatus = exitErr.ExitStatus()
	default:
		return result, fmt.Errorf("remote command %q failed: %w", line, err)
	}
	h.log.With("command", line).Debug(fmt.Sprintf("exit status %d", result.ExitStatus))
	return result, nil
}

func (h *sshHost) sftpClient(ctx context.Context) (*sftp.Client, error) {
	client, err := h.connect(ctx)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sftp != nil {
		return h.sftp, nil
	}
	sc, err := sftp.NewClient(client)
	if err != nil {
		return nil, fmt.Errorf("start sftp session: %w", err)
	}
	h.sftp = sc
	return sc, nil
}

func (h *sshHost) File(ctx context.Context, path string) (*File, error) {
	sc, err := h.sftpClient(ctx)
	if err != nil {
		return nil, err
	}

	f := &File{Path: path, read: func(ctx context.Context) ([]byte, error) { return h.ReadFile(ctx, path) }}

	linfo, err := sc.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	f.Exists = true
	f.IsSymlink = linfo.Mode()&fs.ModeSymlink != 0

	info := linfo
	if f.IsSymlink {
		// A dangling link still exists as a link.
		if target, err := sc.Stat(path); err == nil {
			info = target
		}
	}
	f.IsFile = info.Mode().IsRegular()
	f.IsDirectory = info.IsDir()
	f.Mode = info.Mode()
	f.Size = info.Size()
	return f, nil
}

func (h *sshHost) ReadFile(ctx context.Context, path string) ([]byte, error) {
	sc, err := h.sftpClient(ctx)
	if err != nil {
		return nil, err
	}
	remote, err := sc.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = remote.Close() }()

	data, err := io.ReadAll(remote)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func (h *sshHost) Package(ctx context.Context, name string) (PackageInfo, error) {
	return inspectPackage(ctx, h, name)
}

func (h *sshHost) Service(ctx context.Context, name string) (ServiceInfo, error) {
	return inspectService(ctx, h, name)
}

// Close releases the SSH and SFTP sessions. It is safe to call repeatedly.
func (h *sshHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	var errs []error
	if h.sftp != nil {
		if err := h.sftp.Close(); err != nil && !errors.Is(err, io.EOF) {
			errs = append(errs, err)
		}
		h.sftp = nil
	}
	if h.client != nil {
		if err := h.client.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
		h.client = nil
	}
	return errors.Join(errs...)
}
