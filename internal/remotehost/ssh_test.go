package remotehost

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/sudoblockio/ansible-vagrant/internal/sshconfig"
)

// startTestServer runs an SSH server on loopback that executes commands with
// the local shell and serves the sftp subsystem from the local filesystem.
func startTestServer(t *testing.T) sshconfig.Descriptor {
	t.Helper()

	_, clientKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKey(clientKey, "")
	require.NoError(t, err)
	keyPath := filepath.Join(t.TempDir(), "private_key")
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(block), 0o600))
	clientSigner, err := ssh.NewSignerFromKey(clientKey)
	require.NoError(t, err)

	_, hostKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	hostSigner, err := ssh.NewSignerFromKey(hostKey)
	require.NoError(t, err)

	config := &ssh.ServerConfig{
		PublicKeyCallback: func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if conn.User() == "vagrant" && bytes.Equal(key.Marshal(), clientSigner.PublicKey().Marshal()) {
				return nil, nil
			}
			return nil, errors.New("unauthorized")
		},
	}
	config.AddHostKey(hostSigner)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveConn(conn, config)
		}
	}()

	host, portText, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portText)
	require.NoError(t, err)

	desc, err := sshconfig.NewDescriptor("default", host, port, "vagrant", keyPath, nil)
	require.NoError(t, err)
	return desc
}

func serveConn(conn net.Conn, config *ssh.ServerConfig) {
	_, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		_ = conn.Close()
		return
	}
	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "unsupported channel type")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			continue
		}
		go serveSession(channel, requests)
	}
}

func serveSession(channel ssh.Channel, requests <-chan *ssh.Request) {
	defer func() { _ = channel.Close() }()

	for req := range requests {
		switch req.Type {
		case "exec":
			var payload struct{ Command string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
				_ = req.Reply(false, nil)
				continue
			}
			_ = req.Reply(true, nil)

			cmd := exec.Command("sh", "-c", payload.Command)
			cmd.Stdout = channel
			cmd.Stderr = channel.Stderr()
			status := 0
			if err := cmd.Run(); err != nil {
				var exitErr *exec.ExitError
				if errors.As(err, &exitErr) {
					status = exitErr.ExitCode()
				} else {
					status = 127
				}
			}
			_, _ = channel.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{uint32(status)}))
			return
		case "subsystem":
			var payload struct{ Name string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil || payload.Name != "sftp" {
				_ = req.Reply(false, nil)
				continue
			}
			_ = req.Reply(true, nil)
			server, err := sftp.NewServer(channel)
			if err != nil {
				return
			}
			_ = server.Serve()
			return
		default:
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
		}
	}
}

func skipWithoutPOSIX(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("POSIX shell assumptions do not hold on Windows")
	}
}

func newTestHost(t *testing.T) Host {
	t.Helper()
	host, err := SSHFactory{Timeout: 5 * time.Second}.New(startTestServer(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = host.Close() })
	return host
}

func TestSSHHostRun(t *testing.T) {
	skipWithoutPOSIX(t)
	host := newTestHost(t)
	ctx := context.Background()

	res, err := host.Run(ctx, "echo", "hello world")
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	require.Equal(t, "hello world\n", res.Stdout)
	require.Equal(t, "echo 'hello world'", res.Command)

	res, err = host.Run(ctx, "echo oops >&2; exit 3")
	require.NoError(t, err)
	require.Equal(t, 3, res.ExitStatus)
	require.Equal(t, "oops\n", res.Stderr)
}

func TestSSHHostFileInspection(t *testing.T) {
	skipWithoutPOSIX(t)
	host := newTestHost(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "testfile")
	require.NoError(t, os.WriteFile(path, []byte("managed by ansible\n"), 0o640))
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(path, link))

	f, err := host.File(ctx, path)
	require.NoError(t, err)
	require.True(t, f.Exists)
	require.True(t, f.IsFile)
	require.False(t, f.IsDirectory)
	require.Equal(t, int64(len("managed by ansible\n")), f.Size)
	require.Equal(t, os.FileMode(0o640), f.Mode.Perm())

	ok, err := f.Contains(ctx, "ansible")
	require.NoError(t, err)
	require.True(t, ok)

	d, err := host.File(ctx, dir)
	require.NoError(t, err)
	require.True(t, d.IsDirectory)
	_, err = d.Contains(ctx, "x")
	require.Error(t, err)

	l, err := host.File(ctx, link)
	require.NoError(t, err)
	require.True(t, l.IsSymlink)
	require.True(t, l.IsFile)

	missing, err := host.File(ctx, filepath.Join(dir, "missing"))
	require.NoError(t, err)
	require.False(t, missing.Exists)
	_, err = missing.Contains(ctx, "x")
	require.ErrorIs(t, err, os.ErrNotExist)

	data, err := host.ReadFile(ctx, path)
	require.NoError(t, err)
	require.Equal(t, "managed by ansible\n", string(data))
}

func TestSSHHostRejectsWrongUser(t *testing.T) {
	skipWithoutPOSIX(t)
	desc := startTestServer(t)
	wrong, err := sshconfig.NewDescriptor("default", desc.Host, desc.Port, "root", desc.IdentityFile, nil)
	require.NoError(t, err)

	host, err := SSHFactory{Timeout: 5 * time.Second}.New(wrong)
	require.NoError(t, err)
	defer host.Close()

	_, err = host.Run(context.Background(), "true")
	require.ErrorContains(t, err, "ssh handshake")
}

func TestFactoryDoesNotDial(t *testing.T) {
	t.Parallel()

	desc, err := sshconfig.NewDescriptor("default", "127.0.0.1", 1, "vagrant", "/nonexistent/key", nil)
	require.NoError(t, err)

	host, err := SSHFactory{}.New(desc)
	require.NoError(t, err)
	require.Equal(t, desc.SSHURL(), host.Descriptor().SSHURL())

	_, err = host.Run(context.Background(), "true")
	require.ErrorContains(t, err, "unable to read private key")

	require.NoError(t, host.Close())
	require.NoError(t, host.Close())
	_, err = host.Run(context.Background(), "true")
	require.ErrorContains(t, err, "closed")
}

func TestFactoryConnectTimeout(t *testing.T) {
	t.Parallel()

	withOption, err := sshconfig.NewDescriptor("default", "127.0.0.1", 22, "vagrant", "/k", map[string]string{"ConnectTimeout": "7"})
	require.NoError(t, err)
	bogus, err := sshconfig.NewDescriptor("default", "127.0.0.1", 22, "vagrant", "/k", map[string]string{"ConnectTimeout": "soon"})
	require.NoError(t, err)

	cases := []struct {
		name    string
		factory SSHFactory
		desc    sshconfig.Descriptor
		want    time.Duration
	}{
		{name: "option", desc: withOption, want: 7 * time.Second},
		{name: "invalid option", desc: bogus, want: DefaultDialTimeout},
		{name: "factory wins", factory: SSHFactory{Timeout: time.Second}, desc: withOption, want: time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			host, err := tc.factory.New(tc.desc)
			require.NoError(t, err)
			require.Equal(t, tc.want, host.(*sshHost).timeout)
		})
	}
}

func TestFactoryRejectsInvalidDescriptor(t *testing.T) {
	t.Parallel()

	_, err := SSHFactory{}.New(sshconfig.Descriptor{Host: "h"})
	require.Error(t, err)
}

func TestRunHonoursContext(t *testing.T) {
	skipWithoutPOSIX(t)
	host := newTestHost(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := host.Run(ctx, "sleep 5")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
