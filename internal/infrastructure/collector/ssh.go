package collector

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pricing/backend/internal/infrastructure/config"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const defaultSSHPort = "22"

// SSHDialer returns a Dialer authenticating with the host's password. Host
// keys are checked against knownHostsFile unless it is empty.
func SSHDialer(knownHostsFile string, timeout time.Duration) (Dialer, error) {
	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if knownHostsFile != "" {
		cb, err := knownhosts.New(knownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts: %w", err)
		}
		hostKeyCallback = cb
	}

	return func(ctx context.Context, host config.CollectorHost) (CommandRunner, error) {
		addr := hostAddress(host.Address)
		clientConfig := &ssh.ClientConfig{
			User:            host.User,
			Auth:            []ssh.AuthMethod{ssh.Password(host.Password)},
			HostKeyCallback: hostKeyCallback,
			Timeout:         timeout,
		}

		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
		}
		if timeout > 0 {
			_ = conn.SetDeadline(time.Now().Add(timeout))
		}
		c, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
		}
		_ = conn.SetDeadline(time.Time{})

		return &sshRunner{client: ssh.NewClient(c, chans, reqs)}, nil
	}, nil
}

func hostAddress(address string) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	return net.JoinHostPort(address, defaultSSHPort)
}

type sshRunner struct {
	client *ssh.Client
}

// Run executes command in a new session. Cancelling ctx closes the session.
func (r *sshRunner) Run(ctx context.Context, command string) ([]byte, []byte, error) {
	session, err := r.client.NewSession()
	if err != nil {
		return nil, nil, err
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		_ = session.Close()
		return nil, nil, ctx.Err()
	case err := <-done:
		return stdout.Bytes(), stderr.Bytes(), err
	}
}

func (r *sshRunner) Close() error {
	return r.client.Close()
}
