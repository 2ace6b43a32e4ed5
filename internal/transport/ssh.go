package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

const defaultDialTimeout = 30 * time.Second

var defaultKeyNames = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

// SSHOpts configures how DialSSH authenticates and verifies the server.
type SSHOpts struct {
	KeyFile         string        // empty = agent plus ~/.ssh defaults
	Password        string        // empty = no password auth
	Port            int           // 0 = DefaultSFTPPort
	Timeout         time.Duration // 0 = 30s
	InsecureHostKey bool          // skip known_hosts verification
}

// DialSSH connects to host as userName (the current user when empty).
//
// Auth methods are offered in order: the SSH agent when SSH_AUTH_SOCK is set,
// then SSHOpts.KeyFile or the default keys under ~/.ssh, then the password.
func DialSSH(ctx context.Context, host, userName string, opts SSHOpts) (*ssh.Client, error) {
	if userName == "" {
		u, err := user.Current()
		if err != nil {
			return nil, fmt.Errorf("determine current user: %w", err)
		}
		userName = u.Username
	}

	port := opts.Port
	if port == 0 {
		port = DefaultSFTPPort
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultDialTimeout
	}

	auth := authMethods(opts)
	if len(auth) == 0 {
		return nil, errors.New("no SSH auth methods available (set SSH_AUTH_SOCK, a key file or a password)")
	}

	hostKey, err := hostKeyCallback(opts.InsecureHostKey)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", addr, err)
	}
	if deadline, ok := dialCtx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, &ssh.ClientConfig{
		User:            userName,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake %s: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Time{})
	return ssh.NewClient(c, chans, reqs), nil
}

func authMethods(opts SSHOpts) []ssh.AuthMethod {
	var methods []ssh.AuthMethod

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		}
	}

	for _, keyPath := range keyFiles(opts.KeyFile) {
		if m := keyFileAuth(keyPath); m != nil {
			methods = append(methods, m)
		}
	}

	if opts.Password != "" {
		methods = append(methods, ssh.Password(opts.Password))
	}
	return methods
}

// keyFiles returns explicit, or the default key paths when explicit is empty.
func keyFiles(explicit string) []string {
	if explicit != "" {
		return []string{explicit}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	paths := make([]string, 0, len(defaultKeyNames))
	for _, name := range defaultKeyNames {
		paths = append(paths, filepath.Join(home, ".ssh", name))
	}
	return paths
}

func keyFileAuth(path string) ssh.AuthMethod {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		slog.Debug("skipping unusable key", "path", path, "error", err)
		return nil
	}
	return ssh.PublicKeys(signer)
}

// hostKeyCallback verifies against ~/.ssh/known_hosts. Without a readable
// known_hosts file the server key is accepted with a warning.
func hostKeyCallback(insecure bool) (ssh.HostKeyCallback, error) {
	if insecure {
		//nolint:gosec // explicitly requested by the workspace config
		return ssh.InsecureIgnoreHostKey(), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("locate known_hosts: %w", err)
	}
	path := filepath.Join(home, ".ssh", "known_hosts")
	cb, err := knownhosts.New(path)
	if err != nil {
		slog.Warn("host key not verified", "known_hosts", path, "error", err)
		//nolint:gosec // fallback for systems without known_hosts
		return ssh.InsecureIgnoreHostKey(), nil
	}
	return cb, nil
}
