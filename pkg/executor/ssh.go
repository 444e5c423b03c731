package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/newtron-network/nvconf/pkg/util"
)

// SSHConfig describes how to reach a Cumulus switch.
type SSHConfig struct {
	Host           string
	Port           int // 0 means 22
	User           string
	Password       string
	IdentityFile   string // private key path; tried before the password
	KnownHostsFile string // empty disables host key verification
	NVPath         string
	DialTimeout    time.Duration
}

func (c SSHConfig) addr() string {
	port := c.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

func (c SSHConfig) clientConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if c.IdentityFile != "" {
		key, err := os.ReadFile(c.IdentityFile)
		if err != nil {
			return nil, fmt.Errorf("reading identity %s: %w", c.IdentityFile, err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parsing identity %s: %w", c.IdentityFile, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if c.Password != "" {
		auth = append(auth, ssh.Password(c.Password))
	}
	if len(auth) == 0 {
		return nil, util.NewValidationError("ssh: password or identity file required")
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if c.KnownHostsFile != "" {
		cb, err := knownhosts.New(c.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("loading known hosts: %w", err)
		}
		hostKey = cb
	}

	timeout := c.DialTimeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	}, nil
}

// SSHExecutor runs nv on a remote switch. One SSH connection is held for
// the executor's lifetime; each command gets its own session.
type SSHExecutor struct {
	host   string
	nvPath string
	client *ssh.Client
}

// DialSSH connects to the switch described by cfg.
func DialSSH(cfg SSHConfig) (*SSHExecutor, error) {
	clientCfg, err := cfg.clientConfig()
	if err != nil {
		return nil, err
	}

	client, err := ssh.Dial("tcp", cfg.addr(), clientCfg)
	if err != nil {
		return nil, fmt.Errorf("SSH dial %s: %w", cfg.Host, err)
	}
	util.WithDevice(cfg.Host).Debug("ssh connected")

	nvPath := cfg.NVPath
	if nvPath == "" {
		nvPath = DefaultNVPath
	}
	return &SSHExecutor{host: cfg.Host, nvPath: nvPath, client: client}, nil
}

// Host returns the switch address this executor talks to.
func (e *SSHExecutor) Host() string {
	return e.host
}

// Execute runs "<nv> <commandLine>" in a new SSH session. The remote shell
// does the word splitting.
func (e *SSHExecutor) Execute(ctx context.Context, commandLine string) (*Result, error) {
	if e.client == nil {
		return nil, util.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	session, err := e.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("SSH session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			session.Close()
		case <-done:
		}
	}()

	res := &Result{}
	if err := session.Run(e.nvPath + " " + commandLine); err != nil {
		var exitErr *ssh.ExitError
		if !errors.As(err, &exitErr) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("SSH exec '%s': %w", commandLine, err)
		}
		res.ExitCode = exitErr.ExitStatus()
	}
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	return res, nil
}

// Close closes the SSH connection.
func (e *SSHExecutor) Close() error {
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}
