package statestore

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// RemoteConfig holds the SSH connection settings for a remote state store.
type RemoteConfig struct {
	// Host is the remote hostname or IP address.
	Host string `json:"host" yaml:"host"`

	// Port is the SSH port (default: 22).
	Port int `json:"port" yaml:"port"`

	// User is the SSH username.
	User string `json:"user" yaml:"user"`

	// PrivateKeyPath is the path to the private key file. Empty means
	// the default key locations under ~/.ssh are tried.
	PrivateKeyPath string `json:"private_key_path,omitempty" yaml:"private_key_path,omitempty"`

	// PrivateKeyPassphrase is the passphrase for encrypted private keys.
	PrivateKeyPassphrase string `json:"-" yaml:"-"`

	// Password enables password authentication when set.
	Password string `json:"-" yaml:"-"`

	// KnownHostsPath is the path to the known_hosts file. If empty,
	// host key verification is disabled (not recommended outside dev).
	KnownHostsPath string `json:"known_hosts_path,omitempty" yaml:"known_hosts_path,omitempty"`

	// ConnectionTimeout is the timeout for establishing a connection.
	ConnectionTimeout time.Duration `json:"connection_timeout,omitempty" yaml:"connection_timeout,omitempty"`
}

// DefaultRemoteConfig returns a RemoteConfig with sensible defaults.
func DefaultRemoteConfig(host, user string) *RemoteConfig {
	return &RemoteConfig{
		Host:              host,
		Port:              22,
		User:              user,
		KnownHostsPath:    filepath.Join(os.Getenv("HOME"), ".ssh", "known_hosts"),
		ConnectionTimeout: 30 * time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c *RemoteConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.User == "" {
		return fmt.Errorf("user is required")
	}
	if c.Password == "" && c.PrivateKeyPath == "" {
		homeDir := os.Getenv("HOME")
		for _, keyPath := range []string{
			filepath.Join(homeDir, ".ssh", "id_ed25519"),
			filepath.Join(homeDir, ".ssh", "id_rsa"),
			filepath.Join(homeDir, ".ssh", "id_ecdsa"),
		} {
			if _, err := os.Stat(keyPath); err == nil {
				c.PrivateKeyPath = keyPath
				break
			}
		}
		if c.PrivateKeyPath == "" {
			return fmt.Errorf("no password set and no private key found")
		}
	}
	return nil
}

// Address returns the formatted SSH address (host:port).
func (c *RemoteConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// buildClientConfig creates an ssh.ClientConfig from the RemoteConfig.
func (c *RemoteConfig) buildClientConfig() (*ssh.ClientConfig, error) {
	var authMethods []ssh.AuthMethod

	if c.Password != "" {
		authMethods = append(authMethods, ssh.Password(c.Password))
	}
	if c.PrivateKeyPath != "" {
		keyBytes, err := os.ReadFile(c.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}
		var signer ssh.Signer
		if c.PrivateKeyPassphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(keyBytes, []byte(c.PrivateKeyPassphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(keyBytes)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}

	var hostKeyCallback ssh.HostKeyCallback
	if c.KnownHostsPath != "" {
		var err error
		hostKeyCallback, err = knownhosts.New(c.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts: %w", err)
		}
	} else {
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	}

	timeout := c.ConnectionTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}, nil
}

// RemoteStore deletes state directories on a remote host via SFTP.
// The connection is established lazily on the first RemovePath call and
// reused afterwards.
type RemoteStore struct {
	config *RemoteConfig
	logger zerolog.Logger

	mu         sync.Mutex
	sshClient  *ssh.Client
	sftpClient *sftp.Client
}

// NewRemoteStore creates a remote state store over SSH/SFTP.
func NewRemoteStore(config *RemoteConfig, logger zerolog.Logger) (*RemoteStore, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid remote config: %w", err)
	}
	return &RemoteStore{
		config: config,
		logger: logger.With().Str("component", "remote-store").Str("host", config.Host).Logger(),
	}, nil
}

// RemovePath recursively deletes path on the remote host. A missing
// path is success.
func (s *RemoteStore) RemovePath(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("state path is empty")
	}
	if path == "/" {
		return fmt.Errorf("refusing to remove filesystem root on %s", s.config.Host)
	}

	client, err := s.client(ctx)
	if err != nil {
		return err
	}

	info, err := client.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug().Str("path", path).Msg("remote state path already absent")
			return nil
		}
		return fmt.Errorf("failed to stat remote path %s: %w", path, err)
	}

	if err := s.removeAll(client, path, info.IsDir()); err != nil {
		return err
	}
	s.logger.Debug().Str("path", path).Msg("remote state path removed")
	return nil
}

// Close tears down the SSH connection, if one was established.
func (s *RemoteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sftpClient != nil {
		_ = s.sftpClient.Close()
		s.sftpClient = nil
	}
	if s.sshClient != nil {
		err := s.sshClient.Close()
		s.sshClient = nil
		return err
	}
	return nil
}

// client returns the SFTP client, dialing on first use.
func (s *RemoteStore) client(ctx context.Context) (*sftp.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sftpClient != nil {
		return s.sftpClient, nil
	}

	clientConfig, err := s.config.buildClientConfig()
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Str("address", s.config.Address()).Msg("establishing SSH connection")

	type dialResult struct {
		client *ssh.Client
		err    error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		client, err := ssh.Dial("tcp", s.config.Address(), clientConfig)
		resultCh <- dialResult{client, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultCh:
		if res.err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", s.config.Address(), res.err)
		}
		s.sshClient = res.client
	}

	sftpClient, err := sftp.NewClient(s.sshClient)
	if err != nil {
		_ = s.sshClient.Close()
		s.sshClient = nil
		return nil, fmt.Errorf("failed to create SFTP client: %w", err)
	}
	s.sftpClient = sftpClient
	return sftpClient, nil
}

// removeAll deletes a remote file or directory tree. SFTP has no
// recursive remove, so directories are walked depth-first.
func (s *RemoteStore) removeAll(client *sftp.Client, target string, isDir bool) error {
	if !isDir {
		if err := client.Remove(target); err != nil {
			return fmt.Errorf("failed to remove remote file %s: %w", target, err)
		}
		return nil
	}

	entries, err := client.ReadDir(target)
	if err != nil {
		return fmt.Errorf("failed to read remote dir %s: %w", target, err)
	}
	for _, entry := range entries {
		child := path.Join(target, entry.Name())
		if err := s.removeAll(client, child, entry.IsDir()); err != nil {
			return err
		}
	}
	if err := client.RemoveDirectory(target); err != nil {
		return fmt.Errorf("failed to remove remote dir %s: %w", target, err)
	}
	return nil
}
