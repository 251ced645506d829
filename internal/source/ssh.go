// Package source provides line sources for the merger. The only production
// implementation tails a remote command over SSH.
package source

import (
	"time"

	"github.com/rileyhilliard/dnstail/internal/logger"
	"github.com/rileyhilliard/dnstail/pkg/sshutil"
)

// DefaultCommand is the remote tail command. `pihole -t` follows the query
// log; it needs sudo on a stock install.
const DefaultCommand = "sudo pihole -t"

// Config describes one monitored host.
type Config struct {
	// Host is the SSH target: alias, hostname, or user@host[:port].
	Host string

	// User is the SSH username when Host doesn't carry one.
	User string

	// Command is the remote tail command; DefaultCommand when empty.
	Command string

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration
}

// SSH is a live line stream from a remote tail command. It satisfies the
// merger's Source contract.
type SSH struct {
	label  string
	client *sshutil.Client
	stream *sshutil.TailStream
	log    logger.Logger
}

// Open connects to the host and starts the tail command. Failure to connect
// is fatal for this source; since both monitored hosts must be reachable at
// startup, the caller treats it as fatal for the run.
func Open(cfg Config) (*SSH, error) {
	cmd := cfg.Command
	if cmd == "" {
		cmd = DefaultCommand
	}
	timeout := cfg.DialTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	client, err := sshutil.Dial(cfg.Host, cfg.User, timeout)
	if err != nil {
		return nil, err
	}

	stream, err := client.Tail(cmd)
	if err != nil {
		client.Close()
		return nil, err
	}

	return &SSH{
		label:  cfg.Host,
		client: client,
		stream: stream,
		log:    logger.NewEnvLogger("[source]"),
	}, nil
}

// Label returns the host name this source was opened against.
func (s *SSH) Label() string {
	return s.label
}

// Lines returns the stream of raw log lines. Closed when the remote
// command exits or the connection drops.
func (s *SSH) Lines() <-chan string {
	return s.stream.Lines()
}

// Err reports the stream's terminal error after Lines() has closed.
func (s *SSH) Err() error {
	return s.stream.Err()
}

// Close tears down the tail session and the SSH connection.
func (s *SSH) Close() error {
	s.log.Debug("closing %s", s.label)
	streamErr := s.stream.Close()
	if err := s.client.Close(); err != nil {
		return err
	}
	return streamErr
}
