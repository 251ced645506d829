package sshutil

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/ssh"

	"github.com/rileyhilliard/dnstail/internal/errors"
)

// tailBufferLines is the channel capacity between the remote session and
// the consumer. Big enough to ride out short consumer stalls without
// backpressuring the SSH channel.
const tailBufferLines = 64

// TailStream is a long-lived remote command whose output is consumed line
// by line. Lines() yields lines until the command exits or the connection
// drops; after the channel closes, Err() reports the terminal error (nil
// for a clean exit). A TailStream cannot be restarted.
type TailStream struct {
	session *ssh.Session
	lines   chan string

	mu  sync.Mutex
	err error

	closeOnce sync.Once
}

// Tail starts cmd on the remote host with a PTY (commands like
// "sudo pihole -t" need one) and returns a stream of its output lines.
func (c *Client) Tail(cmd string) (*TailStream, error) {
	session, err := c.Client.NewSession()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Failed to open a session on '%s'", c.Host),
			"Connection may have been closed. Try reconnecting.")
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty("xterm", 80, 40, modes); err != nil {
		session.Close()
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Failed to allocate PTY on '%s'", c.Host),
			"The remote host may not support pseudo-terminals.")
	}

	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Failed to attach to output of '%s'", cmd), "")
	}

	if err := session.Start(cmd); err != nil {
		session.Close()
		return nil, errors.WrapWithCode(err, errors.ErrStream,
			fmt.Sprintf("Failed to start '%s' on '%s'", cmd, c.Host),
			"Check the command exists on the remote host and sudo needs no password.")
	}

	t := &TailStream{
		session: session,
		lines:   make(chan string, tailBufferLines),
	}

	go t.scan(stdout, cmd)

	return t, nil
}

// scan reads remote output into the lines channel until the stream ends.
func (t *TailStream) scan(stdout io.Reader, cmd string) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		t.lines <- scanner.Text()
	}

	// Distinguish a read failure from command exit. Wait's error is the
	// interesting one when the scanner just saw EOF.
	var streamErr error
	if err := scanner.Err(); err != nil {
		streamErr = errors.WrapWithCode(err, errors.ErrStream,
			fmt.Sprintf("Lost the output stream of '%s'", cmd), "")
	} else if err := t.session.Wait(); err != nil {
		streamErr = errors.WrapWithCode(err, errors.ErrStream,
			fmt.Sprintf("'%s' exited", cmd), "")
	}

	t.mu.Lock()
	t.err = streamErr
	t.mu.Unlock()

	close(t.lines)
}

// Lines returns the channel of output lines. It is closed when the stream
// ends for any reason.
func (t *TailStream) Lines() <-chan string {
	return t.lines
}

// Err returns the terminal error, if any. Only meaningful after Lines()
// has closed.
func (t *TailStream) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Close tears down the remote session. The scanner goroutine sees the
// closed stream and finishes on its own; any lines it was still holding
// are drained so it can exit.
func (t *TailStream) Close() error {
	var err error
	t.closeOnce.Do(func() {
		err = t.session.Close()
		go func() {
			for range t.lines {
			}
		}()
	})
	return err
}
