//go:build !windows

// Package terminal runs a child program on a pseudo-terminal.
//
// The master side is put in non-blocking mode: Read returns ErrWouldBlock
// instead of waiting for the child, so callers can poll it and keep their
// own clock. The child is always reaped by a background goroutine, so no
// exit path leaves a zombie behind.
package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

var (
	ErrPtyCreation = errors.New("failed to create pty")
	ErrSpawnFailed = errors.New("failed to spawn command")
	ErrIO          = errors.New("pty i/o error")

	// ErrWouldBlock is returned by Read when the child has not written
	// anything yet. It is not a failure.
	ErrWouldBlock = errors.New("no data available")

	ErrNotStarted = errors.New("no child process")
	ErrClosed     = errors.New("session is closed")
)

const writeRetries = 2000

// Size is the terminal geometry reported to the child.
type Size struct {
	Rows uint16
	Cols uint16
}

var DefaultSize = Size{Rows: 24, Cols: 80}

// Session owns a pty pair and the child attached to it.
type Session struct {
	// Env is the child's environment, the parent's when nil.
	Env []string

	master *os.File
	slave  *os.File
	fd     int

	cmd     *exec.Cmd
	done    chan struct{}
	waitErr error

	mu     sync.Mutex
	closed bool
}

// Open allocates a pty pair with the given geometry.
func Open(size Size) (*Session, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPtyCreation, err)
	}

	if err := pty.Setsize(master, &pty.Winsize{Rows: size.Rows, Cols: size.Cols}); err != nil {
		master.Close()
		slave.Close()
		return nil, fmt.Errorf("%w: set size: %v", ErrPtyCreation, err)
	}

	fd := int(master.Fd())
	if err := unix.SetNonblock(fd, true); err != nil {
		master.Close()
		slave.Close()
		return nil, fmt.Errorf("%w: set non-blocking: %v", ErrPtyCreation, err)
	}

	return &Session{
		master: master,
		slave:  slave,
		fd:     fd,
	}, nil
}

// Spawn starts program with the slave side as its controlling terminal,
// stdin, stdout and stderr. The slave can only be handed out once.
func (s *Session) Spawn(program string, args []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%w: %v", ErrSpawnFailed, ErrClosed)
	}
	if s.slave == nil {
		return fmt.Errorf("%w: terminal already has a child", ErrSpawnFailed)
	}

	cmd := exec.Command(program, args...)
	cmd.Env = s.Env
	cmd.Stdin = s.slave
	cmd.Stdout = s.slave
	cmd.Stderr = s.slave
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
	}

	err := cmd.Start()

	// the child holds its own copy, ours would keep the master from
	// seeing EOF when the child exits
	s.slave.Close()
	s.slave = nil

	if err != nil {
		return fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	s.cmd = cmd
	s.done = make(chan struct{})
	go s.reap()

	log.WithField("pid", cmd.Process.Pid).WithField("program", program).Debug("spawned child on pty")
	return nil
}

// Environ returns the current environment without the named variables.
func Environ(hide ...string) []string {
	env := os.Environ()
	kept := make([]string, 0, len(env))
next:
	for _, kv := range env {
		for _, name := range hide {
			if strings.HasPrefix(kv, name+"=") {
				continue next
			}
		}
		kept = append(kept, kv)
	}
	return kept
}

func (s *Session) reap() {
	s.waitErr = s.cmd.Wait()
	close(s.done)
}

// Pid returns the child's process id, or 0 before Spawn.
func (s *Session) Pid() int {
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// Read reads child output from the master side. It never blocks: it
// returns ErrWouldBlock when nothing is available and io.EOF once the
// child side of the terminal has been closed.
func (s *Session) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(s.fd, p)
		switch err {
		case nil:
			if n == 0 {
				return 0, io.EOF
			}
			return n, nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return 0, ErrWouldBlock
		case unix.EIO:
			// linux reports a hung up slave as EIO rather than EOF
			return 0, io.EOF
		default:
			return 0, fmt.Errorf("%w: read: %v", ErrIO, err)
		}
	}
}

// Write writes all of p to the child's input.
func (s *Session) Write(p []byte) (int, error) {
	written := 0
	retries := 0
	for written < len(p) {
		n, err := unix.Write(s.fd, p[written:])
		switch err {
		case nil:
			written += n
			retries = 0
		case unix.EINTR:
		case unix.EAGAIN:
			retries++
			if retries > writeRetries {
				return written, fmt.Errorf("%w: write: child is not reading its input", ErrIO)
			}
			time.Sleep(time.Millisecond)
		default:
			return written, fmt.Errorf("%w: write: %v", ErrIO, err)
		}
	}
	return written, nil
}

// Flush exists for symmetry with buffered writers. Writes go straight to
// the master so there is nothing to flush, it only reports a closed session.
func (s *Session) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: flush: %v", ErrIO, ErrClosed)
	}
	return nil
}

// TryWait reports the child's exit code if it has already exited.
func (s *Session) TryWait() (int, bool) {
	if s.done == nil {
		return -1, false
	}
	select {
	case <-s.done:
		return s.exitCode(), true
	default:
		return -1, false
	}
}

// Done is closed once the child has exited and been reaped. It is nil
// before Spawn.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the child exits and returns its exit code. A child
// killed by a signal reports -1.
func (s *Session) Wait() (int, error) {
	if s.done == nil {
		return -1, ErrNotStarted
	}
	<-s.done
	if s.cmd.ProcessState == nil {
		return -1, s.waitErr
	}
	return s.exitCode(), nil
}

func (s *Session) exitCode() int {
	if s.cmd.ProcessState == nil {
		return -1
	}
	return s.cmd.ProcessState.ExitCode()
}

// Kill sends SIGKILL to the child's process group. Killing a child that
// has already been reaped is a no-op.
func (s *Session) Kill() error {
	if s.done == nil {
		return ErrNotStarted
	}
	if _, exited := s.TryWait(); exited {
		return nil
	}

	pid := s.cmd.Process.Pid
	// Setsid made the child a group leader
	err := unix.Kill(-pid, unix.SIGKILL)
	if err == nil || err == unix.ESRCH {
		return nil
	}
	log.WithError(err).WithField("pid", pid).Warn("kill process group")
	return s.cmd.Process.Kill()
}

// Close kills the child if it is still running, reaps it and releases the
// terminal. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.done != nil {
		if err := s.Kill(); err != nil {
			log.WithError(err).WithField("pid", s.Pid()).Error("kill child")
		}
		<-s.done
	}

	if s.slave != nil {
		s.slave.Close()
		s.slave = nil
	}
	return s.master.Close()
}
