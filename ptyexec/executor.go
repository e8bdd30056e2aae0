// Package ptyexec types passwords into programs that only accept them on
// their controlling terminal.
//
// The executor spawns the program on a pseudo-terminal, watches its output
// for a prompt, types the secret followed by a newline, repeats for the
// configured number of prompts, then collects the remaining output and
// the exit status:
//
//	awaiting prompt (n) -> draining output -> waiting for exit -> done
//
// Any failure kills the child, reaps it and discards the output captured
// so far. Every buffer that held child output is zeroed before it is
// dropped.
package ptyexec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/awnumar/memguard"
	log "github.com/sirupsen/logrus"

	"github.com/bitmark-inc/keystore-wallet/ansi"
	"github.com/bitmark-inc/keystore-wallet/secret"
	"github.com/bitmark-inc/keystore-wallet/terminal"
)

var (
	ErrPtyCreation   = terminal.ErrPtyCreation
	ErrSpawnFailed   = terminal.ErrSpawnFailed
	ErrIO            = terminal.ErrIO
	ErrTimeout       = errors.New("operation timed out")
	ErrCommandFailed = errors.New("command failed")

	ErrNoSecret = errors.New("no secret to type")
)

const (
	DefaultPollInterval = 10 * time.Millisecond

	readSize = 1024

	// empty reads tolerated after the child exited before the drain stops
	drainIdleReads = 2
)

// Executor runs programs on a pty and answers their password prompts.
// The zero value is usable. An Executor holds no per-run state and may be
// shared between goroutines.
type Executor struct {
	// Size is the terminal geometry, DefaultSize when zero.
	Size terminal.Size

	// Detector recognises prompts, ColonPrompt when nil.
	Detector Detector

	// PollInterval is the sleep between reads that found no data.
	PollInterval time.Duration

	// Registry, when set, lets RunJob callers be cancelled from elsewhere.
	Registry *Registry

	// Env is the child's environment, the parent's when nil. See
	// terminal.Environ.
	Env []string
}

func New() *Executor {
	return &Executor{
		Size:         terminal.DefaultSize,
		Detector:     ColonPrompt,
		PollInterval: DefaultPollInterval,
	}
}

// Run spawns program and types pw into each of the cfg.PromptCount()
// prompts.
//
// A non-zero exit status is not an error, it is reported in the Result.
func (e *Executor) Run(program string, args []string, pw *secret.Secret, cfg RunConfig) (Result, error) {
	return e.run("", program, args, []*secret.Secret{pw}, cfg)
}

// RunSecrets is Run with a different secret per prompt: prompt i receives
// secrets[i], and the last secret answers any further prompts.
func (e *Executor) RunSecrets(program string, args []string, secrets []*secret.Secret, cfg RunConfig) (Result, error) {
	return e.run("", program, args, secrets, cfg)
}

// RunJob is RunSecrets with the child registered in e.Registry under id
// for as long as it runs. An empty id gets a random one.
func (e *Executor) RunJob(id string, program string, args []string, secrets []*secret.Secret, cfg RunConfig) (Result, error) {
	if id == "" {
		id = NewJobID()
	}
	return e.run(id, program, args, secrets, cfg)
}

func (e *Executor) run(jobID string, program string, args []string, secrets []*secret.Secret, cfg RunConfig) (Result, error) {
	if len(secrets) == 0 {
		return Result{}, ErrNoSecret
	}
	for _, s := range secrets {
		if s.Released() {
			return Result{}, ErrNoSecret
		}
	}

	logger := log.WithField("program", filepath.Base(program)).WithField("config", cfg)

	session, err := terminal.Open(e.size())
	if err != nil {
		logger.WithError(err).Error("failed to create pty")
		return Result{}, err
	}
	defer session.Close()

	session.Env = e.Env
	if err := session.Spawn(program, args); err != nil {
		logger.WithError(err).Error("failed to spawn command")
		return Result{}, err
	}

	tracked := jobID != "" && e.Registry != nil
	if tracked {
		if err := e.Registry.Track(jobID, session); err != nil {
			return Result{}, err
		}
		logger = logger.WithField("job", jobID)
	}

	p := &protocol{
		session:   session,
		detector:  e.detector(),
		poll:      e.pollInterval(),
		secrets:   secrets,
		timeout:   cfg.Timeout(),
		remaining: cfg.PromptCount(),
		started:   time.Now(),
		chunk:     make([]byte, readSize),
		log:       logger,
	}
	result, err := p.execute()

	if tracked && e.Registry.Untrack(jobID) {
		result.Cancelled = true
	}
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

func (e *Executor) size() terminal.Size {
	if e.Size.Rows == 0 || e.Size.Cols == 0 {
		return terminal.DefaultSize
	}
	return e.Size
}

func (e *Executor) detector() Detector {
	if e.Detector == nil {
		return ColonPrompt
	}
	return e.Detector
}

func (e *Executor) pollInterval() time.Duration {
	if e.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return e.PollInterval
}

// protocol is the state of a single run.
type protocol struct {
	session  *terminal.Session
	detector Detector
	poll     time.Duration
	secrets  []*secret.Secret
	timeout  time.Duration
	started  time.Time
	log      *log.Entry

	remaining int
	answered  int

	// pending holds output since the last answered prompt, and
	// becomes the transcript once all prompts are answered
	pending []byte
	chunk   []byte
}

func (p *protocol) execute() (Result, error) {
	defer memguard.WipeBytes(p.chunk)
	defer func() { memguard.WipeBytes(p.pending) }()

	if err := p.awaitPrompts(); err != nil {
		return Result{}, err
	}
	p.log.WithField("answered", p.answered).Debug("draining output")

	if err := p.drain(); err != nil {
		return Result{}, err
	}

	code, err := p.waitExit()
	if err != nil {
		return Result{}, err
	}

	clean := ansi.Strip(p.pending)
	transcript := bytes.ToValidUTF8(clean, []byte("\uFFFD"))
	memguard.WipeBytes(clean)

	p.log.WithField("exit_code", code).Debug("command finished")
	return Result{
		Transcript: transcript,
		ExitCode:   code,
	}, nil
}

func (p *protocol) expired() bool {
	return time.Since(p.started) > p.timeout
}

func (p *protocol) timedOut(stage string) error {
	p.log.WithField("stage", stage).Error("pty operation timed out")
	if err := p.session.Kill(); err != nil {
		p.log.WithError(err).Error("failed to kill timed out command")
	}
	return ErrTimeout
}

func (p *protocol) awaitPrompts() error {
	for p.remaining > 0 {
		if p.expired() {
			return p.timedOut("awaiting prompt")
		}

		n, err := p.session.Read(p.chunk)
		switch {
		case err == nil:
			p.collect(p.chunk[:n])
			if p.detector.Detect(p.pending) {
				if err := p.answer(); err != nil {
					return err
				}
			}
		case errors.Is(err, terminal.ErrWouldBlock):
			time.Sleep(p.poll)
		case err == io.EOF:
			// the exit status tells the caller what went wrong
			p.log.WithField("remaining", p.remaining).Debug("output closed before all prompts were seen")
			return nil
		default:
			p.log.WithError(err).Error("failed to read from pty")
			return err
		}
	}
	return nil
}

// answer types the secret for the current prompt and forgets the prompt.
func (p *protocol) answer() error {
	i := p.answered
	if i >= len(p.secrets) {
		i = len(p.secrets) - 1
	}
	pw := p.secrets[i].Reveal()
	if pw == nil {
		return ErrNoSecret
	}

	if _, err := p.session.Write(pw); err != nil {
		p.log.WithError(err).Error("failed to write password")
		return err
	}
	if _, err := p.session.Write([]byte{'\n'}); err != nil {
		p.log.WithError(err).Error("failed to write newline")
		return err
	}
	if err := p.session.Flush(); err != nil {
		p.log.WithError(err).Error("failed to flush")
		return err
	}

	p.answered++
	p.remaining--

	memguard.WipeBytes(p.pending)
	p.pending = p.pending[:0]
	return nil
}

func (p *protocol) drain() error {
	idle := 0
	for {
		if p.expired() {
			return p.timedOut("reading remaining output")
		}

		n, err := p.session.Read(p.chunk)
		switch {
		case err == nil:
			p.collect(p.chunk[:n])
			idle = 0
		case errors.Is(err, terminal.ErrWouldBlock):
			if _, exited := p.session.TryWait(); exited {
				idle++
				if idle >= drainIdleReads {
					return nil
				}
			}
			time.Sleep(p.poll)
		case err == io.EOF:
			return nil
		default:
			if _, exited := p.session.TryWait(); exited {
				return nil
			}
			p.log.WithError(err).Error("failed to read remaining output")
			return err
		}
	}
}

func (p *protocol) waitExit() (int, error) {
	left := p.timeout - time.Since(p.started)
	if left <= 0 {
		return -1, p.timedOut("waiting for exit")
	}

	timer := time.NewTimer(left)
	defer timer.Stop()

	select {
	case <-p.session.Done():
	case <-timer.C:
		return -1, p.timedOut("waiting for exit")
	}

	code, err := p.session.Wait()
	if err != nil {
		p.log.WithError(err).Error("failed to wait for child")
		return -1, fmt.Errorf("%w: %v", ErrCommandFailed, err)
	}
	return code, nil
}

// collect appends b to pending. When pending has to grow the old backing
// array is zeroed rather than left for the garbage collector.
func (p *protocol) collect(b []byte) {
	if len(p.pending)+len(b) > cap(p.pending) {
		grown := make([]byte, len(p.pending), 2*cap(p.pending)+len(b))
		copy(grown, p.pending)
		memguard.WipeBytes(p.pending[:cap(p.pending)])
		p.pending = grown
	}
	p.pending = append(p.pending, b...)
}
