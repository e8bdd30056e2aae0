package agent

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/awnumar/memguard"
	log "github.com/sirupsen/logrus"

	"github.com/bitmark-inc/keystore-wallet/ptyexec"
	"github.com/bitmark-inc/keystore-wallet/secret"
)

// CastAgent drives Foundry's `cast wallet` subcommands. Password prompts
// are answered on a pseudo-terminal so secrets never appear in argv.
type CastAgent struct {
	castPath    string
	keystoreDir string
	timeout     time.Duration
	executor    *ptyexec.Executor
}

func NewCastAgent(castPath, keystoreDir string, timeout time.Duration, executor *ptyexec.Executor) *CastAgent {
	if executor == nil {
		executor = ptyexec.New()
	}
	return &CastAgent{
		castPath:    castPath,
		keystoreDir: keystoreDir,
		timeout:     timeout,
		executor:    executor,
	}
}

func (c *CastAgent) KeystoreDir() string {
	return c.keystoreDir
}

func (c *CastAgent) keystoreArgs(args ...string) []string {
	if c.keystoreDir != "" {
		args = append(args, "--keystore-dir", c.keystoreDir)
	}
	return args
}

func (c *CastAgent) DecryptKeystore(name string, password *secret.Secret) (*secret.Secret, error) {
	args := c.keystoreArgs("wallet", string(OpDecrypt), name)
	out, err := c.run(OpDecrypt, "", args, password)
	if err != nil {
		return nil, err
	}
	defer release(OpDecrypt, out)

	key, err := extractPrivateKey(out, decryptKeyMarker)
	if err != nil {
		log.WithField("keystore", name).Error("decrypt output has no private key")
		return nil, err
	}
	return key, nil
}

func (c *CastAgent) KeystoreAddress(name string, password *secret.Secret) (string, error) {
	args := []string{"wallet", string(OpAddress), "--keystore", filepath.Join(c.keystoreDir, name)}
	out, err := c.run(OpAddress, "", args, password)
	if err != nil {
		return "", err
	}
	defer release(OpAddress, out)

	return findAddress(out)
}

// Import stores privateKey in a new keystore encrypted with password and
// returns its address. The key is typed at cast's interactive prompt.
func (c *CastAgent) Import(name string, privateKey, password *secret.Secret) (string, error) {
	args := c.keystoreArgs("wallet", string(OpImport), name, "--interactive")
	out, err := c.run(OpImport, "", args, privateKey, password)
	if err != nil {
		return "", err
	}
	defer release(OpImport, out)

	return extractAddress(out, addressMarker)
}

// New generates a random key pair without storing it.
func (c *CastAgent) New() (*WalletInfo, error) {
	out, err := c.run(OpNew, "", []string{"wallet", string(OpNew)})
	if err != nil {
		return nil, err
	}
	defer release(OpNew, out)

	return walletInfo(out, newKeyMarker)
}

// Vanity searches for a key pair whose address matches opts. The search
// is tracked under jobID and ends with ErrCancelled when the job is
// cancelled.
func (c *CastAgent) Vanity(jobID string, opts VanityOptions) (*WalletInfo, error) {
	args := []string{"wallet", string(OpVanity)}
	if opts.StartsWith == "" && opts.EndsWith == "" {
		return nil, fmt.Errorf("%w: need a prefix or a suffix", ErrInvalidPattern)
	}
	if opts.StartsWith != "" {
		if !hexPattern(opts.StartsWith) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPattern, opts.StartsWith)
		}
		args = append(args, "--starts-with", opts.StartsWith)
	}
	if opts.EndsWith != "" {
		if !hexPattern(opts.EndsWith) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPattern, opts.EndsWith)
		}
		args = append(args, "--ends-with", opts.EndsWith)
	}

	out, err := c.run(OpVanity, jobID, args)
	if err != nil {
		return nil, err
	}
	defer release(OpVanity, out)

	return walletInfo(out, vanityKeyMarker)
}

func (c *CastAgent) List() ([]string, error) {
	args := []string{"wallet", string(OpList)}
	if c.keystoreDir != "" {
		args = append(args, "--dir", c.keystoreDir)
	}
	out, err := c.run(OpList, "", args)
	if err != nil {
		return nil, err
	}
	defer release(OpList, out)

	return walletNames(out)
}

// run executes op on a terminal when it prompts for secrets and as a plain
// child otherwise. The output must be handed back to release.
func (c *CastAgent) run(op Operation, jobID string, args []string, secrets ...*secret.Secret) ([]byte, error) {
	if op.Interactive() {
		return c.interactive(op, jobID, args, secrets)
	}
	return c.plain(op, jobID, args)
}

// release zeroes the output of operations that print key material.
func release(op Operation, out []byte) {
	if OperationMap[op].Secret {
		memguard.WipeBytes(out)
	}
}

func (c *CastAgent) interactive(op Operation, jobID string, args []string, secrets []*secret.Secret) ([]byte, error) {
	cfg, err := ptyexec.NewRunConfig(c.timeout, OperationMap[op].Prompts)
	if err != nil {
		return nil, err
	}

	log.WithField("op", op).Debugf("run cast with %s", cfg)
	var result ptyexec.Result
	if jobID != "" {
		result, err = c.executor.RunJob(jobID, c.castPath, args, secrets, cfg)
	} else {
		result, err = c.executor.RunSecrets(c.castPath, args, secrets, cfg)
	}
	if err != nil {
		log.WithError(err).WithField("op", op).Error("cast did not complete")
		return nil, fmt.Errorf("cast wallet %s: %w", op, err)
	}

	if result.Cancelled {
		result.Wipe()
		log.WithField("job", jobID).Info("cast was cancelled")
		return nil, ErrCancelled
	}

	if !result.Succeeded() {
		castErr := CastError{
			Op:       op,
			ExitCode: result.ExitCode,
			Message:  failureMessage(result.Transcript),
		}
		result.Wipe()
		log.WithField("op", op).WithField("code", castErr.ExitCode).Warn("cast exited with failure")
		return nil, castErr
	}
	return result.Transcript, nil
}

type outputBuffer interface {
	io.Writer
	Bytes() []byte
}

// plain runs cast without a terminal and returns its stdout. A non-empty
// jobID registers the process for cancellation.
func (c *CastAgent) plain(op Operation, jobID string, args []string) ([]byte, error) {
	var stdout outputBuffer = &bytes.Buffer{}
	if OperationMap[op].Secret {
		stdout = &wipingBuffer{}
	}
	var stderr bytes.Buffer
	cmd := exec.Command(c.castPath, args...)
	cmd.Env = c.executor.Env
	cmd.Stdout = stdout
	cmd.Stderr = &stderr
	if jobID != "" {
		// terminal signals go to the wallet, which cancels through the
		// registry
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("cast wallet %s: %w: %v", op, ptyexec.ErrSpawnFailed, err)
	}

	registry := c.executor.Registry
	tracked := false
	if jobID != "" && registry != nil {
		if err := registry.Track(jobID, processKiller{cmd.Process}); err != nil {
			cmd.Process.Kill()
			cmd.Wait()
			release(op, stdout.Bytes())
			return nil, err
		}
		tracked = true
	}

	err := cmd.Wait()
	cancelled := tracked && registry.Untrack(jobID)
	out := stdout.Bytes()

	if cancelled {
		release(op, out)
		log.WithField("job", jobID).Info("cast was cancelled")
		return nil, ErrCancelled
	}

	if err != nil {
		release(op, out)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, CastError{
				Op:       op,
				ExitCode: exitErr.ExitCode(),
				Message:  failureMessage(stderr.Bytes()),
			}
		}
		return nil, fmt.Errorf("cast wallet %s: %w", op, err)
	}
	return out, nil
}

func walletInfo(out []byte, keyMarker string) (*WalletInfo, error) {
	if !bytes.Contains(out, []byte(addressMarker)) && !bytes.Contains(out, []byte(keyMarker)) {
		return nil, ErrUnexpectedOutput
	}
	addr, err := extractAddress(out, addressMarker)
	if err != nil {
		return nil, err
	}
	key, err := extractPrivateKey(out, keyMarker)
	if err != nil {
		return nil, err
	}
	return &WalletInfo{Address: addr, PrivateKey: key}, nil
}

func hexPattern(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9') && !('a' <= c && c <= 'f') && !('A' <= c && c <= 'F') {
			return false
		}
	}
	return len(s) <= 40
}

// wipingBuffer collects output that may hold key material. Growing it
// zeroes the array being replaced.
type wipingBuffer struct {
	buf []byte
}

func (b *wipingBuffer) Write(p []byte) (int, error) {
	if len(b.buf)+len(p) > cap(b.buf) {
		grown := make([]byte, len(b.buf), 2*cap(b.buf)+len(p))
		copy(grown, b.buf)
		memguard.WipeBytes(b.buf)
		b.buf = grown
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *wipingBuffer) Bytes() []byte {
	return b.buf
}

type processKiller struct {
	p *os.Process
}

func (k processKiller) Kill() error {
	return k.p.Kill()
}
