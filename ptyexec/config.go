package ptyexec

import (
	"fmt"
	"time"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultPromptCount = 1

	// a command typing into more prompts than this is misconfigured
	maxPromptCount = 16
)

var (
	ErrInvalidTimeout     = fmt.Errorf("timeout must be positive")
	ErrInvalidPromptCount = fmt.Errorf("prompt count must be between 1 and %d", maxPromptCount)
)

// RunConfig bounds one run. It is immutable once built.
type RunConfig struct {
	timeout     time.Duration
	promptCount int
}

// NewRunConfig returns a config that waits at most timeout for the whole
// run and answers promptCount password prompts.
func NewRunConfig(timeout time.Duration, promptCount int) (RunConfig, error) {
	if timeout <= 0 {
		return RunConfig{}, ErrInvalidTimeout
	}
	if promptCount < 1 || promptCount > maxPromptCount {
		return RunConfig{}, ErrInvalidPromptCount
	}
	return RunConfig{
		timeout:     timeout,
		promptCount: promptCount,
	}, nil
}

// DefaultRunConfig answers one prompt within 30 seconds.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		timeout:     DefaultTimeout,
		promptCount: DefaultPromptCount,
	}
}

func (c RunConfig) Timeout() time.Duration {
	if c.timeout <= 0 {
		return DefaultTimeout
	}
	return c.timeout
}

func (c RunConfig) PromptCount() int {
	if c.promptCount < 1 {
		return DefaultPromptCount
	}
	return c.promptCount
}

// WithPromptCount returns a copy of c answering n prompts.
func (c RunConfig) WithPromptCount(n int) (RunConfig, error) {
	return NewRunConfig(c.Timeout(), n)
}

func (c RunConfig) String() string {
	return fmt.Sprintf("timeout=%s prompts=%d", c.Timeout(), c.PromptCount())
}
