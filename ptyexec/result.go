package ptyexec

import (
	"github.com/awnumar/memguard"
)

// Result is what a finished run hands back: the escape-stripped output
// written after the last answered prompt, and the child's exit code.
//
// Transcript may carry secret-derived text such as a decrypted key.
// Callers extract what they need and then call Wipe.
type Result struct {
	Transcript []byte
	ExitCode   int

	// Cancelled is set when the run was cancelled through a Registry.
	// The exit code of a cancelled run is meaningless.
	Cancelled bool
}

func (r Result) Succeeded() bool {
	return r.ExitCode == 0
}

// Text returns the transcript as a string. The copy cannot be wiped, so
// only use it for output that holds no secrets.
func (r Result) Text() string {
	return string(r.Transcript)
}

// Wipe zeroes the transcript.
func (r Result) Wipe() {
	memguard.WipeBytes(r.Transcript)
}
