package ptyexec

import (
	"bytes"
)

// Detector decides whether the output collected since the last answered
// prompt ends in a prompt waiting for input.
type Detector interface {
	Detect(pending []byte) bool
}

type DetectorFunc func(pending []byte) bool

func (f DetectorFunc) Detect(pending []byte) bool {
	return f(pending)
}

// ColonPrompt matches prompts such as "Enter password: " or
// "Enter keystore password:". Any other output ending in a colon matches
// too, so the number of prompts must be known in advance.
var ColonPrompt Detector = DetectorFunc(func(pending []byte) bool {
	if bytes.HasSuffix(pending, []byte(": ")) {
		return true
	}
	return bytes.HasSuffix(bytes.TrimRight(pending, " \t\r\n\v\f"), []byte(":"))
})

// SuffixPrompt matches output ending in one of the given suffixes,
// ignoring trailing whitespace.
func SuffixPrompt(suffixes ...string) Detector {
	return DetectorFunc(func(pending []byte) bool {
		trimmed := bytes.TrimRight(pending, " \t\r\n\v\f")
		for _, s := range suffixes {
			if bytes.HasSuffix(trimmed, []byte(s)) {
				return true
			}
		}
		return false
	})
}
