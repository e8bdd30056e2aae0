// Package secret holds passwords and private keys in memory that is wiped
// before it is released.
//
// A Secret never prints its content. Every fmt verb, JSON and text
// marshalling renders Redacted instead. The only way to read the bytes is
// Reveal.
//
// Go strings are immutable and cannot be wiped, so secrets should be read
// straight into a []byte and handed over with FromBytes. New exists for
// callers that only have a string; their copy stays in memory until the
// garbage collector reuses it.
package secret

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/awnumar/memguard"
)

// Redacted is rendered in place of a secret's content.
const Redacted = "[REDACTED]"

// Secret wraps one sensitive value.
type Secret struct {
	mu       sync.Mutex
	buf      []byte
	released bool
}

// New copies text into a new Secret.
func New(text string) *Secret {
	return FromBytes([]byte(text))
}

// FromBytes takes ownership of b. The caller must not use b afterwards,
// it is wiped when the Secret is released.
func FromBytes(b []byte) *Secret {
	if b == nil {
		b = []byte{}
	}
	s := &Secret{buf: b}
	runtime.SetFinalizer(s, (*Secret).Release)
	return s
}

// With wraps b in a Secret, calls fn and releases the secret when fn
// returns or panics.
func With(b []byte, fn func(*Secret) error) error {
	s := FromBytes(b)
	defer s.Release()
	return fn(s)
}

// Reveal returns the backing bytes without copying. The slice is only
// valid until Release and must not be retained. It returns nil once the
// secret has been released.
func (s *Secret) Reveal() []byte {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil
	}
	return s.buf
}

// Len returns the length of the secret, 0 after release.
func (s *Secret) Len() int {
	return len(s.Reveal())
}

// Released reports whether Release has been called.
func (s *Secret) Released() bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Release overwrites the backing bytes with zeros. It is safe to call
// more than once and on a nil Secret.
func (s *Secret) Release() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	memguard.WipeBytes(s.buf)
	s.released = true
	runtime.SetFinalizer(s, nil)
}

func (s *Secret) String() string {
	return Redacted
}

func (s *Secret) GoString() string {
	return Redacted
}

// Format makes every verb, including %x and %q, print Redacted.
func (s *Secret) Format(f fmt.State, verb rune) {
	fmt.Fprint(f, Redacted)
}

func (s *Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + Redacted + `"`), nil
}

func (s *Secret) MarshalText() ([]byte, error) {
	return []byte(Redacted), nil
}
