package secret

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var samples = []string{
	"",
	"hunter2",
	"correct horse battery staple",
	"пароль-密码-🔑",
	strings.Repeat("x", 4096),
}

func TestSecretNeverFormatsContent(t *testing.T) {
	for _, text := range samples {
		s := New(text)
		rendered := []string{
			fmt.Sprint(s),
			fmt.Sprintf("%v", s),
			fmt.Sprintf("%+v", s),
			fmt.Sprintf("%#v", s),
			fmt.Sprintf("%s", s),
			fmt.Sprintf("%q", s),
			fmt.Sprintf("%x", s),
			fmt.Sprintf("%X", s),
			fmt.Sprintf("%v", struct{ Password *Secret }{s}),
			fmt.Sprintf("%+v", []*Secret{s}),
			s.String(),
			s.GoString(),
		}
		for _, r := range rendered {
			assert.Contains(t, r, Redacted)
			if text != "" {
				assert.NotContains(t, r, text)
			}
		}
		s.Release()
	}
}

func TestSecretJSON(t *testing.T) {
	s := New("hunter2")
	defer s.Release()

	b, err := json.Marshal(map[string]interface{}{"password": s})
	assert.NoError(t, err)
	assert.Equal(t, `{"password":"[REDACTED]"}`, string(b))

	text, err := s.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, Redacted, string(text))
}

func TestSecretReveal(t *testing.T) {
	s := New("hunter2")
	assert.Equal(t, []byte("hunter2"), s.Reveal())
	assert.Equal(t, 7, s.Len())
	assert.False(t, s.Released())

	s.Release()
	assert.Nil(t, s.Reveal())
	assert.Equal(t, 0, s.Len())
	assert.True(t, s.Released())
}

func TestReleaseZeroesBackingStorage(t *testing.T) {
	for _, text := range samples {
		s := New(text)
		raw := s.buf
		assert.Len(t, raw, len(text))

		s.Release()
		for i, b := range raw {
			if !assert.Equal(t, byte(0), b, "byte %d of %d bytes", i, len(raw)) {
				break
			}
		}
	}
}

func TestFromBytesTakesOwnership(t *testing.T) {
	b := []byte("private")
	s := FromBytes(b)
	assert.Equal(t, "private", string(s.Reveal()))

	s.Release()
	assert.Equal(t, make([]byte, len(b)), b)
}

func TestReleaseIsIdempotent(t *testing.T) {
	s := New("hunter2")
	s.Release()
	s.Release()
	assert.True(t, s.Released())

	var nilSecret *Secret
	nilSecret.Release()
	assert.Nil(t, nilSecret.Reveal())
	assert.True(t, nilSecret.Released())
}

func TestWithReleasesOnEveryExit(t *testing.T) {
	b := []byte("hunter2")
	var seen *Secret
	err := With(b, func(s *Secret) error {
		seen = s
		assert.Equal(t, "hunter2", string(s.Reveal()))
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, seen.Released())
	assert.Equal(t, make([]byte, 7), b)

	failure := errors.New("boom")
	b = []byte("hunter3")
	err = With(b, func(s *Secret) error {
		seen = s
		return failure
	})
	assert.Equal(t, failure, err)
	assert.True(t, seen.Released())
	assert.Equal(t, make([]byte, 7), b)

	b = []byte("hunter4")
	assert.Panics(t, func() {
		_ = With(b, func(s *Secret) error {
			seen = s
			panic("boom")
		})
	})
	assert.True(t, seen.Released())
	assert.Equal(t, make([]byte, 7), b)
}
