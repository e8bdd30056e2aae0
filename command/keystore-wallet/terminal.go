package main

import (
	"crypto/subtle"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/bitmark-inc/keystore-wallet/secret"
)

const (
	passwordEnv       = "KEYSTORE_WALLET_PASSWORD"
	minPasswordLength = 8
)

var (
	ErrPasswordTooShort = fmt.Errorf("password length less than %d", minPasswordLength)
	ErrPasswordMismatch = fmt.Errorf("passwords do not match")
)

// readTTY shows prompt on the controlling terminal and reads a line with
// echo off. The returned bytes are owned by the caller.
func readTTY(prompt string) ([]byte, error) {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	defer tty.Close()

	fmt.Fprint(tty, prompt)
	b, err := term.ReadPassword(int(tty.Fd()))
	fmt.Fprintln(tty)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func readSecret(prompt string) (*secret.Secret, error) {
	b, err := readTTY(prompt)
	if err != nil {
		return nil, err
	}
	return secret.FromBytes(b), nil
}

// envPassword takes the password from the environment and removes it, so
// that no child process inherits it.
func envPassword() string {
	password := os.Getenv(passwordEnv)
	os.Unsetenv(passwordEnv)
	return password
}

// readPassword reads the password of an existing keystore.
func readPassword(prompt string) (*secret.Secret, error) {
	if password := envPassword(); password != "" {
		return secret.New(password), nil
	}
	return readSecret(prompt)
}

// readNewPassword reads a password twice and checks that both match.
func readNewPassword(prompt string) (*secret.Secret, error) {
	if password := envPassword(); password != "" {
		if len(password) < minPasswordLength {
			return nil, fmt.Errorf("invalid environment: %s: %w", passwordEnv, ErrPasswordTooShort)
		}
		return secret.New(password), nil
	}

	pw, err := readSecret(prompt)
	if err != nil {
		return nil, err
	}
	if pw.Len() < minPasswordLength {
		pw.Release()
		return nil, ErrPasswordTooShort
	}

	confirm, err := readSecret("Confirm password: ")
	if err != nil {
		pw.Release()
		return nil, err
	}
	defer confirm.Release()

	if subtle.ConstantTimeCompare(pw.Reveal(), confirm.Reveal()) != 1 {
		pw.Release()
		return nil, ErrPasswordMismatch
	}
	return pw, nil
}
