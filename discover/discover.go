package discover

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

var (
	ErrCastNotFound = fmt.Errorf("cast binary not found, please ensure Foundry is installed correctly")
	ErrNoHomeDir    = fmt.Errorf("could not find home directory")
)

// FoundryDir is the directory foundryup installs into, relative to home.
const FoundryDir = ".foundry"

// CastBinary returns the path of the cast binary: override when set,
// else ~/.foundry/bin/cast, else cast from PATH.
func CastBinary(override string) (string, error) {
	if override != "" {
		if err := executable(override); err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrCastNotFound, override, err)
		}
		return override, nil
	}

	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, FoundryDir, "bin", "cast")
		if executable(p) == nil {
			return p, nil
		}
	}

	p, err := exec.LookPath("cast")
	if err != nil {
		return "", ErrCastNotFound
	}
	return p, nil
}

// KeystoreDir returns override when set, else ~/.foundry/keystores.
func KeystoreDir(override string) (string, error) {
	if override != "" {
		return filepath.Abs(override)
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "", ErrNoHomeDir
	}
	return filepath.Join(home, FoundryDir, "keystores"), nil
}

func executable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("is a directory")
	}
	if info.Mode().Perm()&0111 == 0 {
		return fmt.Errorf("not executable")
	}
	return nil
}
