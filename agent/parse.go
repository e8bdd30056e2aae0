package agent

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/awnumar/memguard"

	"github.com/bitmark-inc/keystore-wallet/address"
	"github.com/bitmark-inc/keystore-wallet/secret"
)

const (
	decryptKeyMarker  = "private key is: "
	addressMarker     = "Address:"
	newKeyMarker      = "Private key:"
	vanityKeyMarker   = "Private Key:"
	localWalletSuffix = " (Local)"
)

// fieldAfter returns the first whitespace delimited field following
// marker. The result aliases out.
func fieldAfter(out []byte, marker string) []byte {
	i := bytes.Index(out, []byte(marker))
	if i < 0 {
		return nil
	}
	rest := bytes.TrimLeft(out[i+len(marker):], " \t")
	if end := bytes.IndexAny(rest, " \t\r\n"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

// extractPrivateKey copies the key after marker into a new Secret. out is
// not modified.
func extractPrivateKey(out []byte, marker string) (*secret.Secret, error) {
	field := fieldAfter(out, marker)
	if len(field) == 0 {
		return nil, ErrPrivateKeyNotFound
	}

	key := make([]byte, len(field))
	copy(key, field)
	if err := address.ValidatePrivateKey(key); err != nil {
		memguard.WipeBytes(key)
		return nil, fmt.Errorf("%w: %v", ErrPrivateKeyNotFound, err)
	}
	return secret.FromBytes(key), nil
}

func extractAddress(out []byte, marker string) (string, error) {
	field := fieldAfter(out, marker)
	if len(field) == 0 {
		return "", ErrAddressNotFound
	}
	addr := string(field)
	if err := address.Validate(addr); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAddressNotFound, err)
	}
	return addr, nil
}

// findAddress returns the first valid address anywhere in out.
func findAddress(out []byte) (string, error) {
	if len(bytes.TrimSpace(out)) == 0 {
		return "", ErrUnexpectedOutput
	}
	for _, f := range bytes.Fields(out) {
		if len(f) != 42 || f[0] != '0' || f[1] != 'x' {
			continue
		}
		if address.Validate(string(f)) == nil {
			return string(f), nil
		}
	}
	return "", ErrAddressNotFound
}

// walletNames parses `cast wallet list` output, one wallet per line with
// an optional location suffix.
func walletNames(out []byte) ([]string, error) {
	names := make([]string, 0)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimSuffix(line, localWalletSuffix)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "Error") || strings.ContainsAny(line, `/\`) {
			return nil, fmt.Errorf("%w: %q", ErrUnexpectedOutput, line)
		}
		names = append(names, line)
	}
	return names, nil
}

// failureMessage is the last non-empty line of a failed command's output.
func failureMessage(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
