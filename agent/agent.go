package agent

import (
	"fmt"

	"github.com/bitmark-inc/keystore-wallet/secret"
)

var (
	ErrPrivateKeyNotFound = fmt.Errorf("private key not found in output")
	ErrAddressNotFound    = fmt.Errorf("address not found in output")
	ErrUnexpectedOutput   = fmt.Errorf("unexpected output from cast")
	ErrCancelled          = fmt.Errorf("operation was cancelled")
	ErrInvalidPattern     = fmt.Errorf("vanity pattern must be hex digits")
)

// CastError is a cast invocation that ran but exited non-zero.
type CastError struct {
	Op       Operation
	ExitCode int
	Message  string
}

func (e CastError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("cast wallet %s exited with code %d", e.Op, e.ExitCode)
	}
	return fmt.Sprintf("cast wallet %s exited with code %d: %s", e.Op, e.ExitCode, e.Message)
}

// WalletInfo is a freshly generated key pair. The caller owns PrivateKey
// and must release it.
type WalletInfo struct {
	Address    string
	PrivateKey *secret.Secret
}

type VanityOptions struct {
	StartsWith string
	EndsWith   string
}

// Agent manages encrypted keystores through an external tool.
type Agent interface {
	KeystoreDir() string
	DecryptKeystore(name string, password *secret.Secret) (*secret.Secret, error)
	KeystoreAddress(name string, password *secret.Secret) (string, error)
	Import(name string, privateKey, password *secret.Secret) (string, error)
	New() (*WalletInfo, error)
	Vanity(jobID string, opts VanityOptions) (*WalletInfo, error)
	List() ([]string, error)
}
