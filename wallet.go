package wallet

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/bitmark-inc/keystore-wallet/address"
	"github.com/bitmark-inc/keystore-wallet/agent"
	"github.com/bitmark-inc/keystore-wallet/secret"
)

const maxLabelLength = 128

var (
	ErrInvalidLabel     = fmt.Errorf("invalid keystore label")
	ErrLabelExists      = fmt.Errorf("a keystore with this label already exists")
	ErrKeystoreNotFound = fmt.Errorf("keystore not found")
	ErrAddressMismatch  = fmt.Errorf("imported address does not match the generated key")
)

// Wallet manages password protected keystores. Key material is handed to
// the agent and returned to the caller as secrets; only labels and
// addresses are recorded.
type Wallet struct {
	agent agent.Agent
	store KeystoreStore
	now   func() time.Time
}

func New(a agent.Agent, store KeystoreStore) *Wallet {
	return &Wallet{
		agent: a,
		store: store,
		now:   time.Now,
	}
}

// ValidateLabel rejects labels that would escape the keystore directory.
func ValidateLabel(label string) error {
	switch {
	case label == "":
		return fmt.Errorf("%w: empty", ErrInvalidLabel)
	case len(label) > maxLabelLength:
		return fmt.Errorf("%w: longer than %d", ErrInvalidLabel, maxLabelLength)
	case strings.HasPrefix(label, "."):
		return fmt.Errorf("%w: %q starts with a dot", ErrInvalidLabel, label)
	case strings.ContainsAny(label, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidLabel, label)
	}
	for _, r := range label {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("%w: %q contains a control character", ErrInvalidLabel, label)
		}
	}
	return nil
}

func (w *Wallet) keystorePath(label string) string {
	return filepath.Join(w.agent.KeystoreDir(), label)
}

func (w *Wallet) checkNew(label string) error {
	if err := ValidateLabel(label); err != nil {
		return err
	}
	if _, err := os.Stat(w.keystorePath(label)); err == nil {
		return fmt.Errorf("%w: %s", ErrLabelExists, label)
	}
	return nil
}

func (w *Wallet) checkExisting(label string) error {
	if err := ValidateLabel(label); err != nil {
		return err
	}
	if _, err := os.Stat(w.keystorePath(label)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrKeystoreNotFound, label)
		}
		return err
	}
	return nil
}

// Create generates a new key and stores it under label encrypted with pw.
func (w *Wallet) Create(label string, pw *secret.Secret) (Keystore, error) {
	if err := w.checkNew(label); err != nil {
		return Keystore{}, err
	}

	info, err := w.agent.New()
	if err != nil {
		return Keystore{}, err
	}
	defer info.PrivateKey.Release()

	return w.importGenerated(label, info, pw)
}

// Vanity searches for a key matching opts and stores it like Create. The
// search can be cancelled through the agent's job registry under jobID.
func (w *Wallet) Vanity(jobID, label string, opts agent.VanityOptions, pw *secret.Secret) (Keystore, error) {
	if err := w.checkNew(label); err != nil {
		return Keystore{}, err
	}

	info, err := w.agent.Vanity(jobID, opts)
	if err != nil {
		return Keystore{}, err
	}
	defer info.PrivateKey.Release()

	return w.importGenerated(label, info, pw)
}

func (w *Wallet) importGenerated(label string, info *agent.WalletInfo, pw *secret.Secret) (Keystore, error) {
	addr, err := w.agent.Import(label, info.PrivateKey, pw)
	if err != nil {
		return Keystore{}, err
	}
	if !strings.EqualFold(addr, info.Address) {
		log.WithField("label", label).Errorf("imported address %s, generated %s", addr, info.Address)
		return Keystore{}, ErrAddressMismatch
	}
	return w.record(label, addr)
}

// Import stores an existing private key under label encrypted with pw.
func (w *Wallet) Import(label string, key, pw *secret.Secret) (Keystore, error) {
	if err := w.checkNew(label); err != nil {
		return Keystore{}, err
	}
	if err := address.ValidatePrivateKey(key.Reveal()); err != nil {
		return Keystore{}, err
	}

	addr, err := w.agent.Import(label, key, pw)
	if err != nil {
		return Keystore{}, err
	}
	return w.record(label, addr)
}

// Decrypt returns the private key of label. The caller must release it.
func (w *Wallet) Decrypt(label string, pw *secret.Secret) (*secret.Secret, error) {
	if err := w.checkExisting(label); err != nil {
		return nil, err
	}
	return w.agent.DecryptKeystore(label, pw)
}

// Address unlocks label with pw and returns its address, recording
// keystores the wallet did not create.
func (w *Wallet) Address(label string, pw *secret.Secret) (string, error) {
	if err := w.checkExisting(label); err != nil {
		return "", err
	}
	addr, err := w.agent.KeystoreAddress(label, pw)
	if err != nil {
		return "", err
	}
	if !w.Known(label) {
		if _, err := w.record(label, addr); err != nil {
			return "", err
		}
	}
	return addr, nil
}

// List returns every keystore in the keystore directory. Keystores the
// wallet has not unlocked yet have no address, recorded keystores whose
// file was deleted elsewhere are returned as Missing.
func (w *Wallet) List() ([]Keystore, error) {
	names, err := w.agent.List()
	if err != nil {
		return nil, err
	}

	recorded, err := w.store.All()
	if err != nil {
		return nil, err
	}
	byLabel := make(map[string]Keystore, len(recorded))
	for _, k := range recorded {
		byLabel[k.Label] = k
	}

	keystores := make([]Keystore, 0, len(names)+len(recorded))
	for _, name := range names {
		k, ok := byLabel[name]
		if !ok {
			k = Keystore{Label: name}
		}
		delete(byLabel, name)
		keystores = append(keystores, k)
	}
	for _, k := range recorded {
		if _, ok := byLabel[k.Label]; ok {
			k.Missing = true
			keystores = append(keystores, k)
		}
	}
	return keystores, nil
}

// Remove deletes the keystore file of label and forgets it.
func (w *Wallet) Remove(label string) error {
	if err := ValidateLabel(label); err != nil {
		return err
	}

	err := os.Remove(w.keystorePath(label))
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		if !w.Known(label) {
			return fmt.Errorf("%w: %s", ErrKeystoreNotFound, label)
		}
	default:
		return err
	}

	log.WithField("label", label).Info("keystore removed")
	return w.store.Delete(label)
}

// Known reports whether label is recorded.
func (w *Wallet) Known(label string) bool {
	_, err := w.store.Get(label)
	return err == nil
}

func (w *Wallet) record(label, addr string) (Keystore, error) {
	k := Keystore{
		Label:     label,
		Address:   addr,
		CreatedAt: w.now(),
	}
	if err := w.store.Put(k); err != nil {
		return Keystore{}, err
	}
	log.WithField("label", label).WithField("address", addr).Info("keystore recorded")
	return k, nil
}
