package wallet

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/keystore-wallet/agent"
	"github.com/bitmark-inc/keystore-wallet/secret"
)

var testKey = "0x" + strings.Repeat("4c0883a6", 8)

// fakeAgent keeps keystores as files holding "password key".
type fakeAgent struct {
	dir      string
	address  string
	imported []string
}

func (f *fakeAgent) KeystoreDir() string {
	return f.dir
}

func (f *fakeAgent) DecryptKeystore(name string, pw *secret.Secret) (*secret.Secret, error) {
	b, err := os.ReadFile(filepath.Join(f.dir, name))
	if err != nil {
		return nil, err
	}
	parts := strings.SplitN(string(b), " ", 2)
	if parts[0] != string(pw.Reveal()) {
		return nil, agent.CastError{Op: agent.OpDecrypt, ExitCode: 1, Message: "Error: Mac Mismatch"}
	}
	return secret.New(parts[1]), nil
}

func (f *fakeAgent) KeystoreAddress(name string, pw *secret.Secret) (string, error) {
	key, err := f.DecryptKeystore(name, pw)
	if err != nil {
		return "", err
	}
	key.Release()
	return f.address, nil
}

func (f *fakeAgent) Import(name string, key, pw *secret.Secret) (string, error) {
	f.imported = append(f.imported, string(key.Reveal()))
	content := string(pw.Reveal()) + " " + string(key.Reveal())
	if err := os.WriteFile(filepath.Join(f.dir, name), []byte(content), 0600); err != nil {
		return "", err
	}
	return f.address, nil
}

func (f *fakeAgent) New() (*agent.WalletInfo, error) {
	return &agent.WalletInfo{Address: f.address, PrivateKey: secret.New(testKey)}, nil
}

func (f *fakeAgent) Vanity(jobID string, opts agent.VanityOptions) (*agent.WalletInfo, error) {
	if opts.StartsWith == "dead" {
		return nil, agent.ErrCancelled
	}
	return f.New()
}

func (f *fakeAgent) List() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func newTestWallet(t *testing.T) (*Wallet, *fakeAgent) {
	t.Helper()
	a := &fakeAgent{dir: t.TempDir(), address: testAddress}
	w := New(a, newTestStore(t))
	w.now = func() time.Time { return time.Unix(1700000000, 0) }
	return w, a
}

func TestValidateLabel(t *testing.T) {
	for _, label := range []string{"alice", "my wallet", "wallet-2", "ünïcode"} {
		assert.NoError(t, ValidateLabel(label), label)
	}
	for _, label := range []string{"", ".hidden", "..", "a/b", `a\b`, "a\nb", strings.Repeat("x", 129)} {
		assert.ErrorIs(t, ValidateLabel(label), ErrInvalidLabel, label)
	}
}

func TestWalletCreate(t *testing.T) {
	w, a := newTestWallet(t)

	k, err := w.Create("alice", secret.New("pw"))
	require.NoError(t, err)
	assert.Equal(t, "alice", k.Label)
	assert.Equal(t, testAddress, k.Address)
	assert.Equal(t, []string{testKey}, a.imported)
	assert.True(t, w.Known("alice"))

	_, err = w.Create("alice", secret.New("pw"))
	assert.ErrorIs(t, err, ErrLabelExists)
}

func TestWalletCreateAddressMismatch(t *testing.T) {
	w, a := newTestWallet(t)
	a.address = "0x0000000000000000000000000000000000000000"

	info, err := a.New()
	require.NoError(t, err)
	info.Address = testAddress
	_, err = w.importGenerated("alice", info, secret.New("pw"))
	assert.Equal(t, ErrAddressMismatch, err)
	assert.False(t, w.Known("alice"))
}

func TestWalletVanity(t *testing.T) {
	w, _ := newTestWallet(t)

	k, err := w.Vanity("", "bob", agent.VanityOptions{EndsWith: "aed"}, secret.New("pw"))
	assert.NoError(t, err)
	assert.Equal(t, testAddress, k.Address)

	_, err = w.Vanity("", "carol", agent.VanityOptions{StartsWith: "dead"}, secret.New("pw"))
	assert.Equal(t, agent.ErrCancelled, err)
	assert.False(t, w.Known("carol"))
}

func TestWalletImport(t *testing.T) {
	w, a := newTestWallet(t)

	_, err := w.Import("alice", secret.New("0x1234"), secret.New("pw"))
	assert.Error(t, err)
	assert.Empty(t, a.imported)

	_, err = w.Import("../alice", secret.New(testKey), secret.New("pw"))
	assert.ErrorIs(t, err, ErrInvalidLabel)

	k, err := w.Import("alice", secret.New(testKey), secret.New("pw"))
	assert.NoError(t, err)
	assert.Equal(t, testAddress, k.Address)

	k, err = w.Import("bare", secret.New(strings.TrimPrefix(testKey, "0x")), secret.New("pw"))
	assert.NoError(t, err)
	assert.Equal(t, "bare", k.Label)
	assert.Equal(t, strings.TrimPrefix(testKey, "0x"), a.imported[len(a.imported)-1])
}

func TestWalletDecrypt(t *testing.T) {
	w, _ := newTestWallet(t)

	_, err := w.Decrypt("alice", secret.New("pw"))
	assert.ErrorIs(t, err, ErrKeystoreNotFound)

	_, err = w.Create("alice", secret.New("pw"))
	require.NoError(t, err)

	key, err := w.Decrypt("alice", secret.New("pw"))
	require.NoError(t, err)
	defer key.Release()
	assert.Equal(t, testKey, string(key.Reveal()))

	_, err = w.Decrypt("alice", secret.New("wrong"))
	var castErr agent.CastError
	assert.ErrorAs(t, err, &castErr)
}

func TestWalletAddressRecordsUnknown(t *testing.T) {
	w, a := newTestWallet(t)
	require.NoError(t, os.WriteFile(filepath.Join(a.dir, "external"), []byte("pw "+testKey), 0600))

	assert.False(t, w.Known("external"))
	addr, err := w.Address("external", secret.New("pw"))
	assert.NoError(t, err)
	assert.Equal(t, testAddress, addr)
	assert.True(t, w.Known("external"))
}

func TestWalletList(t *testing.T) {
	w, a := newTestWallet(t)
	_, err := w.Create("alice", secret.New("pw"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(a.dir, "external"), []byte("pw "+testKey), 0600))

	keystores, err := w.List()
	require.NoError(t, err)
	require.Len(t, keystores, 2)
	assert.Equal(t, Keystore{Label: "alice", Address: testAddress, CreatedAt: time.Unix(1700000000, 0)}, keystores[0])
	assert.Equal(t, Keystore{Label: "external"}, keystores[1])
}

func TestWalletListMissing(t *testing.T) {
	w, a := newTestWallet(t)
	_, err := w.Create("alice", secret.New("pw"))
	require.NoError(t, err)
	_, err = w.Create("bob", secret.New("pw"))
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(a.dir, "alice")))

	keystores, err := w.List()
	require.NoError(t, err)
	require.Len(t, keystores, 2)
	assert.Equal(t, "bob", keystores[0].Label)
	assert.False(t, keystores[0].Missing)
	assert.Equal(t, "alice", keystores[1].Label)
	assert.Equal(t, testAddress, keystores[1].Address)
	assert.True(t, keystores[1].Missing)

	assert.NoError(t, w.Remove("alice"))
	keystores, err = w.List()
	require.NoError(t, err)
	assert.Len(t, keystores, 1)
}

func TestWalletRemove(t *testing.T) {
	w, a := newTestWallet(t)
	_, err := w.Create("alice", secret.New("pw"))
	require.NoError(t, err)

	assert.NoError(t, w.Remove("alice"))
	assert.False(t, w.Known("alice"))
	_, err = os.Stat(filepath.Join(a.dir, "alice"))
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, w.Remove("alice"), ErrKeystoreNotFound)
	assert.ErrorIs(t, w.Remove("."), ErrInvalidLabel)
}
