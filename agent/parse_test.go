package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPrivateKey(t *testing.T) {
	out := []byte("alice keystore private key is: " + testKey + "\r\n")
	key, err := extractPrivateKey(out, decryptKeyMarker)
	require.NoError(t, err)
	assert.Equal(t, testKey, string(key.Reveal()))

	// the secret owns a copy
	out[len("alice keystore private key is: ")+2] = 'z'
	assert.Equal(t, testKey, string(key.Reveal()))
	key.Release()

	_, err = extractPrivateKey([]byte("Error: Mac Mismatch"), decryptKeyMarker)
	assert.Equal(t, ErrPrivateKeyNotFound, err)

	_, err = extractPrivateKey([]byte("private key is: 0xnothex"), decryptKeyMarker)
	assert.ErrorIs(t, err, ErrPrivateKeyNotFound)
}

func TestExtractAddress(t *testing.T) {
	addr, err := extractAddress([]byte("Address:     "+testAddress+"\nPrivate key: x\n"), addressMarker)
	assert.NoError(t, err)
	assert.Equal(t, testAddress, addr)

	_, err = extractAddress([]byte("saved"), addressMarker)
	assert.Equal(t, ErrAddressNotFound, err)

	_, err = extractAddress([]byte("Address: 0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"), addressMarker)
	assert.ErrorIs(t, err, ErrAddressNotFound)
}

func TestFindAddress(t *testing.T) {
	addr, err := findAddress([]byte("\r\n" + testAddress + "\r\n"))
	assert.NoError(t, err)
	assert.Equal(t, testAddress, addr)

	_, err = findAddress([]byte("Error: Mac Mismatch"))
	assert.Equal(t, ErrAddressNotFound, err)

	_, err = findAddress([]byte("\r\n \r\n"))
	assert.Equal(t, ErrUnexpectedOutput, err)
}

func TestWalletInfoUnexpectedOutput(t *testing.T) {
	_, err := walletInfo([]byte("Starting to generate vanity address...\n"), vanityKeyMarker)
	assert.Equal(t, ErrUnexpectedOutput, err)

	_, err = walletInfo([]byte("Address: "+testAddress+"\n"), vanityKeyMarker)
	assert.Equal(t, ErrPrivateKeyNotFound, err)

	info, err := walletInfo([]byte("Address: "+testAddress+"\nPrivate Key: "+testKey+"\n"), vanityKeyMarker)
	require.NoError(t, err)
	defer info.PrivateKey.Release()
	assert.Equal(t, testAddress, info.Address)
}

func TestWalletNames(t *testing.T) {
	names, err := walletNames([]byte("alice (Local)\n\n  bob (Local)\r\ncarol\n"))
	assert.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, names)

	names, err = walletNames(nil)
	assert.NoError(t, err)
	assert.Equal(t, []string{}, names)

	_, err = walletNames([]byte("alice (Local)\nError: No such file or directory\n"))
	assert.ErrorIs(t, err, ErrUnexpectedOutput)
	_, err = walletNames([]byte("/home/alice/.foundry/keystores/alice\n"))
	assert.ErrorIs(t, err, ErrUnexpectedOutput)
}

func TestFailureMessage(t *testing.T) {
	assert.Equal(t, "Error: Mac Mismatch", failureMessage([]byte("\r\nloading\r\nError: Mac Mismatch\r\n\r\n")))
	assert.Equal(t, "", failureMessage(nil))
}

func TestCastError(t *testing.T) {
	assert.EqualError(t, CastError{Op: OpList, ExitCode: 2}, "cast wallet list exited with code 2")
	assert.EqualError(t, CastError{Op: OpDecrypt, ExitCode: 1, Message: "Error: Mac Mismatch"},
		"cast wallet decrypt-keystore exited with code 1: Error: Mac Mismatch")
}

func TestOperationParams(t *testing.T) {
	assert.True(t, OpDecrypt.Interactive())
	assert.True(t, OpImport.Interactive())
	assert.False(t, OpNew.Interactive())
	assert.False(t, OpVanity.Interactive())
	assert.Equal(t, 2, OperationMap[OpImport].Prompts)
	assert.True(t, OperationMap[OpDecrypt].Secret)
	assert.False(t, OperationMap[OpList].Secret)
}
