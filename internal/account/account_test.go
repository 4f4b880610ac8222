package account

import (
	"context"
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rlchess/internal/contract"
	"github.com/roach88/rlchess/internal/ir"
	"github.com/roach88/rlchess/internal/testutil"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

var lightKDF = KDFParams{Time: 1, Memory: 8, Threads: 1}

func TestKeySigner_SignVerify(t *testing.T) {
	s, err := KeySignerFromHex("0xABC", "0x1")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", s.Address())
	assert.True(t, ir.IsFelt(s.PublicKey()))

	digest := sha256.Sum256([]byte("make_move"))
	sig, err := s.Sign(digest[:])
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.True(t, Verify(&s.key.PublicKey, digest[:], sig))

	other := sha256.Sum256([]byte("start_game"))
	assert.False(t, Verify(&s.key.PublicKey, other[:], sig))
}

func TestKeySigner_Errors(t *testing.T) {
	_, err := KeySignerFromHex("not-a-felt", "0x1")
	assert.Error(t, err)

	_, err = KeySignerFromHex("0x1", "0xzz")
	assert.Error(t, err)

	s, err := KeySignerFromHex("0x1", "0x2")
	require.NoError(t, err)
	_, err = s.Sign([]byte("short"))
	assert.Error(t, err)
}

func TestKeySigner_PrivateKeyRoundTrip(t *testing.T) {
	s, err := KeySignerFromHex("0x1", "0x0123")
	require.NoError(t, err)
	again, err := KeySignerFromHex("0x1", s.PrivateKeyHex())
	require.NoError(t, err)
	assert.Equal(t, s.PublicKey(), again.PublicKey())
}

func TestManager_DeriveIsDeterministic(t *testing.T) {
	m, err := NewManager(nil, nil, "", testMnemonic, nil)
	require.NoError(t, err)

	b0, s0, err := m.Derive(0)
	require.NoError(t, err)
	b0again, _, err := m.Derive(0)
	require.NoError(t, err)
	b1, _, err := m.Derive(1)
	require.NoError(t, err)

	assert.Equal(t, b0, b0again)
	assert.NotEqual(t, b0.Address, b1.Address)
	assert.Equal(t, b0.Address, s0.Address())
	assert.True(t, ir.IsFelt(b0.Address))
}

func TestNewManager_RejectsBadMnemonic(t *testing.T) {
	_, err := NewManager(nil, nil, "", "not a real mnemonic", nil)
	assert.Error(t, err)
}

func TestNewMnemonic(t *testing.T) {
	m, err := NewMnemonic()
	require.NoError(t, err)
	_, err = NewManager(nil, nil, "", m, nil)
	assert.NoError(t, err)
}

func TestManager_CreateDeploysFromMaster(t *testing.T) {
	chain := testutil.NewFakeChain()
	client := contract.NewClient(chain.Dial(t), nil, contract.WithRetryInterval(time.Millisecond))
	master := &testutil.StubSigner{Addr: "0x99"}

	m, err := NewManager(master, client, "", testMnemonic, nil)
	require.NoError(t, err)

	b, err := m.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, b.Index)
	assert.NotEmpty(t, b.TxHash)
	assert.Equal(t, b.Address, m.Active())

	txs := chain.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, "0x99", txs[0].Tx.SenderAddress)
	assert.Equal(t, contract.UniversalDeployer, txs[0].Calls[0].To)
	assert.Equal(t, []string{b.PublicKey}, txs[0].Calls[0].Calldata[4:])

	b1, err := m.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, b1.Index)
	assert.Len(t, m.List(), 2)

	_, err = m.Select(b.Address)
	require.NoError(t, err)
	assert.Equal(t, b.Address, m.Active())

	s, err := m.Signer(b1.Address)
	require.NoError(t, err)
	assert.Equal(t, b1.Address, s.Address())

	_, err = m.Select("0x1234")
	assert.Error(t, err)

	m.Clear()
	assert.Empty(t, m.List())
	assert.Empty(t, m.Active())
}

func TestManager_CreateReverted(t *testing.T) {
	chain := testutil.NewFakeChain()
	chain.Decide = func(testutil.ChainTx) testutil.Outcome { return testutil.Outcome{Revert: "out of gas"} }
	client := contract.NewClient(chain.Dial(t), nil, contract.WithRetryInterval(time.Millisecond))

	m, err := NewManager(&testutil.StubSigner{Addr: "0x99"}, client, "", testMnemonic, nil)
	require.NoError(t, err)

	_, err = m.Create(context.Background())
	assert.True(t, contract.IsRejected(err))
	assert.Empty(t, m.List())
}

func TestKeystore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "keystore.json")
	ks := Keystore{
		Mnemonic: testMnemonic,
		Burners:  []Burner{{Index: 0, Address: "0xb0", PublicKey: "0x1"}},
		Active:   "0xb0",
	}
	require.NoError(t, ks.SaveWithParams(path, "hunter2", lightKDF))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "abandon")

	got, err := LoadKeystore(path, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, ks, got)

	_, err = LoadKeystore(path, "wrong")
	assert.ErrorIs(t, err, ErrWrongPassphrase)
}

func TestKeystore_EmptyPassphrase(t *testing.T) {
	err := Keystore{Mnemonic: testMnemonic}.SaveWithParams(filepath.Join(t.TempDir(), "k.json"), "", lightKDF)
	assert.Error(t, err)
}
