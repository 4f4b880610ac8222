package contract_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rlchess/internal/contract"
	"github.com/roach88/rlchess/internal/testutil"
)

type staticResolver map[string]string

func (r staticResolver) ContractAddress(tag string) (string, error) {
	addr, ok := r[tag]
	if !ok {
		return "", fmt.Errorf("unknown contract %q", tag)
	}
	return addr, nil
}

var resolver = staticResolver{
	"rl_chess_contracts-lobby":    "0x10",
	"rl_chess_contracts-gameroom": "0x20",
}

func newClient(t *testing.T, chain *testutil.FakeChain) *contract.Client {
	t.Helper()
	return contract.NewClient(chain.Dial(t), resolver, contract.WithRetryInterval(time.Millisecond))
}

func TestSelector(t *testing.T) {
	// Known Starknet selectors.
	assert.Equal(t, "0x15d40a3d6ca2ac30f4031e42be28da9b056fef9bb7357ac5e85627ee876e5ad", contract.Selector("__execute__"))
	assert.Equal(t, "0x83afd3f4caedc6eebf44246fe54e38c95e3179a5ec9ea81740eca5b482d12e", contract.Selector("transfer"))
}

func TestMulticall(t *testing.T) {
	cd := contract.Multicall("0x0010", "join_game", []string{"0x03"})
	require.Len(t, cd, 5)
	assert.Equal(t, "0x1", cd[0])
	assert.Equal(t, "0x10", cd[1])
	assert.Equal(t, contract.Selector("join_game"), cd[2])
	assert.Equal(t, "0x1", cd[3])
	assert.Equal(t, "0x3", cd[4])
}

func TestExecute_SubmitsSignedCall(t *testing.T) {
	chain := testutil.NewFakeChain()
	c := newClient(t, chain)
	signer := &testutil.StubSigner{Addr: "0xabc"}

	hash, err := c.Execute(context.Background(), signer, contract.Call{
		ContractName: "lobby",
		Entrypoint:   "create_game",
		Calldata:     []string{"0x2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "0x1001", hash)

	txs := chain.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, "0xabc", txs[0].Tx.SenderAddress)
	assert.Equal(t, "0x0", txs[0].Tx.Nonce)
	assert.Len(t, txs[0].Tx.Signature, 3)
	require.Len(t, txs[0].Calls, 1)
	assert.Equal(t, "0x10", txs[0].Calls[0].To)
	assert.Equal(t, contract.Selector("create_game"), txs[0].Calls[0].Selector)
	assert.Equal(t, []string{"0x2"}, txs[0].Calls[0].Calldata)

	// Nonce advances.
	_, err = c.Execute(context.Background(), signer, contract.Call{ContractName: "gameroom", Entrypoint: "start_game", Calldata: []string{"0x2"}})
	require.NoError(t, err)
	assert.Equal(t, "0x1", chain.Transactions()[1].Tx.Nonce)
}

func TestExecute_UnknownContract(t *testing.T) {
	c := newClient(t, testutil.NewFakeChain())
	_, err := c.Execute(context.Background(), &testutil.StubSigner{Addr: "0x1"}, contract.Call{ContractName: "nope", Entrypoint: "x"})
	assert.ErrorContains(t, err, "rl_chess_contracts-nope")
}

func TestExecute_SignerFailure(t *testing.T) {
	chain := testutil.NewFakeChain()
	c := newClient(t, chain)
	boom := errors.New("hsm offline")

	_, err := c.Execute(context.Background(), &testutil.StubSigner{Addr: "0x1", Err: boom}, contract.Call{ContractName: "lobby", Entrypoint: "invite"})
	require.Error(t, err)
	var signErr *contract.SignError
	assert.ErrorAs(t, err, &signErr)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, chain.Transactions())
}

func TestExecute_Rejected(t *testing.T) {
	chain := testutil.NewFakeChain()
	chain.Decide = func(testutil.ChainTx) testutil.Outcome {
		return testutil.Outcome{Reject: &testutil.RPCError{Code: contract.CodeInsufficientBalance, Message: "insufficient balance"}}
	}
	c := newClient(t, chain)

	_, err := c.Execute(context.Background(), &testutil.StubSigner{Addr: "0x1"}, contract.Call{ContractName: "lobby", Entrypoint: "invite"})
	var rej *contract.RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, contract.CodeInsufficientBalance, rej.Code)
	assert.True(t, contract.IsRejected(err))
}

func TestNonce_FollowsChain(t *testing.T) {
	chain := testutil.NewFakeChain()
	chain.SetNonce("0x1", 4)
	c := newClient(t, chain)
	signer := &testutil.StubSigner{Addr: "0x1"}

	_, err := c.Execute(context.Background(), signer, contract.Call{ContractName: "lobby", Entrypoint: "invite"})
	require.NoError(t, err)

	nonce, err := c.Nonce(context.Background(), "0x1")
	require.NoError(t, err)
	assert.Equal(t, "0x5", nonce)
	assert.Equal(t, "0x4", chain.Transactions()[0].Tx.Nonce)
}

func TestWaitForTransaction_PollsUntilAccepted(t *testing.T) {
	chain := testutil.NewFakeChain()
	chain.Decide = func(testutil.ChainTx) testutil.Outcome {
		return testutil.Outcome{Hidden: 2, PendingPolls: 2}
	}
	c := newClient(t, chain)

	hash, err := c.Execute(context.Background(), &testutil.StubSigner{Addr: "0x1"}, contract.Call{ContractName: "lobby", Entrypoint: "invite"})
	require.NoError(t, err)

	r, err := c.WaitForTransaction(context.Background(), hash)
	require.NoError(t, err)
	assert.True(t, r.Accepted())
	assert.Equal(t, contract.ExecutionSucceeded, r.ExecutionStatus)
}

func TestWaitForTransaction_Reverted(t *testing.T) {
	chain := testutil.NewFakeChain()
	chain.Decide = func(testutil.ChainTx) testutil.Outcome {
		return testutil.Outcome{Revert: "Game: not your turn"}
	}
	c := newClient(t, chain)

	hash, r, err := c.ExecuteAndWait(context.Background(), &testutil.StubSigner{Addr: "0x1"}, contract.Call{ContractName: "gameroom", Entrypoint: "make_move"})
	var rev *contract.RevertedError
	require.ErrorAs(t, err, &rev)
	assert.Equal(t, hash, rev.TxHash)
	assert.Contains(t, rev.Reason, "not your turn")
	require.NotNil(t, r)
	assert.Equal(t, contract.ExecutionReverted, r.ExecutionStatus)
}

func TestWaitForTransaction_Deadline(t *testing.T) {
	c := newClient(t, testutil.NewFakeChain())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.WaitForTransaction(ctx, "0xdead")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDeploy_UsesUniversalDeployer(t *testing.T) {
	chain := testutil.NewFakeChain()
	c := newClient(t, chain)

	_, err := c.Deploy(context.Background(), &testutil.StubSigner{Addr: "0x1"}, "0xc1a55", "0x5a17", []string{"0xbeef"})
	require.NoError(t, err)

	call := chain.Transactions()[0].Calls[0]
	assert.Equal(t, contract.UniversalDeployer, call.To)
	assert.Equal(t, contract.Selector("deployContract"), call.Selector)
	assert.Equal(t, []string{"0xc1a55", "0x5a17", "0x0", "0x1", "0xbeef"}, call.Calldata)
}

func TestSignatureFelts(t *testing.T) {
	sig := make([]byte, 65)
	sig[31] = 7
	sig[63] = 9
	sig[64] = 1
	assert.Equal(t, []string{"0x7", "0x9", "0x1"}, contract.SignatureFelts(sig))
	assert.Len(t, contract.SignatureFelts(make([]byte, 64)), 3)
}

func TestDigest_DependsOnChainAndNonce(t *testing.T) {
	tx := contract.InvokeTransaction{Type: "INVOKE", Version: "0x1", SenderAddress: "0x1", Calldata: []string{"0x1"}, MaxFee: "0x0", Nonce: "0x0"}
	a, err := contract.Digest(tx, "0x1")
	require.NoError(t, err)
	b, err := contract.Digest(tx, "0x2")
	require.NoError(t, err)
	tx.Nonce = "0x1"
	c, err := contract.Digest(tx, "0x1")
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestChainID(t *testing.T) {
	c := newClient(t, testutil.NewFakeChain())
	id, err := c.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, contract.DefaultChainID, id)
}
