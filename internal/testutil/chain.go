package testutil

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/roach88/rlchess/internal/contract"
	"github.com/roach88/rlchess/internal/ir"
)

// RPCError is a JSON-RPC error with a code, as the node would return it.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string  { return e.Message }
func (e *RPCError) ErrorCode() int { return e.Code }

// ChainCall is one decoded call of an invoke transaction.
type ChainCall struct {
	To       string
	Selector string
	Calldata []string
}

// ChainTx is an invoke transaction the fake chain accepted.
type ChainTx struct {
	Hash  string
	Tx    contract.InvokeTransaction
	Calls []ChainCall
}

// Outcome decides what happens to a submitted transaction.
type Outcome struct {
	// Reject refuses the transaction at submission.
	Reject *RPCError
	// Revert marks the receipt REVERTED with this reason.
	Revert string
	// PendingPolls is the number of receipt polls answered RECEIVED before
	// the final receipt.
	PendingPolls int
	// Hidden makes the receipt unknown (TXN_HASH_NOT_FOUND) for that many
	// polls first.
	Hidden int
}

type fakeReceipt struct {
	receipt contract.Receipt
	hidden  int
	pending int
}

// FakeChain is an in-process JSON-RPC node for tests.
//
// It keeps nonces per sender, assigns sequential transaction hashes and
// serves receipts. Decide chooses each transaction's fate; OnAccepted runs
// after a transaction is accepted and not reverted, typically to push the
// resulting component updates into a sync service.
type FakeChain struct {
	Decide     func(tx ChainTx) Outcome
	OnAccepted func(tx ChainTx)

	mu       sync.Mutex
	nonces   map[string]uint64
	txs      []ChainTx
	receipts map[string]*fakeReceipt
	block    uint64
}

// NewFakeChain creates an empty chain that accepts everything.
func NewFakeChain() *FakeChain {
	return &FakeChain{
		nonces:   make(map[string]uint64),
		receipts: make(map[string]*fakeReceipt),
	}
}

// Server returns an RPC server exposing the chain under the starknet_ namespace.
func (f *FakeChain) Server() *rpc.Server {
	srv := rpc.NewServer()
	if err := srv.RegisterName("starknet", &starknetService{chain: f}); err != nil {
		panic(fmt.Sprintf("register fake chain: %v", err))
	}
	return srv
}

// Dial returns an in-process client, closed when the test ends.
func (f *FakeChain) Dial(t testing.TB) *rpc.Client {
	t.Helper()
	srv := f.Server()
	c := rpc.DialInProc(srv)
	t.Cleanup(func() {
		c.Close()
		srv.Stop()
	})
	return c
}

// Transactions returns accepted transactions in submission order.
func (f *FakeChain) Transactions() []ChainTx {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ChainTx(nil), f.txs...)
}

// SetNonce sets the next nonce of an account.
func (f *FakeChain) SetNonce(address string, nonce uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonces[ir.NormalizeFelt(address)] = nonce
}

func (f *FakeChain) submit(tx contract.InvokeTransaction) (string, error) {
	if len(tx.Signature) == 0 {
		return "", &RPCError{Code: contract.CodeValidationFailure, Message: "Account validation failed: missing signature"}
	}
	calls, err := decodeMulticall(tx.Calldata)
	if err != nil {
		return "", &RPCError{Code: contract.CodeValidationFailure, Message: err.Error()}
	}

	f.mu.Lock()
	sender := ir.NormalizeFelt(tx.SenderAddress)
	want := f.nonces[sender]
	got, err := ir.ParseFelt(tx.Nonce)
	if err != nil || !got.IsUint64() || got.Uint64() != want {
		f.mu.Unlock()
		return "", &RPCError{Code: contract.CodeInvalidNonce, Message: "Invalid transaction nonce"}
	}
	hash := ir.FeltHex(big.NewInt(int64(0x1000 + len(f.txs) + 1)))
	accepted := ChainTx{Hash: hash, Tx: tx, Calls: calls}
	decide := f.Decide
	f.mu.Unlock()

	var out Outcome
	if decide != nil {
		out = decide(accepted)
	}
	if out.Reject != nil {
		return "", out.Reject
	}

	f.mu.Lock()
	f.nonces[sender] = want + 1
	f.block++
	f.txs = append(f.txs, accepted)
	r := &fakeReceipt{
		receipt: contract.Receipt{
			TransactionHash: hash,
			FinalityStatus:  contract.FinalityAcceptedL2,
			ExecutionStatus: contract.ExecutionSucceeded,
			BlockNumber:     f.block,
		},
		hidden:  out.Hidden,
		pending: out.PendingPolls,
	}
	if out.Revert != "" {
		r.receipt.ExecutionStatus = contract.ExecutionReverted
		r.receipt.RevertReason = out.Revert
	}
	f.receipts[hash] = r
	onAccepted := f.OnAccepted
	f.mu.Unlock()

	if onAccepted != nil && out.Revert == "" {
		onAccepted(accepted)
	}
	return hash, nil
}

func (f *FakeChain) receipt(hash string) (*contract.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.receipts[ir.NormalizeFelt(hash)]
	if !ok || r.hidden > 0 {
		if ok {
			r.hidden--
		}
		return nil, &RPCError{Code: contract.CodeTxHashNotFound, Message: "Transaction hash not found"}
	}
	out := r.receipt
	if r.pending > 0 {
		r.pending--
		out.FinalityStatus = contract.FinalityReceived
		out.ExecutionStatus = ""
		out.RevertReason = ""
	}
	return &out, nil
}

func decodeMulticall(calldata []string) ([]ChainCall, error) {
	next := func(i int) (int, error) {
		if i >= len(calldata) {
			return 0, fmt.Errorf("multicall: truncated calldata")
		}
		n, err := ir.ParseFelt(calldata[i])
		if err != nil || !n.IsInt64() || n.Int64() > int64(len(calldata)) {
			return 0, fmt.Errorf("multicall: bad length %q", calldata[i])
		}
		return int(n.Int64()), nil
	}

	count, err := next(0)
	if err != nil {
		return nil, err
	}
	calls := make([]ChainCall, 0, count)
	i := 1
	for c := 0; c < count; c++ {
		if i+3 > len(calldata) {
			return nil, fmt.Errorf("multicall: truncated call %d", c)
		}
		n, err := next(i + 2)
		if err != nil {
			return nil, err
		}
		start := i + 3
		if start+n > len(calldata) {
			return nil, fmt.Errorf("multicall: truncated calldata for call %d", c)
		}
		calls = append(calls, ChainCall{
			To:       ir.NormalizeFelt(calldata[i]),
			Selector: ir.NormalizeFelt(calldata[i+1]),
			Calldata: append([]string(nil), calldata[start:start+n]...),
		})
		i = start + n
	}
	return calls, nil
}

// starknetService holds the RPC methods so FakeChain's own exported
// helpers are not registered.
type starknetService struct {
	chain *FakeChain
}

func (s *starknetService) GetNonce(ctx context.Context, block, address string) (string, error) {
	s.chain.mu.Lock()
	defer s.chain.mu.Unlock()
	return ir.FeltHex(new(big.Int).SetUint64(s.chain.nonces[ir.NormalizeFelt(address)])), nil
}

func (s *starknetService) AddInvokeTransaction(ctx context.Context, tx contract.InvokeTransaction) (contract.AddInvokeResult, error) {
	hash, err := s.chain.submit(tx)
	if err != nil {
		return contract.AddInvokeResult{}, err
	}
	return contract.AddInvokeResult{TransactionHash: hash}, nil
}

func (s *starknetService) GetTransactionReceipt(ctx context.Context, hash string) (*contract.Receipt, error) {
	return s.chain.receipt(hash)
}

func (s *starknetService) ChainId(ctx context.Context) (string, error) {
	return contract.DefaultChainID, nil
}
