package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/roach88/rlchess/internal/ir"
	"github.com/roach88/rlchess/internal/model"
)

// DefaultRetryInterval is the receipt polling interval.
const DefaultRetryInterval = 100 * time.Millisecond

var tracer = otel.Tracer("github.com/roach88/rlchess/internal/contract")

// Signer is an account able to authorize transactions.
type Signer interface {
	// Address is the account contract address, as a felt.
	Address() string
	// Sign signs a 32-byte transaction digest.
	Sign(digest []byte) ([]byte, error)
}

// Resolver maps a contract tag ("<namespace>-<name>") to its address.
type Resolver interface {
	ContractAddress(tag string) (string, error)
}

// Client talks to one JSON-RPC node.
type Client struct {
	rpc           *rpc.Client
	resolver      Resolver
	namespace     string
	chainID       string
	maxFee        string
	retryInterval time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithNamespace sets the namespace used to build contract tags.
func WithNamespace(ns string) Option {
	return func(c *Client) { c.namespace = ns }
}

// WithChainID sets the chain id mixed into transaction digests.
func WithChainID(id string) Option {
	return func(c *Client) { c.chainID = ir.NormalizeFelt(id) }
}

// WithMaxFee sets the max fee of submitted transactions.
func WithMaxFee(fee string) Option {
	return func(c *Client) { c.maxFee = ir.NormalizeFelt(fee) }
}

// WithRetryInterval sets the receipt polling interval.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.retryInterval = d
		}
	}
}

// NewClient wraps an established RPC connection.
func NewClient(conn *rpc.Client, resolver Resolver, opts ...Option) *Client {
	c := &Client{
		rpc:           conn,
		resolver:      resolver,
		namespace:     model.Namespace,
		chainID:       DefaultChainID,
		maxFee:        DefaultMaxFee,
		retryInterval: DefaultRetryInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial connects to the node at url.
func Dial(ctx context.Context, url string, resolver Resolver, opts ...Option) (*Client, error) {
	conn, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewClient(conn, resolver, opts...), nil
}

// Close closes the underlying connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// Nonce returns the pending nonce of an account.
func (c *Client) Nonce(ctx context.Context, address string) (string, error) {
	var nonce string
	if err := c.rpc.CallContext(ctx, &nonce, methodGetNonce, pendingBlock, ir.NormalizeFelt(address)); err != nil {
		return "", fmt.Errorf("get nonce: %w", err)
	}
	return ir.NormalizeFelt(nonce), nil
}

// Execute resolves the contract by tag and submits call from signer.
// Returns the transaction hash.
func (c *Client) Execute(ctx context.Context, signer Signer, call Call) (string, error) {
	tag := model.Tag(c.namespace, call.ContractName)
	to, err := c.resolver.ContractAddress(tag)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", tag, err)
	}
	return c.ExecuteAt(ctx, signer, to, call.Entrypoint, call.Calldata)
}

// ExecuteAt submits a call to an explicit contract address.
func (c *Client) ExecuteAt(ctx context.Context, signer Signer, to, entrypoint string, calldata []string) (hash string, err error) {
	ctx, span := tracer.Start(ctx, "contract.execute")
	span.SetAttributes(
		attribute.String("contract.address", to),
		attribute.String("contract.entrypoint", entrypoint),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("tx.hash", hash))
		}
		span.End()
	}()

	sender := ir.NormalizeFelt(signer.Address())
	nonce, err := c.Nonce(ctx, sender)
	if err != nil {
		return "", err
	}

	tx := InvokeTransaction{
		Type:          InvokeType,
		Version:       InvokeVersion,
		SenderAddress: sender,
		Calldata:      Multicall(to, entrypoint, calldata),
		MaxFee:        c.maxFee,
		Nonce:         nonce,
	}

	digest, err := Digest(tx, c.chainID)
	if err != nil {
		return "", err
	}
	sig, err := signer.Sign(digest)
	if err != nil {
		return "", &SignError{Err: err}
	}
	tx.Signature = SignatureFelts(sig)

	var res AddInvokeResult
	if err := c.rpc.CallContext(ctx, &res, methodAddInvoke, tx); err != nil {
		return "", fmt.Errorf("add invoke transaction: %w", classify(err))
	}
	if res.TransactionHash == "" {
		return "", fmt.Errorf("add invoke transaction: empty transaction hash")
	}
	return ir.NormalizeFelt(res.TransactionHash), nil
}

// SignError wraps a failure of the signer itself.
type SignError struct {
	Err error
}

func (e *SignError) Error() string { return "sign transaction: " + e.Err.Error() }

func (e *SignError) Unwrap() error { return e.Err }

// Digest returns the digest a signer signs for tx on chainID.
func Digest(tx InvokeTransaction, chainID string) ([]byte, error) {
	calldata := make(ir.IRArray, len(tx.Calldata))
	for i, c := range tx.Calldata {
		calldata[i] = ir.IRString(ir.NormalizeFelt(c))
	}
	return ir.TxDigest(ir.Obj(
		ir.O("type", ir.IRString(tx.Type)),
		ir.O("version", ir.IRString(tx.Version)),
		ir.O("sender_address", ir.IRString(ir.NormalizeFelt(tx.SenderAddress))),
		ir.O("calldata", calldata),
		ir.O("max_fee", ir.IRString(tx.MaxFee)),
		ir.O("nonce", ir.IRString(tx.Nonce)),
		ir.O("chain_id", ir.IRString(chainID)),
	))
}

// SignatureFelts splits a 65-byte [R || S || V] signature into felts.
// Other lengths are split into 31-byte words.
func SignatureFelts(sig []byte) []string {
	if len(sig) == 65 {
		return []string{
			ir.FeltHex(new(big.Int).SetBytes(sig[:32])),
			ir.FeltHex(new(big.Int).SetBytes(sig[32:64])),
			ir.FeltHex(big.NewInt(int64(sig[64]))),
		}
	}
	var out []string
	for i := 0; i < len(sig); i += ir.ShortStringMax {
		end := min(i+ir.ShortStringMax, len(sig))
		out = append(out, ir.FeltHex(new(big.Int).SetBytes(sig[i:end])))
	}
	return out
}

// WaitForTransaction polls for the receipt of hash until it is accepted.
// A reverted transaction returns its receipt and a *RevertedError.
func (c *Client) WaitForTransaction(ctx context.Context, hash string) (receipt *Receipt, err error) {
	ctx, span := tracer.Start(ctx, "contract.wait_receipt")
	span.SetAttributes(attribute.String("tx.hash", hash))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	limiter := rate.NewLimiter(rate.Every(c.retryInterval), 1)
	for polls := 0; ; polls++ {
		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("wait for %s: %w", hash, context.DeadlineExceeded)
		}

		var r Receipt
		err := c.rpc.CallContext(ctx, &r, methodGetReceipt, hash)
		if err != nil {
			if code, ok := rpcCode(err); ok && code == CodeTxHashNotFound {
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("get receipt %s: %w", hash, err)
		}

		if r.ExecutionStatus == ExecutionReverted {
			span.SetAttributes(attribute.Int("receipt.polls", polls+1))
			return &r, &RevertedError{TxHash: hash, Reason: r.RevertReason}
		}
		if !r.Accepted() {
			continue
		}
		span.SetAttributes(attribute.Int("receipt.polls", polls+1))
		return &r, nil
	}
}

// ExecuteAndWait submits call and waits for its receipt.
func (c *Client) ExecuteAndWait(ctx context.Context, signer Signer, call Call) (string, *Receipt, error) {
	hash, err := c.Execute(ctx, signer, call)
	if err != nil {
		return "", nil, err
	}
	r, err := c.WaitForTransaction(ctx, hash)
	if err != nil && !errors.As(err, new(*RevertedError)) {
		return hash, nil, err
	}
	return hash, r, err
}

// ChainID queries the node's chain id.
func (c *Client) ChainID(ctx context.Context) (string, error) {
	var id string
	if err := c.rpc.CallContext(ctx, &id, methodChainID); err != nil {
		return "", fmt.Errorf("chain id: %w", err)
	}
	return ir.NormalizeFelt(id), nil
}
