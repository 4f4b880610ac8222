package contract

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// JSON-RPC error codes the client interprets.
const (
	CodeContractNotFound     = 20
	CodeContractError        = 40
	CodeTransactionExecution = 41
	CodeTxHashNotFound       = 29
	CodeInvalidNonce         = 52
	CodeInsufficientMaxFee   = 53
	CodeInsufficientBalance  = 54
	CodeValidationFailure    = 55
)

// RejectedError is returned when the node refuses a transaction.
type RejectedError struct {
	Code    int
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("transaction rejected (code %d): %s", e.Code, e.Message)
}

// RevertedError is returned when an accepted transaction reverted.
type RevertedError struct {
	TxHash string
	Reason string
}

func (e *RevertedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("transaction %s reverted", e.TxHash)
	}
	return fmt.Sprintf("transaction %s reverted: %s", e.TxHash, e.Reason)
}

// IsRejected reports whether err means the transaction did not execute
// successfully, either refused by the node or reverted on chain.
func IsRejected(err error) bool {
	var rej *RejectedError
	var rev *RevertedError
	return errors.As(err, &rej) || errors.As(err, &rev)
}

func rpcCode(err error) (int, bool) {
	var rerr rpc.Error
	if errors.As(err, &rerr) {
		return rerr.ErrorCode(), true
	}
	return 0, false
}

// classify turns a node error into a *RejectedError when its code means
// the transaction was refused.
func classify(err error) error {
	code, ok := rpcCode(err)
	if !ok {
		return err
	}
	switch code {
	case CodeContractNotFound, CodeContractError, CodeTransactionExecution,
		CodeInvalidNonce, CodeInsufficientMaxFee, CodeInsufficientBalance, CodeValidationFailure:
		return &RejectedError{Code: code, Message: err.Error()}
	}
	return err
}
