// Package contract submits transactions to the chain's JSON-RPC endpoint.
//
// Execute signs and sends a single-call invoke transaction addressed by the
// contract's manifest tag. WaitForTransaction polls for the receipt until
// the transaction is accepted or reverted. Errors are typed: the node
// refusing a transaction yields *RejectedError, an accepted transaction
// that reverted yields *RevertedError.
package contract
