package store

import "github.com/roach88/rlchess/internal/ir"

// Component is one stored (entity, component) value.
type Component struct {
	EntityID  string
	Component string
	Keys      ir.IRArray // felt keys the entity id was derived from
	Value     ir.IRObject
	Seq       int64
}

// TxStatus is the journal state of a submitted transaction.
type TxStatus string

const (
	TxSubmitted TxStatus = "submitted"
	TxConfirmed TxStatus = "confirmed"
	TxRejected  TxStatus = "rejected"
	TxTimedOut  TxStatus = "timed_out"
	TxCanceled  TxStatus = "canceled"
	TxFailed    TxStatus = "failed"
)

// TxRecord is one row of the transaction journal.
type TxRecord struct {
	TxHash        string
	Action        string
	Sender        string
	Contract      string
	Entrypoint    string
	Calldata      []string // felt hex
	Status        TxStatus
	Detail        string
	CorrelationID string
	SubmittedAt   int64 // unix milliseconds
	UpdatedAt     int64 // unix milliseconds
}
