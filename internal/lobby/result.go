package lobby

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/rlchess/internal/contract"
	"github.com/roach88/rlchess/internal/ir"
)

// Action names a contract entrypoint wrapped by the client.
type Action string

const (
	ActionRegisterPlayer Action = "register_player"
	ActionUpdatePlayer   Action = "update_player"
	ActionInvite         Action = "invite"
	ActionReplyInvite    Action = "reply_invite"
	ActionCreateGame     Action = "create_game"
	ActionJoinGame       Action = "join_game"
	ActionStartGame      Action = "start_game"
	ActionMakeMove       Action = "make_move"
)

// Status is the final outcome of an action.
type Status string

const (
	// StatusConfirmed means the transaction was accepted and, when a sync
	// service is attached, the expected state was observed locally.
	StatusConfirmed Status = "confirmed"
	// StatusRejected means the node refused the transaction or it reverted.
	StatusRejected Status = "rejected"
	StatusTimedOut Status = "timed_out"
	StatusCanceled Status = "canceled"
	// StatusFailed covers local failures: bad input, signer errors,
	// transport errors and recovered panics.
	StatusFailed Status = "failed"
)

// Stage is the last step an action reached.
type Stage string

const (
	StageEncode  Stage = "encode"
	StageSign    Stage = "sign"
	StageSubmit  Stage = "submit"
	StageReceipt Stage = "receipt"
	StageSync    Stage = "sync"
)

// Result reports what happened to one action.
type Result struct {
	Action Action
	TxHash string // empty when the action failed before submission
	Status Status
	Stage  Stage

	// Entity and Component identify the synced component that confirmed the
	// action; Value is its state at that moment.
	Entity    string
	Component string
	Value     ir.IRObject

	Err      error // *Error unless Status is StatusConfirmed
	Duration time.Duration
}

// OK reports whether the action was confirmed.
func (r Result) OK() bool { return r.Status == StatusConfirmed }

// Error describes why an action did not confirm.
type Error struct {
	Code   Status
	Action Action
	Stage  Stage
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s at %s: %v", e.Action, e.Code, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// classify maps an error from any stage onto a Status.
func classify(err error) Status {
	switch {
	case errors.Is(err, context.Canceled):
		return StatusCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return StatusTimedOut
	case contract.IsRejected(err):
		return StatusRejected
	default:
		return StatusFailed
	}
}
