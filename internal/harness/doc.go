// Package harness runs scripted lobby sessions against a simulated chain.
//
// A scenario names a few accounts, a flow of actions signed by them, and
// assertions over the resulting trace and synced state. Each run gets a
// fresh in-memory store, an entity sync service and a fake node whose
// world model plays the lobby and gameroom contracts and feeds component
// updates back into the sync service, so every action goes through the
// same submit, receipt and sync stages as against a real node.
//
// # Scenario Format
//
//	name: invite_and_play
//	description: "Alice invites Bob and they play two moves"
//	accounts:
//	  alice: "0xa11ce"
//	  bob: "0xb0b"
//	flow:
//	  - as: alice
//	    invoke: register_player
//	    args: { name: alice, profile_pic_type: Native }
//	  - as: alice
//	    invoke: invite
//	    args: { game_format_id: 1, invitee: bob, invite_expiry: 1700003600 }
//	    expect:
//	      status: confirmed
//	      value: { invite_state: Awaiting }
//	assertions:
//	  - type: trace_count
//	    action: make_move
//	    count: 2
//	  - type: final_state
//	    component: Game
//	    where: { game_id: 1 }
//	    expect: { invite_state: Accepted }
//
// Address arguments may name an account instead of spelling the address.
// A step without expect must confirm.
//
// # Assertion Types
//
//   - trace_contains: an action was invoked with matching args (and status)
//   - trace_order: actions were invoked in the given relative order
//   - trace_count: an action was invoked exactly N times
//   - final_state: a synced component matches the expected fields
//
// # Deterministic Testing
//
// Transaction hashes, game ids, correlation ids and timestamps depend only
// on the flow, so traces can be compared byte for byte with golden files.
package harness
