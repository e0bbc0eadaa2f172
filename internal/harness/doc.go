// Package harness runs reconciliation scenarios end to end.
//
// A scenario drives the board and sticky engines through their platform
// handlers against the in-memory transport and checkpoint store, records
// what every step did, and checks assertions on the result.
//
// # Scenario Format
//
//	name: board_threshold
//	description: "Mirror appears once the threshold is crossed"
//	guild: g1
//	board:
//	  channel_id: board
//	sources:
//	  - id: s1
//	    channel: general
//	    author: alice
//	    content: "hello"
//	steps:
//	  - do: react
//	    message: s1
//	    count: 4
//	    expect: created
//	  - do: delete
//	    message: s1
//	    expect: deleted
//	assertions:
//	  - type: live_count
//	    channel: board
//	    count: 0
//
// # Steps
//
//   - react, unreact: a reaction change on a source message (message, count, user, emoji)
//   - clear: every reaction removed from a source message
//   - delete: a source message deleted
//   - sticky_set, sticky_disable: sticky commands (channel, text)
//   - message: channel activity; a user post, or with bot: true the
//     platform echo of an existing bot message (channel, message)
//   - vanish: a representation deleted out of band (channel, message)
//   - fail: arm failures on the transport or store (target, op, times)
//   - restart: rebuild both engines, optionally over an empty store
//
// Steps that reach an engine record its outcome; steps filtered by a
// handler record "ignored"; the rest record "ok".
//
// # Assertion Types
//
//   - outcome_count: number of steps that recorded an outcome
//   - live_count: number of bot or webhook messages in a channel
//   - checkpoint_count: number of checkpoints of a domain
//   - transport_calls: successful transport calls of one kind
//
// # Deterministic Testing
//
// Message ids come from the in-memory transport's counter and events are
// stamped from a fresh logical clock, so a scenario always produces the
// same trace. RunWithGolden compares it against testdata/golden.
package harness
