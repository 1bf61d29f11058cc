// Package workflow tracks one multi-turn user/agent interaction through a
// phase state machine that survives asynchronous, possibly late events.
//
// # Overview
//
// Each Execution is the root aggregate for a single correlated interaction:
// the chat message that started it, the assistant message that must receive
// the eventual answer, the bound agent, and the current phase. Phases move
// forward only:
//
//	initial → clarification → discovery → selection → preview → executing → completed
//
// Phases may be skipped but never revisited, except clarification which may
// recur while the agent asks further rounds of questions. Error (and the
// distinct interrupted state for user-requested cancellation) is reachable
// from any non-terminal phase and is terminal.
//
// # Correlation guarantee
//
// InitialMessageID and ResponseMessageID are captured at creation and never
// reassigned by any later event. Whatever happens in between — clarification
// rounds, plan revisions, hours of wall-clock delay — a consumer can always
// resolve which chat bubble a workflow's answer belongs to.
//
// # Event ingestion
//
// The Engine owns all executions. Apply assigns each incoming event the
// workflow's next sequence number, appends it to a bounded ring buffer, and
// dispatches purely on (current phase, event type). Events addressed to a
// terminal workflow are buffered for audit but never mutate phase or
// progress. Unrecognized event types are buffered no-ops, keeping the
// machine forward-compatible. Exact duplicate messages (same message ID)
// are dropped before sequencing.
//
// Events for one workflow are applied serially; distinct workflows are
// fully independent and process in parallel.
package workflow
