// Package dedupe provides a TTL-bounded cache of recently seen message IDs.
//
// Transports may re-deliver a protocol message; the workflow engine checks
// each message ID with Seen before sequencing an event, so a retry never
// produces a second phase transition. Seen is a single atomic
// check-and-mark, so concurrent deliveries of the same message resolve to
// exactly one winner.
//
// The cache is bounded both by time (TTL) and size (oldest-first eviction).
// It is best-effort memory, not durable storage: a restart forgets history,
// which is acceptable because sequence numbers let consumers detect
// duplicates end to end.
package dedupe
