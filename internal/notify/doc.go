// Package notify provides the typed pub/sub channel between the
// coordination core and its observers.
//
// # Overview
//
// The registry and the workflow engine emit Events onto a Broadcaster; any
// number of consumers (chat UI, activity dashboard, logging) subscribe
// without the core knowing they exist.
//
// # Topics
//
// Agent lifecycle notifications are published on TopicRegistry:
//
//   - agent:registered, agent:unregistered
//   - agent:heartbeat (a fresh heartbeat was recorded)
//   - agent:offline (the liveness sweep found a stale agent)
//
// Workflow notifications use the workflow ID as topic:
//
//   - workflow:phase (the workflow entered a new phase)
//   - workflow:progress (presentation-only progress metadata)
//
// # Delivery
//
// Delivery is best-effort: each subscriber has a bounded channel and slow
// subscribers have events dropped rather than blocking publishers.
package notify
