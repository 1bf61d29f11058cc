// Package protocol defines the message contract between the coordination
// core and agents.
//
// # Overview
//
// The protocol package is a pure data contract: it declares the closed set
// of message kinds exchanged with agents (discovery, capability query, task
// delegation, task progress/completion/error, heartbeat), the AgentCard an
// agent publishes about itself, and the validation rules every message must
// pass before it reaches the registry or a workflow.
//
// # Envelope
//
// Every Message carries a type discriminator, a unique message ID, the
// protocol version, a sender, an optional recipient (absent means
// broadcast), a timestamp, and exactly one payload matching its type:
//
//	msg := protocol.Message{
//		Type:      protocol.MessageTaskDelegation,
//		ID:        uuid.New().String(),
//		Version:   protocol.Version,
//		Sender:    "gateway",
//		Recipient: "calendar-agent",
//		Timestamp: time.Now(),
//		Delegation: &protocol.TaskDelegation{...},
//	}
//	if err := msg.Validate(); err != nil { ... }
//
// # Validation
//
// Validate checks every field's type and bound as part of the contract:
// delegation priority must be 1-10, timeouts 1-3600 seconds, progress
// 0-100, heartbeat status one of the declared constants. Malformed
// messages are rejected here, never coerced downstream.
//
// The package has no behavior beyond construction and validation; transport
// is supplied by the surrounding application.
package protocol
