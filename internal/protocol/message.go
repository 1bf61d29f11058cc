// ABOUTME: Protocol envelope and the closed set of message kinds exchanged with agents.
// ABOUTME: Each message carries a type discriminator and exactly one matching payload.

package protocol

import (
	"errors"
	"time"
)

// Version is the protocol version stamped on every message.
const Version = "1.0"

// ErrInvalidCard indicates an AgentCard is missing required identity fields.
var ErrInvalidCard = errors.New("invalid agent card")

// ErrInvalidMessage indicates a message failed envelope validation.
var ErrInvalidMessage = errors.New("invalid protocol message")

// MessageType discriminates the payload of a Message.
type MessageType string

const (
	MessageDiscoveryRequest   MessageType = "discovery_request"
	MessageDiscoveryResponse  MessageType = "discovery_response"
	MessageCapabilityRequest  MessageType = "capability_request"
	MessageCapabilityResponse MessageType = "capability_response"
	MessageTaskDelegation     MessageType = "task_delegation"
	MessageTaskProgress       MessageType = "task_progress"
	MessageTaskComplete       MessageType = "task_complete"
	MessageTaskError          MessageType = "task_error"
	MessageHeartbeat          MessageType = "heartbeat"
)

// Message is the envelope for all registry/agent communication. Exactly one
// payload field must be set, matching Type. An empty Recipient means
// broadcast.
type Message struct {
	Type      MessageType `json:"type"`
	ID        string      `json:"id"`
	Version   string      `json:"version"`
	Sender    string      `json:"sender"`
	Recipient string      `json:"recipient,omitempty"`
	Timestamp time.Time   `json:"timestamp"`

	Discovery         *DiscoveryRequest   `json:"discovery,omitempty"`
	DiscoveryResponse *DiscoveryResponse  `json:"discovery_response,omitempty"`
	Capability        *CapabilityRequest  `json:"capability,omitempty"`
	CapabilityResponse *CapabilityResponse `json:"capability_response,omitempty"`
	Delegation        *TaskDelegation     `json:"delegation,omitempty"`
	Progress          *TaskProgress       `json:"progress,omitempty"`
	Complete          *TaskComplete       `json:"complete,omitempty"`
	Error             *TaskError          `json:"error,omitempty"`
	Heartbeat         *Heartbeat          `json:"heartbeat,omitempty"`
}

// DiscoveryRequest asks the registry for agents, optionally filtered by an
// exact-match domain tag and/or by requiring at least one overlapping
// capability name.
type DiscoveryRequest struct {
	Domain       string   `json:"domain,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// DiscoveryResponse lists the cards matching a discovery request.
type DiscoveryResponse struct {
	Agents []AgentCard `json:"agents"`
}

// CapabilityRequest asks an agent to re-publish its capability list.
type CapabilityRequest struct {
	AgentID string `json:"agent_id"`
}

// CapabilityResponse carries an agent's current capability list.
type CapabilityResponse struct {
	AgentID      string       `json:"agent_id"`
	Capabilities []Capability `json:"capabilities"`
}

// Task delegation bounds.
const (
	MinPriority = 1
	MaxPriority = 10

	MinTimeoutSeconds = 1
	MaxTimeoutSeconds = 3600
)

// TaskDelegation assigns a task to an agent.
type TaskDelegation struct {
	TaskID      string `json:"task_id"`
	Description string `json:"description"`

	// Priority ranges 1 (lowest) to 10 (highest).
	Priority int `json:"priority"`

	// TimeoutSeconds bounds task execution, 1 to 3600.
	TimeoutSeconds int `json:"timeout_seconds"`

	Input map[string]any `json:"input,omitempty"`
}

// TaskState is the restricted status subset a progress update may carry.
type TaskState string

const (
	TaskPending TaskState = "pending"
	TaskRunning TaskState = "running"
	TaskPaused  TaskState = "paused"
)

// TaskProgress reports incremental progress on a delegated task.
type TaskProgress struct {
	TaskID string `json:"task_id"`

	// Progress ranges 0 to 100.
	Progress int       `json:"progress"`
	Status   TaskState `json:"status"`
	Message  string    `json:"message,omitempty"`
}

// TaskComplete carries the structured output of a finished task.
type TaskComplete struct {
	TaskID string         `json:"task_id"`
	Output map[string]any `json:"output,omitempty"`
}

// TaskError reports a failed task.
type TaskError struct {
	TaskID    string `json:"task_id"`
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable"`
}
