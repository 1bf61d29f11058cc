// ABOUTME: Contract an agent instance must satisfy to be managed by the registry.
// ABOUTME: Agents are opaque remote collaborators; the registry only sees this interface.

package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/2389/circle-core/internal/protocol"
)

// ErrAgentNotFound indicates a mutating operation referenced an unknown agent.
var ErrAgentNotFound = errors.New("agent not found")

// AgentInstance is the registry's view of a running agent. Implementations
// typically proxy a remote process; the in-process simulator implements it
// directly. Calls may block on network I/O, so the registry never invokes
// them while holding its internal lock.
type AgentInstance interface {
	// Card performs capability discovery and returns the agent's
	// self-description.
	Card(ctx context.Context) (*protocol.AgentCard, error)

	// Initialize is invoked once during registration, before the agent is
	// visible to callers.
	Initialize(ctx context.Context) error

	// Shutdown is invoked during unregistration. Failures are logged and
	// swallowed; unregistration always completes.
	Shutdown(ctx context.Context) error

	// DelegateTask hands the agent a task to execute.
	DelegateTask(ctx context.Context, task *protocol.TaskDelegation) error

	// CancelTask asks the agent to abandon a previously delegated task.
	CancelTask(ctx context.Context, taskID string) error

	// Status returns the agent's current heartbeat.
	Status(ctx context.Context) (*protocol.Heartbeat, error)

	// HandleMessage delivers a protocol message addressed to the agent.
	HandleMessage(ctx context.Context, msg *protocol.Message) error
}

// RegistrationError wraps any failure during the registration sequence,
// carrying the offending agent's ID when it is known.
type RegistrationError struct {
	AgentID string
	Err     error
}

func (e *RegistrationError) Error() string {
	if e.AgentID == "" {
		return fmt.Sprintf("agent registration failed: %v", e.Err)
	}
	return fmt.Sprintf("registration failed for agent %q: %v", e.AgentID, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }
