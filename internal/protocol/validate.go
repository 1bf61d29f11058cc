// ABOUTME: Envelope validation for all protocol message kinds and their bounds.
// ABOUTME: Malformed messages are rejected here, before reaching registry or workflow logic.

package protocol

import "fmt"

// Validate checks the envelope fields and the payload matching the message
// type. It returns an ErrInvalidMessage-wrapped error describing the first
// violation found. A message whose payload does not match its declared type
// is invalid, as is one carrying no payload at all.
func (m *Message) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidMessage)
	}
	if m.Version == "" {
		return fmt.Errorf("%w: missing version", ErrInvalidMessage)
	}
	if m.Sender == "" {
		return fmt.Errorf("%w: missing sender", ErrInvalidMessage)
	}
	if m.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidMessage)
	}

	switch m.Type {
	case MessageDiscoveryRequest:
		if m.Discovery == nil {
			return missingPayload(m.Type)
		}
	case MessageDiscoveryResponse:
		if m.DiscoveryResponse == nil {
			return missingPayload(m.Type)
		}
	case MessageCapabilityRequest:
		if m.Capability == nil {
			return missingPayload(m.Type)
		}
		if m.Capability.AgentID == "" {
			return fmt.Errorf("%w: capability_request: missing agent_id", ErrInvalidMessage)
		}
	case MessageCapabilityResponse:
		if m.CapabilityResponse == nil {
			return missingPayload(m.Type)
		}
		if m.CapabilityResponse.AgentID == "" {
			return fmt.Errorf("%w: capability_response: missing agent_id", ErrInvalidMessage)
		}
	case MessageTaskDelegation:
		if m.Delegation == nil {
			return missingPayload(m.Type)
		}
		return m.Delegation.validate()
	case MessageTaskProgress:
		if m.Progress == nil {
			return missingPayload(m.Type)
		}
		return m.Progress.validate()
	case MessageTaskComplete:
		if m.Complete == nil {
			return missingPayload(m.Type)
		}
		if m.Complete.TaskID == "" {
			return fmt.Errorf("%w: task_complete: missing task_id", ErrInvalidMessage)
		}
	case MessageTaskError:
		if m.Error == nil {
			return missingPayload(m.Type)
		}
		if m.Error.TaskID == "" {
			return fmt.Errorf("%w: task_error: missing task_id", ErrInvalidMessage)
		}
		if m.Error.Message == "" {
			return fmt.Errorf("%w: task_error: missing message", ErrInvalidMessage)
		}
	case MessageHeartbeat:
		if m.Heartbeat == nil {
			return missingPayload(m.Type)
		}
		if err := m.Heartbeat.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, m.Type)
	}

	return nil
}

func missingPayload(t MessageType) error {
	return fmt.Errorf("%w: %s: missing payload", ErrInvalidMessage, t)
}

func (d *TaskDelegation) validate() error {
	if d.TaskID == "" {
		return fmt.Errorf("%w: task_delegation: missing task_id", ErrInvalidMessage)
	}
	if d.Priority < MinPriority || d.Priority > MaxPriority {
		return fmt.Errorf("%w: task_delegation: priority %d out of range [%d,%d]",
			ErrInvalidMessage, d.Priority, MinPriority, MaxPriority)
	}
	if d.TimeoutSeconds < MinTimeoutSeconds || d.TimeoutSeconds > MaxTimeoutSeconds {
		return fmt.Errorf("%w: task_delegation: timeout %ds out of range [%d,%d]",
			ErrInvalidMessage, d.TimeoutSeconds, MinTimeoutSeconds, MaxTimeoutSeconds)
	}
	return nil
}

func (p *TaskProgress) validate() error {
	if p.TaskID == "" {
		return fmt.Errorf("%w: task_progress: missing task_id", ErrInvalidMessage)
	}
	if p.Progress < 0 || p.Progress > 100 {
		return fmt.Errorf("%w: task_progress: progress %d out of range [0,100]",
			ErrInvalidMessage, p.Progress)
	}
	switch p.Status {
	case TaskPending, TaskRunning, TaskPaused:
	default:
		return fmt.Errorf("%w: task_progress: invalid status %q", ErrInvalidMessage, p.Status)
	}
	return nil
}
