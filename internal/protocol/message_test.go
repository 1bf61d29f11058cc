// ABOUTME: Tests for protocol envelope validation and field bounds.
// ABOUTME: Covers delegation/progress bounds, payload-type matching, card and heartbeat contracts.

package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEnvelope(t MessageType) Message {
	return Message{
		Type:      t,
		ID:        "msg-1",
		Version:   Version,
		Sender:    "test",
		Timestamp: time.Now(),
	}
}

func TestMessageValidate_EnvelopeFields(t *testing.T) {
	msg := validEnvelope(MessageDiscoveryRequest)
	msg.Discovery = &DiscoveryRequest{}
	require.NoError(t, msg.Validate())

	t.Run("missing id", func(t *testing.T) {
		m := msg
		m.ID = ""
		assert.ErrorIs(t, m.Validate(), ErrInvalidMessage)
	})

	t.Run("missing sender", func(t *testing.T) {
		m := msg
		m.Sender = ""
		assert.ErrorIs(t, m.Validate(), ErrInvalidMessage)
	})

	t.Run("missing timestamp", func(t *testing.T) {
		m := msg
		m.Timestamp = time.Time{}
		assert.ErrorIs(t, m.Validate(), ErrInvalidMessage)
	})

	t.Run("unknown type", func(t *testing.T) {
		m := msg
		m.Type = "mystery"
		assert.ErrorIs(t, m.Validate(), ErrInvalidMessage)
	})

	t.Run("missing payload", func(t *testing.T) {
		m := msg
		m.Discovery = nil
		assert.ErrorIs(t, m.Validate(), ErrInvalidMessage)
	})
}

func TestMessageValidate_DelegationBounds(t *testing.T) {
	tests := []struct {
		name    string
		priority int
		timeout int
		ok      bool
	}{
		{"minimums", 1, 1, true},
		{"maximums", 10, 3600, true},
		{"priority too low", 0, 60, false},
		{"priority too high", 11, 60, false},
		{"timeout zero", 5, 0, false},
		{"timeout too long", 5, 3601, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validEnvelope(MessageTaskDelegation)
			m.Delegation = &TaskDelegation{
				TaskID:         "task-1",
				Description:    "summarize inbox",
				Priority:       tt.priority,
				TimeoutSeconds: tt.timeout,
			}
			err := m.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidMessage)
			}
		})
	}
}

func TestMessageValidate_ProgressBounds(t *testing.T) {
	tests := []struct {
		name     string
		progress int
		status   TaskState
		ok       bool
	}{
		{"zero percent", 0, TaskRunning, true},
		{"full percent", 100, TaskRunning, true},
		{"paused", 50, TaskPaused, true},
		{"negative", -1, TaskRunning, false},
		{"over 100", 101, TaskRunning, false},
		{"unknown status", 50, "finished", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validEnvelope(MessageTaskProgress)
			m.Progress = &TaskProgress{
				TaskID:   "task-1",
				Progress: tt.progress,
				Status:   tt.status,
			}
			err := m.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidMessage)
			}
		})
	}
}

func TestMessageValidate_TaskError(t *testing.T) {
	m := validEnvelope(MessageTaskError)
	m.Error = &TaskError{TaskID: "task-1", Message: "model overloaded", Code: "overloaded", Retryable: true}
	require.NoError(t, m.Validate())

	m.Error.Message = ""
	assert.ErrorIs(t, m.Validate(), ErrInvalidMessage)
}

func TestAgentCardValidate(t *testing.T) {
	card := AgentCard{ID: "calendar-agent", Name: "Calendar", Type: "scheduler"}
	require.NoError(t, card.Validate())

	tests := []struct {
		name   string
		mutate func(*AgentCard)
	}{
		{"missing id", func(c *AgentCard) { c.ID = "" }},
		{"bad id pattern", func(c *AgentCard) { c.ID = "has spaces" }},
		{"leading dash", func(c *AgentCard) { c.ID = "-agent" }},
		{"missing name", func(c *AgentCard) { c.Name = "" }},
		{"missing type", func(c *AgentCard) { c.Type = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := card
			tt.mutate(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidCard)
		})
	}
}

func TestAgentCardCapabilityList(t *testing.T) {
	card := AgentCard{
		ID:   "a",
		Name: "A",
		Type: "worker",
		Capabilities: map[string]Capability{
			"search": {Description: "web search", Streaming: true},
			"draft":  {Name: "draft", Description: "draft replies"},
		},
	}

	caps := card.CapabilityList()
	require.Len(t, caps, 2)

	names := map[string]bool{}
	for _, c := range caps {
		names[c.Name] = true
	}
	// Map key fills in a missing Name.
	assert.True(t, names["search"])
	assert.True(t, names["draft"])

	assert.Nil(t, (&AgentCard{}).CapabilityList())
}

func TestHeartbeatValidate(t *testing.T) {
	hb := Heartbeat{AgentID: "a", Status: AgentIdle, ActiveTasks: 0, LastSeen: time.Now()}
	require.NoError(t, hb.Validate())

	hb.Status = "sleeping"
	assert.Error(t, hb.Validate())

	hb.Status = AgentRunning
	hb.ActiveTasks = -1
	assert.Error(t, hb.Validate())

	hb.ActiveTasks = 3
	hb.AgentID = ""
	assert.Error(t, hb.Validate())
}
