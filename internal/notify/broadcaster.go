// ABOUTME: In-memory fan-out broadcaster for registry and workflow notifications.
// ABOUTME: Publishes typed events to all subscribers of a topic without the core knowing about UI concerns.

package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64

	// TopicRegistry carries agent lifecycle notifications. Workflow
	// notifications use the workflow ID as their topic.
	TopicRegistry = "registry"
)

// Kind identifies what a notification describes.
type Kind string

const (
	KindAgentRegistered   Kind = "agent:registered"
	KindAgentUnregistered Kind = "agent:unregistered"
	KindAgentHeartbeat    Kind = "agent:heartbeat"
	KindAgentOffline      Kind = "agent:offline"
	KindWorkflowPhase     Kind = "workflow:phase"
	KindWorkflowProgress  Kind = "workflow:progress"
)

// Event is one notification. Agent kinds populate AgentID; workflow kinds
// populate WorkflowID plus Phase or Progress.
type Event struct {
	Kind       Kind
	Timestamp  time.Time
	AgentID    string
	WorkflowID string

	// Phase is the workflow's phase after a workflow:phase transition.
	Phase string

	// Reason annotates terminal transitions and offline notifications.
	Reason string

	// Progress is set for workflow:progress events.
	Progress *Progress
}

// Progress is the presentation metadata attached to a progress notification.
type Progress struct {
	Current    int
	Total      int
	Message    string
	Percentage float64
}

// Broadcaster provides in-memory pub/sub for coordination events.
// Subscribers register for a topic (TopicRegistry or a workflow ID) and
// receive events as they are emitted. This enables observers (chat UI,
// activity dashboard) to track the core without polling.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan *Event // topic -> subID -> ch
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]map[string]chan *Event),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber for events on the given topic. Returns a
// channel that receives events and a subscription ID for later
// unsubscription. The subscription is automatically cleaned up when ctx is
// cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context, topic string) (<-chan *Event, string) {
	subID := uuid.New().String()
	ch := make(chan *Event, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[topic]; !ok {
		b.subscribers[topic] = make(map[string]chan *Event)
	}
	b.subscribers[topic][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "topic", topic, "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(topic, subID)
	}()

	return ch, subID
}

// Publish sends an event to all subscribers of the given topic.
// Non-blocking: events are dropped for subscribers whose channels are full.
func (b *Broadcaster) Publish(topic string, event *Event) {
	b.mu.RLock()
	subs, ok := b.subscribers[topic]
	if !ok || len(subs) == 0 {
		b.mu.RUnlock()
		return
	}

	// Copy subscriber channels under read lock to avoid holding it during sends
	targets := make([]chan *Event, 0, len(subs))
	for _, ch := range subs {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- event:
		default:
			b.logger.Debug("dropped event for slow subscriber",
				"topic", topic,
				"kind", event.Kind)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(topic, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[topic]
	if !ok {
		return
	}

	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)

	if len(subs) == 0 {
		delete(b.subscribers, topic)
	}

	b.logger.Debug("subscriber removed", "topic", topic, "sub_id", subID)
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for topic, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, topic)
	}

	b.logger.Debug("broadcaster closed")
}
