// ABOUTME: Tests for the notification broadcaster fan-out pub/sub.
// ABOUTME: Covers subscribe, publish, topic isolation, unsubscribe, context cancellation, concurrency.

package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func registeredEvent(agentID string) *Event {
	return &Event{
		Kind:      KindAgentRegistered,
		Timestamp: time.Now(),
		AgentID:   agentID,
	}
}

func TestBroadcaster_SingleSubscriberReceivesEvent(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, _ := b.Subscribe(context.Background(), TopicRegistry)

	b.Publish(TopicRegistry, registeredEvent("agent-1"))

	select {
	case received := <-ch:
		assert.Equal(t, KindAgentRegistered, received.Kind)
		assert.Equal(t, "agent-1", received.AgentID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroadcaster_MultipleSubscribersReceiveSameEvent(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx := context.Background()

	ch1, _ := b.Subscribe(ctx, TopicRegistry)
	ch2, _ := b.Subscribe(ctx, TopicRegistry)
	ch3, _ := b.Subscribe(ctx, TopicRegistry)

	b.Publish(TopicRegistry, registeredEvent("agent-2"))

	for i, ch := range []<-chan *Event{ch1, ch2, ch3} {
		select {
		case received := <-ch:
			assert.Equal(t, "agent-2", received.AgentID, "subscriber %d got wrong event", i)
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d timed out", i)
		}
	}
}

func TestBroadcaster_TopicsAreIsolated(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx := context.Background()

	regCh, _ := b.Subscribe(ctx, TopicRegistry)
	wfCh, _ := b.Subscribe(ctx, "wf-1")

	b.Publish("wf-1", &Event{Kind: KindWorkflowPhase, WorkflowID: "wf-1", Phase: "executing"})

	select {
	case received := <-wfCh:
		assert.Equal(t, KindWorkflowPhase, received.Kind)
	case <-time.After(time.Second):
		t.Fatal("workflow subscriber timed out")
	}

	select {
	case e := <-regCh:
		t.Fatalf("registry subscriber should not receive workflow event, got %v", e.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, subID := b.Subscribe(context.Background(), TopicRegistry)
	b.Unsubscribe(TopicRegistry, subID)

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")

	// Second unsubscribe is a no-op.
	b.Unsubscribe(TopicRegistry, subID)
}

func TestBroadcaster_ContextCancellationCleansUp(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := b.Subscribe(ctx, TopicRegistry)
	cancel()

	// The cleanup goroutine closes the channel.
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after context cancellation")
		}
	}
}

func TestBroadcaster_PublishWithNoSubscribersDoesNotBlock(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	done := make(chan struct{})
	go func() {
		b.Publish(TopicRegistry, registeredEvent("agent-1"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked with no subscribers")
	}
}

func TestBroadcaster_SlowSubscriberDropsEvents(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, _ := b.Subscribe(context.Background(), TopicRegistry)

	// Overfill the subscriber buffer; publishes must not block.
	for i := 0; i < subscriberBufferSize+10; i++ {
		b.Publish(TopicRegistry, registeredEvent("agent-1"))
	}

	assert.Len(t, ch, subscriberBufferSize)
}

func TestBroadcaster_ConcurrentPublishAndSubscribe(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			ch, _ := b.Subscribe(ctx, TopicRegistry)
			for j := 0; j < 10; j++ {
				select {
				case <-ch:
				case <-time.After(10 * time.Millisecond):
				}
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b.Publish(TopicRegistry, registeredEvent("agent-1"))
			}
		}()
	}
	wg.Wait()
}
