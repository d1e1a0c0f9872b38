package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
)

func TestPublishSyncDeliversToAllSubscribers(t *testing.T) {
	logger := arbor.NewLogger()
	svc := NewService(logger)
	defer svc.Close()

	var mu sync.Mutex
	received := 0

	handler := func(ctx context.Context, event interfaces.Event) error {
		mu.Lock()
		defer mu.Unlock()
		received++
		return nil
	}

	if err := svc.Subscribe(interfaces.EventRunCompleted, handler); err != nil {
		t.Fatal(err)
	}
	if err := svc.Subscribe(interfaces.EventRunCompleted, handler); err != nil {
		t.Fatal(err)
	}

	event := interfaces.Event{
		Type:    interfaces.EventRunCompleted,
		Payload: map[string]interface{}{"run_id": "run_1"},
	}
	if err := svc.PublishSync(context.Background(), event); err != nil {
		t.Fatalf("PublishSync returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if received != 2 {
		t.Errorf("Expected 2 deliveries, got %d", received)
	}
}

func TestPublishSyncCollectsHandlerErrors(t *testing.T) {
	logger := arbor.NewLogger()
	svc := NewService(logger)
	defer svc.Close()

	failing := func(ctx context.Context, event interfaces.Event) error {
		return errors.New("handler exploded")
	}
	if err := svc.Subscribe(interfaces.EventRunFailed, failing); err != nil {
		t.Fatal(err)
	}

	event := interfaces.Event{Type: interfaces.EventRunFailed}
	if err := svc.PublishSync(context.Background(), event); err == nil {
		t.Fatal("Expected error from failing handler")
	}
}

func TestPublishAsyncDelivers(t *testing.T) {
	logger := arbor.NewLogger()
	svc := NewService(logger)
	defer svc.Close()

	done := make(chan struct{})
	handler := func(ctx context.Context, event interfaces.Event) error {
		close(done)
		return nil
	}
	if err := svc.Subscribe(interfaces.EventAnalysisProgress, handler); err != nil {
		t.Fatal(err)
	}

	event := interfaces.Event{Type: interfaces.EventAnalysisProgress}
	if err := svc.Publish(context.Background(), event); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Async handler was never invoked")
	}
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	logger := arbor.NewLogger()
	svc := NewService(logger)
	defer svc.Close()

	event := interfaces.Event{Type: interfaces.EventRunDeleted}
	if err := svc.Publish(context.Background(), event); err != nil {
		t.Errorf("Expected no error without subscribers, got: %v", err)
	}
	if err := svc.PublishSync(context.Background(), event); err != nil {
		t.Errorf("Expected no error without subscribers, got: %v", err)
	}
}

func TestSubscribeNilHandler(t *testing.T) {
	logger := arbor.NewLogger()
	svc := NewService(logger)
	defer svc.Close()

	if err := svc.Subscribe(interfaces.EventRunStarted, nil); err == nil {
		t.Fatal("Expected error for nil handler")
	}
}

func TestUnsubscribeRemovesHandler(t *testing.T) {
	logger := arbor.NewLogger()
	svc := NewService(logger)
	defer svc.Close()

	var mu sync.Mutex
	received := 0
	handler := func(ctx context.Context, event interfaces.Event) error {
		mu.Lock()
		defer mu.Unlock()
		received++
		return nil
	}

	if err := svc.Subscribe(interfaces.EventRunStarted, handler); err != nil {
		t.Fatal(err)
	}
	if err := svc.Unsubscribe(interfaces.EventRunStarted, handler); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}

	event := interfaces.Event{Type: interfaces.EventRunStarted}
	if err := svc.PublishSync(context.Background(), event); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if received != 0 {
		t.Errorf("Expected no deliveries after unsubscribe, got %d", received)
	}
}

func TestLoggerSubscriberHandlesAnyPayload(t *testing.T) {
	logger := arbor.NewLogger()
	subscriber := NewLoggerSubscriber(logger)

	ctx := context.Background()
	event := interfaces.Event{
		Type: interfaces.EventRunCompleted,
		Payload: map[string]interface{}{
			"run_id": "run_test_123",
			"source": "archive",
			"status": "completed",
		},
	}
	if err := subscriber(ctx, event); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	// Payload-free events are fine too
	event2 := interfaces.Event{Type: interfaces.EventLogMessage, Payload: nil}
	if err := subscriber(ctx, event2); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
}

func TestSubscribeLoggerToAllEvents(t *testing.T) {
	logger := arbor.NewLogger()
	svc := NewService(logger)
	defer svc.Close()

	if err := SubscribeLoggerToAllEvents(svc, logger); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
}
