package review

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// EventType identifies a review pipeline event.
type EventType string

const (
	EventWorkflowCreated       EventType = "workflow_created"
	EventWorkflowDeleted       EventType = "workflow_deleted"
	EventWorkflowStatusChanged EventType = "workflow_status_changed"
	EventCheckpointReady       EventType = "checkpoint_ready"
	EventReviewStarted         EventType = "review_started"
	EventReviewDecision        EventType = "review_decision"
)

// subscriptionCounter generates unique subscription ids.
var subscriptionCounter int64

// Event is one review pipeline occurrence, published after the save that
// recorded it succeeded.
type Event struct {
	Type           EventType        `json:"type"`
	WorkflowID     string           `json:"workflow_id"`
	CheckpointType CheckpointType   `json:"checkpoint_type,omitempty"`
	WorkflowStatus WorkflowStatus   `json:"workflow_status,omitempty"`
	Checkpoint     CheckpointStatus `json:"checkpoint_status,omitempty"`
	Decision       DecisionKind     `json:"decision,omitempty"`
	Actor          string           `json:"actor,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
}

// EventHandler consumes published events.
type EventHandler func(Event)

// EventBus distributes review events to subscribers.
type EventBus interface {
	Publish(event Event)
	Subscribe(eventType EventType, handler EventHandler) string
	SubscribeAll(handler EventHandler) string
	Unsubscribe(subscriptionID string)
	Stop()
}

// allEvents is the internal key for SubscribeAll handlers.
const allEvents EventType = "*"

// SimpleEventBus is a channel-backed EventBus. Publishing never blocks:
// when the buffer is full the event is dropped and counted.
type SimpleEventBus struct {
	mu           sync.RWMutex
	handlers     map[EventType]map[string]EventHandler
	eventChannel chan Event
	done         chan struct{}
	stopOnce     sync.Once
	dropped      atomic.Int64
	logger       *zap.Logger
}

// NewEventBus creates a running event bus.
func NewEventBus(logger *zap.Logger) *SimpleEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	bus := &SimpleEventBus{
		handlers:     make(map[EventType]map[string]EventHandler),
		eventChannel: make(chan Event, 100),
		done:         make(chan struct{}),
		logger:       logger.With(zap.String("component", "event_bus")),
	}
	go bus.processEvents()
	return bus
}

// Publish enqueues an event for delivery.
func (b *SimpleEventBus) Publish(event Event) {
	select {
	case b.eventChannel <- event:
	case <-b.done:
	default:
		// Buffer full: drop rather than stall the review path.
		b.dropped.Add(1)
	}
}

// Subscribe registers a handler for one event type and returns its
// subscription id.
func (b *SimpleEventBus) Subscribe(eventType EventType, handler EventHandler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[string]EventHandler)
	}
	id := fmt.Sprintf("%s-%d", eventType, atomic.AddInt64(&subscriptionCounter, 1))
	b.handlers[eventType][id] = handler
	return id
}

// SubscribeAll registers a handler for every event type.
func (b *SimpleEventBus) SubscribeAll(handler EventHandler) string {
	return b.Subscribe(allEvents, handler)
}

// Unsubscribe removes a subscription by id.
func (b *SimpleEventBus) Unsubscribe(subscriptionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, handlers := range b.handlers {
		if _, ok := handlers[subscriptionID]; ok {
			delete(handlers, subscriptionID)
			if len(handlers) == 0 {
				delete(b.handlers, eventType)
			}
			return
		}
	}
}

// Dropped returns how many events were discarded on a full buffer.
func (b *SimpleEventBus) Dropped() int64 {
	return b.dropped.Load()
}

func (b *SimpleEventBus) processEvents() {
	for {
		select {
		case event := <-b.eventChannel:
			b.mu.RLock()
			handlers := make([]EventHandler, 0, len(b.handlers[event.Type])+len(b.handlers[allEvents]))
			for _, h := range b.handlers[event.Type] {
				handlers = append(handlers, h)
			}
			for _, h := range b.handlers[allEvents] {
				handlers = append(handlers, h)
			}
			b.mu.RUnlock()

			for _, handler := range handlers {
				h := handler
				func() {
					defer func() {
						if r := recover(); r != nil {
							b.logger.Error("event handler panicked", zap.Any("recover", r))
						}
					}()
					h(event)
				}()
			}
		case <-b.done:
			return
		}
	}
}

// Stop shuts the bus down; further publishes are discarded.
func (b *SimpleEventBus) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
	})
}
