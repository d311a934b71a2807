// Package events provides typed publish/subscribe plumbing for pipeline
// progress notifications, plus the event types the compilation driver
// publishes. Subscribers run synchronously on the publishing goroutine, in
// subscription order.
package events

// EventHandler defines a function type where its input type is the generic type.
type EventHandler[T any] func(T)

// EventEmitter describes a provider which EventHandler methods can subscribe
// to for callback when the event type (generic) is published.
type EventEmitter[T any] struct {
	// subscriptions defines the EventHandler methods which should be invoked
	// when a new event is published to this emitter.
	subscriptions []EventHandler[T]
}

// Subscribe adds an EventHandler to the list of subscribed EventHandler
// objects for this emitter. When an event is published, the callback will be
// triggered with the event data.
func (e *EventEmitter[T]) Subscribe(callback EventHandler[T]) {
	e.subscriptions = append(e.subscriptions, callback)
}

// Publish emits the provided event by calling every EventHandler subscribed.
func (e *EventEmitter[T]) Publish(event T) {
	for _, subscription := range e.subscriptions {
		subscription(event)
	}
}
