package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestEventPublishingAndSubscribing creates emitters, subscribes callbacks
// and ensures events are delivered in subscription order.
func TestEventPublishingAndSubscribing(t *testing.T) {
	emitter := EventEmitter[ContractCompiledEvent]{}

	var received []string
	emitter.Subscribe(func(event ContractCompiledEvent) {
		received = append(received, event.ContractName)
	})
	emitter.Subscribe(func(event ContractCompiledEvent) {
		received = append(received, event.ContractName+"-second")
	})

	emitter.Publish(ContractCompiledEvent{ContractName: "A"})
	emitter.Publish(ContractCompiledEvent{ContractName: "B"})

	assert.Equal(t, []string{"A", "A-second", "B", "B-second"}, received)
}

// TestEmittersAreIndependent ensures subscriptions on one emitter do not
// leak to another emitter of the same event type.
func TestEmittersAreIndependent(t *testing.T) {
	first := EventEmitter[ParseCompletedEvent]{}
	second := EventEmitter[ParseCompletedEvent]{}

	count := 0
	first.Subscribe(func(ParseCompletedEvent) { count++ })
	second.Publish(ParseCompletedEvent{})
	assert.Zero(t, count)
	first.Publish(ParseCompletedEvent{})
	assert.Equal(t, 1, count)
}
