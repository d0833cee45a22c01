package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for pipeline event broadcasting.
// A nil *Bus is valid and drops everything.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers
// Usage: bus.Publish(FrameEncodedEvent{...})
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	// Use type switch to call the generic Publish with the correct type
	switch e := ev.(type) {
	case EncoderOpenedEvent:
		event.Publish(b.dispatcher, e)
	case EncoderClosedEvent:
		event.Publish(b.dispatcher, e)
	case FrameEncodedEvent:
		event.Publish(b.dispatcher, e)
	case EncoderErrorEvent:
		event.Publish(b.dispatcher, e)
	case SurfaceOpenedEvent:
		event.Publish(b.dispatcher, e)
	case SurfaceClosedEvent:
		event.Publish(b.dispatcher, e)
	case FramePresentedEvent:
		event.Publish(b.dispatcher, e)
	case FrameSkippedEvent:
		event.Publish(b.dispatcher, e)
	case PresentErrorEvent:
		event.Publish(b.dispatcher, e)
	case ConfigReloadedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler's parameter type selects the events it receives.
// Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e FrameSkippedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	if b == nil {
		return func() {}
	}
	switch h := handler.(type) {
	case func(EncoderOpenedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(EncoderClosedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FrameEncodedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(EncoderErrorEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SurfaceOpenedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SurfaceClosedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FramePresentedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FrameSkippedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PresentErrorEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ConfigReloadedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Return a no-op function if handler type is not recognized
		return func() {}
	}
}
