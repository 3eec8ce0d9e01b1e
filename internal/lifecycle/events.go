package lifecycle

// EventHandler handles lifecycle events. Handlers must not call back into
// the Manager. Panics in handlers are recovered.
type EventHandler func(event Event)

// Event is emitted as plugins move through the lifecycle.
type Event struct {
	Type   EventType
	Plugin string
	Error  error
}

// EventType is the type of lifecycle event.
type EventType int

const (
	// EventLoaded is emitted when a plugin is instantiated.
	EventLoaded EventType = iota
	// EventActivated is emitted when a plugin finishes init.
	EventActivated
	// EventFailed is emitted when a plugin is dropped.
	EventFailed
)

// String returns a string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventLoaded:
		return "loaded"
	case EventActivated:
		return "activated"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Subscribe adds an event handler and returns a function that removes it.
func (m *Manager) Subscribe(handler EventHandler) func() {
	if handler == nil {
		return func() {}
	}

	m.mu.Lock()
	m.eventHandlers = append(m.eventHandlers, handler)
	index := len(m.eventHandlers) - 1
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		// Set to nil instead of removing to avoid index shifting issues
		if index < len(m.eventHandlers) {
			m.eventHandlers[index] = nil
		}
	}
}

// emitEvent calls every handler outside the lock.
func (m *Manager) emitEvent(event Event) {
	m.mu.RLock()
	handlers := make([]EventHandler, len(m.eventHandlers))
	copy(handlers, m.eventHandlers)
	m.mu.RUnlock()

	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		func() {
			defer func() {
				recover() // Ignore panics from handlers
			}()
			handler(event)
		}()
	}
}
