package hub

// eventBuffer holds undelivered messages for an offline connection.
// Overflow evicts the oldest entry, so the buffer keeps the most recent
// window of events and never exceeds max.
type eventBuffer struct {
	events  [][]byte
	max     int
	dropped int
}

func newEventBuffer(max int) *eventBuffer {
	return &eventBuffer{max: max}
}

func (b *eventBuffer) push(msg []byte) {
	if len(b.events) >= b.max {
		over := len(b.events) - b.max + 1
		b.events = append(b.events[:0], b.events[over:]...)
		b.dropped += over
	}
	b.events = append(b.events, msg)
}

// drain returns the buffered messages in arrival order and empties the buffer.
func (b *eventBuffer) drain() [][]byte {
	events := b.events
	b.events = nil
	return events
}

func (b *eventBuffer) len() int {
	return len(b.events)
}
