package mqtt

// backlog holds system events queued while the broker is unreachable. Once
// full, the oldest event is discarded and counted. Callers synchronize.
type backlog struct {
	msgs    []Message
	limit   int
	dropped uint64
}

func newBacklog(limit int) *backlog {
	return &backlog{msgs: make([]Message, 0, limit), limit: limit}
}

// add queues msg and reports whether an older event was discarded for it.
func (b *backlog) add(msg Message) bool {
	evicted := false
	if len(b.msgs) == b.limit {
		copy(b.msgs, b.msgs[1:])
		b.msgs = b.msgs[:len(b.msgs)-1]
		b.dropped++
		evicted = true
	}
	b.msgs = append(b.msgs, msg)
	return evicted
}

// take returns the queued events oldest first and empties the backlog. The
// discard count survives.
func (b *backlog) take() []Message {
	if len(b.msgs) == 0 {
		return nil
	}
	out := make([]Message, len(b.msgs))
	copy(out, b.msgs)
	b.msgs = b.msgs[:0]
	return out
}

func (b *backlog) len() int {
	return len(b.msgs)
}
