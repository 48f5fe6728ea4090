package events

import "context"

// ChannelSink is a Subscriber that forwards events onto a channel whose
// buffer depth is set by NewChannelSink, giving RunHandle.EventStream
// callers (spec §6.1) ordered, back-pressured delivery: Publish blocks while
// the buffer is full (with depth 0, until the event is received) or until
// the context is done (spec §5, "back-pressure blocks the producer").
type ChannelSink struct {
	ch chan Event
}

// NewChannelSink constructs a ChannelSink with the given channel buffer
// depth. A depth of 0 yields synchronous hand-off.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan Event, buffer)}
}

// Events returns the channel callers should range over. It is closed by
// Close.
func (s *ChannelSink) Events() <-chan Event { return s.ch }

// HandleEvent implements Subscriber.
func (s *ChannelSink) HandleEvent(ctx context.Context, event Event) error {
	select {
	case s.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the underlying channel. Must be called exactly once, after
// the publisher is done and the subscription has been unregistered.
func (s *ChannelSink) Close() { close(s.ch) }
