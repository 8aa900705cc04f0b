package local

import (
	"context"
	"sync"
)

// Message is an in-process pub/sub message.
type Message struct {
	Channel string
	Payload string
}

type subscription struct {
	ch       chan *Message
	channels []string
}

// PubSub is an in-process fan-out pub/sub. Slow subscribers lose messages
// instead of blocking publishers.
type PubSub struct {
	mu      sync.RWMutex
	subs    map[string]map[*subscription]struct{}
	bufSize int
}

// NewPubSub creates a PubSub with the given per-subscriber buffer size.
func NewPubSub(bufSize int) *PubSub {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &PubSub{
		subs:    make(map[string]map[*subscription]struct{}),
		bufSize: bufSize,
	}
}

// Publish delivers message to every current subscriber of channel.
func (ps *PubSub) Publish(_ context.Context, channel, message string) error {
	msg := &Message{Channel: channel, Payload: message}
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	for s := range ps.subs[channel] {
		select {
		case s.ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe returns one stream for all of channels. The stream is closed by
// the returned cancel func or when ctx ends.
func (ps *PubSub) Subscribe(ctx context.Context, channels ...string) (<-chan *Message, func(), error) {
	s := &subscription{ch: make(chan *Message, ps.bufSize), channels: channels}

	ps.mu.Lock()
	for _, c := range channels {
		if ps.subs[c] == nil {
			ps.subs[c] = make(map[*subscription]struct{})
		}
		ps.subs[c][s] = struct{}{}
	}
	ps.mu.Unlock()

	var once sync.Once
	stop := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			close(stop)
			ps.mu.Lock()
			defer ps.mu.Unlock()
			for _, c := range s.channels {
				delete(ps.subs[c], s)
				if len(ps.subs[c]) == 0 {
					delete(ps.subs, c)
				}
			}
			close(s.ch)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-stop:
		}
	}()
	return s.ch, cancel, nil
}
