package events

import (
	"sync"
	"sync/atomic"
)

// Feed fans emitted events out to live subscribers. Slow subscribers lose
// events instead of blocking the emitter; Dropped counts them.
type Feed struct {
	mu      sync.Mutex
	subs    map[*Subscription]struct{}
	closed  bool
	dropped atomic.Uint64
}

// Subscription receives events from a Feed until Unsubscribe or Feed.Close.
type Subscription struct {
	feed *Feed
	ch   chan Event
	once sync.Once
}

// NewFeed returns an empty feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a subscriber with the given channel buffer.
func (f *Feed) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 1
	}
	sub := &Subscription{feed: f, ch: make(chan Event, buffer)}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(sub.ch)
		sub.once.Do(func() {})
		return sub
	}
	f.subs[sub] = struct{}{}
	return sub
}

// Emit implements the Emitter interface.
func (f *Feed) Emit(evt Event) {
	if evt == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	for sub := range f.subs {
		select {
		case sub.ch <- evt:
		default:
			f.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (f *Feed) Dropped() uint64 { return f.dropped.Load() }

// Close terminates every subscription.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for sub := range f.subs {
		sub.once.Do(func() { close(sub.ch) })
		delete(f.subs, sub)
	}
}

// C returns the delivery channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan Event { return s.ch }

// Unsubscribe detaches the subscriber and closes its channel.
func (s *Subscription) Unsubscribe() {
	f := s.feed
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, s)
	s.once.Do(func() { close(s.ch) })
}

// Multi forwards events to every wrapped emitter in order.
type Multi []Emitter

// Emit implements the Emitter interface.
func (m Multi) Emit(evt Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(evt)
		}
	}
}
