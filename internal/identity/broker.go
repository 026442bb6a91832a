package identity

import "sync"

// Watcher delivers snapshot updates for one session key.
type Watcher interface {
	Subscribe(key string) (<-chan Snapshot, func())
}

// Broker fans identity updates out to subscribers keyed by session ID. Only
// the latest undelivered snapshot is kept per subscriber.
type Broker struct {
	mu     sync.Mutex
	subs   map[string]map[*subscription]struct{}
	closed bool
}

type subscription struct {
	ch   chan Snapshot
	once sync.Once
}

// NewBroker constructs an empty Broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[*subscription]struct{})}
}

// Subscribe registers for updates on key. The returned cancel func is
// idempotent and closes the channel.
func (b *Broker) Subscribe(key string) (<-chan Snapshot, func()) {
	sub := &subscription{ch: make(chan Snapshot, 1)}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	if b.subs[key] == nil {
		b.subs[key] = make(map[*subscription]struct{})
	}
	b.subs[key][sub] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if set, ok := b.subs[key]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(b.subs, key)
			}
		}
		b.mu.Unlock()
		sub.once.Do(func() { close(sub.ch) })
	}
	return sub.ch, cancel
}

// Publish delivers s to every subscriber of key without blocking. A pending
// undelivered snapshot is replaced.
func (b *Broker) Publish(key string, s Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[key] {
		select {
		case sub.ch <- s:
		default:
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- s
		}
	}
}

// Subscribers reports how many subscriptions key currently has.
func (b *Broker) Subscribers(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[key])
}

// Close ends every subscription.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for key, set := range b.subs {
		for sub := range set {
			sub.once.Do(func() { close(sub.ch) })
		}
		delete(b.subs, key)
	}
}
