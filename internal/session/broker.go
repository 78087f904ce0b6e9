package session

import "sync"

// Broker fans session events out to subscribers. Backends embed one to
// implement Provider.Subscribe.
type Broker struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Event)
}

type brokerSub struct {
	b    *Broker
	id   int
	once sync.Once
}

func (s *brokerSub) Unsubscribe() {
	s.once.Do(func() {
		s.b.mu.Lock()
		delete(s.b.subs, s.id)
		s.b.mu.Unlock()
	})
}

// Subscribe registers fn and returns its handle.
func (b *Broker) Subscribe(fn func(Event)) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[int]func(Event))
	}
	id := b.next
	b.next++
	b.subs[id] = fn
	return &brokerSub{b: b, id: id}
}

// Publish delivers ev to every current subscriber. Subscribers are called
// outside the lock so they may unsubscribe from within the callback.
func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	fns := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Len returns the number of live subscriptions.
func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
