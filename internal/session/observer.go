package session

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Observer holds the current session and streams its changes.
type Observer struct {
	mu       sync.Mutex
	current  Session
	queue    []Session
	notified bool
	closed   bool

	sub       Subscription
	out       chan Session
	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Observe registers for change notifications from p, then requests the
// existing session once. The returned Observer lives until Close is called or
// ctx ends.
//
// Updates yields Absent first, then the initial lookup result, then one value
// per notification. A notification that arrives before the lookup completes
// supersedes it.
func Observe(ctx context.Context, p Provider) *Observer {
	o := &Observer{
		current: Absent{},
		queue:   []Session{Absent{}},
		out:     make(chan Session),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	o.sub = p.Subscribe(func(ev Event) {
		log.WithField("event", ev.Kind.String()).Debug("session change")
		o.set(ev.Session, true)
	})

	go o.pump()
	go func() {
		s, err := p.CurrentSession(ctx)
		if err != nil {
			log.WithError(err).Warn("initial session lookup failed")
			return
		}
		o.set(s, false)
	}()
	go func() {
		select {
		case <-ctx.Done():
			o.Close()
		case <-o.done:
		}
	}()
	return o
}

// Current returns the latest session value.
func (o *Observer) Current() Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// Updates returns the change stream. It is closed by Close.
func (o *Observer) Updates() <-chan Session {
	return o.out
}

// Close deregisters from the provider and ends the stream.
func (o *Observer) Close() {
	o.closeOnce.Do(func() {
		o.mu.Lock()
		o.closed = true
		o.mu.Unlock()
		o.sub.Unsubscribe()
		close(o.done)
	})
}

func (o *Observer) set(s Session, notification bool) {
	if s == nil {
		s = Absent{}
	}
	o.mu.Lock()
	if o.closed || (!notification && o.notified) {
		o.mu.Unlock()
		return
	}
	if notification {
		o.notified = true
	}
	o.current = s
	o.queue = append(o.queue, s)
	o.mu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// pump delivers queued values in order without ever blocking the provider.
func (o *Observer) pump() {
	defer close(o.out)
	for {
		o.mu.Lock()
		var next Session
		ok := len(o.queue) > 0
		if ok {
			next = o.queue[0]
			o.queue = o.queue[1:]
		}
		o.mu.Unlock()

		if !ok {
			select {
			case <-o.wake:
				continue
			case <-o.done:
				return
			}
		}

		select {
		case o.out <- next:
		case <-o.done:
			return
		}
	}
}
