package store

import "sync"

// broker is an in-process pub/sub for document changes, keyed by document path.
type broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan Document]struct{}
}

func newBroker() *broker {
	return &broker{
		subs: make(map[string]map[chan Document]struct{}),
	}
}

// subscribe returns a channel receiving committed snapshots for the given path.
func (b *broker) subscribe(path string) (chan Document, func()) {
	ch := make(chan Document, 16)
	b.mu.Lock()
	if b.subs[path] == nil {
		b.subs[path] = make(map[chan Document]struct{})
	}
	b.subs[path][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[path][ch]; ok {
			delete(b.subs[path], ch)
			if len(b.subs[path]) == 0 {
				delete(b.subs, path)
			}
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// publish fans a snapshot out to all subscribers of the path. Callers must
// serialize publishes per path to preserve write order.
func (b *broker) publish(path string, doc Document) {
	b.mu.RLock()
	for ch := range b.subs[path] {
		select {
		case ch <- doc:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}
