package poller

import "github.com/google/uuid"

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls further behind loses lines rather than stalling the acquisition
// loop.
const subscriberBuffer = 16

// Subscribe creates a channel receiving each filtered line as it is read.
// The returned ID identifies the channel for Unsubscribe. The channel is
// closed when the subscriber is removed or the poller stops.
func (p *Poller) Subscribe() (string, <-chan string) {
	id := uuid.NewString()
	ch := make(chan string, subscriberBuffer)

	p.subMu.Lock()
	defer p.subMu.Unlock()
	p.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown IDs are
// no-ops.
func (p *Poller) Unsubscribe(id string) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	if ch, ok := p.subscribers[id]; ok {
		close(ch)
		delete(p.subscribers, id)
	}
}

// publish fans a line out to all subscribers without ever blocking the
// acquisition loop: a full channel simply misses the line.
func (p *Poller) publish(line string) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	for _, ch := range p.subscribers {
		select {
		case ch <- line:
		default:
		}
	}
}

// closeSubscribers drops every subscriber on shutdown.
func (p *Poller) closeSubscribers() {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	for id, ch := range p.subscribers {
		close(ch)
		delete(p.subscribers, id)
	}
}
