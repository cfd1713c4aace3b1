package snapshot

import (
	"context"
	"time"

	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/patch"
)

type subscription struct {
	id        string
	container nodeid.ID
	listener  Listener
	// last is the snapshot the subscriber has acknowledged.
	last     version
	attempts int
}

// publisher delivers the events of one container. Commits kick it; it then
// waits one batch window and flushes whatever accumulated.
type publisher struct {
	s         *Synchronizer
	container nodeid.ID
	kicks     chan struct{}
}

func newPublisher(s *Synchronizer, container nodeid.ID) *publisher {
	return &publisher{s: s, container: container, kicks: make(chan struct{}, 1)}
}

func (p *publisher) kick() {
	select {
	case p.kicks <- struct{}{}:
	default:
	}
}

func (p *publisher) run() {
	defer p.s.wg.Done()
	timer := time.NewTimer(p.s.window)
	timer.Stop()
	for {
		select {
		case <-p.s.done:
			timer.Stop()
			return
		case <-p.kicks:
			timer.Reset(p.s.window)
		}
		select {
		case <-p.s.done:
			timer.Stop()
			return
		case <-timer.C:
		}
		if p.flush() {
			p.kick()
		}
	}
}

type delivery struct {
	sub *subscription
	to  version
	ev  Event
}

// flush sends every subscriber of the container its pending changes and
// reports whether some delivery failed.
func (p *publisher) flush() bool {
	s := p.s
	s.mu.Lock()
	h := s.histories[p.container]
	var cur version
	ok := h != nil
	if ok {
		cur, ok = h.latest()
	}
	if !ok {
		s.mu.Unlock()
		return false
	}
	var batch []delivery
	for _, sub := range s.subs {
		if sub.container != p.container || sub.last.id == cur.id {
			continue
		}
		batch = append(batch, delivery{sub: sub, to: cur, ev: Event{
			ContainerID:        p.container,
			SnapshotID:         cur.id,
			PreviousSnapshotID: sub.last.id,
		}})
	}
	s.mu.Unlock()

	retry := false
	for _, d := range batch {
		d.ev.Patch = patch.Diff(d.sub.last.tree, d.to.tree)
		err := d.sub.listener(context.Background(), d.ev)
		s.metrics.event(err)

		s.mu.Lock()
		if err != nil {
			d.sub.attempts++
			retry = true
		} else {
			d.sub.last = d.to
			d.sub.attempts = 0
		}
		attempts := d.sub.attempts
		s.mu.Unlock()

		if err != nil {
			s.logger.Warn("Event delivery failed, will retry.",
				"container", p.container, "subscription", d.sub.id, "attempts", attempts, "error", err)
		}
	}
	return retry
}
