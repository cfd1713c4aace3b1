package commands

import (
	"sync"

	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/workflow"
)

// DefaultMaxHistory bounds each undo stack when no limit is configured.
const DefaultMaxHistory = 50

// entry is one undoable command: the container state before and after it.
type entry struct {
	kind   Kind
	before *workflow.Memento
	after  *workflow.Memento
}

type stacks struct {
	undo []entry
	redo []entry
}

// history keeps an independent undo and redo stack per container.
type history struct {
	mu     sync.Mutex
	max    int
	stacks map[nodeid.ID]*stacks
}

func newHistory(maxEntries int) *history {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxHistory
	}
	return &history{max: maxEntries, stacks: make(map[nodeid.ID]*stacks)}
}

func (h *history) get(container nodeid.ID) *stacks {
	s, ok := h.stacks[container]
	if !ok {
		s = &stacks{}
		h.stacks[container] = s
	}
	return s
}

// push records a new command. The oldest entry is dropped once the stack is
// full, and the redo stack is cleared.
func (h *history) push(container nodeid.ID, e entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.get(container)
	s.undo = append(s.undo, e)
	if over := len(s.undo) - h.max; over > 0 {
		clear(s.undo[:over])
		s.undo = s.undo[over:]
	}
	s.redo = nil
}

// peek returns the entry undo (or redo) would revert next.
func (h *history) peek(container nodeid.ID, undo bool) (entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.stacks[container]
	if !ok {
		return entry{}, false
	}
	from := s.redo
	if undo {
		from = s.undo
	}
	if len(from) == 0 {
		return entry{}, false
	}
	return from[len(from)-1], true
}

// shift moves the top entry from the undo stack to the redo stack, or the
// other way round.
func (h *history) shift(container nodeid.ID, undo bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.get(container)
	from, to := &s.redo, &s.undo
	if undo {
		from, to = &s.undo, &s.redo
	}
	if len(*from) == 0 {
		return
	}
	e := (*from)[len(*from)-1]
	*from = (*from)[:len(*from)-1]
	*to = append(*to, e)
}

func (h *history) depth(container nodeid.ID) (undo, redo int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.stacks[container]; ok {
		return len(s.undo), len(s.redo)
	}
	return 0, 0
}

// drop forgets the stacks of every container at or below one of ids. Their
// entries refer to content that was replaced wholesale.
func (h *history) drop(ids []nodeid.ID) {
	if len(ids) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for container := range h.stacks {
		for _, id := range ids {
			if container.Within(id) {
				delete(h.stacks, container)
				break
			}
		}
	}
}

func (h *history) clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.stacks)
}
