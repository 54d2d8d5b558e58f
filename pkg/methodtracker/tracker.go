// Package methodtracker builds per-session call stacks from process-flow
// Enter/Leave entries.
package methodtracker

import (
	"sync"

	"github.com/grafana/logrooms/pkg/entrystore"
)

// Frame is one CallFrame on a session's stack.
type Frame struct {
	EnterEntryID uint64
	MethodTitle  string
}

const defaultSession = "default"

// Tracker holds one LIFO stack per session, keyed by host name.
type Tracker struct {
	mu     sync.Mutex
	stacks map[string][]Frame
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{stacks: make(map[string][]Frame)}
}

func sessionKey(hostName string) string {
	if hostName == "" {
		return defaultSession
	}
	return hostName
}

// Process annotates e in place according to its Kind, mutating the stack
// for e's session. Entries that are not process-flow are left untouched.
func (t *Tracker) Process(e *entrystore.Entry) {
	if !e.Kind.IsProcessFlow() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	key := sessionKey(e.HostName)
	stack := t.stacks[key]

	switch e.Kind {
	case entrystore.KindProcessFlowEnter:
		e.Depth = len(stack)
		if len(stack) > 0 {
			parent := stack[len(stack)-1].EnterEntryID
			e.ParentID = &parent
		}
		e.Context = methodNames(stack)
		id := e.ID
		stack = append(stack, Frame{EnterEntryID: id, MethodTitle: e.Title})
		t.stacks[key] = stack

	case entrystore.KindProcessFlowLeave:
		e.Depth = len(stack) // pre-pop stack size
		if len(stack) == 0 {
			// Unbalanced Leave without a matching Enter.
			e.MatchingEnterID = nil
			e.Context = []string{e.Title}
			return
		}
		popped := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		t.stacks[key] = stack

		if len(stack) > 0 {
			parent := stack[len(stack)-1].EnterEntryID
			e.ParentID = &parent
		}
		enterID := popped.EnterEntryID
		e.MatchingEnterID = &enterID
		e.Context = append(methodNames(stack), e.Title)
	}
}

func methodNames(stack []Frame) []string {
	out := make([]string, len(stack))
	for i, f := range stack {
		out[i] = f.MethodTitle
	}
	return out
}

// Clear resets every session's stack.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stacks = make(map[string][]Frame)
}

// Depth reports the current stack depth for a session, for tests and
// diagnostics.
func (t *Tracker) Depth(hostName string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.stacks[sessionKey(hostName)])
}
