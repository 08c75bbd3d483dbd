// Package history keeps a bounded undo/redo log of document snapshots.
//
// Entries live in an arena addressed by index. Each entry links to its
// parent (the state before it) and its next (the state after it). Pushing
// after an undo drops the redo branch, and pushing past the limit evicts
// the oldest entry; freed slots are reused.
package history

// DefaultLimit is the number of entries kept when no limit is given.
const DefaultLimit = 100

const none = -1

type entry[T any] struct {
	data   T
	parent int
	next   int
}

// Stack is an undo/redo log. The zero value is not usable; call New.
type Stack[T any] struct {
	entries []entry[T]
	free    []int

	head    int // oldest retained entry
	current int
	length  int
	limit   int

	onUndo []func(T)
	onRedo []func(T)
}

// New returns an empty stack holding at most limit entries. A limit below
// 1 means DefaultLimit.
func New[T any](limit int) *Stack[T] {
	if limit < 1 {
		limit = DefaultLimit
	}
	return &Stack[T]{head: none, current: none, limit: limit}
}

// OnUndo registers fn to run with the new current data after each undo.
func (s *Stack[T]) OnUndo(fn func(T)) {
	if fn != nil {
		s.onUndo = append(s.onUndo, fn)
	}
}

// OnRedo registers fn to run with the new current data after each redo.
func (s *Stack[T]) OnRedo(fn func(T)) {
	if fn != nil {
		s.onRedo = append(s.onRedo, fn)
	}
}

// OnAction registers fn for both undo and redo.
func (s *Stack[T]) OnAction(fn func(T)) {
	s.OnUndo(fn)
	s.OnRedo(fn)
}

// Push records data as the state after current. Any redo branch is
// discarded. When the stack grows past its limit the oldest entry is
// evicted.
func (s *Stack[T]) Push(data T) {
	idx := s.alloc(data)

	if s.current == none {
		s.head = idx
		s.current = idx
		s.length = 1
		return
	}

	s.dropAfter(s.current)
	s.entries[s.current].next = idx
	s.entries[idx].parent = s.current
	s.current = idx
	s.length++

	for s.length > s.limit {
		s.evictHead()
	}
}

// Undo moves to the parent entry and fires the undo callbacks. It reports
// false, doing nothing, at the oldest entry.
func (s *Stack[T]) Undo() bool {
	if s.current == none || s.entries[s.current].parent == none {
		return false
	}
	s.current = s.entries[s.current].parent
	s.fire(s.onUndo)
	return true
}

// Redo moves to the next entry and fires the redo callbacks. It reports
// false, doing nothing, at the newest entry.
func (s *Stack[T]) Redo() bool {
	if s.current == none || s.entries[s.current].next == none {
		return false
	}
	s.current = s.entries[s.current].next
	s.fire(s.onRedo)
	return true
}

// CanUndo reports whether Undo would move.
func (s *Stack[T]) CanUndo() bool {
	return s.current != none && s.entries[s.current].parent != none
}

// CanRedo reports whether Redo would move.
func (s *Stack[T]) CanRedo() bool {
	return s.current != none && s.entries[s.current].next != none
}

// IsAtHead reports whether current is the oldest retained entry. An empty
// stack is at its head.
func (s *Stack[T]) IsAtHead() bool {
	return s.head == s.current
}

// Current returns the data of the current entry.
func (s *Stack[T]) Current() (T, bool) {
	if s.current == none {
		var zero T
		return zero, false
	}
	return s.entries[s.current].data, true
}

// Len returns the number of retained entries, redo branch included.
func (s *Stack[T]) Len() int { return s.length }

// Limit returns the maximum number of retained entries.
func (s *Stack[T]) Limit() int { return s.limit }

// Reset drops every entry. Callbacks stay registered.
func (s *Stack[T]) Reset() {
	s.entries = s.entries[:0]
	s.free = s.free[:0]
	s.head, s.current, s.length = none, none, 0
}

func (s *Stack[T]) fire(fns []func(T)) {
	data := s.entries[s.current].data
	for _, fn := range fns {
		fn(data)
	}
}

func (s *Stack[T]) alloc(data T) int {
	e := entry[T]{data: data, parent: none, next: none}
	if n := len(s.free); n > 0 {
		idx := s.free[n-1]
		s.free = s.free[:n-1]
		s.entries[idx] = e
		return idx
	}
	s.entries = append(s.entries, e)
	return len(s.entries) - 1
}

func (s *Stack[T]) release(idx int) {
	var zero T
	s.entries[idx] = entry[T]{data: zero, parent: none, next: none}
	s.free = append(s.free, idx)
	s.length--
}

// dropAfter frees every entry following idx.
func (s *Stack[T]) dropAfter(idx int) {
	n := s.entries[idx].next
	s.entries[idx].next = none
	for n != none {
		following := s.entries[n].next
		s.release(n)
		n = following
	}
}

func (s *Stack[T]) evictHead() {
	old := s.head
	s.head = s.entries[old].next
	s.entries[s.head].parent = none
	s.release(old)
}
