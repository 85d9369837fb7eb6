package session

import "sync"

// Table is the process-wide session registry (spec §5): "the only
// process-wide mutable state... guarded by a single mutex with short
// critical sections (insert, lookup, delete); no lock is held across I/O."
type Table struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewTable creates an empty session table.
func NewTable() *Table {
	return &Table{sessions: make(map[string]*Session)}
}

// Insert adds a session to the table.
func (t *Table) Insert(s *Session) {
	t.mu.Lock()
	t.sessions[s.ID] = s
	t.mu.Unlock()
}

// Lookup returns the session with the given id, or nil.
func (t *Table) Lookup(id string) *Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessions[id]
}

// Delete removes a session from the table, releasing its resources.
// Callers are expected to have already called s.Close() before or after
// this (cleanup does not hold the table lock across I/O).
func (t *Table) Delete(id string) {
	t.mu.Lock()
	delete(t.sessions, id)
	t.mu.Unlock()
}

// Size returns the number of tracked sessions; used to check the
// session_table.size == connected_peers invariant (spec §8).
func (t *Table) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// Broadcast sends msg to every currently-connected session's peer, used
// for compilation_status messages which every peer must observe at
// least once per compile (spec §4.6, §8). No table lock is held across
// the I/O: the peer list is copied first.
func (t *Table) Broadcast(msg OutboundMessage) {
	t.mu.Lock()
	peers := make([]*Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		peers = append(peers, s)
	}
	t.mu.Unlock()

	for _, s := range peers {
		s.send(msg)
	}
}
