package session

import "sync"

// Store keeps sessions in process memory, one per user id. Cycles for the
// same user are serialized through a per-session mutex so concurrent tabs
// cannot interleave a turn.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	sess *Session
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

func (st *Store) entryFor(userID string) *entry {
	st.mu.Lock()
	defer st.mu.Unlock()
	e, ok := st.entries[userID]
	if !ok {
		e = &entry{sess: newSession(userID)}
		st.entries[userID] = e
	}
	return e
}

// GetOrCreate returns the user's session, creating a zeroed one on first
// use. Safe to call any number of times per cycle.
func (st *Store) GetOrCreate(userID string) *Session {
	return st.entryFor(userID).sess
}

// Acquire locks the user's session for the duration of one interaction
// cycle and returns it with a release function.
func (st *Store) Acquire(userID string) (*Session, func()) {
	e := st.entryFor(userID)
	e.mu.Lock()
	return e.sess, e.mu.Unlock
}

// Reset clears the user's conversation state back to zero. Identity fields
// survive; the session keeps its id and owner.
func (st *Store) Reset(userID string) {
	e := st.entryFor(userID)
	e.mu.Lock()
	e.sess.reset()
	e.mu.Unlock()
}
