package command

import (
	"sync"
)

// PlayerLocks serializes mutations per player. Every command that writes
// player state takes the player's lock first, so optimistic-concurrency
// conflicts only occur between separate processes, not within one.
// Locks are never evicted; the per-player footprint is one mutex.
type PlayerLocks struct {
	locks sync.Map // playerID -> *sync.Mutex
}

// NewPlayerLocks creates an empty lock table.
func NewPlayerLocks() *PlayerLocks {
	return &PlayerLocks{}
}

// Lock acquires the lock for a player and returns the unlock function.
//
//	defer locks.Lock(playerID)()
func (l *PlayerLocks) Lock(playerID string) func() {
	v, _ := l.locks.LoadOrStore(playerID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
