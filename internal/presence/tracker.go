// Package presence tracks heartbeats and decides when users go stale.
package presence

import (
	"sort"
	"sync"
	"time"
)

// Tracker maps usernames to their last heartbeat. It is a disposable cache:
// nothing is persisted and a restart starts empty.
type Tracker struct {
	mu           sync.Mutex
	offlineAfter time.Duration
	lastSeen     map[string]time.Time
	online       map[string]bool
}

// NewTracker builds a tracker that considers users stale after offlineAfter.
func NewTracker(offlineAfter time.Duration) *Tracker {
	return &Tracker{
		offlineAfter: offlineAfter,
		lastSeen:     make(map[string]time.Time),
		online:       make(map[string]bool),
	}
}

// Touch records a heartbeat at now. It returns true when the user was not
// considered online before, i.e. the heartbeat is an offline to online transition.
func (t *Tracker) Touch(username string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastSeen[username] = now
	if t.online[username] {
		return false
	}
	t.online[username] = true
	return true
}

// Sweep marks every online user whose last heartbeat is older than the
// threshold as offline and returns them sorted.
func (t *Tracker) Sweep(now time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var stale []string
	for username, seen := range t.lastSeen {
		if !t.online[username] {
			continue
		}
		if now.Sub(seen) > t.offlineAfter {
			t.online[username] = false
			stale = append(stale, username)
		}
	}
	sort.Strings(stale)
	return stale
}

// Forget drops the user entirely. Returns true if the user was online.
func (t *Tracker) Forget(username string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	wasOnline := t.online[username]
	delete(t.lastSeen, username)
	delete(t.online, username)
	return wasOnline
}

// IsOnline reports the tracker's view of a user.
func (t *Tracker) IsOnline(username string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.online[username]
}

// LastSeen returns the last heartbeat time, if any.
func (t *Tracker) LastSeen(username string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	seen, ok := t.lastSeen[username]
	return seen, ok
}
