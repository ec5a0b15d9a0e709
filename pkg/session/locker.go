// SPDX-License-Identifier: Apache-2.0

package session

import "sync"

// Locker serializes the read-merge-write sequence for a single draft key so
// two concurrent turns for the same conversation cannot race and silently
// drop one turn's input. Different keys never contend.
type Locker struct {
	mu    sync.Mutex
	locks map[Key]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewLocker creates a keyed locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[Key]*keyLock)}
}

// Lock acquires the lock for key and returns the matching unlock function.
func (l *Locker) Lock(key Key) func() {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.mu.Lock()

	return func() {
		kl.mu.Unlock()
		l.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
