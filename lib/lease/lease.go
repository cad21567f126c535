// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lease

import (
	"sync"
	"time"

	"github.com/bureau-foundation/bench/lib/clock"
)

// DefaultTimeout is how long a lease survives without any call from
// its owner.
const DefaultTimeout = 5 * time.Minute

// Manager owns the single global lease. All methods are safe for
// concurrent use.
//
// A session is an opaque token supplied by the transport layer; the
// manager never generates one. The empty session is anonymous and can
// never hold the lease.
type Manager struct {
	clock   clock.Clock
	timeout time.Duration

	mu     sync.Mutex
	owner  string
	expiry time.Time
}

// NewManager returns a Manager with the given sliding timeout. A
// non-positive timeout falls back to DefaultTimeout.
func NewManager(clk clock.Clock, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Manager{clock: clk, timeout: timeout}
}

// Touch runs the expiry check for a call made by session. Called at
// the top of every gated operation.
//
// If the lease has lapsed it is cleared first (silent reclaim — the
// original owner is not notified and a later call from it finds no
// owner). Otherwise, a call from the current owner slides the expiry
// forward to now + timeout.
func (m *Manager) Touch(session string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touchLocked(session)
}

func (m *Manager) touchLocked(session string) {
	if m.owner == "" {
		return
	}
	now := m.clock.Now()
	if !now.Before(m.expiry) {
		m.owner = ""
		m.expiry = time.Time{}
		return
	}
	if session == m.owner {
		m.expiry = now.Add(m.timeout)
	}
}

// TryLock attempts to acquire or refresh the lease for session. It
// succeeds when the lease is free or already held by session, setting
// the expiry to now + timeout. Returns false on contention; it never
// queues.
func (m *Manager) TryLock(session string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touchLocked(session)
	if m.owner != "" && m.owner != session {
		return false
	}
	if session == "" {
		// Anonymous callers cannot own the lease; the attempt is a
		// successful no-op, matching the unlocked state they observe.
		return true
	}
	m.owner = session
	m.expiry = m.clock.Now().Add(m.timeout)
	return true
}

// Unlock releases the lease if session is the owner. Returns false
// when session does not own the lease.
func (m *Manager) Unlock(session string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touchLocked(session)
	if session == "" || m.owner != session {
		return false
	}
	m.owner = ""
	m.expiry = time.Time{}
	return true
}

// LockedFor reports whether session is locked out: after the expiry
// check, true iff an owner exists and it is not session.
func (m *Manager) LockedFor(session string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touchLocked(session)
	return m.owner != "" && m.owner != session
}

// Owner returns the current owner, or the empty string when the
// lease is free. It does not run the expiry check; callers that need
// current truth should Touch first.
func (m *Manager) Owner() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner
}
