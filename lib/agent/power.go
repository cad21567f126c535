// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import "github.com/bureau-foundation/bench/lib/driver"

// PowerLockedState is returned by PowerToggle when the caller is
// locked out or no power driver is configured. Protocol constant.
const PowerLockedState = "LOCKED"

// powerLocked reports whether a power mutation is denied: the caller
// is lease-locked, or there is no power driver to mutate. The two
// are indistinguishable to the caller.
func (a *Agent) powerLocked(session string) bool {
	return a.lease.LockedFor(session) || a.power == nil
}

// PowerStatus returns the driver-reported power state, or "???" when
// no driver is configured. Read-only: not lease-gated.
func (a *Agent) PowerStatus(session string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lease.Touch(session)
	return a.powerStatus()
}

// powerStatus reads the driver without touching the lease. Caller
// holds a.mu.
func (a *Agent) powerStatus() string {
	if a.power == nil {
		return driver.PowerUnknown
	}
	state, err := a.power.Status()
	if err != nil {
		a.logger.Error("power status failed", "error", err)
		return driver.PowerUnknown
	}
	return state
}

// PowerOn powers the target on, resuming console capture for the
// boot that follows.
func (a *Agent) PowerOn(session string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.console != nil {
		a.console.Resume()
	}
	if a.powerLocked(session) {
		return false
	}
	if err := a.power.On(); err != nil {
		a.logger.Error("power on failed", "error", err)
		return false
	}
	return true
}

// PowerOff powers the target off. Console capture is paused and its
// activity timer reset so the next boot's log starts at zero.
func (a *Agent) PowerOff(session string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.powerLocked(session) {
		return false
	}
	err := a.power.Off()
	if a.console != nil {
		a.console.ResetTimer()
	}
	if err != nil {
		a.logger.Error("power off failed", "error", err)
		return false
	}
	if a.console != nil {
		a.console.Pause()
	}
	return true
}

// PowerToggle flips the power state and returns the resulting state,
// or "LOCKED" when the caller may not mutate power. Console capture
// follows the resulting state.
func (a *Agent) PowerToggle(session string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.powerLocked(session) {
		return PowerLockedState
	}
	state, err := a.power.Toggle()
	if err != nil {
		a.logger.Error("power toggle failed", "error", err)
		return driver.PowerUnknown
	}
	if a.console != nil {
		switch state {
		case driver.PowerOn:
			a.console.Resume()
		case driver.PowerOff:
			a.console.Pause()
			a.console.ResetTimer()
		}
	}
	return state
}
