// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agent

// ConsoleHead removes and returns the oldest captured console line.
// Reading the log is not lease-gated.
func (a *Agent) ConsoleHead(session string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lease.Touch(session)
	if a.console == nil {
		return ""
	}
	return a.console.Head()
}

// ConsoleLines returns the number of complete console lines buffered.
func (a *Agent) ConsoleLines(session string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lease.Touch(session)
	if a.console == nil {
		return 0
	}
	return a.console.Lines()
}

// ConsoleTail returns the newest captured console line without
// removing it. Lease-gated: tailing is part of an interactive session.
func (a *Agent) ConsoleTail(session string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.console == nil || a.lease.LockedFor(session) {
		return ""
	}
	return a.console.Tail()
}

// ConsoleClear discards the captured log, returning how many lines
// were dropped, or -1 when the caller is locked out.
func (a *Agent) ConsoleClear(session string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.console == nil || a.lease.LockedFor(session) {
		return -1
	}
	return a.console.Clear()
}

// ConsolePrint injects an annotation line into the captured log.
func (a *Agent) ConsolePrint(text, session string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.console == nil || a.lease.LockedFor(session) {
		return false
	}
	a.console.Print(text)
	return true
}

// ConsoleSend writes data to the target's console input, returning
// the bytes written or -1 when the caller is locked out.
func (a *Agent) ConsoleSend(data []byte, session string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.console == nil || a.lease.LockedFor(session) {
		return -1
	}
	n, err := a.console.Send(data)
	if err != nil {
		a.logger.Error("console send failed", "error", err)
		return -1
	}
	return n
}

// ConsoleToggleTimestamps flips the elapsed-time prefix on captured
// lines and returns the new setting.
func (a *Agent) ConsoleToggleTimestamps(session string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lease.Touch(session)
	if a.console == nil {
		return false
	}
	return a.console.ToggleTimestamps()
}
