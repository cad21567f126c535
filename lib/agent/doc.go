// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent implements the bench agent: the single object that
// mediates access to a test target's power line, storage-media
// multiplexer, console, and USB power switches.
//
// Every operation takes a session token and consults the lease
// manager before touching shared hardware. Results are in-band
// sentinels (false, -1, "???", "ERR", "LOCKED") rather than errors:
// the control protocol forwards them to remote clients unchanged, and
// a caller that is locked out is deliberately indistinguishable from
// one whose subsystem has no driver configured. Driver errors are
// logged and collapsed into the same sentinels; no operation is fatal
// to the agent, and a failed operation leaves the state machines
// consistent for retry.
//
// The agent serves one request at a time. The only long-running
// operation, the streaming image write, yields at least once per
// feedback interval so a large flash cannot starve status queries or
// lease-expiry checks from other sessions.
package agent
