// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package lease implements the agent's session lease: an advisory,
// expiring ownership token granting one session exclusive access to
// gated hardware operations.
//
// The lease is cooperative. It is not a hard mutex — it only answers
// "may this session proceed" for callers that ask. The expiry slides
// forward on every call the owner makes, so an active client never
// loses its lease, while a crashed or disconnected client is silently
// reclaimed after the timeout so it cannot starve other sessions.
package lease
