// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package console captures the test target's console output into a
// bounded in-memory line buffer and exposes the bookkeeping hooks the
// power state machine invokes around power transitions (pause on
// power-off, resume on power-on, activity timer reset).
package console
