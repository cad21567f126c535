// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package drivertest provides scripted in-memory implementations of
// the driver capability interfaces for tests. The fakes record every
// call so tests can assert on exactly what the agent asked the
// hardware to do — in particular, the mux fake accumulates all
// written bytes for stream round-trip assertions and counts swap
// calls for the power-gating property.
package drivertest
