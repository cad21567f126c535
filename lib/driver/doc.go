// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package driver defines the capability interfaces that concrete
// hardware drivers implement, and a registry mapping a configured
// variant name to a driver constructor.
//
// The agent core never talks to hardware directly: every operation
// goes through one of the four interfaces here (Power, SDMux,
// USBSwitch, Console). A driver is constructed from its registered
// variant name, configured from a string key/value map, and probed
// once at startup before first use.
//
// Variants register themselves in their package init(); the daemon
// imports the driver packages it ships with for side effects. There
// is no reflection or dynamic loading.
package driver
