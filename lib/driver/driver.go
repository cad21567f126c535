// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package driver

// Options carries driver configuration as string key/value pairs,
// parsed from the driver's config section. Each driver documents the
// keys it understands; unknown keys are ignored.
type Options map[string]string

// Power line states as reported by a power controller. The agent
// passes these through to clients unchanged, so they are protocol
// constants.
const (
	PowerOn      = "ON"
	PowerOff     = "OFF"
	PowerUnknown = "???"
)

// Storage mux positions. The media is electrically attached to
// either the host machine or the test target.
const (
	SDOnHost   = "HOST"
	SDOnTarget = "TARGET"
	SDUnknown  = "???"
)

// Power controls the test target's power line.
type Power interface {
	// Configure applies driver options. Called once, before Probe.
	Configure(options Options) error

	// Probe verifies the hardware is present and reachable. Called
	// once at agent startup; a probe failure aborts startup.
	Probe() error

	// On powers the target on.
	On() error

	// Off powers the target off.
	Off() error

	// Toggle flips the power state and returns the resulting state
	// (PowerOn or PowerOff).
	Toggle() (string, error)

	// Status returns the current state: PowerOn, PowerOff, or
	// PowerUnknown.
	Status() (string, error)
}

// SDMux controls the storage-media multiplexer and the write path to
// the media while it is attached to the host.
type SDMux interface {
	Configure(options Options) error
	Probe() error

	// Open starts a write session on the media. The media must be
	// attached to the host.
	Open() error

	// Close ends the write session, flushing any buffered data.
	Close() error

	// Mount makes the given partition (or the whole media when
	// partition is empty) available for inspection on the host.
	Mount(partition string) error

	// Write appends data to the media at the current write position.
	Write(data []byte) error

	// Update writes data at the given offset of the named destination
	// file on the mounted media, returning the number of bytes
	// written.
	Update(destination string, offset int64, data []byte) (int, error)

	// ToHost attaches the media to the host machine.
	ToHost() error

	// ToTarget attaches the media to the test target.
	ToTarget() error

	// Status returns the current position: SDOnHost, SDOnTarget, or
	// SDUnknown.
	Status() (string, error)
}

// USBSwitch controls one independently switchable USB power port.
type USBSwitch interface {
	Configure(options Options) error
	Probe() error
	On() error
	Off() error

	// Toggle flips the port and returns the resulting state (PowerOn
	// or PowerOff).
	Toggle() (string, error)

	// Status returns PowerOn, PowerOff, or PowerUnknown.
	Status() (string, error)
}

// Console is the byte stream to and from the target's serial console.
// Capture, line buffering, and pausing live in lib/console; drivers
// only move bytes.
type Console interface {
	Configure(options Options) error
	Probe() error

	// Open establishes the console connection.
	Open() error

	// Read blocks until console output is available and returns it.
	Read(buffer []byte) (int, error)

	// Write sends bytes to the target's console input.
	Write(data []byte) (int, error)

	// Close releases the console device.
	Close() error
}
