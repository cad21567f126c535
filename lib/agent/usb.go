// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import "github.com/bureau-foundation/bench/lib/driver"

// USBErrState is returned for an out-of-range port index. Distinct
// from "???" so clients can tell a bad address from a failed driver.
const USBErrState = "ERR"

// USBCount returns the number of configured USB power switches.
func (a *Agent) USBCount(session string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lease.Touch(session)
	return len(a.usb)
}

// port resolves a 1-based index, or nil when out of range. Caller
// holds a.mu.
func (a *Agent) port(index int) driver.USBSwitch {
	if index < 1 || index > len(a.usb) {
		return nil
	}
	return a.usb[index-1].Driver
}

// USBOn powers the 1-indexed port on and returns its resulting state.
// USB switches carry peripherals, not the target, so they are not
// lease-gated.
func (a *Agent) USBOn(index int, session string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lease.Touch(session)
	device := a.port(index)
	if device == nil {
		a.logger.Error("usb port out of range", "index", index, "ports", len(a.usb))
		return USBErrState
	}
	if err := device.On(); err != nil {
		a.logger.Error("usb on failed", "index", index, "error", err)
		return driver.PowerUnknown
	}
	return a.portStatus(device, index)
}

// USBOff powers the 1-indexed port off and returns its resulting
// state.
func (a *Agent) USBOff(index int, session string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lease.Touch(session)
	device := a.port(index)
	if device == nil {
		a.logger.Error("usb port out of range", "index", index, "ports", len(a.usb))
		return USBErrState
	}
	if err := device.Off(); err != nil {
		a.logger.Error("usb off failed", "index", index, "error", err)
		return driver.PowerUnknown
	}
	return a.portStatus(device, index)
}

// USBToggle flips the 1-indexed port and returns its resulting state.
func (a *Agent) USBToggle(index int, session string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lease.Touch(session)
	device := a.port(index)
	if device == nil {
		a.logger.Error("usb port out of range", "index", index, "ports", len(a.usb))
		return USBErrState
	}
	state, err := device.Toggle()
	if err != nil {
		a.logger.Error("usb toggle failed", "index", index, "error", err)
		return driver.PowerUnknown
	}
	return state
}

// USBStatus returns the 1-indexed port's state, "ERR" when the index
// is out of range.
func (a *Agent) USBStatus(index int, session string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lease.Touch(session)
	device := a.port(index)
	if device == nil {
		a.logger.Error("usb port out of range", "index", index, "ports", len(a.usb))
		return USBErrState
	}
	return a.portStatus(device, index)
}

func (a *Agent) portStatus(device driver.USBSwitch, index int) string {
	state, err := device.Status()
	if err != nil {
		a.logger.Error("usb status failed", "index", index, "error", err)
		return driver.PowerUnknown
	}
	return state
}

// USBHasClass reports whether any port was configured with the given
// class tag.
func (a *Agent) USBHasClass(class, session string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lease.Touch(session)
	return a.findClass(class) != nil
}

// USBOnByClass powers on the first port configured with the given
// class tag.
func (a *Agent) USBOnByClass(class, session string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lease.Touch(session)
	device := a.findClass(class)
	if device == nil {
		return false
	}
	if err := device.On(); err != nil {
		a.logger.Error("usb on failed", "class", class, "error", err)
		return false
	}
	return true
}

// USBOffByClass powers off the first port configured with the given
// class tag.
func (a *Agent) USBOffByClass(class, session string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lease.Touch(session)
	device := a.findClass(class)
	if device == nil {
		return false
	}
	if err := device.Off(); err != nil {
		a.logger.Error("usb off failed", "class", class, "error", err)
		return false
	}
	return true
}

// findClass returns the first port with the given class tag, in
// configuration order. Caller holds a.mu.
func (a *Agent) findClass(class string) driver.USBSwitch {
	for _, port := range a.usb {
		if port.Class == class {
			return port.Driver
		}
	}
	return nil
}
