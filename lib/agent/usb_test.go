// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"testing"

	"github.com/bureau-foundation/bench/lib/driver"
)

func TestUSBPortsAreOneIndexed(t *testing.T) {
	b := newBench(t, "msc", "hid", "msc")

	if got := b.agent.USBCount(""); got != 3 {
		t.Fatalf("USBCount = %d, want 3", got)
	}
	if got := b.agent.USBOn(1, ""); got != driver.PowerOn {
		t.Fatalf("USBOn(1) = %q, want %q", got, driver.PowerOn)
	}
	if b.usb[0].OnCalls != 1 || b.usb[1].OnCalls != 0 {
		t.Fatal("index 1 must address the first configured port")
	}
	if got := b.agent.USBStatus(2, ""); got != driver.PowerOff {
		t.Fatalf("USBStatus(2) = %q, want %q", got, driver.PowerOff)
	}
}

func TestUSBOutOfRangeIndex(t *testing.T) {
	b := newBench(t, "msc", "hid", "msc")

	// Index 0 does not exist; neither does anything past the last
	// port. The hardware must be left untouched.
	for _, index := range []int{0, -1, 4, 5} {
		if got := b.agent.USBOn(index, ""); got != USBErrState {
			t.Fatalf("USBOn(%d) = %q, want %q", index, got, USBErrState)
		}
		if got := b.agent.USBStatus(index, ""); got != USBErrState {
			t.Fatalf("USBStatus(%d) = %q, want %q", index, got, USBErrState)
		}
	}
	for i, device := range b.usb {
		if device.OnCalls != 0 || device.OffCalls != 0 {
			t.Fatalf("port %d was driven by an out-of-range request", i+1)
		}
	}
}

func TestUSBToggle(t *testing.T) {
	b := newBench(t, "msc")

	if got := b.agent.USBToggle(1, ""); got != driver.PowerOn {
		t.Fatalf("first toggle = %q, want %q", got, driver.PowerOn)
	}
	if got := b.agent.USBToggle(1, ""); got != driver.PowerOff {
		t.Fatalf("second toggle = %q, want %q", got, driver.PowerOff)
	}
}

func TestUSBNotLeaseGated(t *testing.T) {
	b := newBench(t, "msc")
	b.agent.Lock("alice")

	// USB switches carry peripherals; any session may drive them even
	// while another session holds the target lease.
	if got := b.agent.USBOn(1, "bob"); got != driver.PowerOn {
		t.Fatalf("USBOn from a non-owner = %q, want %q", got, driver.PowerOn)
	}
}

func TestUSBByClass(t *testing.T) {
	b := newBench(t, "msc", "hid", "msc")

	if !b.agent.USBHasClass("hid", "") {
		t.Fatal("USBHasClass(hid) should be true")
	}
	if b.agent.USBHasClass("net", "") {
		t.Fatal("USBHasClass(net) should be false")
	}
	if b.agent.USBOnByClass("net", "") {
		t.Fatal("USBOnByClass with an unknown class must fail")
	}

	// The first matching port in configuration order is addressed.
	if !b.agent.USBOnByClass("msc", "") {
		t.Fatal("USBOnByClass(msc) should succeed")
	}
	if b.usb[0].OnCalls != 1 || b.usb[2].OnCalls != 0 {
		t.Fatal("class addressing must pick the first match")
	}
	if !b.agent.USBOffByClass("msc", "") {
		t.Fatal("USBOffByClass(msc) should succeed")
	}
	if b.usb[0].OffCalls != 1 {
		t.Fatal("class off must drive the first match")
	}
}
