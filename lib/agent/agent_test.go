// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/bureau-foundation/bench/lib/clock"
	"github.com/bureau-foundation/bench/lib/console"
	"github.com/bureau-foundation/bench/lib/driver"
	"github.com/bureau-foundation/bench/lib/driver/drivertest"
)

// bench bundles an agent with the fakes behind it.
type bench struct {
	agent *Agent
	clock *clock.FakeClock
	power *drivertest.Power
	mux   *drivertest.SDMux
	usb   []*drivertest.USBSwitch
}

func newBench(t *testing.T, usbClasses ...string) *bench {
	t.Helper()
	b := &bench{
		clock: clock.Fake(time.Unix(1000, 0)),
		power: &drivertest.Power{},
		mux:   &drivertest.SDMux{},
	}
	var ports []USBPort
	for _, class := range usbClasses {
		device := &drivertest.USBSwitch{}
		b.usb = append(b.usb, device)
		ports = append(ports, USBPort{Class: class, Driver: device})
	}
	b.agent = New(Params{
		Power:  b.power,
		SDMux:  b.mux,
		USB:    ports,
		Clock:  b.clock,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return b
}

func TestLeaseGatesPowerMutations(t *testing.T) {
	b := newBench(t)
	if !b.agent.Lock("alice") {
		t.Fatal("alice should acquire the free lease")
	}

	if b.agent.PowerOn("bob") {
		t.Fatal("bob must not power on while alice holds the lease")
	}
	if b.power.OnCalls != 0 {
		t.Fatalf("driver saw %d On calls from a locked-out session", b.power.OnCalls)
	}
	if got := b.agent.PowerToggle("bob"); got != PowerLockedState {
		t.Fatalf("PowerToggle(bob) = %q, want %q", got, PowerLockedState)
	}

	if !b.agent.PowerOn("alice") {
		t.Fatal("the lease owner must be able to power on")
	}
	if got := b.agent.PowerStatus("bob"); got != driver.PowerOn {
		t.Fatalf("PowerStatus is read-only and ungated, got %q", got)
	}
}

func TestLeaseExpiresWithoutActivity(t *testing.T) {
	b := newBench(t)
	if !b.agent.Lock("alice") {
		t.Fatal("alice should acquire the free lease")
	}
	if b.agent.Lock("bob") {
		t.Fatal("bob must not steal a live lease")
	}

	// Any operation from the owner slides the expiry forward.
	b.clock.Advance(4 * time.Minute)
	b.agent.PowerStatus("alice")
	b.clock.Advance(4 * time.Minute)
	if b.agent.Lock("bob") {
		t.Fatal("lease was renewed two minutes ago, bob must still wait")
	}

	// Five idle minutes and the lease lapses.
	b.clock.Advance(5 * time.Minute)
	if !b.agent.Lock("bob") {
		t.Fatal("bob should acquire the lapsed lease")
	}
	if owner := b.agent.Owner(); owner != "bob" {
		t.Fatalf("Owner() = %q, want bob", owner)
	}
}

func TestForeignActivityDoesNotRenew(t *testing.T) {
	b := newBench(t)
	b.agent.Lock("alice")

	b.clock.Advance(4 * time.Minute)
	b.agent.PowerStatus("bob")
	b.clock.Advance(2 * time.Minute)

	if b.agent.Locked("bob") {
		t.Fatal("bob's queries must not have extended alice's lease")
	}
}

func TestUnlockReleasesOnlyForOwner(t *testing.T) {
	b := newBench(t)
	b.agent.Lock("alice")

	if b.agent.Unlock("bob") {
		t.Fatal("bob must not release alice's lease")
	}
	if !b.agent.Unlock("alice") {
		t.Fatal("alice should release her own lease")
	}
	if b.agent.Locked("bob") {
		t.Fatal("released lease should not lock anyone out")
	}
}

func TestPowerConsoleSideEffects(t *testing.T) {
	b := newBench(t)
	device := drivertest.NewConsole()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b.agent.console = console.NewLogger(device, b.clock, logger)

	if !b.agent.PowerOn("") {
		t.Fatal("anonymous power on should succeed on a free lease")
	}
	if got := b.agent.PowerStatus(""); got != driver.PowerOn {
		t.Fatalf("PowerStatus = %q after PowerOn", got)
	}
	if !b.agent.PowerOff("") {
		t.Fatal("power off should succeed")
	}
	if got := b.agent.PowerToggle(""); got != driver.PowerOn {
		t.Fatalf("PowerToggle = %q, want %q", got, driver.PowerOn)
	}
}

func TestPowerUnavailableSentinels(t *testing.T) {
	a := New(Params{
		Clock:  clock.Fake(time.Unix(0, 0)),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	if got := a.PowerStatus(""); got != driver.PowerUnknown {
		t.Fatalf("PowerStatus with no driver = %q, want %q", got, driver.PowerUnknown)
	}
	if a.PowerOn("") {
		t.Fatal("PowerOn with no driver must fail")
	}
	if got := a.PowerToggle(""); got != PowerLockedState {
		t.Fatalf("PowerToggle with no driver = %q, want %q", got, PowerLockedState)
	}
	if got := a.StorageStatus(""); got != driver.SDUnknown {
		t.Fatalf("StorageStatus with no driver = %q, want %q", got, driver.SDUnknown)
	}
}
