// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"io"
	"log/slog"
	"testing"

	"github.com/bureau-foundation/bench/lib/console"
	"github.com/bureau-foundation/bench/lib/driver/drivertest"
)

func newConsoleBench(t *testing.T) (*bench, *drivertest.Console) {
	t.Helper()
	b := newBench(t)
	device := drivertest.NewConsole()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b.agent.console = console.NewLogger(device, b.clock, logger)
	return b, device
}

func TestConsoleReadOpsUngated(t *testing.T) {
	b, _ := newConsoleBench(t)
	b.agent.Lock("alice")
	b.agent.ConsolePrint("boot marker", "alice")

	if got := b.agent.ConsoleLines("bob"); got != 1 {
		t.Fatalf("ConsoleLines(bob) = %d, want 1", got)
	}
	if got := b.agent.ConsoleHead("bob"); got != "boot marker" {
		t.Fatalf("ConsoleHead(bob) = %q, want the captured line", got)
	}
}

func TestConsoleMutationsGated(t *testing.T) {
	b, device := newConsoleBench(t)
	b.agent.Lock("alice")
	b.agent.ConsolePrint("line one", "alice")
	b.agent.ConsolePrint("line two", "alice")

	if got := b.agent.ConsoleTail("bob"); got != "" {
		t.Fatalf("ConsoleTail(bob) = %q, want empty for a locked-out session", got)
	}
	if got := b.agent.ConsoleClear("bob"); got != -1 {
		t.Fatalf("ConsoleClear(bob) = %d, want -1", got)
	}
	if b.agent.ConsolePrint("intruder", "bob") {
		t.Fatal("ConsolePrint(bob) must be denied")
	}
	if got := b.agent.ConsoleSend([]byte("reboot\n"), "bob"); got != -1 {
		t.Fatalf("ConsoleSend(bob) = %d, want -1", got)
	}
	if len(device.Sent()) != 0 {
		t.Fatal("nothing must reach the target from a locked-out session")
	}

	if got := b.agent.ConsoleTail("alice"); got != "line two" {
		t.Fatalf("ConsoleTail(alice) = %q, want the newest line", got)
	}
	if got := b.agent.ConsoleSend([]byte("reboot\n"), "alice"); got != 7 {
		t.Fatalf("ConsoleSend(alice) = %d, want 7", got)
	}
	if got := b.agent.ConsoleClear("alice"); got != 2 {
		t.Fatalf("ConsoleClear(alice) = %d, want 2", got)
	}
}

func TestConsoleNoDeviceSentinels(t *testing.T) {
	b := newBench(t)

	if got := b.agent.ConsoleHead(""); got != "" {
		t.Fatalf("ConsoleHead with no console = %q, want empty", got)
	}
	if got := b.agent.ConsoleClear(""); got != -1 {
		t.Fatalf("ConsoleClear with no console = %d, want -1", got)
	}
	if b.agent.ConsoleToggleTimestamps("") {
		t.Fatal("ConsoleToggleTimestamps with no console must report false")
	}
}
