// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/bench/lib/clock"
	"github.com/bureau-foundation/bench/lib/console"
	"github.com/bureau-foundation/bench/lib/driver"
	"github.com/bureau-foundation/bench/lib/lease"
	"github.com/bureau-foundation/bench/lib/stream"
)

// DefaultFeedbackInterval bounds how long one streaming write call
// may run before yielding control back to its caller.
const DefaultFeedbackInterval = 8 * time.Second

// USBPort is one configured USB power switch: its driver plus the
// class tag clients can address it by. Ports are 1-indexed in the
// order they were configured.
type USBPort struct {
	Class  string
	Driver driver.USBSwitch
}

// Params carries the agent's collaborators. Any driver may be nil,
// in which case operations on that subsystem report the unavailable
// sentinel.
type Params struct {
	Power   driver.Power
	SDMux   driver.SDMux
	Console *console.Logger
	USB     []USBPort

	// LeaseTimeout is the sliding lease expiry; zero selects
	// lease.DefaultTimeout.
	LeaseTimeout time.Duration

	// FeedbackInterval bounds one streaming write call; zero selects
	// DefaultFeedbackInterval.
	FeedbackInterval time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Agent composes the lease manager, hardware state machines, and the
// streaming write pipeline behind one synchronous request surface.
// Safe for concurrent use: requests are served one at a time.
type Agent struct {
	logger   *slog.Logger
	clock    clock.Clock
	lease    *lease.Manager
	power    driver.Power
	mux      driver.SDMux
	console  *console.Logger
	usb      []USBPort
	feedback time.Duration

	// mu serializes all facade operations. The write pipeline's
	// feedback deadline keeps hold times bounded.
	mu sync.Mutex

	// Write cursor. Exists from StorageOpen to StorageClose.
	opened       bool
	mounted      bool
	bytesWritten uint64
	checksum     *blake3.Hasher
	decoder      *stream.Decoder
	decoderKind  string
}

// New builds an Agent from params.
func New(params Params) *Agent {
	clk := params.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		logger:   logger,
		clock:    clk,
		lease:    lease.NewManager(clk, params.LeaseTimeout),
		power:    params.Power,
		mux:      params.SDMux,
		console:  params.Console,
		usb:      params.USB,
		feedback: orDefault(params.FeedbackInterval, DefaultFeedbackInterval),
		checksum: blake3.New(),
	}
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// Start probes every configured driver and starts console capture. A
// probe failure aborts startup: an agent that cannot reach its
// hardware must not come up half-working.
func (a *Agent) Start() error {
	if a.power != nil {
		if err := a.power.Probe(); err != nil {
			return fmt.Errorf("probing power controller: %w", err)
		}
	}
	if a.mux != nil {
		if err := a.mux.Probe(); err != nil {
			return fmt.Errorf("probing sdmux controller: %w", err)
		}
	}
	for i, port := range a.usb {
		if err := port.Driver.Probe(); err != nil {
			return fmt.Errorf("probing usb switch %d: %w", i+1, err)
		}
	}
	if a.console != nil {
		if err := a.console.Start(); err != nil {
			return fmt.Errorf("starting console capture: %w", err)
		}
	}
	a.logger.Info("agent started",
		"power", a.power != nil,
		"sdmux", a.mux != nil,
		"console", a.console != nil,
		"usb_ports", len(a.usb),
	)
	return nil
}

// Stop releases the write cursor and stops console capture.
func (a *Agent) Stop() {
	a.mu.Lock()
	if a.mux != nil {
		a.closeWriteSession()
	} else {
		a.dropDecoder()
	}
	a.mu.Unlock()

	if a.console != nil {
		a.console.Stop()
	}
}

// Lock acquires or refreshes the lease for session. Returns false on
// contention.
func (a *Agent) Lock(session string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lease.TryLock(session)
}

// Unlock releases the lease if session owns it.
func (a *Agent) Unlock(session string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lease.Unlock(session)
}

// Locked reports whether session is locked out by another session's
// lease.
func (a *Agent) Locked(session string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lease.LockedFor(session)
}

// Owner returns the lease owner, or the empty string when free.
func (a *Agent) Owner() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lease.Owner()
}
