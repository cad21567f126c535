// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package drivertest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/bureau-foundation/bench/lib/driver"
)

// errScripted is returned by fakes whose Fail* switch is set.
var errScripted = errors.New("drivertest: scripted failure")

// Power is a fake power controller. The zero value reports
// driver.PowerOff.
type Power struct {
	mu       sync.Mutex
	state    string
	FailOn   bool
	FailOff  bool
	OnCalls  int
	OffCalls int
	ProbeErr error
	Options  driver.Options
}

var _ driver.Power = (*Power)(nil)

func (p *Power) Configure(options driver.Options) error {
	p.Options = options
	return nil
}

func (p *Power) Probe() error { return p.ProbeErr }

func (p *Power) On() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.OnCalls++
	if p.FailOn {
		return errScripted
	}
	p.state = driver.PowerOn
	return nil
}

func (p *Power) Off() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.OffCalls++
	if p.FailOff {
		return errScripted
	}
	p.state = driver.PowerOff
	return nil
}

func (p *Power) Toggle() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == driver.PowerOn {
		p.state = driver.PowerOff
	} else {
		p.state = driver.PowerOn
	}
	return p.state, nil
}

func (p *Power) Status() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == "" {
		return driver.PowerOff, nil
	}
	return p.state, nil
}

// SetState forces the reported power state from a test.
func (p *Power) SetState(state string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state
}

// SDMux is a fake storage mux. Written bytes accumulate in an
// internal buffer readable via Written. The zero value starts
// attached to the host.
type SDMux struct {
	mu            sync.Mutex
	position      string
	opened        bool
	mounted       string
	written       bytes.Buffer
	files         map[string][]byte
	FailOpen      bool
	FailClose     bool
	FailWrite     bool
	FailMount     bool
	OpenCalls     int
	CloseCalls    int
	WriteCalls    int
	ToHostCalls   int
	ToTargetCalls int
	ProbeErr      error
}

var _ driver.SDMux = (*SDMux)(nil)

func (m *SDMux) Configure(options driver.Options) error { return nil }

func (m *SDMux) Probe() error { return m.ProbeErr }

func (m *SDMux) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OpenCalls++
	if m.FailOpen {
		return errScripted
	}
	m.opened = true
	m.written.Reset()
	return nil
}

func (m *SDMux) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalls++
	if m.FailClose {
		return errScripted
	}
	m.opened = false
	return nil
}

func (m *SDMux) Mount(partition string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailMount {
		return errScripted
	}
	m.mounted = partition
	return nil
}

func (m *SDMux) Write(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WriteCalls++
	if m.FailWrite {
		return errScripted
	}
	m.written.Write(data)
	return nil
}

func (m *SDMux) Update(destination string, offset int64, data []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrite {
		return 0, errScripted
	}
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	content := m.files[destination]
	end := int(offset) + len(data)
	if end > len(content) {
		grown := make([]byte, end)
		copy(grown, content)
		content = grown
	}
	copy(content[offset:], data)
	m.files[destination] = content
	return len(data), nil
}

func (m *SDMux) ToHost() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ToHostCalls++
	m.position = driver.SDOnHost
	return nil
}

func (m *SDMux) ToTarget() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ToTargetCalls++
	m.position = driver.SDOnTarget
	return nil
}

func (m *SDMux) Status() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.position == "" {
		return driver.SDOnHost, nil
	}
	return m.position, nil
}

// Written returns a copy of all bytes written through Write so far.
func (m *SDMux) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.written.Bytes()...)
}

// File returns the content written to the named destination through
// Update.
func (m *SDMux) File(destination string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.files[destination]...)
}

// SwapCalls returns the total number of ToHost and ToTarget driver
// invocations.
func (m *SDMux) SwapCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ToHostCalls + m.ToTargetCalls
}

// SetPosition forces the reported mux position from a test.
func (m *SDMux) SetPosition(position string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = position
}

// USBSwitch is a fake USB power switch. The zero value reports
// driver.PowerOff.
type USBSwitch struct {
	mu       sync.Mutex
	state    string
	OnCalls  int
	OffCalls int
	ProbeErr error
}

var _ driver.USBSwitch = (*USBSwitch)(nil)

func (s *USBSwitch) Configure(options driver.Options) error { return nil }

func (s *USBSwitch) Probe() error { return s.ProbeErr }

func (s *USBSwitch) On() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.OnCalls++
	s.state = driver.PowerOn
	return nil
}

func (s *USBSwitch) Off() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.OffCalls++
	s.state = driver.PowerOff
	return nil
}

func (s *USBSwitch) Toggle() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == driver.PowerOn {
		s.state = driver.PowerOff
	} else {
		s.state = driver.PowerOn
	}
	return s.state, nil
}

func (s *USBSwitch) Status() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == "" {
		return driver.PowerOff, nil
	}
	return s.state, nil
}

// State returns the current fake state.
func (s *USBSwitch) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == "" {
		return driver.PowerOff
	}
	return s.state
}

// Console is a fake console device. Output scripted with EmitOutput
// is delivered to Read; Write records everything sent to the target.
type Console struct {
	mu     sync.Mutex
	output chan []byte
	sent   bytes.Buffer
	closed bool
}

var _ driver.Console = (*Console)(nil)

// NewConsole returns a fake console ready for Open.
func NewConsole() *Console {
	return &Console{output: make(chan []byte, 64)}
}

func (c *Console) Configure(options driver.Options) error { return nil }

func (c *Console) Probe() error { return nil }

func (c *Console) Open() error { return nil }

func (c *Console) Read(buffer []byte) (int, error) {
	data, ok := <-c.output
	if !ok {
		return 0, io.EOF
	}
	if len(data) > len(buffer) {
		return 0, fmt.Errorf("drivertest: console read buffer too small (%d < %d)", len(buffer), len(data))
	}
	return copy(buffer, data), nil
}

func (c *Console) Write(data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent.Write(data)
}

func (c *Console) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.output)
	}
	return nil
}

// EmitOutput scripts console output that subsequent Read calls
// return.
func (c *Console) EmitOutput(data []byte) {
	c.output <- append([]byte(nil), data...)
}

// Sent returns a copy of everything written to the console input.
func (c *Console) Sent() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.sent.Bytes()...)
}
