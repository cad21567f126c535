// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package gpio provides power and USB switch drivers backed by a
// sysfs GPIO line. Registered as the "gpio" variant for both
// subsystems.
package gpio

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bureau-foundation/bench/lib/driver"
)

// defaultSysfsRoot is the kernel's GPIO sysfs mount point.
const defaultSysfsRoot = "/sys/class/gpio"

func init() {
	driver.RegisterPower("gpio", func() driver.Power { return &Power{} })
	driver.RegisterUSBSwitch("gpio", func() driver.USBSwitch { return &USBSwitch{} })
}

// line is one exported GPIO output line.
type line struct {
	pin       int
	activeLow bool
	root      string
}

func (l *line) configure(options driver.Options) error {
	pinText, ok := options["pin"]
	if !ok {
		return fmt.Errorf("gpio: missing required option %q", "pin")
	}
	pin, err := strconv.Atoi(pinText)
	if err != nil {
		return fmt.Errorf("gpio: invalid pin %q: %w", pinText, err)
	}
	l.pin = pin
	l.activeLow = options["active-low"] == "true"
	l.root = defaultSysfsRoot
	if root, ok := options["sysfs"]; ok {
		l.root = root
	}
	return nil
}

func (l *line) pinDir() string {
	return filepath.Join(l.root, fmt.Sprintf("gpio%d", l.pin))
}

// probe exports the line if needed and sets it to output.
func (l *line) probe() error {
	if _, err := os.Stat(l.pinDir()); os.IsNotExist(err) {
		export := filepath.Join(l.root, "export")
		if err := os.WriteFile(export, []byte(strconv.Itoa(l.pin)), 0o200); err != nil {
			return fmt.Errorf("gpio: exporting pin %d: %w", l.pin, err)
		}
	}
	direction := filepath.Join(l.pinDir(), "direction")
	if err := os.WriteFile(direction, []byte("out"), 0o644); err != nil {
		return fmt.Errorf("gpio: setting pin %d direction: %w", l.pin, err)
	}
	return nil
}

func (l *line) set(on bool) error {
	value := "0"
	if on != l.activeLow {
		value = "1"
	}
	path := filepath.Join(l.pinDir(), "value")
	if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
		return fmt.Errorf("gpio: writing pin %d value: %w", l.pin, err)
	}
	return nil
}

func (l *line) get() (bool, error) {
	path := filepath.Join(l.pinDir(), "value")
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("gpio: reading pin %d value: %w", l.pin, err)
	}
	raised := strings.TrimSpace(string(data)) == "1"
	return raised != l.activeLow, nil
}

func (l *line) toggle() (bool, error) {
	on, err := l.get()
	if err != nil {
		return false, err
	}
	if err := l.set(!on); err != nil {
		return false, err
	}
	return !on, nil
}

// Power drives the target's power relay through a GPIO line.
type Power struct {
	line line
}

var _ driver.Power = (*Power)(nil)

func (p *Power) Configure(options driver.Options) error { return p.line.configure(options) }
func (p *Power) Probe() error                           { return p.line.probe() }
func (p *Power) On() error                              { return p.line.set(true) }
func (p *Power) Off() error                             { return p.line.set(false) }

func (p *Power) Toggle() (string, error) {
	on, err := p.line.toggle()
	if err != nil {
		return driver.PowerUnknown, err
	}
	return powerState(on), nil
}

func (p *Power) Status() (string, error) {
	on, err := p.line.get()
	if err != nil {
		return driver.PowerUnknown, err
	}
	return powerState(on), nil
}

func powerState(on bool) string {
	if on {
		return driver.PowerOn
	}
	return driver.PowerOff
}

// USBSwitch drives a USB port's power through a GPIO line.
type USBSwitch struct {
	line line
}

var _ driver.USBSwitch = (*USBSwitch)(nil)

func (s *USBSwitch) Configure(options driver.Options) error { return s.line.configure(options) }
func (s *USBSwitch) Probe() error                           { return s.line.probe() }
func (s *USBSwitch) On() error                              { return s.line.set(true) }
func (s *USBSwitch) Off() error                             { return s.line.set(false) }

func (s *USBSwitch) Toggle() (string, error) {
	on, err := s.line.toggle()
	if err != nil {
		return driver.PowerUnknown, err
	}
	return powerState(on), nil
}

func (s *USBSwitch) Status() (string, error) {
	on, err := s.line.get()
	if err != nil {
		return driver.PowerUnknown, err
	}
	return powerState(on), nil
}
