// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package driver

import (
	"fmt"
	"sort"
	"sync"
)

// The registries map a variant name (the "variant" key of a config
// section) to a constructor. Driver packages register in init();
// registration after that point is a programming error.

var (
	registryMu sync.Mutex
	powers     = map[string]func() Power{}
	muxes      = map[string]func() SDMux{}
	switches   = map[string]func() USBSwitch{}
	consoles   = map[string]func() Console{}
)

// RegisterPower registers a power controller variant. Panics on a
// duplicate name.
func RegisterPower(variant string, constructor func() Power) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := powers[variant]; exists {
		panic(fmt.Sprintf("driver: duplicate power variant %q", variant))
	}
	powers[variant] = constructor
}

// RegisterSDMux registers a storage mux variant. Panics on a
// duplicate name.
func RegisterSDMux(variant string, constructor func() SDMux) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := muxes[variant]; exists {
		panic(fmt.Sprintf("driver: duplicate sdmux variant %q", variant))
	}
	muxes[variant] = constructor
}

// RegisterUSBSwitch registers a USB switch variant. Panics on a
// duplicate name.
func RegisterUSBSwitch(variant string, constructor func() USBSwitch) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := switches[variant]; exists {
		panic(fmt.Sprintf("driver: duplicate usb variant %q", variant))
	}
	switches[variant] = constructor
}

// RegisterConsole registers a console variant. Panics on a duplicate
// name.
func RegisterConsole(variant string, constructor func() Console) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := consoles[variant]; exists {
		panic(fmt.Sprintf("driver: duplicate console variant %q", variant))
	}
	consoles[variant] = constructor
}

// NewPower constructs and configures the named power variant.
func NewPower(variant string, options Options) (Power, error) {
	registryMu.Lock()
	constructor, exists := powers[variant]
	registryMu.Unlock()
	if !exists {
		return nil, fmt.Errorf("unknown power variant %q (have %v)", variant, registeredNames(powers))
	}
	instance := constructor()
	if err := instance.Configure(options); err != nil {
		return nil, fmt.Errorf("configuring power variant %q: %w", variant, err)
	}
	return instance, nil
}

// NewSDMux constructs and configures the named sdmux variant.
func NewSDMux(variant string, options Options) (SDMux, error) {
	registryMu.Lock()
	constructor, exists := muxes[variant]
	registryMu.Unlock()
	if !exists {
		return nil, fmt.Errorf("unknown sdmux variant %q (have %v)", variant, registeredNames(muxes))
	}
	instance := constructor()
	if err := instance.Configure(options); err != nil {
		return nil, fmt.Errorf("configuring sdmux variant %q: %w", variant, err)
	}
	return instance, nil
}

// NewUSBSwitch constructs and configures the named USB switch variant.
func NewUSBSwitch(variant string, options Options) (USBSwitch, error) {
	registryMu.Lock()
	constructor, exists := switches[variant]
	registryMu.Unlock()
	if !exists {
		return nil, fmt.Errorf("unknown usb variant %q (have %v)", variant, registeredNames(switches))
	}
	instance := constructor()
	if err := instance.Configure(options); err != nil {
		return nil, fmt.Errorf("configuring usb variant %q: %w", variant, err)
	}
	return instance, nil
}

// NewConsole constructs and configures the named console variant.
func NewConsole(variant string, options Options) (Console, error) {
	registryMu.Lock()
	constructor, exists := consoles[variant]
	registryMu.Unlock()
	if !exists {
		return nil, fmt.Errorf("unknown console variant %q (have %v)", variant, registeredNames(consoles))
	}
	instance := constructor()
	if err := instance.Configure(options); err != nil {
		return nil, fmt.Errorf("configuring console variant %q: %w", variant, err)
	}
	return instance, nil
}

// registeredNames returns the sorted variant names of a registry map
// for error messages. Caller must hold registryMu.
func registeredNames[T any](registry map[string]func() T) []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
