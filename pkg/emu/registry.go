// Copyright 2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emu

import (
	"sync"

	"github.com/ipmisim/ipmisim/pkg/ipmi"
)

// MaxMCs is the size of the emulator's MC registry table.
const MaxMCs = 128

// Emulator owns a fixed-size table of managed controllers, indexed by
// ipmb>>1, and the identity of the default ("BMC") MC used when a request
// arrives without IPMB encapsulation.
type Emulator struct {
	mu    sync.Mutex
	mcs   [MaxMCs]*MC
	bmc   *MC
	clock Clock

	oemRegistry *OEMRegistry
}

// NewEmulator constructs an empty emulator. clock is injected into every MC
// created through AddMC so tests can drive IPMI time deterministically.
func NewEmulator(clock Clock) *Emulator {
	if clock == nil {
		clock = WallClock
	}
	return &Emulator{clock: clock, oemRegistry: NewOEMRegistry()}
}

// MCConfig describes the Get Device ID fields and capabilities a new MC is
// constructed with.
type MCConfig struct {
	DeviceID         byte
	DeviceSDRPresent bool
	DeviceRevision   byte // 4 bits
	FWMajor          byte
	FWMinor          byte
	DevSupport       byte
	ManufacturerID   [3]byte
	ProductID        [2]byte
	AuxFWRevision    [4]byte
	HasDeviceSDRs    bool
}

// AddMC constructs and registers a new MC at ipmb>>1, destroying any MC
// previously occupying that slot. ipmb must be even.
func (e *Emulator) AddMC(ipmb byte, cfg MCConfig) (*MC, error) {
	if ipmb&1 != 0 {
		return nil, &ipmi.ArgError{Field: "ipmb", Value: ipmb, Reason: "must be even"}
	}
	mc := newMC(e, ipmb, cfg)

	e.mu.Lock()
	defer e.mu.Unlock()
	slot := ipmb >> 1
	e.mcs[slot] = mc
	return mc, nil
}

// SetBMCMC designates the MC at ipmb as the default MC used when no IPMB
// encapsulation is present.
func (e *Emulator) SetBMCMC(ipmb byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	mc := e.mcs[ipmb>>1]
	if mc == nil {
		return &ipmi.ArgError{Field: "ipmb", Value: ipmb, Reason: "no MC registered at this address"}
	}
	e.bmc = mc
	return nil
}

// GetMCByAddr resolves an MC by its IPMB address, or returns nil if none is
// registered there. The low bit of ipmb is ignored (IPMB addresses are
// always even).
func (e *Emulator) GetMCByAddr(ipmb byte) *MC {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mcs[ipmb>>1]
}

// BMC returns the designated BMC MC, or nil if none has been set.
func (e *Emulator) BMC() *MC {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bmc
}

// OEMRegistry returns the emulator's per-instance OEM handler registry.
func (e *Emulator) OEMRegistry() *OEMRegistry {
	return e.oemRegistry
}
