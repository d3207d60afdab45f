// Copyright 2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emu

import "sync"

// OEMHandler handles one OEM netfn's commands for an MC. It returns the
// response data and completion code, and whether it claimed the command at
// all (false lets the dispatcher fall through to Invalid Command).
type OEMHandler func(mc *MC, cmd byte, data []byte) (resp []byte, cc byte, handled bool)

type oemRegistration struct {
	manufacturerID [3]byte
	productID      [2]byte
	handler        OEMHandler
}

// OEMRegistry is a per-Emulator registry of vendor-specific OEM handlers
// keyed by (manufacturer id, product id); the first match wins. Modeled as
// a per-instance value rather than a process-wide singleton (spec.md §9
// design note), so tests can instantiate isolated emulators.
type OEMRegistry struct {
	mu            sync.Mutex
	registrations []oemRegistration
}

// NewOEMRegistry constructs an empty registry.
func NewOEMRegistry() *OEMRegistry {
	return &OEMRegistry{}
}

// Register installs a handler for (manufacturerID, productID). If a
// handler is already registered for that pair, Register is a no-op: the
// first registration wins.
func (r *OEMRegistry) Register(manufacturerID [3]byte, productID [2]byte, handler OEMHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reg := range r.registrations {
		if reg.manufacturerID == manufacturerID && reg.productID == productID {
			return
		}
	}
	r.registrations = append(r.registrations, oemRegistration{manufacturerID, productID, handler})
}

// Lookup returns the first-registered handler for (manufacturerID,
// productID), or nil.
func (r *OEMRegistry) Lookup(manufacturerID [3]byte, productID [2]byte) OEMHandler {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reg := range r.registrations {
		if reg.manufacturerID == manufacturerID && reg.productID == productID {
			return reg.handler
		}
	}
	return nil
}
