// Copyright 2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ipmi

// AddrKind tags which variant an Address holds.
type AddrKind int

const (
	// AddrUnknown is the zero value; get_lun/get_slave_addr return safe
	// defaults for it rather than panicking.
	AddrUnknown AddrKind = iota
	// AddrIPMB addresses a managed controller on the IPMB bus.
	AddrIPMB
	// AddrSystemInterface addresses the system interface (no slave
	// address).
	AddrSystemInterface
)

// Address is a tagged union of the two address variants the dispatcher
// deals with: an IPMB slave address, or the system interface. Equality
// between two Address values requires matching kind, channel, and
// variant-specific fields; this is satisfied by plain struct equality since
// every field participates in the comparison.
type Address struct {
	Kind       AddrKind
	Length     byte
	SlaveAddr  byte // AddrIPMB only
	LUN        byte
	Channel    byte
}

// NewIPMBAddress builds an IPMB address.
func NewIPMBAddress(slaveAddr, lun, channel byte) Address {
	return Address{Kind: AddrIPMB, Length: 3, SlaveAddr: slaveAddr, LUN: lun, Channel: channel}
}

// NewSystemInterfaceAddress builds a system-interface address.
func NewSystemInterfaceAddress(lun, channel byte) Address {
	return Address{Kind: AddrSystemInterface, Length: 2, LUN: lun, Channel: channel}
}

// GetLUN returns the address's LUN, or 0 for an unrecognized variant.
func (a Address) GetLUN() byte {
	switch a.Kind {
	case AddrIPMB, AddrSystemInterface:
		return a.LUN
	default:
		return 0
	}
}

// SetLUN sets the address's LUN. LUN values of 4 or more are rejected with
// an *ArgError (KindInvalidArgument) on both address variants.
func (a *Address) SetLUN(lun byte) error {
	if lun >= 4 {
		return &ArgError{Field: "lun", Value: int(lun), Reason: "must be < 4"}
	}
	a.LUN = lun
	return nil
}

// GetSlaveAddr returns the IPMB slave address, or 0 for a variant that has
// none.
func (a Address) GetSlaveAddr() byte {
	if a.Kind == AddrIPMB {
		return a.SlaveAddr
	}
	return 0
}

// Equal reports whether two addresses are structurally identical: same
// length, same kind, same channel, and matching variant-specific fields.
func (a Address) Equal(b Address) bool {
	return a == b
}
