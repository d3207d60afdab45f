// Copyright 2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ipmi

import "fmt"

// Kind classifies a host-side programming error. These never appear on the
// IPMI wire — they are returned directly to the caller of a host-side API
// such as AddMC or AddSensor.
type Kind int

const (
	// KindInvalidArgument indicates a caller passed an out-of-range or
	// malformed argument (odd IPMB address, LUN >= 4, and so on).
	KindInvalidArgument Kind = iota
	// KindOutOfMemory indicates a fixed-size table (MC registry, FRU
	// table, sensor table) is full.
	KindOutOfMemory
	// KindNotSupported indicates the operation requires a capability the
	// MC was not constructed with.
	KindNotSupported
)

// ArgError reports an invalid host-side API argument.
type ArgError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("ipmi: invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// Kind implements the classification interface used by callers that want to
// branch on error family without string matching.
func (e *ArgError) Kind() Kind { return KindInvalidArgument }

// CapacityError reports that a fixed-size table has no room left.
type CapacityError struct {
	Table string
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("ipmi: %s is full", e.Table)
}

func (e *CapacityError) Kind() Kind { return KindOutOfMemory }

// NotSupportedError reports a missing capability bit.
type NotSupportedError struct {
	Capability string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("ipmi: %s not supported", e.Capability)
}

func (e *NotSupportedError) Kind() Kind { return KindNotSupported }
