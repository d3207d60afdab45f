// Copyright 2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emu

import "time"

// Clock returns the current wall-clock time as a 32-bit IPMI timestamp
// (seconds since the Unix epoch, truncated). It is injected at SEL/SDR
// construction so that tests can drive "IPMI time" deterministically
// instead of depending on the host clock, per the design note that the
// wall clock must be fetched up front (before any copy) rather than lazily.
type Clock func() uint32

// WallClock is the production Clock: the real time of day.
func WallClock() uint32 {
	return uint32(time.Now().Unix())
}
