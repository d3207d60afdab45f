// Copyright 2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emu

import (
	"fmt"

	"github.com/ipmisim/ipmisim/pkg/ipmi"
)

// ProtoError carries a wire-level completion code out of a store method. It
// is the only vocabulary the command engine uses for protocol-level
// failures — it is never logged (spec: "no error is logged by the core")
// and is translated into a one-byte response body by the dispatcher.
type ProtoError struct {
	CC ipmi.CompletionCode
}

func (e *ProtoError) Error() string {
	return fmt.Sprintf("emu: completion code %#02x", byte(e.CC))
}

func ccError(cc ipmi.CompletionCode) error {
	return &ProtoError{CC: cc}
}

// completionCodeOf extracts the wire completion code from err, defaulting
// to CCOK when err is nil. It panics (a programming error) if err is not a
// *ProtoError, since every command handler must only ever fail with one.
func completionCodeOf(err error) ipmi.CompletionCode {
	if err == nil {
		return ipmi.CCOK
	}
	pe, ok := err.(*ProtoError)
	if !ok {
		panic(fmt.Sprintf("emu: non-protocol error reached the wire boundary: %v", err))
	}
	return pe.CC
}
