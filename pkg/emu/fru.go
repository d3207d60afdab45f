// Copyright 2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emu

import (
	"sync"

	"github.com/ipmisim/ipmisim/pkg/ipmi"
)

// MaxFRUDevices is the number of FRU inventory slots an MC can hold
// (device ids 0..254; 255 and above are rejected).
const MaxFRUDevices = 255

type fruArea struct {
	data []byte
}

// FRUStore holds up to MaxFRUDevices fixed-size inventory blobs.
type FRUStore struct {
	mu    sync.Mutex
	areas [MaxFRUDevices]*fruArea
}

// NewFRUStore constructs an empty FRU store.
func NewFRUStore() *FRUStore {
	return &FRUStore{}
}

// AddFRU installs (or replaces) the blob at deviceID, zero-filled to length
// and then overwritten with data.
func (f *FRUStore) AddFRU(deviceID int, length int, data []byte) error {
	if deviceID < 0 || deviceID >= MaxFRUDevices {
		return &ipmi.ArgError{Field: "device_id", Value: deviceID, Reason: "must be 0..254"}
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	buf := make([]byte, length)
	copy(buf, data)
	f.areas[deviceID] = &fruArea{data: buf}
	return nil
}

// GetAreaInfo returns the area's length and an access-type byte (always 0:
// byte access only).
func (f *FRUStore) GetAreaInfo(deviceID int) (length uint16, accessType byte, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	area := f.area(deviceID)
	if area == nil {
		return 0, 0, ccError(ipmi.CCInvalidDataField)
	}
	return uint16(len(area.data)), 0, nil
}

func (f *FRUStore) area(deviceID int) *fruArea {
	if deviceID < 0 || deviceID >= MaxFRUDevices {
		return nil
	}
	return f.areas[deviceID]
}

// ReadFRU reads up to count bytes starting at offset, clamped to the area's
// end.
func (f *FRUStore) ReadFRU(deviceID int, offset uint16, count byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	area := f.area(deviceID)
	if area == nil {
		return nil, ccError(ipmi.CCInvalidDataField)
	}
	if int(offset) > len(area.data) {
		return nil, ccError(ipmi.CCParameterOutOfRange)
	}
	end := int(offset) + int(count)
	if end > len(area.data) {
		end = len(area.data)
	}
	if end-int(offset) > 255 {
		return nil, ccError(ipmi.CCRequestedDataLengthExceeded)
	}
	out := make([]byte, end-int(offset))
	copy(out, area.data[offset:end])
	return out, nil
}

// WriteFRU writes data starting at offset, rejecting any write that would
// run past the area's end.
func (f *FRUStore) WriteFRU(deviceID int, offset uint16, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	area := f.area(deviceID)
	if area == nil {
		return ccError(ipmi.CCInvalidDataField)
	}
	if int(offset)+len(data) > len(area.data) {
		return ccError(ipmi.CCRequestedDataLengthExceeded)
	}
	copy(area.data[offset:], data)
	return nil
}
