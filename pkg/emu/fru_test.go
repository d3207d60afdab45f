// Copyright 2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ipmisim/ipmisim/pkg/ipmi"
)

func TestFRUWriteReadRoundTrip(t *testing.T) {
	f := NewFRUStore()
	require.NoError(t, f.AddFRU(0, 32, nil))

	data := []byte{1, 2, 3, 4, 5}
	require.NoError(t, f.WriteFRU(0, 10, data))

	got, err := f.ReadFRU(0, 10, 5)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFRUReadClampsAtEnd(t *testing.T) {
	f := NewFRUStore()
	require.NoError(t, f.AddFRU(0, 8, []byte{1, 2, 3, 4, 5, 6, 7, 8}))

	got, err := f.ReadFRU(0, 6, 10)
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 8}, got)
}

func TestFRUWriteBeyondEndRejected(t *testing.T) {
	f := NewFRUStore()
	require.NoError(t, f.AddFRU(0, 4, nil))

	err := f.WriteFRU(0, 2, []byte{1, 2, 3})
	require.Error(t, err)
	assert.Equal(t, ipmi.CCRequestedDataLengthExceeded, completionCodeOf(err))
}

func TestFRUGetAreaInfoMissingDevice(t *testing.T) {
	f := NewFRUStore()
	_, _, err := f.GetAreaInfo(3)
	require.Error(t, err)
	assert.Equal(t, ipmi.CCInvalidDataField, completionCodeOf(err))
}

func TestFRUAddRejectsOutOfRangeDeviceID(t *testing.T) {
	f := NewFRUStore()
	err := f.AddFRU(255, 4, nil)
	require.Error(t, err)
}
