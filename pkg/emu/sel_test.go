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

func fixedClock(t uint32) Clock {
	return func() uint32 { return t }
}

func TestSELRoundTrip(t *testing.T) {
	sel := NewSEL(fixedClock(1000))
	sel.Enable(10, SELFlagReserve|SELFlagAllocInfo|SELFlagDelete)

	var event [13]byte
	for i := range event {
		event[i] = byte(i)
	}
	id, err := sel.AddEntry(0x02, event)
	require.NoError(t, err)
	assert.NotZero(t, id)

	info := sel.GetInfo()
	assert.EqualValues(t, 1, info.Count)
	assert.EqualValues(t, 9*16, info.FreeBytes)
	assert.Equal(t, byte(0x0B), info.Flags)

	nextID, data, err := sel.GetEntry(0, 0, 0, 16)
	require.NoError(t, err)
	assert.Equal(t, uint16(0xFFFF), nextID)
	require.Len(t, data, 16)
	assert.Equal(t, id, ipmi.Uint16LE(data[0:2]))
	assert.Equal(t, byte(0x02), data[2])
	assert.Equal(t, uint32(1000), ipmi.Uint32LE(data[3:7]))
	assert.Equal(t, event[4:13], data[7:16])
}

func TestSELOverflow(t *testing.T) {
	sel := NewSEL(fixedClock(1))
	sel.Enable(1, 0)

	var event [13]byte
	_, err := sel.AddEntry(0x02, event)
	require.NoError(t, err)

	_, err = sel.AddEntry(0x02, event)
	require.Error(t, err)
	assert.Equal(t, ipmi.CCInvalidDataLength, completionCodeOf(err))

	info := sel.GetInfo()
	assert.Equal(t, selFlagOverflow, info.Flags&selFlagOverflow)
	// GetInfo clears overflow as a side effect.
	info2 := sel.GetInfo()
	assert.Zero(t, info2.Flags&selFlagOverflow)
}

func TestSELReservationEnforcement(t *testing.T) {
	sel := NewSEL(fixedClock(1))
	sel.Enable(10, SELFlagReserve|SELFlagDelete)

	var event [13]byte
	id, err := sel.AddEntry(0x02, event)
	require.NoError(t, err)

	token, err := sel.Reserve()
	require.NoError(t, err)
	assert.NotZero(t, token)

	_, err = sel.DeleteEntry(token+1, id)
	require.Error(t, err)
	assert.Equal(t, ipmi.CCInvalidReservation, completionCodeOf(err))

	_, err = sel.DeleteEntry(0, id)
	require.NoError(t, err)
}

func TestSELReserveIncreasesAndSkipsZero(t *testing.T) {
	sel := NewSEL(fixedClock(1))
	sel.Enable(10, SELFlagReserve)

	t1, err := sel.Reserve()
	require.NoError(t, err)
	t2, err := sel.Reserve()
	require.NoError(t, err)
	assert.Greater(t, t2, t1)
	assert.NotZero(t, t1)
	assert.NotZero(t, t2)
}

func TestSELGetEntryBoundaries(t *testing.T) {
	sel := NewSEL(fixedClock(1))
	sel.Enable(10, 0)

	var e1, e2 [13]byte
	id1, _ := sel.AddEntry(0x02, e1)
	id2, _ := sel.AddEntry(0x02, e2)

	_, data, err := sel.GetEntry(0, 0, 0, 16)
	require.NoError(t, err)
	assert.Equal(t, id1, ipmi.Uint16LE(data[0:2]))

	_, data, err = sel.GetEntry(0, 0xFFFF, 0, 16)
	require.NoError(t, err)
	assert.Equal(t, id2, ipmi.Uint16LE(data[0:2]))

	_, _, err = sel.GetEntry(0, 0xBEEF, 0, 16)
	require.Error(t, err)
	assert.Equal(t, ipmi.CCNotPresent, completionCodeOf(err))
}

func TestSELOEMRecordPreservesAllBytes(t *testing.T) {
	sel := NewSEL(fixedClock(500))
	sel.Enable(10, 0)

	var event [13]byte
	for i := range event {
		event[i] = byte(0xA0 + i)
	}
	id, err := sel.AddEntry(0xE0, event)
	require.NoError(t, err)

	_, data, err := sel.GetEntry(0, id, 0, 16)
	require.NoError(t, err)
	assert.Equal(t, event[:], data[3:16])
}

func TestSELClear(t *testing.T) {
	sel := NewSEL(fixedClock(1))
	sel.Enable(10, SELFlagDelete)

	var event [13]byte
	sel.AddEntry(0x02, event)

	progress, err := sel.Clear(0, [3]byte{'C', 'L', 'R'}, 0xAA)
	require.NoError(t, err)
	assert.Equal(t, byte(1), progress)
	assert.EqualValues(t, 1, sel.GetInfo().Count)

	progress, err = sel.Clear(0, [3]byte{'C', 'L', 'R'}, 0x00)
	require.NoError(t, err)
	assert.Equal(t, byte(1), progress)
	assert.EqualValues(t, 0, sel.GetInfo().Count)
}

func TestSELSetTime(t *testing.T) {
	sel := NewSEL(fixedClock(1000))
	sel.Enable(1, 0)
	sel.SetTime(5000)
	assert.Equal(t, uint32(5000), sel.GetTime())
}
