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

func TestSDRAddAndGetRoundTrip(t *testing.T) {
	repo := NewSDRRepo(fixedClock(1), SDRFlagReserve|SDRFlagDelete)

	body := []byte{0x01, 0x02, 0x03, 0x04}
	id, err := repo.AddSDR(body)
	require.NoError(t, err)
	assert.NotZero(t, id)

	_, data, err := repo.GetSDR(0, id, 0, 255)
	require.NoError(t, err)
	assert.Equal(t, id, ipmi.Uint16LE(data[0:2]))
	assert.Equal(t, body, data[2:])
}

func TestSDRReserveInvalidatesPartialAdd(t *testing.T) {
	repo := NewSDRRepo(fixedClock(1), SDRFlagReserve|SDRFlagPartialAdd)

	_, committed, err := repo.PartialAddSDR(0, 0, 20, false, make([]byte, 8))
	require.NoError(t, err)
	assert.False(t, committed)

	_, err = repo.Reserve()
	require.NoError(t, err)

	_, _, err = repo.PartialAddSDR(0, 8, 20, true, make([]byte, 12))
	require.Error(t, err)
	assert.Equal(t, ipmi.CCInvalidDataField, completionCodeOf(err))
}

func TestSDRPartialAddFullCycle(t *testing.T) {
	repo := NewSDRRepo(fixedClock(1), SDRFlagPartialAdd)

	chunk1 := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	id, committed, err := repo.PartialAddSDR(0, 0, 20, false, chunk1)
	require.NoError(t, err)
	assert.False(t, committed)
	assert.Zero(t, id)

	chunk2 := make([]byte, 12)
	for i := range chunk2 {
		chunk2[i] = byte(100 + i)
	}
	id, committed, err = repo.PartialAddSDR(0, 8, 20, true, chunk2)
	require.NoError(t, err)
	assert.True(t, committed)
	assert.NotZero(t, id)

	_, data, err := repo.GetSDR(0, id, 0, 255)
	require.NoError(t, err)
	assert.Equal(t, chunk1, data[2:10])
	assert.Equal(t, chunk2, data[10:22])
}

func TestSDRPartialAddOverrun(t *testing.T) {
	repo := NewSDRRepo(fixedClock(1), SDRFlagPartialAdd)

	_, _, err := repo.PartialAddSDR(0, 0, 4, false, make([]byte, 4))
	require.NoError(t, err)

	_, _, err = repo.PartialAddSDR(0, 4, 4, true, make([]byte, 4))
	require.Error(t, err)
	assert.Equal(t, ipmi.CCInvalidDataLength, completionCodeOf(err))
}

func TestSDRModalGating(t *testing.T) {
	nonModalOnly := ModalNonModalOnly << sdrModalShift
	repo := NewSDRRepo(fixedClock(1), nonModalOnly)

	_, err := repo.AddSDR([]byte{1})
	require.Error(t, err)
	assert.Equal(t, ipmi.CCNotSupportedInPresentState, completionCodeOf(err))

	err = repo.EnterUpdateMode()
	require.Error(t, err)
	assert.Equal(t, ipmi.CCNotSupportedInPresentState, completionCodeOf(err))
}

func TestSDRModalOnlyAddInUpdateMode(t *testing.T) {
	modalOnly := ModalOnly << sdrModalShift
	repo := NewSDRRepo(fixedClock(1), modalOnly)

	require.NoError(t, repo.EnterUpdateMode())
	_, err := repo.AddSDR([]byte{1})
	require.NoError(t, err)
	require.NoError(t, repo.ExitUpdateMode())
}

func TestSDRClearReportOnlyDoesNotModify(t *testing.T) {
	repo := NewSDRRepo(fixedClock(1), 0)
	repo.AddSDR([]byte{1, 2})

	_, err := repo.Clear(0, [3]byte{'C', 'L', 'R'}, 0xAA)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.Count())

	_, err = repo.Clear(0, [3]byte{'C', 'L', 'R'}, 0x00)
	require.NoError(t, err)
	assert.Equal(t, 0, repo.Count())
}

func TestSDRDeleteRequiresFlag(t *testing.T) {
	repo := NewSDRRepo(fixedClock(1), 0)
	id, _ := repo.AddSDR([]byte{1})

	_, err := repo.DeleteSDR(0, id)
	require.Error(t, err)
	assert.Equal(t, ipmi.CCInvalidCommand, completionCodeOf(err))
}
