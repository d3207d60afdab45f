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

func newBootstrappedEmulator(t *testing.T) (*Emulator, *MC) {
	e := NewEmulator(fixedClock(1))
	mc, err := e.AddMC(0x20, MCConfig{
		DeviceID:         0x01,
		DeviceSDRPresent: true,
		DeviceRevision:   0x01,
		FWMajor:          0x02,
		FWMinor:          0x10,
		DevSupport:       0xBF,
		ManufacturerID:   [3]byte{0x11, 0x22, 0x33},
		ProductID:        [2]byte{0x44, 0x55},
	})
	require.NoError(t, err)
	require.NoError(t, e.SetBMCMC(0x20))
	return e, mc
}

// TestBootstrapGetDeviceID mirrors spec.md's concrete scenario 1.
func TestBootstrapGetDeviceID(t *testing.T) {
	e, _ := newBootstrappedEmulator(t)

	resp := e.Dispatch(0, ipmi.Request{NetFn: ipmi.NetFnApp, Cmd: ipmi.CmdGetDeviceID})
	require.Equal(t, ipmi.CCOK, resp.CompletionCode)
	require.Len(t, resp.Data, 11)
	assert.Equal(t, []byte{
		0x01,       // device id
		0x80 | 0x01, // has_sdrs<<7 | rev
		0x02,       // major & 0x7F
		0x10,       // minor
		0x51,       // ipmi version
		0xBF,       // device support
		0x11, 0x22, 0x33, // manufacturer
		0x44, 0x55, // product
	}, resp.Data)
}

func TestDispatchMissingBMCReturns0xFF(t *testing.T) {
	e := NewEmulator(nil)
	resp := e.Dispatch(0, ipmi.Request{NetFn: ipmi.NetFnApp, Cmd: ipmi.CmdGetDeviceID})
	assert.EqualValues(t, 0xFF, resp.CompletionCode)
}

func TestDispatchSELRoundTrip(t *testing.T) {
	e, mc := newBootstrappedEmulator(t)
	mc.EnableSEL(10, 0x0B)

	addData := make([]byte, 16)
	addData[2] = 0x02 // record type
	for i := 0; i < 13; i++ {
		addData[3+i] = byte(i)
	}
	resp := e.Dispatch(0, ipmi.Request{NetFn: ipmi.NetFnStorage, Cmd: ipmi.CmdAddSELEntry, Data: addData})
	require.Equal(t, ipmi.CCOK, resp.CompletionCode)
	id := ipmi.Uint16LE(resp.Data)
	assert.NotZero(t, id)

	resp = e.Dispatch(0, ipmi.Request{NetFn: ipmi.NetFnStorage, Cmd: ipmi.CmdGetSELInfo})
	require.Equal(t, ipmi.CCOK, resp.CompletionCode)
	assert.EqualValues(t, 1, ipmi.Uint16LE(resp.Data[1:3]))
	assert.Equal(t, byte(0x0B), resp.Data[13])
}

func TestDispatchInvalidCommandForUnroutedNetFn(t *testing.T) {
	e, _ := newBootstrappedEmulator(t)
	resp := e.Dispatch(0, ipmi.Request{NetFn: 0x3F, Cmd: 0x01})
	assert.Equal(t, ipmi.CCInvalidCommand, resp.CompletionCode)
}

func TestDispatchMissingCapabilityReturnsInvalidCommand(t *testing.T) {
	e := NewEmulator(nil)
	_, err := e.AddMC(0x20, MCConfig{}) // no capabilities set
	require.NoError(t, err)
	require.NoError(t, e.SetBMCMC(0x20))

	resp := e.Dispatch(0, ipmi.Request{NetFn: ipmi.NetFnStorage, Cmd: ipmi.CmdGetSELInfo})
	assert.Equal(t, ipmi.CCInvalidCommand, resp.CompletionCode)
}

// TestIPMBForwarding mirrors spec.md's concrete scenario 5: a Send Message
// encapsulating a Get Device ID addressed to a second MC.
func TestIPMBForwarding(t *testing.T) {
	e, _ := newBootstrappedEmulator(t)
	_, err := e.AddMC(0x22, MCConfig{
		DeviceID:   0x07,
		DevSupport: 0xBF,
	})
	require.NoError(t, err)

	const (
		targetSlave = 0x22
		rqSlave     = 0x20
		rqSeq       = 5
		rqLUN       = 0
	)
	netfnLUN := (ipmi.NetFnApp << 2) | 0
	checksum1 := ipmi.Checksum(0, []byte{targetSlave, netfnLUN})
	rqSeqLUN := byte((rqSeq << 2) | rqLUN)

	inner := []byte{targetSlave, netfnLUN, checksum1, rqSlave, rqSeqLUN, ipmi.CmdGetDeviceID}
	checksum2 := ipmi.Checksum(0, inner)
	ipmbFrame := append(append([]byte{}, inner...), checksum2)

	req := ipmi.Request{
		NetFn: ipmi.NetFnApp,
		Cmd:   ipmi.CmdSendMessage,
		Data:  append([]byte{0x00}, ipmbFrame...),
	}

	resp := e.Dispatch(0, req)
	require.Equal(t, ipmi.CCOK, resp.CompletionCode)
	require.GreaterOrEqual(t, len(resp.Data), 7)

	assert.Equal(t, byte(0), resp.Data[0])
	assert.Equal(t, byte(0x20), resp.Data[1]) // bmc address
	assert.Equal(t, ipmi.Checksum(0, resp.Data[1:3]), resp.Data[3])
	assert.Equal(t, byte(targetSlave), resp.Data[4])
	assert.Equal(t, byte(ipmi.CmdGetDeviceID), resp.Data[6])

	// Final byte is the whole-frame checksum.
	last := resp.Data[len(resp.Data)-1]
	assert.Equal(t, ipmi.Checksum(0, resp.Data[:len(resp.Data)-1]), last)

	// The embedded inner response starts with CC=0 at offset 7.
	assert.Equal(t, byte(0x00), resp.Data[7])
	assert.Equal(t, byte(0x07), resp.Data[8]) // device id from MC 0x22
}

func TestIPMBForwardingMissingTargetReturnsNAK(t *testing.T) {
	e, _ := newBootstrappedEmulator(t)

	inner := []byte{0x40, ipmi.NetFnApp << 2, 0, 0x20, 0, ipmi.CmdGetDeviceID}
	checksum2 := ipmi.Checksum(0, inner)
	req := ipmi.Request{
		NetFn: ipmi.NetFnApp,
		Cmd:   ipmi.CmdSendMessage,
		Data:  append(append([]byte{0x00}, inner...), checksum2),
	}

	resp := e.Dispatch(0, req)
	assert.Equal(t, ipmi.CCNAKOnWrite, resp.CompletionCode)
}

func TestPartialAddSDRViaDispatch(t *testing.T) {
	e, mc := newBootstrappedEmulator(t)
	mc.SetMainSDRFlags(SDRFlagPartialAdd)

	first := make([]byte, 7+4)
	ipmi.PutUint16LE(first[0:2], 0)
	ipmi.PutUint16LE(first[4:6], 0)
	first[6] = 8 // declared length, in-progress (bit 7 clear)
	copy(first[7:], []byte{1, 2, 3, 4})

	resp := e.Dispatch(0, ipmi.Request{NetFn: ipmi.NetFnStorage, Cmd: ipmi.CmdPartialAddSDR, Data: first})
	require.Equal(t, ipmi.CCOK, resp.CompletionCode)
	assert.Zero(t, resp.Data[2]) // not yet committed

	second := make([]byte, 7+4)
	ipmi.PutUint16LE(second[4:6], 4)
	second[6] = 0x80 | 8 // last record
	copy(second[7:], []byte{5, 6, 7, 8})

	resp = e.Dispatch(0, ipmi.Request{NetFn: ipmi.NetFnStorage, Cmd: ipmi.CmdPartialAddSDR, Data: second})
	require.Equal(t, ipmi.CCOK, resp.CompletionCode)
	assert.Equal(t, byte(1), resp.Data[2])
}
