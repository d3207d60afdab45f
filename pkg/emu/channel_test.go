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

func TestChannelBootstrapDiscoversIdentityAndInstallsOEMHandler(t *testing.T) {
	e := NewEmulator(nil)
	_, err := e.AddMC(0x20, MCConfig{
		DeviceID:       0x09,
		DevSupport:     ipmi.DevSupportSensor,
		ManufacturerID: [3]byte{0xAA, 0xBB, 0xCC},
		ProductID:      [2]byte{0xDD, 0xEE},
	})
	require.NoError(t, err)
	require.NoError(t, e.SetBMCMC(0x20))

	installed := false
	e.OEMRegistry().Register([3]byte{0xAA, 0xBB, 0xCC}, [2]byte{0xDD, 0xEE},
		func(mc *MC, cmd byte, data []byte) ([]byte, byte, bool) {
			installed = true
			return nil, 0, true
		})

	ch := NewChannel(e, 0)
	assert.Equal(t, [3]byte{0xAA, 0xBB, 0xCC}, ch.manufacturerID)
	assert.Equal(t, [2]byte{0xDD, 0xEE}, ch.productID)

	bmc := e.BMC()
	require.NotNil(t, bmc.OEMHandler())
	_, _, _ = bmc.OEMHandler()(bmc, 0x50, nil)
	assert.True(t, installed)
}

func TestChannelBootstrapDoesNotSwallowClientGetDeviceID(t *testing.T) {
	e := NewEmulator(nil)
	_, err := e.AddMC(0x20, MCConfig{DeviceID: 0x09})
	require.NoError(t, err)
	require.NoError(t, e.SetBMCMC(0x20))

	ch := NewChannel(e, 0)

	var forwarded ipmi.Response
	called := false
	ch.SetReturnRsp(func(req ipmi.Request, resp ipmi.Response) {
		called = true
		forwarded = resp
	})

	resp := ch.SMISend(0, ipmi.Request{NetFn: ipmi.NetFnApp, Cmd: ipmi.CmdGetDeviceID})
	assert.True(t, called)
	assert.Equal(t, resp, forwarded)
}

func TestNonZeroChannelSkipsBootstrap(t *testing.T) {
	e := NewEmulator(nil)
	ch := NewChannel(e, 1)
	assert.Zero(t, ch.manufacturerID)
}
