// Copyright 2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ipmi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressEquality(t *testing.T) {
	a := NewIPMBAddress(0x20, 1, 0)
	b := NewIPMBAddress(0x20, 1, 0)
	c := NewIPMBAddress(0x22, 1, 0)
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))

	d := NewSystemInterfaceAddress(1, 0)
	assert.False(t, a.Equal(d))
}

func TestGetLUNUnknownVariant(t *testing.T) {
	var a Address
	assert.Equal(t, byte(0), a.GetLUN())
	assert.Equal(t, byte(0), a.GetSlaveAddr())
}

func TestSetLUNRejectsOutOfRange(t *testing.T) {
	a := NewIPMBAddress(0x20, 0, 0)
	require.NoError(t, a.SetLUN(3))
	assert.Equal(t, byte(3), a.GetLUN())

	err := a.SetLUN(4)
	require.Error(t, err)
	var argErr *ArgError
	require.ErrorAs(t, err, &argErr)
}

func TestGetSlaveAddrSystemInterface(t *testing.T) {
	a := NewSystemInterfaceAddress(0, 0)
	assert.Equal(t, byte(0), a.GetSlaveAddr())
}
