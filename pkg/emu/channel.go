// Copyright 2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emu

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ipmisim/ipmisim/pkg/ipmi"
)

// responseHook inspects a request/response pair before it reaches the
// caller's ReturnRsp callback. Returning true swallows the response —
// the channel consumed it itself and it is not forwarded. Modeled on
// channel->oem.oem_handle_rsp in original_source/lanserv/serv.c.
type responseHook func(req ipmi.Request, resp ipmi.Response, selfOriginated bool) bool

// Channel is the external interface adapter spec.md §4.8 describes: the
// thin surface the surrounding session layer uses to push a request into
// the core and receive its response, plus the one-time OEM bootstrap.
// Unlike the core dispatcher, the channel logs — it is the layer the
// session-layer/OEM plumbing is allowed to observe.
type Channel struct {
	mu sync.Mutex

	num byte
	emu *Emulator

	hook      responseHook
	returnRsp func(req ipmi.Request, resp ipmi.Response)

	manufacturerID [3]byte
	productID      [2]byte
}

// NewChannel constructs a channel bound to e. Channel 0 gets the "who am
// I" bootstrap installed automatically, matching chan_init's special-casing
// of channel 0 in the original.
func NewChannel(e *Emulator, num byte) *Channel {
	c := &Channel{num: num, emu: e}
	if num == 0 {
		c.bootstrap()
	}
	return c
}

// AllocMsg and FreeMsg stand in for the original's explicit message-buffer
// lifecycle (chan->alloc/chan->free in serv.c); Go's GC makes them no-ops,
// kept only so SMISend's call shape matches ipmi_oem_send_msg/
// channel_smi_send.
func (c *Channel) AllocMsg(size int) []byte { return make([]byte, size) }
func (c *Channel) FreeMsg([]byte)           {}

// SetReturnRsp installs the session layer's response callback.
func (c *Channel) SetReturnRsp(f func(req ipmi.Request, resp ipmi.Response)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.returnRsp = f
}

// SMISend dispatches req through the core synchronously and returns the
// response, also delivering it to the installed ReturnRsp callback unless a
// response hook swallows it first.
func (c *Channel) SMISend(lun byte, req ipmi.Request) ipmi.Response {
	return c.send(lun, req, false)
}

func (c *Channel) send(lun byte, req ipmi.Request, selfOriginated bool) ipmi.Response {
	resp := c.emu.Dispatch(lun, req)

	c.mu.Lock()
	hook := c.hook
	rr := c.returnRsp
	c.mu.Unlock()

	if hook != nil && hook(req, resp, selfOriginated) {
		return resp
	}
	if rr != nil {
		rr(req, resp)
	}
	return resp
}

// bootstrap installs the get-device-id response hook and self-sends a Get
// Device ID request, per spec.md §4.8 / chan_init in serv.c.
func (c *Channel) bootstrap() {
	c.mu.Lock()
	if c.hook != nil {
		c.mu.Unlock()
		return
	}
	c.hook = c.lookForGetDeviceID
	c.mu.Unlock()

	log.Debug().Uint8("channel", c.num).Msg("installed get-device-id bootstrap hook")
	c.send(0, ipmi.Request{NetFn: ipmi.NetFnApp, Cmd: ipmi.CmdGetDeviceID}, true)
}

// lookForGetDeviceID is the response hook installed by bootstrap. It fires
// on the first Get Device ID response it sees (self-originated or not),
// extracts manufacturer/product id, looks up a vendor OEM handler, removes
// itself, and swallows only the self-originated bootstrap request's own
// response — a genuine client Get Device ID still reaches ReturnRsp.
func (c *Channel) lookForGetDeviceID(req ipmi.Request, resp ipmi.Response, selfOriginated bool) bool {
	if req.NetFn != ipmi.NetFnApp || req.Cmd != ipmi.CmdGetDeviceID {
		return false
	}
	if resp.CompletionCode != ipmi.CCOK || len(resp.Data) < 11 {
		return false
	}

	c.mu.Lock()
	c.hook = nil
	copy(c.manufacturerID[:], resp.Data[6:9])
	copy(c.productID[:], resp.Data[9:11])
	mfg, prod := c.manufacturerID, c.productID
	c.mu.Unlock()

	log.Debug().
		Hex("manufacturer_id", c.manufacturerID[:]).
		Hex("product_id", c.productID[:]).
		Msg("bootstrap discovered manufacturer/product id")

	if handler := c.emu.OEMRegistry().Lookup(mfg, prod); handler != nil {
		if bmc := c.emu.BMC(); bmc != nil {
			bmc.SetOEMHandler(handler)
			log.Info().Msg("installed vendor OEM handler from bootstrap")
		}
	}

	return selfOriginated
}
