// Copyright 2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// ipmiemu is a demonstration harness for the in-process IPMI BMC emulator:
// it builds one emulator with a single BMC managed controller, enables its
// SEL, sets its SDR repository flags, seeds one FRU area and a threshold
// sensor, then drives a handful of requests through the dispatcher exactly
// as an external session layer would. It is not a network-facing BMC —
// LAN/RMCP+ session handling is out of scope.
//
// Synopsis:
//	ipmiemu [-v]
//
// Description:
//	-v prints debug-level channel/bootstrap logging in addition to the
//	   request/response trace.
package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ipmisim/ipmisim/pkg/emu"
	"github.com/ipmisim/ipmisim/pkg/ipmi"
)

var verbose = flag.Bool("v", false, "print debug-level channel logging")

func main() {
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	e := emu.NewEmulator(nil)
	bmc, err := e.AddMC(0x20, emu.MCConfig{
		DeviceID:         0x01,
		DeviceSDRPresent: true,
		DeviceRevision:   0x01,
		FWMajor:          0x01,
		FWMinor:          0x00,
		DevSupport:       ipmi.DevSupportSensor | ipmi.DevSupportSDRRepo | ipmi.DevSupportSEL | ipmi.DevSupportFRU,
		ManufacturerID:   [3]byte{0x34, 0x12, 0x00},
		ProductID:        [2]byte{0x01, 0x00},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("add BMC MC")
	}
	if err := e.SetBMCMC(0x20); err != nil {
		log.Fatal().Err(err).Msg("set BMC MC")
	}

	bmc.EnableSEL(64, emu.SELFlagReserve|emu.SELFlagAllocInfo|emu.SELFlagDelete)
	bmc.SetMainSDRFlags(emu.SDRFlagReserve | emu.SDRFlagAllocInfo | emu.SDRFlagDelete)
	bmc.SetEventReceiver(0x20, 0)

	if err := bmc.FRU.AddFRU(0, 64, []byte("ipmiemu demonstration FRU")); err != nil {
		log.Fatal().Err(err).Msg("seed FRU")
	}

	seedTempSensor(bmc)

	ch := emu.NewChannel(e, 0)
	ch.SetReturnRsp(func(req ipmi.Request, resp ipmi.Response) {
		log.Info().
			Uint8("netfn", req.NetFn).
			Uint8("cmd", req.Cmd).
			Uint8("cc", byte(resp.CompletionCode)).
			Int("resp_len", len(resp.Data)).
			Msg("response")
	})

	ch.SMISend(0, ipmi.Request{NetFn: ipmi.NetFnApp, Cmd: ipmi.CmdGetDeviceID})
	ch.SMISend(0, ipmi.Request{NetFn: ipmi.NetFnStorage, Cmd: ipmi.CmdGetSELInfo})
	ch.SMISend(0, ipmi.Request{NetFn: ipmi.NetFnStorage, Cmd: ipmi.CmdGetSDRRepoInfo})

	// Push the seeded sensor below its low-critical threshold; the
	// resulting assertion event lands in the BMC's own SEL, since the
	// event receiver points back at 0x20.
	s := bmc.Sensors.Get(0, 1)
	s.SetValue(15, true, bmc)

	resp := ch.SMISend(0, ipmi.Request{NetFn: ipmi.NetFnStorage, Cmd: ipmi.CmdGetSELInfo})
	log.Info().Int("sel_count", int(ipmi.Uint16LE(resp.Data[1:3]))).Msg("final SEL count")
}

func seedTempSensor(bmc *emu.MC) {
	s, err := bmc.AddSensor(0, 1, 0x01, 0x01)
	if err != nil {
		log.Fatal().Err(err).Msg("add sensor")
	}
	var supported [6]bool
	supported[emu.ThreshLowCritical] = true
	var values [6]byte
	values[emu.ThreshLowCritical] = 20
	s.SetThresholds(0, supported, values)
	s.SetHysteresis(0, 0, 3)

	var enabled [15]bool
	enabled[emu.ThreshLowCritical] = true
	s.SetEventSupport(true, true, 0, enabled, enabled, enabled, enabled)
}
