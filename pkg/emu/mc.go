// Copyright 2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emu

import (
	"sync"

	"github.com/ipmisim/ipmisim/pkg/ipmi"
)

// MC is one managed controller: an addressable IPMI endpoint with its own
// SEL, SDR repositories, FRU inventory, and sensor table.
type MC struct {
	mu sync.Mutex

	emu  *Emulator
	ipmb byte

	MCConfig

	eventReceiverAddr byte
	eventReceiverLUN  byte

	SEL       *SEL
	MainSDR   *SDRRepo
	DeviceSDR [maxLUNs]*SDRRepo

	FRU     *FRUStore
	Sensors *SensorTable

	lunHasSensors              [maxLUNs]bool
	numSensorsPerLUN           [maxLUNs]int
	dynamicSensorPopulation    bool
	sensorPopulationChangeTime uint32

	power byte

	oemHandler OEMHandler
}

func newMC(e *Emulator, ipmb byte, cfg MCConfig) *MC {
	return &MC{
		emu:       e,
		ipmb:      ipmb,
		MCConfig:  cfg,
		SEL:       NewSEL(e.clock),
		MainSDR:   NewSDRRepo(e.clock, 0),
		FRU:       NewFRUStore(),
		Sensors:   NewSensorTable(),
	}
}

// IPMBAddr returns the MC's own IPMB address.
func (mc *MC) IPMBAddr() byte { return mc.ipmb }

// HasCapability reports whether the given device_support bit is set.
func (mc *MC) HasCapability(bit byte) bool {
	return mc.DevSupport&bit != 0
}

// EnableSEL is the host-side SEL bootstrap call: mc_enable_sel.
func (mc *MC) EnableSEL(maxCount int, flags byte) {
	mc.SEL.Enable(maxCount, flags)
}

// SetMainSDRFlags replaces the main SDR repository with a new, empty one
// using the given flags (modal bits, delete/partial-add/reserve/alloc-info
// support); any records already in the old repository are discarded.
// Exposed for host-side setup; the repository itself is always present.
func (mc *MC) SetMainSDRFlags(flags byte) {
	mc.MainSDR = NewSDRRepo(mc.emu.clock, flags)
}

// EnableDeviceSDRs turns on the four per-LUN device SDR repositories.
func (mc *MC) EnableDeviceSDRs(flags byte) {
	mc.HasDeviceSDRs = true
	for i := range mc.DeviceSDR {
		mc.DeviceSDR[i] = NewSDRRepo(mc.emu.clock, flags)
	}
}

// SetDynamicSensorPopulation toggles the capability ReserveDeviceSDR checks
// in addition to HasDeviceSDRs.
func (mc *MC) SetDynamicSensorPopulation(v bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.dynamicSensorPopulation = v
}

// AddSensor is the host-side mc_add_sensor call.
func (mc *MC) AddSensor(lun, num, sensorType, eventReadingCode byte) (*Sensor, error) {
	return mc.Sensors.Add(lun, num, sensorType, eventReadingCode)
}

// AddDeviceSDR adds a complete device SDR to the repository for lun, and
// applies the MC-level side effects spec.md §4.4 describes: marking
// lun_has_sensors, bumping the per-LUN sensor count, and stamping the
// sensor-population change time.
func (mc *MC) AddDeviceSDR(lun byte, body []byte) (uint16, error) {
	if int(lun) >= maxLUNs || mc.DeviceSDR[lun] == nil {
		return 0, ccError(ipmi.CCInvalidCommand)
	}
	id, err := mc.DeviceSDR[lun].AddSDR(body)
	if err != nil {
		return 0, err
	}
	mc.mu.Lock()
	mc.lunHasSensors[lun] = true
	mc.numSensorsPerLUN[lun]++
	mc.sensorPopulationChangeTime = mc.emu.clock()
	mc.mu.Unlock()
	return id, nil
}

// ReserveDeviceSDR requires both HasDeviceSDRs and dynamic sensor
// population, per spec.md §4.4.
func (mc *MC) ReserveDeviceSDR(lun byte) (uint16, error) {
	if !mc.HasDeviceSDRs || !mc.dynamicSensorPopulation {
		return 0, ccError(ipmi.CCInvalidCommand)
	}
	if int(lun) >= maxLUNs || mc.DeviceSDR[lun] == nil {
		return 0, ccError(ipmi.CCInvalidCommand)
	}
	return mc.DeviceSDR[lun].Reserve()
}

// SetEventReceiver sets the MC/LUN events from this MC's sensors are
// forwarded to.
func (mc *MC) SetEventReceiver(addr, lun byte) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.eventReceiverAddr = addr
	mc.eventReceiverLUN = lun
}

// GetEventReceiver returns the currently configured receiver.
func (mc *MC) GetEventReceiver() (byte, byte) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.eventReceiverAddr, mc.eventReceiverLUN
}

// emitSensorEvent implements the eventSink interface consumed by Sensor:
// it resolves the event receiver MC by IPMB address at event time (never
// via a cached pointer) and appends a standard-type SEL record.
func (mc *MC) emitSensorEvent(s *Sensor, direction int, eventData1, eventData2, eventData3 byte) {
	mc.mu.Lock()
	recvAddr := mc.eventReceiverAddr
	eventsEnabled := s.EventsEnabled
	mc.mu.Unlock()

	if recvAddr == 0 || !eventsEnabled {
		return
	}
	recv := mc.emu.GetMCByAddr(recvAddr)
	if recv == nil {
		return
	}

	var event [13]byte
	// bytes 0-3 are the timestamp; the SEL fills these from its own
	// clock, so they're left zero here.
	event[4] = mc.ipmb
	event[5] = s.LUN
	event[6] = evmRevision
	event[7] = s.SensorType
	event[8] = s.Number
	event[9] = s.dirByte(direction)
	event[10] = eventData1
	event[11] = eventData2
	event[12] = eventData3

	recv.SEL.AddEntry(0x02, event)
}

// SetPower is the demonstration OEM netfn's set-power call: a no-op if
// unchanged, else stores the new value and, if requested and an event
// receiver is configured, emits an OEM record type 0xC0.
func (mc *MC) SetPower(power byte, genEvent bool) {
	mc.mu.Lock()
	if mc.power == power {
		mc.mu.Unlock()
		return
	}
	mc.power = power
	recvAddr := mc.eventReceiverAddr
	mc.mu.Unlock()

	if !genEvent || recvAddr == 0 {
		return
	}
	recv := mc.emu.GetMCByAddr(recvAddr)
	if recv == nil {
		return
	}
	var event [13]byte
	event[0] = 0    // control number
	event[4] = 0x20 // generator address, hardcoded in the original's ipmi_mc_set_power
	event[6] = 0x01 // EVM revision, hardcoded likewise
	event[10] = power
	recv.SEL.AddEntry(0xC0, event)
}

// GetPower returns the current power byte.
func (mc *MC) GetPower() byte {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.power
}

// SetOEMHandler installs the vendor-specific OEM0 handler discovered by a
// channel's bootstrap hook (spec.md §4.8). A nil handler clears it.
func (mc *MC) SetOEMHandler(h OEMHandler) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.oemHandler = h
}

// OEMHandler returns the currently installed vendor handler, or nil.
func (mc *MC) OEMHandler() OEMHandler {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.oemHandler
}
