// Copyright 2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emu

import (
	"github.com/ipmisim/ipmisim/pkg/ipmi"
)

// Dispatch is the command engine's single entry point: it resolves the
// target MC (unwrapping a Send Message encapsulation if present), routes
// the request by netfn/cmd, and always returns a well-formed response —
// there is no path by which the dispatcher itself refuses to answer.
func (e *Emulator) Dispatch(lun byte, req ipmi.Request) ipmi.Response {
	if req.NetFn == ipmi.NetFnApp && req.Cmd == ipmi.CmdSendMessage {
		return e.dispatchSendMessage(req)
	}

	mc := e.BMC()
	if mc == nil {
		return ipmi.Response{CompletionCode: 0xFF}
	}
	return execute(mc, lun, req)
}

// dispatchSendMessage implements the IPMB encapsulation described in
// spec.md §4.7, grounded on ipmi_emu_handle_msg's IPMI_SEND_MSG_CMD branch
// in original_source/lanserv/emu.c (lines ~2662-2678 for the unwrap, ~2733
// for the response re-wrap).
func (e *Emulator) dispatchSendMessage(req ipmi.Request) ipmi.Response {
	if len(req.Data) < 8 {
		return ipmi.Response{CompletionCode: ipmi.CCRequestDataLengthInvalid}
	}
	if req.Data[0]&0x3f != 0 {
		return ipmi.Response{CompletionCode: ipmi.CCInvalidDataField}
	}

	data := req.Data[1:]
	if data[0] == 0 {
		// Broadcast: skip the channel-target byte, but re-check length.
		data = data[1:]
		if len(data) < 7 {
			return ipmi.Response{CompletionCode: ipmi.CCRequestDataLengthInvalid}
		}
	}

	slave := data[0]
	target := e.GetMCByAddr(slave)
	if target == nil {
		return ipmi.Response{CompletionCode: ipmi.CCNAKOnWrite}
	}

	innerNetFn := data[1] >> 2
	innerLUN := data[1] & 0x3
	innerCmd := data[5]
	innerData := data[6 : len(data)-1] // strip the header and trailing checksum

	inner := ipmi.Request{NetFn: innerNetFn, Cmd: innerCmd, LUN: innerLUN, Data: innerData}
	resp := execute(target, innerLUN, inner)

	return wrapIPMBResponse(e, resp, data, innerNetFn)
}

// wrapIPMBResponse reformats resp as an IPMB response frame per spec.md
// §4.7: the produced payload is shifted seven bytes to make room for a
// 7-byte IPMB header, then the header and a whole-frame checksum are
// written. data is the inner-request byte span (request-relative, as
// extracted in dispatchSendMessage: data[0] is the target slave address,
// data[1] the netfn/lun byte, data[4] the requester's seq/lun byte, data[5]
// the inner command).
func wrapIPMBResponse(e *Emulator, resp ipmi.Response, data []byte, innerNetFn byte) ipmi.Response {
	body := append([]byte{byte(resp.CompletionCode)}, resp.Data...)

	out := make([]byte, 7+len(body)+1)
	copy(out[7:], body)

	bmcAddr := byte(0)
	if bmc := e.BMC(); bmc != nil {
		bmcAddr = bmc.IPMBAddr()
	}

	out[0] = 0
	out[1] = bmcAddr
	out[2] = ((innerNetFn | 1) << 2) | (data[4] & 0x3)
	out[3] = ipmi.Checksum(0, out[1:3])
	out[4] = data[0]
	out[5] = (data[4] & 0xfc) | (data[1] & 0x03)
	out[6] = data[5]
	out[len(out)-1] = ipmi.Checksum(0, out[:len(out)-1])

	return ipmi.Response{CompletionCode: ipmi.CCOK, Data: out}
}

// checkLen returns CCRequestDataLengthInvalid if data is shorter than
// want, the one length check spec.md §4.7 requires of every handler.
func checkLen(data []byte, want int) error {
	if len(data) < want {
		return ccError(ipmi.CCRequestDataLengthInvalid)
	}
	return nil
}

// execute routes one already-resolved request to mc, translating any
// ProtoError returned by a store method into a completion code. Chassis,
// Sensor/Event and Storage commands are gated on their device_support
// capability bit; App (Get Device ID) and OEM0 commands are not gated.
func execute(mc *MC, lun byte, req ipmi.Request) ipmi.Response {
	switch req.NetFn {
	case ipmi.NetFnApp:
		return respond(dispatchApp(mc, req))
	case ipmi.NetFnChassis:
		return respond(dispatchChassis(mc, req))
	case ipmi.NetFnSensor:
		return respond(dispatchSensor(mc, req))
	case ipmi.NetFnStorage:
		return respond(dispatchStorage(mc, req))
	case ipmi.NetFnOEM0:
		return respond(dispatchOEM0(mc, req))
	default:
		return ipmi.Response{CompletionCode: ipmi.CCInvalidCommand}
	}
}

func respond(data []byte, err error) ipmi.Response {
	cc := completionCodeOf(err)
	if cc != ipmi.CCOK {
		return ipmi.Response{CompletionCode: cc}
	}
	return ipmi.Response{CompletionCode: ipmi.CCOK, Data: data}
}

// --- App netfn ---

func dispatchApp(mc *MC, req ipmi.Request) ([]byte, error) {
	switch req.Cmd {
	case ipmi.CmdGetDeviceID:
		return handleGetDeviceID(mc)
	default:
		return nil, ccError(ipmi.CCInvalidCommand)
	}
}

// handleGetDeviceID builds the 11-byte Get Device ID response body, per
// spec.md's concrete scenario 1.
func handleGetDeviceID(mc *MC) ([]byte, error) {
	rev := mc.DeviceRevision & 0x0F
	if mc.DeviceSDRPresent {
		rev |= 0x80
	}
	out := make([]byte, 11)
	out[0] = mc.DeviceID
	out[1] = rev
	out[2] = mc.FWMajor & 0x7F
	out[3] = mc.FWMinor
	out[4] = 0x51 // IPMI version 1.5, BCD-packed per convention
	out[5] = mc.DevSupport
	out[6], out[7], out[8] = mc.ManufacturerID[0], mc.ManufacturerID[1], mc.ManufacturerID[2]
	out[9], out[10] = mc.ProductID[0], mc.ProductID[1]
	return out, nil
}

// --- Chassis netfn (routed by execute like the other netfns, so it is
// reachable both by direct dispatch to the BMC and via Send Message
// forwarding; gated on the DevSupportChassis capability bit.) ---

func dispatchChassis(mc *MC, req ipmi.Request) ([]byte, error) {
	if !mc.HasCapability(ipmi.DevSupportChassis) {
		return nil, ccError(ipmi.CCInvalidCommand)
	}
	switch req.Cmd {
	case ipmi.CmdGetChassisStatus:
		return handleGetChassisStatus(mc)
	default:
		return nil, ccError(ipmi.CCInvalidCommand)
	}
}

// handleGetChassisStatus reports current power state packed into byte 0
// (bit 0 = power is on), per the AuxFWRevision/chassis supplement recorded
// in SPEC_FULL.md; the other two status bytes are always 0 in this
// emulator (no last-power-event or misc-chassis-state tracking).
func handleGetChassisStatus(mc *MC) ([]byte, error) {
	out := make([]byte, 3)
	if mc.GetPower()&0x1 != 0 {
		out[0] |= 0x01
	}
	return out, nil
}

// --- Sensor/Event netfn ---

func dispatchSensor(mc *MC, req ipmi.Request) ([]byte, error) {
	if !mc.HasCapability(ipmi.DevSupportSensor) {
		return nil, ccError(ipmi.CCInvalidCommand)
	}
	switch req.Cmd {
	case ipmi.CmdSetEventReceiver:
		return handleSetEventReceiver(mc, req.Data)
	case ipmi.CmdGetEventReceiver:
		return handleGetEventReceiver(mc)
	case ipmi.CmdGetDeviceSDRInfo:
		return handleGetDeviceSDRInfo(mc, req.LUN)
	case ipmi.CmdGetDeviceSDR:
		return handleGetDeviceSDR(mc, req.LUN, req.Data)
	case ipmi.CmdReserveDeviceSDRRepo:
		return handleReserveDeviceSDR(mc, req.LUN)
	case ipmi.CmdSetSensorHysteresis:
		return handleSetSensorHysteresis(mc, req.Data)
	case ipmi.CmdGetSensorHysteresis:
		return handleGetSensorHysteresis(mc, req.Data)
	case ipmi.CmdSetSensorThreshold:
		return handleSetSensorThreshold(mc, req.Data)
	case ipmi.CmdGetSensorThreshold:
		return handleGetSensorThreshold(mc, req.Data)
	case ipmi.CmdSetSensorEventEnable:
		return handleSetSensorEventEnable(mc, req.Data)
	case ipmi.CmdGetSensorEventEnable:
		return handleGetSensorEventEnable(mc, req.Data)
	case ipmi.CmdGetSensorType:
		return handleGetSensorType(mc, req.Data)
	case ipmi.CmdGetSensorReading:
		return handleGetSensorReading(mc, req.Data)
	default:
		// Get Event Status, Rearm, Get Reading Factors, Set Sensor Type:
		// unimplemented per spec.md §4.7.
		return nil, ccError(ipmi.CCInvalidCommand)
	}
}

func handleSetEventReceiver(mc *MC, data []byte) ([]byte, error) {
	if err := checkLen(data, 2); err != nil {
		return nil, err
	}
	mc.SetEventReceiver(data[0], data[1]&0x3)
	return nil, nil
}

func handleGetEventReceiver(mc *MC) ([]byte, error) {
	addr, lun := mc.GetEventReceiver()
	return []byte{addr, lun}, nil
}

func (mc *MC) deviceSDR(lun byte) (*SDRRepo, error) {
	if !mc.HasDeviceSDRs || int(lun) >= maxLUNs || mc.DeviceSDR[lun] == nil {
		return nil, ccError(ipmi.CCInvalidCommand)
	}
	return mc.DeviceSDR[lun], nil
}

func handleGetDeviceSDRInfo(mc *MC, lun byte) ([]byte, error) {
	repo, err := mc.deviceSDR(lun)
	if err != nil {
		return nil, err
	}
	info := repo.GetInfo()
	out := make([]byte, 2)
	out[0] = byte(info.Count)
	if mc.dynamicSensorPopulation {
		out[1] |= 0x80
	}
	return out, nil
}

func handleGetDeviceSDR(mc *MC, lun byte, data []byte) ([]byte, error) {
	repo, err := mc.deviceSDR(lun)
	if err != nil {
		return nil, err
	}
	if err := checkLen(data, 6); err != nil {
		return nil, err
	}
	reservation := ipmi.Uint16LE(data[0:2])
	recordID := ipmi.Uint16LE(data[2:4])
	offset := uint16(data[4])
	count := data[5]
	nextID, recData, err := repo.GetSDR(reservation, recordID, offset, count)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 2+len(recData))
	ipmi.PutUint16LE(out[0:2], nextID)
	copy(out[2:], recData)
	return out, nil
}

func handleReserveDeviceSDR(mc *MC, lun byte) ([]byte, error) {
	id, err := mc.ReserveDeviceSDR(lun)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 2)
	ipmi.PutUint16LE(out, id)
	return out, nil
}

func sensorAt(mc *MC, data []byte) (*Sensor, []byte, error) {
	if err := checkLen(data, 1); err != nil {
		return nil, nil, err
	}
	s := mc.Sensors.Get(0, data[0])
	if s == nil {
		return nil, nil, ccError(ipmi.CCInvalidDataField)
	}
	return s, data[1:], nil
}

func handleSetSensorHysteresis(mc *MC, data []byte) ([]byte, error) {
	s, rest, err := sensorAt(mc, data)
	if err != nil {
		return nil, err
	}
	if err := checkLen(rest, 3); err != nil {
		return nil, err
	}
	s.SetHysteresis(rest[0], rest[1], rest[2])
	return nil, nil
}

func handleGetSensorHysteresis(mc *MC, data []byte) ([]byte, error) {
	s, _, err := sensorAt(mc, data)
	if err != nil {
		return nil, err
	}
	return []byte{s.PositiveHyst, s.NegativeHyst}, nil
}

func handleSetSensorThreshold(mc *MC, data []byte) ([]byte, error) {
	s, rest, err := sensorAt(mc, data)
	if err != nil {
		return nil, err
	}
	if err := checkLen(rest, 7); err != nil {
		return nil, err
	}
	mask := rest[0]
	var supported [numThresholds]bool
	var values [numThresholds]byte
	for i := 0; i < numThresholds; i++ {
		supported[i] = s.ThresholdSupported[i] || mask&(1<<uint(i)) != 0
		if mask&(1<<uint(i)) != 0 {
			values[i] = rest[1+i]
		} else {
			values[i] = s.Thresholds[i]
		}
	}
	s.SetThresholds(s.ThresholdSupport, supported, values)
	return nil, nil
}

func handleGetSensorThreshold(mc *MC, data []byte) ([]byte, error) {
	s, _, err := sensorAt(mc, data)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 7)
	for i := 0; i < numThresholds; i++ {
		if s.ThresholdSupported[i] {
			out[0] |= 1 << uint(i)
		}
	}
	copy(out[1:], s.Thresholds[:])
	return out, nil
}

func handleSetSensorEventEnable(mc *MC, data []byte) ([]byte, error) {
	s, rest, err := sensorAt(mc, data)
	if err != nil {
		return nil, err
	}
	if err := checkLen(rest, 5); err != nil {
		return nil, err
	}
	eventsEnabled := rest[0]&0x80 != 0
	scanningEnabled := rest[0]&0x40 != 0
	var assertEnabled, deassertEnabled [maxEventBits]bool
	unpackBits(rest[1:3], &assertEnabled)
	unpackBits(rest[3:5], &deassertEnabled)
	s.SetEventSupport(eventsEnabled, scanningEnabled, s.EventSupport,
		s.EventSupported[DirAssertion], s.EventSupported[DirDeassertion],
		assertEnabled, deassertEnabled)
	return nil, nil
}

func handleGetSensorEventEnable(mc *MC, data []byte) ([]byte, error) {
	s, _, err := sensorAt(mc, data)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 5)
	if s.EventsEnabled {
		out[0] |= 0x80
	}
	if s.ScanningEnabled {
		out[0] |= 0x40
	}
	packBits(s.EventEnabled[DirAssertion], out[1:3])
	packBits(s.EventEnabled[DirDeassertion], out[3:5])
	return out, nil
}

func handleGetSensorType(mc *MC, data []byte) ([]byte, error) {
	s, _, err := sensorAt(mc, data)
	if err != nil {
		return nil, err
	}
	return []byte{s.SensorType, s.EventReadingTypeCode}, nil
}

func handleGetSensorReading(mc *MC, data []byte) ([]byte, error) {
	s, _, err := sensorAt(mc, data)
	if err != nil {
		return nil, err
	}
	status := byte(0)
	if s.ScanningEnabled {
		status |= 0x40
	}
	out := make([]byte, 4)
	out[0] = s.Value
	out[1] = status
	packBits(s.EventStatus, out[2:4])
	return out, nil
}

// packBits packs up to 15 boolean flags into a 2-byte little-endian
// bitmask, matching the wire layout of event_status/event_enabled.
func packBits(bits [maxEventBits]bool, out []byte) {
	var v uint16
	for i, b := range bits {
		if b {
			v |= 1 << uint(i)
		}
	}
	ipmi.PutUint16LE(out, v)
}

func unpackBits(in []byte, out *[maxEventBits]bool) {
	v := ipmi.Uint16LE(in)
	for i := range out {
		out[i] = v&(1<<uint(i)) != 0
	}
}

// --- Storage netfn: SEL, SDR, FRU ---

func dispatchStorage(mc *MC, req ipmi.Request) ([]byte, error) {
	switch req.Cmd {
	case ipmi.CmdGetSELInfo, ipmi.CmdGetSELAllocInfo, ipmi.CmdReserveSEL,
		ipmi.CmdGetSELEntry, ipmi.CmdAddSELEntry, ipmi.CmdDeleteSELEntry,
		ipmi.CmdClearSEL, ipmi.CmdGetSELTime, ipmi.CmdSetSELTime:
		if !mc.HasCapability(ipmi.DevSupportSEL) {
			return nil, ccError(ipmi.CCInvalidCommand)
		}
		return dispatchSEL(mc, req)

	case ipmi.CmdGetFRUAreaInfo, ipmi.CmdReadFRUData, ipmi.CmdWriteFRUData:
		if !mc.HasCapability(ipmi.DevSupportFRU) {
			return nil, ccError(ipmi.CCInvalidCommand)
		}
		return dispatchFRU(mc, req)

	default:
		if !mc.HasCapability(ipmi.DevSupportSDRRepo) {
			return nil, ccError(ipmi.CCInvalidCommand)
		}
		return dispatchSDR(mc, req)
	}
}

func dispatchSEL(mc *MC, req ipmi.Request) ([]byte, error) {
	sel := mc.SEL
	switch req.Cmd {
	case ipmi.CmdGetSELInfo:
		info := sel.GetInfo()
		out := make([]byte, 14)
		out[0] = info.Version
		ipmi.PutUint16LE(out[1:3], info.Count)
		ipmi.PutUint16LE(out[3:5], info.FreeBytes)
		ipmi.PutUint32LE(out[5:9], info.LastAddTime)
		ipmi.PutUint32LE(out[9:13], info.LastErase)
		out[13] = info.Flags
		return out, nil

	case ipmi.CmdGetSELAllocInfo:
		total, unit, free, largest, units, err := sel.GetAllocInfo()
		if err != nil {
			return nil, err
		}
		out := make([]byte, 9)
		ipmi.PutUint16LE(out[0:2], total)
		ipmi.PutUint16LE(out[2:4], unit)
		ipmi.PutUint16LE(out[4:6], free)
		ipmi.PutUint16LE(out[6:8], largest)
		out[8] = units
		return out, nil

	case ipmi.CmdReserveSEL:
		token, err := sel.Reserve()
		if err != nil {
			return nil, err
		}
		out := make([]byte, 2)
		ipmi.PutUint16LE(out, token)
		return out, nil

	case ipmi.CmdGetSELEntry:
		if err := checkLen(req.Data, 6); err != nil {
			return nil, err
		}
		reservation := ipmi.Uint16LE(req.Data[0:2])
		recordID := ipmi.Uint16LE(req.Data[2:4])
		offset, count := req.Data[4], req.Data[5]
		nextID, data, err := sel.GetEntry(reservation, recordID, offset, count)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 2+len(data))
		ipmi.PutUint16LE(out[0:2], nextID)
		copy(out[2:], data)
		return out, nil

	case ipmi.CmdAddSELEntry:
		if err := checkLen(req.Data, 16); err != nil {
			return nil, err
		}
		var event [13]byte
		copy(event[:], req.Data[3:16])
		id, err := sel.AddEntry(req.Data[2], event)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 2)
		ipmi.PutUint16LE(out, id)
		return out, nil

	case ipmi.CmdDeleteSELEntry:
		if err := checkLen(req.Data, 4); err != nil {
			return nil, err
		}
		reservation := ipmi.Uint16LE(req.Data[0:2])
		recordID := ipmi.Uint16LE(req.Data[2:4])
		id, err := sel.DeleteEntry(reservation, recordID)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 2)
		ipmi.PutUint16LE(out, id)
		return out, nil

	case ipmi.CmdClearSEL:
		if err := checkLen(req.Data, 6); err != nil {
			return nil, err
		}
		reservation := ipmi.Uint16LE(req.Data[0:2])
		var initSeq [3]byte
		copy(initSeq[:], req.Data[2:5])
		progress, err := sel.Clear(reservation, initSeq, req.Data[5])
		if err != nil {
			return nil, err
		}
		return []byte{progress}, nil

	case ipmi.CmdGetSELTime:
		out := make([]byte, 4)
		ipmi.PutUint32LE(out, sel.GetTime())
		return out, nil

	case ipmi.CmdSetSELTime:
		if err := checkLen(req.Data, 4); err != nil {
			return nil, err
		}
		sel.SetTime(ipmi.Uint32LE(req.Data[0:4]))
		return nil, nil

	default:
		return nil, ccError(ipmi.CCInvalidCommand)
	}
}

func dispatchFRU(mc *MC, req ipmi.Request) ([]byte, error) {
	switch req.Cmd {
	case ipmi.CmdGetFRUAreaInfo:
		if err := checkLen(req.Data, 1); err != nil {
			return nil, err
		}
		length, accessType, err := mc.FRU.GetAreaInfo(int(req.Data[0]))
		if err != nil {
			return nil, err
		}
		out := make([]byte, 3)
		ipmi.PutUint16LE(out[0:2], length)
		out[2] = accessType
		return out, nil

	case ipmi.CmdReadFRUData:
		if err := checkLen(req.Data, 4); err != nil {
			return nil, err
		}
		deviceID := int(req.Data[0])
		offset := ipmi.Uint16LE(req.Data[1:3])
		count := req.Data[3]
		data, err := mc.FRU.ReadFRU(deviceID, offset, count)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 1+len(data))
		out[0] = byte(len(data))
		copy(out[1:], data)
		return out, nil

	case ipmi.CmdWriteFRUData:
		if err := checkLen(req.Data, 3); err != nil {
			return nil, err
		}
		deviceID := int(req.Data[0])
		offset := ipmi.Uint16LE(req.Data[1:3])
		if err := mc.FRU.WriteFRU(deviceID, offset, req.Data[3:]); err != nil {
			return nil, err
		}
		return []byte{byte(len(req.Data[3:]))}, nil

	default:
		return nil, ccError(ipmi.CCInvalidCommand)
	}
}

func dispatchSDR(mc *MC, req ipmi.Request) ([]byte, error) {
	repo := mc.MainSDR
	switch req.Cmd {
	case ipmi.CmdGetSDRRepoInfo:
		info := repo.GetInfo()
		out := make([]byte, 14)
		out[0] = info.Version
		ipmi.PutUint16LE(out[1:3], info.Count)
		ipmi.PutUint16LE(out[3:5], info.FreeBytes)
		ipmi.PutUint32LE(out[5:9], info.LastAddTime)
		ipmi.PutUint32LE(out[9:13], info.LastErase)
		out[13] = info.Flags
		return out, nil

	case ipmi.CmdGetSDRRepoAllocInfo:
		total, unit, free, largest, units, err := repo.GetAllocInfo()
		if err != nil {
			return nil, err
		}
		out := make([]byte, 9)
		ipmi.PutUint16LE(out[0:2], total)
		ipmi.PutUint16LE(out[2:4], unit)
		ipmi.PutUint16LE(out[4:6], free)
		ipmi.PutUint16LE(out[6:8], largest)
		out[8] = units
		return out, nil

	case ipmi.CmdReserveSDRRepo:
		token, err := repo.Reserve()
		if err != nil {
			return nil, err
		}
		out := make([]byte, 2)
		ipmi.PutUint16LE(out, token)
		return out, nil

	case ipmi.CmdGetSDR:
		if err := checkLen(req.Data, 7); err != nil {
			return nil, err
		}
		reservation := ipmi.Uint16LE(req.Data[0:2])
		recordID := ipmi.Uint16LE(req.Data[2:4])
		offset := ipmi.Uint16LE(req.Data[4:6])
		count := req.Data[6]
		nextID, data, err := repo.GetSDR(reservation, recordID, offset, count)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 2+len(data))
		ipmi.PutUint16LE(out[0:2], nextID)
		copy(out[2:], data)
		return out, nil

	case ipmi.CmdAddSDR:
		// The request data is stored as the record body; the repository
		// assigns the record id and writes it in front of the body.
		id, err := repo.AddSDR(req.Data)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 2)
		ipmi.PutUint16LE(out, id)
		return out, nil

	case ipmi.CmdPartialAddSDR:
		return handlePartialAddSDR(repo, req.Data)

	case ipmi.CmdDeleteSDR:
		if err := checkLen(req.Data, 4); err != nil {
			return nil, err
		}
		reservation := ipmi.Uint16LE(req.Data[0:2])
		recordID := ipmi.Uint16LE(req.Data[2:4])
		id, err := repo.DeleteSDR(reservation, recordID)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 2)
		ipmi.PutUint16LE(out, id)
		return out, nil

	case ipmi.CmdClearSDRRepo:
		if err := checkLen(req.Data, 6); err != nil {
			return nil, err
		}
		reservation := ipmi.Uint16LE(req.Data[0:2])
		var initSeq [3]byte
		copy(initSeq[:], req.Data[2:5])
		progress, err := repo.Clear(reservation, initSeq, req.Data[5])
		if err != nil {
			return nil, err
		}
		return []byte{progress}, nil

	case ipmi.CmdEnterSDRUpdateMode:
		if err := repo.EnterUpdateMode(); err != nil {
			return nil, err
		}
		return nil, nil

	case ipmi.CmdExitSDRUpdateMode:
		if err := repo.ExitUpdateMode(); err != nil {
			return nil, err
		}
		return nil, nil

	default:
		return nil, ccError(ipmi.CCInvalidCommand)
	}
}

// handlePartialAddSDR decodes the wire layout: reservation(2), record id(2),
// offset(2), one byte whose bit 7 marks the last chunk and whose low 7 bits
// are the declared record length, then the chunk bytes. The record id bytes
// are not read: the repository assigns the id when the record is committed.
func handlePartialAddSDR(repo *SDRRepo, data []byte) ([]byte, error) {
	if err := checkLen(data, 7); err != nil {
		return nil, err
	}
	reservation := ipmi.Uint16LE(data[0:2])
	offset := int(ipmi.Uint16LE(data[4:6]))
	inProgress := data[6]
	lastRecord := inProgress&0x80 != 0
	declaredLen := inProgress & 0x7F
	chunk := data[7:]

	id, committed, err := repo.PartialAddSDR(reservation, offset, declaredLen, lastRecord, chunk)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 3)
	ipmi.PutUint16LE(out[0:2], id)
	if committed {
		out[2] = 1
	}
	return out, nil
}

// --- OEM0 netfn: the demonstration power get/set command set ---

// dispatchOEM0 serves the two built-in demonstration commands directly; any
// other command is offered to a vendor handler installed via the channel
// bootstrap hook (§4.8) before falling back to Invalid Command.
func dispatchOEM0(mc *MC, req ipmi.Request) ([]byte, error) {
	switch req.Cmd {
	case ipmi.CmdSetPower:
		if err := checkLen(req.Data, 2); err != nil {
			return nil, err
		}
		mc.SetPower(req.Data[0], req.Data[1] != 0)
		return nil, nil
	case ipmi.CmdGetPower:
		return []byte{mc.GetPower()}, nil
	default:
		if h := mc.OEMHandler(); h != nil {
			if resp, cc, handled := h(mc, req.Cmd, req.Data); handled {
				if ipmi.CompletionCode(cc) != ipmi.CCOK {
					return nil, ccError(ipmi.CompletionCode(cc))
				}
				return resp, nil
			}
		}
		return nil, ccError(ipmi.CCInvalidCommand)
	}
}
