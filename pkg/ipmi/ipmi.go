// Copyright 2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ipmi implements the wire-level primitives shared by an IPMI
// command engine: little-endian byte packing, the IPMB checksum, the
// netfn/command/completion-code vocabulary, and the tagged address model
// used to address a managed controller.
package ipmi

// Network function codes. Requests always carry an even netfn; the
// corresponding response netfn is netfn|1.
const (
	NetFnChassis byte = 0x00
	NetFnSensor  byte = 0x04
	NetFnApp     byte = 0x06
	NetFnStorage byte = 0x0A
	NetFnOEM0    byte = 0x30
)

// App-netfn commands.
const (
	CmdGetDeviceID byte = 0x01
	CmdSendMessage byte = 0x34
)

// Chassis-netfn commands.
const (
	CmdGetChassisStatus byte = 0x01
)

// Sensor/event-netfn commands.
const (
	CmdSetEventReceiver     byte = 0x00
	CmdGetEventReceiver     byte = 0x01
	CmdGetDeviceSDRInfo     byte = 0x20
	CmdGetDeviceSDR         byte = 0x21
	CmdReserveDeviceSDRRepo byte = 0x22
	CmdSetSensorHysteresis  byte = 0x24
	CmdGetSensorHysteresis  byte = 0x25
	CmdSetSensorThreshold   byte = 0x26
	CmdGetSensorThreshold   byte = 0x27
	CmdSetSensorEventEnable byte = 0x28
	CmdGetSensorEventEnable byte = 0x29
	CmdRearmSensorEvents    byte = 0x2A
	CmdGetSensorEventStatus byte = 0x2B
	CmdGetSensorReading     byte = 0x2D
	CmdSetSensorType        byte = 0x2E
	CmdGetSensorType        byte = 0x2F
	CmdGetReadingFactors    byte = 0x23
)

// Storage-netfn commands: SEL.
const (
	CmdGetSELInfo      byte = 0x40
	CmdGetSELAllocInfo byte = 0x41
	CmdReserveSEL      byte = 0x42
	CmdGetSELEntry     byte = 0x43
	CmdAddSELEntry     byte = 0x44
	CmdDeleteSELEntry  byte = 0x46
	CmdClearSEL        byte = 0x47
	CmdGetSELTime      byte = 0x48
	CmdSetSELTime      byte = 0x49
)

// Storage-netfn commands: SDR repository.
const (
	CmdGetSDRRepoInfo      byte = 0x20
	CmdGetSDRRepoAllocInfo byte = 0x21
	CmdReserveSDRRepo      byte = 0x22
	CmdGetSDR              byte = 0x23
	CmdAddSDR              byte = 0x24
	CmdPartialAddSDR       byte = 0x25
	CmdDeleteSDR           byte = 0x26
	CmdClearSDRRepo        byte = 0x27
	CmdEnterSDRUpdateMode  byte = 0x28
	CmdExitSDRUpdateMode   byte = 0x29
)

// Storage-netfn commands: FRU.
const (
	CmdGetFRUAreaInfo byte = 0x10
	CmdReadFRUData    byte = 0x11
	CmdWriteFRUData   byte = 0x12
)

// OEM0-netfn demonstration commands (power get/set).
const (
	CmdSetPower byte = 0x01
	CmdGetPower byte = 0x02
)

// CompletionCode is the single status byte prepended to every IPMI
// response.
type CompletionCode byte

// Completion codes used by the command engine, per the IPMI specification.
const (
	CCOK                          CompletionCode = 0x00
	CCInvalidDataLength           CompletionCode = 0x80
	CCNAKOnWrite                  CompletionCode = 0x83
	CCInvalidCommand              CompletionCode = 0xC1
	CCTimeout                     CompletionCode = 0xC3
	CCInvalidReservation          CompletionCode = 0xC5
	CCRequestDataLengthInvalid    CompletionCode = 0xC7
	CCRequestedDataLengthExceeded CompletionCode = 0xC8
	CCParameterOutOfRange         CompletionCode = 0xC9
	CCNotPresent                  CompletionCode = 0xCB
	CCInvalidDataField            CompletionCode = 0xCC
	CCNotSupportedInPresentState  CompletionCode = 0xD5
)

// device_support bitmap bits (Get Device ID byte 6).
const (
	DevSupportSensor    byte = 1 << 0
	DevSupportSDRRepo   byte = 1 << 1
	DevSupportSEL       byte = 1 << 2
	DevSupportFRU       byte = 1 << 3
	DevSupportEventRecv byte = 1 << 4
	DevSupportEventGen  byte = 1 << 5
	DevSupportBridge    byte = 1 << 6
	DevSupportChassis   byte = 1 << 7
)

// Request is an IPMI request message as handed to the dispatcher: a
// network function, a command, the requester's LUN, and a command-specific
// data payload.
type Request struct {
	NetFn byte
	Cmd   byte
	LUN   byte
	Data  []byte
}

// Response is an IPMI response message: a completion code plus a
// command-specific data payload.
type Response struct {
	CompletionCode CompletionCode
	Data           []byte
}

// PutUint16LE writes v into b[0:2] in little-endian order. b must have at
// least 2 bytes.
func PutUint16LE(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

// Uint16LE reads a little-endian uint16 from b[0:2].
func Uint16LE(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

// PutUint32LE writes v into b[0:4] in little-endian order.
func PutUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// Uint32LE reads a little-endian uint32 from b[0:4].
func Uint32LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// Checksum computes the IPMB two's-complement checksum of data, seeded by
// start: csum := start; for each byte, csum += byte; return -csum (with
// 8-bit wraparound). This is used both to build outbound IPMB frames and to
// validate inbound ones.
func Checksum(start byte, data []byte) byte {
	csum := start
	for _, b := range data {
		csum += b
	}
	return -csum
}
