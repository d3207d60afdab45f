// Copyright 2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emu

import (
	"sync"

	"github.com/ipmisim/ipmisim/pkg/ipmi"
)

// SEL flag bits, per spec.md §4.3's Enable contract: flags are masked to
// bits 0 (reserve), 1 (alloc-info) and 3 (delete) on Enable; bit 7 is the
// overflow flag and is never settable by the caller.
const (
	SELFlagReserve   byte = 1 << 0
	SELFlagAllocInfo byte = 1 << 1
	SELFlagDelete    byte = 1 << 3
	selFlagOverflow  byte = 1 << 7

	selVersion = 0x51
)

// selRecordLen is the fixed size of a SEL record on the wire: 2-byte
// record id, 1-byte record type, 13-byte payload.
const selRecordLen = 16

// SELRecord is one 16-byte System Event Log entry.
type SELRecord struct {
	raw [selRecordLen]byte
}

// ID returns the record's 16-bit id (bytes 0-1, little-endian — the record
// id is stored redundantly as the first two bytes of the record itself).
func (r *SELRecord) ID() uint16 { return ipmi.Uint16LE(r.raw[0:2]) }

// Type returns the record type byte.
func (r *SELRecord) Type() byte { return r.raw[2] }

// Bytes returns the full 16-byte record.
func (r *SELRecord) Bytes() [selRecordLen]byte { return r.raw }

// SEL is a per-MC, bounded System Event Log.
type SEL struct {
	mu sync.Mutex

	clock Clock

	enabled bool
	records []*SELRecord
	byID    map[uint16]int // record id -> index into records

	maxCount int
	flags    byte
	overflow bool

	reservation uint16
	nextEntry   uint16

	timeOffset  int32
	lastAddTime uint32
	lastErase   uint32
}

// NewSEL constructs a disabled SEL; Enable must be called before use.
func NewSEL(clock Clock) *SEL {
	return &SEL{clock: clock, byID: map[uint16]int{}}
}

// Enable initializes an empty SEL with the given max entry count and flags
// masked to the reserve/alloc-info/delete bits.
func (s *SEL) Enable(maxCount int, flags byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enabled = true
	s.maxCount = maxCount
	s.flags = flags & (SELFlagReserve | SELFlagAllocInfo | SELFlagDelete)
	s.overflow = false
	s.records = nil
	s.byID = map[uint16]int{}
	s.reservation = 0
	s.nextEntry = 1
}

func (s *SEL) wallClockWithOffset() uint32 {
	return uint32(int64(s.clock()) + int64(s.timeOffset))
}

// allocID assigns the next non-zero, unique 16-bit record id, probing
// sequentially from nextEntry and wrapping past 0. Returns false if a full
// cycle found no free id (can only happen if maxCount > 0xFFFE, which the
// bounded table prevents in practice, but the cycle detection is kept for
// safety).
func (s *SEL) allocID() (uint16, bool) {
	start := s.nextEntry
	if start == 0 {
		start = 1
	}
	id := start
	for {
		if _, used := s.byID[id]; !used && id != 0 {
			return id, true
		}
		id++
		if id == 0 {
			id = 1
		}
		if id == start {
			return 0, false
		}
	}
}

// AddEntry appends a new record of the given type built from event (a
// 13-byte caller-supplied payload). For standard record types (< 0xE0) the
// wall clock fills the 4-byte timestamp field and only event[4:13] (9
// bytes) is copied in; for OEM record types (>= 0xE0) all 13 bytes of event
// are copied verbatim, preserving any caller-supplied timestamp.
func (s *SEL) AddEntry(recordType byte, event [13]byte) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.wallClockWithOffset() // fetched up front, before any copy

	if len(s.records) >= s.maxCount {
		s.overflow = true
		return 0, ccError(ipmi.CCInvalidDataLength)
	}
	id, ok := s.allocID()
	if !ok {
		return 0, ccError(ipmi.CCInvalidDataLength)
	}

	rec := &SELRecord{}
	ipmi.PutUint16LE(rec.raw[0:2], id)
	rec.raw[2] = recordType
	if recordType < 0xE0 {
		ipmi.PutUint32LE(rec.raw[3:7], now)
		copy(rec.raw[7:16], event[4:13])
	} else {
		copy(rec.raw[3:16], event[0:13])
	}

	s.byID[id] = len(s.records)
	s.records = append(s.records, rec)
	s.nextEntry = id + 1
	if s.nextEntry == 0 {
		s.nextEntry = 1
	}
	s.lastAddTime = now
	return id, nil
}

// SELInfo is the decoded result of GetInfo.
type SELInfo struct {
	Version     byte
	Count       uint16
	FreeBytes   uint16
	LastAddTime uint32
	LastErase   uint32
	Flags       byte
}

// GetInfo returns the SEL's summary info. As a side effect, this is the
// only defined mechanism that clears the overflow flag.
func (s *SEL) GetInfo() SELInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	free := s.maxCount - len(s.records)
	if free < 0 {
		free = 0
	}
	flags := s.flags
	if s.overflow {
		flags |= selFlagOverflow
	}
	s.overflow = false

	return SELInfo{
		Version:     selVersion,
		Count:       uint16(len(s.records)),
		FreeBytes:   uint16(free * selRecordLen),
		LastAddTime: s.lastAddTime,
		LastErase:   s.lastErase,
		Flags:       flags,
	}
}

// GetAllocInfo returns (total bytes = maxCount*16, unit size 16, free bytes,
// free bytes again as the largest free block, 1), conditional on the
// alloc-info flag.
func (s *SEL) GetAllocInfo() (uint16, uint16, uint16, uint16, byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flags&SELFlagAllocInfo == 0 {
		return 0, 0, 0, 0, 0, ccError(ipmi.CCInvalidCommand)
	}
	free := s.maxCount - len(s.records)
	if free < 0 {
		free = 0
	}
	total := uint16(s.maxCount * selRecordLen)
	freeBytes := uint16(free * selRecordLen)
	return total, selRecordLen, freeBytes, freeBytes, 1, nil
}

// Reserve increments and returns the reservation token, conditional on the
// reserve flag. The token never rolls over to 0.
func (s *SEL) Reserve() (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flags&SELFlagReserve == 0 {
		return 0, ccError(ipmi.CCInvalidCommand)
	}
	s.reservation++
	if s.reservation == 0 {
		s.reservation = 1
	}
	return s.reservation, nil
}

func (s *SEL) checkReservation(reservation uint16) error {
	if s.flags&SELFlagReserve == 0 {
		return nil
	}
	if reservation == 0 {
		return nil
	}
	if reservation != s.reservation {
		return ccError(ipmi.CCInvalidReservation)
	}
	return nil
}

// find resolves record_id == 0 to the first entry, 0xFFFF to the last
// entry, and anything else to an exact id match. Returns the record index
// and the "next record id" the wire protocol exposes (0xFFFF for the last
// entry).
func (s *SEL) find(recordID uint16) (idx int, nextID uint16, err error) {
	if len(s.records) == 0 {
		return 0, 0, ccError(ipmi.CCNotPresent)
	}
	switch recordID {
	case 0:
		idx = 0
	case 0xFFFF:
		idx = len(s.records) - 1
	default:
		i, ok := s.byID[recordID]
		if !ok {
			return 0, 0, ccError(ipmi.CCNotPresent)
		}
		idx = i
	}
	if idx == len(s.records)-1 {
		nextID = 0xFFFF
	} else {
		nextID = s.records[idx+1].ID()
	}
	return idx, nextID, nil
}

// GetEntry returns the next record id and the requested slice of the
// record's 16 bytes, honoring the reservation. An offset of 16 or more is
// rejected with Invalid Data Field; count is clamped so the slice ends at
// the record's end.
func (s *SEL) GetEntry(reservation, recordID uint16, offset, count byte) (nextID uint16, data []byte, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkReservation(reservation); err != nil {
		return 0, nil, err
	}
	idx, nextID, err := s.find(recordID)
	if err != nil {
		return 0, nil, err
	}
	if offset >= selRecordLen {
		return 0, nil, ccError(ipmi.CCInvalidDataField)
	}
	if int(offset)+int(count) > selRecordLen {
		count = byte(selRecordLen - int(offset))
	}
	raw := s.records[idx].Bytes()
	out := make([]byte, count)
	copy(out, raw[offset:int(offset)+int(count)])
	return nextID, out, nil
}

// DeleteEntry removes and returns the id of the selected record,
// conditional on the delete flag.
func (s *SEL) DeleteEntry(reservation, recordID uint16) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flags&SELFlagDelete == 0 {
		return 0, ccError(ipmi.CCInvalidCommand)
	}
	if err := s.checkReservation(reservation); err != nil {
		return 0, err
	}
	idx, _, err := s.find(recordID)
	if err != nil {
		return 0, err
	}
	id := s.records[idx].ID()
	s.records = append(s.records[:idx], s.records[idx+1:]...)
	delete(s.byID, id)
	for i := idx; i < len(s.records); i++ {
		s.byID[s.records[i].ID()] = i
	}
	return id, nil
}

// Clear implements the SEL Clear command: op 0 erases all entries, op 0xAA
// only reports progress without modifying anything. Any other op is
// rejected. Returns the progress byte (always 1, "erase complete", since
// this store never defers the erase).
func (s *SEL) Clear(reservation uint16, initSeq [3]byte, op byte) (byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if initSeq != [3]byte{'C', 'L', 'R'} {
		return 0, ccError(ipmi.CCInvalidDataField)
	}
	if err := s.checkReservation(reservation); err != nil {
		return 0, err
	}
	switch op {
	case 0xAA:
		return 1, nil
	case 0x00:
		s.records = nil
		s.byID = map[uint16]int{}
		s.lastErase = s.wallClockWithOffset()
		return 1, nil
	default:
		return 0, ccError(ipmi.CCInvalidDataField)
	}
}

// GetTime returns the current SEL time (wall clock plus time offset).
func (s *SEL) GetTime() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wallClockWithOffset()
}

// SetTime adjusts the SEL time offset so that GetTime would subsequently
// return the supplied time.
func (s *SEL) SetTime(t uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeOffset = int32(int64(t) - int64(s.clock()))
}
