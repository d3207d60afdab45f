// Copyright 2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emu

import (
	"sync"

	"github.com/ipmisim/ipmisim/pkg/ipmi"
)

// SDR repository flag bits (spec.md §3/§4.4).
const (
	SDRFlagAllocInfo  byte = 1 << 0
	SDRFlagReserve    byte = 1 << 1
	SDRFlagPartialAdd byte = 1 << 2
	SDRFlagDelete     byte = 1 << 3
	sdrModalShift          = 5
	sdrModalMask      byte = 0x3 << sdrModalShift
)

// Modal update-mode values, decoded from flags bits 5-6.
const (
	ModalUnspecified byte = iota
	ModalNonModalOnly
	ModalOnly
	ModalBoth
)

// Bounds on the repository, chosen generously enough that the free-space
// accounting's 0xFFFE clamp (spec.md §4.4) is what actually limits the
// value reported on the wire, not these constants themselves.
const (
	MaxSDRLength = 261
	MaxNumSDRs   = 4096

	sdrVersion = 0x51
)

// SDRRecord is one variable-length Sensor Data Record. The first two bytes
// of raw are always the record id, little-endian, per spec.md's invariant.
type SDRRecord struct {
	raw []byte
}

func (r *SDRRecord) ID() uint16       { return ipmi.Uint16LE(r.raw[0:2]) }
func (r *SDRRecord) Bytes() []byte    { return r.raw }
func (r *SDRRecord) Len() int         { return len(r.raw) }

// sdrBuilding tracks an in-progress Partial Add SDR sequence.
type sdrBuilding struct {
	buf         []byte
	declaredLen int
	nextOffset  int
}

// SDRRepo is one SDR repository: the main repository or one of an MC's four
// per-LUN device SDR repositories.
type SDRRepo struct {
	mu sync.Mutex

	clock Clock

	records []*SDRRecord
	byID    map[uint16]int

	reservation uint16
	nextEntry   uint16
	flags       byte
	inUpdateMode bool

	building *sdrBuilding

	timeOffset  int32
	lastAddTime uint32
	lastErase   uint32
}

// NewSDRRepo constructs an empty repository with the given flags.
func NewSDRRepo(clock Clock, flags byte) *SDRRepo {
	return &SDRRepo{
		clock:     clock,
		byID:      map[uint16]int{},
		nextEntry: 1,
		flags:     flags,
	}
}

func (s *SDRRepo) now() uint32 {
	return uint32(int64(s.clock()) + int64(s.timeOffset))
}

func (s *SDRRepo) modal() byte {
	return (s.flags & sdrModalMask) >> sdrModalShift
}

// allocID assigns the next non-zero id != 0xFFFF, probing sequentially from
// nextEntry and wrapping, with full-cycle detection.
func (s *SDRRepo) allocID() (uint16, bool) {
	start := s.nextEntry
	if start == 0 || start == 0xFFFF {
		start = 1
	}
	id := start
	for {
		if _, used := s.byID[id]; !used && id != 0 && id != 0xFFFF {
			return id, true
		}
		id++
		if id == 0 || id == 0xFFFF {
			id = 1
		}
		if id == start {
			return 0, false
		}
	}
}

func (s *SDRRepo) checkReservation(reservation uint16) error {
	if s.flags&SDRFlagReserve == 0 {
		return nil
	}
	if reservation == 0 || reservation == s.reservation {
		return nil
	}
	return ccError(ipmi.CCInvalidReservation)
}

// SDRRepoInfo is the decoded result of GetInfo.
type SDRRepoInfo struct {
	Version     byte
	Count       uint16
	FreeBytes   uint16
	LastAddTime uint32
	LastErase   uint32
	Flags       byte
}

func (s *SDRRepo) GetInfo() SDRRepoInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SDRRepoInfo{
		Version:     sdrVersion,
		Count:       uint16(len(s.records)),
		FreeBytes:   s.freeSpaceLocked(),
		LastAddTime: s.lastAddTime,
		LastErase:   s.lastErase,
		Flags:       s.flags,
	}
}

func (s *SDRRepo) freeSpaceLocked() uint16 {
	free := MaxSDRLength * (MaxNumSDRs - len(s.records))
	if free > 0xFFFE || free < 0 {
		return 0xFFFE
	}
	return uint16(free)
}

// GetAllocInfo returns (MaxNumSDRs, MaxSDRLength, free space in bytes as
// GetInfo reports it, that same free-space value as the largest free block,
// 1), conditional on the alloc-info flag.
func (s *SDRRepo) GetAllocInfo() (uint16, uint16, uint16, uint16, byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flags&SDRFlagAllocInfo == 0 {
		return 0, 0, 0, 0, 0, ccError(ipmi.CCInvalidCommand)
	}
	free := s.freeSpaceLocked()
	return uint16(MaxNumSDRs), MaxSDRLength, free, free, 1, nil
}

// Reserve increments the reservation token and discards any in-flight
// partial-add buffer, conditional on the reserve flag.
func (s *SDRRepo) Reserve() (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flags&SDRFlagReserve == 0 {
		return 0, ccError(ipmi.CCInvalidCommand)
	}
	s.reservation++
	if s.reservation == 0 {
		s.reservation = 1
	}
	s.building = nil
	return s.reservation, nil
}

func (s *SDRRepo) find(recordID uint16) (idx int, nextID uint16, err error) {
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

// GetSDR returns the next record id and the requested slice of the record.
func (s *SDRRepo) GetSDR(reservation, recordID uint16, offset uint16, count byte) (nextID uint16, data []byte, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkReservation(reservation); err != nil {
		return 0, nil, err
	}
	idx, nextID, err := s.find(recordID)
	if err != nil {
		return 0, nil, err
	}
	raw := s.records[idx].Bytes()
	if int(offset) >= len(raw) {
		return 0, nil, ccError(ipmi.CCParameterOutOfRange)
	}
	end := int(offset) + int(count)
	if end > len(raw) {
		end = len(raw)
	}
	if end-int(offset) > 255 {
		return 0, nil, ccError(ipmi.CCRequestedDataLengthExceeded)
	}
	out := make([]byte, end-int(offset))
	copy(out, raw[offset:end])
	return nextID, out, nil
}

// insertLocked assigns an id, writes it into the record's first two bytes,
// and inserts the record at the end (insertion order is the wire-visible
// order of "next record id").
func (s *SDRRepo) insertLocked(buf []byte) (uint16, error) {
	id, ok := s.allocID()
	if !ok {
		return 0, ccError(ipmi.CCInvalidDataLength)
	}
	ipmi.PutUint16LE(buf[0:2], id)
	rec := &SDRRecord{raw: buf}
	s.byID[id] = len(s.records)
	s.records = append(s.records, rec)
	s.nextEntry = id + 1
	if s.nextEntry == 0 || s.nextEntry == 0xFFFF {
		s.nextEntry = 1
	}
	s.lastAddTime = s.now()
	return id, nil
}

func (s *SDRRepo) modalBlocksAdd() bool {
	return s.modal() == ModalNonModalOnly && !s.inUpdateMode
}

// AddSDR adds a complete record in one shot. body is the record's own bytes
// excluding the 2-byte id prefix, which the repository fills in.
func (s *SDRRepo) AddSDR(body []byte) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.modalBlocksAdd() {
		return 0, ccError(ipmi.CCNotSupportedInPresentState)
	}
	buf := make([]byte, len(body)+2)
	copy(buf[2:], body)
	return s.insertLocked(buf)
}

// PartialAddSDR drives the partial-add state machine. offset is the
// caller-declared offset into the record body (excluding the id prefix);
// declaredLen is the total record body length, meaningful only on the first
// segment (offset == 0). lastRecord indicates this chunk completes the
// record. Returns the assigned record id once the record is committed
// (lastRecord == true); committed is false for intermediate segments.
func (s *SDRRepo) PartialAddSDR(reservation uint16, offset int, declaredLen byte, lastRecord bool, chunk []byte) (id uint16, committed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flags&SDRFlagPartialAdd == 0 {
		return 0, false, ccError(ipmi.CCInvalidCommand)
	}
	if err := s.checkReservation(reservation); err != nil {
		return 0, false, err
	}
	if s.modalBlocksAdd() {
		return 0, false, ccError(ipmi.CCNotSupportedInPresentState)
	}

	if offset == 0 {
		s.building = &sdrBuilding{
			buf:         make([]byte, int(declaredLen)+2),
			declaredLen: int(declaredLen),
		}
		if len(chunk) > len(s.building.buf)-2 {
			s.building = nil
			return 0, false, ccError(ipmi.CCInvalidDataLength)
		}
		copy(s.building.buf[2:], chunk)
		s.building.nextOffset = len(chunk)
	} else {
		if s.building == nil || offset != s.building.nextOffset {
			s.building = nil
			return 0, false, ccError(ipmi.CCInvalidDataField)
		}
		if offset+len(chunk) > s.building.declaredLen {
			s.building = nil
			return 0, false, ccError(ipmi.CCInvalidDataLength)
		}
		copy(s.building.buf[2+offset:], chunk)
		s.building.nextOffset += len(chunk)
	}

	if !lastRecord {
		return 0, false, nil
	}

	b := s.building
	s.building = nil
	if b.nextOffset != b.declaredLen {
		return 0, false, ccError(ipmi.CCInvalidDataLength)
	}
	newID, err := s.insertLocked(b.buf)
	if err != nil {
		return 0, false, err
	}
	return newID, true, nil
}

// DeleteSDR removes and returns the id of the selected record, conditional
// on the delete flag.
func (s *SDRRepo) DeleteSDR(reservation, recordID uint16) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flags&SDRFlagDelete == 0 {
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
	s.lastErase = s.now()
	return id, nil
}

// Clear erases the repository (op 0) or merely reports progress (op 0xAA).
func (s *SDRRepo) Clear(reservation uint16, initSeq [3]byte, op byte) (byte, error) {
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
		s.building = nil
		s.lastErase = s.now()
		return 1, nil
	default:
		return 0, ccError(ipmi.CCInvalidDataField)
	}
}

// EnterUpdateMode and ExitUpdateMode are rejected unless the modal flag is
// ModalOnly or ModalBoth.
func (s *SDRRepo) EnterUpdateMode() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.modal()
	if m == ModalUnspecified || m == ModalNonModalOnly {
		return ccError(ipmi.CCNotSupportedInPresentState)
	}
	s.inUpdateMode = true
	return nil
}

func (s *SDRRepo) ExitUpdateMode() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.modal()
	if m == ModalUnspecified || m == ModalNonModalOnly {
		return ccError(ipmi.CCNotSupportedInPresentState)
	}
	s.inUpdateMode = false
	return nil
}

func (s *SDRRepo) GetTime() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now()
}

func (s *SDRRepo) SetTime(t uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeOffset = int32(int64(t) - int64(s.clock()))
}

// Count returns the number of records currently stored.
func (s *SDRRepo) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
