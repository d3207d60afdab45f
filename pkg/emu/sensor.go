// Copyright 2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emu

import (
	"sync"

	"github.com/ipmisim/ipmisim/pkg/ipmi"
)

// Threshold indices, in the fixed order the wire protocol and the
// hysteresis evaluation both use.
const (
	ThreshLowNonCritical = iota
	ThreshLowCritical
	ThreshLowNonRecoverable
	ThreshHighNonCritical
	ThreshHighCritical
	ThreshHighNonRecoverable
	numThresholds
)

// Event direction.
const (
	DirAssertion = iota
	DirDeassertion
)

const (
	maxLUNs        = 4
	maxSensorNum   = 255
	maxEventBits   = 15
	evmRevision    = 0x04
	unspecifiedRec = 0xFFFF
)

// Sensor is the dense per-sensor state addressed by (lun, number).
type Sensor struct {
	mu sync.Mutex

	LUN    byte
	Number byte

	ScanningEnabled bool
	EventsEnabled   bool

	SensorType           byte
	EventReadingTypeCode byte

	Value byte

	HysteresisSupport byte
	PositiveHyst      byte
	NegativeHyst      byte

	ThresholdSupport   byte
	ThresholdSupported [numThresholds]bool
	Thresholds         [numThresholds]byte

	EventSupport   byte
	EventSupported [2][maxEventBits]bool
	EventEnabled   [2][maxEventBits]bool
	EventStatus    [maxEventBits]bool
}

// eventSink is implemented by the MC: it resolves the event receiver and
// appends a record to its SEL. Kept as an interface so the sensor engine
// doesn't need to import the MC/registry types directly.
type eventSink interface {
	emitSensorEvent(s *Sensor, direction int, eventData1, eventData2, eventData3 byte)
}

// SensorTable is an MC's sparse 4x255 sensor table.
type SensorTable struct {
	mu      sync.Mutex
	sensors [maxLUNs][maxSensorNum]*Sensor
}

// NewSensorTable constructs an empty table.
func NewSensorTable() *SensorTable {
	return &SensorTable{}
}

// Add allocates and zero-initializes a sensor at (lun, num). Returns an
// error if the slot is already occupied or the coordinates are
// out-of-range.
func (t *SensorTable) Add(lun, num byte, sensorType, eventReadingCode byte) (*Sensor, error) {
	if lun >= maxLUNs {
		return nil, &ipmi.ArgError{Field: "lun", Value: lun, Reason: "must be < 4"}
	}
	if num >= maxSensorNum {
		return nil, &ipmi.ArgError{Field: "sensor number", Value: num, Reason: "must be < 255"}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sensors[lun][num] != nil {
		return nil, &ipmi.ArgError{Field: "sensor", Value: num, Reason: "already populated on this LUN"}
	}
	s := &Sensor{LUN: lun, Number: num, SensorType: sensorType, EventReadingTypeCode: eventReadingCode}
	t.sensors[lun][num] = s
	return s, nil
}

// Get returns the sensor at (lun, num), or nil if the slot is empty.
func (t *SensorTable) Get(lun, num byte) *Sensor {
	if lun >= maxLUNs || num >= maxSensorNum {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sensors[lun][num]
}

// SetHysteresis sets the hysteresis support code and positive/negative
// hysteresis values.
func (s *Sensor) SetHysteresis(support, positive, negative byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.HysteresisSupport = support
	s.PositiveHyst = positive
	s.NegativeHyst = negative
}

// SetThresholds sets the threshold support code, the per-threshold
// supported mask, and the threshold values.
func (s *Sensor) SetThresholds(support byte, supported [numThresholds]bool, values [numThresholds]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ThresholdSupport = support
	s.ThresholdSupported = supported
	s.Thresholds = values
}

// SetEventSupport configures the sensor's event generation and enable
// state.
func (s *Sensor) SetEventSupport(eventsEnabled, scanningEnabled bool, support byte, assertSupported, deassertSupported, assertEnabled, deassertEnabled [maxEventBits]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.EventsEnabled = eventsEnabled
	s.ScanningEnabled = scanningEnabled
	s.EventSupport = support
	s.EventSupported[DirAssertion] = assertSupported
	s.EventSupported[DirDeassertion] = deassertSupported
	s.EventEnabled[DirAssertion] = assertEnabled
	s.EventEnabled[DirDeassertion] = deassertEnabled
}

// isThreshold reports whether this sensor's event/reading type code marks
// it as a threshold sensor (event/reading type code 1, per the IPMI
// sensor-class convention).
func (s *Sensor) isThreshold() bool {
	return s.EventReadingTypeCode == 1
}

// SetValue stores a new raw reading and, for threshold sensors, evaluates
// the six thresholds against it with hysteresis. When genEvent is true and
// a threshold transition occurs, an event is appended to the configured
// receiver via sink.
func (s *Sensor) SetValue(value byte, genEvent bool, sink eventSink) {
	s.mu.Lock()
	s.Value = value
	if !s.isThreshold() {
		s.mu.Unlock()
		return
	}

	type transition struct {
		idx       int
		direction int
	}
	var transitions []transition

	for i := 0; i < numThresholds; i++ {
		if !s.ThresholdSupported[i] {
			continue
		}
		threshold := s.Thresholds[i]
		var asserted bool
		if i < ThreshHighNonCritical {
			asserted = value <= threshold
		} else {
			asserted = value >= threshold
		}

		was := s.EventStatus[i]
		if asserted && !was {
			s.EventStatus[i] = true
			transitions = append(transitions, transition{i, DirAssertion})
		} else if was {
			var deasserted bool
			if i < ThreshHighNonCritical {
				deasserted = int(value)-int(s.NegativeHyst) > int(threshold)
			} else {
				deasserted = int(value)+int(s.PositiveHyst) < int(threshold)
			}
			if deasserted {
				s.EventStatus[i] = false
				transitions = append(transitions, transition{i, DirDeassertion})
			}
		}
	}
	s.mu.Unlock()

	if !genEvent || sink == nil {
		return
	}
	for _, tr := range transitions {
		if !s.EventEnabled[tr.direction][tr.idx] {
			continue
		}
		var byte1 byte
		if tr.idx < ThreshHighNonCritical {
			byte1 = 0x50 | byte(tr.idx*2)
		} else {
			byte1 = 0x50 | byte(tr.idx*2+1)
		}
		sink.emitSensorEvent(s, tr.direction, byte1, value, s.Thresholds[tr.idx])
	}
}

// SetBit sets a discrete status bit. When the bit's value changes and the
// corresponding direction's event_enabled bit is set, an event is emitted
// with event-data byte1 = bit, bytes 2/3 = 0.
func (s *Sensor) SetBit(bit int, value bool, genEvent bool, sink eventSink) {
	s.mu.Lock()
	if bit < 0 || bit >= maxEventBits {
		s.mu.Unlock()
		return
	}
	was := s.EventStatus[bit]
	if was == value {
		s.mu.Unlock()
		return
	}
	s.EventStatus[bit] = value
	direction := DirAssertion
	if !value {
		direction = DirDeassertion
	}
	enabled := s.EventEnabled[direction][bit]
	s.mu.Unlock()

	if !genEvent || !enabled || sink == nil {
		return
	}
	sink.emitSensorEvent(s, direction, byte(bit), 0, 0)
}

// dirByte packs the event-message direction bit and the sensor's
// event/reading type code into byte 9 of the 13-byte event payload (byte 12
// of the stored SEL record), per spec.md §4.6.
func (s *Sensor) dirByte(direction int) byte {
	b := s.EventReadingTypeCode
	if direction == DirDeassertion {
		b |= 0x80
	}
	return b
}
