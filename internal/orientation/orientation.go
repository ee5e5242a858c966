// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package orientation decodes the suit's bit-packed BLE orientation frames.
package orientation

import (
	"errors"
	"fmt"
	"math"
)

const (
	// FrameSize is the length of one raw BLE payload: five 4-byte module quartets.
	FrameSize = 20

	// Scale converts a signed field count into radians.
	Scale = 325.94932

	moduleCount = 5
	quartetSize = 4

	identityTolerance = 1e-6
)

// Field limits after sign correction.
const (
	RollMin  = -1023
	RollMax  = 1024
	PitchMin = -511
	PitchMax = 512
	YawMin   = RollMin
	YawMax   = RollMax
)

// ErrShortFrame is returned when a buffer cannot hold a whole frame.
var ErrShortFrame = errors.New("orientation: short frame")

// Frame is one raw 20-byte payload as delivered by a device.
type Frame [FrameSize]byte

// Sample is one module's orientation in radians.
type Sample struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// IsIdentity reports whether all three axes are approximately zero.
func (s Sample) IsIdentity() bool {
	return approxZero(s.Roll) && approxZero(s.Pitch) && approxZero(s.Yaw)
}

// ModuleSet holds the five module samples of one suit half, all taken from the same frame.
type ModuleSet struct {
	Center     Sample `json:"center"`
	LeftUpper  Sample `json:"left_upper"`
	LeftLower  Sample `json:"left_lower"`
	RightUpper Sample `json:"right_upper"`
	RightLower Sample `json:"right_lower"`
}

// IsInitialized reports whether the device has started sending real data,
// i.e. at least one module is not at identity.
func (m ModuleSet) IsInitialized() bool {
	return !m.Center.IsIdentity() ||
		!m.LeftUpper.IsIdentity() ||
		!m.LeftLower.IsIdentity() ||
		!m.RightUpper.IsIdentity() ||
		!m.RightLower.IsIdentity()
}

// Samples returns the modules in wire order.
func (m ModuleSet) Samples() [moduleCount]Sample {
	return [moduleCount]Sample{m.Center, m.LeftUpper, m.LeftLower, m.RightUpper, m.RightLower}
}

// Decode unpacks a raw BLE payload. Buffers shorter than FrameSize are rejected
// and nothing is decoded; trailing bytes past FrameSize are ignored.
func Decode(buf []byte) (ModuleSet, error) {
	if len(buf) < FrameSize {
		return ModuleSet{}, fmt.Errorf("%w: got %d bytes, need %d", ErrShortFrame, len(buf), FrameSize)
	}
	var f Frame
	copy(f[:], buf)
	return DecodeFrame(&f), nil
}

// DecodeFrame unpacks a full frame.
func DecodeFrame(f *Frame) ModuleSet {
	return ModuleSet{
		Center:     decodeQuartet(f[0:4]),
		LeftUpper:  decodeQuartet(f[4:8]),
		LeftLower:  decodeQuartet(f[8:12]),
		RightUpper: decodeQuartet(f[12:16]),
		RightLower: decodeQuartet(f[16:20]),
	}
}

// decodeQuartet unpacks one module. Byte 3 carries the high bits of all three axes:
// bits 7-5 roll, bits 4-3 pitch, bits 2-0 yaw.
func decodeQuartet(q []byte) Sample {
	roll := int(q[3]&0xE0)<<3 | int(q[0])
	if roll > 1024 {
		roll -= 2048
	}
	pitch := int(q[3]&0x18)<<5 | int(q[1])
	if pitch > 512 {
		pitch -= 1024
	}
	yaw := int(q[3]&0x07)<<8 | int(q[2])
	if yaw > 1024 {
		yaw -= 2048
	}
	return Sample{
		Roll:  float64(roll) / Scale,
		Pitch: float64(pitch) / Scale,
		Yaw:   float64(yaw) / Scale,
	}
}

// Encode packs a module set into a frame. Angles are rounded to the nearest
// count and clamped to the representable range of each field.
func Encode(m ModuleSet) Frame {
	var f Frame
	for i, s := range m.Samples() {
		encodeQuartet(f[i*quartetSize:(i+1)*quartetSize], s)
	}
	return f
}

func encodeQuartet(q []byte, s Sample) {
	roll := toCount(s.Roll, RollMin, RollMax) & 0x7FF
	pitch := toCount(s.Pitch, PitchMin, PitchMax) & 0x3FF
	yaw := toCount(s.Yaw, YawMin, YawMax) & 0x7FF

	q[0] = byte(roll)
	q[1] = byte(pitch)
	q[2] = byte(yaw)
	q[3] = byte((roll>>8)<<5) | byte((pitch>>8)<<3) | byte(yaw>>8)
}

func toCount(rad float64, lo, hi int) int {
	n := int(math.Round(rad * Scale))
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func approxZero(v float64) bool {
	return math.Abs(v) < identityTolerance
}
