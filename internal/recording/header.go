// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package recording reads and writes suit recordings: a fixed header followed
// by timestamped raw frames of either suit half.
package recording

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/relabs-tech/motion_suit/internal/humanoid"
)

const (
	HeaderVersion = 2
	FrameVersion  = 1

	// HeaderSize is the packed on-disk size of Header.
	HeaderSize = 36
)

var (
	ErrShortHeader   = errors.New("recording: short header")
	ErrHeaderVersion = errors.New("recording: unsupported header version")
	ErrFrameVersion  = errors.New("recording: unsupported frame version")
)

// BaseOrientation is a calibration reference rounded to whole degrees.
type BaseOrientation struct {
	X, Y, Z int16
}

func (b BaseOrientation) String() string {
	return fmt.Sprintf("(%d, %d, %d)", b.X, b.Y, b.Z)
}

// Vec3 widens b back to degrees.
func (b BaseOrientation) Vec3() humanoid.Vec3 {
	return humanoid.Vec3{X: float64(b.X), Y: float64(b.Y), Z: float64(b.Z)}
}

// BaseOrientationFrom rounds v to the nearest degree, saturating at the int16 range.
func BaseOrientationFrom(v humanoid.Vec3) BaseOrientation {
	return BaseOrientation{X: roundInt16(v.X), Y: roundInt16(v.Y), Z: roundInt16(v.Z)}
}

// Header is the file preamble. Field order and sizes are the on-disk layout,
// little-endian with no padding.
type Header struct {
	HeaderVersion  int16
	FrameVersion   int16
	NumShirtFrames uint64
	NumPantsFrames uint64
	DurationMillis uint32
	ShirtBase      BaseOrientation
	PantsBase      BaseOrientation
}

// NewHeader returns an empty header carrying the current versions.
func NewHeader() Header {
	return Header{HeaderVersion: HeaderVersion, FrameVersion: FrameVersion}
}

// Duration returns the recorded length.
func (h Header) Duration() time.Duration {
	return time.Duration(h.DurationMillis) * time.Millisecond
}

// Validate checks both version fields.
func (h Header) Validate() error {
	if h.HeaderVersion != HeaderVersion {
		return fmt.Errorf("%w: %d, want %d", ErrHeaderVersion, h.HeaderVersion, HeaderVersion)
	}
	if h.FrameVersion != FrameVersion {
		return fmt.Errorf("%w: %d, want %d", ErrFrameVersion, h.FrameVersion, FrameVersion)
	}
	return nil
}

func (h Header) String() string {
	d := h.Duration()
	return fmt.Sprintf("[recording %02d:%02d.%03d, %d shirt frames, %d pants frames, shirt base %s, pants base %s]",
		int(d.Minutes()), int(d.Seconds())%60, d.Milliseconds()%1000,
		h.NumShirtFrames, h.NumPantsFrames, h.ShirtBase, h.PantsBase)
}

// ReadHeader reads and decodes a header. It does not validate the versions.
func ReadHeader(r io.Reader) (Header, error) {
	var h Header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, fmt.Errorf("%w: %v", ErrShortHeader, err)
		}
		return Header{}, fmt.Errorf("recording: read header: %w", err)
	}
	return h, nil
}

// WriteHeader encodes h in its on-disk layout.
func WriteHeader(w io.Writer, h Header) error {
	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		return fmt.Errorf("recording: write header: %w", err)
	}
	return nil
}

func roundInt16(v float64) int16 {
	r := math.Round(v)
	switch {
	case math.IsNaN(r):
		return 0
	case r > math.MaxInt16:
		return math.MaxInt16
	case r < math.MinInt16:
		return math.MinInt16
	}
	return int16(r)
}
