// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package recording

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/relabs-tech/motion_suit/internal/humanoid"
	"github.com/relabs-tech/motion_suit/internal/orientation"
	"github.com/relabs-tech/motion_suit/internal/suit"
)

var ErrRecorderClosed = errors.New("recording: recorder closed")

// Recorder writes frames in the recording format. The header is written as a
// placeholder first and rewritten with the final counts on Close, so the
// destination must be seekable.
type Recorder struct {
	dst    io.WriteSeeker
	closer io.Closer
	w      *bufio.Writer

	header Header
	start  time.Time
	now    func() time.Time
	closed bool
}

// NewRecorder starts a recording on w.
func NewRecorder(w io.WriteSeeker) (*Recorder, error) {
	r := &Recorder{
		dst:    w,
		w:      bufio.NewWriter(w),
		header: NewHeader(),
		now:    time.Now,
	}
	if err := WriteHeader(r.w, r.header); err != nil {
		return nil, err
	}
	r.start = r.now()
	return r, nil
}

// Create truncates or creates path and starts a recording on it. Close also
// closes the file.
func Create(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("recording: create %s: %w", path, err)
	}
	r, err := NewRecorder(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// SetBaseOrientations stores the references written into the header on Close.
func (r *Recorder) SetBaseOrientations(shirt, pants humanoid.Vec3) {
	r.header.ShirtBase = BaseOrientationFrom(shirt)
	r.header.PantsBase = BaseOrientationFrom(pants)
}

// Capture records frame with a timestamp relative to the start of the recording.
func (r *Recorder) Capture(device suit.DeviceType, frame orientation.Frame) error {
	ms := r.now().Sub(r.start).Milliseconds()
	if ms < 0 {
		ms = 0
	}
	return r.Record(device, uint32(ms), frame)
}

// Record appends one record with an explicit timestamp in milliseconds.
func (r *Recorder) Record(device suit.DeviceType, ts uint32, frame orientation.Frame) error {
	if r.closed {
		return ErrRecorderClosed
	}
	if device != suit.Shirt && device != suit.Pants {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, device)
	}

	var rec [recordSize]byte
	binary.LittleEndian.PutUint32(rec[0:4], ts)
	rec[4] = byte(device)
	copy(rec[5:], frame[:])
	if _, err := r.w.Write(rec[:]); err != nil {
		return fmt.Errorf("recording: write record: %w", err)
	}

	if device == suit.Shirt {
		r.header.NumShirtFrames++
	} else {
		r.header.NumPantsFrames++
	}
	if ts > r.header.DurationMillis {
		r.header.DurationMillis = ts
	}
	return nil
}

// Header returns the header as it would be written now.
func (r *Recorder) Header() Header {
	return r.header
}

// Close flushes pending records and rewrites the header.
func (r *Recorder) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	err := r.finish()
	if r.closer != nil {
		if cerr := r.closer.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("recording: close: %w", cerr)
		}
	}
	return err
}

func (r *Recorder) finish() error {
	if err := r.w.Flush(); err != nil {
		return fmt.Errorf("recording: flush: %w", err)
	}
	if _, err := r.dst.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("recording: seek header: %w", err)
	}
	if err := WriteHeader(r.dst, r.header); err != nil {
		return err
	}
	if _, err := r.dst.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("recording: seek end: %w", err)
	}
	return nil
}
