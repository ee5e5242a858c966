// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package recording

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/relabs-tech/motion_suit/internal/humanoid"
	"github.com/relabs-tech/motion_suit/internal/orientation"
	"github.com/relabs-tech/motion_suit/internal/suit"
)

var (
	ErrTruncatedRecord = errors.New("recording: truncated record")
	ErrUnknownDevice   = errors.New("recording: unknown device tag")
)

// record layout: uint32 LE timestamp in ms, one device tag byte, one raw frame
const recordSize = 4 + 1 + orientation.FrameSize

// Stats summarizes one playback.
type Stats struct {
	Header      Header
	ShirtFrames uint64
	PantsFrames uint64
	// LastTimestamp is the timestamp of the last applied record.
	LastTimestamp time.Duration
}

// Player replays a recording into a suit stream.
type Player struct {
	Stream *suit.Stream

	// Realtime makes Play wait for each record's timestamp before applying it.
	// When false, records are applied as fast as they can be read.
	Realtime bool
}

// NewPlayer creates a realtime player writing into stream.
func NewPlayer(stream *suit.Stream) *Player {
	return &Player{Stream: stream, Realtime: true}
}

// Play validates the header, sets the stream's base orientations from it and
// applies every record in file order. A clean end of file between records
// ends playback without error. Nothing is applied if the header is rejected.
func (p *Player) Play(ctx context.Context, r io.Reader) (Stats, error) {
	br := bufio.NewReader(r)

	h, err := ReadHeader(br)
	if err != nil {
		return Stats{}, err
	}
	if err := h.Validate(); err != nil {
		return Stats{}, err
	}
	stats := Stats{Header: h}
	log.Printf("playback: %s", h)

	p.Stream.SetShirtBaseOrientation(h.ShirtBase.Vec3())
	p.Stream.SetPantsBaseOrientation(h.PantsBase.Vec3())

	start := time.Now()
	var rec [recordSize]byte
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		n, err := io.ReadFull(br, rec[:])
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("%w: got %d of %d bytes after %d records",
				ErrTruncatedRecord, n, recordSize, stats.ShirtFrames+stats.PantsFrames)
		}

		ts := time.Duration(binary.LittleEndian.Uint32(rec[0:4])) * time.Millisecond
		device := suit.DeviceType(rec[4])
		if device != suit.Shirt && device != suit.Pants {
			return stats, fmt.Errorf("%w: %d", ErrUnknownDevice, rec[4])
		}

		if p.Realtime {
			if err := sleepUntil(ctx, start.Add(ts)); err != nil {
				return stats, err
			}
		}

		var frame orientation.Frame
		copy(frame[:], rec[5:])
		set := orientation.DecodeFrame(&frame)
		if device == suit.Shirt {
			p.Stream.Absolute.SetUpperBody(humanoid.UpperFromModules(set))
			stats.ShirtFrames++
		} else {
			p.Stream.Absolute.SetLowerBody(humanoid.LowerFromModules(set))
			stats.PantsFrames++
		}
		stats.LastTimestamp = ts
	}
}

func sleepUntil(ctx context.Context, deadline time.Time) error {
	d := time.Until(deadline)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
