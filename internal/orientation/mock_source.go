// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"time"
)

// FrameSource is anything that can provide raw frames over time.
type FrameSource interface {
	Next() (Frame, error)
}

type mockSource struct {
	start time.Time
	now   func() time.Time
}

// NewMockSource creates a mock frame source that
// generates smoothly changing module angles.
func NewMockSource() FrameSource {
	return &mockSource{start: time.Now(), now: time.Now}
}

func (m *mockSource) Next() (Frame, error) {
	return Encode(MockModuleSet(m.now().Sub(m.start).Seconds())), nil
}

// MockModuleSet returns a swinging-arms pose at elapsed seconds. All values are
// well inside the field ranges so the result survives Encode unclamped.
func MockModuleSet(elapsed float64) ModuleSet {
	deg := math.Pi / 180
	heading := 10 * deg * math.Sin(elapsed*0.2)
	swing := 40 * deg * math.Sin(elapsed)

	return ModuleSet{
		Center:     Sample{Roll: 2 * deg * math.Sin(elapsed*0.5), Pitch: 3 * deg, Yaw: heading},
		LeftUpper:  Sample{Roll: 5 * deg, Pitch: swing, Yaw: heading},
		LeftLower:  Sample{Roll: 5 * deg, Pitch: swing + 20*deg, Yaw: heading},
		RightUpper: Sample{Roll: -5 * deg, Pitch: -swing, Yaw: heading},
		RightLower: Sample{Roll: -5 * deg, Pitch: -swing + 20*deg, Yaw: heading},
	}
}
