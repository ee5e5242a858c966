// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package suit

import (
	"github.com/relabs-tech/motion_suit/internal/orientation"
)

// mockCalibrationPolls is how many empty command polls a mock calibration lasts.
const mockCalibrationPolls = 100

// MockDriver is an in-memory Driver that behaves like a well calibrated suit:
// it acknowledges every request and streams orientation.NewMockSource frames.
type MockDriver struct {
	streaming DeviceType

	shirt mockHalf
	pants mockHalf
}

type mockHalf struct {
	source      orientation.FrameSource
	queue       []InputCommand
	calibrating int
}

// NewMockDriver creates a mock driver for both halves.
func NewMockDriver() *MockDriver {
	return &MockDriver{
		shirt: mockHalf{source: orientation.NewMockSource()},
		pants: mockHalf{source: orientation.NewMockSource()},
	}
}

func (d *MockDriver) StartStreaming(device DeviceType) error {
	d.streaming |= device
	d.each(device, func(h *mockHalf) {
		h.queue = append(h.queue, CommandDeviceConnected)
	})
	return nil
}

func (d *MockDriver) EndStreaming() error {
	d.streaming = None
	d.shirt.queue, d.shirt.calibrating = nil, 0
	d.pants.queue, d.pants.calibrating = nil, 0
	return nil
}

func (d *MockDriver) StartCalibration(device DeviceType) error {
	d.each(device, func(h *mockHalf) {
		h.queue = append(h.queue, CommandCalibrationStarted)
		h.calibrating = mockCalibrationPolls
	})
	return nil
}

func (d *MockDriver) PopCommand(device DeviceType) (InputCommand, bool) {
	h := d.half(device)
	if h == nil {
		return 0, false
	}
	if len(h.queue) > 0 {
		cmd := h.queue[0]
		h.queue = h.queue[1:]
		return cmd, true
	}
	if h.calibrating > 0 {
		h.calibrating--
		if h.calibrating == 0 {
			return CommandCalibrationFinished, true
		}
	}
	return 0, false
}

func (d *MockDriver) ReadFrame(device DeviceType, buf []byte) (int, error) {
	h := d.half(device)
	if h == nil || !d.streaming.Has(device) {
		return 0, nil
	}
	f, err := h.source.Next()
	if err != nil {
		return 0, err
	}
	return copy(buf, f[:]), nil
}

func (d *MockDriver) half(device DeviceType) *mockHalf {
	switch device {
	case Shirt:
		return &d.shirt
	case Pants:
		return &d.pants
	}
	return nil
}

func (d *MockDriver) each(device DeviceType, fn func(h *mockHalf)) {
	if device.Has(Shirt) {
		fn(&d.shirt)
	}
	if device.Has(Pants) {
		fn(&d.pants)
	}
}
