// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package suit tracks the shirt and pants sessions: device lifecycle, base
// orientation calibration and the absolute angle stream.
package suit

import (
	"fmt"
	"strings"
)

// DeviceType selects one or both halves of the suit. Values are bit flags.
type DeviceType int

const (
	None  DeviceType = 0
	Shirt DeviceType = 1
	Pants DeviceType = 2
	All   DeviceType = Shirt | Pants
)

func (d DeviceType) String() string {
	switch d {
	case None:
		return "none"
	case Shirt:
		return "shirt"
	case Pants:
		return "pants"
	case All:
		return "all"
	}
	return fmt.Sprintf("device(%d)", int(d))
}

// Has reports whether d includes every flag of other.
func (d DeviceType) Has(other DeviceType) bool {
	return other != None && d&other == other
}

// ParseDeviceType accepts "none", "shirt", "pants", "all" or "both".
func ParseDeviceType(s string) (DeviceType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return None, nil
	case "shirt", "upper":
		return Shirt, nil
	case "pants", "lower":
		return Pants, nil
	case "all", "both":
		return All, nil
	}
	return None, fmt.Errorf("unknown device %q", s)
}

func (d DeviceType) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *DeviceType) UnmarshalText(b []byte) error {
	v, err := ParseDeviceType(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// DeviceState is the session state of one suit half.
type DeviceState int

const (
	Disconnected DeviceState = iota
	Initializing
	Connected
	Calibrating
	Streaming
)

func (s DeviceState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Initializing:
		return "initializing"
	case Connected:
		return "connected"
	case Calibrating:
		return "calibrating"
	case Streaming:
		return "streaming"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s DeviceState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *DeviceState) UnmarshalText(b []byte) error {
	for v := Disconnected; v <= Streaming; v++ {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown device state %q", b)
}

// StateChange is a (previous, next) pair emitted on every state transition.
type StateChange struct {
	Previous DeviceState `json:"previous"`
	Next     DeviceState `json:"next"`
}

func (c StateChange) String() string {
	return fmt.Sprintf("(Previous: %s, Next: %s)", c.Previous, c.Next)
}

// InputCommand is a status code reported by the device firmware.
type InputCommand int

const (
	CommandResetOrientation    InputCommand = 1
	CommandCalibrationFinished InputCommand = 4
	CommandCalibrationStarted  InputCommand = 5
	CommandDeviceConnected     InputCommand = 128
	CommandDeviceDisconnected  InputCommand = 129

	CommandErrorNoCalibration     InputCommand = -1
	CommandErrorNoShirtPants      InputCommand = -2
	CommandErrorCalibrationFailed InputCommand = -3
)

func (c InputCommand) String() string {
	switch c {
	case CommandResetOrientation:
		return "reset-orientation"
	case CommandCalibrationFinished:
		return "calibration-finished"
	case CommandCalibrationStarted:
		return "calibration-started"
	case CommandDeviceConnected:
		return "device-connected"
	case CommandDeviceDisconnected:
		return "device-disconnected"
	case CommandErrorNoCalibration:
		return "error-no-calibration"
	case CommandErrorNoShirtPants:
		return "error-no-shirt-pants"
	case CommandErrorCalibrationFailed:
		return "error-calibration-failed"
	}
	return fmt.Sprintf("command(%d)", int(c))
}

// DeviceError is a failure reported by the device. It aborts the operation in
// progress but not the session.
type DeviceError int

const (
	CalibrationFailed DeviceError = iota + 1
	NoCalibration
	UnknownDevice
)

func (e DeviceError) Error() string {
	switch e {
	case CalibrationFailed:
		return "calibration failed"
	case NoCalibration:
		return "device is not calibrated"
	case UnknownDevice:
		return "unknown device, defaulting to shirt"
	}
	return fmt.Sprintf("device error %d", int(e))
}

func (e DeviceError) MarshalText() ([]byte, error) {
	return []byte(e.Error()), nil
}

// Notification is a non-error event raised for one suit half.
type Notification int

const (
	NotificationResetOrientation Notification = iota + 1
)

func (n Notification) String() string {
	if n == NotificationResetOrientation {
		return "reset-orientation"
	}
	return fmt.Sprintf("notification(%d)", int(n))
}

func (n Notification) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}
