// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package suit

import (
	"errors"
	"fmt"
	"log"

	"github.com/relabs-tech/motion_suit/internal/humanoid"
	"github.com/relabs-tech/motion_suit/internal/orientation"
)

var (
	ErrNoDevice         = errors.New("suit: device is none")
	ErrAlreadyActive    = errors.New("suit: device already active")
	ErrNotDisconnected  = errors.New("suit: device must be disconnected")
	ErrNothingConnected = errors.New("suit: no devices are connected")
)

// Driver is the transport to the suit. Every method must return promptly:
// commands and frames are expected to be buffered by the implementation.
type Driver interface {
	StartStreaming(device DeviceType) error
	EndStreaming() error
	StartCalibration(device DeviceType) error

	// PopCommand returns the oldest pending status code of one half.
	PopCommand(device DeviceType) (InputCommand, bool)

	// ReadFrame copies the latest pending frame of one half into buf and
	// returns the number of bytes copied. Zero means nothing is pending.
	ReadFrame(device DeviceType, buf []byte) (int, error)
}

// Stats counts what the manager processed since it was created.
type Stats struct {
	ShirtFrames  uint64 `json:"shirt_frames"`
	PantsFrames  uint64 `json:"pants_frames"`
	Commands     uint64 `json:"commands"`
	DecodeErrors uint64 `json:"decode_errors"`
	DriverErrors uint64 `json:"driver_errors"`
}

// Manager drives the session state of both suit halves from one polling loop.
// It is not safe for concurrent use; call every method from the loop calling Tick.
type Manager struct {
	*Stream

	driver Driver

	shirtState DeviceState
	pantsState DeviceState

	// one buffer per half so frames of different devices never alias
	shirtBuf [orientation.FrameSize]byte
	pantsBuf [orientation.FrameSize]byte

	tap   func(device DeviceType, frame orientation.Frame)
	stats Stats
}

// NewManager creates a manager with both halves disconnected.
func NewManager(driver Driver) *Manager {
	return &Manager{Stream: NewStream(), driver: driver}
}

// SetFrameTap installs fn to receive every frame applied to the absolute angles.
func (m *Manager) SetFrameTap(fn func(device DeviceType, frame orientation.Frame)) {
	m.tap = fn
}

func (m *Manager) ShirtState() DeviceState { return m.shirtState }
func (m *Manager) PantsState() DeviceState { return m.pantsState }
func (m *Manager) Stats() Stats            { return m.stats }

func (m *Manager) shirtActive() bool { return m.shirtState != Disconnected }
func (m *Manager) pantsActive() bool { return m.pantsState != Disconnected }

// IsActive reports whether device is not disconnected. All requires both halves.
func (m *Manager) IsActive(device DeviceType) bool {
	switch device {
	case Shirt:
		return m.shirtActive()
	case Pants:
		return m.pantsActive()
	case All:
		return m.shirtActive() && m.pantsActive()
	}
	return false
}

// IsAnyActive reports whether at least one half is not disconnected.
func (m *Manager) IsAnyActive() bool {
	return m.shirtActive() || m.pantsActive()
}

// Connect starts streaming device. Connecting All while one half is active only
// connects the missing half. Connecting one half while the other is active
// restarts the session with both.
func (m *Manager) Connect(device DeviceType) error {
	if device == None {
		return ErrNoDevice
	}
	if m.IsActive(device) {
		return fmt.Errorf("%w: %s", ErrAlreadyActive, device)
	}

	// restarted is the half that was streaming before a swap to All.
	restarted := None
	switch {
	case device == All && m.shirtActive():
		log.Println("suit: shirt already connected, connecting pants only")
		device = Pants
	case device == All && m.pantsActive():
		log.Println("suit: pants already connected, connecting shirt only")
		device = Shirt
	case device == Shirt && m.pantsActive(), device == Pants && m.shirtActive():
		restarted = All &^ device
		if err := m.Disconnect(); err != nil {
			return err
		}
		device = All
	}

	log.Printf("suit: connecting %s", device)
	if err := m.driver.StartStreaming(device); err != nil {
		if restarted != None {
			return fmt.Errorf("suit: reconnect %s as %s, %s left disconnected: %w", restarted, device, restarted, err)
		}
		return fmt.Errorf("suit: start streaming %s: %w", device, err)
	}
	if device.Has(Shirt) {
		m.setShirtState(Initializing)
	}
	if device.Has(Pants) {
		m.setPantsState(Initializing)
	}
	return nil
}

// Disconnect ends streaming and marks both halves disconnected before
// returning. Base orientations are kept.
func (m *Manager) Disconnect() error {
	if !m.IsAnyActive() {
		return ErrNothingConnected
	}
	log.Println("suit: disconnecting all devices")
	return m.Shutdown()
}

// Shutdown is Disconnect without the guard, for process exit.
func (m *Manager) Shutdown() error {
	err := m.driver.EndStreaming()

	m.shirtBuf = [orientation.FrameSize]byte{}
	m.pantsBuf = [orientation.FrameSize]byte{}
	m.setShirtState(Disconnected)
	m.setPantsState(Disconnected)

	if err != nil {
		return fmt.Errorf("suit: end streaming: %w", err)
	}
	return nil
}

// Calibrate asks the device to calibrate. Every requested half must be disconnected.
func (m *Manager) Calibrate(device DeviceType) error {
	if device == None {
		return ErrNoDevice
	}
	if (device.Has(Shirt) && m.shirtActive()) || (device.Has(Pants) && m.pantsActive()) {
		return fmt.Errorf("%w: %s", ErrNotDisconnected, device)
	}
	log.Printf("suit: calibrating %s", device)
	if err := m.driver.StartCalibration(device); err != nil {
		return fmt.Errorf("suit: start calibration %s: %w", device, err)
	}
	return nil
}

// Tick drains pending status codes, then reads at most one frame per active
// half and applies it. All failures of the tick are joined into the result.
func (m *Manager) Tick() error {
	var errs []error

	errs = append(errs, m.drainCommands(Shirt)...)
	errs = append(errs, m.drainCommands(Pants)...)

	if m.shirtActive() {
		if err := m.pollFrame(Shirt); err != nil {
			errs = append(errs, err)
		}
	}
	if m.pantsActive() {
		if err := m.pollFrame(Pants); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) drainCommands(device DeviceType) []error {
	var errs []error
	for {
		cmd, ok := m.driver.PopCommand(device)
		if !ok {
			return errs
		}
		m.stats.Commands++
		if err := m.handleCommand(device, cmd); err != nil {
			errs = append(errs, err)
		}
	}
}

func (m *Manager) handleCommand(device DeviceType, cmd InputCommand) error {
	switch cmd {
	case CommandDeviceConnected:
		m.setState(device, Initializing)
	case CommandDeviceDisconnected:
		m.setState(device, Disconnected)
	case CommandCalibrationStarted:
		m.setState(device, Calibrating)
	case CommandCalibrationFinished:
		log.Printf("suit: %s calibration finished", device)
		if err := m.Disconnect(); err != nil && !errors.Is(err, ErrNothingConnected) {
			return err
		}
	case CommandResetOrientation:
		m.ResetFullBodyBaseOrientation()
	case CommandErrorCalibrationFailed:
		m.deviceFailed(device, CalibrationFailed)
	case CommandErrorNoCalibration:
		m.deviceFailed(device, NoCalibration)
	case CommandErrorNoShirtPants:
		m.deviceFailed(device, UnknownDevice)
	default:
		log.Printf("suit: %s sent unknown command %d", device, int(cmd))
	}
	return nil
}

func (m *Manager) deviceFailed(device DeviceType, err DeviceError) {
	m.setState(device, Connected)
	log.Printf("suit: %s error: %v", device, err)
	m.fail(device, err)
}

func (m *Manager) pollFrame(device DeviceType) error {
	buf := m.buffer(device)
	n, err := m.driver.ReadFrame(device, buf)
	if err != nil {
		m.stats.DriverErrors++
		return fmt.Errorf("suit: read %s frame: %w", device, err)
	}
	if n == 0 {
		return nil
	}

	set, err := orientation.Decode(buf[:n])
	if err != nil {
		m.stats.DecodeErrors++
		return fmt.Errorf("suit: %s: %w", device, err)
	}

	switch m.state(device) {
	case Initializing:
		if !set.IsInitialized() {
			return nil
		}
		m.setState(device, Streaming)
		m.apply(device, set, buf)
		m.ResetFullBodyBaseOrientation()
	case Streaming:
		m.apply(device, set, buf)
	}
	return nil
}

func (m *Manager) apply(device DeviceType, set orientation.ModuleSet, raw []byte) {
	if device == Shirt {
		m.stats.ShirtFrames++
		m.Absolute.SetUpperBody(humanoid.UpperFromModules(set))
	} else {
		m.stats.PantsFrames++
		m.Absolute.SetLowerBody(humanoid.LowerFromModules(set))
	}
	if m.tap != nil {
		var f orientation.Frame
		copy(f[:], raw)
		m.tap(device, f)
	}
}

func (m *Manager) buffer(device DeviceType) []byte {
	if device == Shirt {
		return m.shirtBuf[:]
	}
	return m.pantsBuf[:]
}

func (m *Manager) state(device DeviceType) DeviceState {
	if device == Shirt {
		return m.shirtState
	}
	return m.pantsState
}

func (m *Manager) setState(device DeviceType, next DeviceState) {
	if device == Shirt {
		m.setShirtState(next)
	} else {
		m.setPantsState(next)
	}
}

func (m *Manager) setShirtState(next DeviceState) {
	if m.shirtState == next {
		return
	}
	change := StateChange{Previous: m.shirtState, Next: next}
	m.shirtState = next
	log.Printf("suit: shirt %s -> %s", change.Previous, change.Next)
	m.changeState(Shirt, change)
}

func (m *Manager) setPantsState(next DeviceState) {
	if m.pantsState == next {
		return
	}
	change := StateChange{Previous: m.pantsState, Next: next}
	m.pantsState = next
	log.Printf("suit: pants %s -> %s", change.Previous, change.Next)
	m.changeState(Pants, change)
}
