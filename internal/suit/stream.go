// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package suit

import (
	"github.com/relabs-tech/motion_suit/internal/humanoid"
)

// EventHandler receives device events. Every method names the suit half the
// event belongs to, so shirt and pants events are never conflated.
type EventHandler interface {
	StateChanged(device DeviceType, change StateChange)
	Notified(device DeviceType, n Notification)
	Failed(device DeviceType, err DeviceError)
}

// EventFuncs adapts plain functions to EventHandler. Nil fields are skipped.
type EventFuncs struct {
	OnStateChange  func(device DeviceType, change StateChange)
	OnNotification func(device DeviceType, n Notification)
	OnError        func(device DeviceType, err DeviceError)
}

func (f EventFuncs) StateChanged(device DeviceType, change StateChange) {
	if f.OnStateChange != nil {
		f.OnStateChange(device, change)
	}
}

func (f EventFuncs) Notified(device DeviceType, n Notification) {
	if f.OnNotification != nil {
		f.OnNotification(device, n)
	}
}

func (f EventFuncs) Failed(device DeviceType, err DeviceError) {
	if f.OnError != nil {
		f.OnError(device, err)
	}
}

// Stream owns the absolute angles of the suit and the base orientations
// captured at calibration time. It is the single writer of both.
type Stream struct {
	// Absolute holds world-frame joint orientations in degrees.
	Absolute humanoid.AbsoluteAngles

	shirtBase humanoid.Vec3
	pantsBase humanoid.Vec3

	nextID   int
	handlers []handlerEntry
}

type handlerEntry struct {
	id int
	h  EventHandler
}

// NewStream returns an empty stream with zero base orientations.
func NewStream() *Stream {
	return &Stream{}
}

// Subscribe registers h for device events and returns a function removing it.
func (s *Stream) Subscribe(h EventHandler) (unsubscribe func()) {
	s.nextID++
	id := s.nextID
	s.handlers = append(s.handlers, handlerEntry{id: id, h: h})
	return func() {
		for i, e := range s.handlers {
			if e.id == id {
				s.handlers = append(s.handlers[:i:i], s.handlers[i+1:]...)
				return
			}
		}
	}
}

// ShirtBaseOrientation implements humanoid.BaseOrientations.
func (s *Stream) ShirtBaseOrientation() humanoid.Vec3 { return s.shirtBase }

// PantsBaseOrientation implements humanoid.BaseOrientations.
func (s *Stream) PantsBaseOrientation() humanoid.Vec3 { return s.pantsBase }

// SetShirtBaseOrientation replaces the shirt reference and notifies handlers.
func (s *Stream) SetShirtBaseOrientation(v humanoid.Vec3) {
	s.shirtBase = v
	s.notify(Shirt, NotificationResetOrientation)
}

// SetPantsBaseOrientation replaces the pants reference and notifies handlers.
func (s *Stream) SetPantsBaseOrientation(v humanoid.Vec3) {
	s.pantsBase = v
	s.notify(Pants, NotificationResetOrientation)
}

// ResetShirtBaseOrientation captures the current chest orientation.
func (s *Stream) ResetShirtBaseOrientation() {
	s.SetShirtBaseOrientation(s.Absolute.Chest())
}

// ResetPantsBaseOrientation captures the current waist orientation.
func (s *Stream) ResetPantsBaseOrientation() {
	s.SetPantsBaseOrientation(s.Absolute.Waist())
}

// ResetFullBodyBaseOrientation resets the shirt, then the pants.
func (s *Stream) ResetFullBodyBaseOrientation() {
	s.ResetShirtBaseOrientation()
	s.ResetPantsBaseOrientation()
}

// ResetBaseOrientation resets the halves selected by device.
func (s *Stream) ResetBaseOrientation(device DeviceType) {
	if device.Has(Shirt) {
		s.ResetShirtBaseOrientation()
	}
	if device.Has(Pants) {
		s.ResetPantsBaseOrientation()
	}
}

func (s *Stream) changeState(device DeviceType, change StateChange) {
	for _, e := range s.snapshot() {
		e.h.StateChanged(device, change)
	}
}

func (s *Stream) notify(device DeviceType, n Notification) {
	for _, e := range s.snapshot() {
		e.h.Notified(device, n)
	}
}

func (s *Stream) fail(device DeviceType, err DeviceError) {
	for _, e := range s.snapshot() {
		e.h.Failed(device, err)
	}
}

func (s *Stream) snapshot() []handlerEntry {
	if len(s.handlers) == 0 {
		return nil
	}
	return append([]handlerEntry(nil), s.handlers...)
}
