// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package humanoid holds the ten-joint angle containers of the suit and the
// kinematic engine that turns absolute module orientations into parent-relative rotations.
package humanoid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"

	"github.com/relabs-tech/motion_suit/internal/orientation"
)

// Vec3 is an orientation in degrees: X roll, Y pitch, Z yaw.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", v.X, v.Y, v.Z)
}

// UpperBody holds the shirt joints.
type UpperBody[T any] struct {
	Chest         T `json:"chest"`
	LeftUpperArm  T `json:"left_upper_arm"`
	LeftLowerArm  T `json:"left_lower_arm"`
	RightUpperArm T `json:"right_upper_arm"`
	RightLowerArm T `json:"right_lower_arm"`
}

// LowerBody holds the pants joints.
type LowerBody[T any] struct {
	Waist         T `json:"waist"`
	LeftUpperLeg  T `json:"left_upper_leg"`
	LeftLowerLeg  T `json:"left_lower_leg"`
	RightUpperLeg T `json:"right_upper_leg"`
	RightLowerLeg T `json:"right_lower_leg"`
}

// Observer is notified after one half of an Angles container changed.
// Upper and lower body changes are always reported separately.
type Observer[T any] interface {
	UpperBodyChanged(a *Angles[T])
	LowerBodyChanged(a *Angles[T])
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs[T any] struct {
	Upper func(a *Angles[T])
	Lower func(a *Angles[T])
}

func (o ObserverFuncs[T]) UpperBodyChanged(a *Angles[T]) {
	if o.Upper != nil {
		o.Upper(a)
	}
}

func (o ObserverFuncs[T]) LowerBodyChanged(a *Angles[T]) {
	if o.Lower != nil {
		o.Lower(a)
	}
}

// Angles is a mutable set of ten named joint values. It is not safe for
// concurrent use: one writer per tick, observers run synchronously inside the setter.
type Angles[T any] struct {
	upper UpperBody[T]
	lower LowerBody[T]

	nextID    int
	observers []observerEntry[T]
}

type observerEntry[T any] struct {
	id int
	o  Observer[T]
}

// AbsoluteAngles are world-frame joint orientations in degrees.
type AbsoluteAngles = Angles[Vec3]

// LocalAngles are joint rotations relative to their parent joint.
type LocalAngles = Angles[quat.Number]

// Subscribe registers o and returns a function that removes it again.
// Observers are called in subscription order.
func (a *Angles[T]) Subscribe(o Observer[T]) (unsubscribe func()) {
	a.nextID++
	id := a.nextID
	a.observers = append(a.observers, observerEntry[T]{id: id, o: o})
	return func() {
		for i, e := range a.observers {
			if e.id == id {
				a.observers = append(a.observers[:i:i], a.observers[i+1:]...)
				return
			}
		}
	}
}

func (a *Angles[T]) Upper() UpperBody[T] { return a.upper }
func (a *Angles[T]) Lower() LowerBody[T] { return a.lower }

func (a *Angles[T]) Chest() T         { return a.upper.Chest }
func (a *Angles[T]) LeftUpperArm() T  { return a.upper.LeftUpperArm }
func (a *Angles[T]) LeftLowerArm() T  { return a.upper.LeftLowerArm }
func (a *Angles[T]) RightUpperArm() T { return a.upper.RightUpperArm }
func (a *Angles[T]) RightLowerArm() T { return a.upper.RightLowerArm }
func (a *Angles[T]) Waist() T         { return a.lower.Waist }
func (a *Angles[T]) LeftUpperLeg() T  { return a.lower.LeftUpperLeg }
func (a *Angles[T]) LeftLowerLeg() T  { return a.lower.LeftLowerLeg }
func (a *Angles[T]) RightUpperLeg() T { return a.lower.RightUpperLeg }
func (a *Angles[T]) RightLowerLeg() T { return a.lower.RightLowerLeg }

func (a *Angles[T]) SetChest(v T)         { a.upper.Chest = v; a.upperChanged() }
func (a *Angles[T]) SetLeftUpperArm(v T)  { a.upper.LeftUpperArm = v; a.upperChanged() }
func (a *Angles[T]) SetLeftLowerArm(v T)  { a.upper.LeftLowerArm = v; a.upperChanged() }
func (a *Angles[T]) SetRightUpperArm(v T) { a.upper.RightUpperArm = v; a.upperChanged() }
func (a *Angles[T]) SetRightLowerArm(v T) { a.upper.RightLowerArm = v; a.upperChanged() }
func (a *Angles[T]) SetWaist(v T)         { a.lower.Waist = v; a.lowerChanged() }
func (a *Angles[T]) SetLeftUpperLeg(v T)  { a.lower.LeftUpperLeg = v; a.lowerChanged() }
func (a *Angles[T]) SetLeftLowerLeg(v T)  { a.lower.LeftLowerLeg = v; a.lowerChanged() }
func (a *Angles[T]) SetRightUpperLeg(v T) { a.lower.RightUpperLeg = v; a.lowerChanged() }
func (a *Angles[T]) SetRightLowerLeg(v T) { a.lower.RightLowerLeg = v; a.lowerChanged() }

// SetUpperBody replaces all five upper joints and raises a single upper body event.
func (a *Angles[T]) SetUpperBody(u UpperBody[T]) {
	a.upper = u
	a.upperChanged()
}

// SetLowerBody replaces all five lower joints and raises a single lower body event.
func (a *Angles[T]) SetLowerBody(l LowerBody[T]) {
	a.lower = l
	a.lowerChanged()
}

// SetFullBody applies the upper body first, then the lower body.
func (a *Angles[T]) SetFullBody(u UpperBody[T], l LowerBody[T]) {
	a.SetUpperBody(u)
	a.SetLowerBody(l)
}

func (a *Angles[T]) String() string {
	return fmt.Sprintf("(Upper: %+v, Lower: %+v)", a.upper, a.lower)
}

func (a *Angles[T]) upperChanged() {
	for _, e := range a.snapshot() {
		e.o.UpperBodyChanged(a)
	}
}

func (a *Angles[T]) lowerChanged() {
	for _, e := range a.snapshot() {
		e.o.LowerBodyChanged(a)
	}
}

// snapshot lets observers unsubscribe from inside a callback.
func (a *Angles[T]) snapshot() []observerEntry[T] {
	if len(a.observers) == 0 {
		return nil
	}
	return append([]observerEntry[T](nil), a.observers...)
}

// UpperFromModules converts a shirt module set from radians to joint degrees.
func UpperFromModules(m orientation.ModuleSet) UpperBody[Vec3] {
	return UpperBody[Vec3]{
		Chest:         sampleToDegrees(m.Center),
		LeftUpperArm:  sampleToDegrees(m.LeftUpper),
		LeftLowerArm:  sampleToDegrees(m.LeftLower),
		RightUpperArm: sampleToDegrees(m.RightUpper),
		RightLowerArm: sampleToDegrees(m.RightLower),
	}
}

// LowerFromModules converts a pants module set from radians to joint degrees.
func LowerFromModules(m orientation.ModuleSet) LowerBody[Vec3] {
	return LowerBody[Vec3]{
		Waist:         sampleToDegrees(m.Center),
		LeftUpperLeg:  sampleToDegrees(m.LeftUpper),
		LeftLowerLeg:  sampleToDegrees(m.LeftLower),
		RightUpperLeg: sampleToDegrees(m.RightUpper),
		RightLowerLeg: sampleToDegrees(m.RightLower),
	}
}

const rad2Deg = 180.0 / math.Pi

func sampleToDegrees(s orientation.Sample) Vec3 {
	return Vec3{X: s.Roll * rad2Deg, Y: s.Pitch * rad2Deg, Z: s.Yaw * rad2Deg}
}
