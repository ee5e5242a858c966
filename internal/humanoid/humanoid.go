// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package humanoid

import (
	"gonum.org/v1/gonum/num/quat"
)

// BaseOrientations supplies the calibration references of both suit halves, in degrees.
type BaseOrientations interface {
	ShirtBaseOrientation() Vec3
	PantsBaseOrientation() Vec3
}

// Humanoid turns absolute joint angles into parent-relative rotations.
//
// The chain is fixed: chest → upper arms → forearms and waist → upper legs → shins.
// Each absolute update recomputes only the half that changed and publishes it on Local.
type Humanoid struct {
	// Local holds the latest parent-relative rotations. Subscribe to it to drive a rig.
	Local LocalAngles

	base BaseOrientations

	// reference is the fixed frame the chest is expressed in (an untracked headset).
	reference quat.Number

	detach func()
}

// New creates a kinematic engine reading calibration references from base.
func New(base BaseOrientations) *Humanoid {
	return &Humanoid{base: base, reference: Identity}
}

// Attach subscribes the engine to an absolute angle stream, replacing any previous one.
func (h *Humanoid) Attach(abs *AbsoluteAngles) {
	h.Detach()
	h.detach = abs.Subscribe(h)
}

// Detach stops listening to the absolute angle stream.
func (h *Humanoid) Detach() {
	if h.detach != nil {
		h.detach()
		h.detach = nil
	}
}

// UpperBodyChanged implements Observer.
func (h *Humanoid) UpperBodyChanged(abs *AbsoluteAngles) {
	h.Local.SetUpperBody(h.ComposeUpper(abs.Upper()))
}

// LowerBodyChanged implements Observer.
func (h *Humanoid) LowerBodyChanged(abs *AbsoluteAngles) {
	h.Local.SetLowerBody(h.ComposeLower(abs.Lower()))
}

// ComposeUpper removes the shirt's base yaw from every upper joint and then
// composes the arm chain relative to the chest.
func (h *Humanoid) ComposeUpper(abs UpperBody[Vec3]) UpperBody[quat.Number] {
	baseYaw := h.base.ShirtBaseOrientation().Z

	chest := EulerToQuat(subtractYaw(abs.Chest, baseYaw))
	leftUpper := EulerToQuat(subtractYaw(abs.LeftUpperArm, baseYaw))
	leftLower := EulerToQuat(subtractYaw(abs.LeftLowerArm, baseYaw))
	rightUpper := EulerToQuat(subtractYaw(abs.RightUpperArm, baseYaw))
	rightLower := EulerToQuat(subtractYaw(abs.RightLowerArm, baseYaw))

	localChest := relative(h.reference, chest)
	localLeftUpper := relative(quat.Mul(h.reference, localChest), leftUpper)
	localLeftLower := relative(quat.Mul(quat.Mul(h.reference, localChest), localLeftUpper), leftLower)
	localRightUpper := relative(quat.Mul(h.reference, localChest), rightUpper)
	localRightLower := relative(quat.Mul(quat.Mul(h.reference, localChest), localRightUpper), rightLower)

	return UpperBody[quat.Number]{
		Chest:         localChest,
		LeftUpperArm:  localLeftUpper,
		LeftLowerArm:  localLeftLower,
		RightUpperArm: localRightUpper,
		RightLowerArm: localRightLower,
	}
}

// ComposeLower uses the pants' base yaw as the root rotation of the leg chain.
// Unlike the upper body, the absolute angles are not yaw-adjusted first.
func (h *Humanoid) ComposeLower(abs LowerBody[Vec3]) LowerBody[quat.Number] {
	root := YawRotation(h.base.PantsBaseOrientation().Z)

	waist := EulerToQuat(abs.Waist)
	leftUpper := EulerToQuat(abs.LeftUpperLeg)
	leftLower := EulerToQuat(abs.LeftLowerLeg)
	rightUpper := EulerToQuat(abs.RightUpperLeg)
	rightLower := EulerToQuat(abs.RightLowerLeg)

	basis := quat.Mul(h.reference, root)
	localWaist := relative(basis, waist)
	localLeftUpper := relative(quat.Mul(basis, localWaist), leftUpper)
	localLeftLower := relative(quat.Mul(quat.Mul(basis, localWaist), localLeftUpper), leftLower)
	localRightUpper := relative(quat.Mul(basis, localWaist), rightUpper)
	localRightLower := relative(quat.Mul(quat.Mul(basis, localWaist), localRightUpper), rightLower)

	return LowerBody[quat.Number]{
		Waist:         localWaist,
		LeftUpperLeg:  localLeftUpper,
		LeftLowerLeg:  localLeftLower,
		RightUpperLeg: localRightUpper,
		RightLowerLeg: localRightLower,
	}
}

func subtractYaw(v Vec3, yaw float64) Vec3 {
	v.Z -= yaw
	return v
}
