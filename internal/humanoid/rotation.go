// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package humanoid

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Identity is the no-op rotation.
var Identity = quat.Number{Real: 1}

const deg2Rad = math.Pi / 180.0

// EulerToQuat builds a rotation from degrees using the Z-Y-X order:
// yaw about Z, then pitch about Y, then roll about X.
func EulerToQuat(v Vec3) quat.Number {
	qz := axisRotation(0, 0, 1, v.Z)
	qy := axisRotation(0, 1, 0, v.Y)
	qx := axisRotation(1, 0, 0, v.X)
	return quat.Mul(quat.Mul(qz, qy), qx)
}

// YawRotation is a rotation of deg degrees about the vertical (Z) axis.
func YawRotation(deg float64) quat.Number {
	return axisRotation(0, 0, 1, deg)
}

// QuatToEuler converts a unit rotation back to Z-Y-X Euler degrees.
func QuatToEuler(q quat.Number) Vec3 {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag

	sinrCosp := 2 * (w*x + y*z)
	cosrCosp := 1 - 2*(x*x+y*y)
	roll := math.Atan2(sinrCosp, cosrCosp)

	sinp := 2 * (w*y - z*x)
	var pitch float64
	if math.Abs(sinp) >= 1 {
		pitch = math.Copysign(math.Pi/2, sinp)
	} else {
		pitch = math.Asin(sinp)
	}

	sinyCosp := 2 * (w*z + x*y)
	cosyCosp := 1 - 2*(y*y+z*z)
	yaw := math.Atan2(sinyCosp, cosyCosp)

	return Vec3{X: roll / deg2Rad, Y: pitch / deg2Rad, Z: yaw / deg2Rad}
}

// relative returns parent⁻¹·child, the child rotation expressed in the parent frame.
func relative(parent, child quat.Number) quat.Number {
	return quat.Mul(quat.Conj(parent), child)
}

func axisRotation(x, y, z, deg float64) quat.Number {
	half := deg * deg2Rad / 2
	s := math.Sin(half)
	return quat.Number{Real: math.Cos(half), Imag: x * s, Jmag: y * s, Kmag: z * s}
}
