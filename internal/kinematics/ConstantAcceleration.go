package kinematics

import "math"

// ConstantAcceleration implements MotionModel with fixed acceleration and
// braking rates. Agents use the same rate for both.
type ConstantAcceleration struct {
	AAcc    float64 `json:"a_acc"` // acceleration, units/s²
	ADcc    float64 `json:"a_dcc"` // braking deceleration, units/s² (positive)
	VMaxVal float64 `json:"v_max"` // cruise speed, units/s
}

// Symmetric returns a model that brakes as hard as it accelerates.
func Symmetric(accel, vmax float64) ConstantAcceleration {
	return ConstantAcceleration{AAcc: accel, ADcc: accel, VMaxVal: vmax}
}

func (c ConstantAcceleration) VMax() float64 { return c.VMaxVal }

func (c ConstantAcceleration) BrakingDistance(v float64) float64 {
	if c.ADcc <= 0 {
		return math.Inf(1)
	}
	return (v * v) / (2 * c.ADcc)
}

func (c ConstantAcceleration) AccelerateStep(v, dt float64) float64 {
	if c.AAcc <= 0 {
		return c.VMaxVal
	}
	return math.Min(v+c.AAcc*dt, c.VMaxVal)
}

func (c ConstantAcceleration) DecelerateStep(v, dt float64) (float64, bool) {
	newV := v - c.ADcc*dt
	if newV < 0 {
		return 0, true
	}
	return newV, false
}

// Duration returns the ideal time to cover length from rest to rest:
// a trapezoid when cruise speed is reached, a triangle otherwise.
func (c ConstantAcceleration) Duration(length float64) float64 {
	if length <= 0 {
		return 0
	}
	v := c.VMaxVal
	dAcc := v * v / (2 * c.AAcc)
	dDcc := v * v / (2 * c.ADcc)
	if length >= dAcc+dDcc {
		return v/c.AAcc + v/c.ADcc + (length-dAcc-dDcc)/v
	}
	peak := math.Sqrt(2 * length * c.AAcc * c.ADcc / (c.AAcc + c.ADcc))
	return peak/c.AAcc + peak/c.ADcc
}
