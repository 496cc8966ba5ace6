package lsm6ds33

import (
	"go.viam.com/sonarimu/utils"
)

// Conversion constants.
const (
	// LinearAccelerationScale is the accelerometer sensitivity in milli-g per LSB at +/-2 g.
	LinearAccelerationScale = 0.061
	// AngularRateScale is the gyroscope sensitivity in milli-degrees per second per LSB.
	AngularRateScale = 4.375
	// StandardGravity in m/s^2.
	StandardGravity = 9.80665
	// DegreesToRadians as used by the device's reference code.
	DegreesToRadians = 0.017453293
)

// RawSample assembles the signed 16-bit output of a register pair.
func RawSample(high, low byte) int16 {
	return utils.Int16FromBytesBE(high, low)
}

// AngularRate converts a raw gyroscope sample to radians per second.
func AngularRate(raw int16) float64 {
	return float64(raw) * AngularRateScale * DegreesToRadians / 1000.0
}

// LinearAcceleration converts a raw accelerometer sample to meters per second squared.
func LinearAcceleration(raw int16) float64 {
	return float64(raw) * LinearAccelerationScale * StandardGravity / 1000.0
}
