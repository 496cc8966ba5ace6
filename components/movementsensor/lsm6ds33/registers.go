package lsm6ds33

// DefaultAddress is the chip's bus address with SA0 pulled high, as on the Pololu carrier boards.
const DefaultAddress byte = 0x6A

// ExpectedIdentity is the fixed WHO_AM_I value of an LSM6DS33.
const ExpectedIdentity byte = 0x69

// Register sub-addresses used by the driver.
const (
	RegWhoAmI  byte = 0x0F
	RegCtrl1XL byte = 0x10
	RegCtrl2G  byte = 0x11
	RegStatus  byte = 0x1E

	RegOutZLG  byte = 0x26
	RegOutZHG  byte = 0x27
	RegOutXLXL byte = 0x28
	RegOutXHXL byte = 0x29
	RegOutYLXL byte = 0x2A
	RegOutYHXL byte = 0x2B
)

// Control register payloads written by Enable.
const (
	// Ctrl1XLValue selects a 6.66 kHz output data rate at +/-2 g full scale.
	Ctrl1XLValue byte = 0xA0
	// Ctrl2GValue selects a 1.66 kHz output data rate.
	Ctrl2GValue byte = 0x80
)

// Status register bits.
const (
	StatusAccelReady byte = 1 << 0
	StatusGyroReady  byte = 1 << 1
)

// AccelReady reports whether the status byte flags a new accelerometer sample.
func AccelReady(status byte) bool {
	return status&StatusAccelReady != 0
}

// GyroReady reports whether the status byte flags a new gyroscope sample.
func GyroReady(status byte) bool {
	return status&StatusGyroReady != 0
}
