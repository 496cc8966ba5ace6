package utils

// Int16FromBytesBE assembles a signed 16-bit value from a high byte followed by a low byte.
// Values with the high bit set are sign-extended.
func Int16FromBytesBE(high, low byte) int16 {
	return int16(uint16(high)<<8 | uint16(low))
}

// BytesFromInt16BE splits a signed 16-bit value into its high and low bytes.
func BytesFromInt16BE(v int16) (high, low byte) {
	return byte(uint16(v) >> 8), byte(uint16(v))
}
