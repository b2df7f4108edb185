//go:build !linux

package partition

// PinToCPU is a no-op outside Linux.
func PinToCPU(cpu int) error { return nil }
