//go:build !linux

package affinity

import "runtime"

// HostMask falls back to runtime.NumCPU with every CPU reported usable,
// since this package's Linux path is the only one backed by a real
// affinity syscall.
func HostMask() ([]bool, error) {
	mask := make([]bool, runtime.NumCPU())
	for i := range mask {
		mask[i] = true
	}
	return mask, nil
}

// UsableCPUs returns runtime.NumCPU.
func UsableCPUs() (int, error) {
	return runtime.NumCPU(), nil
}
