//go:build linux

// Package affinity reports the host's usable CPU count and affinity mask,
// for cmd/schedctl --from-host to size a plausible simulated topology. It
// intentionally does not discover SMT/core/package nesting — that is an
// external collaborator's job in the scheduler package itself.
package affinity

import "golang.org/x/sys/unix"

// maxProbeCPUs bounds the sched_getaffinity bit scan; Linux CPUSet masks
// comfortably cover far more CPUs than any simulated topology here needs.
const maxProbeCPUs = 1024

// HostMask reports the calling process's current CPU affinity mask as one
// bool per logical CPU id, via sched_getaffinity(2).
func HostMask() ([]bool, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil, err
	}
	highest := -1
	for i := 0; i < maxProbeCPUs; i++ {
		if set.IsSet(i) {
			highest = i
		}
	}
	mask := make([]bool, highest+1)
	for i := range mask {
		mask[i] = set.IsSet(i)
	}
	return mask, nil
}

// UsableCPUs counts the CPUs in the calling process's current affinity
// mask.
func UsableCPUs() (int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return 0, err
	}
	return set.Count(), nil
}
