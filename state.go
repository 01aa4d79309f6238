package scheduler

import "sync/atomic"

// LifecycleState is a CPU entry's position in the init → start →
// (enable/disable)* → stop lifecycle spec §3 describes.
type LifecycleState uint32

const (
	LifecycleInit LifecycleState = iota
	LifecycleEnabled
	LifecycleDisabled
	LifecycleStopped
)

func (s LifecycleState) String() string {
	switch s {
	case LifecycleInit:
		return "init"
	case LifecycleEnabled:
		return "enabled"
	case LifecycleDisabled:
		return "disabled"
	case LifecycleStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// fastState is a lock-free, cache-line-padded atomic state cell, ported
// from the teacher's event-loop FastState: pure CAS transitions, no mutex,
// padding on both sides to avoid false sharing between CPUs' lifecycle
// cells sitting in the same slice.
type fastState struct {
	_ [64]byte
	v atomic.Uint32
	_ [60]byte
}

func newFastState(initial LifecycleState) *fastState {
	s := &fastState{}
	s.v.Store(uint32(initial))
	return s
}

func (s *fastState) Load() LifecycleState { return LifecycleState(s.v.Load()) }

func (s *fastState) Store(state LifecycleState) { s.v.Store(uint32(state)) }

func (s *fastState) TryTransition(from, to LifecycleState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

func (s *fastState) IsEnabled() bool { return s.Load() == LifecycleEnabled }
