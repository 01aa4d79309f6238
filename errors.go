package scheduler

import (
	"errors"
	"fmt"
)

// Kind classifies a boundary error per spec §7. InvariantViolation is
// deliberately absent here — invariant violations panic rather than
// returning an error (see invariant below).
type Kind int

const (
	// InvalidArgument covers an out-of-range mode, latency-nice value, or
	// IRQ vector.
	InvalidArgument Kind = iota
	// NoSuchThread is returned when a thread id is unknown or the thread
	// has already been destroyed.
	NoSuchThread
	// NotPermitted covers cross-team latency-nice changes or IRQ
	// colocation requests without privilege.
	NotPermitted
	// NotInitialized is returned when the IRQ-affinity map has not been
	// created yet.
	NotInitialized
	// OutOfMemory covers a full affinitized-IRQ list or a failed map
	// insertion.
	OutOfMemory
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid argument"
	case NoSuchThread:
		return "no such thread"
	case NotPermitted:
		return "not permitted"
	case NotInitialized:
		return "not initialized"
	case OutOfMemory:
		return "out of memory"
	default:
		return "unknown error"
	}
}

// SchedulerError is the concrete error type returned across the scheduler's
// exported boundary (spec §7). It carries a Kind for programmatic matching
// via errors.Is/errors.As, and an optional wrapped cause.
type SchedulerError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *SchedulerError) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause (nil if none) to errors.Is/errors.As.
func (e *SchedulerError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, target) match when target is (or wraps) a
// *SchedulerError of the same Kind, e.g. errors.Is(err,
// &SchedulerError{Kind: NoSuchThread}). Kind itself is not an error value,
// so a bare Kind cannot be passed as the target.
func (e *SchedulerError) Is(target error) bool {
	var other *SchedulerError
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

func newError(kind Kind, format string, args ...any) *SchedulerError {
	return &SchedulerError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, cause error, format string, args ...any) *SchedulerError {
	return &SchedulerError{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// invariant panics with an InvariantViolation-style message if cond is
// false. Spec §7 classifies these as fatal: "idle thread expected but
// absent", "thread enqueued without a core", "weight <= 0 for active
// thread", "min_vruntime regressed" all route through here.
func invariant(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("scheduler: invariant violation: "+format, args...))
	}
}
