package monitoring

import (
	"errors"
	"fmt"
)

// ErrInvariant is the sentinel wrapped by every InvariantError.
var ErrInvariant = errors.New("invariant violation")

// InvariantError describes a broken internal consistency rule: an event
// applied out of order, a cache whose block count disagrees with its cell, a
// task dispatched to a receiver that cannot handle it. These are never
// repaired; the run is aborted.
type InvariantError struct {
	Component string
	Msg       string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvariant, e.Component, e.Msg)
}

func (e *InvariantError) Unwrap() error { return ErrInvariant }

// Invariantf panics with an *InvariantError. Use it where an assertion
// would sit; goroutine boundaries convert the panic with RecoverInvariant.
func Invariantf(component, format string, args ...interface{}) {
	panic(&InvariantError{Component: component, Msg: fmt.Sprintf(format, args...)})
}

// RecoverInvariant converts an in-flight *InvariantError panic into *errp.
// Other panics are re-raised untouched. It must be called directly by defer.
func RecoverInvariant(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	ie, ok := r.(*InvariantError)
	if !ok {
		panic(r)
	}
	Component(ie.Component)("fatal: %s", ie.Msg)
	if errp != nil {
		*errp = ie
	}
}
