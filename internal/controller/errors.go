package controller

import (
	"errors"
	"fmt"
)

// FatalError halts the appliance. Indicators are left showing busy.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string { return fmt.Sprintf("fatal: %s: %v", e.Op, e.Err) }

func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether err is (or wraps) a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
