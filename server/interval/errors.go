package interval

import (
	"errors"
	"fmt"
)

var (
	// ErrUnrecognizedDescriptor is returned for malformed descriptors.
	ErrUnrecognizedDescriptor = errors.New("unrecognized interval descriptor")

	// ErrNotQuantity is returned when "off" is parsed as a number of seconds.
	ErrNotQuantity = fmt.Errorf("%w: %q is not a quantity", ErrUnrecognizedDescriptor, Off)

	// ErrBelowMinimum matches every *BelowMinimumError.
	ErrBelowMinimum = errors.New("interval below minimum")

	// ErrNonIntegerQuantity is returned when the editor quantity is not a positive integer.
	ErrNonIntegerQuantity = errors.New("quantity must be a positive whole number")

	// ErrUnknownUnit is returned for units outside seconds, minutes, hours, days and weeks.
	ErrUnknownUnit = errors.New("unknown interval unit")

	// ErrOverflow is returned when a quantity and unit do not fit in 64 bits of seconds.
	ErrOverflow = errors.New("interval too large")
)

// BelowMinimumError carries the threshold a rejected interval violated.
type BelowMinimumError struct {
	Seconds uint64
	Minimum uint64
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("interval of %d seconds is below the minimum of %d seconds", e.Seconds, e.Minimum)
}

// Is lets errors.Is(err, ErrBelowMinimum) match.
func (e *BelowMinimumError) Is(target error) bool {
	return target == ErrBelowMinimum
}
