package vote

import (
	"errors"
	"fmt"
)

// ErrDecode matches every DecodeError via errors.Is.
var ErrDecode = errors.New("vote decode error")

// DecodeError reports a payload that is not a usable vote account.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrDecode, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrDecode, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

func decodeErr(reason string, err error) error {
	return &DecodeError{Reason: reason, Err: err}
}
