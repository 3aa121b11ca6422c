package listdiff

import (
	"errors"
	"fmt"
)

// ErrInvalidList is the sentinel matched by errors.Is for every InvalidListError.
var ErrInvalidList = errors.New("invalid list")

// ErrInvalidScript is returned by Apply when a script does not fit the lists.
var ErrInvalidScript = errors.New("invalid edit script")

// InvalidListError reports a snapshot that cannot be diffed because a key
// appears more than once.
type InvalidListError struct {
	// Key is the duplicated key.
	Key string

	// First and Second are the positions of the first two occurrences.
	First  int
	Second int
}

// Error implements the error interface.
func (e *InvalidListError) Error() string {
	return fmt.Sprintf("INVALID_LIST: duplicate key %q at positions %d and %d", e.Key, e.First, e.Second)
}

// Is makes errors.Is(err, ErrInvalidList) true for any InvalidListError.
func (e *InvalidListError) Is(target error) bool {
	return target == ErrInvalidList
}

// IsInvalidList returns true if err is or wraps an InvalidListError.
func IsInvalidList(err error) bool {
	var ie *InvalidListError
	return errors.As(err, &ie)
}
