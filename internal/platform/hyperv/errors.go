package hyperv

import (
	"errors"
	"fmt"
)

// ErrVMNotFound is returned when a named VM does not exist.
var ErrVMNotFound = errors.New("vm not found")

// NameCollisionError is returned when provisioning targets a name that
// already exists. Collisions are never silently resolved.
type NameCollisionError struct {
	Name string
}

func (e *NameCollisionError) Error() string {
	return fmt.Sprintf("vm %q already exists", e.Name)
}

// IsNameCollision reports whether err is a NameCollisionError.
func IsNameCollision(err error) bool {
	var nce *NameCollisionError
	return errors.As(err, &nce)
}

// CommandError is returned when a PowerShell invocation exits non-zero.
type CommandError struct {
	Op     string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %v: %s", e.Op, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
