package arch

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrUnsupported is matched by every error returned when an architecture
// cannot be used on this host.
var ErrUnsupported = errors.New("unsupported guest architecture")

// UnknownError is returned for architecture names that are not declared at all.
type UnknownError struct {
	Name string
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("unknown guest architecture %q", e.Name)
}

// Is reports ErrUnsupported as a match.
func (e *UnknownError) Is(target error) bool {
	return target == ErrUnsupported
}

// UnsupportedError is returned for declared architectures the host cannot
// hardware-virtualize.
type UnsupportedError struct {
	Arch GuestArch
	Host string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("guest architecture %s cannot be hardware-virtualized on %s host", e.Arch, e.Host)
}

// Is reports ErrUnsupported as a match.
func (e *UnsupportedError) Is(target error) bool {
	return target == ErrUnsupported
}

// Check returns an error if a is not usable on this host.
func Check(a GuestArch) error {
	if !a.Valid() {
		return &UnknownError{Name: a.String()}
	}
	if !a.Supported() {
		return &UnsupportedError{Arch: a, Host: runtime.GOARCH}
	}
	return nil
}
