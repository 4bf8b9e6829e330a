package vm

import (
	"errors"
	"fmt"
)

var (
	// ErrProvisioning is matched by every *ProvisioningError.
	ErrProvisioning = errors.New("boot image provisioning failed")

	// ErrSpawn is matched by every *SpawnError.
	ErrSpawn = errors.New("hypervisor spawn failed")
)

// ProvisioningError is returned when the boot image could not be created.
// No hypervisor was started.
type ProvisioningError struct {
	Base string
	Boot string
	Err  error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("failed to provision boot image %s from %s: %v", e.Boot, e.Base, e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// Is reports ErrProvisioning as a match.
func (e *ProvisioningError) Is(target error) bool {
	return target == ErrProvisioning
}

// SpawnError is returned when the boot image was created but the hypervisor
// could not be started. The boot image is left in place.
type SpawnError struct {
	// Executable is the hypervisor that was to be started.
	Executable string
	Boot       string
	Err        error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %s for boot image %s: %v", e.Executable, e.Boot, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// Is reports ErrSpawn as a match.
func (e *SpawnError) Is(target error) bool {
	return target == ErrSpawn
}

// IsProvisioning returns true if err is or wraps a *ProvisioningError.
func IsProvisioning(err error) bool {
	var target *ProvisioningError
	return errors.As(err, &target)
}

// IsSpawn returns true if err is or wraps a *SpawnError.
func IsSpawn(err error) bool {
	var target *SpawnError
	return errors.As(err, &target)
}
