package arch

import (
	"fmt"
	"os"
)

// KVMDevice is the device node QEMU opens for hardware acceleration on Linux.
const KVMDevice = "/dev/kvm"

// KVMAvailable reports whether the KVM device exists and can be opened for
// reading and writing by the current user.
//
// The launcher does not call this; a hypervisor that cannot accelerate fails
// at spawn time. It exists for preflight checks.
func KVMAvailable() error {
	return kvmAvailableAt(KVMDevice)
}

func kvmAvailableAt(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("hardware virtualization unavailable: %w", err)
	}
	if info.Mode()&os.ModeDevice == 0 {
		return fmt.Errorf("hardware virtualization unavailable: %s is not a device", path)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("hardware virtualization unavailable: %w", err)
	}
	_ = f.Close()

	return nil
}
