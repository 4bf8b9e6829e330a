// Package qemu starts QEMU system emulators for ephemeral instances.
//
// Software emulation is never selected: every command built here requests
// KVM acceleration, so a host that cannot accelerate the guest architecture
// makes the hypervisor exit with an error instead of falling back to TCG.
//
// Building a command is a pure function of the architecture and boot image
// path (see BuildCommand). Spawning it hands the resulting process to the
// caller as an *Instance.
package qemu

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jbweber/vmexec/internal/arch"
)

// ErrExecutableNotFound is returned when the hypervisor for an architecture
// is not installed.
var ErrExecutableNotFound = errors.New("hypervisor executable not found")

// Command is a hypervisor invocation before it is started.
type Command struct {
	// Name is the executable name, e.g. qemu-system-x86_64.
	Name string
	// Args excludes the executable itself.
	Args []string
}

// SystemArgs returns the hypervisor arguments that boot from boot with
// hardware acceleration. The hypervisor's own defaults apply to everything
// else (CPU, memory, devices, network, display).
func SystemArgs(boot string) []string {
	return []string{
		"-enable-kvm",
		"-drive", fmt.Sprintf("file=%s,format=qcow2,media=disk", escapeDriveValue(boot)),
	}
}

// BuildCommand returns the invocation for booting boot as a guest of
// architecture a.
func BuildCommand(a arch.GuestArch, boot string) Command {
	return Command{
		Name: a.Executable(),
		Args: SystemArgs(boot),
	}
}

// escapeDriveValue doubles commas, which QEMU's option parser treats as
// separators inside -drive values.
func escapeDriveValue(s string) string {
	return strings.ReplaceAll(s, ",", ",,")
}

// Resolve finds the executable for name. When searchDir is set only that
// directory is consulted; otherwise PATH is searched.
func Resolve(name, searchDir string) (string, error) {
	candidate := name
	if searchDir != "" {
		candidate = filepath.Join(searchDir, name)
	}

	path, err := exec.LookPath(candidate)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrExecutableNotFound, name, err)
	}
	return path, nil
}
