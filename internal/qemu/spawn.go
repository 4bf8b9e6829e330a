package qemu

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"

	"github.com/jbweber/vmexec/internal/arch"
)

// Spawner starts hypervisor processes.
type Spawner struct {
	// SearchDir, if set, is the only directory searched for hypervisor
	// executables. Otherwise PATH is used.
	SearchDir string

	// Stdin, Stdout and Stderr are attached to the hypervisor. Nil attaches
	// the null device.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// NewProcessGroup starts the hypervisor in a process group of its own,
	// so signals sent to the caller's group (a terminal's Ctrl-C) do not
	// reach it. The caller decides what to forward. Ignored where process
	// groups are not supported.
	NewProcessGroup bool

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Spawn starts the hypervisor for a attached to boot and returns as soon as
// the process exists. It does not wait for the guest to boot.
//
// ctx is only checked before the process is created. The process is not
// bound to ctx, so cancelling it later does not affect the returned Instance.
func (s *Spawner) Spawn(ctx context.Context, a arch.GuestArch, boot string) (*Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("spawn cancelled: %w", err)
	}

	c := BuildCommand(a, boot)
	path, err := Resolve(c.Name, s.SearchDir)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(path, c.Args...)
	cmd.Stdin = s.Stdin
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	if s.NewProcessGroup {
		setNewProcessGroup(cmd)
	}

	s.logger().Debug("starting hypervisor", "path", path, "args", c.Args)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", path, err)
	}

	return newInstance(cmd, a, boot), nil
}

func (s *Spawner) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
