package vm

import (
	"context"

	"github.com/jbweber/vmexec/internal/arch"
	"github.com/jbweber/vmexec/internal/disk"
	"github.com/jbweber/vmexec/internal/qemu"
)

// bootImageProvisioner creates boot images.
//
// In production, this is satisfied by diskProvisioner.
// In tests, this is satisfied by mock implementations.
type bootImageProvisioner interface {
	// CreateBootImage creates boot as an overlay of base. overwrite replaces
	// an existing file at boot.
	CreateBootImage(ctx context.Context, base, boot string, overwrite bool) error
}

// hypervisorSpawner starts hypervisor processes.
//
// In production, this is satisfied by *qemu.Spawner.
// In tests, this is satisfied by mock implementations.
type hypervisorSpawner interface {
	// Spawn starts the hypervisor for a with boot attached.
	Spawn(ctx context.Context, a arch.GuestArch, boot string) (*qemu.Instance, error)
}

// diskProvisioner adapts *disk.Provisioner, whose overwrite policy is a
// field, to a per-launch overwrite flag.
type diskProvisioner struct {
	base disk.Provisioner
}

func (d diskProvisioner) CreateBootImage(ctx context.Context, base, boot string, overwrite bool) error {
	p := d.base
	p.Overwrite = p.Overwrite || overwrite
	return p.CreateBootImage(ctx, base, boot)
}
