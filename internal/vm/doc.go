// Package vm launches ephemeral virtual machine instances.
//
// A launch has two steps that always run in this order:
//   - Provision: create a copy-on-write boot image backed by the base image
//   - Spawn: start the hypervisor for the guest architecture with the boot
//     image attached
//
// The running hypervisor is returned to the caller as a *qemu.Instance. The
// package keeps no record of it afterwards.
//
// Error Handling:
//
// A failed provisioning step returns a *ProvisioningError and no hypervisor
// is started. A failed spawn returns a *SpawnError; the boot image that was
// already created is left on disk for the caller to remove. An unsupported
// architecture is rejected before either step with an error matching
// arch.ErrUnsupported.
//
// Context Support:
//
// The context bounds the provisioning tool and is checked once more before
// the hypervisor is started. It is not attached to the hypervisor process, so
// cancelling it after Launch returns has no effect on the instance.
package vm
