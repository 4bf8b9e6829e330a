package vm

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jbweber/vmexec/api/v1alpha1"
	"github.com/jbweber/vmexec/internal/arch"
	"github.com/jbweber/vmexec/internal/disk"
	"github.com/jbweber/vmexec/internal/naming"
	"github.com/jbweber/vmexec/internal/qemu"
	"github.com/jbweber/vmexec/internal/status"
)

// Options configures a Launcher. The zero value is usable.
type Options struct {
	// QemuImg is the provisioning tool. Defaults to "qemu-img" on PATH.
	QemuImg string

	// SearchDir, if set, is the only directory searched for hypervisors.
	SearchDir string

	// Overwrite replaces existing boot images for every launch.
	Overwrite bool

	// BootDir is where generated boot images go when an Instance does not
	// name one. Defaults to the system temporary directory.
	BootDir string

	// Stdin, Stdout and Stderr are attached to every hypervisor started.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// NewProcessGroup starts every hypervisor in its own process group.
	NewProcessGroup bool

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Launcher provisions boot images and starts hypervisors. It holds no
// per-instance state, so one Launcher may be used for any number of
// launches, including concurrently for distinct boot images.
type Launcher struct {
	provisioner bootImageProvisioner
	spawner     hypervisorSpawner
	overwrite   bool
	bootDir     string
	logger      *slog.Logger
}

// NewLauncher creates a Launcher backed by qemu-img and the QEMU system
// emulators.
func NewLauncher(opts Options) *Launcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := diskProvisioner{base: disk.Provisioner{
		QemuImg: opts.QemuImg,
		Logger:  logger,
	}}
	s := &qemu.Spawner{
		SearchDir: opts.SearchDir,
		Stdin:     opts.Stdin,
		Stdout:    opts.Stdout,
		Stderr:    opts.Stderr,

		NewProcessGroup: opts.NewProcessGroup,
		Logger:          logger,
	}

	l := newLauncherWithDeps(p, s, logger)
	l.overwrite = opts.Overwrite
	l.bootDir = opts.BootDir
	return l
}

// newLauncherWithDeps creates a Launcher with injected dependencies.
// This allows for testing by accepting interfaces instead of concrete types.
func newLauncherWithDeps(p bootImageProvisioner, s hypervisorSpawner, logger *slog.Logger) *Launcher {
	return &Launcher{
		provisioner: p,
		spawner:     s,
		logger:      logger,
	}
}

// Launch starts an instance of architecture a booting from a new boot image
// at boot, derived from base, using a Launcher with default Options.
func Launch(ctx context.Context, a arch.GuestArch, base, boot string) (*qemu.Instance, error) {
	return NewLauncher(Options{}).Launch(ctx, a, base, boot)
}

// Launch starts an instance of architecture a booting from a new boot image
// at boot, derived from base.
//
// This orchestrates the launch:
//  1. Reject architectures the host cannot virtualize
//  2. Create the boot image
//  3. Start the hypervisor with the boot image attached
//
// There is no rollback: if the hypervisor cannot be started, the boot image
// stays on disk.
func (l *Launcher) Launch(ctx context.Context, a arch.GuestArch, base, boot string) (*qemu.Instance, error) {
	inst := v1alpha1.NewInstance("")
	inst.Spec = v1alpha1.InstanceSpec{
		Arch:      a.String(),
		BaseImage: base,
		BootImage: boot,
	}
	return l.launch(ctx, inst, a, l.overwrite)
}

// LaunchInstance launches the instance described by inst and records the
// outcome in inst.Status. Any previous status is discarded. If
// inst.Spec.BootImage is empty a unique path is generated and written back
// to inst.Spec.
func (l *Launcher) LaunchInstance(ctx context.Context, inst *v1alpha1.Instance) (*qemu.Instance, error) {
	inst.Normalize()
	inst.Status = v1alpha1.InstanceStatus{Phase: v1alpha1.InstancePhaseRequested}

	a, err := arch.Parse(inst.Spec.Arch)
	if err != nil {
		_ = status.TransitionToFailed(inst, v1alpha1.ReasonUnsupportedArch, err.Error())
		return nil, err
	}

	if inst.Spec.BootImage == "" {
		inst.Spec.BootImage = naming.BootImagePath(l.bootDir, inst.Spec.BaseImage)
	}

	return l.launch(ctx, inst, a, l.overwrite || inst.Spec.OverwriteBootImage)
}

func (l *Launcher) launch(ctx context.Context, inst *v1alpha1.Instance, a arch.GuestArch, overwrite bool) (*qemu.Instance, error) {
	base, boot := inst.Spec.BaseImage, inst.Spec.BootImage
	log := l.logger.With("arch", a.String(), "boot", boot)

	if err := arch.Check(a); err != nil {
		_ = status.TransitionToFailed(inst, v1alpha1.ReasonUnsupportedArch, err.Error())
		return nil, err
	}

	if err := status.TransitionToProvisioning(inst); err != nil {
		return nil, err
	}
	log.Info("provisioning boot image", "base", base, "overwrite", overwrite)

	if err := l.provisioner.CreateBootImage(ctx, base, boot, overwrite); err != nil {
		perr := &ProvisioningError{Base: base, Boot: boot, Err: err}
		l.fail(log, inst, v1alpha1.ReasonProvisioningFailed, perr)
		return nil, perr
	}

	if err := ctx.Err(); err != nil {
		serr := &SpawnError{Executable: a.Executable(), Boot: boot, Err: fmt.Errorf("launch cancelled: %w", err)}
		l.fail(log, inst, v1alpha1.ReasonSpawnFailed, serr)
		return nil, serr
	}

	_ = status.TransitionToSpawning(inst)
	log.Info("starting hypervisor", "executable", a.Executable())

	proc, err := l.spawner.Spawn(ctx, a, boot)
	if err != nil {
		serr := &SpawnError{Executable: a.Executable(), Boot: boot, Err: err}
		l.fail(log, inst, v1alpha1.ReasonSpawnFailed, serr)
		return nil, serr
	}

	_ = status.TransitionToRunning(inst, proc.PID(), proc.Executable(), proc.StartedAt())
	log.Info("instance running", "pid", proc.PID(), "executable", proc.Executable())

	return proc, nil
}

func (l *Launcher) fail(log *slog.Logger, inst *v1alpha1.Instance, reason string, err error) {
	log.Error("launch failed", "phase", inst.GetPhase(), "reason", reason, "error", err)
	_ = status.TransitionToFailed(inst, reason, err.Error())
}
