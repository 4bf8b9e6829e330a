// Package disk provisions boot images for ephemeral instances.
//
// A boot image is a qcow2 overlay created with qemu-img whose backing file is
// a caller-owned base image. The overlay only stores blocks the guest writes,
// so the base image is never modified and must stay in place for as long as
// the boot image is in use.
package disk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

const (
	// DefaultQemuImg is the provisioning tool looked up on PATH when no
	// explicit path is configured.
	DefaultQemuImg = "qemu-img"

	// BootImageFormat is the on-disk format of every boot image.
	BootImageFormat = FormatQCOW2
)

// ErrBootImageExists is returned when the boot image path is already taken
// and overwriting was not requested.
var ErrBootImageExists = errors.New("boot image already exists")

// ErrBootIsBase is returned when the boot image path names the base image
// itself, directly or through another path, symlink or hard link.
var ErrBootIsBase = errors.New("boot image path refers to the base image")

// Provisioner creates boot images from base images using qemu-img.
type Provisioner struct {
	// QemuImg is the qemu-img executable. Defaults to DefaultQemuImg.
	QemuImg string

	// Overwrite replaces an existing file at the boot image path instead of
	// failing with ErrBootImageExists.
	Overwrite bool

	// Logger receives tool output at debug level. Defaults to slog.Default().
	Logger *slog.Logger
}

// ImgCreateArgs returns the qemu-img arguments that create boot as a qcow2
// overlay backed by base. The backing format is always passed explicitly so
// qemu-img never probes it.
func ImgCreateArgs(base, boot string, backingFormat Format) []string {
	return []string{
		"create",
		"-f", string(BootImageFormat),
		"-b", base,
		"-F", string(backingFormat),
		boot,
	}
}

// CreateBootImage creates boot as a copy-on-write overlay of base.
//
// The base image is resolved to an absolute path before it is recorded in the
// overlay, since qemu-img resolves relative backing paths against the
// overlay's directory. The base image is read, and checked not to be the
// same file as boot, before anything at boot is touched, so a missing base
// leaves an existing boot image in place. A partially created boot image is
// not removed on failure.
func (p *Provisioner) CreateBootImage(ctx context.Context, base, boot string) error {
	if base == "" {
		return fmt.Errorf("base image path cannot be empty")
	}
	if boot == "" {
		return fmt.Errorf("boot image path cannot be empty")
	}

	absBase, err := filepath.Abs(base)
	if err != nil {
		return fmt.Errorf("failed to resolve base image path %s: %w", base, err)
	}

	backingFormat, err := DetectImageFormat(absBase)
	if err != nil {
		return fmt.Errorf("failed to read base image %s: %w", absBase, err)
	}

	if err := checkDistinct(absBase, boot); err != nil {
		return err
	}

	if err := p.claimBootPath(boot); err != nil {
		return err
	}

	args := ImgCreateArgs(absBase, boot, backingFormat)
	p.logger().Debug("running provisioning tool", "tool", p.qemuImg(), "args", args)

	cmd := exec.CommandContext(ctx, p.qemuImg(), args...)
	output, err := cmd.CombinedOutput()
	if len(output) > 0 {
		p.logger().Debug("provisioning tool output", "output", string(output))
	}
	if err != nil {
		return fmt.Errorf("failed to create boot image %s: %w\nOutput: %s", boot, err, string(output))
	}

	if _, err := os.Stat(boot); err != nil {
		return fmt.Errorf("boot image %s missing after qemu-img create: %w", boot, err)
	}

	return nil
}

// checkDistinct fails with ErrBootIsBase if boot resolves to the same file
// as base.
func checkDistinct(base, boot string) error {
	bootInfo, err := os.Stat(boot)
	if err != nil {
		// Nothing at boot (or a dangling link) cannot be the base.
		return nil
	}
	baseInfo, err := os.Stat(base)
	if err != nil {
		return fmt.Errorf("failed to check base image %s: %w", base, err)
	}
	if os.SameFile(baseInfo, bootInfo) {
		return fmt.Errorf("%w: %s", ErrBootIsBase, boot)
	}
	return nil
}

// claimBootPath applies the overwrite policy to an existing boot image path.
func (p *Provisioner) claimBootPath(boot string) error {
	info, err := os.Lstat(boot)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check boot image path %s: %w", boot, err)
	}

	if !p.Overwrite {
		return fmt.Errorf("%w: %s", ErrBootImageExists, boot)
	}
	if info.IsDir() {
		return fmt.Errorf("boot image path %s is a directory", boot)
	}

	p.logger().Info("replacing existing boot image", "path", boot)
	if err := os.Remove(boot); err != nil {
		return fmt.Errorf("failed to remove existing boot image %s: %w", boot, err)
	}
	return nil
}

func (p *Provisioner) qemuImg() string {
	if p.QemuImg == "" {
		return DefaultQemuImg
	}
	return p.QemuImg
}

func (p *Provisioner) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}
