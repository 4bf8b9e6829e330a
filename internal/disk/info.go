package disk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
)

// ImageInfo is the subset of `qemu-img info --output=json` used by vmexec.
type ImageInfo struct {
	Filename            string `json:"filename" yaml:"filename"`
	Format              Format `json:"format" yaml:"format"`
	VirtualSize         int64  `json:"virtual-size" yaml:"virtualSize"`
	ActualSize          int64  `json:"actual-size" yaml:"actualSize"`
	BackingFilename     string `json:"backing-filename,omitempty" yaml:"backingFilename,omitempty"`
	FullBackingFilename string `json:"full-backing-filename,omitempty" yaml:"fullBackingFilename,omitempty"`
	BackingFormat       Format `json:"backing-filename-format,omitempty" yaml:"backingFormat,omitempty"`
	DirtyFlag           bool   `json:"dirty-flag,omitempty" yaml:"dirty,omitempty"`
}

// HasBacking reports whether the image is an overlay on another image.
func (i *ImageInfo) HasBacking() bool {
	return i.BackingFilename != ""
}

// ImgInfoArgs returns the qemu-img arguments that describe path as JSON.
// -U allows inspecting images held open by a running hypervisor.
func ImgInfoArgs(path string) []string {
	return []string{"info", "-U", "--output=json", path}
}

// Inspect describes the image at path using qemu-img.
func (p *Provisioner) Inspect(ctx context.Context, path string) (*ImageInfo, error) {
	cmd := exec.CommandContext(ctx, p.qemuImg(), ImgInfoArgs(path)...)
	output, err := cmd.Output()
	if err != nil {
		var stderr string
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderr = string(exitErr.Stderr)
		}
		return nil, fmt.Errorf("failed to inspect image %s: %w\nOutput: %s", path, err, stderr)
	}

	return ParseImageInfo(output)
}

// ParseImageInfo decodes `qemu-img info --output=json` output.
func ParseImageInfo(data []byte) (*ImageInfo, error) {
	var info ImageInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse qemu-img info output: %w", err)
	}
	if info.Format == "" {
		return nil, fmt.Errorf("qemu-img info output has no format")
	}
	return &info, nil
}
