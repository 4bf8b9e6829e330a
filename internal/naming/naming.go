// Package naming provides naming conventions for files vmexec creates on
// behalf of a caller that did not pick a path itself.
package naming

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// BootImageExt is the extension of generated boot image names.
const BootImageExt = ".qcow2"

const defaultStem = "instance"

// BootImageName returns a unique boot image file name derived from the base
// image name.
// Format: {baseStem}-boot-{uuid}.qcow2 (e.g., "fedora-43-boot-3f2c...e1.qcow2")
func BootImageName(base string) string {
	return fmt.Sprintf("%s-boot-%s%s", Stem(base), uuid.New().String(), BootImageExt)
}

// BootImagePath returns a unique boot image path in dir. An empty dir means
// the system temporary directory.
func BootImagePath(dir, base string) string {
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, BootImageName(base))
}

// Stem returns the base image file name without directory or extension.
// Falls back to "instance" when nothing usable is left.
func Stem(base string) string {
	name := filepath.Base(strings.TrimSpace(base))
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return defaultStem
	}
	return name
}
