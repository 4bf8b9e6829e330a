// Package testutil provides stand-in QEMU tools and disk images for tests.
//
// The fake tools are POSIX shell scripts written into t.TempDir(). They
// record their arguments next to themselves so tests can assert on the exact
// invocation without a real QEMU installation.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"
)

// fakeQemuImgScript understands `create` (writes a qcow2 header to the last
// argument) and `info` (prints a minimal JSON description of the last
// argument).
const fakeQemuImgScript = `#!/bin/sh
printf '%s\n' "$*" >> "$0.calls"
for last; do :; done
case "$1" in
create)
	printf 'QFI\373\000\000\000\003' > "$last" || exit 1
	;;
info)
	printf '{"filename":"%s","format":"qcow2","virtual-size":1073741824,"actual-size":196608}\n' "$last"
	;;
*)
	echo "fake qemu-img: unsupported command $1" >&2
	exit 1
	;;
esac
`

// RequireShell skips the test on platforms without /bin/sh.
func RequireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake QEMU tools need /bin/sh")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("fake QEMU tools need /bin/sh")
	}
}

// WriteScript writes an executable shell script named name into dir and
// returns its path.
func WriteScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	RequireShell(t)

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0755); err != nil {
		t.Fatalf("failed to write script %s: %v", path, err)
	}
	return path
}

// FakeQemuImg writes a working qemu-img stand-in and returns its path.
func FakeQemuImg(t *testing.T) string {
	t.Helper()
	return WriteScript(t, t.TempDir(), "qemu-img", fakeQemuImgScript)
}

// FailingQemuImg writes a qemu-img stand-in that always fails with message
// on stderr.
func FailingQemuImg(t *testing.T, message string) string {
	t.Helper()
	body := "#!/bin/sh\nprintf '%s\\n' \"$*\" >> \"$0.calls\"\necho '" + message + "' >&2\nexit 1\n"
	return WriteScript(t, t.TempDir(), "qemu-img", body)
}

// FakeHypervisor writes a hypervisor stand-in named name into dir. It
// records its arguments to "<path>.args" and then sleeps so the process stays
// alive until signalled.
func FakeHypervisor(t *testing.T, dir, name string) string {
	t.Helper()
	body := "#!/bin/sh\nprintf '%s\\n' \"$*\" > \"$0.args.tmp\"\nmv \"$0.args.tmp\" \"$0.args\"\nexec sleep 60\n"
	return WriteScript(t, dir, name, body)
}

// ExitingHypervisor writes a hypervisor stand-in that exits immediately with
// the given status code.
func ExitingHypervisor(t *testing.T, dir, name string, code int) string {
	t.Helper()
	body := "#!/bin/sh\nexit " + strconv.Itoa(code) + "\n"
	return WriteScript(t, dir, name, body)
}

// Calls returns the argument lines recorded by a fake tool.
func Calls(t *testing.T, tool string) []string {
	t.Helper()
	data, err := os.ReadFile(tool + ".calls")
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("failed to read calls for %s: %v", tool, err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

// HypervisorArgs waits for a FakeHypervisor to record its arguments and
// returns them as a single line.
func HypervisorArgs(t *testing.T, hypervisor string) string {
	t.Helper()
	path := hypervisor + ".args"

	deadline := time.Now().Add(5 * time.Second)
	for {
		data, err := os.ReadFile(path)
		if err == nil {
			return strings.TrimSpace(string(data))
		}
		if !os.IsNotExist(err) {
			t.Fatalf("failed to read %s: %v", path, err)
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", path)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// CreateQCOW2 writes a file with a qcow2 header at path. It is enough for
// format detection but is not a usable image.
func CreateQCOW2(t *testing.T, path string) {
	t.Helper()
	header := make([]byte, 512)
	copy(header, []byte{0x51, 0x46, 0x49, 0xfb, 0x00, 0x00, 0x00, 0x03})
	writeFile(t, path, header)
}

// CreateRaw writes a sparse raw image of sizeMB megabytes at path.
func CreateRaw(t *testing.T, path string, sizeMB int64) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer func() { _ = f.Close() }()

	if err := f.Truncate(sizeMB * 1024 * 1024); err != nil {
		t.Fatalf("failed to truncate %s: %v", path, err)
	}
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
