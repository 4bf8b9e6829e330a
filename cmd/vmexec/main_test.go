package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jbweber/vmexec/api/v1alpha1"
	"github.com/jbweber/vmexec/internal/arch"
	"github.com/jbweber/vmexec/internal/output"
	"github.com/jbweber/vmexec/internal/testutil"
)

// executeCommand runs the root command with args, starting from default flag
// values, and returns what it wrote to stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	stdout, _, err := executeCommandWithStderr(t, args...)
	return stdout, err
}

// executeCommandWithStderr is executeCommand that also returns stderr, where
// logs go.
func executeCommandWithStderr(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	if testing.Verbose() && stderr.Len() > 0 {
		t.Logf("stderr:\n%s", stderr.String())
	}
	return stdout.String(), stderr.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// hostArch returns a guest architecture this host can launch, or skips.
func hostArch(t *testing.T) arch.GuestArch {
	t.Helper()
	supported := arch.Supported()
	if len(supported) == 0 {
		t.Skip("no KVM-capable guest architecture on this host")
	}
	return supported[len(supported)-1]
}

// toolEnv is a directory of fake QEMU tools and a base image.
type toolEnv struct {
	arch       arch.GuestArch
	qemuImg    string
	searchDir  string
	hypervisor string
	base       string
	boot       string
}

func newToolEnv(t *testing.T) *toolEnv {
	t.Helper()
	a := hostArch(t)

	env := &toolEnv{
		arch:      a,
		qemuImg:   testutil.FakeQemuImg(t),
		searchDir: t.TempDir(),
	}
	env.hypervisor = testutil.FakeHypervisor(t, env.searchDir, a.Executable())

	images := t.TempDir()
	env.base = filepath.Join(images, "base.qcow2")
	testutil.CreateQCOW2(t, env.base)
	env.boot = filepath.Join(images, "boot.qcow2")
	return env
}

func (e *toolEnv) launchArgs(extra ...string) []string {
	args := []string{
		"launch",
		"--arch", e.arch.String(),
		"--base", e.base,
		"--boot", e.boot,
		"--qemu-img", e.qemuImg,
		"--search-dir", e.searchDir,
	}
	return append(args, extra...)
}

// killPID stops a hypervisor that launch released.
func killPID(t *testing.T, pid int) {
	t.Helper()
	t.Cleanup(func() {
		p, err := os.FindProcess(pid)
		if err != nil {
			return
		}
		_ = p.Kill()
		_, _ = p.Wait()
	})
}

func TestLaunchCommand(t *testing.T) {
	env := newToolEnv(t)

	out, err := executeCommand(t, env.launchArgs("--name", "scratch", "-o", "json")...)
	if err != nil {
		t.Fatalf("launch error: %v", err)
	}

	var inst v1alpha1.Instance
	if err := json.Unmarshal([]byte(out), &inst); err != nil {
		t.Fatalf("failed to parse output: %v\n%s", err, out)
	}
	killPID(t, inst.Status.PID)

	if inst.Name != "scratch" {
		t.Errorf("name = %q, want scratch", inst.Name)
	}
	if inst.Status.Phase != v1alpha1.InstancePhaseRunning {
		t.Errorf("phase = %s, want Running", inst.Status.Phase)
	}
	if inst.Status.PID <= 0 {
		t.Errorf("pid = %d, want > 0", inst.Status.PID)
	}
	if inst.Status.Executable != env.hypervisor {
		t.Errorf("executable = %q, want %q", inst.Status.Executable, env.hypervisor)
	}

	if _, err := os.Stat(env.boot); err != nil {
		t.Errorf("boot image not created: %v", err)
	}
	if got := testutil.HypervisorArgs(t, env.hypervisor); !strings.Contains(got, "file="+env.boot) {
		t.Errorf("hypervisor args = %q, want boot image %s", got, env.boot)
	}
}

func TestLaunchCommandFromFile(t *testing.T) {
	env := newToolEnv(t)

	manifest := filepath.Join(filepath.Dir(env.base), "instance.yaml")
	content := fmt.Sprintf(`apiVersion: vmexec.cofront.xyz/v1alpha1
kind: Instance
metadata:
  name: from-file
spec:
  arch: %s
  baseImage: base.qcow2
  bootImage: boot.qcow2
`, env.arch)
	if err := os.WriteFile(manifest, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}

	out, err := executeCommand(t, "launch", "-f", manifest,
		"--qemu-img", env.qemuImg, "--search-dir", env.searchDir, "-o", "json")
	if err != nil {
		t.Fatalf("launch error: %v", err)
	}

	var inst v1alpha1.Instance
	if err := json.Unmarshal([]byte(out), &inst); err != nil {
		t.Fatalf("failed to parse output: %v\n%s", err, out)
	}
	killPID(t, inst.Status.PID)

	if inst.Name != "from-file" {
		t.Errorf("name = %q, want from-file", inst.Name)
	}
	if inst.Spec.BootImage != env.boot {
		t.Errorf("bootImage = %q, want %q", inst.Spec.BootImage, env.boot)
	}
	if inst.Status.Phase != v1alpha1.InstancePhaseRunning {
		t.Errorf("phase = %s, want Running", inst.Status.Phase)
	}
}

func TestLaunchCommandWait(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		wantErr bool
	}{
		{name: "clean exit", code: 0},
		{name: "failed exit", code: 3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newToolEnv(t)
			testutil.ExitingHypervisor(t, env.searchDir, env.arch.Executable(), tt.code)

			out, err := executeCommand(t, env.launchArgs("--wait")...)
			if tt.wantErr {
				if err == nil || !strings.Contains(err.Error(), "hypervisor exited") {
					t.Errorf("launch error = %v, want hypervisor exit error", err)
				}
			} else if err != nil {
				t.Errorf("launch error: %v", err)
			}

			if !strings.Contains(out, "Running") {
				t.Errorf("output should show the running instance:\n%s", out)
			}
		})
	}
}

func TestLaunchCommandFailures(t *testing.T) {
	env := newToolEnv(t)

	tests := []struct {
		name       string
		args       []string
		wantErr    string
		wantOutput string
	}{
		{
			name:    "missing arch",
			args:    []string{"launch", "--base", env.base},
			wantErr: "--arch is required",
		},
		{
			name:    "missing base",
			args:    []string{"launch", "--arch", env.arch.String()},
			wantErr: "--base is required",
		},
		{
			name:    "file combined with spec flags",
			args:    []string{"launch", "-f", "instance.yaml", "--arch", env.arch.String()},
			wantErr: "--arch cannot be combined with --file",
		},
		{
			name:    "invalid output format",
			args:    env.launchArgs("-o", "xml"),
			wantErr: "invalid format",
		},
		{
			name:       "unknown arch",
			args:       []string{"launch", "--arch", "sparc", "--base", env.base, "--qemu-img", env.qemuImg},
			wantErr:    "failed to launch instance",
			wantOutput: "Failed",
		},
		{
			name: "base image does not exist",
			args: []string{
				"launch", "--arch", env.arch.String(), "--base", filepath.Join(t.TempDir(), "missing.qcow2"),
				"--boot", filepath.Join(t.TempDir(), "boot.qcow2"),
				"--qemu-img", env.qemuImg, "--search-dir", env.searchDir,
			},
			wantErr:    "failed to launch instance",
			wantOutput: "ProvisioningFailed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := executeCommand(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("launch error = %v, want containing %q", err, tt.wantErr)
			}
			if tt.wantOutput != "" && !strings.Contains(out, tt.wantOutput) {
				t.Errorf("output should contain %q:\n%s", tt.wantOutput, out)
			}
		})
	}
}

func TestArchListCommand(t *testing.T) {
	dir := t.TempDir()
	hv := testutil.FakeHypervisor(t, dir, arch.X86_64.Executable())

	out, err := executeCommand(t, "arch", "list", "--search-dir", dir, "-o", "json")
	if err != nil {
		t.Fatalf("arch list error: %v", err)
	}

	var infos []output.ArchInfo
	if err := json.Unmarshal([]byte(out), &infos); err != nil {
		t.Fatalf("failed to parse output: %v\n%s", err, out)
	}
	if len(infos) != len(arch.All()) {
		t.Fatalf("got %d architectures, want %d", len(infos), len(arch.All()))
	}

	for _, info := range infos {
		switch info.Name {
		case "x86_64":
			if info.Path != hv {
				t.Errorf("x86_64 path = %q, want %q", info.Path, hv)
			}
		case "x86":
			if info.Path != "" {
				t.Errorf("x86 path = %q, want empty", info.Path)
			}
		default:
			t.Errorf("unexpected architecture %q", info.Name)
		}
	}
}

func TestRunChecks(t *testing.T) {
	supported := arch.Supported()
	dir := t.TempDir()
	for _, a := range supported {
		testutil.FakeHypervisor(t, dir, a.Executable())
	}
	qemuImg := testutil.FakeQemuImg(t)

	statusOf := func(checks []output.Check, name string) output.CheckStatus {
		for _, c := range checks {
			if c.Name == name {
				return c.Status
			}
		}
		t.Fatalf("no %q check in %+v", name, checks)
		return ""
	}

	checks := runChecks(qemuImg, dir, func() error { return nil })
	if got := statusOf(checks, "kvm"); got != output.CheckOK {
		t.Errorf("kvm = %s, want ok", got)
	}
	if got := statusOf(checks, "qemu-img"); got != output.CheckOK {
		t.Errorf("qemu-img = %s, want ok", got)
	}
	for _, a := range supported {
		if got := statusOf(checks, a.Executable()); got != output.CheckOK {
			t.Errorf("%s = %s, want ok", a.Executable(), got)
		}
	}

	checks = runChecks(filepath.Join(t.TempDir(), "qemu-img"), t.TempDir(), func() error {
		return errors.New("no /dev/kvm")
	})
	if got := statusOf(checks, "kvm"); got != output.CheckFailed {
		t.Errorf("kvm = %s, want failed", got)
	}
	if got := statusOf(checks, "qemu-img"); got != output.CheckFailed {
		t.Errorf("qemu-img = %s, want failed", got)
	}
	for _, a := range supported {
		if got := statusOf(checks, a.Executable()); got != output.CheckFailed {
			t.Errorf("%s = %s, want failed", a.Executable(), got)
		}
	}
}

func TestImageInfoCommand(t *testing.T) {
	qemuImg := testutil.FakeQemuImg(t)
	path := filepath.Join(t.TempDir(), "base.qcow2")

	out, err := executeCommand(t, "image", "info", path, "--qemu-img", qemuImg)
	if err != nil {
		t.Fatalf("image info error: %v", err)
	}
	if !strings.Contains(out, "qcow2") {
		t.Errorf("output should show the format:\n%s", out)
	}
}

func TestImageFetchCommand(t *testing.T) {
	body := []byte{0x51, 0x46, 0x49, 0xfb, 0x00, 0x00, 0x00, 0x03, 0x00, 0x00}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "images", "base.qcow2")

	out, err := executeCommand(t, "image", "fetch", server.URL+"/base.qcow2", dest, "--retries", "0")
	if err != nil {
		t.Fatalf("image fetch error: %v", err)
	}
	if !strings.Contains(out, "Downloaded "+dest) {
		t.Errorf("unexpected output:\n%s", out)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("image not written: %v", err)
	}

	if _, err := executeCommand(t, "image", "fetch", server.URL+"/base.qcow2", dest, "--retries", "0"); err == nil {
		t.Error("fetching onto an existing file should fail without --overwrite")
	}
	if _, err := executeCommand(t, "image", "fetch", server.URL+"/base.qcow2", dest, "--retries", "0", "--overwrite"); err != nil {
		t.Errorf("fetch with --overwrite error: %v", err)
	}
}

func TestLogFormatFlag(t *testing.T) {
	if _, err := executeCommand(t, "arch", "list", "--log-format", "xml"); err == nil {
		t.Error("invalid --log-format should fail")
	}
}

func TestSubsystem(t *testing.T) {
	tests := []struct {
		cmd  *cobra.Command
		want string
	}{
		{launchCmd, "launch"},
		{archListCmd, "arch list"},
		{imageFetchCmd, "image fetch"},
		{checkCmd, "check"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := subsystem(tt.cmd); got != tt.want {
				t.Errorf("subsystem() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLaunchLogsSubsystem(t *testing.T) {
	env := newToolEnv(t)

	out, logs, err := executeCommandWithStderr(t, env.launchArgs("--log-format", "json", "-o", "json")...)
	if err != nil {
		t.Fatalf("launch error: %v", err)
	}

	var inst v1alpha1.Instance
	if err := json.Unmarshal([]byte(out), &inst); err != nil {
		t.Fatalf("failed to parse output: %v\n%s", err, out)
	}
	killPID(t, inst.Status.PID)

	if !strings.Contains(logs, `"subsystem":"launch"`) {
		t.Errorf("logs should carry the launch subsystem:\n%s", logs)
	}
	if !strings.Contains(logs, `"msg":"instance running"`) {
		t.Errorf("logs should report the running instance:\n%s", logs)
	}
}
