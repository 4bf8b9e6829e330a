package main

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/jbweber/vmexec/internal/arch"
	"github.com/jbweber/vmexec/internal/disk"
	"github.com/jbweber/vmexec/internal/output"
	"github.com/jbweber/vmexec/internal/qemu"
)

var checkFlags struct {
	qemuImg   string
	searchDir string
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that this host can launch instances",
	Long: `Run preflight checks for launching instances on this host:

  - the host CPU has a KVM-capable guest architecture
  - the KVM device is present and accessible
  - qemu-img is installed
  - a hypervisor is installed for each supported guest architecture

Exits non-zero if any check fails.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		formatter, err := newFormatter()
		if err != nil {
			return err
		}

		checks := runChecks(checkFlags.qemuImg, checkFlags.searchDir, arch.KVMAvailable)

		result, err := formatter.FormatChecks(checks)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		_, _ = fmt.Fprint(cmd.OutOrStdout(), result)

		failed := 0
		for _, c := range checks {
			if c.Status == output.CheckFailed {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d checks failed", failed, len(checks))
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkFlags.qemuImg, "qemu-img", "", "qemu-img executable (default: qemu-img on PATH)")
	checkCmd.Flags().StringVar(&checkFlags.searchDir, "search-dir", "", "Only look for hypervisors in this directory")
	addOutputFlags(checkCmd, "table")
}

func runChecks(qemuImg, searchDir string, kvm func() error) []output.Check {
	var checks []output.Check

	supported := arch.Supported()
	if len(supported) == 0 {
		checks = append(checks, output.Check{
			Name:   "host-arch",
			Status: output.CheckFailed,
			Detail: fmt.Sprintf("no guest architecture can run with KVM on %s", runtime.GOARCH),
		})
	} else {
		checks = append(checks, output.Check{
			Name:   "host-arch",
			Status: output.CheckOK,
			Detail: fmt.Sprintf("%s hosts %v", runtime.GOARCH, supported),
		})
	}

	if err := kvm(); err != nil {
		checks = append(checks, output.Check{Name: "kvm", Status: output.CheckFailed, Detail: err.Error()})
	} else {
		checks = append(checks, output.Check{Name: "kvm", Status: output.CheckOK, Detail: arch.KVMDevice})
	}

	if qemuImg == "" {
		qemuImg = disk.DefaultQemuImg
	}
	if path, err := exec.LookPath(qemuImg); err != nil {
		checks = append(checks, output.Check{Name: "qemu-img", Status: output.CheckFailed, Detail: err.Error()})
	} else {
		checks = append(checks, output.Check{Name: "qemu-img", Status: output.CheckOK, Detail: path})
	}

	for _, a := range supported {
		name := a.Executable()
		if path, err := qemu.Resolve(name, searchDir); err != nil {
			checks = append(checks, output.Check{Name: name, Status: output.CheckFailed, Detail: "not installed"})
		} else {
			checks = append(checks, output.Check{Name: name, Status: output.CheckOK, Detail: path})
		}
	}

	return checks
}
