package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jbweber/vmexec/api/v1alpha1"
	"github.com/jbweber/vmexec/internal/loader"
	"github.com/jbweber/vmexec/internal/qemu"
	"github.com/jbweber/vmexec/internal/vm"
)

var launchFlags struct {
	file      string
	name      string
	arch      string
	base      string
	boot      string
	bootDir   string
	overwrite bool
	searchDir string
	qemuImg   string
	wait      bool
}

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Launch an ephemeral instance",
	Long: `Create a boot image from a base image and start the hypervisor.

The instance is described either with flags or with an Instance resource
file (-f). The boot image is created as a qcow2 overlay of the base image;
the base image is never modified. The boot image is not removed when the
instance exits.

The hypervisor runs in its own process group. Without --wait it keeps
running after vmexec exits. With --wait, vmexec stays in the foreground,
forwards each SIGINT and SIGTERM it receives to the hypervisor and exits
when the hypervisor does.

Examples:
  vmexec launch --arch x86_64 --base fedora-43.qcow2 --boot /tmp/scratch.qcow2
  vmexec launch -f instance.yaml -o yaml
  vmexec launch --arch x86 --base alpine.img --wait`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		formatter, err := newFormatter()
		if err != nil {
			return err
		}

		inst, err := launchInstanceFromFlags(cmd)
		if err != nil {
			return err
		}

		stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
		// Ctrl-C reaches the hypervisor only through waitForInstance. Its
		// stdin stays on the null device since it is not in the terminal's
		// foreground group.
		opts := vm.Options{
			QemuImg:         launchFlags.qemuImg,
			SearchDir:       launchFlags.searchDir,
			Overwrite:       launchFlags.overwrite,
			BootDir:         launchFlags.bootDir,
			NewProcessGroup: true,
			Logger:          logger,
		}
		if launchFlags.wait {
			opts.Stdout = stdout
			opts.Stderr = stderr
		}

		proc, launchErr := vm.NewLauncher(opts).LaunchInstance(cmd.Context(), inst)

		result, err := formatter.FormatInstance(inst)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		_, _ = fmt.Fprint(stdout, result)

		if launchErr != nil {
			return fmt.Errorf("failed to launch instance: %w", launchErr)
		}

		if !launchFlags.wait {
			return proc.Release()
		}
		return waitForInstance(proc)
	},
}

func init() {
	f := launchCmd.Flags()
	f.StringVarP(&launchFlags.file, "file", "f", "", "Instance resource file")
	f.StringVar(&launchFlags.name, "name", "", "Name recorded in the instance metadata")
	f.StringVar(&launchFlags.arch, "arch", "", "Guest architecture (x86, x86_64)")
	f.StringVar(&launchFlags.base, "base", "", "Base image path")
	f.StringVar(&launchFlags.boot, "boot", "", "Boot image path (generated when empty)")
	f.StringVar(&launchFlags.bootDir, "boot-dir", "", "Directory for generated boot images (default: system temp dir)")
	f.BoolVar(&launchFlags.overwrite, "overwrite", false, "Replace an existing boot image")
	f.StringVar(&launchFlags.searchDir, "search-dir", "", "Only look for hypervisors in this directory")
	f.StringVar(&launchFlags.qemuImg, "qemu-img", "", "qemu-img executable (default: qemu-img on PATH)")
	f.BoolVar(&launchFlags.wait, "wait", false, "Wait for the hypervisor to exit")
	addOutputFlags(launchCmd, "table")
}

// launchInstanceFromFlags builds the Instance either from -f or from the
// individual spec flags. The two are mutually exclusive.
func launchInstanceFromFlags(cmd *cobra.Command) (*v1alpha1.Instance, error) {
	specFlags := []string{"arch", "base", "boot"}

	if launchFlags.file != "" {
		for _, name := range specFlags {
			if cmd.Flags().Changed(name) {
				return nil, fmt.Errorf("--%s cannot be combined with --file", name)
			}
		}
		inst, err := loader.LoadFromFile(launchFlags.file)
		if err != nil {
			return nil, fmt.Errorf("failed to load instance: %w", err)
		}
		if launchFlags.name != "" {
			inst.Name = launchFlags.name
		}
		return inst, nil
	}

	if launchFlags.arch == "" {
		return nil, fmt.Errorf("--arch is required (or use --file)")
	}
	if launchFlags.base == "" {
		return nil, fmt.Errorf("--base is required (or use --file)")
	}

	inst := v1alpha1.NewInstance(launchFlags.name)
	inst.Spec = v1alpha1.InstanceSpec{
		Arch:      launchFlags.arch,
		BaseImage: launchFlags.base,
		BootImage: launchFlags.boot,
	}
	return inst, nil
}

// waitForInstance blocks until the hypervisor exits, forwarding SIGINT and
// SIGTERM to it in the meantime. The hypervisor is in its own process group,
// so this is the only delivery path for signals aimed at vmexec.
func waitForInstance(proc *qemu.Instance) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	done := make(chan error, 1)
	go func() { done <- proc.Wait() }()

	for {
		select {
		case sig := <-sigs:
			logger.Info("forwarding signal to hypervisor", "signal", sig.String(), "pid", proc.PID())
			if err := proc.Signal(sig); err != nil {
				logger.Warn("failed to forward signal", "signal", sig.String(), "error", err)
			}
		case err := <-done:
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return fmt.Errorf("hypervisor exited: %w", err)
			}
			if err != nil {
				return fmt.Errorf("failed to wait for hypervisor: %w", err)
			}
			logger.Info("instance exited", "pid", proc.PID())
			return nil
		}
	}
}
