package qemu

import (
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/jbweber/vmexec/internal/arch"
)

// Instance is a running hypervisor process. It is owned by whoever received
// it from Spawn; nothing else keeps a reference or monitors the process.
//
// Dropping an Instance does not stop the process. Call Kill or Signal, then
// Wait, to stop and reap it, or Release to detach from it.
type Instance struct {
	cmd       *exec.Cmd
	arch      arch.GuestArch
	bootImage string
	startedAt time.Time

	waitOnce sync.Once
	waitErr  error
	done     chan struct{}
}

func newInstance(cmd *exec.Cmd, a arch.GuestArch, boot string) *Instance {
	return &Instance{
		cmd:       cmd,
		arch:      a,
		bootImage: boot,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
}

// PID returns the operating system process ID.
func (i *Instance) PID() int {
	return i.cmd.Process.Pid
}

// Arch returns the guest architecture the instance was started for.
func (i *Instance) Arch() arch.GuestArch {
	return i.arch
}

// BootImage returns the boot image path the hypervisor was attached to.
func (i *Instance) BootImage() string {
	return i.bootImage
}

// Executable returns the resolved hypervisor path.
func (i *Instance) Executable() string {
	return i.cmd.Path
}

// Args returns the full argument vector, including the executable.
func (i *Instance) Args() []string {
	return append([]string(nil), i.cmd.Args...)
}

// StartedAt returns when the process was created.
func (i *Instance) StartedAt() time.Time {
	return i.startedAt
}

// Process returns the underlying process.
func (i *Instance) Process() *os.Process {
	return i.cmd.Process
}

// Wait blocks until the hypervisor exits and releases its resources. It is
// safe to call more than once; every call returns the same result.
func (i *Instance) Wait() error {
	i.waitOnce.Do(func() {
		i.waitErr = i.cmd.Wait()
		close(i.done)
	})
	return i.waitErr
}

// Exited reports whether Wait has observed the process exit.
func (i *Instance) Exited() bool {
	select {
	case <-i.done:
		return true
	default:
		return false
	}
}

// ProcessState returns the exit state, or nil until Wait has returned.
func (i *Instance) ProcessState() *os.ProcessState {
	if !i.Exited() {
		return nil
	}
	return i.cmd.ProcessState
}

// Alive reports whether the process still exists. A process that has exited
// but has not been waited for still counts as alive.
func (i *Instance) Alive() bool {
	if i.Exited() {
		return false
	}
	return i.cmd.Process.Signal(syscall.Signal(0)) == nil
}

// Signal sends sig to the hypervisor.
func (i *Instance) Signal(sig os.Signal) error {
	return i.cmd.Process.Signal(sig)
}

// Terminate asks the hypervisor to shut down with SIGTERM.
func (i *Instance) Terminate() error {
	return i.Signal(syscall.SIGTERM)
}

// Kill stops the hypervisor immediately.
func (i *Instance) Kill() error {
	return i.cmd.Process.Kill()
}

// Release detaches from the process without stopping it. Afterwards Signal
// and Kill fail, Alive reports false, and Wait must not be called.
func (i *Instance) Release() error {
	return i.cmd.Process.Release()
}
