package vm

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/jbweber/vmexec/internal/arch"
	"github.com/jbweber/vmexec/internal/qemu"
	"github.com/jbweber/vmexec/internal/testutil"
)

type provisionCall struct {
	Base      string
	Boot      string
	Overwrite bool
}

type spawnCall struct {
	Arch arch.GuestArch
	Boot string
}

// callLog records the order in which mocks are invoked across a launch.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, name)
}

func (c *callLog) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// mockProvisioner is a mock implementation of the bootImageProvisioner interface for testing.
type mockProvisioner struct {
	mu  sync.Mutex
	log *callLog

	// Configurable behavior
	createBootImageFunc func(ctx context.Context, base, boot string, overwrite bool) error

	// Call tracking
	createBootImageCalls []provisionCall
}

// newMockProvisioner creates a mock provisioner that writes an empty file
// at the boot image path.
func newMockProvisioner(log *callLog) *mockProvisioner {
	return &mockProvisioner{
		log: log,
		createBootImageFunc: func(_ context.Context, _, boot string, _ bool) error {
			return os.WriteFile(boot, nil, 0644)
		},
	}
}

func (m *mockProvisioner) CreateBootImage(ctx context.Context, base, boot string, overwrite bool) error {
	m.mu.Lock()
	m.createBootImageCalls = append(m.createBootImageCalls, provisionCall{Base: base, Boot: boot, Overwrite: overwrite})
	m.mu.Unlock()
	if m.log != nil {
		m.log.add("provision")
	}
	return m.createBootImageFunc(ctx, base, boot, overwrite)
}

func (m *mockProvisioner) calls() []provisionCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]provisionCall(nil), m.createBootImageCalls...)
}

// mockSpawner is a mock implementation of the hypervisorSpawner interface for testing.
type mockSpawner struct {
	mu  sync.Mutex
	log *callLog

	// Configurable behavior
	spawnFunc func(ctx context.Context, a arch.GuestArch, boot string) (*qemu.Instance, error)

	// Call tracking
	spawnCalls []spawnCall
}

// newMockSpawner creates a mock spawner that starts real processes from
// stand-in hypervisor scripts. Every instance it starts is killed when the
// test ends.
func newMockSpawner(t *testing.T, log *callLog) *mockSpawner {
	t.Helper()

	dir := t.TempDir()
	for _, a := range []arch.GuestArch{arch.X86, arch.X86_64} {
		testutil.FakeHypervisor(t, dir, a.Executable())
	}
	spawner := &qemu.Spawner{SearchDir: dir}

	return &mockSpawner{
		log: log,
		spawnFunc: func(ctx context.Context, a arch.GuestArch, boot string) (*qemu.Instance, error) {
			inst, err := spawner.Spawn(ctx, a, boot)
			if err == nil {
				reap(t, inst)
			}
			return inst, err
		},
	}
}

func (m *mockSpawner) Spawn(ctx context.Context, a arch.GuestArch, boot string) (*qemu.Instance, error) {
	m.mu.Lock()
	m.spawnCalls = append(m.spawnCalls, spawnCall{Arch: a, Boot: boot})
	m.mu.Unlock()
	if m.log != nil {
		m.log.add("spawn")
	}
	return m.spawnFunc(ctx, a, boot)
}

func (m *mockSpawner) calls() []spawnCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]spawnCall(nil), m.spawnCalls...)
}

// reap kills and waits for inst when the test ends.
func reap(t *testing.T, inst *qemu.Instance) {
	t.Helper()
	t.Cleanup(func() {
		_ = inst.Kill()
		_ = inst.Wait()
	})
}

// hostArch returns an architecture this host can launch, skipping the test
// when there is none.
func hostArch(t *testing.T) arch.GuestArch {
	t.Helper()
	supported := arch.Supported()
	if len(supported) == 0 {
		t.Skip("host cannot virtualize any x86 guest")
	}
	return supported[len(supported)-1]
}
