//go:build unix

package main

import (
	"encoding/json"
	"syscall"
	"testing"

	"github.com/jbweber/vmexec/api/v1alpha1"
)

func TestLaunchCommandOwnProcessGroup(t *testing.T) {
	env := newToolEnv(t)

	out, err := executeCommand(t, env.launchArgs("-o", "json")...)
	if err != nil {
		t.Fatalf("launch error: %v", err)
	}

	var inst v1alpha1.Instance
	if err := json.Unmarshal([]byte(out), &inst); err != nil {
		t.Fatalf("failed to parse output: %v\n%s", err, out)
	}
	pid := inst.Status.PID
	killPID(t, pid)

	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		t.Fatalf("Getpgid(%d) error: %v", pid, err)
	}
	if pgid != pid {
		t.Errorf("hypervisor process group = %d, want its own group %d", pgid, pid)
	}
	if pgid == syscall.Getpgrp() {
		t.Error("hypervisor shares the launcher's process group")
	}
}
