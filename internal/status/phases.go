// Package status manages the phase of an Instance during a single launch
// attempt.
//
// The phases only move forward:
//
//	Requested -> Provisioning -> Spawning -> Running
//
// and any non-terminal phase may move to Failed. Running and Failed are
// terminal.
package status

import (
	"fmt"
	"time"

	"github.com/jbweber/vmexec/api/v1alpha1"
)

// TransitionToProvisioning moves the instance to Provisioning.
// This should be called right before the boot image is created.
func TransitionToProvisioning(inst *v1alpha1.Instance) error {
	if inst.GetPhase() != v1alpha1.InstancePhaseRequested {
		return fmt.Errorf("cannot transition to Provisioning from phase %s", inst.GetPhase())
	}

	setPhase(inst, v1alpha1.InstancePhaseProvisioning, "Provisioning", "creating boot image")
	return nil
}

// TransitionToSpawning moves the instance to Spawning.
// This should be called once the boot image exists.
func TransitionToSpawning(inst *v1alpha1.Instance) error {
	if inst.GetPhase() != v1alpha1.InstancePhaseProvisioning {
		return fmt.Errorf("cannot transition to Spawning from phase %s", inst.GetPhase())
	}

	setPhase(inst, v1alpha1.InstancePhaseSpawning, "Spawning", "starting hypervisor")
	return nil
}

// TransitionToRunning moves the instance to Running and records the process
// that was started.
func TransitionToRunning(inst *v1alpha1.Instance, pid int, executable string, startedAt time.Time) error {
	if inst.GetPhase() != v1alpha1.InstancePhaseSpawning {
		return fmt.Errorf("cannot transition to Running from phase %s", inst.GetPhase())
	}

	setPhase(inst, v1alpha1.InstancePhaseRunning, v1alpha1.ReasonLaunched,
		fmt.Sprintf("hypervisor started with pid %d", pid))
	inst.Status.PID = pid
	inst.Status.Executable = executable
	inst.Status.StartTime = v1alpha1.NewTime(startedAt)
	return nil
}

// TransitionToFailed moves the instance to Failed. It can happen from any
// phase that is not terminal.
func TransitionToFailed(inst *v1alpha1.Instance, reason, message string) error {
	if IsTerminal(inst.GetPhase()) {
		return fmt.Errorf("cannot transition to Failed from phase %s", inst.GetPhase())
	}

	setPhase(inst, v1alpha1.InstancePhaseFailed, reason, message)
	return nil
}

// IsTerminal returns true if the phase is terminal (Running or Failed).
// A launch attempt never leaves a terminal phase.
func IsTerminal(phase v1alpha1.InstancePhase) bool {
	return phase == v1alpha1.InstancePhaseRunning || phase == v1alpha1.InstancePhaseFailed
}

// IsTransitioning returns true while a launch is creating the boot image or
// starting the hypervisor.
func IsTransitioning(phase v1alpha1.InstancePhase) bool {
	return phase == v1alpha1.InstancePhaseProvisioning || phase == v1alpha1.InstancePhaseSpawning
}

func setPhase(inst *v1alpha1.Instance, phase v1alpha1.InstancePhase, reason, message string) {
	inst.Status.Phase = phase
	inst.Status.Reason = reason
	inst.Status.Message = message
	inst.Status.LastTransitionTime = v1alpha1.NewTime(time.Now())
}
