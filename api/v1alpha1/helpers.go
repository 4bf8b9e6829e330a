package v1alpha1

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// GroupName is the API group for vmexec resources.
	GroupName = "vmexec.cofront.xyz"

	// Version is the API version.
	Version = "v1alpha1"

	// InstanceKind is the kind string for Instance resources.
	InstanceKind = "Instance"
)

// APIVersion returns the full apiVersion string for this package.
func APIVersion() string {
	return GroupName + "/" + Version
}

// NewInstance creates an Instance with TypeMeta and ObjectMeta populated and
// the status set to Requested.
func NewInstance(name string) *Instance {
	return &Instance{
		TypeMeta: TypeMeta{
			APIVersion: APIVersion(),
			Kind:       InstanceKind,
		},
		ObjectMeta: ObjectMeta{
			Name:              name,
			UID:               uuid.New().String(),
			CreationTimestamp: NewTime(time.Now()),
		},
		Status: InstanceStatus{
			Phase: InstancePhaseRequested,
		},
	}
}

// SetDefaultAPIVersion ensures the Instance has the correct apiVersion and kind.
// Useful when loading from files that might be missing these fields.
func SetDefaultAPIVersion(inst *Instance) {
	if inst.APIVersion == "" {
		inst.APIVersion = APIVersion()
	}
	if inst.Kind == "" {
		inst.Kind = InstanceKind
	}
}

// GetPhase returns the current phase, treating an empty phase as Requested.
func (inst *Instance) GetPhase() InstancePhase {
	if inst.Status.Phase == "" {
		return InstancePhaseRequested
	}
	return inst.Status.Phase
}

// IsRunning returns true if the launch reached Running.
func (inst *Instance) IsRunning() bool {
	return inst.Status.Phase == InstancePhaseRunning
}

// IsFailed returns true if the launch failed.
func (inst *Instance) IsFailed() bool {
	return inst.Status.Phase == InstancePhaseFailed
}

// Normalize sanitizes user input to consistent formats.
// This is called automatically before validation.
func (inst *Instance) Normalize() {
	inst.Name = strings.TrimSpace(inst.Name)
	inst.Spec.Arch = strings.ToLower(strings.TrimSpace(inst.Spec.Arch))
	inst.Spec.BaseImage = strings.TrimSpace(inst.Spec.BaseImage)
	inst.Spec.BootImage = strings.TrimSpace(inst.Spec.BootImage)
}
