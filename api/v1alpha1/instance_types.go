package v1alpha1

// Instance is a request to launch one ephemeral virtual machine, together
// with the observed outcome of that launch.
//
// The launcher never stores an Instance. Status is written back onto the
// value the caller passed in and is only meaningful for that one attempt.
type Instance struct {
	TypeMeta `json:",inline" yaml:",inline"`

	// +optional
	ObjectMeta `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	// Spec describes what to launch.
	Spec InstanceSpec `json:"spec" yaml:"spec"`

	// Status is populated by the launcher.
	// +optional
	Status InstanceStatus `json:"status,omitempty" yaml:"status,omitempty"`
}

// InstanceSpec defines the launch request.
type InstanceSpec struct {
	// Arch is the guest instruction set, e.g. "x86_64" or "x86".
	Arch string `json:"arch" yaml:"arch" validate:"required,guestarch"`

	// BaseImage is the path of the read-only image the boot image is derived
	// from. It is never modified.
	BaseImage string `json:"baseImage" yaml:"baseImage" validate:"required"`

	// BootImage is where the copy-on-write boot image is created. A unique
	// path is generated when empty.
	// +optional
	BootImage string `json:"bootImage,omitempty" yaml:"bootImage,omitempty"`

	// OverwriteBootImage replaces an existing file at BootImage instead of
	// failing.
	// +optional
	OverwriteBootImage bool `json:"overwriteBootImage,omitempty" yaml:"overwriteBootImage,omitempty"`
}

// InstancePhase is the stage a launch attempt has reached.
type InstancePhase string

const (
	// InstancePhaseRequested means the request was accepted and nothing has
	// been done yet.
	InstancePhaseRequested InstancePhase = "Requested"

	// InstancePhaseProvisioning means the boot image is being created.
	InstancePhaseProvisioning InstancePhase = "Provisioning"

	// InstancePhaseSpawning means the hypervisor is being started.
	InstancePhaseSpawning InstancePhase = "Spawning"

	// InstancePhaseRunning means the hypervisor process was started and its
	// handle was returned to the caller.
	InstancePhaseRunning InstancePhase = "Running"

	// InstancePhaseFailed means provisioning or spawning failed.
	InstancePhaseFailed InstancePhase = "Failed"
)

// Reasons recorded in InstanceStatus.Reason.
const (
	ReasonLaunched           = "Launched"
	ReasonUnsupportedArch    = "UnsupportedArch"
	ReasonProvisioningFailed = "ProvisioningFailed"
	ReasonSpawnFailed        = "SpawnFailed"
)

// InstanceStatus is the observed result of a launch attempt.
type InstanceStatus struct {
	// +optional
	Phase InstancePhase `json:"phase,omitempty" yaml:"phase,omitempty"`

	// PID is the hypervisor process ID once running.
	// +optional
	PID int `json:"pid,omitempty" yaml:"pid,omitempty"`

	// Executable is the resolved hypervisor path.
	// +optional
	Executable string `json:"executable,omitempty" yaml:"executable,omitempty"`

	// Reason is a CamelCase identifier for the last transition.
	// +optional
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`

	// Message is a human-readable description of the last transition.
	// +optional
	Message string `json:"message,omitempty" yaml:"message,omitempty"`

	// StartTime is when the hypervisor process was started.
	// +optional
	StartTime Time `json:"startTime,omitempty" yaml:"startTime,omitempty"`

	// LastTransitionTime is when Phase last changed.
	// +optional
	LastTransitionTime Time `json:"lastTransitionTime,omitempty" yaml:"lastTransitionTime,omitempty"`
}

// DeepCopy creates a deep copy of Instance.
func (in *Instance) DeepCopy() *Instance {
	if in == nil {
		return nil
	}
	out := new(Instance)
	*out = *in
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()
	return out
}
