package v1alpha1

import (
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestNewInstance(t *testing.T) {
	inst := NewInstance("scratch")

	if inst.APIVersion != "vmexec.cofront.xyz/v1alpha1" {
		t.Errorf("Expected APIVersion 'vmexec.cofront.xyz/v1alpha1', got %s", inst.APIVersion)
	}
	if inst.Kind != "Instance" {
		t.Errorf("Expected Kind 'Instance', got %s", inst.Kind)
	}
	if inst.Name != "scratch" {
		t.Errorf("Expected Name 'scratch', got %s", inst.Name)
	}
	if inst.UID == "" {
		t.Error("Expected UID to be set")
	}
	if inst.CreationTimestamp.IsZero() {
		t.Error("Expected CreationTimestamp to be set")
	}
	if inst.Status.Phase != InstancePhaseRequested {
		t.Errorf("Expected Phase 'Requested', got %s", inst.Status.Phase)
	}

	if other := NewInstance("scratch"); other.UID == inst.UID {
		t.Error("Expected distinct UIDs for separate instances")
	}
}

func TestSetDefaultAPIVersion(t *testing.T) {
	tests := []struct {
		name         string
		inst         *Instance
		expectedAPI  string
		expectedKind string
	}{
		{
			name:         "missing both",
			inst:         &Instance{},
			expectedAPI:  "vmexec.cofront.xyz/v1alpha1",
			expectedKind: "Instance",
		},
		{
			name:         "missing apiVersion only",
			inst:         &Instance{TypeMeta: TypeMeta{Kind: "Instance"}},
			expectedAPI:  "vmexec.cofront.xyz/v1alpha1",
			expectedKind: "Instance",
		},
		{
			name:         "existing values preserved",
			inst:         &Instance{TypeMeta: TypeMeta{APIVersion: "custom/v1", Kind: "Custom"}},
			expectedAPI:  "custom/v1",
			expectedKind: "Custom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetDefaultAPIVersion(tt.inst)
			if tt.inst.APIVersion != tt.expectedAPI {
				t.Errorf("Expected APIVersion %s, got %s", tt.expectedAPI, tt.inst.APIVersion)
			}
			if tt.inst.Kind != tt.expectedKind {
				t.Errorf("Expected Kind %s, got %s", tt.expectedKind, tt.inst.Kind)
			}
		})
	}
}

func TestGetPhase(t *testing.T) {
	inst := &Instance{}
	if inst.GetPhase() != InstancePhaseRequested {
		t.Errorf("empty phase should read as Requested, got %s", inst.GetPhase())
	}

	inst.Status.Phase = InstancePhaseRunning
	if !inst.IsRunning() || inst.IsFailed() {
		t.Error("Running instance misreported")
	}

	inst.Status.Phase = InstancePhaseFailed
	if inst.IsRunning() || !inst.IsFailed() {
		t.Error("Failed instance misreported")
	}
}

func TestNormalize(t *testing.T) {
	inst := &Instance{
		ObjectMeta: ObjectMeta{Name: "  scratch "},
		Spec: InstanceSpec{
			Arch:      " X86_64 ",
			BaseImage: " /images/base.qcow2\n",
			BootImage: "\t/tmp/boot.qcow2",
		},
	}

	inst.Normalize()

	if inst.Name != "scratch" {
		t.Errorf("Name = %q", inst.Name)
	}
	if inst.Spec.Arch != "x86_64" {
		t.Errorf("Arch = %q", inst.Spec.Arch)
	}
	if inst.Spec.BaseImage != "/images/base.qcow2" {
		t.Errorf("BaseImage = %q", inst.Spec.BaseImage)
	}
	if inst.Spec.BootImage != "/tmp/boot.qcow2" {
		t.Errorf("BootImage = %q", inst.Spec.BootImage)
	}
}

func TestInstance_DeepCopy(t *testing.T) {
	inst := NewInstance("scratch")
	inst.Labels = map[string]string{"env": "test"}

	cp := inst.DeepCopy()
	cp.Labels["env"] = "prod"
	cp.Spec.Arch = "x86"

	if inst.Labels["env"] != "test" {
		t.Error("DeepCopy() shares labels")
	}
	if inst.Spec.Arch != "" {
		t.Error("DeepCopy() shares spec")
	}
}

func TestInstance_Serialization(t *testing.T) {
	inst := NewInstance("scratch")
	inst.Spec = InstanceSpec{
		Arch:      "x86_64",
		BaseImage: "/images/base.qcow2",
		BootImage: "/tmp/boot.qcow2",
	}
	inst.Status.PID = 4242

	yamlData, err := yaml.Marshal(inst)
	if err != nil {
		t.Fatalf("yaml.Marshal() error = %v", err)
	}
	for _, want := range []string{
		"apiVersion: vmexec.cofront.xyz/v1alpha1",
		"kind: Instance",
		"baseImage: /images/base.qcow2",
		"pid: 4242",
	} {
		if !strings.Contains(string(yamlData), want) {
			t.Errorf("YAML output missing %q:\n%s", want, yamlData)
		}
	}
	if strings.Contains(string(yamlData), "overwriteBootImage") {
		t.Errorf("false overwriteBootImage should be omitted:\n%s", yamlData)
	}

	jsonData, err := json.Marshal(inst)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	var decoded Instance
	if err := json.Unmarshal(jsonData, &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if decoded.Spec != inst.Spec {
		t.Errorf("JSON spec = %+v, want %+v", decoded.Spec, inst.Spec)
	}
	if decoded.Name != "scratch" {
		t.Errorf("JSON metadata.name = %q", decoded.Name)
	}
}
