package output

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/vmexec/api/v1alpha1"
	"github.com/jbweber/vmexec/internal/disk"
)

// YAMLFormatter formats resources as YAML.
type YAMLFormatter struct{}

// FormatInstance formats a single Instance as YAML. The output can be fed
// back to `vmexec launch -f`.
func (f *YAMLFormatter) FormatInstance(inst *v1alpha1.Instance) (string, error) {
	// Ensure TypeMeta is set
	v1alpha1.SetDefaultAPIVersion(inst)
	return marshalYAML(inst, "instance")
}

// FormatArches formats the architectures as a YAML sequence.
func (f *YAMLFormatter) FormatArches(arches []ArchInfo) (string, error) {
	if arches == nil {
		arches = []ArchInfo{}
	}
	return marshalYAML(arches, "architectures")
}

// FormatImageInfo formats image details as YAML.
func (f *YAMLFormatter) FormatImageInfo(info *disk.ImageInfo) (string, error) {
	return marshalYAML(info, "image info")
}

// FormatChecks formats preflight results as a YAML sequence.
func (f *YAMLFormatter) FormatChecks(checks []Check) (string, error) {
	if checks == nil {
		checks = []Check{}
	}
	return marshalYAML(checks, "checks")
}

func marshalYAML(v interface{}, what string) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s to YAML: %w", what, err)
	}
	return string(data), nil
}
