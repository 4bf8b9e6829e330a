package output

import (
	"encoding/json"
	"fmt"

	"github.com/jbweber/vmexec/api/v1alpha1"
	"github.com/jbweber/vmexec/internal/disk"
)

// JSONFormatter formats resources as JSON.
type JSONFormatter struct{}

// FormatInstance formats a single Instance as JSON.
func (f *JSONFormatter) FormatInstance(inst *v1alpha1.Instance) (string, error) {
	// Ensure TypeMeta is set
	v1alpha1.SetDefaultAPIVersion(inst)
	return marshalJSON(inst, "instance")
}

// FormatArches formats the architectures as a JSON array.
func (f *JSONFormatter) FormatArches(arches []ArchInfo) (string, error) {
	if arches == nil {
		arches = []ArchInfo{}
	}
	return marshalJSON(arches, "architectures")
}

// FormatImageInfo formats image details as JSON using qemu-img's field names.
func (f *JSONFormatter) FormatImageInfo(info *disk.ImageInfo) (string, error) {
	return marshalJSON(info, "image info")
}

// FormatChecks formats preflight results as a JSON array.
func (f *JSONFormatter) FormatChecks(checks []Check) (string, error) {
	if checks == nil {
		checks = []Check{}
	}
	return marshalJSON(checks, "checks")
}

func marshalJSON(v interface{}, what string) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s to JSON: %w", what, err)
	}
	return string(data) + "\n", nil
}
