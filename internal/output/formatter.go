// Package output provides formatters for displaying vmexec resources
// in various formats (table, YAML, JSON).
package output

import (
	"fmt"

	"github.com/jbweber/vmexec/api/v1alpha1"
	"github.com/jbweber/vmexec/internal/disk"
)

// Format represents an output format type.
type Format string

const (
	// FormatTable is a human-readable table format.
	FormatTable Format = "table"
	// FormatYAML is a YAML format for declarative configs.
	FormatYAML Format = "yaml"
	// FormatJSON is a JSON format for machine consumption.
	FormatJSON Format = "json"
)

// ArchInfo describes one guest architecture on this host.
type ArchInfo struct {
	Name       string `json:"name" yaml:"name"`
	Executable string `json:"executable" yaml:"executable"`
	Supported  bool   `json:"supported" yaml:"supported"`
	// Path is the resolved hypervisor, empty when it is not installed.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// CheckStatus is the outcome of a host check.
type CheckStatus string

const (
	CheckOK      CheckStatus = "ok"
	CheckWarning CheckStatus = "warning"
	CheckFailed  CheckStatus = "failed"
)

// Check is the result of one host preflight check.
type Check struct {
	Name   string      `json:"name" yaml:"name"`
	Status CheckStatus `json:"status" yaml:"status"`
	Detail string      `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Formatter formats vmexec resources for output.
type Formatter interface {
	// FormatInstance formats a single Instance resource.
	FormatInstance(inst *v1alpha1.Instance) (string, error)

	// FormatArches formats the architecture table.
	FormatArches(arches []ArchInfo) (string, error)

	// FormatImageInfo formats qemu-img image details.
	FormatImageInfo(info *disk.ImageInfo) (string, error)

	// FormatChecks formats host preflight results.
	FormatChecks(checks []Check) (string, error)
}

// Options contains options for formatting output.
type Options struct {
	// Format specifies the output format.
	Format Format
	// NoHeaders omits headers in table format.
	NoHeaders bool
}

// NewFormatter creates a new Formatter based on the specified format.
func NewFormatter(opts Options) (Formatter, error) {
	switch opts.Format {
	case FormatTable:
		return &TableFormatter{NoHeaders: opts.NoHeaders}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, yaml, json)", opts.Format)
	}
}

// ValidateFormat checks if a format string is valid.
func ValidateFormat(format string) error {
	f := Format(format)
	switch f {
	case FormatTable, FormatYAML, FormatJSON:
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid formats: table, yaml, json)", format)
	}
}
