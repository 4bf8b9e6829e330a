// Package loader provides functions for loading Instance resources from
// YAML files.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jbweber/vmexec/api/v1alpha1"
	"github.com/jbweber/vmexec/internal/arch"
)

// validate is shared; building a validator caches struct metadata.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report fields by their YAML names so messages match the file.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// guestarch accepts any declared architecture name. Whether this host can
	// run it is decided at launch time.
	if err := v.RegisterValidation("guestarch", func(fl validator.FieldLevel) bool {
		_, err := arch.Lookup(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(err)
	}

	return v
}

// LoadFromFile loads an Instance resource from a YAML file.
// Relative image paths in the document are resolved against the file's directory.
func LoadFromFile(path string) (*v1alpha1.Instance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	inst, err := LoadFromYAML(data)
	if err != nil {
		return nil, err
	}

	resolvePaths(inst, filepath.Dir(path))
	return inst, nil
}

// LoadFromYAML loads an Instance resource from YAML bytes.
// The YAML must be in the vmexec.cofront.xyz/v1alpha1 format. Unknown fields
// are rejected.
func LoadFromYAML(data []byte) (*v1alpha1.Instance, error) {
	var inst v1alpha1.Instance

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&inst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty document")
		}
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	// Validate that apiVersion and kind are present
	if inst.APIVersion == "" {
		return nil, fmt.Errorf("missing required field: apiVersion")
	}
	if inst.Kind == "" {
		return nil, fmt.Errorf("missing required field: kind")
	}

	if inst.APIVersion != v1alpha1.APIVersion() {
		return nil, fmt.Errorf("unsupported apiVersion: %s (expected: %s)", inst.APIVersion, v1alpha1.APIVersion())
	}
	if inst.Kind != v1alpha1.InstanceKind {
		return nil, fmt.Errorf("unsupported kind: %s (expected: %s)", inst.Kind, v1alpha1.InstanceKind)
	}

	applyDefaults(&inst)

	if err := validateSpec(&inst); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &inst, nil
}

// SaveToFile saves an Instance resource to a YAML file.
func SaveToFile(inst *v1alpha1.Instance, path string) error {
	// Ensure TypeMeta is set
	v1alpha1.SetDefaultAPIVersion(inst)

	data, err := yaml.Marshal(inst)
	if err != nil {
		return fmt.Errorf("failed to marshal instance to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	return nil
}

// applyDefaults sets default values for optional fields.
func applyDefaults(inst *v1alpha1.Instance) {
	inst.Normalize()

	// Set initial phase if not set
	if inst.Status.Phase == "" {
		inst.Status.Phase = v1alpha1.InstancePhaseRequested
	}
}

// validateSpec validates the Instance against its struct tags.
func validateSpec(inst *v1alpha1.Instance) error {
	err := validate.Struct(inst)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "guestarch":
		return fmt.Sprintf("%s %q is not a known architecture", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %q validation", field, fe.Tag())
	}
}

// resolvePaths makes relative image paths absolute against dir.
func resolvePaths(inst *v1alpha1.Instance, dir string) {
	if p := inst.Spec.BaseImage; p != "" && !filepath.IsAbs(p) {
		inst.Spec.BaseImage = filepath.Join(dir, p)
	}
	if p := inst.Spec.BootImage; p != "" && !filepath.IsAbs(p) {
		inst.Spec.BootImage = filepath.Join(dir, p)
	}
}
