// Package v1alpha1 contains API types for vmexec.cofront.xyz/v1alpha1
//
// An Instance describes a single launch request and what was observed when it
// was carried out. The types follow Kubernetes API conventions (TypeMeta,
// ObjectMeta, Spec, Status) without depending on k8s.io/apimachinery.
package v1alpha1

import (
	"encoding/json"
	"time"

	"gopkg.in/yaml.v3"
)

// TypeMeta describes an individual object's type and API version.
type TypeMeta struct {
	// Kind is the resource kind, in CamelCase.
	// +optional
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`

	// APIVersion is the versioned schema of this representation of an object.
	// +optional
	APIVersion string `json:"apiVersion,omitempty" yaml:"apiVersion,omitempty"`
}

// ObjectMeta is descriptive metadata. Nothing in vmexec uses it to identify
// or look up a running instance.
type ObjectMeta struct {
	// Name is a human-readable label for the launch request.
	// +optional
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Labels are key/value pairs attached to the request.
	// +optional
	Labels map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`

	// Annotations are unstructured key/value pairs that may be set by external tools.
	// +optional
	Annotations map[string]string `json:"annotations,omitempty" yaml:"annotations,omitempty"`

	// UID identifies this particular request. Populated by NewInstance.
	// +optional
	UID string `json:"uid,omitempty" yaml:"uid,omitempty"`

	// CreationTimestamp is when the request was created.
	// +optional
	CreationTimestamp Time `json:"creationTimestamp,omitempty" yaml:"creationTimestamp,omitempty"`
}

// Time is a time.Time that serializes as an RFC3339 string. The zero value
// serializes as null.
type Time struct {
	time.Time `json:"-" yaml:"-"`
}

const timeLayout = time.RFC3339

// NewTime wraps t.
func NewTime(t time.Time) Time {
	return Time{Time: t}
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(timeLayout))
}

func (t *Time) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return t.set("")
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return t.set(s)
}

func (t Time) MarshalYAML() (interface{}, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.Format(timeLayout), nil
}

func (t *Time) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!null" {
		return t.set("")
	}
	return t.set(node.Value)
}

// set parses s, treating the empty string as the zero time.
func (t *Time) set(s string) error {
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(timeLayout, s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// DeepCopy creates a deep copy of ObjectMeta.
func (in *ObjectMeta) DeepCopy() *ObjectMeta {
	if in == nil {
		return nil
	}
	out := new(ObjectMeta)
	*out = *in
	out.Labels = copyStringMap(in.Labels)
	out.Annotations = copyStringMap(in.Annotations)
	return out
}

func copyStringMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
