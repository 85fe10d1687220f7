// Package manifest parses multi-document YAML resource manifests into
// validated resource specifications. Loading is collect-all: a
// malformed document never aborts the rest of the stream.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ResourceSpec is one declared resource: its provider-scoped identity
// and an opaque configuration mapping. Deeper config schema validation
// is owned by the platform.
type ResourceSpec struct {
	Provider string         `yaml:"provider" json:"provider"`
	Resource string         `yaml:"resource" json:"resource"`
	Name     string         `yaml:"name" json:"name"`
	Config   map[string]any `yaml:"config" json:"config"`
}

// ID returns the provider/resource/name identity of the spec.
func (s ResourceSpec) ID() string {
	return fmt.Sprintf("%s/%s/%s", s.Provider, s.Resource, s.Name)
}

// ValidationError describes one rejected manifest document.
type ValidationError struct {
	Path    string
	Doc     int // zero-based document index within the file
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: document %d: %s", e.Path, e.Doc+1, e.Message)
}

// Load reads and validates all documents from the given manifest
// files. Documents that fail validation are reported in errs; valid
// specs are returned in input order. Parsing is deterministic: the
// same input bytes always yield the same result.
func Load(paths []string) (specs []ResourceSpec, errs []*ValidationError) {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, &ValidationError{Path: path, Doc: 0, Message: err.Error()})
			continue
		}
		s, e := Parse(path, data)
		specs = append(specs, s...)
		errs = append(errs, e...)
	}
	return specs, errs
}

// Parse validates all documents in one manifest. The path is used for
// error reporting and for resolving secret file references.
func Parse(path string, data []byte) (specs []ResourceSpec, errs []*ValidationError) {
	for i, doc := range splitDocuments(data) {
		spec, err := parseDocument(path, i, doc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if spec == nil {
			continue // empty document
		}
		specs = append(specs, *spec)
	}
	return specs, errs
}

// splitDocuments splits a YAML stream on document boundary markers so
// that a syntax error in one document cannot poison its siblings.
func splitDocuments(data []byte) [][]byte {
	lines := strings.Split(string(data), "\n")
	var docs [][]byte
	var current []string
	flush := func() {
		docs = append(docs, []byte(strings.Join(current, "\n")))
		current = nil
	}
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if trimmed == "---" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return docs
}

func parseDocument(path string, index int, doc []byte) (*ResourceSpec, *ValidationError) {
	var raw any
	if err := yaml.Unmarshal(doc, &raw); err != nil {
		return nil, &ValidationError{Path: path, Doc: index, Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	if raw == nil {
		return nil, nil
	}
	mapping, ok := raw.(map[string]any)
	if !ok {
		return nil, &ValidationError{Path: path, Doc: index, Message: "document is not a mapping"}
	}

	spec := ResourceSpec{
		Provider: stringField(mapping, "provider"),
		Resource: stringField(mapping, "resource"),
		Name:     stringField(mapping, "name"),
	}
	var missing []string
	for _, field := range []string{"provider", "resource", "name"} {
		if stringField(mapping, field) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Path: path, Doc: index,
			Message: "missing required field(s): " + strings.Join(missing, ", ")}
	}

	switch cfg := mapping["config"].(type) {
	case nil:
		spec.Config = map[string]any{}
	case map[string]any:
		spec.Config = cfg
	default:
		return nil, &ValidationError{Path: path, Doc: index, Message: "config must be a mapping"}
	}

	if err := resolveFileRefs(&spec, filepath.Dir(path)); err != nil {
		return nil, &ValidationError{Path: path, Doc: index, Message: err.Error()}
	}
	return &spec, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// resolveFileRefs replaces "@<path>" values inside config.data of
// pragma/secret specs with the referenced file's contents, resolved
// relative to the manifest's directory. Other resource types are
// never rewritten.
func resolveFileRefs(spec *ResourceSpec, baseDir string) error {
	if spec.Provider != "pragma" || spec.Resource != "secret" {
		return nil
	}
	data, ok := spec.Config["data"].(map[string]any)
	if !ok {
		return nil
	}
	for key, value := range data {
		ref, ok := value.(string)
		if !ok || !strings.HasPrefix(ref, "@") {
			continue
		}
		target := ref[1:]
		if !filepath.IsAbs(target) {
			target = filepath.Join(baseDir, target)
		}
		contents, err := os.ReadFile(target)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("file not found: %s (referenced by %q)", target, key)
			}
			return fmt.Errorf("reading %s: %w", target, err)
		}
		data[key] = string(contents)
	}
	return nil
}
