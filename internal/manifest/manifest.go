// Package manifest describes API instances declaratively in YAML and builds
// them into a Registry.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/soyeahso/apikit/internal/api"
	"github.com/soyeahso/apikit/internal/logging"
	"github.com/soyeahso/apikit/internal/semver"
	"gopkg.in/yaml.v3"
)

// Manifest is the root of a manifest file.
type Manifest struct {
	APIs []API `yaml:"apis"`
}

// API declares one instance.
type API struct {
	Name      string         `yaml:"name"`
	Version   string         `yaml:"version"`
	Options   map[string]any `yaml:"options,omitempty"`
	Constants map[string]any `yaml:"constants,omitempty"`
	Resources []Resource     `yaml:"resources,omitempty"`
}

// Resource declares one resource of an API.
type Resource struct {
	Name      string         `yaml:"name"`
	Options   map[string]any `yaml:"options,omitempty"`
	Constants map[string]any `yaml:"constants,omitempty"`
}

// Parse decodes a manifest. Unknown keys are rejected.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: parse manifest: %w", api.ErrConfiguration, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Validate reports every structural problem in the manifest at once.
func (m *Manifest) Validate() error {
	var issues []string
	seen := make(map[string]bool)
	for n, a := range m.APIs {
		at := fmt.Sprintf("apis[%d]", n)
		if a.Name == "" {
			issues = append(issues, at+".name: required")
		}
		if !semver.IsValid(a.Version) {
			issues = append(issues, fmt.Sprintf("%s.version: %q is not a semantic version", at, a.Version))
		}
		id := a.Name + "@" + a.Version
		if a.Name != "" && seen[id] {
			issues = append(issues, fmt.Sprintf("%s: %s declared twice", at, id))
		}
		seen[id] = true

		resources := make(map[string]bool)
		for rn, r := range a.Resources {
			rat := fmt.Sprintf("%s.resources[%d]", at, rn)
			switch {
			case r.Name == "":
				issues = append(issues, rat+".name: required")
			case resources[r.Name]:
				issues = append(issues, fmt.Sprintf("%s: resource %q declared twice", rat, r.Name))
			}
			resources[r.Name] = true
		}
	}
	if len(issues) > 0 {
		return fmt.Errorf("%w: %s", api.ErrConfiguration, strings.Join(issues, "; "))
	}
	return nil
}

// Build constructs every declared API on reg, in manifest order. It stops at
// the first failure; instances built before it stay registered.
func Build(reg *api.Registry, m *Manifest, log *logging.Logger) ([]*api.Instance, error) {
	log = logging.OrNop(log)
	mlog := log.Sub("manifest")

	built := make([]*api.Instance, 0, len(m.APIs))
	for _, a := range m.APIs {
		inst, err := api.New(reg, a.Name, a.Version,
			api.WithLogger(log),
			api.WithConstants(a.Constants),
			api.WithOptions(api.Options(a.Options)),
		)
		if err != nil {
			return built, err
		}
		for _, r := range a.Resources {
			def := api.ResourceDef{Constants: r.Constants}
			if err := inst.AddResource(r.Name, api.Options(r.Options), def); err != nil {
				return built, fmt.Errorf("%s: %w", inst, err)
			}
		}
		built = append(built, inst)
	}

	mlog.Info().Int("apis", len(built)).Msg("manifest built")
	return built, nil
}
