package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalogue is the YAML document format for declaring gateway targets.
//
// Example:
//
//	targets:
//	  - name: ApplicationToolTarget
//	    aliases: ["application tool"]
//	    methods:
//	      - name: create_application
//	        parameters:
//	          - name: coverage_amount
//	            type: number
type Catalogue struct {
	Targets []CatalogueTarget `yaml:"targets"`
}

// CatalogueTarget declares one gateway target and its methods.
type CatalogueTarget struct {
	Name    string            `yaml:"name"`
	Aliases []string          `yaml:"aliases"`
	Methods []CatalogueMethod `yaml:"methods"`
}

// CatalogueMethod declares one method of a target.
type CatalogueMethod struct {
	Name       string           `yaml:"name"`
	Parameters []CatalogueParam `yaml:"parameters"`
}

// CatalogueParam declares one parameter of a method.
type CatalogueParam struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Specs expands the catalogue into action specs.
func (c *Catalogue) Specs() ([]ActionSpec, error) {
	var specs []ActionSpec
	for _, target := range c.Targets {
		if target.Name == "" {
			return nil, fmt.Errorf("catalogue target with empty name")
		}
		for _, method := range target.Methods {
			if method.Name == "" {
				return nil, fmt.Errorf("target %q: method with empty name", target.Name)
			}
			spec := ActionSpec{
				ID:      ActionID(target.Name, method.Name),
				Target:  target.Name,
				Method:  method.Name,
				Aliases: target.Aliases,
			}
			for _, p := range method.Parameters {
				pt := ParamType(p.Type)
				if !pt.Valid() {
					return nil, fmt.Errorf("target %q method %q: parameter %q has unknown type %q",
						target.Name, method.Name, p.Name, p.Type)
				}
				spec.Params = append(spec.Params, Param{Name: p.Name, Type: pt})
			}
			specs = append(specs, spec)
		}
	}
	return specs, nil
}

// LoadCatalogue reads a YAML catalogue file and registers every action it
// declares into a fresh registry.
func LoadCatalogue(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema catalogue %q: %w", path, err)
	}
	return ParseCatalogue(data)
}

// ParseCatalogue parses YAML catalogue bytes into a fresh registry.
func ParseCatalogue(data []byte) (*Registry, error) {
	var catalogue Catalogue
	if err := yaml.Unmarshal(data, &catalogue); err != nil {
		return nil, fmt.Errorf("failed to parse schema catalogue: %w", err)
	}

	specs, err := catalogue.Specs()
	if err != nil {
		return nil, err
	}

	registry := NewRegistry()
	if err := registry.RegisterAll(specs); err != nil {
		return nil, err
	}
	return registry, nil
}
