package tenant

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed demo/*.yaml
var demoFS embed.FS

type demoFile struct {
	Tenants []*Record `yaml:"tenants"`
}

// LoadDemo returns the embedded demo tenant table keyed by id.
func LoadDemo() (map[string]*Record, error) {
	data, err := demoFS.ReadFile("demo/tenants.yaml")
	if err != nil {
		return nil, fmt.Errorf("tenant: read demo table: %w", err)
	}
	return ParseDemo(data)
}

// ParseDemo decodes a demo table. Ids must be unique and non-empty.
func ParseDemo(data []byte) (map[string]*Record, error) {
	var file demoFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("tenant: decode demo table: %w", err)
	}
	out := make(map[string]*Record, len(file.Tenants))
	for _, rec := range file.Tenants {
		if rec == nil {
			continue
		}
		rec.ID = normalizeID(rec.ID)
		if rec.ID == "" {
			return nil, fmt.Errorf("tenant: demo record without id")
		}
		if _, dup := out[rec.ID]; dup {
			return nil, fmt.Errorf("tenant: duplicate demo record %q", rec.ID)
		}
		rec.Provenance = ProvenanceDemo
		out[rec.ID] = rec
	}
	return out, nil
}
