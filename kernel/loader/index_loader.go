package loader

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// IndexDefinition is one desired index in an apply file.
type IndexDefinition struct {
	IndexID  string `yaml:"index_id"`
	IndexURI string `yaml:"index_uri"`
}

type indexesYaml struct {
	Indexes []IndexDefinition `yaml:"indexes"`
}

// LoadIndexes reads an apply file listing the desired indexes.
func LoadIndexes(path string) ([]IndexDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read index file '%s'", path)
	}

	var raw indexesYaml
	if err := yaml.UnmarshalStrict(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "failed to parse index file '%s'", path)
	}

	seen := make(map[string]struct{}, len(raw.Indexes))
	for _, def := range raw.Indexes {
		if def.IndexID == "" {
			return nil, errors.Errorf("index definition in '%s' is missing index_id", path)
		}
		if def.IndexURI == "" {
			return nil, errors.Errorf("index '%s' is missing index_uri", def.IndexID)
		}
		if _, dup := seen[def.IndexID]; dup {
			return nil, errors.Errorf("duplicate index id '%s'", def.IndexID)
		}
		seen[def.IndexID] = struct{}{}
	}
	return raw.Indexes, nil
}
