package loader

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/jakegut/quickwit/kernel/model"
)

type janitorYaml struct {
	MetastoreURI         string              `yaml:"metastore_uri"`
	DataDir              string              `yaml:"data_dir"`
	RunInterval          string              `yaml:"run_interval"`
	MaxConcurrentUploads int                 `yaml:"max_concurrent_uploads"`
	Searchers            []string            `yaml:"searchers"`
	Metrics              model.MetricsConfig `yaml:"metrics"`
}

// LoadConfig reads a janitor configuration file. Omitted fields take their
// defaults; a malformed run_interval is an error rather than a silent default.
func LoadConfig(path string) (*model.JanitorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config '%s'", path)
	}

	var raw janitorYaml
	if err := yaml.UnmarshalStrict(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config '%s'", path)
	}

	cfg := &model.JanitorConfig{
		MetastoreURI:         raw.MetastoreURI,
		DataDir:              raw.DataDir,
		MaxConcurrentUploads: raw.MaxConcurrentUploads,
		Searchers:            raw.Searchers,
		Metrics:              raw.Metrics,
	}
	if raw.RunInterval != "" {
		interval, err := time.ParseDuration(raw.RunInterval)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid run_interval '%s'", raw.RunInterval)
		}
		cfg.RunInterval = interval
	}
	cfg.ApplyDefaults()
	return cfg, nil
}
