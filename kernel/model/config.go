package model

import "time"

const (
	DefaultRunInterval          = 30 * time.Second
	DefaultMaxConcurrentUploads = 4
	DefaultMetastoreURI         = "ram://"
)

// MetricsConfig configures the optional InfluxDB reporter.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`
}

// JanitorConfig is the top-level service configuration. The YAML mapping
// lives in the loader package.
type JanitorConfig struct {
	MetastoreURI         string
	DataDir              string
	RunInterval          time.Duration
	MaxConcurrentUploads int
	Searchers            []string
	Metrics              MetricsConfig
}

// ApplyDefaults fills in zero-valued fields. Deletes are not a frequent
// operation, so the default cadence is deliberately slow; each pass costs a
// metastore listing.
func (c *JanitorConfig) ApplyDefaults() {
	if c.MetastoreURI == "" {
		c.MetastoreURI = DefaultMetastoreURI
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.RunInterval <= 0 {
		c.RunInterval = DefaultRunInterval
	}
	if c.MaxConcurrentUploads <= 0 {
		c.MaxConcurrentUploads = DefaultMaxConcurrentUploads
	}
}
