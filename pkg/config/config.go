// Package config loads an optional YAML file of flag defaults, applied
// before flag.Parse runs so an operator can check a load profile into
// version control instead of retyping every flag.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults mirrors the CLI surface: every field is optional, and a zero
// value means "let the flag package's own default stand."
type Defaults struct {
	Concurrency int    `yaml:"concurrency"`
	BatchCount  int    `yaml:"batch_count"`
	BatchDelay  int    `yaml:"batch_delay_ms"`
	Port        int    `yaml:"port"`
	Timeout     int    `yaml:"timeout_s"`
	RunLimit    int    `yaml:"run_limit_s"`
	Loops       int    `yaml:"loops"`
	RateQPS     int    `yaml:"rate_qps"`
	QPSFlow     string `yaml:"qps_flow"`
	Family      string `yaml:"family"`
	Protocol    string `yaml:"protocol"`
	Generator   string `yaml:"generator"`
	Record      string `yaml:"record"`
	QueryType   string `yaml:"query_type"`
	Class       string `yaml:"class"`
	DNSSEC      bool   `yaml:"dnssec"`
	Randomize   bool   `yaml:"randomize"`
	RecordFile  string `yaml:"record_file"`
	OutputFile  string `yaml:"output_file"`
	Verbosity   int    `yaml:"verbosity"`

	Metrics MetricsDefaults `yaml:"metrics"`
}

// MetricsDefaults configures the optional Prometheus exporter. Only
// Listen is applied (as -metrics-listen); Path is parsed but not used,
// and the exporter always serves at /metrics.
type MetricsDefaults struct {
	Listen string `yaml:"listen"`
	Path   string `yaml:"path"`
}

// Load reads and parses the YAML file at path into a Defaults struct.
// An absent or empty field simply leaves the corresponding flag's own
// default in effect; this function applies no defaulting of its own.
func Load(path string) (*Defaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	d := &Defaults{}
	if err := yaml.Unmarshal(data, d); err != nil {
		return nil, err
	}
	return d, nil
}
