package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Job is a saved pipeline invocation. Schedule is carried as-is and never
// interpreted.
type Job struct {
	Name     string `yaml:"name"`
	Schedule string `yaml:"schedule,omitempty"`
	Enabled  bool   `yaml:"enabled"`
	Params   Config `yaml:"params,omitempty"`
}

// ParseJob decodes a YAML job. Enabled defaults to true.
func ParseJob(data []byte) (Job, error) {
	var raw struct {
		Name     string         `yaml:"name"`
		Schedule string         `yaml:"schedule"`
		Enabled  *bool          `yaml:"enabled"`
		Params   map[string]any `yaml:"params"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Job{}, fmt.Errorf("parse job: %w", err)
	}
	if raw.Name == "" {
		return Job{}, fmt.Errorf("parse job: name is required")
	}

	job := Job{
		Name:     raw.Name,
		Schedule: raw.Schedule,
		Enabled:  true,
		Params:   Config(raw.Params).Clone(),
	}
	if raw.Enabled != nil {
		job.Enabled = *raw.Enabled
	}
	return job, nil
}

// LoadJob reads and parses the job file at path.
func LoadJob(path string) (Job, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return Job{}, fmt.Errorf("read job %s: %w", path, err)
	}
	return ParseJob(data)
}

// Merge returns the job params overlaid with overrides.
func (j Job) Merge(overrides Config) Config {
	out := j.Params.Clone()
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
