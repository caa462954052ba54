package models

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Job is one conversion of the batch command
type Job struct {
	// Input is the cube file to read
	Input string `yaml:"input"`

	// Output is the converted file; its extension picks the format unless
	// Format is set
	Output string `yaml:"output"`

	// Format overrides the output extension
	Format string `yaml:"format,omitempty"`

	// Variable selects a MAT variable when the input holds several cubes
	Variable string `yaml:"variable,omitempty"`

	// Layout overrides the configured default layout
	Layout string `yaml:"layout,omitempty"`

	// DType converts before writing; empty keeps the configured dtype
	DType string `yaml:"dtype,omitempty"`

	// Preview optionally writes a quick RGB PNG next to the conversion
	Preview string `yaml:"preview,omitempty"`

	// Crop limits the output to a spatial region
	Crop *Region `yaml:"crop,omitempty"`
}

// Region is a spatial crop in pixels
type Region struct {
	X      int `yaml:"x"`
	Y      int `yaml:"y"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// JobList is the document read by the batch command
type JobList struct {
	Jobs []Job `yaml:"jobs"`
}

// JobResult records the outcome of one job
type JobResult struct {
	Job   Job
	Files []string
	Err   error
}

// ErrNoJobs is returned for a job list without entries
var ErrNoJobs = errors.New("job list is empty")

// Validate checks the fields every job needs.
func (j Job) Validate() error {
	if strings.TrimSpace(j.Input) == "" {
		return errors.New("job has no input")
	}
	if strings.TrimSpace(j.Output) == "" {
		return fmt.Errorf("job %s has no output", j.Input)
	}
	if j.Crop != nil && (j.Crop.Width <= 0 || j.Crop.Height <= 0) {
		return fmt.Errorf("job %s has an empty crop", j.Input)
	}
	return nil
}

// ParseJobs decodes and validates a YAML job list.
func ParseJobs(data []byte) (*JobList, error) {
	var list JobList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("error parsing job list: %w", err)
	}
	if len(list.Jobs) == 0 {
		return nil, ErrNoJobs
	}
	for i, j := range list.Jobs {
		if err := j.Validate(); err != nil {
			return nil, fmt.Errorf("job %d: %w", i+1, err)
		}
	}
	return &list, nil
}

// LoadJobs reads a job list file.
func LoadJobs(path string) (*JobList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading job list: %w", err)
	}
	return ParseJobs(data)
}
