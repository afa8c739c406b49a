// Package scenario holds the scripted conversations the example programs
// replay, and the runner that sends them through an agent.
package scenario

import (
	"embed"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/becomeliminal/nim-memory/memory"
)

//go:embed scripts/*.yaml
var scripts embed.FS

// Script is one example program's conversation plan.
type Script struct {
	Title     string    `yaml:"title"`
	Setup     string    `yaml:"setup"`
	Namespace []string  `yaml:"namespace"`
	Sections  []Section `yaml:"sections"`
}

// Section is a group of steps run against one agent.
type Section struct {
	Title string `yaml:"title"`

	// Fresh runs the section against a newly built agent and store.
	Fresh bool `yaml:"fresh"`

	Steps []Step `yaml:"steps"`

	// Done is printed after the last step.
	Done string `yaml:"done"`

	// Dump prints the stored items of the script namespace after the section.
	Dump string `yaml:"dump"`
}

// Step is one user message.
type Step struct {
	Label   string `yaml:"label"`
	Message string `yaml:"message"`

	// OnError, when set, reports a failed step with this prefix and continues.
	OnError string `yaml:"on_error"`
}

// Load reads an embedded script by name ("semantic" loads scripts/semantic.yaml).
func Load(name string) (*Script, error) {
	data, err := scripts.ReadFile("scripts/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown scenario %q: %w", name, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML script.
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the script is runnable.
func (s *Script) Validate() error {
	if len(s.Sections) == 0 {
		return errors.New("scenario has no sections")
	}
	if len(s.Namespace) > 0 {
		if err := s.NamespaceValue().Validate(); err != nil {
			return fmt.Errorf("scenario namespace: %w", err)
		}
	}
	for i, sec := range s.Sections {
		for j, step := range sec.Steps {
			if step.Message == "" {
				return fmt.Errorf("section %d step %d has no message", i+1, j+1)
			}
		}
	}
	return nil
}

// NamespaceValue returns the script namespace.
func (s *Script) NamespaceValue() memory.Namespace {
	return memory.NewNamespace(s.Namespace...)
}

// Steps returns every step across sections.
func (s *Script) Steps() []Step {
	var out []Step
	for _, sec := range s.Sections {
		out = append(out, sec.Steps...)
	}
	return out
}

// PrintHeader writes the script's setup line.
func (s *Script) PrintHeader(w io.Writer) {
	if s.Setup != "" {
		fmt.Fprintln(w, s.Setup)
	}
}
