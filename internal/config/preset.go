package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Preset is a named bundle of generation parameters that can be applied to
// a blueprint request from the CLI or API instead of spelling out each flag.
type Preset struct {
	Name            string   `yaml:"name"`
	Genre           string   `yaml:"genre,omitempty"`
	Tone            string   `yaml:"tone,omitempty"`
	WritingStyle    string   `yaml:"writingStyle,omitempty"`
	ChapterCount    int      `yaml:"chapterCount,omitempty"`
	Temperature     *float64 `yaml:"temperature,omitempty"`
	TopP            *float64 `yaml:"topP,omitempty"`
	TopK            *int     `yaml:"topK,omitempty"`
	MaxOutputTokens *int     `yaml:"maxOutputTokens,omitempty"`
}

// presetFile is the on-disk shape: a list of presets under one key.
type presetFile struct {
	Presets []Preset `yaml:"presets"`
}

// LoadPresets reads a preset YAML file. A missing file is not an error and
// yields an empty list, so the feature is opt-in.
func LoadPresets(path string) ([]Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading presets file: %w", err)
	}
	var pf presetFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing presets file %s: %w", path, err)
	}
	for i, p := range pf.Presets {
		if p.Name == "" {
			return nil, fmt.Errorf("presets file %s: preset %d has no name", path, i)
		}
	}
	return pf.Presets, nil
}

// FindPreset returns the preset with the given name, or nil.
func FindPreset(presets []Preset, name string) *Preset {
	for i := range presets {
		if presets[i].Name == name {
			return &presets[i]
		}
	}
	return nil
}
