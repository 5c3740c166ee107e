package tts

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/satriahrh/mathvoice/domain/entities"
	"github.com/satriahrh/mathvoice/domain/repositories"
)

// Built-in presets; a presets file may override or extend them.
var builtinPresets = []entities.VoicePreset{
	{Name: "standard", VoiceID: "21m00Tcm4TlvDq8ikWAM", Label: "Standard voice"},
	{Name: "technical", VoiceID: "AZnzlk1XvdvUeBnXmlld", Label: "Technical voice"},
}

// DefaultPreset is used when a request names no voice
const DefaultPreset = "standard"

// presetFile is the layout of VOICE_PRESETS_FILE:
//
//	voices:
//	  - name: calm
//	    voice_id: EXAVITQu4vr4xnSDxMaL
//	    label: Calm voice
type presetFile struct {
	Voices []entities.VoicePreset `yaml:"voices"`
}

// VoiceCatalog resolves friendly voice names to provider voice IDs
type VoiceCatalog struct {
	mu      sync.RWMutex
	presets map[string]entities.VoicePreset
}

var _ repositories.VoiceResolver = (*VoiceCatalog)(nil)

// NewVoiceCatalog creates a catalog holding the built-in presets
func NewVoiceCatalog() *VoiceCatalog {
	c := &VoiceCatalog{presets: make(map[string]entities.VoicePreset)}
	for _, p := range builtinPresets {
		c.presets[p.Name] = p
	}
	return c
}

// LoadVoiceCatalog builds a catalog from the built-in presets and, when path
// is not empty, the presets declared in the YAML file at path
func LoadVoiceCatalog(path string, logger *zap.Logger) (*VoiceCatalog, error) {
	c := NewVoiceCatalog()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read voice presets file: %w", err)
	}
	if err := c.LoadYAML(data); err != nil {
		return nil, err
	}

	logger.Info("Loaded voice presets", zap.String("path", path), zap.Int("count", c.Len()))
	return c, nil
}

// LoadYAML merges presets from a YAML document into the catalog
func (c *VoiceCatalog) LoadYAML(data []byte) error {
	var file presetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse voice presets: %w", err)
	}

	for i := range file.Voices {
		if err := file.Voices[i].Validate(); err != nil {
			return fmt.Errorf("invalid voice preset #%d: %w", i+1, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range file.Voices {
		c.presets[p.Name] = p
	}
	return nil
}

// Resolve maps a preset name to its voice ID. An empty name resolves to the
// default preset; any other unknown name is taken to be a raw voice ID.
func (c *VoiceCatalog) Resolve(name string) string {
	if name == "" {
		name = DefaultPreset
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if p, ok := c.presets[name]; ok {
		return p.VoiceID
	}
	return name
}

// Presets returns all presets sorted by name
func (c *VoiceCatalog) Presets() []entities.VoicePreset {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]entities.VoicePreset, 0, len(c.presets))
	for _, p := range c.presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of presets
func (c *VoiceCatalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.presets)
}
