package ai

// ModelPreset represents the model usage preset
type ModelPreset string

const (
	PresetDisease ModelPreset = "disease" // context-guided passage translation
	PresetHerb    ModelPreset = "herb"    // short herb name translation
)

// ModelConfig holds sampling parameters for one generation
type ModelConfig struct {
	Temperature     float32
	TopP            float32
	TopK            int
	MaxOutputTokens int
}

// GenerateMetadata contains metadata about the generation
type GenerateMetadata struct {
	Provider     string
	Model        string
	UsedFallback bool
}

// GenerateOptions holds options for text generation
type GenerateOptions struct {
	Model     string
	Overrides *ModelConfig
}

// GetPresetConfig returns the configuration for a preset
func GetPresetConfig(preset ModelPreset) ModelConfig {
	switch preset {
	case PresetDisease:
		return ModelConfig{
			Temperature:     0.7,
			TopP:            0.95,
			TopK:            40,
			MaxOutputTokens: 256,
		}
	case PresetHerb:
		return ModelConfig{
			Temperature:     0.3,
			TopP:            0.85,
			TopK:            40,
			MaxOutputTokens: 80,
		}
	default:
		return GetPresetConfig(PresetDisease)
	}
}
