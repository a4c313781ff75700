package config

import (
	"github.com/papercomputeco/mnemo/pkg/admission"
	"github.com/papercomputeco/mnemo/pkg/eviction"
	"github.com/papercomputeco/mnemo/pkg/recall"
)

// Model providers accepted by model.provider.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

const (
	defaultStorageDriver = StorageSQLite

	defaultModelProvider = ProviderOllama
	defaultModelTarget   = "http://localhost:11434"
	defaultModel         = "llama3.2"

	defaultAPIListen = ":8090"

	defaultEventStreamProvider = EventStreamNone
	defaultEventStreamTopic    = "mnemo.memory.v1"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		Memory: MemoryConfig{
			TokenLimit:       eviction.DefaultTokenLimit,
			ReabsorbInterval: eviction.DefaultInterval,
			MinTokens:        admission.DefaultMinTokens,
			GradeThreshold:   admission.DefaultGradeThreshold,
			Grading:          false,
			EnableHistory:    true,
		},
		Recall: RecallConfig{
			TopK:          recall.DefaultTopK,
			MinSimilarity: recall.DefaultMinSimilarity,
			MaxFeatures:   recall.DefaultMaxFeatures,
		},
		Model: ModelConfig{
			Provider: defaultModelProvider,
			Target:   defaultModelTarget,
			Model:    defaultModel,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
	}
}
