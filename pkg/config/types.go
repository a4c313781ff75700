package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Config represents the persistent mnemo configuration stored as config.toml
// in the .mnemo/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	Memory      MemoryConfig      `toml:"memory"`
	Recall      RecallConfig      `toml:"recall"`
	Model       ModelConfig       `toml:"model"`
	API         APIConfig         `toml:"api"`
	EventStream EventStreamConfig `toml:"eventstream"`
}

// StorageConfig selects the session store.
type StorageConfig struct {
	// Driver is one of sqlite, postgres or inmemory.
	Driver string `toml:"driver,omitempty"`

	// SQLitePath is the database file. Empty uses mnemo.db in the
	// resolved .mnemo/ directory.
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// MemoryConfig holds the admission and reabsorption thresholds.
type MemoryConfig struct {
	TokenLimit       int  `toml:"token_limit"`
	ReabsorbInterval int  `toml:"reabsorb_interval"`
	MinTokens        int  `toml:"min_tokens"`
	GradeThreshold   int  `toml:"grade_threshold"`
	Grading          bool `toml:"grading"`
	EnableHistory    bool `toml:"enable_history"`
}

// RecallConfig holds the semantic recall defaults.
type RecallConfig struct {
	TopK          int     `toml:"top_k"`
	MinSimilarity float64 `toml:"min_similarity"`
	MaxFeatures   int     `toml:"max_features"`
}

// ModelConfig selects the chat model used by "mnemo chat".
type ModelConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	Model    string `toml:"model,omitempty"`
	APIKey   string `toml:"api_key,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// EventStreamConfig selects where memory lifecycle events are published.
type EventStreamConfig struct {
	// Provider is none or kafka.
	Provider string `toml:"provider,omitempty"`

	// Brokers is a comma-separated list of host:port addresses.
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// BrokerList splits Brokers into trimmed, non-empty addresses.
func (e EventStreamConfig) BrokerList() []string {
	var brokers []string
	for b := range strings.SplitSeq(e.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error

	// secret values are masked when listed.
	secret bool
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func oneOfKey(key string, allowed []string, field func(c *Config) *string) configKeyInfo {
	info := stringKey(field)
	info.set = func(c *Config, v string) error {
		if !slices.Contains(allowed, v) {
			return fmt.Errorf("invalid value for %s: %q (allowed: %s)", key, v, strings.Join(allowed, ", "))
		}
		*field(c) = v
		return nil
	}
	return info
}

func intKey(key string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.Itoa(*field(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			*field(c) = n
			return nil
		},
	}
}

func boolKey(key string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			*field(c) = b
			return nil
		},
	}
}

func floatKey(key string, field func(c *Config) *float64) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatFloat(*field(c), 'g', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			*field(c) = f
			return nil
		},
	}
}

// Storage drivers accepted by storage.driver.
const (
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageInMemory = "inmemory"
)

// Event stream providers accepted by eventstream.provider.
const (
	EventStreamNone  = "none"
	EventStreamKafka = "kafka"
)

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.driver": oneOfKey("storage.driver",
		[]string{StorageSQLite, StoragePostgres, StorageInMemory},
		func(c *Config) *string { return &c.Storage.Driver }),
	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": secretKey(stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN })),

	"memory.token_limit":       intKey("memory.token_limit", func(c *Config) *int { return &c.Memory.TokenLimit }),
	"memory.reabsorb_interval": intKey("memory.reabsorb_interval", func(c *Config) *int { return &c.Memory.ReabsorbInterval }),
	"memory.min_tokens":        intKey("memory.min_tokens", func(c *Config) *int { return &c.Memory.MinTokens }),
	"memory.grade_threshold":   intKey("memory.grade_threshold", func(c *Config) *int { return &c.Memory.GradeThreshold }),
	"memory.grading":           boolKey("memory.grading", func(c *Config) *bool { return &c.Memory.Grading }),
	"memory.enable_history":    boolKey("memory.enable_history", func(c *Config) *bool { return &c.Memory.EnableHistory }),

	"recall.top_k":          intKey("recall.top_k", func(c *Config) *int { return &c.Recall.TopK }),
	"recall.min_similarity": floatKey("recall.min_similarity", func(c *Config) *float64 { return &c.Recall.MinSimilarity }),
	"recall.max_features":   intKey("recall.max_features", func(c *Config) *int { return &c.Recall.MaxFeatures }),

	"model.provider": oneOfKey("model.provider",
		[]string{ProviderOllama, ProviderOpenAI, ProviderAnthropic},
		func(c *Config) *string { return &c.Model.Provider }),
	"model.target":  stringKey(func(c *Config) *string { return &c.Model.Target }),
	"model.model":   stringKey(func(c *Config) *string { return &c.Model.Model }),
	"model.api_key": secretKey(stringKey(func(c *Config) *string { return &c.Model.APIKey })),

	"api.listen": stringKey(func(c *Config) *string { return &c.API.Listen }),

	"eventstream.provider": oneOfKey("eventstream.provider",
		[]string{EventStreamNone, EventStreamKafka},
		func(c *Config) *string { return &c.EventStream.Provider }),
	"eventstream.brokers": stringKey(func(c *Config) *string { return &c.EventStream.Brokers }),
	"eventstream.topic":   stringKey(func(c *Config) *string { return &c.EventStream.Topic }),
}

func secretKey(info configKeyInfo) configKeyInfo {
	info.secret = true
	return info
}
