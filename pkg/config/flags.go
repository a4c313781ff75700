package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --sqlite
// on "mnemo chat", "mnemo serve" and "mnemo sessions").
type Flag struct {
	// Name is the long flag name (e.g. "sqlite").
	Name string

	// Shorthand is the one-letter short flag (e.g. "s"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "storage.sqlite_path").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddIntFlag, AddBoolFlag
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagStorageDriver    = "storage"
	FlagSQLite           = "sqlite"
	FlagPostgresDSN      = "postgres-dsn"
	FlagTokenLimit       = "token-limit"
	FlagReabsorbInterval = "reabsorb-interval"
	FlagMinTokens        = "min-tokens"
	FlagGrading          = "grading"
	FlagHistory          = "history"
	FlagTopK             = "top-k"
	FlagProvider         = "provider"
	FlagModelTarget      = "target"
	FlagModel            = "model"
	FlagAPIListen        = "listen"
	FlagEventStream      = "eventstream"
	FlagBrokers          = "brokers"
	FlagTopic            = "topic"
)

// Flags is the registry shared by every mnemo command.
var Flags = FlagSet{
	FlagStorageDriver:    {Name: "storage", ViperKey: "storage.driver", Description: "Session store driver (sqlite, postgres, inmemory)"},
	FlagSQLite:           {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to SQLite database (default: .mnemo/mnemo.db)"},
	FlagPostgresDSN:      {Name: "postgres-dsn", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string"},
	FlagTokenLimit:       {Name: "token-limit", ViperKey: "memory.token_limit", Description: "Context budget in approximate tokens"},
	FlagReabsorbInterval: {Name: "reabsorb-interval", ViperKey: "memory.reabsorb_interval", Description: "Reabsorb the oldest turn every N turns (0 disables)"},
	FlagMinTokens:        {Name: "min-tokens", ViperKey: "memory.min_tokens", Description: "Smallest response stored in memory"},
	FlagGrading:          {Name: "grading", ViperKey: "memory.grading", Description: "Grade responses before storing them"},
	FlagHistory:          {Name: "history", ViperKey: "memory.enable_history", Description: "Track session titles and previews"},
	FlagTopK:             {Name: "top-k", Shorthand: "k", ViperKey: "recall.top_k", Description: "Maximum number of recalled memories"},
	FlagProvider:         {Name: "provider", Shorthand: "p", ViperKey: "model.provider", Description: "Model provider (ollama, openai, anthropic)"},
	FlagModelTarget:      {Name: "target", Shorthand: "t", ViperKey: "model.target", Description: "Model provider base URL"},
	FlagModel:            {Name: "model", Shorthand: "m", ViperKey: "model.model", Description: "Model name"},
	FlagAPIListen:        {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagEventStream:      {Name: "eventstream", ViperKey: "eventstream.provider", Description: "Event stream provider (none, kafka)"},
	FlagBrokers:          {Name: "brokers", ViperKey: "eventstream.brokers", Description: "Comma-separated Kafka broker addresses"},
	FlagTopic:            {Name: "topic", ViperKey: "eventstream.topic", Description: "Kafka topic for memory events"},
}

// StorageFlags are the registry keys every store-backed command registers.
var StorageFlags = []string{FlagStorageDriver, FlagSQLite, FlagPostgresDSN}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultViper().GetString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, key string, target *int) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultViper().GetInt(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().IntVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, key string, target *bool) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultViper().GetBool(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().BoolVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultViper returns a viper holding only NewDefaultConfig values.
func defaultViper() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}
