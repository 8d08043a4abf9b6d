package config

// Config is the root configuration of the apikit tool.
type Config struct {
	Manifest string         `yaml:"manifest,omitempty"` // path to the API manifest; ${VAR} references are expanded
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
	Registry RegistryConfig `yaml:"registry,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "error" | "warn" | "info" | "debug" | "trace"
	Style string `yaml:"style,omitempty"` // "pretty" | "json"
}

// RegistryConfig controls how the instance registry treats repeated registrations.
type RegistryConfig struct {
	Duplicates string `yaml:"duplicates,omitempty"` // "reject" | "overwrite"
}
