// Package config provides configuration management for the truncator.
//
// This package handles loading, validating, and watching configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("truncator.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("truncator.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention TRUNCATOR_SECTION_FIELD,
// for example TRUNCATOR_STORAGE_DRIVER or TRUNCATOR_TELEMETRY_LOGGING_LEVEL.
// They always take precedence over file-based configuration.
//
// # Retention Policies
//
// Retention settings are layered. A field set on a type's own entry in
// retention.types wins, then the nearest ancestor type that sets it, then
// retention.defaults. An unset keep_versions or keep_drafts disables that
// rule, as does a negative value, which lets a subtype switch off a rule its
// parent enables.
//
// There is no package-level configuration state: the loaded *Config is
// passed explicitly to whatever needs it.
package config
