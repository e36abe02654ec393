// Package config provides configuration management for Warden.
//
// Configuration is loaded from a YAML file with environment variable
// overrides:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("warden.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention WARDEN_SECTION_FIELD:
//
//   - WARDEN_CLASSIFIER_API_KEY overrides classifier.api_key
//   - WARDEN_STORAGE_DRIVER overrides storage.driver
//   - WARDEN_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//   - WARDEN_CATALOG_GIT_TOKEN overrides catalog.git.auth.token
//
// LoadDotenv loads a dotenv file into the environment first, which keeps
// credentials out of the YAML file.
//
// # Configuration Precedence
//
// Values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// The loaded *Config is passed explicitly to the components that need it;
// there is no package-level instance.
package config
