// Package config loads typed configuration from environment variables.
//
// Structs are annotated with caarlos0/env tags. Load parses once per type and
// prefix and caches the result; Parse always reads fresh values. A config
// implementing Validator is checked right after parsing, so cross-field rules
// fail at startup instead of on the first request:
//
//	type Config struct {
//		Store string `env:"TENANT_STORE" envDefault:"memory"`
//		PG    string `env:"PG_CONN_URL"`
//	}
//
//	func (c Config) Validate() error {
//		if c.Store == "postgres" && c.PG == "" {
//			return errors.New("PG_CONN_URL is required for the postgres store")
//		}
//		return nil
//	}
//
// A .env file in the working directory is applied on the first Load; use
// LoadEnv for other files. Errors wrap ErrParsingConfig, ErrInvalidConfig,
// ErrLoadingEnvFile or ErrNilPointer.
package config
