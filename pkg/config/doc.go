// Package config defines the YAML configuration for the Arbiter service
// and the loading pipeline: read file, apply defaults, apply environment
// overrides, validate.
//
// Environment variables follow the naming convention ARBITER_SECTION_FIELD
// (for example ARBITER_POLICY_MODE) and always take precedence over
// file-based configuration.
package config
