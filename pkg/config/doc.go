// Package config provides the rulesync service configuration.
//
// Configuration is read from a YAML file, validated against a JSON schema
// generated from [Config], and completed with defaults. Command line flags
// and environment variables take precedence over values from the file.
package config
