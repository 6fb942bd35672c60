// Package config provides configuration structures and utilities for deepcheck.
// It defines run options (targets, output, timeouts), the analysis settings
// consumed by the channel analyzers and the aggregator, and the YAML file
// loader that overrides the built-in defaults.
package config
