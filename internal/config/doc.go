// Package config loads, normalizes, and validates applyq configuration.
//
// Configuration is TOML with a documented sample embedded in the binary.
// Secrets may come from the config file, the process environment, or a .env
// file in the working directory. All path fields are tilde-expanded and made
// absolute during Load so the rest of the codebase never handles relative
// paths.
package config
