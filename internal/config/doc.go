// Package config loads, normalizes, and validates guessrank configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// DISCORD_TOKEN. The Config type centralizes every knob the daemon and CLI
// need, from the transform gate size to the scoring constants.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical channel names, and clear validation errors.
package config
