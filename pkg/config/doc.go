// Package config provides configuration loading and validation for Ganymede.
//
// Configuration is loaded from a YAML file, with defaults applied for
// unspecified fields and environment variable overrides (GANYMEDE_*) taking
// precedence over file values. The loaded configuration is validated before
// use and stored as a process-wide singleton.
//
// A file watcher can hot-reload the configuration, which lets operators
// adjust the daily query limit without restarting the server.
package config
