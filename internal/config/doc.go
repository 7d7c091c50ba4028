// Package config defines the packager settings and provides helpers to
// load, validate and save them in YAML format.
//
// Without a settings file the built-in STM32Cube source table, allow-list
// and deny-list are used, so the tool runs with zero configuration.
package config
