// Package config loads the car-alarm daemon settings from YAML.
//
// Every field has a default matching the reference board, so an absent
// settings file yields a working configuration.
package config
