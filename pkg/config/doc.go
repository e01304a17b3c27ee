// Package config loads the usher YAML configuration file.
package config
