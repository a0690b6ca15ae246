// Package config defines the application configuration and loads it from
// environment variables and an optional config file, with environment
// variables taking precedence.
package config
