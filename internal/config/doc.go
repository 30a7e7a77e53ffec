// Package config loads and validates the relay configuration from the
// environment.
//
// Uses go-simpler.org/env for struct-tag based loading, with a best-effort
// .env file via godotenv for local development.
package config
