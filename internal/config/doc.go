// Package config loads the sessiongate server configuration from a YAML or
// TOML file. The format follows the file extension. ${VAR} references are
// expanded from the environment before parsing, so secrets such as the JWT
// key stay out of the file.
package config
