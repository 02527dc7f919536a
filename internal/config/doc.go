// Package config loads the crash client configuration from YAML.
//
// ${VAR} references are expanded from the environment after optional .env
// files have been loaded. Loading is layered: Load parses, LoadWithDefaults
// fills optional fields, LoadAndValidate also checks the result.
package config
