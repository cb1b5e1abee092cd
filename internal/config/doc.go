// Package config loads the service configuration. Values are layered:
// built-in defaults, then an optional YAML or JSON file, then an optional
// .env file and TODOS_* environment variables. The merged result is
// validated before it is returned.
package config
