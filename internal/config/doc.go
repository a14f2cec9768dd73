// Package config defines the cluster configuration model, its documented
// defaults, and the YAML loader.
//
// Credential and artifact paths are always threaded explicitly through this
// configuration; no component reads process-wide environment variables at
// runtime (TALHYVE_CONFIG is honored once, at load time, to locate the
// config file itself).
package config
