// Package config holds the settings of a mirror run: the flat Config built
// from CLI flags, its validation rules, and the optional YAML file with
// per-host credentials, cookies and headers.
package config
