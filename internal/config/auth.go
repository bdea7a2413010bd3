package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// Auth is one basic auth entry. Host is "example.com" or "example.com:8443";
// credentials are only sent to that exact host.
type Auth struct {
	Username string
	Password string
	Host     string
}

// LogValue hides the password.
func (a Auth) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("username", a.Username),
		slog.String("host", a.Host),
	)
}

// ParseAuth parses an --auth value of the form "username password [host]".
// Without a host, defaultHost (the origin host) is used.
func ParseAuth(value, defaultHost string) (Auth, error) {
	fields := strings.Fields(value)
	switch len(fields) {
	case 2:
		if defaultHost == "" {
			return Auth{}, fmt.Errorf("%w: no host given and no default host", ErrInvalidAuth)
		}
		return Auth{Username: fields[0], Password: fields[1], Host: strings.ToLower(defaultHost)}, nil
	case 3:
		return Auth{Username: fields[0], Password: fields[1], Host: strings.ToLower(fields[2])}, nil
	default:
		return Auth{}, fmt.Errorf("%w: got %d fields", ErrInvalidAuth, len(fields))
	}
}

// Credentials merges basic auth from the config file with --auth entries,
// keyed by lowercase host. File defaults reach originHost and the listed
// sites. --auth wins for a host present in both.
func (c *Config) Credentials(originHost string) map[string]Auth {
	creds := make(map[string]Auth)

	if c.SiteConfigs != nil {
		for _, host := range c.SiteConfigs.hosts(originHost) {
			site := c.SiteConfigs.GetSiteConfig(host)
			if site.Username == "" {
				continue
			}
			host = strings.ToLower(host)
			creds[host] = Auth{Username: site.Username, Password: site.Password, Host: host}
		}
	}

	for _, a := range c.Auth {
		creds[strings.ToLower(a.Host)] = a
	}

	return creds
}
