package config

import "strings"

// SiteConfig holds per-host request settings.
type SiteConfig struct {
	// Username and Password are sent as HTTP basic auth to this host only.
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`

	// Cookie is sent with every request to this host.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are set on every request to this host.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// File is the structure of the offmirror YAML configuration file.
type File struct {
	// Defaults apply to the origin host and to every entry in Sites.
	Defaults SiteConfig `yaml:"defaults,omitempty"`

	// Sites maps a host ("example.com" or "example.com:8443") to its settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`
}

// GetSiteConfig returns the settings for host: Defaults overridden field
// by field by the host's entry. Header maps are merged.
func (f *File) GetSiteConfig(host string) SiteConfig {
	result := f.Defaults
	if len(f.Defaults.Headers) > 0 {
		result.Headers = make(map[string]string, len(f.Defaults.Headers))
		for k, v := range f.Defaults.Headers {
			result.Headers[k] = v
		}
	}

	site, ok := f.lookup(host)
	if !ok {
		return result
	}

	if site.Username != "" {
		result.Username = site.Username
		result.Password = site.Password
	}
	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range site.Headers {
			result.Headers[k] = v
		}
	}

	return result
}

func (f *File) lookup(host string) (SiteConfig, bool) {
	if site, ok := f.Sites[host]; ok {
		return site, true
	}
	for h, site := range f.Sites {
		if strings.EqualFold(h, host) {
			return site, true
		}
	}
	return SiteConfig{}, false
}

// hosts returns the listed site hosts plus originHost.
func (f *File) hosts(originHost string) []string {
	hosts := make([]string, 0, len(f.Sites)+1)
	for h := range f.Sites {
		hosts = append(hosts, h)
	}
	if originHost != "" {
		hosts = append(hosts, originHost)
	}
	return hosts
}

// SiteHeaders returns the cookie and header settings per lowercase host.
// Defaults reach originHost and the hosts listed under sites, never other
// hosts.
func (c *Config) SiteHeaders(originHost string) map[string]SiteConfig {
	out := make(map[string]SiteConfig)
	if c.SiteConfigs == nil {
		return out
	}

	for _, h := range c.SiteConfigs.hosts(originHost) {
		site := c.SiteConfigs.GetSiteConfig(h)
		if site.Cookie == "" && len(site.Headers) == 0 {
			continue
		}
		out[strings.ToLower(h)] = site
	}
	return out
}
