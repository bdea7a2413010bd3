package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// testOnionHost is the v3 address of an all-zero public key.
const testOnionHost = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaam2dqd.onion"

// TestNewConfig verifies the default values of NewConfig.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	tests := []struct {
		name string
		ok   bool
	}{
		{name: "jobs is 1", ok: cfg.Jobs == 1},
		{name: "depth is unlimited", ok: cfg.Depth == -1},
		{name: "external depth is 0", ok: cfg.ExtDepth == 0},
		{name: "tries is 20", ok: cfg.Tries == 20},
		{name: "user agent is offmirror", ok: cfg.UserAgent == "offmirror"},
		{name: "visit include matches everything", ok: cfg.VisitInclude == ".*"},
		{name: "visit exclude matches nothing", ok: cfg.VisitExclude == "$^"},
		{name: "download include matches everything", ok: cfg.DownloadInclude == ".*"},
		{name: "download exclude matches nothing", ok: cfg.DownloadExclude == "$^"},
		{name: "output dir is current directory", ok: cfg.OutputDir == "."},
		{name: "timeout is 60 seconds", ok: cfg.Timeout == 60*time.Second},
		{name: "max body size is 50 MiB", ok: cfg.MaxBodySize == 50*1024*1024},
		{name: "tor startup timeout is 3 minutes", ok: cfg.TorStartupTimeout == 3*time.Minute},
		{name: "journal is on", ok: !cfg.NoJournal},
		{name: "no delay", ok: cfg.Delay == 0 && cfg.RandomDelay == 0 && cfg.RetryDelay == 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if !tt.ok {
				t.Errorf("unexpected default: %+v", cfg)
			}
		})
	}
}

// TestConfigValidate tests the validation rules.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.Origin = "https://example.com/"
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{name: "valid config", modify: func(*Config) {}},
		{name: "unlimited limits", modify: func(c *Config) { c.Depth, c.ExtDepth = -1, -1 }},
		{name: "zero limits", modify: func(c *Config) { c.Depth, c.ExtDepth = 0, 0 }},
		{name: "empty origin", modify: func(c *Config) { c.Origin = "  " }, wantErr: ErrNoOrigin},
		{name: "relative origin", modify: func(c *Config) { c.Origin = "example.com/page" }, wantErr: ErrInvalidOrigin},
		{name: "ftp origin", modify: func(c *Config) { c.Origin = "ftp://example.com/" }, wantErr: ErrInvalidOrigin},
		{name: "unparseable origin", modify: func(c *Config) { c.Origin = "http://[::1" }, wantErr: ErrInvalidOrigin},
		{name: "empty output dir", modify: func(c *Config) { c.OutputDir = "" }, wantErr: ErrNoOutputDir},
		{name: "empty output dir in dry run", modify: func(c *Config) { c.OutputDir = ""; c.DryRun = true }},
		{name: "zero jobs", modify: func(c *Config) { c.Jobs = 0 }, wantErr: ErrInvalidJobs},
		{name: "zero tries", modify: func(c *Config) { c.Tries = 0 }, wantErr: ErrInvalidTries},
		{name: "depth below -1", modify: func(c *Config) { c.Depth = -2 }, wantErr: ErrInvalidDepth},
		{name: "ext depth below -1", modify: func(c *Config) { c.ExtDepth = -5 }, wantErr: ErrInvalidExtDepth},
		{name: "negative delay", modify: func(c *Config) { c.Delay = -time.Second }, wantErr: ErrInvalidDelay},
		{name: "negative random delay", modify: func(c *Config) { c.RandomDelay = -time.Second }, wantErr: ErrInvalidDelay},
		{name: "negative retry delay", modify: func(c *Config) { c.RetryDelay = -time.Second }, wantErr: ErrInvalidDelay},
		{name: "zero timeout", modify: func(c *Config) { c.Timeout = 0 }, wantErr: ErrInvalidTimeout},
		{name: "negative rate limit", modify: func(c *Config) { c.RateLimit = -1 }, wantErr: ErrInvalidRateLimit},
		{name: "zero max body size", modify: func(c *Config) { c.MaxBodySize = 0 }, wantErr: ErrInvalidMaxBodySize},
		{name: "bad visit include", modify: func(c *Config) { c.VisitInclude = "(" }, wantErr: ErrInvalidPattern},
		{name: "bad download exclude", modify: func(c *Config) { c.DownloadExclude = "[a-" }, wantErr: ErrInvalidPattern},
		{
			name:    "proxy and tor together",
			modify:  func(c *Config) { c.ProxyAddress = "127.0.0.1:9050"; c.UseTor = true },
			wantErr: ErrConflictingTransport,
		},
		{
			name:    "onion without tor",
			modify:  func(c *Config) { c.Origin = "http://" + testOnionHost + "/" },
			wantErr: ErrOnionNeedsTor,
		},
		{
			name:   "onion with proxy",
			modify: func(c *Config) { c.Origin = "http://" + testOnionHost + "/"; c.ProxyAddress = "127.0.0.1:9050" },
		},
		{
			name:   "onion with tor and port",
			modify: func(c *Config) { c.Origin = "http://" + testOnionHost + ":8080/"; c.UseTor = true },
		},
		{
			name:    "malformed onion",
			modify:  func(c *Config) { c.Origin = "http://example.onion/"; c.UseTor = true },
			wantErr: ErrInvalidOrigin,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.modify(cfg)
			err := cfg.Validate()

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestJournalPath tests the journal directory fallback.
func TestJournalPath(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	if cfg.JournalPath() != XDGDataDir() {
		t.Errorf("expected XDG data dir, got %s", cfg.JournalPath())
	}

	cfg.JournalDir = "/var/lib/offmirror"
	if cfg.JournalPath() != "/var/lib/offmirror" {
		t.Errorf("expected explicit dir, got %s", cfg.JournalPath())
	}
}

// TestParseAuth tests parsing of --auth values.
func TestParseAuth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		value       string
		defaultHost string
		want        Auth
		wantErr     bool
	}{
		{
			name:        "user and password use the default host",
			value:       "alice secret",
			defaultHost: "Example.com",
			want:        Auth{Username: "alice", Password: "secret", Host: "example.com"},
		},
		{
			name:        "explicit host wins",
			value:       "bob pw files.example.com:8443",
			defaultHost: "example.com",
			want:        Auth{Username: "bob", Password: "pw", Host: "files.example.com:8443"},
		},
		{
			name:        "extra whitespace",
			value:       "  carol\tpw   host.example  ",
			defaultHost: "example.com",
			want:        Auth{Username: "carol", Password: "pw", Host: "host.example"},
		},
		{name: "one field", value: "alice", defaultHost: "example.com", wantErr: true},
		{name: "four fields", value: "a b c d", defaultHost: "example.com", wantErr: true},
		{name: "no default host", value: "alice secret", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseAuth(tt.value, tt.defaultHost)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAuth) {
					t.Errorf("expected ErrInvalidAuth, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

// TestCredentials tests merging of file and CLI credentials.
func TestCredentials(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.SiteConfigs = &File{
		Defaults: SiteConfig{Username: "default", Password: "dpw"},
		Sites: map[string]SiteConfig{
			"Files.Example.com": {Username: "files", Password: "fpw"},
			"cdn.example.com":   {Cookie: "c=1"},
		},
	}
	cfg.Auth = []Auth{{Username: "cli", Password: "cpw", Host: "example.com"}}

	creds := cfg.Credentials("example.com")

	tests := []struct {
		host string
		want Auth
	}{
		{host: "example.com", want: Auth{Username: "cli", Password: "cpw", Host: "example.com"}},
		{host: "files.example.com", want: Auth{Username: "files", Password: "fpw", Host: "files.example.com"}},
		{host: "cdn.example.com", want: Auth{Username: "default", Password: "dpw", Host: "cdn.example.com"}},
	}
	for _, tt := range tests {
		if got := creds[tt.host]; got != tt.want {
			t.Errorf("creds[%s] = %+v, want %+v", tt.host, got, tt.want)
		}
	}
	if _, ok := creds["other.example.org"]; ok {
		t.Error("defaults must not reach unlisted hosts")
	}
	if len(creds) != 3 {
		t.Errorf("got %d entries, expected 3", len(creds))
	}

	bare := NewConfig()
	if len(bare.Credentials("example.com")) != 0 {
		t.Error("expected no credentials without file or --auth")
	}
}

// TestFileGetSiteConfig tests merging of defaults with site settings.
func TestFileGetSiteConfig(t *testing.T) {
	t.Parallel()

	f := &File{
		Defaults: SiteConfig{
			Cookie:  "default=1",
			Headers: map[string]string{"Accept-Language": "en", "X-Trace": "on"},
		},
		Sites: map[string]SiteConfig{
			"example.com": {
				Username: "alice",
				Password: "pw",
				Headers:  map[string]string{"Accept-Language": "ja"},
			},
		},
	}

	t.Run("site overrides defaults", func(t *testing.T) {
		t.Parallel()

		got := f.GetSiteConfig("example.com")
		if got.Cookie != "default=1" {
			t.Errorf("expected default cookie, got %q", got.Cookie)
		}
		if got.Headers["Accept-Language"] != "ja" || got.Headers["X-Trace"] != "on" {
			t.Errorf("unexpected headers: %v", got.Headers)
		}
		if got.Username != "alice" || got.Password != "pw" {
			t.Errorf("unexpected credentials: %+v", got)
		}
	})

	t.Run("host lookup ignores case", func(t *testing.T) {
		t.Parallel()

		if got := f.GetSiteConfig("EXAMPLE.COM"); got.Username != "alice" {
			t.Errorf("expected case-insensitive match, got %+v", got)
		}
	})

	t.Run("unknown host gets defaults", func(t *testing.T) {
		t.Parallel()

		got := f.GetSiteConfig("other.com")
		if got.Headers["Accept-Language"] != "en" || got.Username != "" {
			t.Errorf("unexpected config: %+v", got)
		}
	})

	t.Run("defaults are not mutated", func(t *testing.T) {
		t.Parallel()

		_ = f.GetSiteConfig("example.com")
		if f.Defaults.Headers["Accept-Language"] != "en" {
			t.Error("GetSiteConfig modified the defaults map")
		}
	})
}

// TestSiteHeaders tests which hosts receive cookies and headers.
func TestSiteHeaders(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	if len(cfg.SiteHeaders("example.com")) != 0 {
		t.Error("expected no headers without a config file")
	}

	cfg.SiteConfigs = &File{
		Defaults: SiteConfig{Cookie: "consent=yes"},
		Sites: map[string]SiteConfig{
			"API.example.com": {Headers: map[string]string{"X-Token": "t"}},
		},
	}

	headers := cfg.SiteHeaders("example.com")
	if headers["example.com"].Cookie != "consent=yes" {
		t.Errorf("origin should get default cookie: %+v", headers)
	}
	api := headers["api.example.com"]
	if api.Cookie != "consent=yes" || api.Headers["X-Token"] != "t" {
		t.Errorf("unexpected api.example.com settings: %+v", api)
	}
	if len(headers) != 2 {
		t.Errorf("got %d hosts, expected 2", len(headers))
	}
}

// TestLoadConfigFile tests the LoadConfigFile function.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.offmirror.yaml")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), DefaultConfigFile)
		content := `defaults:
  cookie: "default=abc"
sites:
  example.com:
    username: alice
    password: secret
    cookie: "session=xyz"
    headers:
      X-Api-Version: "2"
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Defaults.Cookie != "default=abc" {
			t.Errorf("expected default cookie, got %q", cfg.Defaults.Cookie)
		}

		site, ok := cfg.Sites["example.com"]
		if !ok {
			t.Fatal("expected example.com in sites")
		}
		if site.Username != "alice" || site.Password != "secret" || site.Cookie != "session=xyz" {
			t.Errorf("unexpected site: %+v", site)
		}
		if site.Headers["X-Api-Version"] != "2" {
			t.Errorf("expected X-Api-Version header, got %v", site.Headers)
		}
	})

	t.Run("rejects unknown keys", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), DefaultConfigFile)
		content := "sites:\n  example.com:\n    pasword: typo\n"
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfigFile(configPath); err == nil {
			t.Error("expected error for unknown key")
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(configPath, []byte(`invalid: yaml: content: [}`), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfigFile(configPath); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("empty file initializes Sites", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(configPath, nil, 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Sites == nil {
			t.Error("expected Sites map to be initialized")
		}
	})
}

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("defaults: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if result := FindConfigFile(configPath); result != configPath {
			t.Errorf("expected %q, got %q", configPath, result)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if result := FindConfigFile("/nonexistent/path/config.yaml"); result != "" {
			t.Errorf("expected empty string, got %q", result)
		}
	})
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	if dir := XDGDataDir(); filepath.Base(dir) != AppName {
		t.Errorf("expected data dir ending in %s, got %q", AppName, dir)
	}
	if dir := XDGConfigDir(); filepath.Base(dir) != AppName {
		t.Errorf("expected config dir ending in %s, got %q", AppName, dir)
	}
}
