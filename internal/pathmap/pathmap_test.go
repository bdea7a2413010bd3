package pathmap

import (
	"net/url"
	"path"
	"strings"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse %q: %v", raw, err)
	}
	return u
}

// TestToPath tests URL to path mapping.
func TestToPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
		want string
	}{
		{name: "file", url: "https://lwn.net/Kernel/index.html", want: "lwn.net/Kernel/index.html"},
		{name: "directory", url: "https://lwn.net/Kernel/", want: "lwn.net/Kernel/index.html"},
		{name: "fragment ignored", url: "https://lwn.net/Kernel/#fragment", want: "lwn.net/Kernel/index.html"},
		{name: "root", url: "http://example.com/", want: "example.com/index.html"},
		{name: "empty path", url: "http://example.com", want: "example.com/index.html"},
		{name: "no extension", url: "http://example.com/about", want: "example.com/about/index.html"},
		{name: "port dropped", url: "http://example.com:8080/a.png", want: "example.com/a.png"},
		{name: "host lower-cased", url: "http://EXAMPLE.com/a.png", want: "example.com/a.png"},
		{name: "query on file", url: "http://example.com/s.css?v=3", want: "example.com/s@v=3.css"},
		{name: "query on directory", url: "http://example.com/list?page=2", want: "example.com/list/index@page=2.html"},
		{name: "slash in query", url: "http://example.com/r.php?to=/a/b", want: "example.com/r@to=_a_b.php"},
		{name: "dot segments dropped", url: "http://example.com/a/../../etc/passwd.txt", want: "example.com/a/etc/passwd.txt"},
		{name: "escaped characters decoded", url: "http://example.com/a%20b.html", want: "example.com/a b.html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := ToPath(mustParse(t, tt.url)); got != tt.want {
				t.Errorf("ToPath(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

// TestToPathQueryInjective tests that URLs differing only in query do not collide.
func TestToPathQueryInjective(t *testing.T) {
	t.Parallel()

	urls := []string{
		"http://example.com/list",
		"http://example.com/list?page=1",
		"http://example.com/list?page=2",
		"http://example.com/list?page=2&sort=asc",
	}

	seen := make(map[string]string, len(urls))
	for _, raw := range urls {
		p := ToPath(mustParse(t, raw))
		if prev, ok := seen[p]; ok {
			t.Errorf("%q and %q both map to %q", prev, raw, p)
		}
		seen[p] = raw
	}
}

// TestToPathDeterministic tests that mapping is a pure function.
func TestToPathDeterministic(t *testing.T) {
	t.Parallel()

	raw := "http://example.com/a/b/c.html?x=1"
	first := ToPath(mustParse(t, raw))
	for range 10 {
		if got := ToPath(mustParse(t, raw)); got != first {
			t.Fatalf("got %q, expected %q", got, first)
		}
	}
}

// TestToPathLongName tests hashing of overlong components.
func TestToPathLongName(t *testing.T) {
	t.Parallel()

	t.Run("long file name is hashed with extension", func(t *testing.T) {
		t.Parallel()

		long := strings.Repeat("a", 300) + ".html"
		got := ToPath(mustParse(t, "http://example.com/"+long))

		name := path.Base(got)
		if len(name) != 64+len(".html") {
			t.Errorf("expected 69-byte hashed name, got %d bytes: %q", len(name), name)
		}
		if !strings.HasSuffix(name, ".html") {
			t.Errorf("expected .html extension, got %q", name)
		}
		if path.Dir(got) != "example.com" {
			t.Errorf("expected directory example.com, got %q", path.Dir(got))
		}
	})

	t.Run("long query is hashed", func(t *testing.T) {
		t.Parallel()

		got := ToPath(mustParse(t, "http://example.com/search?q="+strings.Repeat("z", 400)))
		name := path.Base(got)
		if len(name) > MaxNameLength {
			t.Errorf("name exceeds limit: %d bytes", len(name))
		}
		if !strings.HasSuffix(name, ".html") {
			t.Errorf("expected .html extension, got %q", name)
		}
	})

	t.Run("long directory is hashed without extension", func(t *testing.T) {
		t.Parallel()

		dir := strings.Repeat("d", 260) + ".v1"
		got := ToPath(mustParse(t, "http://example.com/"+dir+"/x.png"))
		parts := strings.Split(got, "/")
		if len(parts) != 3 || len(parts[1]) != 64 {
			t.Errorf("unexpected mapping %q", got)
		}
	})

	t.Run("distinct long names stay distinct", func(t *testing.T) {
		t.Parallel()

		a := ToPath(mustParse(t, "http://example.com/"+strings.Repeat("a", 300)+".html"))
		b := ToPath(mustParse(t, "http://example.com/"+strings.Repeat("b", 300)+".html"))
		if a == b {
			t.Errorf("expected distinct hashes, both were %q", a)
		}
	})
}

// TestRelative tests link text between mapped paths.
func TestRelative(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from string
		to   string
		want string
	}{
		{name: "same directory", from: "h/index.html", to: "h/a_file", want: "a_file"},
		{name: "child directory", from: "h/index.html", to: "h/docs/index.html", want: "docs/index.html"},
		{name: "parent directory", from: "h/docs/index.html", to: "h/logo.png", want: "../logo.png"},
		{name: "other host", from: "h/index.html", to: "other/index.html", want: "../other/index.html"},
		{name: "self", from: "h/a/index.html", to: "h/a/index.html", want: "index.html"},
		{name: "space escaped", from: "h/index.html", to: "h/a b.html", want: "a%20b.html"},
		{name: "question mark escaped", from: "h/index.html", to: "h/x@a=b?c.html", want: "x@a=b%3Fc.html"},
		{name: "colon guarded", from: "h/index.html", to: "h/a:b.html", want: "./a:b.html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Relative(tt.from, tt.to); got != tt.want {
				t.Errorf("Relative(%q, %q) = %q, want %q", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

// TestRelativeRoundTrip tests that resolving a rewritten link yields the target path.
func TestRelativeRoundTrip(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"http://example.com/", "http://example.com/docs/guide.html"},
		{"http://example.com/docs/deep/page", "http://example.com/img/a b.png"},
		{"http://example.com/list?page=1", "http://cdn.example.org/s.css?v=2"},
		{"http://example.com/a/", "http://example.com/a/"},
	}

	for _, pair := range pairs {
		from := ToPath(mustParse(t, pair[0]))
		to := ToPath(mustParse(t, pair[1]))

		link := Relative(from, to)
		got, err := Resolve(from, link)
		if err != nil {
			t.Fatalf("Resolve(%q, %q) returned error: %v", from, link, err)
		}
		if got != to {
			t.Errorf("link %q from %q resolves to %q, expected %q", link, from, got, to)
		}
	}
}
