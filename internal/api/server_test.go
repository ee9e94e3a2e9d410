package api

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewServerDefaults(t *testing.T) {
	s := newTestServer(t, Config{})

	if s.cfg.Addr != ":8733" {
		t.Errorf("expected default addr :8733, got %q", s.cfg.Addr)
	}
	if s.cfg.MaxRequestBytes != 1<<20 {
		t.Errorf("expected default request cap, got %d", s.cfg.MaxRequestBytes)
	}
	if s.cfg.CacheSize != 4096 {
		t.Errorf("expected default cache size, got %d", s.cfg.CacheSize)
	}
	if len(s.names) != 3 {
		t.Errorf("expected 3 built-in dialects, got %v", s.names)
	}
	if s.runs != nil {
		t.Error("run log should be disabled without a path")
	}
}

func TestNewServerInvalidAuth(t *testing.T) {
	_, err := NewServer(Config{Auth: AuthConfig{Enabled: true, APIKey: "short"}})
	if err == nil {
		t.Fatal("expected an error for a short API key")
	}
}

func TestNewServerTLSMissingFiles(t *testing.T) {
	_, err := NewServer(Config{TLS: TLSConfig{Enabled: true}})
	if err == nil {
		t.Fatal("expected an error when TLS is enabled without files")
	}
}

func TestNewServerBadDialectDir(t *testing.T) {
	dir := t.TempDir()
	bad := "name: broken\nextends: no-such-base\n"
	if err := os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte(bad), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := NewServer(Config{DialectDir: dir})
	if err == nil {
		t.Fatal("expected an error for an unresolvable dialect")
	}
}

func TestNewServerDialectOverride(t *testing.T) {
	dir := t.TempDir()
	// A directory dialect named like a builtin replaces it.
	src := "name: default\nextends: grbl\nstrict: true\n"
	if err := os.WriteFile(filepath.Join(dir, "default.yaml"), []byte(src), 0644); err != nil {
		t.Fatal(err)
	}

	s := newTestServer(t, Config{DialectDir: dir})

	if len(s.names) != 3 {
		t.Fatalf("override must not add a dialect: %v", s.names)
	}
	d, err := s.resolveDialect("default")
	if err != nil {
		t.Fatal(err)
	}
	if !d.Strict || d.Extends != "grbl" {
		t.Errorf("builtin not overridden: %+v", d)
	}
	if s.origins["default"] != dir {
		t.Errorf("expected origin %q, got %q", dir, s.origins["default"])
	}
}

func TestResolveDialect(t *testing.T) {
	s := newTestServer(t, Config{})

	d, err := s.resolveDialect("")
	if err != nil || d.Name != "default" {
		t.Errorf("empty name should resolve to default, got %v, %v", d, err)
	}

	if _, err := s.resolveDialect("grbl"); err != nil {
		t.Errorf("grbl should resolve: %v", err)
	}

	// The HTTP surface takes names only, never filesystem paths.
	for _, name := range []string{"../../etc/passwd", "/etc/passwd", "dialects/custom.yaml"} {
		if _, err := s.resolveDialect(name); err == nil {
			t.Errorf("expected %q to be rejected", name)
		}
	}
}

func TestNormalizerCachedPerVariant(t *testing.T) {
	s := newTestServer(t, Config{})

	n1, err := s.normalizer("default", nil)
	if err != nil {
		t.Fatal(err)
	}
	n2, err := s.normalizer("default", nil)
	if err != nil {
		t.Fatal(err)
	}
	if n1 != n2 {
		t.Error("expected the compiled normalizer to be reused")
	}

	strict := true
	n3, err := s.normalizer("default", &strict)
	if err != nil {
		t.Fatal(err)
	}
	if n3 == n1 {
		t.Error("strict override must compile its own variant")
	}
	if !n3.Strict() {
		t.Error("override not applied")
	}

	// The lenient variant is still served from cache afterwards.
	n4, err := s.normalizer("default", nil)
	if err != nil {
		t.Fatal(err)
	}
	if n4 != n1 {
		t.Error("variants must not evict each other")
	}
}

func TestShutdownWithoutStart(t *testing.T) {
	s, err := NewServer(Config{})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("shutdown without start: %v", err)
	}
	// Close after Shutdown must be safe.
	if err := s.Close(); err != nil {
		t.Errorf("close after shutdown: %v", err)
	}
}

func TestRunLogOpensStore(t *testing.T) {
	s := newTestServer(t, Config{LogDB: filepath.Join(t.TempDir(), "runs.db")})
	if s.runs == nil {
		t.Fatal("expected the run transcript store to be open")
	}
}
