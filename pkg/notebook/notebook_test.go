package notebook

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/simbridge-dev/simbridge/pkg/registry"
	"github.com/simbridge-dev/simbridge/pkg/server"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testFactory() (*server.Server, error) {
	cfg := server.DefaultConfig()
	cfg.DisableTracing = true
	return server.New(cfg, testLogger()), nil
}

func TestNewSharesSessionByConfigPath(t *testing.T) {
	reg := registry.New(testLogger())
	path := filepath.Join(t.TempDir(), "layout.yaml")
	opts := Options{ConfigPath: path, Registry: reg, Logger: testLogger()}

	a, err := New(context.Background(), testFactory, opts)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer a.Close(context.Background())

	b, err := New(context.Background(), testFactory, opts)
	if err != nil {
		t.Fatalf("second New error: %v", err)
	}

	if a.Session().ID != b.Session().ID {
		t.Errorf("same config path resolved two sessions: %s vs %s", a.Session().ID, b.Session().ID)
	}
	if a.URL() != b.URL() {
		t.Errorf("URL mismatch: %s vs %s", a.URL(), b.URL())
	}
}

func TestNewWithoutConfigPathCreatesTempKey(t *testing.T) {
	reg := registry.New(testLogger())

	v, err := New(context.Background(), testFactory, Options{Registry: reg, Logger: testLogger()})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	key := string(v.Key())
	if _, err := os.Stat(key); err != nil {
		t.Errorf("temp key file missing: %v", err)
	}

	if err := v.Close(context.Background()); err != nil {
		t.Errorf("Close error: %v", err)
	}
	if _, err := os.Stat(key); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temp key file not removed on Close: %v", err)
	}
}

func TestDisplayReturnsEmbed(t *testing.T) {
	reg := registry.New(testLogger())

	v, err := New(context.Background(), testFactory, Options{
		Registry:     reg,
		Height:       480,
		PollInterval: 2 * time.Millisecond,
		Logger:       testLogger(),
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer v.Close(context.Background())

	html, err := v.Display(context.Background())
	if err != nil {
		t.Fatalf("Display error: %v", err)
	}
	if !strings.Contains(html, v.URL()) {
		t.Errorf("embed %q does not reference %q", html, v.URL())
	}
	if !strings.Contains(html, `height="480"`) {
		t.Errorf("embed %q missing configured height", html)
	}
}

func TestDisplayDeadServer(t *testing.T) {
	reg := registry.New(testLogger())

	v, err := New(context.Background(), testFactory, Options{
		Registry:     reg,
		ReadyTimeout: time.Second,
		PollInterval: 2 * time.Millisecond,
		Logger:       testLogger(),
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer v.Close(context.Background())

	if err := v.Session().Server.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown error: %v", err)
	}
	select {
	case <-v.Session().Done():
	case <-time.After(5 * time.Second):
		t.Fatal("serve goroutine did not exit")
	}

	if _, err := v.Display(context.Background()); !errors.Is(err, ErrNotAlive) {
		t.Errorf("Display on dead session = %v, want ErrNotAlive", err)
	}
}
