package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.Address != DefaultAddress {
		t.Errorf("Address = %q, want %q", cfg.Server.Address, DefaultAddress)
	}
	if cfg.Server.PollInterval.Std() != 10*time.Millisecond {
		t.Errorf("PollInterval = %v, want 10ms", cfg.Server.PollInterval.Std())
	}
	if cfg.Server.ReadyTimeout.Std() != 5*time.Second {
		t.Errorf("ReadyTimeout = %v, want 5s", cfg.Server.ReadyTimeout.Std())
	}
	if cfg.Path() != path {
		t.Errorf("Path() = %q, want %q", cfg.Path(), path)
	}
}

func TestLoadFillsDefaults(t *testing.T) {
	path := writeConfig(t, `
title: demo
server:
  poll_interval: 25ms
vocab:
  dimensions: 4
  entries:
    - key: A
    - key: B
pointers:
  - label: pointer
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Title != "demo" {
		t.Errorf("Title = %q, want demo", cfg.Title)
	}
	if cfg.Server.Address != DefaultAddress {
		t.Errorf("Address default not applied: %q", cfg.Server.Address)
	}
	if cfg.Server.PollInterval.Std() != 25*time.Millisecond {
		t.Errorf("PollInterval = %v, want 25ms", cfg.Server.PollInterval.Std())
	}
	if cfg.Pointers[0].Synapse != DefaultSynapse {
		t.Errorf("Synapse = %v, want %v", cfg.Pointers[0].Synapse, DefaultSynapse)
	}
	if cfg.Simulation.Dt != 0.001 {
		t.Errorf("Dt = %v, want 0.001", cfg.Simulation.Dt)
	}
	if cfg.Embed.Height != 600 {
		t.Errorf("Height = %v, want 600", cfg.Embed.Height)
	}
}

func TestValidateRejectsBadVocab(t *testing.T) {
	path := writeConfig(t, `
vocab:
  dimensions: 2
  entries:
    - key: A
      vector: [1, 0, 0]
`)
	if _, err := Load(path); err == nil {
		t.Error("Load accepted vector length mismatch")
	}

	path = writeConfig(t, `
vocab:
  dimensions: 2
  entries:
    - key: A
    - key: A
`)
	if _, err := Load(path); err == nil {
		t.Error("Load accepted duplicate vocab key")
	}
}

func TestBuildVocabulary(t *testing.T) {
	path := writeConfig(t, `
vocab:
  dimensions: 3
  entries:
    - key: A
    - key: B
      vector: [0, 0.5, 0.5]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	v, err := cfg.BuildVocabulary()
	if err != nil {
		t.Fatalf("BuildVocabulary error: %v", err)
	}

	a, ok := v.Vector("A")
	if !ok {
		t.Fatal("key A missing")
	}
	if a[0] != 1 || a[1] != 0 || a[2] != 0 {
		t.Errorf("A = %v, want axis vector", a)
	}
	b, _ := v.Vector("B")
	if b[1] != 0.5 || b[2] != 0.5 {
		t.Errorf("B = %v, want explicit vector", b)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Title = "saved"
	cfg.Vocab = VocabConfig{Dimensions: 2, Entries: []VocabEntry{{Key: "A"}}}

	path := filepath.Join(t.TempDir(), ConfigFileName)
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo error: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got.Title != "saved" {
		t.Errorf("Title = %q, want saved", got.Title)
	}
	if got.Vocab.Dimensions != 2 || len(got.Vocab.Entries) != 1 {
		t.Errorf("vocab not round-tripped: %+v", got.Vocab)
	}
}
