// ABOUTME: Tests for the CLI wiring helpers that assemble the store and stream client from config.
// ABOUTME: Mode entrypoints are exercised through their building blocks, not a live terminal.
package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/2389-research/spyglass/config"
)

func TestBuildStoreFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Store.MaxTasks = 5
	cfg.Stream.CaptureEnabled = true
	cfg.Stream.CapturePath = filepath.Join(t.TempDir(), "cap.ndjson")

	store, idx, rec, err := buildStore(cfg)
	if err != nil {
		t.Fatalf("buildStore: %v", err)
	}
	defer rec.Close()

	if store == nil || idx == nil {
		t.Fatal("store and index must be constructed")
	}
	if rec == nil {
		t.Fatal("capture enabled should create a recorder")
	}
}

func TestBuildStoreWithoutCapture(t *testing.T) {
	_, _, rec, err := buildStore(config.Default())
	if err != nil {
		t.Fatalf("buildStore: %v", err)
	}
	if rec != nil {
		t.Error("capture disabled should not create a recorder")
	}
}

func TestStreamConfigMapping(t *testing.T) {
	cfg := config.Default()
	cfg.Stream.URL = "http://example.com/v1/stream"
	cfg.Stream.Token = "tok"
	cfg.Stream.BackoffBaseMS = 250
	cfg.Stream.MaxReconnects = 3

	scfg := streamConfig(cfg)
	if scfg.URL != cfg.Stream.URL || scfg.Token != "tok" {
		t.Errorf("endpoint not mapped: %+v", scfg)
	}
	if scfg.Backoff.Base != 250*time.Millisecond || scfg.Backoff.MaxAttempts != 3 {
		t.Errorf("backoff not mapped: %+v", scfg.Backoff)
	}
}
