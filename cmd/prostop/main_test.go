package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	settingsoutadapter "prostop/internal/modules/settings/adapter/out"
	"prostop/internal/platform/config"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestSettingsSetPersistsGivenFlags(t *testing.T) {
	dataDir := t.TempDir()

	_, err := runCommand(t, "--data", dataDir, "settings", "set",
		"--focus", "30", "--auto-start-breaks")
	if err != nil {
		t.Fatalf("settings set failed: %v", err)
	}

	cfg, err := config.New(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	store := settingsoutadapter.NewYAMLSettingsStore(cfg.SettingsPath)
	settings, err := store.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if settings.FocusMinutes != 30 || !settings.AutoStartBreaks {
		t.Fatalf("settings = %+v", settings)
	}
	// Untouched fields keep their defaults.
	if settings.ShortBreakMinutes != 5 || !settings.NotificationsEnabled {
		t.Fatalf("unchanged fields drifted: %+v", settings)
	}
}

func TestSettingsSetRejectsEmptyInvocation(t *testing.T) {
	dataDir := t.TempDir()

	if _, err := runCommand(t, "--data", dataDir, "settings", "set"); err == nil {
		t.Fatal("set without flags should fail")
	}
}

func TestSettingsShowPrintsCurrentValues(t *testing.T) {
	dataDir := t.TempDir()

	if _, err := runCommand(t, "--data", dataDir, "settings", "set", "--long-break-interval", "6"); err != nil {
		t.Fatal(err)
	}
	out, err := runCommand(t, "--data", dataDir, "settings", "show")
	if err != nil {
		t.Fatalf("settings show failed: %v", err)
	}
	if !strings.Contains(out, "long_break_interval: 6") {
		t.Fatalf("show output = %q", out)
	}
}
