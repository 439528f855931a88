package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration to "+target)

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[paths]") {
		t.Fatalf("sample config missing [paths] section:\n%s", data)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	} else if !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out,
		"Config path: "+env.configPath,
		"Uploads: "+env.uploadsDir,
		"Store: file",
		"Ladder policy: extended",
		"Configuration valid",
	)
	if strings.Contains(out, "defaults were used") {
		t.Fatalf("existing config reported as missing:\n%s", out)
	}
	if _, err := os.Stat(env.uploadsDir); err != nil {
		t.Fatalf("uploads dir not created: %v", err)
	}
}

func TestConfigValidateRejectsBadPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	content := "[paths]\nuploads_dir = \"" + filepath.Join(t.TempDir(), "uploads") + "\"\n\n[ladder]\npolicy = \"ultra\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, err := runCLI(t, []string{"config", "validate"}, path)
	if err == nil || !strings.Contains(err.Error(), "ladder.policy") {
		t.Fatalf("expected ladder.policy error, got %v", err)
	}
}
