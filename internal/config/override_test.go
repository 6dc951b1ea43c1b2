package config

import (
	"strings"
	"testing"
	"time"
)

func baseConfig() *Config {
	cfg := Default()
	cfg.Shell = "/bin/sh"
	return cfg
}

func TestApplyOverrides_SimpleString(t *testing.T) {
	cfg := baseConfig()
	err := ApplyOverrides(cfg, []string{"dir=/workspace/project"})
	if err != nil {
		t.Fatalf("ApplyOverrides: %v", err)
	}
	if cfg.Dir != "/workspace/project" {
		t.Errorf("Dir = %q, want %q", cfg.Dir, "/workspace/project")
	}
}

func TestApplyOverrides_MultipleTypes(t *testing.T) {
	cfg := baseConfig()
	err := ApplyOverrides(cfg, []string{
		"shell=/bin/zsh",
		"grace_period=250ms",
		"read_chunk=2048",
		"args=-l -i",
	})
	if err != nil {
		t.Fatalf("ApplyOverrides: %v", err)
	}
	if cfg.Shell != "/bin/zsh" {
		t.Errorf("Shell = %q", cfg.Shell)
	}
	if time.Duration(cfg.GracePeriod) != 250*time.Millisecond {
		t.Errorf("GracePeriod = %v", time.Duration(cfg.GracePeriod))
	}
	if cfg.ReadChunk != 2048 {
		t.Errorf("ReadChunk = %d", cfg.ReadChunk)
	}
	if strings.Join(cfg.Args, ",") != "-l,-i" {
		t.Errorf("Args = %v", cfg.Args)
	}
}

func TestApplyOverrides_NestedBool(t *testing.T) {
	cfg := baseConfig()
	err := ApplyOverrides(cfg, []string{"activity_log.path=/tmp/x.jsonl", "activity_log.enabled=TRUE"})
	if err != nil {
		t.Fatalf("ApplyOverrides: %v", err)
	}
	if !cfg.ActivityLog.Enabled || cfg.ActivityLog.Path != "/tmp/x.jsonl" {
		t.Errorf("ActivityLog = %+v", cfg.ActivityLog)
	}
}

func TestApplyOverrides_EnvEntries(t *testing.T) {
	cfg := baseConfig()
	err := ApplyOverrides(cfg, []string{"env.EDITOR=vi", "env.A.B=c=d"})
	if err != nil {
		t.Fatalf("ApplyOverrides: %v", err)
	}
	if cfg.Env["EDITOR"] != "vi" {
		t.Errorf("env.EDITOR = %q", cfg.Env["EDITOR"])
	}
	if cfg.Env["A.B"] != "c=d" {
		t.Errorf("env[A.B] = %q", cfg.Env["A.B"])
	}
}

func TestApplyOverrides_Errors(t *testing.T) {
	tests := []struct {
		override string
		wantErr  string
	}{
		{"shell", "must be key=value"},
		{"nope=1", "unknown field"},
		{"read_chunk=lots", "expected int"},
		{"grace_period=5", "expected duration"},
		{"activity_log.enabled=maybe", "expected bool"},
		{"env=x", "individual entries"},
		{"shell.inner=x", "not a struct"},
		{"read_chunk=1", "read_chunk"},
	}
	for _, tt := range tests {
		err := ApplyOverrides(baseConfig(), []string{tt.override})
		if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
			t.Errorf("ApplyOverrides(%q) = %v, want error containing %q", tt.override, err, tt.wantErr)
		}
	}
}

func TestApplyOverrides_BoolSpellings(t *testing.T) {
	for value, want := range map[string]bool{"on": true, "YES": true, "1": true, "off": false, "no": false, "0": false} {
		cfg := baseConfig()
		cfg.ActivityLog.Path = "/tmp/x.jsonl"
		cfg.ActivityLog.Enabled = !want
		if err := ApplyOverrides(cfg, []string{"activity_log.enabled=" + value}); err != nil {
			t.Fatalf("ApplyOverrides(%q): %v", value, err)
		}
		if cfg.ActivityLog.Enabled != want {
			t.Errorf("enabled=%s gave %v, want %v", value, cfg.ActivityLog.Enabled, want)
		}
	}
}

func TestApplyOverrides_ValueMayContainEquals(t *testing.T) {
	cfg := baseConfig()
	if err := ApplyOverrides(cfg, []string{"term=a=b"}); err != nil {
		t.Fatalf("ApplyOverrides: %v", err)
	}
	if cfg.Term != "a=b" {
		t.Errorf("Term = %q", cfg.Term)
	}
}
