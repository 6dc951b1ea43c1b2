package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestConfigShow(t *testing.T) {
	isolateConfig(t)
	out, err := runRoot(t, "config", "show", "--set", "grace_period=3s")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, want := range []string{"shell: /bin/sh", "grace_period: 3s", "term: linux"} {
		if !strings.Contains(out, want) {
			t.Errorf("config show missing %q:\n%s", want, out)
		}
	}
}

func TestConfigShow_BadOverride(t *testing.T) {
	isolateConfig(t)
	_, err := runRoot(t, "config", "show", "--set", "nope=1")
	if err == nil || !strings.Contains(err.Error(), "unknown field") {
		t.Errorf("config show = %v, want unknown field error", err)
	}
}

func TestConfigPath(t *testing.T) {
	dir := isolateConfig(t)
	out, err := runRoot(t, "config", "path")
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if got := strings.TrimSpace(out); got != filepath.Join(dir, "config.yaml") {
		t.Errorf("config path = %q", got)
	}

	out, err = runRoot(t, "--config", "/etc/hub.yaml", "config", "path")
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if got := strings.TrimSpace(out); got != "/etc/hub.yaml" {
		t.Errorf("config path with --config = %q", got)
	}
}

func TestRootSubcommands(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"shell", "peek", "config", "version"} {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}
