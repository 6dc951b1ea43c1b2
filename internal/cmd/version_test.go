package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ZeroiJ/hub/internal/version"
)

func TestVersionCmd(t *testing.T) {
	cmd := newVersionCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}

	got := strings.TrimSpace(buf.String())
	if got != version.Version {
		t.Errorf("version command output = %q, want %q", got, version.Version)
	}
}
