package slipway

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestRestartPolicyName(t *testing.T) {
	t.Run("compose restart policy", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "compose.yaml", "services:\n  api:\n    restart: always\n")

		if got := restartPolicyName(dir); got != "always" {
			t.Errorf("expected compose policy always, got %q", got)
		}
	})

	t.Run("explicit config wins over compose", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "compose.yaml", "services:\n  api:\n    restart: always\n")
		writeFile(t, dir, "slipway.toml", "[deploy]\nrestartPolicy = \"on-failure\"\n")

		if got := restartPolicyName(dir); got != "on-failure" {
			t.Errorf("expected configured policy on-failure, got %q", got)
		}
	})

	t.Run("default when nothing declares one", func(t *testing.T) {
		dir := t.TempDir()

		if got := restartPolicyName(dir); got != "unless-stopped" {
			t.Errorf("expected default unless-stopped, got %q", got)
		}
	})
}

func TestMergeEnv(t *testing.T) {
	base := []string{"HOME=/root", "PORT=1", "PATH=/usr/bin"}
	merged := mergeEnv(base, map[string]string{"PORT": "9000", "DEBUG": "1"})

	want := []string{"HOME=/root", "PATH=/usr/bin", "DEBUG=1", "PORT=9000"}
	if !reflect.DeepEqual(merged, want) {
		t.Errorf("mergeEnv() = %v, want %v", merged, want)
	}
}

func TestMergeEnv_EmptyExtra(t *testing.T) {
	base := []string{"HOME=/root"}
	merged := mergeEnv(base, nil)

	if !reflect.DeepEqual(merged, base) {
		t.Errorf("mergeEnv() = %v, want %v", merged, base)
	}
}
