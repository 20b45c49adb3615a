package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phobologic/remotefn/internal/config"
)

// TestApplySectionCreate verifies that applySection on empty content yields
// just the section with a trailing newline.
func TestApplySectionCreate(t *testing.T) {
	t.Parallel()
	section := sentinelStart + "\nbody\n" + sentinelEnd
	got := applySection("", section)
	if got != section+"\n" {
		t.Errorf("got %q", got)
	}
}

// TestApplySectionAppend verifies that existing content without a sentinel block
// is preserved and the section is appended.
func TestApplySectionAppend(t *testing.T) {
	t.Parallel()
	existing := "node_modules\n/build"
	section := sentinelStart + "\nnew content\n" + sentinelEnd
	got := applySection(existing, section)

	if !strings.HasPrefix(got, existing+"\n\n") {
		t.Errorf("existing content should be preserved at start:\n%s", got)
	}
	if !strings.HasSuffix(got, section+"\n") {
		t.Errorf("section should be appended:\n%s", got)
	}
}

// TestApplySectionUpdate verifies that an existing sentinel block is replaced
// precisely, leaving surrounding content intact.
func TestApplySectionUpdate(t *testing.T) {
	t.Parallel()
	before := "node_modules\n\n"
	after := "\n\n.env\n"
	old := before + sentinelStart + "\nold content\n" + sentinelEnd + after

	section := sentinelStart + "\nnew content\n" + sentinelEnd
	got := applySection(old, section)

	if got != before+section+after {
		t.Errorf("got:\n%s", got)
	}
}

func TestGenerateSection(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Root = t.TempDir()

	got := generateSection(cfg)
	if !strings.HasPrefix(got, sentinelStart+"\n") || !strings.HasSuffix(got, "\n"+sentinelEnd) {
		t.Errorf("section not wrapped in sentinels:\n%s", got)
	}
	if !strings.Contains(got, "\n/src/routes/api/server_*/\n") {
		t.Errorf("missing endpoint pattern:\n%s", got)
	}
}

func TestInitCreatesFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--root", dir, "init"}, &stdout, &stderr); err != nil {
		t.Fatalf("init: %v", err)
	}

	cfgData, err := os.ReadFile(filepath.Join(dir, config.FileName))
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if !strings.Contains(string(cfgData), "prefix: server_") {
		t.Errorf("unexpected config:\n%s", cfgData)
	}

	ignore, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	if err != nil {
		t.Fatalf(".gitignore not written: %v", err)
	}
	if !strings.Contains(string(ignore), "/src/routes/api/server_*/") {
		t.Errorf("unexpected .gitignore:\n%s", ignore)
	}
}

func TestInitKeepsExistingConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, config.FileName)
	if err := os.WriteFile(cfgPath, []byte("prefix: rpc_\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--root", dir, "init"}, &stdout, &stderr); err != nil {
		t.Fatalf("init: %v", err)
	}

	data, _ := os.ReadFile(cfgPath)
	if string(data) != "prefix: rpc_\n" {
		t.Errorf("config was rewritten:\n%s", data)
	}
	ignore, _ := os.ReadFile(filepath.Join(dir, ".gitignore"))
	if !strings.Contains(string(ignore), "/src/routes/api/rpc_*/") {
		t.Errorf("section should use the configured prefix:\n%s", ignore)
	}
}

func TestInitDryRun(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	existing := "node_modules\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(existing), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--root", dir, "init", "--dry-run"}, &stdout, &stderr); err != nil {
		t.Fatalf("init: %v", err)
	}

	if !strings.HasPrefix(stdout.String(), existing) || !strings.Contains(stdout.String(), sentinelStart) {
		t.Errorf("dry run should print the full file:\n%s", stdout.String())
	}
	data, _ := os.ReadFile(filepath.Join(dir, ".gitignore"))
	if string(data) != existing {
		t.Error("dry run modified .gitignore")
	}
	if _, err := os.Stat(filepath.Join(dir, config.FileName)); !os.IsNotExist(err) {
		t.Error("dry run wrote the config file")
	}
}

func TestInitIdempotent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	var stdout, stderr bytes.Buffer
	for i := 0; i < 2; i++ {
		if err := run([]string{"--root", dir, "init"}, &stdout, &stderr); err != nil {
			t.Fatalf("init run %d: %v", i, err)
		}
	}

	data, _ := os.ReadFile(filepath.Join(dir, ".gitignore"))
	if n := strings.Count(string(data), sentinelStart); n != 1 {
		t.Errorf("expected 1 sentinel block, got %d:\n%s", n, data)
	}
}
