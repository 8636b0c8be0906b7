package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file must not be an error: %v", err)
	}
	def := Default()
	if cfg.AttachmentFolder != def.AttachmentFolder || cfg.ReportPath != def.ReportPath {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoad_ExpandsEnvAndParses(t *testing.T) {
	t.Setenv("TEST_VAULT_DIR", "/data/vault")
	p := filepath.Join(t.TempDir(), "linktidy.yaml")
	body := "vault: ${TEST_VAULT_DIR}\nattachment_folder: attachments/{note}\ndelete_existing_on_collision: true\n"
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Vault != "/data/vault" {
		t.Errorf("env not expanded: %q", cfg.Vault)
	}
	if cfg.AttachmentFolder != "attachments/{note}" {
		t.Errorf("attachment folder = %q", cfg.AttachmentFolder)
	}
	if !cfg.DeleteExistingOnCollision {
		t.Error("flag not parsed")
	}
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	p := filepath.Join(t.TempDir(), "linktidy.yaml")
	if err := os.WriteFile(p, []byte("report_path: /absolute.md\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(p); err == nil {
		t.Error("absolute report path must be rejected")
	}
	if err := os.WriteFile(p, []byte("ignore_files: ['[bad']\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(p); err == nil {
		t.Error("invalid ignore pattern must be rejected")
	}
}

func TestIgnoreRules(t *testing.T) {
	cfg := Default()
	cfg.IgnoreFolders = []string{"archive/", "  .trash  "}
	cfg.IgnoreFiles = []string{`\.tmp$`}
	rules, err := cfg.CompileIgnoreRules()
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		path string
		want bool
	}{
		{"archive/old.md", true},
		{"archives/old.md", false},
		{".trash/x.md", true},
		{"notes/scratch.tmp", true},
		{"notes/real.md", false},
		{"consistency-report.md", true}, // the report never checks itself
		{"sub/consistency-report.md", true},
	}
	for _, c := range cases {
		if got := rules.Ignored(c.path); got != c.want {
			t.Errorf("Ignored(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}
