// Package config loads and validates the linktidy YAML configuration.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Config is the persisted configuration read by the engine. Environment
// variables in the file are expanded before parsing.
type Config struct {
	// Vault is the vault root directory.
	Vault string `yaml:"vault"`

	// AttachmentFolder is the attachment-folder pattern. {folder} expands
	// to the note's parent folder, {note} to the note's name without
	// extension. The default puts attachments in a subfolder named after
	// the note.
	AttachmentFolder string `yaml:"attachment_folder"`

	// ReportPath is where the consistency report document is written,
	// vault-relative.
	ReportPath string `yaml:"report_path"`

	// IgnoreFolders lists folder prefixes excluded from all processing.
	IgnoreFolders []string `yaml:"ignore_folders"`

	// IgnoreFiles lists filename regular expressions excluded from all
	// processing.
	IgnoreFiles []string `yaml:"ignore_files"`

	// DeleteExistingOnCollision controls the collect conflict table: when a
	// computed target is occupied, delete the source instead of renaming it
	// to a unique sibling.
	DeleteExistingOnCollision bool `yaml:"delete_existing_on_collision"`

	// ContentAddressedNames derives collected attachment names from a
	// content hash plus the note's stable id.
	ContentAddressedNames bool `yaml:"content_addressed_names"`

	// DeleteOrphanedAttachments removes a deleted note's private attachment
	// folder.
	DeleteOrphanedAttachments bool `yaml:"delete_orphaned_attachments"`

	// PruneEmptyFolders removes folders left empty by moves and collects.
	PruneEmptyFolders bool `yaml:"prune_empty_folders"`

	// UpdateMovedNoteLinks rewrites a moved note's own relative links so
	// they keep resolving from the new location.
	UpdateMovedNoteLinks bool `yaml:"update_moved_note_links"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Vault:                 ".",
		AttachmentFolder:      "{folder}/{note}",
		ReportPath:            "consistency-report.md",
		PruneEmptyFolders:     true,
		UpdateMovedNoteLinks:  true,
		ContentAddressedNames: false,
	}
}

// Validate implements the validation contract for loaded configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Vault, validation.Required),
		validation.Field(&c.AttachmentFolder, validation.Required),
		validation.Field(&c.ReportPath, validation.Required,
			validation.By(func(any) error {
				if strings.HasPrefix(c.ReportPath, "/") {
					return fmt.Errorf("must be vault-relative")
				}
				return nil
			})),
		validation.Field(&c.IgnoreFiles, validation.By(func(any) error {
			for _, p := range c.IgnoreFiles {
				if _, err := regexp.Compile(p); err != nil {
					return fmt.Errorf("invalid pattern %q: %w", p, err)
				}
			}
			return nil
		})),
	)
}

// Load reads the configuration file at path. A missing file yields the
// defaults; a present but malformed or invalid file is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: validate %s: %w", path, err)
	}
	return cfg, nil
}

// IgnoreRules is the compiled form of the ignore settings.
type IgnoreRules struct {
	prefixes []string
	patterns []*regexp.Regexp
}

// CompileIgnoreRules compiles the ignore folder prefixes and filename
// patterns. The report document is always ignored.
func (c Config) CompileIgnoreRules() (*IgnoreRules, error) {
	r := &IgnoreRules{}
	for _, p := range c.IgnoreFolders {
		p = strings.Trim(strings.TrimSpace(p), "/")
		if p != "" {
			r.prefixes = append(r.prefixes, p+"/")
		}
	}
	for _, p := range c.IgnoreFiles {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("config: ignore pattern %q: %w", p, err)
		}
		r.patterns = append(r.patterns, re)
	}
	if c.ReportPath != "" {
		r.patterns = append(r.patterns, regexp.MustCompile("^"+regexp.QuoteMeta(baseName(c.ReportPath))+"$"))
	}
	return r, nil
}

func baseName(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Ignored reports whether the vault-relative path is excluded from
// processing.
func (r *IgnoreRules) Ignored(path string) bool {
	if r == nil {
		return false
	}
	for _, p := range r.prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	name := baseName(path)
	for _, re := range r.patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}
