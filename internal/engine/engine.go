// Package engine wires the vault, the link index and the configuration into
// the commands the CLI and the watcher drive.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"linktidy/internal/cascade"
	"linktidy/internal/check"
	"linktidy/internal/collect"
	"linktidy/internal/config"
	"linktidy/internal/linkindex"
	"linktidy/internal/vault"
)

// Engine owns the per-operation state of the consistency engine. A single
// cascade context serves as the critical section for rename handling.
type Engine struct {
	Vault  *vault.FS
	Index  *linkindex.Index
	Cfg    config.Config
	Logger *slog.Logger

	ignore  *config.IgnoreRules
	policy  cascade.FolderPolicy
	cascade *cascade.Context
}

// New builds an engine over an opened vault and index.
func New(v *vault.FS, ix *linkindex.Index, cfg config.Config, logger *slog.Logger) (*Engine, error) {
	rules, err := cfg.CompileIgnoreRules()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Vault:   v,
		Index:   ix,
		Cfg:     cfg,
		Logger:  logger,
		ignore:  rules,
		policy:  cascade.FolderPolicy{Pattern: cfg.AttachmentFolder},
		cascade: cascade.NewContext(),
	}, nil
}

// Ignored reports whether a path is excluded from processing.
func (e *Engine) Ignored(path string) bool { return e.ignore.Ignored(path) }

// Cascade exposes the active cascade context to the notification dispatcher.
func (e *Engine) Cascade() *cascade.Context { return e.cascade }

func (e *Engine) executor() *cascade.Executor {
	return &cascade.Executor{
		Vault:                e.Vault,
		Index:                e.Index,
		Policy:               e.policy,
		Logger:               e.Logger,
		PruneEmpty:           e.Cfg.PruneEmptyFolders,
		UpdateMovedNoteLinks: e.Cfg.UpdateMovedNoteLinks,
	}
}

// BuildIndex rescans the vault and rebuilds the link index.
func (e *Engine) BuildIndex(ctx context.Context) (*linkindex.BuildStats, error) {
	return e.Index.Build(ctx, e.Vault, e.ignore.Ignored)
}

// RenameNotify handles a document-renamed notification. While a cascade is
// in progress the rename is folded into it (the physical moves the executor
// issues are observable as rename events and must not re-enter); otherwise a
// new cascade is built and executed.
func (e *Engine) RenameNotify(ctx context.Context, oldPath, newPath string) (*cascade.RunResult, error) {
	if !e.cascade.Begin() {
		e.cascade.Merge(oldPath, newPath)
		return nil, nil
	}
	defer e.cascade.End()

	if err := cascade.Build(e.cascade, e.Vault, e.policy, oldPath, newPath); err != nil {
		return nil, fmt.Errorf("build cascade: %w", err)
	}
	res, err := e.executor().Run(ctx, e.cascade)
	if err != nil {
		return res, err
	}
	e.Logger.Info("cascade applied",
		slog.String("old", oldPath), slog.String("new", newPath),
		slog.Int("moved", res.Moved), slog.Int("links", res.LinksRewritten))
	return res, nil
}

// DeleteNotify handles a document-deleted notification. For notes this runs
// the delete cascade over the note's private attachment folder.
func (e *Engine) DeleteNotify(path string) (*cascade.DeleteResult, error) {
	path = vault.NormalizePath(path)
	if !vault.KindOf(path).IsNote() {
		return &cascade.DeleteResult{}, e.Index.RemoveFile(path)
	}
	return e.executor().DeleteNote(path, e.Cfg.DeleteOrphanedAttachments)
}

// CheckConsistency scans every note and writes the report document at the
// configured path.
func (e *Engine) CheckConsistency(ctx context.Context) (*check.Report, error) {
	report, err := check.Run(ctx, e.Vault, e.Index, e.ignore.Ignored)
	if err != nil {
		return nil, err
	}
	if err := e.Vault.Write(e.Cfg.ReportPath, []byte(report.Render())); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}
	return report, nil
}

func (e *Engine) collector() *collect.Collector {
	return &collect.Collector{
		Vault:   e.Vault,
		Index:   e.Index,
		Policy:  e.policy,
		Cascade: e.cascade,
		Logger:  e.Logger,
		Ignore:  e.ignore.Ignored,
		Opts: collect.Options{
			DeleteExisting:   e.Cfg.DeleteExistingOnCollision,
			ContentAddressed: e.Cfg.ContentAddressedNames,
		},
		PruneEmpty: e.Cfg.PruneEmptyFolders,
	}
}
