package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"linktidy/internal/cascade"
	"linktidy/internal/config"
	"linktidy/internal/engine"
	"linktidy/internal/linkindex"
	"linktidy/internal/vault"
	"linktidy/internal/watch"
)

func main() {
	cmd := &cli.Command{
		Name:  "linktidy",
		Usage: "Keep a markdown vault's links, attachments and folders consistent",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   "linktidy.yaml",
				Sources: cli.EnvVars("LINKTIDY_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "vault",
				Usage:   "Vault root directory (overrides config)",
				Sources: cli.EnvVars("LINKTIDY_VAULT"),
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format: text or json",
				Value: "text",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "index",
				Usage:  "Scan the vault and (re)build the link index",
				Action: runIndex,
			},
			{
				Name:   "check",
				Usage:  "Scan for broken links and style findings, write the report document",
				Action: runCheck,
			},
			{
				Name:   "reorganize",
				Usage:  "Normalize links, collect attachments and prune empty folders",
				Flags:  bulkFlags(),
				Action: runBulk((*engine.Engine).Reorganize),
			},
			{
				Name:   "collect",
				Usage:  "Move referenced attachments into each note's attachment folder",
				Flags:  bulkFlags(),
				Action: runBulk((*engine.Engine).CollectAttachments),
			},
			{
				Name:   "markdown",
				Usage:  "Convert wikilinks to markdown-style links",
				Flags:  bulkFlags(),
				Action: runBulk((*engine.Engine).ConvertWikilinks),
			},
			{
				Name:   "relative",
				Usage:  "Re-express link targets relative to their document",
				Flags:  bulkFlags(),
				Action: runBulk((*engine.Engine).ConvertToRelative),
			},
			{
				Name:   "prune",
				Usage:  "Remove folders that contain no files",
				Action: runPrune,
			},
			{
				Name:   "ensure-ids",
				Usage:  "Give every note a stable frontmatter identifier",
				Action: runEnsureIDs,
			},
			{
				Name:      "rename",
				Usage:     "Rename a document and cascade the change through the vault",
				ArgsUsage: "<old-path> <new-path>",
				Action:    runRename,
			},
			{
				Name:   "watch",
				Usage:  "Watch the vault and cascade renames and deletes as they happen",
				Action: runWatch,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("linktidy error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func bulkFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "doc",
			Usage: "Limit to one document (vault-relative path)",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Report what would change without writing",
		},
	}
}

// setup loads configuration and opens the vault, the index and the engine.
// existing requires a previously built index instead of creating an empty one.
func setup(cmd *cli.Command, existing bool) (*engine.Engine, func(), error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, nil, err
	}
	if root := cmd.String("vault"); root != "" {
		cfg.Vault = root
	}

	level := slog.LevelInfo
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	v, err := vault.New(cfg.Vault)
	if err != nil {
		return nil, nil, err
	}
	open := linkindex.Open
	if existing {
		open = linkindex.OpenExisting
	}
	ix, err := open(v.Root())
	if err != nil {
		return nil, nil, err
	}
	eng, err := engine.New(v, ix, cfg, logger)
	if err != nil {
		ix.Close()
		return nil, nil, err
	}
	return eng, func() { ix.Close() }, nil
}

func emit(cmd *cli.Command, v any, text string) error {
	if cmd.String("format") == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	fmt.Println(text)
	return nil
}

func runIndex(ctx context.Context, cmd *cli.Command) error {
	eng, done, err := setup(cmd, false)
	if err != nil {
		return err
	}
	defer done()
	stats, err := eng.BuildIndex(ctx)
	if err != nil {
		return err
	}
	return emit(cmd, stats, fmt.Sprintf("indexed %d files (%d notes, %d links)",
		stats.Files, stats.Notes, stats.Links))
}

func runCheck(ctx context.Context, cmd *cli.Command) error {
	eng, done, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer done()
	report, err := eng.CheckConsistency(ctx)
	if err != nil {
		return err
	}
	return emit(cmd, report, fmt.Sprintf("%d findings across %d documents, report written to %s",
		report.Total(), report.Docs, eng.Cfg.ReportPath))
}

func runBulk(op func(*engine.Engine, context.Context, engine.BulkOptions) (*engine.BulkResult, error)) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		eng, done, err := setup(cmd, true)
		if err != nil {
			return err
		}
		defer done()
		res, err := op(eng, ctx, engine.BulkOptions{
			Doc:    cmd.String("doc"),
			DryRun: cmd.Bool("dry-run"),
		})
		if err != nil {
			return err
		}
		text := fmt.Sprintf("%d documents visited, %d changed, %d links rewritten, %d files moved",
			res.Docs, res.DocsChanged, res.LinksRewritten, res.FilesMoved)
		if res.Errors > 0 {
			text += fmt.Sprintf(", %d errors", res.Errors)
		}
		if cmd.Bool("dry-run") {
			text += " (dry run)"
		}
		if err := emit(cmd, res, text); err != nil {
			return err
		}
		if res.Errors > 0 {
			return errors.New("completed with errors")
		}
		return nil
	}
}

func runPrune(ctx context.Context, cmd *cli.Command) error {
	eng, done, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer done()
	removed, err := eng.PruneEmptyFolders(ctx)
	if err != nil {
		return err
	}
	return emit(cmd, removed, fmt.Sprintf("removed %d empty folders", len(removed)))
}

func runEnsureIDs(ctx context.Context, cmd *cli.Command) error {
	eng, done, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer done()
	res, err := eng.EnsureIDs(ctx)
	if err != nil {
		return err
	}
	return emit(cmd, res, fmt.Sprintf("checked %d notes, added %d identifiers",
		res.Checked, res.Added))
}

func runRename(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args()
	if args.Len() != 2 {
		return errors.New("usage: linktidy rename <old-path> <new-path>")
	}
	eng, done, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer done()
	res, err := eng.RenameNotify(ctx, args.Get(0), args.Get(1))
	if err != nil {
		return err
	}
	return emit(cmd, res, renameText(res))
}

// renameText tolerates a nil result: the notification returns none when it
// was folded into an already running cascade instead of starting one.
func renameText(res *cascade.RunResult) string {
	if res == nil {
		return "rename folded into the running cascade"
	}
	return fmt.Sprintf("moved %d files, rewrote %d links in %d documents",
		res.Moved, res.LinksRewritten, res.DocsPatched)
}

func runWatch(ctx context.Context, cmd *cli.Command) error {
	eng, done, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer done()
	d := &watch.Dispatcher{Engine: eng, Logger: eng.Logger}
	return d.Run(ctx)
}
