package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/japaniel/kindlenotion/pkg/config"
	"github.com/japaniel/kindlenotion/pkg/db"
	"github.com/japaniel/kindlenotion/pkg/dictionary"
	"github.com/japaniel/kindlenotion/pkg/ingest"
	"github.com/japaniel/kindlenotion/pkg/notion"
	"github.com/japaniel/kindlenotion/pkg/syncer"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

type options struct {
	words     bool
	lookups   bool
	database  string
	floor     int
	ceiling   int
	testing   bool
	noArchive bool
	config    string
	logFile   string
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "kindlenotion",
		Short: "Sync Kindle Vocabulary Builder lookups into Notion",
		Long: `Sync the words and look-ups of a Kindle Vocabulary Builder export into
the Notion word and look-up tables.

Words are synced before look-ups so each look-up can link to its stem.
Rows that already exist remotely are skipped, so runs can be repeated.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	f := cmd.Flags()
	f.BoolVarP(&opts.words, "words", "w", false, "Sync words only")
	f.BoolVarP(&opts.lookups, "lookups", "l", false, "Sync look-ups only")
	f.StringVar(&opts.database, "database", db.DefaultDevicePath, "Path to the vocab.db export")
	f.IntVar(&opts.floor, "floor", 0, "Skip records at or below this 1-based position")
	f.IntVar(&opts.ceiling, "ceiling", 2000, "Stop after the record at this 1-based position")
	f.BoolVar(&opts.testing, "testing", false, "Run the look-up reconciliation pass instead of a sync")
	f.BoolVar(&opts.noArchive, "no-archive", false, "Read the export in place instead of archiving it first")
	f.StringVar(&opts.config, "config", "", "Config file (YAML, TOML or JSON)")
	f.StringVar(&opts.logFile, "log-file", "", "Also write logs to this rotating file")
	return cmd
}

func main() {
	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, stdout, stderr io.Writer) error {
	cfg, err := config.Load(opts.config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logOut := stderr
	if opts.logFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
		}
		defer rotator.Close()
		logOut = io.MultiWriter(stderr, rotator)
	}
	logger := log.New(logOut, "", log.LstdFlags)

	store := notion.NewClient(cfg.NotionToken, cfg.WordTableID, cfg.LookupTableID, notionOptions(cfg)...)

	if opts.testing {
		engine := syncer.New(store, nil, nil)
		engine.Logger = logger
		runner := ingest.NewRunner(engine)
		runner.Logger = logger
		res, err := runner.Reconcile(ctx)
		if err != nil {
			return err
		}
		printReconcile(stdout, res, engine.Diagnostics())
		return nil
	}

	kinds := batchKinds(opts)
	for _, k := range kinds {
		if k == db.WordsTable {
			if err := cfg.ValidateDictionary(); err != nil {
				return err
			}
		}
	}

	path := opts.database
	if !opts.noArchive {
		if dir := cfg.ArchiveDir(); dir != "" {
			path, err = db.ArchiveExport(opts.database, dir, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Using export %s\n", path)
		} else {
			logger.Printf("WARNING: no archive directory configured (set %s or %s); reading %s in place",
				config.KeyArchivePath, config.KeySystemUser, path)
		}
	}

	src, err := db.Open(path)
	if err != nil {
		return err
	}

	dict := dictionary.NewClient(cfg.APIKey, cfg.HTTPTimeout)
	dict.URL = cfg.DictionaryURL

	engine := syncer.New(store, src, dict)
	engine.Logger = logger
	defer engine.Close()

	runner := ingest.NewRunner(engine)
	runner.Logger = logger

	for _, kind := range kinds {
		if total, err := src.Count(ctx, kind); err == nil {
			fmt.Fprintf(stdout, "Syncing %s (%d rows in export, window %d-%d)...\n", kind, total, opts.floor+1, opts.ceiling)
		}
		runner.OnProgress = progressPrinter(stderr, kind)
		res, err := runner.RunBatch(ctx, kind, opts.floor, opts.ceiling)
		fmt.Fprintln(stderr)
		if res != nil {
			printResult(stdout, res)
		}
		if err != nil {
			return fmt.Errorf("%s batch: %w", kind, err)
		}
	}

	printDiagnostics(stdout, engine.Diagnostics())
	fmt.Fprintln(stdout, "Processing complete.")
	return nil
}

func notionOptions(cfg *config.Config) []notion.Option {
	opts := []notion.Option{notion.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout})}
	if cfg.NotionURL != "" {
		opts = append(opts, notion.WithBaseURL(cfg.NotionURL))
	}
	return opts
}

// batchKinds returns the tables to sync, words first.
func batchKinds(opts options) []db.TableKind {
	switch {
	case opts.words && !opts.lookups:
		return []db.TableKind{db.WordsTable}
	case opts.lookups && !opts.words:
		return []db.TableKind{db.LookupsTable}
	}
	return []db.TableKind{db.WordsTable, db.LookupsTable}
}
