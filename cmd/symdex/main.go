package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/symdex/symdex/internal/config"
	"github.com/symdex/symdex/internal/debug"
	"github.com/symdex/symdex/internal/frontend"
	"github.com/symdex/symdex/internal/index"
	"github.com/symdex/symdex/internal/indexer"
	"github.com/symdex/symdex/internal/lookup"
	"github.com/symdex/symdex/internal/plan"
	"github.com/symdex/symdex/internal/resolve"
	"github.com/symdex/symdex/internal/version"
)

func main() {
	app := &cli.App{
		Name:    "symdex",
		Usage:   "extract a cross-referenced symbol database from a C++ codebase",
		Version: version.Info(),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable debug output",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("verbose") {
				debug.SetOutput(os.Stderr)
			}
			return nil
		},
		Commands: []*cli.Command{
			indexCommand(),
			lookupCommand(),
			{
				Name:  "version",
				Usage: "print detailed version information",
				Action: func(c *cli.Context) error {
					fmt.Println(version.FullInfo())
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "index the project in the current (or given) directory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "root",
				Usage: "project root containing " + config.ConfigFileName,
				Value: ".",
			},
			&cli.IntFlag{
				Name:  "threads",
				Usage: "worker count override (0 = all cores)",
				Value: -1,
			},
			&cli.StringFlag{
				Name:  "output",
				Usage: "snapshot output path override",
			},
		},
		Action: runIndex,
	}
}

func runIndex(c *cli.Context) error {
	start := time.Now()

	cfg, err := config.Load(c.String("root"))
	if err != nil {
		return err
	}
	if t := c.Int("threads"); t >= 0 {
		cfg.Project.NumThreads = t
	}
	if out := c.String("output"); out != "" {
		cfg.Paths.Output = out
	}

	items, err := plan.Build(cfg)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		log.Printf("Nothing to index: the compilation plan is empty")
	}
	debug.Logf("compilation plan: %d work items", len(items))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source := frontend.NewSource(frontend.Options{
		IgnorePrivateMembers: cfg.Ignore.IgnorePrivateMembers,
	})
	idx := index.New()

	report, err := indexer.New(source, cfg.Project.NumThreads).Run(ctx, items, idx)
	// Per-file context is printed even when the run as a whole failed, so a
	// total failure still says which files broke and at what stage.
	for _, failure := range report.Failures {
		log.Printf("Warning: %v", failure)
	}
	if err != nil {
		return err
	}

	if err := resolve.New(idx).Run(); err != nil {
		return err
	}

	snapshot, err := idx.Snapshot(cfg.Project.Name, cfg.Project.Version)
	if err != nil {
		return err
	}
	if err := writeSnapshot(snapshot, cfg.Paths.Output); err != nil {
		return err
	}

	log.Printf("Indexed %d/%d files (%d observations) in %s; snapshot written to %s",
		report.Succeeded, report.Attempted, report.Observations,
		time.Since(start).Round(time.Millisecond), cfg.Paths.Output)
	return nil
}

func writeSnapshot(s *index.Snapshot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer f.Close()
	return s.WriteJSON(f)
}

func lookupCommand() *cli.Command {
	return &cli.Command{
		Name:      "lookup",
		Usage:     "query a snapshot for a symbol by (possibly misspelled) name",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "snapshot",
				Usage: "path to a snapshot written by `symdex index`",
				Value: filepath.Join("docs", "index.json"),
			},
			&cli.Float64Flag{
				Name:  "threshold",
				Usage: "minimum fuzzy similarity for non-exact matches",
				Value: 0.82,
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "maximum number of results",
				Value: 10,
			},
		},
		Action: runLookup,
	}
}

func runLookup(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("lookup expects exactly one name argument")
	}
	query := c.Args().First()

	f, err := os.Open(c.String("snapshot"))
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	snapshot, err := index.ReadSnapshot(f)
	if err != nil {
		return err
	}

	matcher := lookup.NewMatcher(snapshot, c.Float64("threshold"), c.Int("limit"))
	matches := matcher.Find(query)
	if len(matches) == 0 {
		fmt.Printf("No matches for %q\n", query)
		return nil
	}
	for _, m := range matches {
		marker := "~"
		if m.Exact {
			marker = "="
		}
		fmt.Printf("%s %-9s %s  (%s)\n", marker, m.Kind, m.QualifiedName, m.Location)
	}
	return nil
}
