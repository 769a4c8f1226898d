// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/poiesic/docimport"
	"github.com/poiesic/docimport/audit"
	"github.com/poiesic/docimport/config"
	"github.com/poiesic/docimport/core"
	"github.com/poiesic/docimport/storage/badger"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "docimport",
		Usage: "Import records from files, databases and exports into a document store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run the configured importer",
				Action: runCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to a YAML, JSON or TOML configuration file",
					},
					&cli.StringFlag{
						Name:    "importer",
						Aliases: []string{"i"},
						Usage:   "Importer to run (csv, jdbc, couchdb, mongodb)",
					},
					&cli.StringFlag{
						Name:    "db",
						Aliases: []string{"d"},
						Usage:   "Path to BadgerDB database directory",
					},
					&cli.StringFlag{
						Name:  "input",
						Usage: "Path to the delimited input file",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of concurrent store writes",
					},
					&cli.StringFlag{
						Name:  "schedule",
						Usage: "Cron expression to re-run the import on",
					},
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "Re-run the import whenever the input file changes",
					},
					&cli.IntFlag{
						Name:  "progress",
						Usage: "Report progress every N records (0 disables)",
					},
				},
			},
			{
				Name:      "get",
				Usage:     "Print a stored document",
				ArgsUsage: "KEY",
				Action:    getCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format (json, yaml)",
						Value:   "json",
					},
				},
			},
			{
				Name:   "runs",
				Usage:  "List recent import runs",
				Action: runsCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to list (0 lists all)",
						Value: 10,
					},
				},
			},
			{
				Name:   "audit",
				Usage:  "Print the keys recorded in an audit file",
				Action: auditCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "file",
						Usage: "Audit file to read",
						Value: audit.DefaultErrorFile,
					},
					&cli.BoolFlag{
						Name:  "count",
						Usage: "Print only the number of keys",
					},
				},
			},
		},
	}
}

func runCommand(c *cli.Context) error {
	v := config.New()
	if path := c.String("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	overrides := map[string]string{
		"importer": "importer",
		"db":       "store.path",
		"input":    "csv.path",
		"schedule": "schedule",
	}
	for flag, key := range overrides {
		if c.IsSet(flag) {
			v.Set(key, c.String(flag))
		}
	}
	if c.IsSet("workers") {
		v.Set("delivery.workers", c.Int("workers"))
	}
	if c.IsSet("progress") {
		v.Set("progress", c.Int("progress"))
	}
	if c.IsSet("watch") {
		v.Set("watch", c.Bool("watch"))
	}

	cfg, err := config.Decode(v)
	if err != nil {
		return err
	}

	imp, err := docimport.NewImporter(cfg, docimport.WithProgress(c.App.Writer))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer imp.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := imp.Serve(ctx); err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	return nil
}

// documentView is the printable form of a stored document.
type documentView struct {
	Key        string          `json:"key"`
	Source     string          `json:"source"`
	RunID      string          `json:"runId"`
	ImportedAt time.Time       `json:"importedAt"`
	Document   json.RawMessage `json:"document"`
}

func getCommand(c *cli.Context) error {
	key := c.Args().First()
	if key == "" {
		return fmt.Errorf("document key is required")
	}
	format := strings.ToLower(c.String("format"))
	if format != "json" && format != "yaml" {
		return fmt.Errorf("invalid format %q: must be json or yaml", format)
	}

	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	stored, err := badger.NewDocumentRepository(backend).Get(c.Context, key)
	if err != nil {
		return fmt.Errorf("failed to get %q: %w", key, err)
	}

	view := documentView{
		Key:        stored.Key,
		Source:     stored.Source,
		RunID:      stored.RunID,
		ImportedAt: stored.ImportedAt,
		Document:   stored.Body,
	}
	if format == "json" {
		out, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, string(out))
		return nil
	}
	return writeYAML(c, view)
}

// writeYAML prints view as block YAML, keeping the document's field order.
func writeYAML(c *cli.Context, view documentView) error {
	var body yaml.Node
	if err := yaml.Unmarshal(view.Document, &body); err != nil {
		return fmt.Errorf("failed to convert document: %w", err)
	}
	doc := &body
	if doc.Kind == yaml.DocumentNode && len(doc.Content) == 1 {
		doc = doc.Content[0]
	}
	blockStyle(doc)

	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, kv := range [][2]string{
		{"key", view.Key},
		{"source", view.Source},
		{"runId", view.RunID},
		{"importedAt", view.ImportedAt.Format(time.RFC3339Nano)},
	} {
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: kv[0]},
			&yaml.Node{Kind: yaml.ScalarNode, Value: kv[1], Tag: "!!str"})
	}
	root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: "document"}, doc)

	enc := yaml.NewEncoder(c.App.Writer)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return err
	}
	return enc.Close()
}

// blockStyle drops the flow and quoting styles JSON input parses with.
func blockStyle(n *yaml.Node) {
	if n.Kind != yaml.ScalarNode || n.Tag == "!!str" {
		n.Style = 0
	}
	for _, child := range n.Content {
		blockStyle(child)
	}
}

func runsCommand(c *cli.Context) error {
	limit := c.Int("limit")
	if limit < 0 {
		return fmt.Errorf("limit must not be negative")
	}

	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	runs, err := badger.NewRunRepository(backend).ListRuns(c.Context, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSOURCE\tSTARTED\tELAPSED\tREAD\tSKIPPED\tSUCCEEDED\tFAILED\tERROR")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			run.RunID,
			run.Source,
			run.StartedAt.Local().Format(time.DateTime),
			elapsed(run),
			run.Read,
			run.Skipped,
			run.Succeeded,
			run.Failed,
			run.Fatal)
	}
	return w.Flush()
}

func elapsed(run *core.RunRecord) string {
	if run.FinishedAt.IsZero() {
		return "-"
	}
	return run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
}

func auditCommand(c *cli.Context) error {
	keys, err := audit.ReadKeys(c.String("file"))
	if err != nil {
		return fmt.Errorf("failed to read audit file: %w", err)
	}
	if c.Bool("count") {
		fmt.Fprintln(c.App.Writer, len(keys))
		return nil
	}
	for _, key := range keys {
		fmt.Fprintln(c.App.Writer, key)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
