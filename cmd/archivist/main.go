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
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/gargbot/archivist"
	"github.com/gargbot/archivist/config"
	"github.com/gargbot/archivist/core"
	"github.com/gargbot/archivist/ingestion"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "archivist",
		Usage: "Import chat-log history and the picture archive into the database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config file",
				Value:   config.DefaultConfigPath,
				EnvVars: []string{"ARCHIVIST_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "db-password",
				Usage:   "Database password",
				EnvVars: []string{"ARCHIVIST_DB_PASSWORD"},
			},
			&cli.StringFlag{
				Name:    "dropbox-token",
				Usage:   "Dropbox access token",
				EnvVars: []string{"ARCHIVIST_DROPBOX_TOKEN"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Create or upgrade the database schema",
				Action: migrateCommand,
			},
			{
				Name:   "import-logs",
				Usage:  "Import Messenger history archives",
				Action: importLogsCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "dir",
						Aliases: []string{"d"},
						Usage:   "Directory holding the .xml archives (defaults to logs.dir)",
					},
					&cli.BoolFlag{
						Name:  "dedupe",
						Usage: "Skip messages that were imported before",
					},
				},
			},
			{
				Name:   "classify",
				Usage:  "Classify Dropbox pictures by EXIF keywords and store them",
				Action: classifyCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Number of concurrent downloads (defaults to pictures.pool_size)",
					},
					&cli.Float64Flag{
						Name:  "rate-limit",
						Usage: "Maximum downloads per second, 0 for no limit",
					},
					&cli.BoolFlag{
						Name:  "incremental",
						Usage: "Only look at pictures added since the last clean run (implies picture dedupe)",
					},
					&cli.BoolFlag{
						Name:  "reset",
						Usage: "Forget the saved listing cursor before running",
					},
					&cli.BoolFlag{
						Name:  "dedupe",
						Usage: "Skip pictures that were stored before",
					},
				},
			},
			{
				Name:   "backfill",
				Usage:  "Fill in missing capture times from Dropbox media info",
				Action: backfillCommand,
			},
			{
				Name:   "add-faces",
				Usage:  "Register the people listed under faces.names",
				Action: addFacesCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "dedupe",
						Usage: "Skip people that were registered before",
					},
				},
			},
			{
				Name:   "link-faces",
				Usage:  "Link people to the pictures they appear in",
				Action: linkFacesCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "JSON file mapping picture paths to names (defaults to faces.links_file)",
					},
				},
			},
			{
				Name:   "add-local",
				Usage:  "Store the JPEGs of a local folder under a topic",
				Action: addLocalCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "folder",
						Usage:    "Local folder to import",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "topic",
						Usage:    "Topic to file the pictures under (skate, fe, lark)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "root",
						Usage: "Remote folder the pictures live in (defaults to dropbox.root)",
					},
					&cli.BoolFlag{
						Name:  "dedupe",
						Usage: "Skip pictures that were stored before",
					},
				},
			},
		},
	}
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

	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

// loadConfig reads the config file, applies global and command flags and
// validates the result.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("db-password") {
		cfg.Database.Password = c.String("db-password")
	}
	if c.IsSet("dropbox-token") {
		cfg.Dropbox.Token = c.String("dropbox-token")
	}
	if c.IsSet("pool-size") {
		cfg.Pictures.PoolSize = c.Int("pool-size")
	}
	if c.IsSet("rate-limit") {
		cfg.Pictures.RateLimit = c.Float64("rate-limit")
	}
	if c.Bool("incremental") {
		cfg.Pictures.Incremental = true
		cfg.Pictures.Dedupe = true
	}
	if c.Bool("dedupe") {
		cfg.Logs.Dedupe = true
		cfg.Pictures.Dedupe = true
	}
	cfg.Logging.Level = strings.ToLower(c.String("log-level"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openArchive(c *cli.Context) (*archivist.Archive, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	a, err := archivist.New(c.Context, cfg, archivist.WithProgress(c.App.ErrWriter))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return a, nil
}

func migrateCommand(c *cli.Context) error {
	a, err := openArchive(c)
	if err != nil {
		return err
	}
	defer a.Close()

	version, err := a.Migrate(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Schema version: %d\n", version)
	return nil
}

func importLogsCommand(c *cli.Context) error {
	a, err := openArchive(c)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.ImportLogs(c.Context, c.String("dir"))
	if report != nil {
		fmt.Fprintf(c.App.Writer, "Archives: %s\n", humanize.Comma(int64(report.Files)))
		fmt.Fprintf(c.App.Writer, "Messages: %s\n", humanize.Comma(int64(report.Events)))
		for _, f := range report.Failures {
			fmt.Fprintf(c.App.ErrWriter, "failed: %s: %v\n", f.File, f.Err)
		}
	}
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	return nil
}

func classifyCommand(c *cli.Context) error {
	a, err := openArchive(c)
	if err != nil {
		return err
	}
	defer a.Close()

	if c.Bool("reset") {
		if err := a.ResetCheckpoint(c.Context); err != nil {
			return err
		}
	}

	report, err := a.ClassifyPictures(c.Context)
	if report != nil && report.ClassifyResult != nil {
		fmt.Fprintf(c.App.Writer, "Scanned: %s\n", humanize.Comma(int64(report.Scanned)))
		fmt.Fprintf(c.App.Writer, "Candidates: %s\n", humanize.Comma(int64(report.Candidates)))
		for _, topic := range core.Topics {
			fmt.Fprintf(c.App.Writer, "  %s: %s\n", topic, humanize.Comma(int64(len(report.Pictures.Paths(topic)))))
		}
		fmt.Fprintf(c.App.Writer, "Stored: %s\n", humanize.Comma(int64(report.Persisted)))
		printFailures(c.App.ErrWriter, report.Failures)
	}
	if err != nil {
		return fmt.Errorf("classification failed: %w", err)
	}
	return nil
}

func backfillCommand(c *cli.Context) error {
	a, err := openArchive(c)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.BackfillTakenDates(c.Context)
	if report != nil {
		fmt.Fprintf(c.App.Writer, "Updated: %s of %s\n", humanize.Comma(int64(report.Written)), humanize.Comma(int64(report.Processed)))
		fmt.Fprintf(c.App.Writer, "Without capture time: %s\n", humanize.Comma(int64(report.NoTimeTaken)))
		printFailures(c.App.ErrWriter, report.Failures)
	}
	if err != nil {
		return fmt.Errorf("backfill failed: %w", err)
	}
	return nil
}

func addFacesCommand(c *cli.Context) error {
	a, err := openArchive(c)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.AddFaces(c.Context)
	if err != nil {
		return fmt.Errorf("adding faces failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Faces added: %d\n", n)
	return nil
}

func linkFacesCommand(c *cli.Context) error {
	a, err := openArchive(c)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.AddFacePictures(c.Context, c.String("file"))
	if report != nil {
		fmt.Fprintf(c.App.Writer, "Links added: %s\n", humanize.Comma(int64(report.Written)))
		printFailures(c.App.ErrWriter, report.Failures)
	}
	if err != nil {
		return fmt.Errorf("linking faces failed: %w", err)
	}
	return nil
}

func addLocalCommand(c *cli.Context) error {
	topic := core.Topic(strings.ToLower(c.String("topic")))
	if err := core.ValidateTopic(topic); err != nil {
		return err
	}

	a, err := openArchive(c)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.AddLocalPictures(c.Context, c.String("folder"), topic, c.String("root"))
	if report != nil {
		fmt.Fprintf(c.App.Writer, "Stored: %s of %s\n", humanize.Comma(int64(report.Written)), humanize.Comma(int64(report.Processed)))
		printFailures(c.App.ErrWriter, report.Failures)
	}
	if err != nil {
		return fmt.Errorf("local import failed: %w", err)
	}
	return nil
}

func printFailures(w io.Writer, failures []ingestion.Failure) {
	for _, f := range failures {
		fmt.Fprintf(w, "failed: %v\n", f)
	}
}
