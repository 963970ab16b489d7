package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/starford/notesjson/internal"
	"github.com/starford/notesjson/internal/exchange"
	pkgconfig "github.com/starford/notesjson/pkg/config"
)

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "notesjson",
		Usage:   "Notes store with JSON export and import",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, event stream and inbox watcher",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: serveMCP,
			},
			{
				Name:   "list",
				Usage:  "List notes, newest first",
				Action: withServices(listNotes),
			},
			{
				Name:      "show",
				Usage:     "Print one note",
				ArgsUsage: "ID",
				Action:    withServices(showNote),
			},
			{
				Name:  "add",
				Usage: "Create a note",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Note title", Required: true},
					&cli.StringFlag{Name: "content", Usage: "Note content"},
				},
				Action: withServices(addNote),
			},
			{
				Name:      "edit",
				Usage:     "Change the title and/or content of a note",
				ArgsUsage: "ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "New title"},
					&cli.StringFlag{Name: "content", Usage: "New content; empty clears it"},
				},
				Action: withServices(editNote),
			},
			{
				Name:      "delete",
				Usage:     "Delete a note",
				ArgsUsage: "ID",
				Action:    withServices(deleteNote),
			},
			{
				Name:   "delete-all",
				Usage:  "Delete every note",
				Action: withServices(deleteAll),
			},
			{
				Name:  "export",
				Usage: "Write all notes to a JSON file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file (default: timestamped file in the exchange dir, - for stdout)"},
				},
				Action: withServices(exportNotes),
			},
			{
				Name:      "import",
				Usage:     "Import notes from a JSON file",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Usage: "merge or replace", Value: "merge"},
				},
				Action: withServices(importNotes),
			},
			{
				Name:   "seed",
				Usage:  "Fill an empty store with sample notes",
				Action: withServices(seedNotes),
			},
		},
	}
}

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadWithDefaults(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
}

type action func(ctx context.Context, cmd *cli.Command, svcs *internal.Services, out io.Writer) error

// withServices opens the store for a one-shot command. Logs go to stderr so
// stdout stays clean for command output.
func withServices(fn action) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := slog.New(slog.NewTextHandler(cmd.Root().ErrWriter, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
		svcs, err := internal.Open(cfg, logger, nil)
		if err != nil {
			return err
		}
		defer svcs.Close()
		return fn(ctx, cmd, svcs, cmd.Root().Writer)
	}
}

func requireID(cmd *cli.Command) (string, error) {
	if cmd.Args().Len() != 1 {
		return "", errors.New("expected exactly one note ID")
	}
	return cmd.Args().First(), nil
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

func listNotes(ctx context.Context, _ *cli.Command, svcs *internal.Services, out io.Writer) error {
	notes, err := svcs.Notes.ListNotes(ctx)
	if err != nil {
		return err
	}
	if len(notes) == 0 {
		_, err := fmt.Fprintln(out, "No notes yet")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, n := range notes {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", n.ID, formatTime(n.Timestamp), n.DisplayTitle())
	}
	return tw.Flush()
}

func showNote(ctx context.Context, cmd *cli.Command, svcs *internal.Services, out io.Writer) error {
	id, err := requireID(cmd)
	if err != nil {
		return err
	}
	n, err := svcs.Notes.GetNote(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\n%s\n", n.DisplayTitle(), formatTime(n.Timestamp))
	if n.HasContent() {
		fmt.Fprintf(out, "\n%s\n", n.Content)
	}
	return nil
}

func addNote(ctx context.Context, cmd *cli.Command, svcs *internal.Services, out io.Writer) error {
	n, err := svcs.Notes.CreateNote(ctx, cmd.String("title"), cmd.String("content"))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, n.ID)
	return err
}

func editNote(ctx context.Context, cmd *cli.Command, svcs *internal.Services, out io.Writer) error {
	id, err := requireID(cmd)
	if err != nil {
		return err
	}
	var title, content *string
	if cmd.IsSet("title") {
		v := cmd.String("title")
		title = &v
	}
	if cmd.IsSet("content") {
		v := cmd.String("content")
		content = &v
	}
	if title == nil && content == nil {
		return errors.New("nothing to change: pass --title and/or --content")
	}
	n, err := svcs.Notes.UpdateNote(ctx, id, title, content)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "updated %s\n", n.ID)
	return err
}

func deleteNote(ctx context.Context, cmd *cli.Command, svcs *internal.Services, out io.Writer) error {
	id, err := requireID(cmd)
	if err != nil {
		return err
	}
	if err := svcs.Notes.DeleteNote(ctx, id); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "deleted %s\n", id)
	return err
}

func deleteAll(ctx context.Context, _ *cli.Command, svcs *internal.Services, out io.Writer) error {
	n, err := svcs.Notes.DeleteAll(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "deleted %d notes\n", n)
	return err
}

func exportNotes(ctx context.Context, cmd *cli.Command, svcs *internal.Services, out io.Writer) error {
	dest := cmd.String("out")
	switch dest {
	case "":
		files, err := svcs.Files()
		if err != nil {
			return err
		}
		loc, err := svcs.Notes.ExportTo(ctx, files)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, loc)
		return err
	case "-":
		data, err := svcs.Notes.Export(ctx)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}

	files, err := exchange.NewFiles(filepath.Dir(dest))
	if err != nil {
		return err
	}
	data, err := svcs.Notes.Export(ctx)
	if err != nil {
		return err
	}
	loc, err := files.WriteFile(filepath.Base(dest), data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, loc)
	return err
}

func importNotes(ctx context.Context, cmd *cli.Command, svcs *internal.Services, out io.Writer) error {
	if cmd.Args().Len() != 1 {
		return errors.New("expected exactly one FILE")
	}
	mode, err := exchange.ParseMode(cmd.String("mode"))
	if err != nil {
		return err
	}

	path := cmd.Args().First()
	var sum exchange.Summary
	if path == "-" {
		data, rErr := io.ReadAll(os.Stdin)
		if rErr != nil {
			return rErr
		}
		sum, err = svcs.Notes.Import(ctx, data, mode)
	} else {
		files, fErr := exchange.OpenFiles(filepath.Dir(path))
		if fErr != nil {
			return fErr
		}
		sum, err = svcs.Notes.ImportFrom(ctx, files, filepath.Base(path), mode)
	}
	if err != nil {
		if sum.Imported > 0 {
			fmt.Fprintf(out, "imported %d of %d notes before the failure\n", sum.Imported, sum.Total)
		}
		return err
	}
	_, err = fmt.Fprintf(out, "%s import: imported %d of %d notes (%d skipped, %d replaced)\n",
		mode, sum.Imported, sum.Total, sum.Skipped(), sum.Replaced)
	return err
}

func seedNotes(ctx context.Context, _ *cli.Command, svcs *internal.Services, out io.Writer) error {
	notes, err := svcs.Notes.Seed(ctx, time.Now())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "added %d sample notes\n", len(notes))
	return err
}
