package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/starford/playtrace/internal"
	"github.com/starford/playtrace/internal/console"
	"github.com/starford/playtrace/internal/hub"
	"github.com/starford/playtrace/internal/mcpserver"
	"github.com/starford/playtrace/internal/transfer"
)

// withHub loads the config and opens the hub state offline, without the
// HTTP server, for the duration of fn.
func withHub(cmd *cli.Command, fn func(svc *hub.Service) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	svc, err := internal.Open(cfg, nil, io.Discard, false, logger)
	if err != nil {
		return err
	}
	fnErr := fn(svc)
	if err := svc.Close(); err != nil && fnErr == nil {
		return fmt.Errorf("close: %w", err)
	}
	return fnErr
}

func logsCommand() *cli.Command {
	return &cli.Command{
		Name:  "logs",
		Usage: "Print captured console entries",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "level", Aliases: []string{"l"}, Usage: "Only entries of this level"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Newest N entries (0 for all)", Value: 50},
			&cli.BoolFlag{Name: "no-color", Usage: "Disable colored output"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			var level console.Level
			if raw := cmd.String("level"); raw != "" {
				l, ok := console.ParseLevel(raw)
				if !ok {
					return fmt.Errorf("unknown level %q", raw)
				}
				level = l
			}
			if cmd.Bool("no-color") {
				color.NoColor = true
			}
			return withHub(cmd, func(svc *hub.Service) error {
				entries := svc.Tail(level, int(cmd.Int("limit")))
				if len(entries) == 0 {
					fmt.Fprintln(os.Stdout, "no console entries")
					return nil
				}
				printEntries(os.Stdout, entries)
				return nil
			})
		},
	}
}

var levelColors = map[console.Level]*color.Color{
	console.LevelLog:   color.New(color.Reset),
	console.LevelInfo:  color.New(color.FgCyan),
	console.LevelWarn:  color.New(color.FgYellow),
	console.LevelError: color.New(color.FgRed, color.Bold),
	console.LevelDebug: color.New(color.FgHiBlack),
}

func printEntries(w io.Writer, entries []console.Entry) {
	for _, e := range entries {
		c, ok := levelColors[e.Level]
		if !ok {
			c = levelColors[console.LevelLog]
		}
		fmt.Fprintf(w, "%s %s %s\n",
			e.Time().Local().Format("2006-01-02 15:04:05.000"),
			c.Sprintf("%-5s", e.Level),
			e.Message)
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write notes and console logs to an export file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file (default stdout)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withHub(cmd, func(svc *hub.Service) error {
				doc := svc.Export(time.Now())
				path := cmd.String("output")
				if path == "" {
					return transfer.Encode(os.Stdout, doc)
				}
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("create %s: %w", path, err)
				}
				if err := transfer.Encode(f, doc); err != nil {
					_ = f.Close()
					return fmt.Errorf("write %s: %w", path, err)
				}
				return f.Close()
			})
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Merge notes and replace console logs from an export file",
		ArgsUsage: "<file|->",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return errors.New("import: file argument is required")
			}
			var (
				data []byte
				err  error
			)
			if path == "-" {
				data, err = io.ReadAll(os.Stdin)
			} else {
				data, err = os.ReadFile(path)
			}
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			return withHub(cmd, func(svc *hub.Service) error {
				if err := svc.Import(data); err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "imported: %d notes, %d console entries\n",
					svc.Notes().Len(), svc.Buffer().Len())
				return nil
			})
		},
	}
}

func clearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Delete every note and console entry",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Confirm deletion"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if !cmd.Bool("yes") {
				return errors.New("clear: refusing to delete without --yes")
			}
			return withHub(cmd, func(svc *hub.Service) error {
				svc.ClearAll()
				fmt.Fprintln(os.Stdout, "cleared")
				return nil
			})
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve console and note tools over MCP stdio",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withHub(cmd, func(svc *hub.Service) error {
				return mcpserver.New(svc).ServeStdio()
			})
		},
	}
}
