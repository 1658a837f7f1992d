package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/glimpse/internal"
	pkgconfig "github.com/starford/glimpse/pkg/config"
)

var version = "dev"

func loadOptions(cmd *cli.Command) ([]internal.Option, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, opts...)
}

func query(mode string) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		q := strings.Join(cmd.Args().Slice(), " ")
		if mode == internal.QueryAsk && strings.TrimSpace(q) == "" {
			return errors.New("a question is required")
		}
		m := mode
		if m == internal.QueryContext && cmd.Bool("json") {
			m = internal.QueryContextJSON
		}
		opts, err := loadOptions(cmd)
		if err != nil {
			return err
		}
		return internal.RunQuery(ctx, m, q, opts...)
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "glimpse",
		Usage:   "Screen-history retrieval and question answering over captured text",
		Version: version,
		Action:  serve,
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
				Usage:  "Run the HTTP API and inbox watcher (default)",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: mcp,
			},
			{
				Name:      "ask",
				Usage:     "Answer a question from screen history",
				ArgsUsage: "<question>",
				Action:    query(internal.QueryAsk),
			},
			{
				Name:      "context",
				Usage:     "Print the retrieval context for a query",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Print the context as JSON"},
				},
				Action: query(internal.QueryContext),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
