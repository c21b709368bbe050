package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"vihadmin/contexts/document-workflow/lifecycle-service/adapters/catalog"
	lifecyclehttp "vihadmin/contexts/document-workflow/lifecycle-service/transport/http"
	"vihadmin/internal/app/bootstrap"
	"vihadmin/internal/platform/config"
	"vihadmin/internal/platform/db"

	"github.com/urfave/cli/v3"
)

func newRootCommand(out io.Writer) *cli.Command {
	var cfg config.Config

	return &cli.Command{
		Name:  "doclifecycle",
		Usage: "Allocate sequence ids and move documents through their lifecycle",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "database-driver",
				Usage: "Storage driver (postgres or sqlite)",
			},
			&cli.StringFlag{
				Name:  "postgres-dsn",
				Usage: "PostgreSQL connection string",
			},
			&cli.StringFlag{
				Name:  "sqlite-path",
				Usage: "SQLite database file",
			},
			&cli.StringFlag{
				Name:  "families",
				Usage: "Family catalog YAML, the embedded catalog when empty",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			parsed, err := config.Parse()
			if err != nil {
				return ctx, err
			}
			if command.IsSet("database-driver") {
				parsed.DatabaseDriver = command.String("database-driver")
			}
			if command.IsSet("postgres-dsn") {
				parsed.PostgresDSN = command.String("postgres-dsn")
			}
			if command.IsSet("sqlite-path") {
				parsed.SQLitePath = command.String("sqlite-path")
			}
			if command.IsSet("families") {
				parsed.FamiliesPath = command.String("families")
			}
			if command.IsSet("log-level") {
				parsed.LogLevel = command.String("log-level")
			}
			if err := parsed.Validate(); err != nil {
				return ctx, err
			}
			cfg = parsed
			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Serve the HTTP API",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "port", Usage: "Listen port, overrides HTTP_PORT"},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					if command.IsSet("port") {
						cfg.HTTPPort = command.String("port")
					}
					app, err := bootstrap.BuildAPI(ctx, cfg)
					if err != nil {
						return err
					}
					defer app.Close()
					return app.Run(ctx)
				},
			},
			{
				Name:  "relay",
				Usage: "Publish pending lifecycle events until stopped",
				Action: func(ctx context.Context, _ *cli.Command) error {
					app, err := bootstrap.BuildWorker(ctx, cfg)
					if err != nil {
						return err
					}
					defer app.Close()
					return app.Run(ctx)
				},
			},
			{
				Name:  "migrate",
				Usage: "Apply the database schema",
				Action: func(ctx context.Context, _ *cli.Command) error {
					if err := bootstrap.Migrate(ctx, cfg); err != nil {
						return err
					}
					_, err := fmt.Fprintln(out, "schema up to date")
					return err
				},
			},
			{
				Name:  "families",
				Usage: "List the configured document families",
				Action: func(_ context.Context, _ *cli.Command) error {
					return printFamilies(out, cfg.FamiliesPath)
				},
			},
			{
				Name:      "graph",
				Usage:     "Print a family state graph as a Mermaid diagram",
				ArgsUsage: "<family>",
				Action: func(_ context.Context, command *cli.Command) error {
					family := strings.TrimSpace(command.Args().First())
					if family == "" {
						return errors.New("graph: family argument is required")
					}
					registry, err := catalog.LoadRegistry(cfg.FamiliesPath)
					if err != nil {
						return err
					}
					graph, err := registry.Graph(family)
					if err != nil {
						return err
					}
					_, err = io.WriteString(out, catalog.RenderMermaid(graph))
					return err
				},
			},
			{
				Name:  "create",
				Usage: "Create a document in its family's initial state",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "family", Usage: "Document family, e.g. CONTRACT", Required: true},
					&cli.IntFlag{Name: "year", Usage: "Sequence year, the current UTC year when omitted"},
					&cli.StringFlag{Name: "payload", Usage: "JSON payload stored with the document"},
					&cli.StringFlag{Name: "created-by", Usage: "Creator recorded on the document"},
					&cli.StringFlag{Name: "idempotency-key", Usage: "Replays the original result when reused"},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					year := int(command.Int("year"))
					if year == 0 {
						year = time.Now().UTC().Year()
					}
					req := lifecyclehttp.CreateDocumentRequest{
						Family:    command.String("family"),
						Year:      year,
						CreatedBy: command.String("created-by"),
					}
					if raw := strings.TrimSpace(command.String("payload")); raw != "" {
						if !json.Valid([]byte(raw)) {
							return errors.New("create: payload must be valid JSON")
						}
						req.Payload = json.RawMessage(raw)
					}
					return withRuntime(ctx, cfg, func(runtime *bootstrap.Runtime) error {
						resp, err := runtime.Module.Handler.CreateDocumentHandler(ctx, "", command.String("idempotency-key"), req)
						if err != nil {
							return err
						}
						return printJSON(out, resp)
					})
				},
			},
			{
				Name:      "transition",
				Usage:     "Move a document to another state",
				ArgsUsage: "<document id or sequence id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "to", Usage: "Target state", Required: true},
					&cli.StringFlag{Name: "actor", Usage: "Who performs the transition", Required: true},
					&cli.StringFlag{Name: "comment", Usage: "Free text kept in the audit trail"},
					&cli.IntFlag{Name: "expected-version", Usage: "Reject the transition unless the document is at this version"},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					reference := strings.TrimSpace(command.Args().First())
					if reference == "" {
						return errors.New("transition: document reference is required")
					}
					req := lifecyclehttp.TransitionDocumentRequest{
						TargetState:     command.String("to"),
						Actor:           command.String("actor"),
						Comment:         command.String("comment"),
						ExpectedVersion: int64(command.Int("expected-version")),
					}
					return withRuntime(ctx, cfg, func(runtime *bootstrap.Runtime) error {
						resp, err := runtime.Module.Handler.TransitionDocumentHandler(ctx, "", reference, req)
						if err != nil {
							return err
						}
						return printJSON(out, resp)
					})
				},
			},
			{
				Name:      "show",
				Usage:     "Show a document and its legal next states",
				ArgsUsage: "<document id or sequence id>",
				Action: func(ctx context.Context, command *cli.Command) error {
					reference := strings.TrimSpace(command.Args().First())
					if reference == "" {
						return errors.New("show: document reference is required")
					}
					return withRuntime(ctx, cfg, func(runtime *bootstrap.Runtime) error {
						resp, err := runtime.Module.Handler.GetDocumentHandler(ctx, reference)
						if err != nil {
							return err
						}
						return printJSON(out, resp)
					})
				},
			},
			{
				Name:      "history",
				Usage:     "Print the transition log of a document, oldest first",
				ArgsUsage: "<document id or sequence id>",
				Action: func(ctx context.Context, command *cli.Command) error {
					reference := strings.TrimSpace(command.Args().First())
					if reference == "" {
						return errors.New("history: document reference is required")
					}
					return withRuntime(ctx, cfg, func(runtime *bootstrap.Runtime) error {
						resp, err := runtime.Module.Handler.ListTransitionsHandler(ctx, reference)
						if err != nil {
							return err
						}
						return printJSON(out, resp)
					})
				},
			},
		},
	}
}

func withRuntime(ctx context.Context, cfg config.Config, fn func(*bootstrap.Runtime) error) error {
	runtime, err := bootstrap.BuildRuntime(ctx, cfg, "cli", cfg.DatabaseDriver == db.DriverSQLite)
	if err != nil {
		return err
	}
	defer runtime.Close()
	return fn(runtime)
}

func printFamilies(out io.Writer, path string) error {
	registry, err := catalog.LoadRegistry(path)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FAMILY\tPREFIX\tINITIAL\tTERMINAL")
	for _, graph := range registry.Families() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			graph.Family(),
			graph.Prefix(),
			graph.InitialState(),
			strings.Join(graph.TerminalStates(), ","),
		)
	}
	return w.Flush()
}

func printJSON(out io.Writer, payload any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}
