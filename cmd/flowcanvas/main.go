package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/flowcanvas/flowcanvas/pkg/graph"
	"github.com/flowcanvas/flowcanvas/pkg/log"
	"github.com/flowcanvas/flowcanvas/pkg/persistence"
	_ "github.com/flowcanvas/flowcanvas/pkg/persistence/file"
	_ "github.com/flowcanvas/flowcanvas/pkg/persistence/postgresql"
	_ "github.com/flowcanvas/flowcanvas/pkg/persistence/rest"
)

func main() {
	databaseFlag := &cli.StringFlag{
		Name:     "database-url",
		Usage:    "Document store URL (file://, postgres:// or http(s)://)",
		Required: true,
		Sources:  cli.EnvVars("DATABASE_URL"),
	}
	logLevelFlag := &cli.StringFlag{
		Name:    "log-level",
		Usage:   "Log level (debug, info, warn, error)",
		Value:   "info",
		Sources: cli.EnvVars("LOG_LEVEL"),
	}

	cmd := &cli.Command{
		Name:                  "flowcanvas",
		Usage:                 "Edit and manage visual workflows",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			{
				Name:    "edit",
				Aliases: []string{"e"},
				Usage:   "Open a workflow for collaborative editing",
				Flags: []cli.Flag{
					&cli.Uint64Flag{
						Name:     "wid",
						Usage:    "Workflow document ID",
						Required: true,
						Sources:  cli.EnvVars("WORKFLOW_ID"),
					},
					&cli.StringFlag{
						Name:    "name",
						Usage:   "Document name when creating a new workflow",
						Value:   "Untitled workflow",
						Sources: cli.EnvVars("WORKFLOW_NAME"),
					},
					&cli.StringFlag{
						Name:    "site-id",
						Usage:   "Editing site ID (auto-generated if not provided)",
						Value:   "",
						Sources: cli.EnvVars("SITE_ID"),
					},
					&cli.StringFlag{
						Name:     "engine-url",
						Usage:    "WebSocket URL of the execution engine",
						Required: true,
						Sources:  cli.EnvVars("ENGINE_URL"),
					},
					&cli.StringFlag{
						Name:    "event-bus",
						Usage:   "Collaboration bus provider (kafka, memory; empty for solo editing)",
						Value:   "",
						Sources: cli.EnvVars("EVENT_BUS_TYPE"),
					},
					&cli.StringFlag{
						Name:    "results-cache",
						Usage:   "Redis URL for the result page cache (in-memory if not provided)",
						Value:   "",
						Sources: cli.EnvVars("RESULTS_CACHE_URL"),
					},
					&cli.StringFlag{
						Name:    "autosave-schedule",
						Usage:   "Cron expression (with seconds) for document autosave",
						Value:   "*/30 * * * * *",
						Sources: cli.EnvVars("AUTOSAVE_SCHEDULE"),
					},
					databaseFlag,
					logLevelFlag,
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					log.Setup(command.String("log-level"))

					siteID := command.String("site-id")
					if siteID == "" {
						siteID = "site-" + uuid.New().String()[:8]
					}

					logger := log.WithModule("flowcanvas").With("siteId", siteID)
					logger.InfoContext(ctx, "Opening workflow",
						"wid", command.Uint64("wid"))

					session := NewSession(SessionConfig{
						WorkflowID:   command.Uint64("wid"),
						DocumentName: command.String("name"),
						SiteID:       siteID,
						DatabaseURL:  command.String("database-url"),
						EngineURL:    command.String("engine-url"),
						EventBus:     command.String("event-bus"),
						ResultsCache: command.String("results-cache"),
						Autosave:     command.String("autosave-schedule"),
					}, logger)

					if err := session.Open(ctx); err != nil {
						return err
					}

					return session.Run(ctx)
				},
			},
			{
				Name:  "validate",
				Usage: "Check that a stored workflow document is loadable",
				Flags: []cli.Flag{
					&cli.Uint64Flag{
						Name:     "wid",
						Usage:    "Workflow document ID",
						Required: true,
					},
					databaseFlag,
					logLevelFlag,
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					log.Setup(command.String("log-level"))

					return validateDocument(ctx, command.String("database-url"), command.Uint64("wid"))
				},
			},
			{
				Name:    "documents",
				Aliases: []string{"d"},
				Usage:   "Manage stored workflow documents",
				Commands: []*cli.Command{
					{
						Name:    "list",
						Aliases: []string{"ls"},
						Usage:   "List stored workflow documents",
						Flags:   []cli.Flag{databaseFlag, logLevelFlag},
						Action: func(ctx context.Context, command *cli.Command) error {
							log.Setup(command.String("log-level"))

							return listDocuments(ctx, command.String("database-url"))
						},
					},
					{
						Name:  "delete",
						Usage: "Delete a stored workflow document",
						Flags: []cli.Flag{
							&cli.Uint64Flag{
								Name:     "wid",
								Usage:    "Workflow document ID",
								Required: true,
							},
							databaseFlag,
							logLevelFlag,
						},
						Action: func(ctx context.Context, command *cli.Command) error {
							log.Setup(command.String("log-level"))

							return deleteDocument(ctx, command.String("database-url"), command.Uint64("wid"))
						},
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.WithModule("flowcanvas").Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func validateDocument(ctx context.Context, databaseURL string, wid uint64) error {
	repo, err := persistence.NewRepository(ctx, log.WithModule("persistence"), databaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close(ctx) }()

	document, err := repo.DocumentByID(ctx, wid)
	if err != nil {
		return err
	}

	content, err := document.DecodeContent()
	if err != nil {
		return fmt.Errorf("document %d has unreadable content: %w", wid, err)
	}

	if _, err := graph.FromContent(content); err != nil {
		return fmt.Errorf("document %d has an inconsistent graph: %w", wid, err)
	}

	fmt.Printf("Document %d (%s) is valid: %d operators, %d links\n",
		wid, document.Name, len(content.Operators), len(content.Links))

	return nil
}

func listDocuments(ctx context.Context, databaseURL string) error {
	repo, err := persistence.NewRepository(ctx, log.WithModule("persistence"), databaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close(ctx) }()

	documents, err := repo.Documents(ctx)
	if err != nil {
		return err
	}

	for _, document := range documents {
		fmt.Printf("%d\t%s\t%s\n", document.WID, document.Name, document.Description)
	}

	return nil
}

func deleteDocument(ctx context.Context, databaseURL string, wid uint64) error {
	repo, err := persistence.NewRepository(ctx, log.WithModule("persistence"), databaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close(ctx) }()

	return repo.DeleteDocument(ctx, wid)
}
