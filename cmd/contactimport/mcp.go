package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/contactimport/internal/mcp"
)

// mcpCmd serves MCP over stdio.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve MCP tools over stdio",
	Long: `Serve the propose_mapping, reconcile_mapping and import_contacts tools
over the MCP stdio transport. Logs go to stderr.

Example client configuration:
  {"command": "contactimport", "args": ["mcp"]}`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer func() { _ = a.close(context.Background()) }()

	srv, err := mcp.NewServer(&mcp.Config{
		Name:    "contactimport",
		Version: version,
		Logger:  a.logger,
	}, a.engine, a.executor, a.store)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
