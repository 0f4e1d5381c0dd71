package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solvdai/solvd/internal/logging"
	mcpserver "github.com/solvdai/solvd/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the quote tools over MCP stdio",
	Long: `Serve quote_estimate, state_tax, tool_search and tool_list to an MCP
client over stdin/stdout. Quotes are priced in process from the local
configuration; stdout carries the protocol, so nothing else is printed.

Example MCP client entry:
  {"command": "solvdctl", "args": ["mcp"]}`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	logger := logging.NewNop()
	gen, err := localGenerator(logger)
	if err != nil {
		return err
	}

	cfg := mcpserver.DefaultConfig()
	cfg.Version = version
	cfg.Logger = logger
	srv, err := mcpserver.NewServer(cfg, gen, nil)
	if err != nil {
		return fmt.Errorf("failed to create mcp server: %w", err)
	}
	return srv.Run(cmd.Context())
}
