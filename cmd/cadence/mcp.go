package main

import (
	"fmt"

	cadencemcp "github.com/cadencehq/cadence/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server for coding agent integration",
	Long: `Start a Model Context Protocol (MCP) server over stdio.

This allows coding agents to submit reviews and read statistics directly.

Configuration in the agent's MCP settings:

  {
    "mcpServers": {
      "cadence": {
        "command": "cadence",
        "args": ["mcp"],
        "env": {
          "CADENCE_DB_PATH": "/path/to/cadence.db"
        }
      }
    }
  }

Environment variables:
  CADENCE_DB_PATH    Path to local SQLite database
  CADENCE_SOURCE_ID  Client identifier (default: hostname)
  CADENCE_DEBUG      Enable debug logging`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	// Client persists for the server lifetime
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	srv := cadencemcp.NewServer(client)
	if err := srv.Run(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
