package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragchat/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can ask
questions about the indexed documents.

By default, the server communicates over stdio using JSON-RPC.
Use --port to start an HTTP server instead.

Examples:
  # Stdio mode (default)
  ragchat mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  ragchat mcp serve --port 8080

Client configuration:
  {
    "mcpServers": {
      "ragchat": {
        "command": "/path/to/ragchat",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	ctx := commandContext(cmd)
	answer, err := services.Answer(ctx)
	if err != nil {
		return describe(err)
	}
	collection, err := services.Collection(ctx)
	if err != nil {
		return describe(err)
	}

	server, err := mcp.NewServer(&mcp.Ports{
		Answer:      answer,
		Collection:  collection,
		Temperature: services.Settings().Answer.Temperature,
	})
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(ctx, addr)
	}

	return server.Run(ctx)
}
