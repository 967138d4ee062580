package cli

import (
	"errors"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/adapters/driving/mcp"
)

var (
	mcpPort int
	mcpHost string
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Model Context Protocol integration",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve docqa to AI assistants over MCP",
	Long: `Expose question answering to AI assistants through the Model Context
Protocol.

  tools      ask, list_documents, document_chunks
  resources  docqa://documents, docqa://documents/{id}, docqa://sessions/{id}

The server speaks JSON-RPC over stdio unless --port is given, in which case
it serves streamable HTTP on --host:--port.

Assistant configuration for stdio:

  {"mcpServers": {"docqa": {"command": "docqa", "args": ["mcp", "serve"]}}}`,
	Example: `  docqa mcp serve
  docqa mcp serve --port 8081`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntVarP(&mcpPort, "port", "p", 0, "serve HTTP on this port instead of stdio")
	mcpServeCmd.Flags().StringVar(&mcpHost, "host", "127.0.0.1", "interface to bind in HTTP mode")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	if answerService == nil {
		return errors.New("answer service not configured")
	}

	server, err := mcp.NewServer(&mcp.Ports{
		Answers:   answerService,
		Documents: documentService,
		Sessions:  sessionService,
	})
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	if mcpPort <= 0 {
		return server.Run(ctx)
	}

	addr := net.JoinHostPort(mcpHost, strconv.Itoa(mcpPort))
	cmd.Printf("MCP server listening on http://%s\n", addr)
	return server.RunHTTP(ctx, addr)
}
