package cli

import (
	"errors"

	"github.com/spf13/cobra"

	httpapi "github.com/custodia-labs/docqa/internal/adapters/driving/http"
	"github.com/custodia-labs/docqa/internal/logger"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the REST API:

  POST   /api/documents              upload (multipart "file")
  GET    /api/documents              list (?skip=&limit=)
  GET    /api/documents/:id          document
  GET    /api/documents/:id/chunks   chunk previews
  POST   /api/documents/:id/process  process again
  POST   /api/documents/:id/summary  summarise
  DELETE /api/documents/:id          delete
  POST   /api/chat/question          ask
  GET    /api/chat/history/:id       session turns
  DELETE /api/chat/history/:id       delete session
  GET    /api/health                 model connectivity`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if documentService == nil || answerService == nil {
		return errors.New("document and answer services not configured")
	}
	logger.SetTimestamps(true)

	settings := currentSettings()
	addr := serveAddr
	if addr == "" {
		addr = settings.Server.Addr
	}

	server := httpapi.New(httpapi.Ports{
		Documents: documentService,
		Answers:   answerService,
		Summaries: summaryService,
		Sessions:  sessionService,
		Health:    healthService,
	}, httpapi.Config{
		BodyLimit: settings.Server.BodyLimitMB * 1024 * 1024,
	})

	cmd.Printf("HTTP API listening on %s\n", addr)
	return server.Listen(commandContext(cmd), addr)
}
