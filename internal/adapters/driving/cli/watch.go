package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/adapters/driving/watch"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/logger"
)

var (
	watchExisting bool
	watchSettle   time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Ingest files dropped into a directory",
	Long: `Watches a directory and uploads and processes every supported file that
is created or rewritten in it. Stops on interrupt.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchExisting, "existing", false, "also ingest files already in the directory")
	watchCmd.Flags().DurationVar(&watchSettle, "settle", watch.DefaultSettle, "quiet period before a changed file is ingested")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}
	logger.SetTimestamps(true)

	w := watch.New(documentService, args[0],
		watch.WithExisting(watchExisting),
		watch.WithSettle(watchSettle),
		watch.WithResults(func(r watch.Result) {
			switch {
			case r.Err != nil:
				cmd.PrintErrf("%s: %v\n", r.Path, r.Err)
			case r.Document.Status == domain.StatusFailed:
				cmd.Printf("%s  %s  failed: %s\n", r.Document.ID, r.Document.Filename, r.Document.FailureReason)
			default:
				cmd.Printf("%s  %s  %s (%d chunks)\n", r.Document.ID, r.Document.Filename, r.Document.Status, r.Document.ChunkCount)
			}
		}),
	)

	cmd.Printf("Watching %s (ctrl+c to stop)\n", args[0])
	return w.Run(commandContext(cmd))
}
