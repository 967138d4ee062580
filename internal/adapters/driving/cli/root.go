// Package cli provides the docqa command line.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
)

// version is set by SetVersion from the build.
var version = "dev"

var verbose bool

// Services wired by main.
var (
	documentService driving.DocumentService
	answerService   driving.AnswerService
	summaryService  driving.SummaryService
	sessionService  driving.SessionService
	healthService   driving.HealthService
	settingsService driving.SettingsService
)

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Ask questions about your documents",
	Long: `docqa uploads documents, splits them into chunks, indexes them with
embeddings and answers questions grounded in their content.

Without a document, questions are answered from a web lookup.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if verbose {
			logger.SetVerbose(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug output")
}

// Services groups the driving ports the commands use.
type Services struct {
	Documents driving.DocumentService
	Answers   driving.AnswerService
	Summaries driving.SummaryService
	Sessions  driving.SessionService
	Health    driving.HealthService
	Settings  driving.SettingsService
}

// SetServices installs the services for all commands.
func SetServices(s Services) {
	documentService = s.Documents
	answerService = s.Answers
	summaryService = s.Summaries
	sessionService = s.Sessions
	healthService = s.Health
	settingsService = s.Settings
}

// SetVersion sets the version reported by 'docqa version'.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// currentSettings returns the effective settings, or defaults when no
// settings service is configured.
func currentSettings() domain.AppSettings {
	if settingsService != nil {
		if s, err := settingsService.Get(); err == nil {
			return *s
		}
	}
	return domain.DefaultAppSettings()
}

// commandContext returns the command's context, falling back to Background
// for commands run without ExecuteContext.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
