package cli

import (
	"errors"
	"sort"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the embedding and LLM providers",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models installed on the model runtime",
	Args:  cobra.NoArgs,
	RunE:  runModels,
}

func init() {
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(modelsCmd)
}

func runHealth(cmd *cobra.Command, _ []string) error {
	if healthService == nil {
		return errors.New("health service not configured")
	}

	status := healthService.Check(commandContext(cmd))

	cmd.Printf("Embedding: %s (%s)\n", connected(status.EmbeddingConnected), status.EmbeddingModel)
	cmd.Printf("LLM:       %s (%s)\n", connected(status.LLMConnected), status.LLMModel)

	if len(status.Errors) > 0 {
		cmd.Println()
		names := make([]string, 0, len(status.Errors))
		for name := range status.Errors {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			cmd.Printf("  %s: %s\n", name, status.Errors[name])
		}
	}

	if !status.Healthy() {
		return errors.New("one or more providers are unreachable")
	}
	return nil
}

func runModels(cmd *cobra.Command, _ []string) error {
	if healthService == nil {
		return errors.New("health service not configured")
	}

	status := healthService.Check(commandContext(cmd))
	if len(status.AvailableModels) == 0 {
		cmd.Println("The model runtime did not report any models.")
		return nil
	}

	for _, m := range status.AvailableModels {
		marker := " "
		if m == status.LLMModel || m == status.EmbeddingModel {
			marker = "*"
		}
		cmd.Printf("%s %s\n", marker, m)
	}
	return nil
}

func connected(ok bool) string {
	if ok {
		return "connected"
	}
	return "unreachable"
}
