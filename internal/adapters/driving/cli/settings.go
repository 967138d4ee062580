package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure AI providers, chunking, retrieval, generation and storage.

Settings live in ~/.docqa/config.toml. Any key can be overridden with a
DOCQA_<SECTION>_<NAME> environment variable, for example DOCQA_RETRIEVAL_TOP_K.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a single setting",
	Long: `Set a single setting by its dotted key, for example:

  docqa settings set retrieval.top_k 8
  docqa settings set llm.provider anthropic

Run 'docqa settings keys' for the full list.`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List setting keys",
	Args:  cobra.NoArgs,
	RunE:  runSettingsKeys,
}

var settingsWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive setup wizard",
	Long:  `Run an interactive wizard to configure the embedding and LLM providers.`,
	RunE:  runSettingsWizard,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure embedding provider",
	Long:  `Configure the embedding provider used to index chunks and questions.`,
	RunE:  runSettingsEmbedding,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure LLM provider",
	Long:  `Configure the LLM provider used to generate answers and summaries.`,
	RunE:  runSettingsLLM,
}

// stdin is the wizard's input.
var stdin = bufio.NewReader(os.Stdin)

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsKeysCmd)
	settingsCmd.AddCommand(settingsWizardCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	rootCmd.AddCommand(settingsCmd)
}

// section is one block of "settings show" output.
type section struct {
	title string
	rows  [][2]string
}

func (s *section) add(label, format string, args ...any) {
	s.rows = append(s.rows, [2]string{label, fmt.Sprintf(format, args...)})
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	st, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	embedding := providerSection("Embedding", st.Embedding.Provider, st.Embedding.Model,
		st.Embedding.BaseURL, st.Embedding.APIKey, st.Embedding.IsConfigured())
	llm := providerSection("LLM", st.LLM.Provider, st.LLM.Model,
		st.LLM.BaseURL, st.LLM.APIKey, st.LLM.IsConfigured())
	llm.add("Sampling", "temperature %.2f, top-p %.2f, max tokens %d",
		st.LLM.Temperature, st.LLM.TopP, st.LLM.MaxTokens)

	chunking := section{title: "Chunking"}
	chunking.add("Chunk size", "%d", st.Chunking.ChunkSize)
	chunking.add("Overlap", "%d", st.Chunking.Overlap)

	retrieval := section{title: "Retrieval"}
	retrieval.add("Top K", "%d", st.Retrieval.TopK)
	retrieval.add("Confidence floor", "%.2f", st.Retrieval.ConfidenceFloor)
	retrieval.add("Max context", "%d chars", st.Retrieval.MaxContextChars)
	retrieval.add("Timeout", "%s", st.Retrieval.Timeout)

	generation := section{title: "Generation"}
	generation.add("Concurrency", "%d (queue %d)", st.Generation.MaxConcurrent, st.Generation.QueueDepth)
	generation.add("Attempts", "%d, %s each", st.Generation.MaxAttempts, st.Generation.Timeout)
	generation.add("History", "%d turns", st.Generation.HistoryTurns)

	lookup := section{title: "Lookup"}
	lookup.add("Provider", "%s", st.Lookup.Provider)

	storage := section{title: "Storage"}
	storage.add("Documents", "%s", st.Storage.Backend)
	storage.add("Sessions", "%s", st.Storage.SessionBackend)
	storage.add("Vectors", "%s", st.Storage.VectorBackend)
	storage.add("Data dir", "%s", st.Storage.DataDir)

	server := section{title: "Server"}
	server.add("Address", "%s", st.Server.Addr)
	server.add("Body limit", "%d MB", st.Server.BodyLimitMB)

	underline(cmd, "Current Settings")
	for _, sec := range []section{embedding, llm, chunking, retrieval, generation, lookup, storage, server} {
		cmd.Println()
		cmd.Printf("[%s]\n", sec.title)
		for _, row := range sec.rows {
			cmd.Printf("  %s: %s\n", row[0], row[1])
		}
	}
	return nil
}

func providerSection(title string, provider domain.AIProvider, model, baseURL, apiKey string, configured bool) section {
	sec := section{title: title}
	sec.add("Provider", "%s", provider.Description())
	sec.add("Model", "%s", model)
	if provider.IsLocal() || baseURL != "" {
		sec.add("Base URL", "%s", baseURL)
	}
	if provider.RequiresAPIKey() {
		key := "(not set)"
		if apiKey != "" {
			key = maskAPIKey(apiKey)
		}
		sec.add("API Key", "%s", key)
	}
	status := "configured"
	if !configured {
		status = "not configured"
	}
	sec.add("Status", "%s", status)
	return sec
}

// underline prints a heading ruled with '=' to its width.
func underline(cmd *cobra.Command, heading string) {
	cmd.Println(heading)
	cmd.Println(strings.Repeat("=", len(heading)))
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	key, value := args[0], args[1]
	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	shown := value
	if strings.HasSuffix(key, "api_key") {
		shown = maskAPIKey(value)
	}
	cmd.Printf("Set %s = %s\n", key, shown)
	return nil
}

func runSettingsKeys(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	for _, key := range settingsService.Keys() {
		cmd.Println(key)
	}
	return nil
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	steps := []struct {
		heading, blurb string
		target         providerTarget
	}{
		{"Step 1: Embedding Provider", "Embeddings index document chunks and questions.", embeddingTarget},
		{"Step 2: LLM Provider", "The LLM writes answers and summaries.", llmTarget},
	}

	underline(cmd, "docqa Settings Wizard")
	for _, step := range steps {
		cmd.Println()
		underline(cmd, step.heading)
		cmd.Println(step.blurb)
		cmd.Println()
		if err := configureProvider(cmd, stdin, step.target); err != nil {
			return err
		}
	}

	underline(cmd, "Configuration Complete!")
	cmd.Println("Upload a document with 'docqa document upload <file>'.")
	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	return configureProvider(cmd, stdin, embeddingTarget)
}

func runSettingsLLM(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	return configureProvider(cmd, stdin, llmTarget)
}

// providerTarget describes one configurable AI section.
type providerTarget struct {
	section   string
	label     string
	providers []domain.AIProvider
	models    map[domain.AIProvider]string
	validate  func() error
}

var (
	embeddingTarget = providerTarget{
		section:   "embedding",
		label:     "Embedding",
		providers: domain.AllEmbeddingProviders(),
		models:    domain.DefaultEmbeddingModels(),
		validate:  func() error { return settingsService.ValidateEmbeddingConfig() },
	}
	llmTarget = providerTarget{
		section:   "llm",
		label:     "LLM",
		providers: domain.AllLLMProviders(),
		models:    domain.DefaultLLMModels(),
		validate:  func() error { return settingsService.ValidateLLMConfig() },
	}
)

func configureProvider(cmd *cobra.Command, reader *bufio.Reader, target providerTarget) error {
	cmd.Printf("Select %s Provider\n", target.label)
	for i, p := range target.providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(target.providers), 1)
	provider := target.providers[idx-1]

	defaultModel := target.models[provider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if provider.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	values := [][2]string{
		{target.section + ".provider", string(provider)},
		{target.section + ".model", model},
	}
	if apiKey != "" {
		values = append(values, [2]string{target.section + ".api_key", apiKey})
	}
	for _, kv := range values {
		if err := settingsService.Set(kv[0], kv[1]); err != nil {
			return fmt.Errorf("failed to configure %s provider: %w", target.section, err)
		}
	}

	cmd.Print("Validating configuration... ")
	if err := target.validate(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("%s configuration validation failed: %w", target.section, err)
	}
	cmd.Println("OK")

	cmd.Printf("%s provider configured: %s (%s)\n\n", target.label, provider.Description(), model)
	return nil
}

func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

// parseChoice reads a 1-based menu choice, falling back to def for
// anything outside 1..n.
func parseChoice(input string, n, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || v < 1 || v > n {
		return def
	}
	return v
}

// readPassword reads without echo from a terminal, else a plain line.
func readPassword(reader *bufio.Reader) string {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(reader)
}

// maskAPIKey keeps four characters at each end of keys long enough to
// spare them.
func maskAPIKey(key string) string {
	const keep = 4
	if len(key) <= 2*keep {
		return "****"
	}
	return key[:keep] + "..." + key[len(key)-keep:]
}
