package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

var (
	askDocument string
	askSession  string
	askWeb      bool
	askJSON     bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question",
	Long: `Answers a question grounded in a document's chunks, or from a web lookup
when no document is given or --web is set.

Pass --session to continue a conversation; the session ID is printed after
every answer.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askDocument, "doc", "d", "", "document ID to ground the answer in")
	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "session ID to continue")
	askCmd.Flags().BoolVar(&askWeb, "web", false, "answer from a web lookup even when a document is set")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if answerService == nil {
		return errors.New("answer service not configured")
	}

	answer, err := answerService.Answer(commandContext(cmd), domain.AnswerRequest{
		Question:   strings.Join(args, " "),
		DocumentID: askDocument,
		SessionID:  askSession,
		UseLookup:  askWeb,
	})
	if err != nil {
		return explain("failed to answer", err)
	}

	if askJSON {
		return outputAnswerJSON(cmd, answer)
	}
	outputAnswer(cmd, answer)
	return nil
}

type answerJSON struct {
	Answer       string       `json:"answer"`
	SessionID    string       `json:"session_id"`
	DocumentID   string       `json:"document_id,omitempty"`
	Grounded     bool         `json:"grounded"`
	EmptyContext bool         `json:"empty_context"`
	Sources      []sourceJSON `json:"sources"`
}

type sourceJSON struct {
	Ref        int     `json:"ref"`
	Kind       string  `json:"kind"`
	DocumentID string  `json:"document_id,omitempty"`
	ChunkIndex int     `json:"chunk_index,omitempty"`
	Title      string  `json:"title,omitempty"`
	URL        string  `json:"url,omitempty"`
	Score      float64 `json:"score"`
	Snippet    string  `json:"snippet"`
}

func outputAnswerJSON(cmd *cobra.Command, answer *domain.Answer) error {
	out := answerJSON{
		Answer:       answer.Text,
		SessionID:    answer.SessionID,
		DocumentID:   answer.DocumentID,
		Grounded:     answer.Grounded,
		EmptyContext: answer.EmptyContext,
		Sources:      make([]sourceJSON, len(answer.Provenance)),
	}
	for i, p := range answer.Provenance {
		out.Sources[i] = sourceJSON{
			Ref:        i + 1,
			Kind:       string(p.Kind),
			DocumentID: p.DocumentID,
			ChunkIndex: p.ChunkIndex,
			Title:      p.Title,
			URL:        p.URL,
			Score:      p.Score,
			Snippet:    p.Snippet,
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputAnswer(cmd *cobra.Command, answer *domain.Answer) {
	cmd.Println(answer.Text)
	cmd.Println()

	if answer.EmptyContext {
		if answer.Grounded {
			cmd.Println("No passage of the document matched the question.")
		} else {
			cmd.Println("The web lookup returned nothing relevant.")
		}
	}
	if len(answer.Provenance) > 0 {
		cmd.Println("Sources:")
		for i, p := range answer.Provenance {
			cmd.Printf("  [%d] %s\n", i+1, sourceLabel(p))
			if p.Snippet != "" {
				cmd.Printf("      %s\n", p.Snippet)
			}
		}
		cmd.Println()
	}
	cmd.Printf("Session: %s\n", answer.SessionID)
}

func sourceLabel(p domain.Provenance) string {
	if p.Kind == domain.ProvenanceExternal {
		if p.Title == "" {
			return p.URL
		}
		return fmt.Sprintf("%s <%s>", p.Title, p.URL)
	}
	return fmt.Sprintf("%s chunk %d (%.2f)", p.Title, p.ChunkIndex, p.Score)
}
