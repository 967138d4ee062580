package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage conversations",
}

var sessionHistoryCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "Print the turns of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionHistory,
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete [session-id]",
	Short: "Delete a session and its turns",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionDelete,
}

var sessionExportCmd = &cobra.Command{
	Use:   "export [session-id]",
	Short: "Export a session as YAML or JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionExport,
}

var exportFormat string

func init() {
	sessionExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "yaml", "output format (yaml or json)")

	sessionCmd.AddCommand(sessionHistoryCmd)
	sessionCmd.AddCommand(sessionDeleteCmd)
	sessionCmd.AddCommand(sessionExportCmd)
	rootCmd.AddCommand(sessionCmd)
}

func runSessionHistory(cmd *cobra.Command, args []string) error {
	if sessionService == nil {
		return errors.New("session service not configured")
	}

	turns, err := sessionService.History(commandContext(cmd), args[0])
	if err != nil {
		return explain("failed to get history", err)
	}

	if len(turns) == 0 {
		cmd.Println("No turns yet.")
		return nil
	}

	for _, t := range turns {
		label := "Q"
		if t.Role == domain.RoleAnswer {
			label = "A"
		}
		cmd.Printf("%s: %s\n", label, t.Content)
		for i, p := range t.Provenance {
			cmd.Printf("   [%d] %s\n", i+1, sourceLabel(p))
		}
		if t.Role == domain.RoleAnswer {
			cmd.Println()
		}
	}
	return nil
}

func runSessionDelete(cmd *cobra.Command, args []string) error {
	if sessionService == nil {
		return errors.New("session service not configured")
	}

	if err := sessionService.Delete(commandContext(cmd), args[0]); err != nil {
		return explain("failed to delete session", err)
	}

	cmd.Printf("Deleted session: %s\n", args[0])
	return nil
}

// exportedSession is the stable export shape.
type exportedSession struct {
	ID         string         `json:"id" yaml:"id"`
	DocumentID string         `json:"document_id,omitempty" yaml:"document_id,omitempty"`
	CreatedAt  time.Time      `json:"created_at" yaml:"created_at"`
	Turns      []exportedTurn `json:"turns" yaml:"turns"`
}

type exportedTurn struct {
	Role      string           `json:"role" yaml:"role"`
	Content   string           `json:"content" yaml:"content"`
	CreatedAt time.Time        `json:"created_at" yaml:"created_at"`
	Sources   []exportedSource `json:"sources,omitempty" yaml:"sources,omitempty"`
}

type exportedSource struct {
	Kind       string  `json:"kind" yaml:"kind"`
	DocumentID string  `json:"document_id,omitempty" yaml:"document_id,omitempty"`
	ChunkIndex int     `json:"chunk_index" yaml:"chunk_index"`
	Title      string  `json:"title,omitempty" yaml:"title,omitempty"`
	URL        string  `json:"url,omitempty" yaml:"url,omitempty"`
	Score      float64 `json:"score" yaml:"score"`
}

func runSessionExport(cmd *cobra.Command, args []string) error {
	if sessionService == nil {
		return errors.New("session service not configured")
	}

	session, err := sessionService.Get(commandContext(cmd), args[0])
	if err != nil {
		return explain("failed to get session", err)
	}

	out := exportSession(session)

	var data []byte
	switch exportFormat {
	case "yaml", "yml":
		data, err = yaml.Marshal(out)
	case "json":
		data, err = json.MarshalIndent(out, "", "  ")
	default:
		return fmt.Errorf("unknown format %q (use yaml or json)", exportFormat)
	}
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	cmd.Print(string(data))
	if exportFormat == "json" {
		cmd.Println()
	}
	return nil
}

func exportSession(s *domain.Session) exportedSession {
	out := exportedSession{
		ID:         s.ID,
		DocumentID: s.DocumentID,
		CreatedAt:  s.CreatedAt,
		Turns:      make([]exportedTurn, len(s.Turns)),
	}
	for i, t := range s.Turns {
		turn := exportedTurn{Role: string(t.Role), Content: t.Content, CreatedAt: t.CreatedAt}
		for _, p := range t.Provenance {
			turn.Sources = append(turn.Sources, exportedSource{
				Kind:       string(p.Kind),
				DocumentID: p.DocumentID,
				ChunkIndex: p.ChunkIndex,
				Title:      p.Title,
				URL:        p.URL,
				Score:      p.Score,
			})
		}
		out.Turns[i] = turn
	}
	return out
}
