package cli

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/docqa/internal/adapters/driving/tui"
	"github.com/custodia-labs/docqa/internal/core/domain"
)

var chatDocument string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with your documents in the terminal UI",
	Long: `Launch the interactive terminal interface.

Browse documents, open one to ask questions about it, or chat without a
document to answer from a web lookup.

Controls:
  ↑/k, ↓/j - Navigate
  Enter    - Select / Ask
  ctrl+l   - Toggle web lookup
  ctrl+n   - New conversation
  Esc      - Back
  ctrl+c   - Quit`,
	Aliases: []string{"tui"},
	Args:    cobra.NoArgs,
	RunE:    runChat,
}

// isTerminal reports whether stdin and stdout are a terminal.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func init() {
	chatCmd.Flags().StringVarP(&chatDocument, "doc", "d", "", "open the chat bound to this document")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
			err = fmt.Errorf("TUI panic: %v", r)
		}
	}()

	if !isTerminal() {
		return errors.New("chat needs an interactive terminal; use 'docqa ask' instead")
	}

	ports := &tui.Ports{
		Documents: documentService,
		Answers:   answerService,
		Sessions:  sessionService,
		Settings:  settingsService,
	}

	app, err := tui.NewApp(ports)
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}
	ctx := commandContext(cmd)
	app.WithContext(ctx)

	if chatDocument != "" {
		var doc *domain.Document
		doc, err = documentService.Get(ctx, chatDocument)
		if err != nil {
			return explain("failed to open document", err)
		}
		app.OpenChat(doc)
	}

	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
