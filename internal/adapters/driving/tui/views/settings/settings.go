// Package settings shows the effective configuration in the TUI.
package settings

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// View is a read-only settings overview. Changes go through
// 'docqa settings set'.
type View struct {
	styles          *styles.Styles
	settingsService driving.SettingsService

	settings *domain.AppSettings
	err      error
	width    int
	height   int
}

// NewView creates a new settings view.
func NewView(s *styles.Styles, settingsService driving.SettingsService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{styles: s, settingsService: settingsService, width: 80, height: 24}
}

// Init loads the settings.
func (v *View) Init() tea.Cmd {
	svc := v.settingsService
	return func() tea.Msg {
		if svc == nil {
			return messages.SettingsLoaded{Err: fmt.Errorf("settings service not available")}
		}
		settings, err := svc.Get()
		return messages.SettingsLoaded{Settings: settings, Err: err}
	}
}

// Update handles messages for the settings view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
	case messages.SettingsLoaded:
		v.settings, v.err = msg.Settings, msg.Err
	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewMenu} }
		}
	}
	return v, nil
}

// View renders the settings overview.
func (v *View) View() string {
	var b strings.Builder
	b.WriteString(v.styles.Title.Render("Settings"))
	b.WriteString("\n\n")

	switch {
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
	case v.settings == nil:
		b.WriteString(v.styles.Muted.Render("Loading settings..."))
	default:
		s := v.settings
		v.section(&b, "Embedding",
			"provider", s.Embedding.Provider.Description(),
			"model", s.Embedding.Model,
			"api key", mask(s.Embedding.APIKey))
		v.section(&b, "LLM",
			"provider", s.LLM.Provider.Description(),
			"model", s.LLM.Model,
			"api key", mask(s.LLM.APIKey),
			"temperature", fmt.Sprintf("%.2f", s.LLM.Temperature))
		v.section(&b, "Retrieval",
			"chunk size", fmt.Sprintf("%d (overlap %d)", s.Chunking.ChunkSize, s.Chunking.Overlap),
			"top k", fmt.Sprint(s.Retrieval.TopK),
			"confidence floor", fmt.Sprintf("%.2f", s.Retrieval.ConfidenceFloor),
			"max context", fmt.Sprintf("%d chars", s.Retrieval.MaxContextChars))
		v.section(&b, "Generation",
			"concurrency", fmt.Sprintf("%d (queue %d)", s.Generation.MaxConcurrent, s.Generation.QueueDepth),
			"timeout", s.Generation.Timeout.String(),
			"attempts", fmt.Sprint(s.Generation.MaxAttempts),
			"history", fmt.Sprintf("%d turns", s.Generation.HistoryTurns))
		v.section(&b, "Storage",
			"documents", string(s.Storage.Backend),
			"sessions", string(s.Storage.SessionBackend),
			"vectors", string(s.Storage.VectorBackend),
			"lookup", string(s.Lookup.Provider))
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("Change with 'docqa settings set <key> <value>'  [esc] back"))
	return b.String()
}

func (v *View) section(b *strings.Builder, title string, pairs ...string) {
	b.WriteString(v.styles.Subtitle.Render(title))
	b.WriteString("\n")
	for i := 0; i+1 < len(pairs); i += 2 {
		b.WriteString(fmt.Sprintf("  %-18s %s\n", pairs[i], pairs[i+1]))
	}
	b.WriteString("\n")
}

func mask(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	return "****"
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
}

// Settings returns the loaded settings.
func (v *View) Settings() *domain.AppSettings {
	return v.settings
}
