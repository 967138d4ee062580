package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/adapters/driving/watch"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	for _, name := range []string{"document", "ask", "session", "chat", "watch", "serve", "mcp", "health", "models", "settings", "version"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestChat_RequiresTerminal(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	old := isTerminal
	isTerminal = func() bool { return false }
	defer func() { isTerminal = old }()

	_, err := execute(t, "chat")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "docqa ask")
}

func TestWatch_Flags(t *testing.T) {
	flag := watchCmd.Flags().Lookup("settle")
	require.NotNil(t, flag)
	assert.Equal(t, watch.DefaultSettle.String(), flag.DefValue)
	assert.NotNil(t, watchCmd.Flags().Lookup("existing"))
}

func TestWatch_MissingDirectory(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "watch", filepath.Join(t.TempDir(), "absent"))

	require.Error(t, err)
}

func TestServe_RequiresServices(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	answerService = nil

	_, err := execute(t, "serve")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestMCPServe_RequiresAnswerService(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	answerService = nil

	_, err := execute(t, "mcp", "serve")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "answer service not configured")
}

func TestMCPServe_PortFlag(t *testing.T) {
	flag := mcpServeCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "p", flag.Shorthand)
}

func TestMCPServe_HostDefaultsToLoopback(t *testing.T) {
	flag := mcpServeCmd.Flags().Lookup("host")
	require.NotNil(t, flag)
	assert.Equal(t, "127.0.0.1", flag.DefValue)
}
