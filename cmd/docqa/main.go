// Command docqa answers questions about uploaded documents.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/custodia-labs/docqa/internal/adapters/driven/ai"
	"github.com/custodia-labs/docqa/internal/adapters/driven/config/file"
	"github.com/custodia-labs/docqa/internal/adapters/driven/lookup/duckduckgo"
	"github.com/custodia-labs/docqa/internal/adapters/driven/lookup/none"
	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/bolt"
	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/dynamodb"
	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/pgvector"
	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/docqa/internal/adapters/driven/tokens"
	"github.com/custodia-labs/docqa/internal/adapters/driving/cli"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/services"
	"github.com/custodia-labs/docqa/internal/logger"
	"github.com/custodia-labs/docqa/internal/normalisers"
	"github.com/custodia-labs/docqa/internal/normalisers/html"
	"github.com/custodia-labs/docqa/internal/postprocessors"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetVersion(version)

	c, err := wire(ctx)
	if err != nil {
		logger.Error("%v", err)
		return 1
	}
	defer c.close()

	if err := cli.Execute(ctx); err != nil {
		return 1
	}
	return 0
}

// container owns everything main opens.
type container struct {
	closers []func() error
}

func (c *container) onClose(fn func() error) {
	c.closers = append(c.closers, fn)
}

func (c *container) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			logger.Warn("close: %v", err)
		}
	}
}

// wire builds the services from settings and installs them into the CLI.
// When the AI providers are not usable only the settings service is
// installed, so 'docqa settings' can still fix the configuration.
func wire(ctx context.Context) (*container, error) {
	c := &container{}

	if err := services.LoadEnv(); err != nil {
		return nil, err
	}

	configStore, err := file.NewConfigStore(os.Getenv("DOCQA_CONFIG_DIR"))
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())

	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	aiServices, err := ai.NewServices(*settings)
	if err != nil {
		logger.Warn("AI providers unavailable: %v. Run 'docqa settings wizard'.", err)
		cli.SetServices(cli.Services{Settings: settingsService})
		return c, nil
	}
	c.onClose(func() error {
		aiServices.Close()
		return nil
	})

	docStore, sessionRepo, err := openStores(ctx, c, settings.Storage)
	if err != nil {
		c.close()
		return nil, err
	}
	vectors, err := openVectorStore(ctx, settings.Storage)
	if err != nil {
		c.close()
		return nil, err
	}
	c.onClose(vectors.Close)

	counter := tokens.New("")
	registry := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(registry, counter)
	pipelineCfg, err := settingsService.GetPipelineConfig()
	if err != nil {
		c.close()
		return nil, err
	}
	pipeline, err := registry.BuildPipeline(pipelineCfg)
	if err != nil {
		c.close()
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	promptDir := ""
	if settings.Storage.DataDir != "" {
		promptDir = filepath.Join(settings.Storage.DataDir, "prompts")
	}
	prompts, err := file.NewPromptStore(promptDir)
	if err != nil {
		c.close()
		return nil, err
	}

	index := services.NewEmbeddingIndex(aiServices.Embedding, vectors)
	documentService := services.NewDocumentService(docStore, normalisers.NewDefaultRegistry(), pipeline, index)
	gateway := services.NewGenerationGateway(aiServices.LLM, prompts, counter, settings.LLM, settings.Generation)
	sessionService := services.NewSessionService(sessionRepo)
	answerService := services.NewAnswerService(docStore, index, newLookup(settings.Lookup), gateway, sessionService, settings.Retrieval)

	prepareDocuments(ctx, documentService, settings.Storage.VectorBackend)

	cli.SetServices(cli.Services{
		Documents: documentService,
		Answers:   answerService,
		Summaries: services.NewSummaryService(docStore, gateway, settings.Retrieval.MaxContextChars),
		Sessions:  sessionService,
		Health:    services.NewHealthService(aiServices.Embedding, aiServices.LLM),
		Settings:  settingsService,
	})
	return c, nil
}

// prepareDocuments fails documents whose pipeline died without finishing,
// whatever the backend, and refills a memory vector index. Durable vector
// stores keep their contents across runs, and documents made ready later by
// other processes are loaded on first question.
func prepareDocuments(ctx context.Context, documents *services.DocumentService, vectors domain.StorageBackend) (recovered, restored int) {
	recovered, err := documents.RecoverStale(ctx)
	if err != nil {
		logger.Warn("Recovering interrupted documents: %v", err)
	} else if recovered > 0 {
		logger.Info("Marked %d interrupted documents as failed", recovered)
	}

	if vectors == domain.StorageMemory {
		restored, err = documents.RestoreIndex(ctx)
		if err != nil {
			logger.Warn("Restoring index: %v", err)
		}
		logger.Debug("Restored %d documents into the index", restored)
	}
	return recovered, restored
}

// openStores opens the document store and session repository.
func openStores(ctx context.Context, c *container, cfg domain.StorageSettings) (driven.DocumentStore, driven.SessionRepository, error) {
	var store *sqlite.Store
	openSQLite := func() (*sqlite.Store, error) {
		if store != nil {
			return store, nil
		}
		s, err := sqlite.NewStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		c.onClose(s.Close)
		store = s
		return s, nil
	}

	var docStore driven.DocumentStore
	switch cfg.Backend {
	case domain.StorageMemory:
		docStore = memory.NewDocumentStore()
	case domain.StorageSQLite:
		s, err := openSQLite()
		if err != nil {
			return nil, nil, err
		}
		docStore = s.DocumentStore()
	default:
		return nil, nil, fmt.Errorf("%w: document backend %q", domain.ErrInvalidInput, cfg.Backend)
	}

	var sessions driven.SessionRepository
	switch cfg.SessionBackend {
	case domain.StorageMemory:
		sessions = memory.NewSessionRepository()
	case domain.StorageSQLite:
		s, err := openSQLite()
		if err != nil {
			return nil, nil, err
		}
		sessions = s.SessionRepository()
	case domain.StorageBolt:
		path := ""
		if cfg.DataDir != "" {
			path = filepath.Join(cfg.DataDir, "sessions.bolt")
		}
		repo, err := bolt.Open(path)
		if err != nil {
			return nil, nil, err
		}
		c.onClose(repo.Close)
		sessions = repo
	case domain.StorageDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("load aws config: %w", err)
		}
		repo, err := dynamodb.New(awsdynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable)
		if err != nil {
			return nil, nil, err
		}
		sessions = repo
	default:
		return nil, nil, fmt.Errorf("%w: session backend %q", domain.ErrInvalidInput, cfg.SessionBackend)
	}

	return docStore, sessions, nil
}

func openVectorStore(ctx context.Context, cfg domain.StorageSettings) (driven.VectorStore, error) {
	switch cfg.VectorBackend {
	case domain.StorageMemory:
		return memory.NewVectorStore(), nil
	case domain.StoragePGVector:
		if cfg.PostgresURL == "" {
			return nil, errors.New("storage.postgres_url is required for the pgvector backend")
		}
		store, err := pgvector.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("open pgvector store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: vector backend %q", domain.ErrInvalidInput, cfg.VectorBackend)
	}
}

func newLookup(cfg domain.LookupSettings) driven.KnowledgeLookup {
	if cfg.Provider == domain.LookupNone {
		return none.Lookup{}
	}
	return duckduckgo.New(duckduckgo.Config{
		BaseURL:       cfg.BaseURL,
		RatePerSecond: cfg.RatePerSecond,
		FetchPages:    cfg.FetchPages,
	}, html.New())
}
