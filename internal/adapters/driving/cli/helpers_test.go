package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// fakeDocuments implements driving.DocumentService over a map.
type fakeDocuments struct {
	docs      map[string]*domain.Document
	chunks    map[string][]domain.Chunk
	uploaded  []domain.UploadRequest
	processed []string
	deleted   []string
	err       error
}

func (f *fakeDocuments) create(req domain.UploadRequest, status domain.DocumentStatus) *domain.Document {
	doc := &domain.Document{
		ID:        "doc-" + req.Filename,
		Filename:  req.Filename,
		FileType:  domain.FileTypeFromFilename(req.Filename),
		Size:      int64(len(req.Content)),
		Status:    status,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	f.docs[doc.ID] = doc
	f.uploaded = append(f.uploaded, req)
	return doc
}

func (f *fakeDocuments) Upload(_ context.Context, req domain.UploadRequest) (*domain.Document, error) {
	if strings.HasSuffix(req.Filename, ".exe") {
		return nil, domain.ErrUnsupportedFileType
	}
	return f.create(req, domain.StatusUploaded), nil
}

func (f *fakeDocuments) Process(_ context.Context, id string) (*domain.Document, error) {
	f.processed = append(f.processed, id)
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	if doc.Status == domain.StatusReady {
		return nil, domain.ErrInvalidTransition
	}
	if strings.Contains(doc.Filename, "corrupt") || strings.Contains(doc.Filename, "broken") {
		doc.Status = domain.StatusFailed
		doc.FailureReason = "corrupt file"
		return doc, nil
	}
	doc.Status = domain.StatusReady
	doc.ChunkCount = 2
	return doc, nil
}

func (f *fakeDocuments) Ingest(ctx context.Context, req domain.UploadRequest) (*domain.Document, error) {
	doc, err := f.Upload(ctx, req)
	if err != nil {
		return nil, err
	}
	return f.Process(ctx, doc.ID)
}

func (f *fakeDocuments) Get(_ context.Context, id string) (*domain.Document, error) {
	if doc, ok := f.docs[id]; ok {
		return doc, nil
	}
	return nil, domain.ErrDocumentNotFound
}

func (f *fakeDocuments) List(context.Context, int, int) ([]domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Document, 0, len(f.docs))
	for _, id := range []string{"doc-1", "doc-2"} {
		if doc, ok := f.docs[id]; ok {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (f *fakeDocuments) Chunks(_ context.Context, id string) ([]domain.Chunk, error) {
	if _, ok := f.docs[id]; !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return f.chunks[id], nil
}

func (f *fakeDocuments) Delete(_ context.Context, id string) error {
	if _, ok := f.docs[id]; !ok {
		return domain.ErrDocumentNotFound
	}
	delete(f.docs, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeDocuments) SupportedFileTypes() []string { return []string{"md", "txt"} }

// fakeAnswers records the last request.
type fakeAnswers struct {
	last   domain.AnswerRequest
	answer *domain.Answer
	err    error
}

func (f *fakeAnswers) Answer(_ context.Context, req domain.AnswerRequest) (*domain.Answer, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

type fakeSummaries struct{}

func (fakeSummaries) Summarise(_ context.Context, id string) (string, error) {
	if id != "doc-1" {
		return "", domain.ErrDocumentNotReady
	}
	return "A short summary.", nil
}

type fakeSessions struct {
	sessions map[string]*domain.Session
}

func (f *fakeSessions) Get(_ context.Context, id string) (*domain.Session, error) {
	if s, ok := f.sessions[id]; ok {
		return s, nil
	}
	return nil, domain.ErrSessionNotFound
}

func (f *fakeSessions) History(ctx context.Context, id string) ([]domain.Turn, error) {
	s, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Turns, nil
}

func (f *fakeSessions) Delete(_ context.Context, id string) error {
	if _, ok := f.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(f.sessions, id)
	return nil
}

type fakeHealth struct {
	status driving.HealthStatus
}

func (f *fakeHealth) Check(context.Context) driving.HealthStatus { return f.status }

// fakeSettings keeps values in a map over the defaults.
type fakeSettings struct {
	settings    domain.AppSettings
	values      map[string]string
	validateErr error
}

func (f *fakeSettings) Get() (*domain.AppSettings, error) {
	s := f.settings
	return &s, nil
}

func (f *fakeSettings) Save(s *domain.AppSettings) error {
	f.settings = *s
	return nil
}

func (f *fakeSettings) Set(key, value string) error {
	if !strings.Contains(key, ".") {
		return domain.ErrInvalidInput
	}
	f.values[key] = value
	return nil
}

func (f *fakeSettings) Keys() []string { return []string{"llm.model", "retrieval.top_k"} }

func (f *fakeSettings) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }

func (f *fakeSettings) ValidateEmbeddingConfig() error { return f.validateErr }

func (f *fakeSettings) ValidateLLMConfig() error { return f.validateErr }

// testServices holds the fakes installed for one test.
type testServices struct {
	documents *fakeDocuments
	answers   *fakeAnswers
	sessions  *fakeSessions
	health    *fakeHealth
	settings  *fakeSettings
}

// setupTestServices installs fakes and returns a function restoring the
// previous services and flag values.
func setupTestServices() (*testServices, func()) {
	ready := time.Date(2026, 1, 2, 3, 5, 0, 0, time.UTC)
	svc := &testServices{
		documents: &fakeDocuments{
			docs: map[string]*domain.Document{
				"doc-1": {
					ID: "doc-1", Filename: "physics.txt", FileType: "txt", Size: 120,
					Status: domain.StatusReady, ChunkCount: 2,
					CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), ReadyAt: &ready,
				},
				"doc-2": {
					ID: "doc-2", Filename: "broken.pdf", FileType: "pdf",
					Status: domain.StatusFailed, FailureReason: "corrupt file",
				},
			},
			chunks: map[string][]domain.Chunk{
				"doc-1": {
					{Index: 0, StartChar: 0, EndChar: 35, Tokens: 7, Content: "Alpha particles are helium nuclei."},
					{Index: 1, StartChar: 30, EndChar: 300, Tokens: 60, Content: strings.Repeat("beta ", 54)},
				},
			},
		},
		answers: &fakeAnswers{answer: &domain.Answer{
			Text:       "They are helium nuclei [1].",
			SessionID:  "sess-1",
			DocumentID: "doc-1",
			Grounded:   true,
			Provenance: []domain.Provenance{{
				Kind: domain.ProvenanceChunk, DocumentID: "doc-1", ChunkIndex: 0,
				Score: 0.93, Title: "physics.txt", Snippet: "Alpha particles are helium nuclei.",
			}},
		}},
		sessions: &fakeSessions{sessions: map[string]*domain.Session{
			"sess-1": {
				ID: "sess-1", DocumentID: "doc-1",
				CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
				Turns: []domain.Turn{
					{Role: domain.RoleQuestion, Content: "What are alpha particles?"},
					{Role: domain.RoleAnswer, Content: "Helium nuclei [1].", Provenance: []domain.Provenance{{
						Kind: domain.ProvenanceChunk, DocumentID: "doc-1", ChunkIndex: 0, Score: 0.93, Title: "physics.txt",
					}}},
				},
			},
		}},
		health: &fakeHealth{status: driving.HealthStatus{
			EmbeddingConnected: true,
			LLMConnected:       true,
			EmbeddingModel:     "nomic-embed-text",
			LLMModel:           "llama3:8b",
			AvailableModels:    []string{"llama3:8b", "mistral", "nomic-embed-text"},
		}},
		settings: &fakeSettings{settings: domain.DefaultAppSettings(), values: map[string]string{}},
	}

	old := Services{
		Documents: documentService,
		Answers:   answerService,
		Summaries: summaryService,
		Sessions:  sessionService,
		Health:    healthService,
		Settings:  settingsService,
	}
	SetServices(Services{
		Documents: svc.documents,
		Answers:   svc.answers,
		Summaries: fakeSummaries{},
		Sessions:  svc.sessions,
		Health:    svc.health,
		Settings:  svc.settings,
	})

	return svc, func() {
		SetServices(old)
		resetFlags(rootCmd)
	}
}

// resetFlags restores every flag of cmd and its subcommands to its default.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}
