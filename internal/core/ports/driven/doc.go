// Package driven declares what the core needs from infrastructure.
//
// Required by the services:
//
//   - DocumentStore and VectorStore hold documents, chunks and vectors.
//   - SessionRepository holds conversation logs with atomic appends.
//   - EmbeddingService and LLMService reach the model providers.
//   - NormaliserRegistry and PostProcessorPipeline turn uploads into chunks.
//   - ConfigStore backs the settings service.
//
// Optional, with a fallback when nil: KnowledgeLookup (ungrounded questions
// get empty context), TokenCounter (chunk token counts stay zero) and
// PromptStore (built-in instructions).
//
// This package imports domain and nothing else from internal/.
package driven
