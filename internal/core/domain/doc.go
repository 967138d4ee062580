// Package domain holds the entities shared by every layer: documents and
// their lifecycle, chunks, sessions of question and answer turns, retrieval
// sources and provenance, settings, and the sentinel errors.
//
// It imports only the standard library.
package domain
