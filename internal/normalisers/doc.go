// Package normalisers provides implementations of the Normaliser interface
// for the supported document formats. Each normaliser knows how to extract
// plain text from one family of file types.
//
// Normalisers are registered with the Registry at startup; the Registry is
// the text extraction collaborator used by the ingestion pipeline.
package normalisers
