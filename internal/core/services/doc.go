// Package services holds the document, indexing, answering and session
// logic. It talks to the outside world only through the driven ports;
// cmd/docqa wires concrete adapters in.
package services
