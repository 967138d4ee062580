package domain

import "time"

// TurnRole identifies who produced a turn.
type TurnRole string

// Turn roles.
const (
	RoleQuestion TurnRole = "question"
	RoleAnswer   TurnRole = "answer"
)

// Session is an ordered conversation log.
type Session struct {
	// ID is the unique session identifier.
	ID string

	// DocumentID is the document the session is bound to, empty when ungrounded.
	DocumentID string

	// ContextStart is the index of the first turn in the current retrieval
	// context. Turns before it stay in the log but are not fed to generation.
	ContextStart int

	// Turns is the append-only log.
	Turns []Turn

	// CreatedAt is when the session was created.
	CreatedAt time.Time
}

// ContextTurns returns the turns belonging to the current retrieval context.
func (s *Session) ContextTurns() []Turn {
	switch {
	case s.ContextStart <= 0:
		return s.Turns
	case s.ContextStart >= len(s.Turns):
		return nil
	default:
		return s.Turns[s.ContextStart:]
	}
}

// Turn is one entry in a session log. Turns are never mutated once appended.
type Turn struct {
	// Role is question or answer.
	Role TurnRole

	// Content is the text.
	Content string

	// Provenance lists what the answer was generated from, in prompt order.
	Provenance []Provenance

	// CreatedAt is when the turn was produced.
	CreatedAt time.Time
}

// ProvenanceKind distinguishes chunk provenance from external provenance.
type ProvenanceKind string

// Provenance kinds.
const (
	ProvenanceChunk    ProvenanceKind = "chunk"
	ProvenanceExternal ProvenanceKind = "external"
)

// Provenance records one context item fed to generation.
type Provenance struct {
	Kind ProvenanceKind

	// Chunk provenance.
	DocumentID string
	ChunkID    string
	ChunkIndex int
	Score      float64

	// External provenance.
	Title string
	URL   string

	// Snippet is a short preview of the item text.
	Snippet string
}
