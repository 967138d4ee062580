package driven

// PromptStore serves the instructions sent to the model, by name.
type PromptStore interface {
	// Load returns the instruction for name. Unknown names are an error.
	Load(name string) (string, error)

	// Reload forgets cached instructions so edits on disk are picked up.
	Reload()
}

// Prompt names. Instructions carry no placeholders: the gateway appends the
// numbered context, recent turns and the question after them.
const (
	PromptSystem           = "system"
	PromptGroundedAnswer   = "answer_grounded"
	PromptEmptyContext     = "answer_empty_context"
	PromptUngroundedAnswer = "answer_ungrounded"
	PromptSummarise        = "summarise"
)
