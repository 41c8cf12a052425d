package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations return the built-in default.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names.
const (
	// PromptAnswer is the grounded answer template. It must contain the
	// PlaceholderContext and PlaceholderQuestion placeholders.
	PromptAnswer = "answer"
)

// Placeholders substituted into PromptAnswer.
const (
	PlaceholderContext  = "{context}"
	PlaceholderQuestion = "{question}"
)
