package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/logger"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// RefusalMessage is the reply the default answer prompt asks for when the
// context does not contain the answer.
const RefusalMessage = "I don't have the information needed to answer your question."

// PromptStore loads LLM prompts from user-editable files on disk.
// Prompts are loaded from a configurable directory with fallback to embedded defaults.
//
// The store uses lazy initialisation - files are only created when first accessed,
// not in the constructor.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	overrides map[string]string
	cache     map[string]string
	initOnce  sync.Once
	initErr   error
}

// defaultPrompts contains embedded default prompts.
// These are used when user files don't exist and as the initial content for new files.
var defaultPrompts = map[string]string{
	driven.PromptAnswer: `CONTEXT:
{context}

RULES:
- Answer only from the CONTEXT.
- If the information is not explicitly in the CONTEXT, reply:
  "` + RefusalMessage + `"
- Never invent facts or use outside knowledge.
- Never give opinions or interpretations beyond what is written.

EXAMPLES OF QUESTIONS OUTSIDE THE CONTEXT:
Question: "What is the capital of France?"
Answer: "` + RefusalMessage + `"

Question: "How many customers did we have in 2024?"
Answer: "` + RefusalMessage + `"

Question: "Do you think this is good or bad?"
Answer: "` + RefusalMessage + `"

USER QUESTION:
{question}

ANSWER THE "USER QUESTION"`,
}

// placeholders lists the substitutions each prompt is expected to contain.
var placeholders = map[string][]string{
	driven.PromptAnswer: {driven.PlaceholderContext, driven.PlaceholderQuestion},
}

// DefaultPrompt returns the embedded template for name.
func DefaultPrompt(name string) (string, bool) {
	p, ok := defaultPrompts[name]
	return p, ok
}

// NewPromptStore creates a new file-based prompt store.
// If promptDir is empty, defaults to ~/.ragchat/prompts/.
//
// The constructor does not perform any I/O - directory creation and
// file writes happen lazily on first Load() call.
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		promptDir = filepath.Join(home, ".ragchat", "prompts")
	}

	return &PromptStore{
		promptDir: promptDir,
		overrides: make(map[string]string),
		cache:     make(map[string]string),
	}, nil
}

// SetOverride reads the named prompt from path instead of the prompt directory.
// An unreadable override is a configuration error reported by Load.
func (s *PromptStore) SetOverride(name, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if path == "" {
		delete(s.overrides, name)
	} else {
		s.overrides[name] = path
	}
	delete(s.cache, name)
}

// Load returns the prompt template for the given name.
// On first call, initialises the prompt directory and creates default files.
// Returns cached value if available, otherwise loads from file.
// Falls back to embedded default if file doesn't exist.
func (s *PromptStore) Load(name string) (string, error) {
	s.mu.RLock()
	override := s.overrides[name]
	if prompt, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return prompt, nil
	}
	s.mu.RUnlock()

	var prompt string
	if override != "" {
		data, err := os.ReadFile(override)
		if err != nil {
			return "", domain.NewConfigError("PROMPT_TEMPLATE_PATH", override, err.Error())
		}
		prompt = strings.TrimSpace(string(data))
		if prompt == "" {
			return "", domain.NewConfigError("PROMPT_TEMPLATE_PATH", override, "file is empty")
		}
	} else {
		// Ensure directory and defaults exist (lazy init)
		s.initOnce.Do(s.initialise)
		if s.initErr != nil {
			if p, ok := defaultPrompts[name]; ok {
				return p, nil
			}
			return "", fmt.Errorf("prompt store init failed: %w", s.initErr)
		}

		var err error
		prompt, err = s.loadFromFile(name)
		if err != nil || prompt == "" {
			p, ok := defaultPrompts[name]
			if !ok {
				if err == nil {
					err = fmt.Errorf("file is empty")
				}
				return "", fmt.Errorf("load prompt %q: %w", name, err)
			}
			prompt = p
		}
	}

	// Use double-check pattern to avoid overwriting concurrent loads
	s.mu.Lock()
	cached, ok := s.cache[name]
	if ok {
		prompt = cached
	} else {
		s.cache[name] = prompt
	}
	s.mu.Unlock()

	if !ok {
		warnMissingPlaceholders(name, prompt)
	}
	return prompt, nil
}

// warnMissingPlaceholders logs once per load for each expected placeholder
// the template lacks.
func warnMissingPlaceholders(name, prompt string) {
	for _, ph := range placeholders[name] {
		if !strings.Contains(prompt, ph) {
			logger.Warn("Prompt %q has no %s placeholder", name, ph)
		}
	}
}

// Reload clears the prompt cache, forcing fresh loads from disk.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

// initialise creates the prompt directory and default files.
// Called once via sync.Once on first Load().
func (s *PromptStore) initialise() {
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	// Only write files that don't exist yet
	for name, content := range defaultPrompts {
		path := filepath.Join(s.promptDir, name+".txt")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content+"\n"), 0600); err != nil {
				s.initErr = fmt.Errorf("create default prompt %q: %w", name, err)
				return
			}
		}
	}

	if err := s.createReadme(); err != nil {
		s.initErr = err
	}
}

// loadFromFile reads a prompt from disk.
func (s *PromptStore) loadFromFile(name string) (string, error) {
	path := filepath.Join(s.promptDir, name+".txt")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// createReadme writes a README file explaining the prompts directory.
func (s *PromptStore) createReadme() error {
	path := filepath.Join(s.promptDir, "README.md")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil // Already exists or stat error (ignore)
	}

	content := `# ragchat Prompts

This directory contains the prompt used to answer questions about your documents.

## Files

- ` + "`answer.txt`" + ` - Grounded answer prompt

## Customisation

Edit the file to change how answers are phrased. Changes take effect on the
next command, or after ` + "`reload`" + ` in the chat shell.
Set PROMPT_TEMPLATE_PATH to use a file outside this directory.

## Placeholders

- ` + "`{context}`" + ` - Retrieved passages, separated by blank lines
- ` + "`{question}`" + ` - The user's question

Both placeholders must be present. Delete the file to restore the default.
`
	return os.WriteFile(path, []byte(content), 0600)
}
