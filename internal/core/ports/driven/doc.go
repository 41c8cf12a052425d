// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Interfaces
//
//   - VectorStore: Chunk persistence and similarity search scoped to one collection
//   - EmbeddingService: Converts text into vectors (Google or OpenAI)
//   - LLMService: Produces completions from a prompt (Google or OpenAI)
//   - DocumentLoader: Extracts ordered page text from a file
//   - PromptStore: Loads prompt templates with built-in defaults
//   - ConfigStore: Application configuration
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
