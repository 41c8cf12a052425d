// Package services implements the driving port interfaces.
//
// IngestionService loads, splits, enriches and stores documents.
// AnswerService retrieves chunks and asks the language model to answer from
// them, degrading to the retrieved passages when generation fails.
// CollectionService reports on and edits the indexed collection.
//
// Services depend only on domain types and driven ports; adapters are
// injected by internal/app.
package services
