// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage (~/.ragchat/config.toml)
//   - PromptStore: user-editable prompt templates (~/.ragchat/prompts)
//
// LoadSettings combines the config file with the environment and
// command-line overrides into validated domain.Settings.
package file
