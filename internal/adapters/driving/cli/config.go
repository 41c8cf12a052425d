package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragchat/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/ragchat/internal/core/domain"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Shows the configuration after flags, environment, config file and defaults
have been merged. API keys are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	s := services.Settings()

	cmd.Printf("Config file: %s\n\n", services.ConfigPath())

	cmd.Println("Provider")
	if s.Provider == "" {
		cmd.Println("  Selected: auto (first configured key)")
	} else {
		cmd.Printf("  Selected: %s\n", s.Provider)
	}
	printCredentials(cmd, domain.AIProviderGoogle, s.Google)
	printCredentials(cmd, domain.AIProviderOpenAI, s.OpenAI)

	cmd.Println()
	cmd.Println("Vector store")
	cmd.Printf("  Backend:    %s\n", s.Store.Backend)
	cmd.Printf("  Collection: %s\n", s.Store.Collection)
	switch s.Store.Backend {
	case domain.StorePostgres:
		cmd.Printf("  Database:   %s\n", postgres.Redact(s.Store.DatabaseURL))
	case domain.StoreSQLite:
		cmd.Printf("  Data dir:   %s\n", s.Store.DataDir)
	}

	cmd.Println()
	cmd.Println("Ingestion")
	cmd.Printf("  Chunk size:    %d\n", s.Chunking.Size)
	cmd.Printf("  Chunk overlap: %d\n", s.Chunking.Overlap)
	cmd.Printf("  Batch size:    %d\n", s.Chunking.BatchSize)

	cmd.Println()
	cmd.Println("Answers")
	cmd.Printf("  Top K:       %d\n", s.Answer.TopK)
	cmd.Printf("  Temperature: %.2f\n", s.Answer.Temperature)
	if s.Answer.PromptPath != "" {
		cmd.Printf("  Prompts:     %s\n", s.Answer.PromptPath)
	}
	cmd.Printf("  Timeout:     %s\n", s.RequestTimeout)
	return nil
}

func printCredentials(cmd *cobra.Command, p domain.AIProvider, c domain.ProviderCredentials) {
	cmd.Printf("  %s\n", p.Description())
	if !c.IsConfigured() {
		cmd.Printf("    %s: not set\n", p.CredentialName())
		return
	}
	cmd.Printf("    %s: %s\n", p.CredentialName(), maskAPIKey(c.APIKey))
	cmd.Printf("    Embedding model: %s\n", c.EmbeddingModel)
	cmd.Printf("    Chat model:      %s\n", c.LLMModel)
	if c.BaseURL != "" {
		cmd.Printf("    Base URL:        %s\n", c.BaseURL)
	}
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
