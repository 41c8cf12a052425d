package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/ragchat/internal/adapters/driving/shell"
	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/logger"
)

var (
	askTopK        int
	askTemperature float64
	askOutput      string
	askQuiet       bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the indexed documents",
	Long: `Retrieves the chunks most similar to the question and asks the language
model to answer from them only. When the model cannot answer from the
documents it says so. When the model is unavailable, the retrieved passages
are returned instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	f := askCmd.Flags()
	f.IntVarP(&askTopK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	f.Float64VarP(&askTemperature, "temperature", "t", 0, "generation temperature (default from config)")
	f.StringVarP(&askOutput, "output", "o", "text", "output format: text, json or yaml")
	f.BoolVarP(&askQuiet, "quiet", "q", false, "print only the answer text")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	question := strings.Join(args, " ")

	format := strings.ToLower(askOutput)
	switch format {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("%w: unknown output format %q", domain.ErrInvalidInput, askOutput)
	}

	svc, err := services.Answer(ctx)
	if err != nil {
		return err
	}

	answer, err := svc.Answer(ctx, question, answerOptions(cmd, askTopK, askTemperature))
	if err != nil {
		return describe(err)
	}

	switch format {
	case "json":
		data, err := json.MarshalIndent(newAnswerOutput(answer), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(data))
	case "yaml":
		data, err := yaml.Marshal(newAnswerOutput(answer))
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Print(string(data))
	default:
		shell.RenderAnswer(cmd.OutOrStdout(), answer, askQuiet, logger.IsVerbose())
	}
	return nil
}

// answerOptions resolves --top-k and --temperature against the settings.
// A temperature of 0 is valid, so only an explicitly set flag overrides it.
func answerOptions(cmd *cobra.Command, topK int, temperature float64) domain.AnswerOptions {
	settings := services.Settings()
	opts := domain.AnswerOptions{
		TopK:        settings.Answer.TopK,
		Temperature: settings.Answer.Temperature,
	}
	if cmd.Flags().Changed("top-k") && topK > 0 {
		opts.TopK = topK
	}
	if cmd.Flags().Changed("temperature") {
		opts.Temperature = temperature
	}
	return opts
}

// answerOutput is the json/yaml form of an answer, with 1-based page labels.
type answerOutput struct {
	Question        string           `json:"question" yaml:"question"`
	Answer          string           `json:"answer" yaml:"answer"`
	Citations       []citationOutput `json:"citations" yaml:"citations"`
	Fallback        bool             `json:"fallback" yaml:"fallback"`
	GenerationError string           `json:"generation_error,omitempty" yaml:"generation_error,omitempty"`
	ElapsedSeconds  float64          `json:"elapsed_seconds" yaml:"elapsed_seconds"`
}

type citationOutput struct {
	Source   string `json:"source" yaml:"source"`
	Filename string `json:"filename,omitempty" yaml:"filename,omitempty"`
	Page     string `json:"page" yaml:"page"`
}

func newAnswerOutput(a *domain.Answer) answerOutput {
	out := answerOutput{
		Question:        a.Question,
		Answer:          a.Text,
		Citations:       make([]citationOutput, len(a.Citations)),
		Fallback:        a.Fallback,
		GenerationError: a.GenerationError,
		ElapsedSeconds:  a.Elapsed.Seconds(),
	}
	for i, c := range a.Citations {
		out.Citations[i] = citationOutput{Source: c.Source, Filename: c.Filename, Page: c.PageLabel()}
	}
	return out
}
