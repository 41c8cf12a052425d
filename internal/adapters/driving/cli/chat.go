package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/ragchat/internal/adapters/driving/shell"
	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui"
	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/logger"
)

var (
	chatFile        string
	chatQuiet       bool
	chatPlain       bool
	chatTopK        int
	chatTemperature float64
	chatChunkSize   int
	chatOverlap     int
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive question session",
	Long: `Starts an interactive session. Type a question to get an answer from the
indexed documents, or a command such as 'add <file.pdf>', 'stats' or 'help'.

On a terminal the session runs as a full-screen interface. Use --plain, or
pipe input, for a simple line-by-line session.

Controls (terminal interface):
  enter     - Send the line
  ↑/↓       - Recall previous lines
  pgup/pgdn - Scroll the transcript
  ctrl+c    - Quit`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	f := chatCmd.Flags()
	f.StringVarP(&chatFile, "file", "f", "", "PDF to ingest before the session starts")
	f.BoolVarP(&chatQuiet, "quiet", "q", false, "print bare answers and skip the banner")
	f.BoolVar(&chatPlain, "plain", false, "use the line-by-line session even on a terminal")
	f.IntVarP(&chatTopK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	f.Float64VarP(&chatTemperature, "temperature", "t", 0, "generation temperature (default from config)")
	f.IntVar(&chatChunkSize, "chunk-size", 0, "chunk size for documents added in the session")
	f.IntVar(&chatOverlap, "chunk-overlap", 0, "chunk overlap for documents added in the session")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
	defer stop()

	answerOpts := answerOptions(cmd, chatTopK, chatTemperature)
	opts := shell.Options{
		TopK:        answerOpts.TopK,
		Temperature: answerOpts.Temperature,
		Quiet:       chatQuiet,
	}
	if cmd.Flags().Changed("chunk-size") {
		opts.Ingest.ChunkSize = &chatChunkSize
	}
	if cmd.Flags().Changed("chunk-overlap") {
		opts.Ingest.ChunkOverlap = &chatOverlap
	}

	session := shell.NewSession(services, opts)

	var intro bytes.Buffer
	if chatFile != "" {
		session.Handle(ctx, &intro, "add "+chatFile)
	}
	status := collectionStatus(cmd)
	if !chatQuiet {
		shell.RenderWelcome(&intro, status)
	}

	if !chatPlain && isTerminal(cmd.InOrStdin()) && isTerminal(cmd.OutOrStdout()) {
		return runChatTUI(cmd, session, intro.String(), status)
	}

	cmd.Print(intro.String())
	return session.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
}

func collectionStatus(cmd *cobra.Command) domain.CollectionStatus {
	svc, err := services.Collection(commandContext(cmd))
	if err != nil {
		logger.Warn("Collection unavailable: %v", err)
		return domain.CollectionStatus{}
	}
	return svc.Status(commandContext(cmd))
}

func runChatTUI(cmd *cobra.Command, session *shell.Session, welcome string, st domain.CollectionStatus) error {
	// Add panic recovery to get stack traces
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	// Log lines would corrupt the screen, so they go to a file while the TUI runs.
	restore := redirectLogs(filepath.Join(filepath.Dir(services.ConfigPath()), "chat.log"))
	defer restore()

	app, err := tui.NewApp(&tui.Ports{
		Session: session,
		Welcome: welcome,
		Summary: fmt.Sprintf("%s: %d chunks from %d documents", st.Collection, st.Chunks, st.Sources),
	})
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}
	app.WithContext(commandContext(cmd))

	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func redirectLogs(path string) func() {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		logger.SetOutput(io.Discard)
		return func() { logger.SetOutput(os.Stderr) }
	}
	logger.SetOutput(f)
	return func() {
		logger.SetOutput(os.Stderr)
		_ = f.Close()
	}
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
