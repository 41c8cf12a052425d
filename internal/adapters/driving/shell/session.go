// Package shell implements the interactive chat session shared by the
// line-mode loop and the terminal UI.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driving"
	"github.com/custodia-labs/ragchat/internal/logger"
)

// Prompts shown before reading a line.
const (
	PromptReady   = "> "
	PromptConfirm = "yes/no> "
)

// Services resolves application services on first use.
type Services interface {
	Collection(ctx context.Context) (driving.CollectionService, error)
	Ingestion(ctx context.Context) (driving.IngestionService, error)
	Answer(ctx context.Context) (driving.AnswerService, error)
	ReloadPrompts()
}

// Options configures a session.
type Options struct {
	TopK        int
	Temperature float64

	// Ingest carries chunking overrides for add.
	Ingest domain.IngestOptions

	// Quiet prints bare answers and replaces documents without asking.
	Quiet bool

	// AssumeYes skips every confirmation.
	AssumeYes bool
}

type confirmation struct {
	run func(ctx context.Context, w io.Writer)
}

// Session interprets chat lines. It is not safe for concurrent use.
type Session struct {
	services Services
	opts     Options
	history  *History
	pending  *confirmation
}

// NewSession creates a session.
func NewSession(services Services, opts Options) *Session {
	return &Session{
		services: services,
		opts:     opts,
		history:  NewHistory(),
	}
}

// History returns the session history.
func (s *Session) History() *History {
	return s.history
}

// Prompt returns the prompt for the next line.
func (s *Session) Prompt() string {
	if s.pending != nil {
		return PromptConfirm
	}
	return PromptReady
}

// Handle runs one line and writes its output to w.
// It returns true when the session should end.
func (s *Session) Handle(ctx context.Context, w io.Writer, line string) bool {
	line = strings.TrimSpace(line)

	if s.pending != nil {
		p := s.pending
		s.pending = nil
		if strings.EqualFold(line, "yes") {
			p.run(ctx, w)
		} else {
			fmt.Fprintln(w, "Cancelled.")
		}
		return false
	}

	if line == "" {
		return false
	}

	cmd := Parse(line)
	if cmd.Kind == KindRepeat {
		entry, ok := s.history.Get(cmd.Index)
		if !ok {
			fmt.Fprintf(w, "No history entry %d.\n", cmd.Index)
			return false
		}
		fmt.Fprintf(w, "%s%s\n", PromptReady, entry)
		line = entry
		cmd = Parse(entry)
	}
	s.history.Add(line)

	return s.dispatch(ctx, w, cmd)
}

// Run reads lines from r until exit or end of input.
func (s *Session) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	for {
		fmt.Fprint(w, s.Prompt())
		if !scanner.Scan() {
			fmt.Fprintln(w)
			return scanner.Err()
		}
		if s.Handle(ctx, w, scanner.Text()) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (s *Session) dispatch(ctx context.Context, w io.Writer, cmd Command) bool {
	switch cmd.Kind {
	case KindExit:
		if !s.opts.Quiet {
			fmt.Fprintln(w, "Goodbye.")
		}
		return true
	case KindHelp:
		RenderHelp(w)
	case KindHistory:
		RenderHistory(w, s.history)
	case KindReload:
		s.services.ReloadPrompts()
		fmt.Fprintln(w, "Prompt templates reloaded.")
	case KindAdd:
		s.add(ctx, w, cmd.Arg)
	case KindRemove:
		s.remove(ctx, w, cmd.Arg)
	case KindClear:
		s.clear(ctx, w)
	case KindStats:
		s.stats(ctx, w)
	case KindList:
		s.list(ctx, w)
	case KindRepeat:
		fmt.Fprintln(w, "A history entry cannot repeat another one.")
	case KindQuestion:
		s.ask(ctx, w, cmd.Arg)
	}
	return false
}

func (s *Session) confirm(ctx context.Context, w io.Writer, question string, run func(context.Context, io.Writer)) {
	if s.opts.AssumeYes {
		run(ctx, w)
		return
	}
	fmt.Fprintf(w, "%s Type 'yes' to confirm.\n", question)
	s.pending = &confirmation{run: run}
}

func (s *Session) add(ctx context.Context, w io.Writer, p string) {
	if p == "" {
		fmt.Fprintln(w, "Usage: add <file.pdf>")
		return
	}
	if _, err := os.Stat(p); err != nil {
		s.fail(w, domain.NewNotFoundError("file", p))
		return
	}

	svc, err := s.services.Ingestion(ctx)
	if err != nil {
		s.fail(w, err)
		return
	}

	source, exists, err := svc.Exists(ctx, p)
	if err != nil {
		s.fail(w, err)
		return
	}

	ingest := func(ctx context.Context, w io.Writer) {
		if !s.opts.Quiet {
			fmt.Fprintf(w, "Ingesting %s...\n", p)
		}
		report, err := svc.Ingest(ctx, p, s.opts.Ingest)
		if err != nil {
			s.fail(w, err)
			return
		}
		RenderReport(w, report)
	}

	if exists && !s.opts.Quiet {
		s.confirm(ctx, w, fmt.Sprintf("%s is already indexed. Replace its chunks?", source), ingest)
		return
	}
	ingest(ctx, w)
}

func (s *Session) remove(ctx context.Context, w io.Writer, name string) {
	if name == "" {
		fmt.Fprintln(w, "Usage: remove <name>")
		return
	}

	svc, err := s.services.Collection(ctx)
	if err != nil {
		s.fail(w, err)
		return
	}

	var matches []string
	for _, src := range svc.ListSources(ctx) {
		if src == name {
			matches = []string{src}
			break
		}
		if path.Base(src) == name {
			matches = append(matches, src)
		}
	}

	switch len(matches) {
	case 0:
		fmt.Fprintf(w, "%s is not indexed. Use 'list' to see the indexed documents.\n", name)
		return
	case 1:
	default:
		fmt.Fprintf(w, "%s matches several documents, give the full source:\n", name)
		for _, m := range matches {
			fmt.Fprintf(w, "  %s\n", m)
		}
		return
	}

	target := matches[0]
	s.confirm(ctx, w, fmt.Sprintf("Remove every chunk of %s?", target), func(ctx context.Context, w io.Writer) {
		removed, err := svc.RemoveSource(ctx, target)
		if err != nil {
			s.fail(w, err)
			return
		}
		fmt.Fprintf(w, "Removed %s.\n", removed)
	})
}

func (s *Session) clear(ctx context.Context, w io.Writer) {
	svc, err := s.services.Collection(ctx)
	if err != nil {
		s.fail(w, err)
		return
	}

	if svc.Status(ctx).Chunks == 0 {
		fmt.Fprintln(w, "The collection is already empty.")
		return
	}

	s.confirm(ctx, w, "Remove every document from the collection?", func(ctx context.Context, w io.Writer) {
		if err := svc.ClearAll(ctx); err != nil {
			s.fail(w, err)
			return
		}
		fmt.Fprintln(w, "Collection cleared.")
	})
}

func (s *Session) stats(ctx context.Context, w io.Writer) {
	svc, err := s.services.Collection(ctx)
	if err != nil {
		s.fail(w, err)
		return
	}
	RenderStatus(w, svc.Status(ctx), svc.ListSources(ctx))
}

func (s *Session) list(ctx context.Context, w io.Writer) {
	svc, err := s.services.Collection(ctx)
	if err != nil {
		s.fail(w, err)
		return
	}
	RenderSources(w, svc.ListSources(ctx))
}

func (s *Session) ask(ctx context.Context, w io.Writer, question string) {
	svc, err := s.services.Answer(ctx)
	if err != nil {
		s.fail(w, err)
		return
	}

	if !s.opts.Quiet {
		fmt.Fprintln(w, "Searching the documents...")
	}
	answer, err := svc.Answer(ctx, question, domain.AnswerOptions{
		TopK:        s.opts.TopK,
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	RenderAnswer(w, answer, s.opts.Quiet, logger.IsVerbose())
}

// fail writes a one-line message. Details go to the log.
func (s *Session) fail(w io.Writer, err error) {
	logger.Debug("chat command failed: %+v", err)
	fmt.Fprintf(w, "Error: %s\n", Describe(err))
}

// Describe turns an error into a one-line message for the user.
func Describe(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyCollection):
		return "the collection is empty; add a PDF first with 'add <file.pdf>'"
	case errors.Is(err, context.Canceled):
		return "interrupted"
	default:
		return strings.ReplaceAll(err.Error(), "\n", " ")
	}
}
