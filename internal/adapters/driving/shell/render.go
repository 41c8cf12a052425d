package shell

import (
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

const displayWidth = 70

var (
	headerLine  = strings.Repeat("=", displayWidth)
	sectionLine = strings.Repeat("-", displayWidth)
)

// RenderAnswer writes an answer with its sources. In quiet mode only the
// answer text is written.
func RenderAnswer(w io.Writer, a *domain.Answer, quiet, verbose bool) {
	if quiet {
		fmt.Fprintln(w, a.Text)
		if verbose {
			fmt.Fprintf(w, "--- %s | %d sources ---\n", formatElapsed(a.Elapsed), len(a.Citations))
		}
		return
	}

	fmt.Fprintln(w, sectionLine)
	fmt.Fprintf(w, "QUESTION: %s\n", a.Question)
	fmt.Fprintln(w, sectionLine)
	fmt.Fprintf(w, "ANSWER: %s\n", a.Text)
	if a.Fallback && a.GenerationError != "" && verbose {
		fmt.Fprintf(w, "(generation failed: %s)\n", a.GenerationError)
	}
	if len(a.Citations) > 0 {
		fmt.Fprintln(w, sectionLine)
		fmt.Fprintf(w, "Sources (%d):\n", len(a.Citations))
		for _, c := range a.Citations {
			fmt.Fprintf(w, "  - %s\n", citationLabel(c))
		}
	}
	if verbose {
		fmt.Fprintf(w, "Elapsed: %s\n", formatElapsed(a.Elapsed))
	}
	fmt.Fprintln(w, sectionLine)
}

func citationLabel(c domain.Citation) string {
	name := c.Filename
	if name == "" {
		name = c.Source
	}
	if name == "" {
		name = domain.UnknownSource
	}
	return fmt.Sprintf("%s, p. %s", name, c.PageLabel())
}

func formatElapsed(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// RenderStatus writes collection statistics and the indexed sources.
func RenderStatus(w io.Writer, st domain.CollectionStatus, sources []string) {
	fmt.Fprintln(w, headerLine)
	fmt.Fprintf(w, "COLLECTION %s (%s)\n", st.Collection, st.Backend)
	fmt.Fprintln(w, headerLine)

	if st.Chunks == 0 {
		fmt.Fprintln(w, "The collection is empty.")
	} else {
		fmt.Fprintf(w, "Chunks:  %d\n", st.Chunks)
		fmt.Fprintf(w, "Sources: %d\n", st.Sources)
	}

	if len(sources) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Documents:")
		for i, src := range sources {
			fmt.Fprintf(w, "  %d. %s (%s)\n", i+1, path.Base(src), src)
		}
	}

	if len(st.Incomplete) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Incomplete ingestions (re-ingest these):")
		for _, src := range st.Incomplete {
			fmt.Fprintf(w, "  ! %s\n", src)
		}
	}
	fmt.Fprintln(w, headerLine)
}

// RenderSources writes one source per line.
func RenderSources(w io.Writer, sources []string) {
	if len(sources) == 0 {
		fmt.Fprintln(w, "No documents indexed.")
		return
	}
	for _, src := range sources {
		fmt.Fprintln(w, src)
	}
}

// RenderReport writes an ingestion summary.
func RenderReport(w io.Writer, r *domain.IngestionReport) {
	verb := "Added"
	if r.Replaced {
		verb = "Replaced"
	}
	fmt.Fprintf(w, "%s %s: %d pages, %d chunks (avg %d chars) in %s\n",
		verb, r.Source, r.Pages, r.Chunks, r.AverageChunkSize, formatElapsed(r.Elapsed))
}

// RenderHistory writes numbered history entries.
func RenderHistory(w io.Writer, h *History) {
	if h.Len() == 0 {
		fmt.Fprintln(w, "History is empty.")
		return
	}
	for i, entry := range h.Entries() {
		fmt.Fprintf(w, " %3d. %s\n", i+1, entry)
	}
	fmt.Fprintln(w, "Use !N to repeat a command (e.g. !3).")
}

// RenderWelcome writes the chat banner.
func RenderWelcome(w io.Writer, st domain.CollectionStatus) {
	fmt.Fprintln(w, headerLine)
	fmt.Fprintln(w, "ragchat: ask questions about your PDF documents")
	fmt.Fprintln(w, headerLine)
	if st.Chunks > 0 {
		fmt.Fprintf(w, "Collection %q holds %d chunks from %d %s.\n",
			st.Collection, st.Chunks, st.Sources, plural(st.Sources, "document", "documents"))
	} else {
		fmt.Fprintln(w, "The collection is empty. Use 'add <file.pdf>' to index a document.")
	}
	fmt.Fprintln(w, "Type 'help' for the list of commands.")
	fmt.Fprintln(w, headerLine)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

const helpText = `Ask a question by typing it directly. Answers use only the indexed PDFs.

Documents:
  add <file.pdf>      Index a PDF, replacing an earlier copy (aliases: ingest, a)
  remove <name>       Remove a document by path or file name (aliases: delete, r)
  clear               Remove every document (alias: c)
  stats               Show collection statistics (aliases: status, s)
  list                List indexed documents (aliases: sources, ls)

Session:
  history             Show previous commands (alias: hist)
  !N                  Repeat command N from the history
  reload              Re-read prompt templates from disk
  help                Show this help (aliases: h, ?)
  exit                Leave the chat (aliases: quit, q)`

// RenderHelp writes the command reference.
func RenderHelp(w io.Writer) {
	fmt.Fprintln(w, helpText)
}
