package shell

import (
	"strconv"
	"strings"
)

// Kind identifies a parsed chat line.
type Kind int

const (
	// KindQuestion is any line that is not a command.
	KindQuestion Kind = iota
	KindAdd
	KindRemove
	KindClear
	KindStats
	KindList
	KindHistory
	KindRepeat
	KindReload
	KindHelp
	KindExit
)

// String returns the canonical command name.
func (k Kind) String() string {
	switch k {
	case KindQuestion:
		return "question"
	case KindAdd:
		return "add"
	case KindRemove:
		return "remove"
	case KindClear:
		return "clear"
	case KindStats:
		return "stats"
	case KindList:
		return "list"
	case KindHistory:
		return "history"
	case KindRepeat:
		return "repeat"
	case KindReload:
		return "reload"
	case KindHelp:
		return "help"
	case KindExit:
		return "exit"
	default:
		return "unknown"
	}
}

// Command is a parsed chat line.
type Command struct {
	Kind Kind

	// Arg is the argument of add/remove, or the whole line for a question.
	Arg string

	// Index is the 1-based history entry of a !N repeat.
	Index int
}

// commands with an optional argument.
var argCommands = map[string]Kind{
	"add":    KindAdd,
	"ingest": KindAdd,
	"a":      KindAdd,
	"remove": KindRemove,
	"delete": KindRemove,
	"r":      KindRemove,
}

// commands that must be the whole line.
var bareCommands = map[string]Kind{
	"clear":   KindClear,
	"c":       KindClear,
	"stats":   KindStats,
	"status":  KindStats,
	"s":       KindStats,
	"list":    KindList,
	"sources": KindList,
	"ls":      KindList,
	"history": KindHistory,
	"hist":    KindHistory,
	"reload":  KindReload,
	"help":    KindHelp,
	"h":       KindHelp,
	"?":       KindHelp,
	"exit":    KindExit,
	"quit":    KindExit,
	"q":       KindExit,
}

// Parse classifies a chat line. Command words are case-insensitive;
// arguments keep their case.
func Parse(line string) Command {
	line = strings.TrimSpace(line)
	lower := strings.ToLower(line)

	if kind, ok := bareCommands[lower]; ok {
		return Command{Kind: kind}
	}

	if strings.HasPrefix(line, "!") {
		if n, err := strconv.Atoi(strings.TrimSpace(line[1:])); err == nil {
			return Command{Kind: KindRepeat, Index: n}
		}
	}

	word, rest, _ := strings.Cut(line, " ")
	if kind, ok := argCommands[strings.ToLower(word)]; ok {
		return Command{Kind: kind, Arg: strings.TrimSpace(rest)}
	}

	return Command{Kind: KindQuestion, Arg: line}
}
