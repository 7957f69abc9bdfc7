package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/akr81/CounterExample2Sequence/internal/table"
	"github.com/akr81/CounterExample2Sequence/internal/trace"
)

// Usage is printed on argument errors
const Usage = "usage: ce2seq <table|diagram|watch|runs> [flags] [trace-file]"

// ErrUnknownSubcommand is returned when the first argument is not a known subcommand
var ErrUnknownSubcommand = errors.New("missing or unknown subcommand: " + Usage)

// ErrMissingFlagValue is returned when a flag requires a value but none is provided
var ErrMissingFlagValue = errors.New("flag requires a value")

// ErrUnknownFlag is returned for flags no subcommand understands
var ErrUnknownFlag = errors.New("unknown flag")

// ErrUnknownDialect is returned when --dialect names no supported dialect
var ErrUnknownDialect = trace.ErrUnknownDialect

// ErrTooManyArgs is returned when more than one trace file is given
var ErrTooManyArgs = errors.New("only one trace file may be given")

// ErrInvalidFlagValue is returned when a flag value cannot be parsed
var ErrInvalidFlagValue = errors.New("invalid flag value")

// Subcommand represents the CLI subcommand
type Subcommand string

const (
	SubcommandTable   Subcommand = "table"
	SubcommandDiagram Subcommand = "diagram"
	SubcommandWatch   Subcommand = "watch"
	SubcommandRuns    Subcommand = "runs"
)

// Command represents the parsed CLI input. Empty strings mean "not given" so
// config values are only overridden by flags that were actually passed.
type Command struct {
	Subcommand Subcommand
	TraceFile  string // Positional; empty selects the built-in sample

	Dialect    string // --dialect spin|smv|auto
	InitFile   string // --init <model>
	Output     string // -o/--output <path>
	Format     string // --format csv|json|yaml|text
	ConfigPath string // --config <path>
	LogLevel   string // --log-level <level>

	// Diagram flags
	Server  string // --server <url>
	NoFetch bool   // --no-fetch
	Source  bool   // --source

	// Table flags
	StorePath string // --store <path>
	Changes   bool   // --changes
	Digest    bool   // --digest
	Summary   string // --summary <path>
	CarryOver bool   // --carry-over

	// Runs flags
	JSONOutput bool   // --json
	Show       string // --show <id|digest>
	Delete     string // --delete <id>
	Verify     string // --verify <id|digest>
	PruneDays  int    // --prune <days>
	Prune      bool
}

// ParseArgs parses CLI arguments into a Command.
// It expects args to be os.Args[1:] (excluding the program name).
func ParseArgs(args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, ErrUnknownSubcommand
	}

	cmd := Command{Subcommand: Subcommand(args[0])}
	switch cmd.Subcommand {
	case SubcommandTable, SubcommandDiagram, SubcommandWatch, SubcommandRuns:
	default:
		return Command{}, ErrUnknownSubcommand
	}

	for i := 1; i < len(args); i++ {
		arg := args[i]

		if arg == "--" {
			for _, rest := range args[i+1:] {
				if err := cmd.setTrace(rest); err != nil {
					return Command{}, err
				}
			}
			break
		}

		if !strings.HasPrefix(arg, "-") || arg == "-" {
			if err := cmd.setTrace(arg); err != nil {
				return Command{}, err
			}
			continue
		}

		name, inline, hasInline := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		value := func() (string, error) {
			if hasInline {
				return inline, nil
			}
			if i+1 >= len(args) {
				return "", fmt.Errorf("%w: %s", ErrMissingFlagValue, arg)
			}
			i++
			return args[i], nil
		}

		var err error
		switch name {
		case "dialect":
			cmd.Dialect, err = value()
			if err == nil {
				_, err = trace.ParseDialect(cmd.Dialect)
			}
		case "init":
			cmd.InitFile, err = value()
		case "o", "output":
			cmd.Output, err = value()
		case "format":
			cmd.Format, err = value()
			if err == nil {
				_, err = table.ParseFormat(cmd.Format)
			}
		case "config":
			cmd.ConfigPath, err = value()
		case "log-level":
			cmd.LogLevel, err = value()
		case "server":
			cmd.Server, err = value()
		case "no-fetch":
			cmd.NoFetch = true
		case "source":
			cmd.Source = true
		case "store":
			cmd.StorePath, err = value()
		case "changes":
			cmd.Changes = true
		case "digest":
			cmd.Digest = true
		case "summary":
			cmd.Summary, err = value()
		case "carry-over":
			cmd.CarryOver = true
		case "json":
			cmd.JSONOutput = true
		case "show":
			cmd.Show, err = value()
		case "delete":
			cmd.Delete, err = value()
		case "verify":
			cmd.Verify, err = value()
		case "prune":
			var raw string
			raw, err = value()
			if err == nil {
				cmd.PruneDays, err = strconv.Atoi(raw)
				if err != nil || cmd.PruneDays < 0 {
					err = fmt.Errorf("%w: --prune %q (want a non-negative number of days)", ErrInvalidFlagValue, raw)
				}
				cmd.Prune = true
			}
		default:
			err = fmt.Errorf("%w: %s", ErrUnknownFlag, arg)
		}
		if err != nil {
			return Command{}, err
		}
	}

	if cmd.Subcommand == SubcommandRuns && cmd.TraceFile != "" {
		return Command{}, fmt.Errorf("%w: runs takes no trace file", ErrTooManyArgs)
	}
	return cmd, nil
}

func (c *Command) setTrace(path string) error {
	if c.TraceFile != "" {
		return fmt.Errorf("%w: %q and %q", ErrTooManyArgs, c.TraceFile, path)
	}
	c.TraceFile = path
	return nil
}
