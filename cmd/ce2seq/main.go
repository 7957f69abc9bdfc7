package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akr81/CounterExample2Sequence/internal/cli"
	"github.com/akr81/CounterExample2Sequence/internal/config"
	"github.com/akr81/CounterExample2Sequence/internal/digest"
	"github.com/akr81/CounterExample2Sequence/internal/drift"
	"github.com/akr81/CounterExample2Sequence/internal/expr"
	"github.com/akr81/CounterExample2Sequence/internal/initializer"
	"github.com/akr81/CounterExample2Sequence/internal/logging"
	"github.com/akr81/CounterExample2Sequence/internal/plantuml"
	"github.com/akr81/CounterExample2Sequence/internal/reconstruct"
	"github.com/akr81/CounterExample2Sequence/internal/sample"
	"github.com/akr81/CounterExample2Sequence/internal/store"
	"github.com/akr81/CounterExample2Sequence/internal/table"
	"github.com/akr81/CounterExample2Sequence/internal/trace"
	"github.com/akr81/CounterExample2Sequence/internal/watch"
)

// Exit codes
const (
	exitOK                = 0
	exitUsage             = 1
	exitInvalidExpression = 2
	exitMissingInput      = 3
	exitRunNotFound       = 4
)

// errMissingTrace is wrapped when the trace file cannot be read
var errMissingTrace = errors.New("cannot read trace file")

// errUsage marks argument combinations that parse but cannot run
var errUsage = errors.New("usage error")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	exitCode := run(ctx, os.Args[1:], os.Environ(), os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(exitCode)
}

// app carries the resolved settings of one invocation
type app struct {
	cmd    cli.Command
	cfg    *config.Config
	logger *slog.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// run orchestrates one invocation and returns the process exit code.
// It is separated from main() to enable testing.
func run(ctx context.Context, args, environ []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd, err := cli.ParseArgs(args)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return exitUsage
	}

	cfg, err := config.Load(config.ResolvePath(cmd.ConfigPath, environ), environ)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return exitCode(err)
	}
	applyFlags(cfg, cmd)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return exitUsage
	}

	a := &app{
		cmd:    cmd,
		cfg:    cfg,
		logger: logging.New(cfg.Logging(), stderr),
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}

	switch cmd.Subcommand {
	case cli.SubcommandTable:
		err = a.runTable(ctx)
	case cli.SubcommandDiagram:
		err = a.runDiagram(ctx)
	case cli.SubcommandWatch:
		err = a.runWatch(ctx)
	case cli.SubcommandRuns:
		err = a.runRuns(ctx)
	}
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return exitCode(err)
	}
	return exitOK
}

// exitCode maps an error onto the documented exit codes
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, expr.ErrInvalidExpression):
		return exitInvalidExpression
	case errors.Is(err, errMissingTrace),
		errors.Is(err, initializer.ErrMissingInput),
		errors.Is(err, config.ErrMissingFile):
		return exitMissingInput
	case errors.Is(err, store.ErrRunNotFound):
		return exitRunNotFound
	default:
		return exitUsage
	}
}

// applyFlags lays command-line values over the loaded config
func applyFlags(cfg *config.Config, cmd cli.Command) {
	if cmd.Dialect != "" {
		cfg.Dialect = cmd.Dialect
	}
	if cmd.InitFile != "" {
		cfg.Init = cmd.InitFile
	}
	if cmd.Output != "" {
		if cmd.Subcommand == cli.SubcommandDiagram {
			cfg.Diagram.Output = cmd.Output
		} else {
			cfg.Table.Output = cmd.Output
		}
	}
	if cmd.Format != "" {
		cfg.Table.Format = cmd.Format
	}
	if cmd.Server != "" {
		cfg.Diagram.Server = cmd.Server
	}
	if cmd.NoFetch {
		cfg.Diagram.Fetch = false
	}
	if cmd.StorePath != "" {
		cfg.Store.Path = cmd.StorePath
	}
	if cmd.CarryOver {
		cfg.Sparse.CarryOver = true
	}
	if cmd.LogLevel != "" {
		cfg.Log.Level = cmd.LogLevel
	}
}

// conversion is one reconstructed trace with its table
type conversion struct {
	source string
	result *reconstruct.Result
	table  table.Table
}

// readTrace returns the trace text and a label for where it came from
func (a *app) readTrace() (string, string, error) {
	switch a.cmd.TraceFile {
	case "":
		dialect, _ := trace.ParseDialect(a.cfg.Dialect)
		text := sample.Spin()
		if dialect == trace.DialectSMV {
			text = sample.SMV()
		}
		fmt.Fprintln(a.stderr, "No trace file given; converting the built-in sample.")
		return text, "sample", nil
	case "-":
		data, err := io.ReadAll(a.stdin)
		if err != nil {
			return "", "", fmt.Errorf("%w stdin: %v", errMissingTrace, err)
		}
		return string(data), "stdin", nil
	default:
		data, err := os.ReadFile(a.cmd.TraceFile)
		if err != nil {
			return "", "", fmt.Errorf("%w %s: %v", errMissingTrace, a.cmd.TraceFile, err)
		}
		return string(data), a.cmd.TraceFile, nil
	}
}

func (a *app) convert() (*conversion, error) {
	text, source, err := a.readTrace()
	if err != nil {
		return nil, err
	}

	dialect, err := trace.ParseDialect(a.cfg.Dialect)
	if err != nil {
		return nil, err
	}

	opts := reconstruct.Options{
		Dialect:   dialect,
		CarryOver: a.cfg.Sparse.CarryOver,
		Logger:    a.logger,
	}
	if a.cfg.Init != "" {
		initial, err := initializer.Load(a.cfg.Init)
		if err != nil {
			return nil, err
		}
		opts.Initial = initial
		a.logger.Debug("loaded initial values", "path", a.cfg.Init, "variables", initial.Len())
	}

	result, err := reconstruct.Reconstruct(text, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return &conversion{source: source, result: result, table: table.FromResult(result)}, nil
}

func (a *app) runTable(ctx context.Context) error {
	conv, err := a.convert()
	if err != nil {
		return err
	}

	out := a.cfg.Table.Output
	format := a.cfg.TableFormat()
	if out == "-" {
		if err := table.Write(a.stdout, conv.table, format); err != nil {
			return fmt.Errorf("write table: %w", err)
		}
	} else {
		if err := table.WriteFile(out, conv.table, format); err != nil {
			return fmt.Errorf("write table: %w", err)
		}
		a.logger.Info("wrote table", "path", out, "format", string(format), "rows", len(conv.table.Rows))
	}

	if a.cmd.Changes {
		report := drift.Detect(conv.result.Snapshots)
		if a.cmd.JSONOutput {
			data, err := drift.FormatJSON(report)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, data)
		} else {
			fmt.Fprint(a.stdout, drift.FormatCLI(report))
		}
	}

	if a.cmd.Digest || a.cmd.Summary != "" {
		summary := digest.Summarize(conv.table, string(conv.result.Dialect), conv.result.Variables)
		if a.cmd.Summary != "" {
			if err := summary.WriteToFile(a.cmd.Summary); err != nil {
				return fmt.Errorf("write summary: %w", err)
			}
			a.logger.Info("wrote summary", "path", a.cmd.Summary, "digest", summary.Digest)
		}
		switch {
		case !a.cmd.Digest:
		case a.cmd.JSONOutput:
			data, err := summary.ToJSON()
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, string(data))
		default:
			fmt.Fprintln(a.stdout, summary.Digest)
		}
	}

	if a.cfg.Store.Path != "" {
		st, err := store.Open(a.cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()

		prior, err := st.FindByDigest(ctx, digest.Compute(conv.table))
		if err != nil {
			return err
		}
		saved, err := st.Save(ctx, conv.source, string(conv.result.Dialect), conv.table)
		if err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		a.logger.Info("saved run", "id", saved.ID, "digest", saved.Digest)
		if len(prior) > 0 {
			a.logger.Info("table matches an earlier run", "id", prior[0].ID, "createdAt", prior[0].CreatedAt)
		}
	}
	return nil
}

func (a *app) runDiagram(ctx context.Context) error {
	conv, err := a.convert()
	if err != nil {
		return err
	}
	if conv.result.Sequence == nil {
		return fmt.Errorf("%w: diagrams need a full trace, got %s", errUsage, conv.result.Dialect)
	}

	src := plantuml.Source(conv.result.Sequence, a.cfg.Diagram.Scale)
	if a.cmd.Source {
		fmt.Fprint(a.stdout, src)
	}

	encoded, err := plantuml.Encode(src)
	if err != nil {
		return fmt.Errorf("encode diagram: %w", err)
	}

	client := plantuml.NewClient(a.cfg.Diagram.Server, a.cfg.Diagram.Timeout)
	if !a.cfg.Diagram.Fetch {
		fmt.Fprintln(a.stdout, client.URL(encoded))
		return nil
	}

	body, err := client.Fetch(ctx, encoded)
	switch {
	case errors.Is(err, plantuml.ErrUnexpectedStatus):
		// the server still answers with an image describing the problem
		a.logger.Warn("diagram server reported a problem", "error", err)
	case err != nil:
		return err
	}

	if err := os.WriteFile(a.cfg.Diagram.Output, body, 0644); err != nil {
		return fmt.Errorf("write diagram: %w", err)
	}
	a.logger.Info("wrote diagram", "path", a.cfg.Diagram.Output, "messages", len(conv.result.Sequence.Messages))
	return nil
}

func (a *app) runWatch(ctx context.Context) error {
	if a.cmd.TraceFile == "" || a.cmd.TraceFile == "-" {
		return fmt.Errorf("%w: watch needs a trace file", errUsage)
	}
	if _, err := os.Stat(a.cmd.TraceFile); err != nil {
		return fmt.Errorf("%w %s: %v", errMissingTrace, a.cmd.TraceFile, err)
	}

	w := &watch.Watcher{
		Path:   a.cmd.TraceFile,
		Logger: a.logger,
		Run:    a.runTable,
	}
	a.logger.Info("watching", "path", a.cmd.TraceFile)
	return w.Watch(ctx)
}

func (a *app) runRuns(ctx context.Context) error {
	if a.cfg.Store.Path == "" {
		return fmt.Errorf("%w: runs needs --store or store.path", errUsage)
	}
	st, err := store.Open(a.cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	switch {
	case a.cmd.Delete != "":
		if err := st.Delete(ctx, a.cmd.Delete); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "Deleted run: %s\n", a.cmd.Delete)
		return nil

	case a.cmd.Prune:
		deleted, err := st.Prune(ctx, time.Duration(a.cmd.PruneDays)*24*time.Hour)
		if err != nil {
			return fmt.Errorf("prune runs: %w", err)
		}
		fmt.Fprintf(a.stdout, "Pruned %d run(s) older than %d days\n", deleted, a.cmd.PruneDays)
		return nil

	case a.cmd.Verify != "":
		saved, err := a.loadRun(ctx, st, a.cmd.Verify)
		if err != nil {
			return err
		}
		return a.printVerify(saved)

	case a.cmd.Show != "":
		saved, err := a.loadRun(ctx, st, a.cmd.Show)
		if err != nil {
			return err
		}
		format := table.FormatText
		if a.cmd.JSONOutput {
			format = table.FormatJSON
		} else if a.cfg.Table.Format != "" {
			format = a.cfg.TableFormat()
		}
		return table.Write(a.stdout, saved.Table, format)
	}

	summaries, err := st.List(ctx)
	if err != nil {
		return err
	}
	if a.cmd.JSONOutput {
		data, err := json.MarshalIndent(summaries, "", "  ")
		if err != nil {
			return fmt.Errorf("serialize runs: %w", err)
		}
		fmt.Fprintln(a.stdout, string(data))
		return nil
	}
	if len(summaries) == 0 {
		fmt.Fprintln(a.stdout, "No runs found")
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(a.stdout, "%s  %s  %-5s  %3d  %s\n",
			s.ID, s.CreatedAt.Format(time.RFC3339), s.Dialect, s.Snapshots, shorten(s.Source))
	}
	return nil
}

// loadRun loads a run by id, or the newest run with a digest
func (a *app) loadRun(ctx context.Context, st *store.Store, ref string) (store.Run, error) {
	if !digest.Pattern.MatchString(ref) {
		return st.Load(ctx, ref)
	}
	matches, err := st.FindByDigest(ctx, ref)
	if err != nil {
		return store.Run{}, err
	}
	if len(matches) == 0 {
		return store.Run{}, fmt.Errorf("%w: %s", store.ErrRunNotFound, ref)
	}
	return st.Load(ctx, matches[0].ID)
}

func (a *app) printVerify(run store.Run) error {
	result := store.Verify(run)

	if a.cmd.JSONOutput {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, string(data))
	} else {
		fmt.Fprintf(a.stdout, "Run: %s\n", run.ID)
		fmt.Fprintf(a.stdout, "Digest: %s\n", run.Digest)
		if result.DigestMismatch {
			fmt.Fprintln(a.stdout, "Status: INVALID (stored rows do not match digest)")
		} else {
			fmt.Fprintln(a.stdout, "Status: OK")
		}
		if result.SourceChanged {
			fmt.Fprintf(a.stdout, "Warning: %s: %s\n", run.Source, result.SourceMessage)
		}
	}

	if !result.Valid {
		return fmt.Errorf("run %s failed verification", run.ID)
	}
	return nil
}

func shorten(source string) string {
	if len(source) <= 48 {
		return source
	}
	return "..." + source[len(source)-45:]
}
