package console

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/c-bata/go-prompt"
	"golang.org/x/term"

	"github.com/xtxerr/scopedb/internal/tsdb/types"
)

// commandTimeout bounds each REPL command's query time.
const commandTimeout = 30 * time.Second

// REPL is the interactive console shell.
type REPL struct {
	console *Console

	// Terminal dimensions, captured at startup.
	width  int
	height int

	// Channel names cached for completion.
	channels []string
}

// NewREPL creates a shell over the console. The plot size follows the
// terminal; when stdout is not a terminal the defaults apply.
func NewREPL(c *Console) *REPL {
	r := &REPL{
		console: c,
		width:   DefaultPlotWidth,
		height:  DefaultPlotHeight,
	}

	if term.IsTerminal(int(os.Stdout.Fd())) {
		if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
			r.width = w
			r.height = h - 4 // leave room for the prompt
			if r.height < 4 {
				r.height = 4
			}
		}
	}

	return r
}

// Run starts the interactive loop. It returns when the user exits.
func (r *REPL) Run() {
	r.refreshChannels()

	p := prompt.New(
		r.execute,
		r.complete,
		prompt.OptionTitle("scope-console"),
		prompt.OptionPrefix("scope> "),
	)
	p.Run()
}

func (r *REPL) refreshChannels() {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if names, err := r.console.Channels(ctx); err == nil {
		r.channels = names
	}
}

var commands = []prompt.Suggest{
	{Text: "channels", Description: "List recorded channels"},
	{Text: "len", Description: "Number of samples in a channel"},
	{Text: "range", Description: "First and last timestamp of a channel"},
	{Text: "summary", Description: "Aggregate statistics over a time range"},
	{Text: "plot", Description: "ASCII min/max envelope plot"},
	{Text: "sql", Description: "Run a raw SQL query over the snapshot files"},
	{Text: "help", Description: "Show command help"},
	{Text: "exit", Description: "Leave the console"},
}

func (r *REPL) complete(d prompt.Document) []prompt.Suggest {
	args := strings.Fields(d.TextBeforeCursor())

	// First word: command names.
	if len(args) == 0 || (len(args) == 1 && !strings.HasSuffix(d.TextBeforeCursor(), " ")) {
		return prompt.FilterHasPrefix(commands, d.GetWordBeforeCursor(), true)
	}

	// Second word of channel-taking commands: channel names.
	switch args[0] {
	case "len", "range", "summary", "plot":
		if len(args) <= 2 {
			suggestions := make([]prompt.Suggest, len(r.channels))
			for i, name := range r.channels {
				suggestions[i] = prompt.Suggest{Text: name}
			}
			return prompt.FilterHasPrefix(suggestions, d.GetWordBeforeCursor(), true)
		}
	}
	return nil
}

func (r *REPL) execute(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	args := strings.Fields(line)
	var err error

	switch args[0] {
	case "channels":
		err = r.cmdChannels(ctx)
	case "len":
		err = r.cmdLen(ctx, args[1:])
	case "range":
		err = r.cmdRange(ctx, args[1:])
	case "summary":
		err = r.cmdSummary(ctx, args[1:])
	case "plot":
		err = r.cmdPlot(ctx, args[1:])
	case "sql":
		err = r.cmdSQL(ctx, strings.TrimSpace(strings.TrimPrefix(line, "sql")))
	case "help":
		r.cmdHelp()
	case "exit", "quit":
		r.console.Close()
		os.Exit(0)
	default:
		err = fmt.Errorf("unknown command %q (try help)", args[0])
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
}

func (r *REPL) cmdChannels(ctx context.Context) error {
	names, err := r.console.Channels(ctx)
	if err != nil {
		return err
	}
	r.channels = names

	if len(names) == 0 {
		fmt.Println("(no channels)")
		return nil
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func (r *REPL) cmdLen(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: len <channel>")
	}

	n, err := r.console.Len(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Println(n)
	return nil
}

func (r *REPL) cmdRange(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: range <channel>")
	}

	t0, t1, ok, err := r.console.TimeRange(ctx, args[0])
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("(empty)")
		return nil
	}
	fmt.Printf("[%g, %g]\n", t0, t1)
	return nil
}

// channelSpan resolves an optional [t0 t1] argument pair, defaulting to
// the channel's full recorded range.
func (r *REPL) channelSpan(ctx context.Context, channel string, args []string) (types.Span, error) {
	if len(args) == 2 {
		t0, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return types.Span{}, fmt.Errorf("bad t0 %q: %v", args[0], err)
		}
		t1, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return types.Span{}, fmt.Errorf("bad t1 %q: %v", args[1], err)
		}
		return types.NewSpan(t0, t1), nil
	}

	t0, t1, ok, err := r.console.TimeRange(ctx, channel)
	if err != nil {
		return types.Span{}, err
	}
	if !ok {
		return types.Span{}, fmt.Errorf("channel %q is empty", channel)
	}
	return types.Span{T0: t0, T1: t1}, nil
}

func (r *REPL) cmdSummary(ctx context.Context, args []string) error {
	if len(args) != 1 && len(args) != 3 {
		return fmt.Errorf("usage: summary <channel> [t0 t1]")
	}

	span, err := r.channelSpan(ctx, args[0], args[1:])
	if err != nil {
		return err
	}

	b, ok, err := r.console.Summary(ctx, args[0], span)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("(no samples in range)")
		return nil
	}

	fmt.Printf("count  %d\n", b.Count)
	fmt.Printf("range  [%g, %g]\n", b.StartTime, b.EndTime)
	fmt.Printf("min    %g\n", b.Min)
	fmt.Printf("max    %g\n", b.Max)
	fmt.Printf("mean   %g\n", b.Mean())
	fmt.Printf("first  %g\n", b.First)
	fmt.Printf("last   %g\n", b.Last)
	return nil
}

func (r *REPL) cmdPlot(ctx context.Context, args []string) error {
	if len(args) != 1 && len(args) != 3 {
		return fmt.Errorf("usage: plot <channel> [t0 t1]")
	}

	span, err := r.channelSpan(ctx, args[0], args[1:])
	if err != nil {
		return err
	}

	buckets, err := r.console.Envelope(ctx, args[0], span, r.width)
	if err != nil {
		return err
	}

	fmt.Print(Render(buckets, r.width, r.height))
	return nil
}

func (r *REPL) cmdSQL(ctx context.Context, query string) error {
	if query == "" {
		return fmt.Errorf("usage: sql <query>")
	}

	columns, rows, err := r.console.SQL(ctx, query)
	if err != nil {
		return err
	}

	fmt.Println(strings.Join(columns, "\t"))
	for _, row := range rows {
		fmt.Println(strings.Join(row, "\t"))
	}
	fmt.Printf("(%d rows)\n", len(rows))
	return nil
}

func (r *REPL) cmdHelp() {
	for _, c := range commands {
		fmt.Printf("  %-10s %s\n", c.Text, c.Description)
	}
	fmt.Println("\nThe raw files match *.raw.parquet, the level files *.levels.parquet.")
}
