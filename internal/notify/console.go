package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/leapstack-labs/sqgen/pkg/core"
)

// Console prints notifications to a terminal and, when attached to one,
// prompts for an action.
type Console struct {
	out         io.Writer
	interactive bool
	styles      styles
	logger      *slog.Logger

	// prompt reads the chosen label. Replaced in tests.
	prompt func(question string) (string, error)
}

type styles struct {
	title map[core.Severity]lipgloss.Style
	body  lipgloss.Style
	hint  lipgloss.Style
}

// ConsoleOptions configures a Console.
type ConsoleOptions struct {
	// Interactive enables prompting. When nil it is detected from stdin.
	Interactive *bool
	Logger      *slog.Logger
}

// NewConsole creates a Console writing to out.
func NewConsole(out io.Writer, opts ConsoleOptions) *Console {
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if opts.Interactive != nil {
		interactive = *opts.Interactive
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := lipgloss.NewRenderer(out)
	if termenv.EnvNoColor() {
		r.SetColorProfile(termenv.Ascii)
	}

	c := &Console{
		out:         out,
		interactive: interactive,
		logger:      logger,
		styles: styles{
			title: map[core.Severity]lipgloss.Style{
				core.SeverityError:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
				core.SeverityWarning: r.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
				core.SeverityInfo:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
			},
			body: r.NewStyle().PaddingLeft(2),
			hint: r.NewStyle().Faint(true).PaddingLeft(2),
		},
	}
	c.prompt = c.readlinePrompt
	return c
}

// Notify prints n. With actions and an interactive terminal, it asks which
// action to run and runs it; an empty answer dismisses the notification.
func (c *Console) Notify(ctx context.Context, n Notification) {
	title, ok := c.styles.title[n.Severity]
	if !ok {
		title = c.styles.title[core.SeverityInfo]
	}

	_, _ = fmt.Fprintf(c.out, "%s %s\n", title.Render(strings.ToUpper(n.Severity.String())), title.Render(n.Title))
	if n.Body != "" {
		_, _ = fmt.Fprintln(c.out, c.styles.body.Render(n.Body))
	}
	if len(n.Actions) == 0 {
		return
	}

	labels := n.Labels()
	if !c.interactive {
		_, _ = fmt.Fprintln(c.out, c.styles.hint.Render("Actions: "+strings.Join(labels, ", ")))
		return
	}

	for {
		answer, err := c.prompt(fmt.Sprintf("%s? [%s] ", n.Title, strings.Join(labels, "/")))
		if err != nil {
			c.logger.Debug("prompt closed", "error", err)
			return
		}
		answer = strings.TrimSpace(answer)
		if answer == "" {
			return
		}
		err = n.Invoke(ctx, answer)
		var unknown *core.UnknownActionError
		if errors.As(err, &unknown) && unknown.Action == answer {
			_, _ = fmt.Fprintf(c.out, "Unknown choice %q\n", answer)
			continue
		}
		if err != nil {
			c.logger.Warn("action failed", "action", answer, "error", err)
		}
		return
	}
}

func (c *Console) readlinePrompt(question string) (string, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          question,
		InterruptPrompt: "^C",
		Stdout:          c.out,
	})
	if err != nil {
		return "", err
	}
	defer func() { _ = rl.Close() }()

	line, err := rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", nil
	}
	return line, err
}
