package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"
	"github.com/cockroachdb/errors"

	"github.com/osa030/melody/internal/app/notification"
)

// Prompt is the interactive prompt.
const Prompt = "(melody) "

// NewTerminal opens the readline terminal with command completion.
func NewTerminal() (*readline.Instance, error) {
	items := make([]readline.PrefixCompleterInterface, 0, len(commands))
	for _, name := range CommandNames() {
		items = append(items, readline.PcItem(name))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          Prompt,
		AutoComplete:    readline.NewPrefixCompleter(items...),
		InterruptPrompt: "^C",
		EOFPrompt:       "bye",
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open terminal")
	}
	return rl, nil
}

// Shell reads command lines from the terminal until bye.
type Shell struct {
	rl         *readline.Instance
	dispatcher *Dispatcher
	styles     styles
}

// NewShell creates a shell on rl driving player.
func NewShell(rl *readline.Instance, player Player) *Shell {
	r := lipgloss.DefaultRenderer()
	return &Shell{
		rl:         rl,
		dispatcher: NewDispatcher(player, r),
		styles:     newStyles(r),
	}
}

// Run reads and executes commands until bye, EOF or Ctrl-C.
func (s *Shell) Run(ctx context.Context) error {
	out := s.rl.Stdout()
	fmt.Fprintln(out, s.styles.title.Render("melody")+s.styles.dim.Render(" - type 'help' for commands"))

	for {
		line, err := s.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) && len(line) > 0 {
			continue
		}
		if err != nil {
			// EOF, Ctrl-C on an empty line, or the terminal was closed
			s.dispatcher.Execute(ctx, "bye", out)
			return nil
		}
		if s.dispatcher.Execute(ctx, line, out) {
			return nil
		}
	}
}

// Notifications returns a stream that prints player notifications above
// the prompt.
func (s *Shell) Notifications() notification.Stream {
	return notification.StreamFunc(func(n *notification.Notification) error {
		if msg := formatNotification(n, s.styles); msg != "" {
			_, err := io.WriteString(s.rl.Stdout(), msg+"\n")
			return err
		}
		return nil
	})
}

// formatNotification renders a notification for the console, or "" when
// it is not worth showing.
func formatNotification(n *notification.Notification, st styles) string {
	var name string
	if n.Track != nil {
		name = n.Track.DisplayName()
	}

	switch n.Type {
	case "track_loading":
		return st.dim.Render("Loading: " + name)
	case "track_started":
		if n.Track == nil {
			return ""
		}
		line := st.current.Render(fmt.Sprintf("Now playing: %s [%s]", name, n.Track.FormatDuration()))
		if n.Message != "" {
			return st.dim.Render(n.Message) + "\n" + line
		}
		return line
	case "track_stopped":
		return st.info.Render("Playback stopped.")
	case "queue_refilled":
		return st.dim.Render(n.Message)
	case "queue_ended":
		return st.warning.Render(n.Message)
	case "error":
		return st.err.Render(fmt.Sprintf("Error playing %s: %s", name, n.Message))
	default:
		return ""
	}
}
