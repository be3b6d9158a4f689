// Package cli implements the interactive command shell.
package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/melody/internal/app/download"
	"github.com/osa030/melody/internal/app/playback"
	"github.com/osa030/melody/internal/app/session"
	"github.com/osa030/melody/internal/domain/results"
	"github.com/osa030/melody/internal/domain/track"
)

// Player is what the commands drive.
type Player interface {
	Search(ctx context.Context, query string) (*results.Results, error)
	Play(n int) (track.Track, error)
	Next(ctx context.Context) error
	Prev() error
	Jump(n int) error
	Pause() error
	Resume() error
	Stop() error
	ToggleAutoplay() bool
	Queue() ([]track.QueuedTrack, int)
	SetVolume(percent int) error
	CachedFiles() ([]download.CachedFile, error)
	GetStatus() *session.Status
}

type handler func(ctx context.Context, d *Dispatcher, args string, w io.Writer) error

type command struct {
	name    string
	usage   string
	help    string
	handler handler
	// remote is false for commands that only make sense at the terminal
	remote bool
}

// errQuit ends the shell.
var errQuit = errors.New("quit")

var commands []command

func init() {
	commands = []command{
		{name: "search", usage: "search <query>", help: "Search for songs", handler: cmdSearch, remote: true},
		{name: "play", usage: "play <n>", help: "Play a search result and queue related songs", handler: cmdPlay, remote: true},
		{name: "next", usage: "next", help: "Play the next song in the queue", handler: cmdNext, remote: true},
		{name: "prev", usage: "prev", help: "Play the previous song", handler: cmdPrev, remote: true},
		{name: "pause", usage: "pause", help: "Pause playback", handler: cmdPause, remote: true},
		{name: "resume", usage: "resume", help: "Resume playback", handler: cmdResume, remote: true},
		{name: "stop", usage: "stop", help: "Stop playback", handler: cmdStop, remote: true},
		{name: "queue", usage: "queue", help: "Show the queue", handler: cmdQueue, remote: true},
		{name: "queueplay", usage: "queueplay <n>", help: "Play song n of the queue", handler: cmdQueuePlay, remote: true},
		{name: "autoplay", usage: "autoplay", help: "Toggle autoplay", handler: cmdAutoplay, remote: true},
		{name: "status", usage: "status", help: "Show what is playing", handler: cmdStatus, remote: true},
		{name: "volume", usage: "volume [0-100]", help: "Show or set the volume", handler: cmdVolume, remote: true},
		{name: "cache", usage: "cache", help: "List downloaded songs", handler: cmdCache, remote: true},
		{name: "clear", usage: "clear", help: "Clear the screen", handler: cmdClear},
		{name: "help", usage: "help", help: "Show this help", handler: cmdHelp, remote: true},
		{name: "bye", usage: "bye", help: "Stop and exit", handler: cmdBye},
	}
}

// CommandNames returns the command names in table order.
func CommandNames() []string {
	names := make([]string, len(commands))
	for i, c := range commands {
		names[i] = c.name
	}
	return names
}

// Dispatcher routes command lines to handlers.
type Dispatcher struct {
	player Player
	styles styles
	remote bool
}

// NewDispatcher creates a dispatcher for the terminal. Output is styled
// with the renderer r.
func NewDispatcher(player Player, r *lipgloss.Renderer) *Dispatcher {
	return &Dispatcher{player: player, styles: newStyles(r)}
}

// NewRemoteDispatcher creates a dispatcher for the control API: plain
// output, no terminal-only commands.
func NewRemoteDispatcher(player Player) *Dispatcher {
	return &Dispatcher{player: player, styles: newStyles(lipgloss.NewRenderer(io.Discard)), remote: true}
}

// Execute runs one command line, writing its output to w. It reports
// whether the shell should exit. Handler errors are printed, never returned.
func (d *Dispatcher) Execute(ctx context.Context, line string, w io.Writer) (quit bool) {
	name, args := splitCommand(line)
	if name == "" {
		return false
	}

	cmd, ok := lookup(name)
	if !ok || (d.remote && !cmd.remote) {
		d.errorf(w, "Unknown command: %s. Type 'help' for a list of commands.", name)
		return false
	}

	zlog.Debug().Msgf("cli: command=%s args=%q", name, args)
	if err := d.run(ctx, cmd, args, w); err != nil {
		if errors.Is(err, errQuit) {
			return true
		}
		d.errorf(w, "Error: %v", err)
	}
	return false
}

// run calls the handler, turning a panic into an error so the prompt
// survives it.
func (d *Dispatcher) run(ctx context.Context, cmd command, args string, w io.Writer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("cli: command %s panicked: %v", cmd.name, r)
			err = errors.Newf("command %s failed: %v", cmd.name, r)
		}
	}()
	return cmd.handler(ctx, d, args, w)
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func splitCommand(line string) (string, string) {
	line = strings.TrimSpace(line)
	name, args, _ := strings.Cut(line, " ")
	return strings.ToLower(name), strings.TrimSpace(args)
}

func (d *Dispatcher) println(w io.Writer, style lipgloss.Style, msg string) {
	fmt.Fprintln(w, style.Render(msg))
}

func (d *Dispatcher) errorf(w io.Writer, format string, args ...any) {
	d.println(w, d.styles.err, fmt.Sprintf(format, args...))
}

// parseIndex parses a 1-based index argument.
func parseIndex(args string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil {
		return 0, false
	}
	return n, true
}

func cmdSearch(ctx context.Context, d *Dispatcher, args string, w io.Writer) error {
	r, err := d.player.Search(ctx, args)
	if errors.Is(err, session.ErrEmptyQuery) {
		d.println(w, d.styles.warning, "Please provide a search query!")
		return nil
	}
	if err != nil {
		return err
	}
	if r.Len() == 0 {
		d.println(w, d.styles.warning, "No results found.")
		return nil
	}
	for i, t := range r.Tracks {
		d.println(w, d.styles.result, fmt.Sprintf("%d. %s - %s", i+1, t.Title, t.FormatDuration()))
	}
	return nil
}

func cmdPlay(_ context.Context, d *Dispatcher, args string, w io.Writer) error {
	n, ok := parseIndex(args)
	if !ok {
		d.errorf(w, "Invalid index or no search results available.")
		return nil
	}
	t, err := d.player.Play(n)
	if errors.Is(err, results.ErrInvalidIndex) {
		d.errorf(w, "Invalid index or no search results available.")
		return nil
	}
	if err != nil {
		return err
	}
	d.println(w, d.styles.info, "Loading: "+t.DisplayName())
	return nil
}

func cmdNext(ctx context.Context, d *Dispatcher, _ string, w io.Writer) error {
	err := d.player.Next(ctx)
	if errors.Is(err, playback.ErrQueueExhausted) {
		d.println(w, d.styles.warning, "No more songs in the queue!")
		return nil
	}
	return err
}

func cmdPrev(_ context.Context, d *Dispatcher, _ string, w io.Writer) error {
	err := d.player.Prev()
	if errors.Is(err, playback.ErrNoPrevious) {
		d.println(w, d.styles.warning, "No previous songs!")
		return nil
	}
	return err
}

func cmdPause(_ context.Context, d *Dispatcher, _ string, w io.Writer) error {
	if err := d.player.Pause(); err != nil {
		switch {
		case errors.Is(err, playback.ErrAlreadyPaused):
			d.println(w, d.styles.warning, "Already paused.")
			return nil
		case errors.Is(err, playback.ErrNotPlaying):
			d.println(w, d.styles.warning, "Nothing is playing.")
			return nil
		}
		return err
	}
	d.println(w, d.styles.success, "Paused.")
	return nil
}

func cmdResume(_ context.Context, d *Dispatcher, _ string, w io.Writer) error {
	if err := d.player.Resume(); err != nil {
		if errors.Is(err, playback.ErrNotPaused) {
			d.println(w, d.styles.warning, "Nothing is paused.")
			return nil
		}
		return err
	}
	d.println(w, d.styles.success, "Resumed.")
	return nil
}

func cmdStop(_ context.Context, d *Dispatcher, _ string, w io.Writer) error {
	if err := d.player.Stop(); err != nil {
		if errors.Is(err, playback.ErrNotPlaying) {
			d.println(w, d.styles.warning, "Nothing is playing.")
			return nil
		}
		return err
	}
	d.println(w, d.styles.success, "Stopped.")
	return nil
}

func cmdQueue(_ context.Context, d *Dispatcher, _ string, w io.Writer) error {
	queue, pos := d.player.Queue()
	if len(queue) == 0 {
		d.println(w, d.styles.warning, "Queue is empty.")
		return nil
	}
	for i, qt := range queue {
		line := fmt.Sprintf("%d. %s - %s", i+1, qt.Track.DisplayName(), qt.Track.FormatDuration())
		if i+1 == pos {
			d.println(w, d.styles.current, "> "+line)
			continue
		}
		d.println(w, d.styles.result, "  "+line)
	}
	return nil
}

func cmdQueuePlay(_ context.Context, d *Dispatcher, args string, w io.Writer) error {
	n, ok := parseIndex(args)
	if !ok {
		d.println(w, d.styles.warning, "Usage: queueplay <n>")
		return nil
	}
	err := d.player.Jump(n)
	if errors.Is(err, playback.ErrIndexOutOfRange) {
		d.errorf(w, "Index out of range!")
		return nil
	}
	return err
}

func cmdAutoplay(_ context.Context, d *Dispatcher, _ string, w io.Writer) error {
	state := "OFF"
	if d.player.ToggleAutoplay() {
		state = "ON"
	}
	d.println(w, d.styles.info, "Autoplay is now "+state)
	return nil
}

func cmdStatus(_ context.Context, d *Dispatcher, _ string, w io.Writer) error {
	s := d.player.GetStatus()

	autoplay := "off"
	if s.Autoplay {
		autoplay = "on"
	}
	d.println(w, d.styles.info, fmt.Sprintf("State:    %s", s.State))
	if s.Track != nil {
		d.println(w, d.styles.info, fmt.Sprintf("Track:    %s [%s / %s]",
			s.Track.Track.DisplayName(), track.FormatDuration(s.Elapsed), s.Track.Track.FormatDuration()))
		d.println(w, d.styles.info, fmt.Sprintf("Position: %d of %d", s.Position, s.QueueLength))
	}
	if s.File != "" {
		d.println(w, d.styles.dim, fmt.Sprintf("File:     %s", s.File))
	}
	d.println(w, d.styles.info, fmt.Sprintf("Autoplay: %s", autoplay))
	d.println(w, d.styles.info, fmt.Sprintf("Volume:   %d%%", s.Volume))
	d.println(w, d.styles.dim, fmt.Sprintf("Catalog:  %s (%d result(s))", s.Catalog, s.Results))
	if !s.StartedAt.IsZero() {
		d.println(w, d.styles.dim, fmt.Sprintf("Session:  started %s, %d listener(s)",
			s.StartedAt.Format("15:04:05"), s.Subscribers))
	}
	return nil
}

func cmdVolume(_ context.Context, d *Dispatcher, args string, w io.Writer) error {
	if args == "" {
		d.println(w, d.styles.info, fmt.Sprintf("Volume: %d%%", d.player.GetStatus().Volume))
		return nil
	}
	n, err := strconv.Atoi(args)
	if err != nil {
		d.println(w, d.styles.warning, "Usage: volume [0-100]")
		return nil
	}
	if err := d.player.SetVolume(n); err != nil {
		return err
	}
	d.println(w, d.styles.success, fmt.Sprintf("Volume set to %d%%", n))
	return nil
}

func cmdCache(_ context.Context, d *Dispatcher, _ string, w io.Writer) error {
	files, err := d.player.CachedFiles()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		d.println(w, d.styles.warning, "No cached songs.")
		return nil
	}
	for i, f := range files {
		name := f.ID
		if f.Tags.Title != "" {
			name = f.Tags.Title
			if f.Tags.Artist != "" {
				name = f.Tags.Artist + " - " + name
			}
		}
		d.println(w, d.styles.result, fmt.Sprintf("%d. %s (%.1f MB)", i+1, name, float64(f.Size)/(1<<20)))
	}
	return nil
}

func cmdClear(_ context.Context, _ *Dispatcher, _ string, w io.Writer) error {
	_, err := io.WriteString(w, "\033[H\033[2J")
	return err
}

func cmdHelp(_ context.Context, d *Dispatcher, _ string, w io.Writer) error {
	d.println(w, d.styles.title, "Commands:")
	visible := make([]command, 0, len(commands))
	for _, c := range commands {
		if d.remote && !c.remote {
			continue
		}
		visible = append(visible, c)
	}
	width := 0
	for _, c := range visible {
		width = max(width, len(c.usage))
	}
	for _, c := range visible {
		d.println(w, d.styles.info, fmt.Sprintf("  %-*s  %s", width, c.usage, c.help))
	}
	return nil
}

func cmdBye(_ context.Context, d *Dispatcher, _ string, w io.Writer) error {
	d.println(w, d.styles.info, "Goodbye!")
	return errQuit
}
