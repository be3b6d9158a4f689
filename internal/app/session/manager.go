// Package session provides the session manager.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/melody/internal/app/download"
	"github.com/osa030/melody/internal/app/notification"
	"github.com/osa030/melody/internal/app/playback"
	"github.com/osa030/melody/internal/app/session/state"
	"github.com/osa030/melody/internal/domain/results"
	"github.com/osa030/melody/internal/domain/track"
)

var (
	ErrEmptyQuery    = errors.New("search query is empty")
	ErrSessionClosed = errors.New("session is closed")
)

// Catalog searches for tracks.
type Catalog interface {
	Search(ctx context.Context, query string, limit int) ([]track.Track, error)
	Name() string
}

// Mixer controls the output volume.
type Mixer interface {
	SetVolume(percent int)
	Volume() int
}

// Library lists the audio cache.
type Library interface {
	Files() ([]download.CachedFile, error)
}

// Components are the collaborators of a Manager.
type Components struct {
	Catalog     Catalog
	Playback    *playback.Controller
	Mixer       Mixer
	Library     Library
	SearchLimit int

	// Released by Close after playback stops, in order.
	Closers []func()
}

// Manager ties search, playback and notifications together.
type Manager struct {
	stateMgr     *state.Manager
	catalog      Catalog
	playback     *playback.Controller
	mixer        Mixer
	library      Library
	notification *notification.Manager
	searchLimit  int
	closers      []func()

	closeOnce sync.Once
	done      chan struct{}
}

// Status represents the current session status.
type Status struct {
	playback.Status
	SessionID   string
	StartedAt   time.Time
	Phase       state.Phase
	Catalog     string
	Volume      int
	Results     int
	Subscribers int
}

// NewManager creates a new session manager and starts forwarding playback
// events to notification subscribers.
func NewManager(c Components) (*Manager, error) {
	if c.Catalog == nil || c.Playback == nil {
		return nil, errors.New("catalog and playback are required")
	}
	if c.SearchLimit <= 0 {
		c.SearchLimit = 10
	}

	m := &Manager{
		stateMgr:     state.New(uuid.New().String()),
		catalog:      c.Catalog,
		playback:     c.Playback,
		mixer:        c.Mixer,
		library:      c.Library,
		notification: notification.NewManager(),
		searchLimit:  c.SearchLimit,
		closers:      c.Closers,
		done:         make(chan struct{}),
	}
	go m.playbackLoop()

	zlog.Info().Msgf("session: started %s (catalog=%s)", m.stateMgr.SessionID(), c.Catalog.Name())
	return m, nil
}

// Search queries the catalog and replaces the result index, even when
// nothing was found.
func (m *Manager) Search(ctx context.Context, query string) (*results.Results, error) {
	if err := m.checkActive(); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	tracks, err := m.catalog.Search(ctx, query, m.searchLimit)
	if err != nil {
		return nil, err
	}
	r := results.New(query, tracks)
	m.stateMgr.SetResults(r)
	zlog.Info().Msgf("session: search %q returned %d track(s)", query, r.Len())
	return r, nil
}

// Results returns the last search, nil before the first one.
func (m *Manager) Results() *results.Results {
	return m.stateMgr.Results()
}

// Play starts the n-th (1-based) result of the last search.
func (m *Manager) Play(n int) (track.Track, error) {
	if err := m.checkActive(); err != nil {
		return track.Track{}, err
	}
	t, err := m.stateMgr.Result(n)
	if err != nil {
		return track.Track{}, err
	}
	if err := m.playback.Start(t); err != nil {
		return track.Track{}, err
	}
	return t, nil
}

// Next skips to the next track, refilling the queue if needed.
func (m *Manager) Next(ctx context.Context) error {
	return m.playback.Next(ctx)
}

// Prev returns to the previous track.
func (m *Manager) Prev() error {
	return m.playback.Prev()
}

// Jump plays queue position n (1-based).
func (m *Manager) Jump(n int) error {
	return m.playback.Jump(n)
}

// Pause pauses playback.
func (m *Manager) Pause() error {
	return m.playback.Pause()
}

// Resume resumes playback.
func (m *Manager) Resume() error {
	return m.playback.Resume()
}

// Stop stops playback without advancing.
func (m *Manager) Stop() error {
	return m.playback.Stop()
}

// ToggleAutoplay flips autoplay and returns the new value.
func (m *Manager) ToggleAutoplay() bool {
	return m.playback.ToggleAutoplay()
}

// Queue returns the queue and the 1-based current position.
func (m *Manager) Queue() ([]track.QueuedTrack, int) {
	return m.playback.Queue()
}

// SetVolume sets the output volume (0-100).
func (m *Manager) SetVolume(percent int) error {
	if m.mixer == nil {
		return errors.New("volume control is not available")
	}
	if percent < 0 || percent > 100 {
		return errors.Newf("volume must be between 0 and 100, got %d", percent)
	}
	m.mixer.SetVolume(percent)
	return nil
}

// CachedFiles lists the audio cache, newest first.
func (m *Manager) CachedFiles() ([]download.CachedFile, error) {
	if m.library == nil {
		return nil, nil
	}
	return m.library.Files()
}

// GetStatus returns the current session status.
func (m *Manager) GetStatus() *Status {
	s := &Status{
		Status:      m.playback.Status(),
		SessionID:   m.stateMgr.SessionID(),
		StartedAt:   m.stateMgr.StartedAt(),
		Phase:       m.stateMgr.GetPhase(),
		Catalog:     m.catalog.Name(),
		Results:     m.stateMgr.Results().Len(),
		Subscribers: m.notification.SubscriberCount(),
	}
	if m.mixer != nil {
		s.Volume = m.mixer.Volume()
	}
	return s
}

// GetNotificationManager returns the notification manager.
func (m *Manager) GetNotificationManager() *notification.Manager {
	return m.notification
}

// Done is closed once the session has shut down.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Close stops playback, waits for the worker and releases resources.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.stateMgr.SetPhase(state.PhaseClosing)
		m.playback.Close()
		<-m.done
		m.notification.Close()
		for _, closer := range m.closers {
			closer()
		}
		m.stateMgr.SetPhase(state.PhaseClosed)
		zlog.Info().Msgf("session: closed %s", m.stateMgr.SessionID())
	})
}

func (m *Manager) checkActive() error {
	if m.stateMgr.GetPhase() != state.PhaseActive {
		return ErrSessionClosed
	}
	return nil
}

// playbackLoop forwards playback events until the controller closes its
// event channel.
func (m *Manager) playbackLoop() {
	defer close(m.done)

	for event := range m.playback.Events() {
		m.handlePlaybackEvent(event)
	}
}

// handlePlaybackEvent converts a playback event to a notification.
func (m *Manager) handlePlaybackEvent(event playback.Event) {
	zlog.Debug().Msgf("session: playback event: type=%s state=%s", event.Type, event.State)

	n := &notification.Notification{
		Type:     event.Type.String(),
		State:    event.State.String(),
		Position: event.Position,
	}
	if event.Track != nil {
		t := event.Track.Track
		n.Track = &t
	}

	switch event.Type {
	case playback.EventTrackStarted:
		if event.Cached {
			n.Message = "Using cached song"
		}
	case playback.EventQueueRefilled:
		n.Message = fmt.Sprintf("%d related song(s) queued", event.Added)
	case playback.EventQueueEnded:
		n.Message = "No more songs to play"
	case playback.EventError:
		if event.Err != nil {
			n.Message = event.Err.Error()
		}
	}

	m.notification.Broadcast(n)
}
