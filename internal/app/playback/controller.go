package playback

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/melody/internal/app/download"
	"github.com/osa030/melody/internal/domain/queue"
	"github.com/osa030/melody/internal/domain/track"
)

// Errors
var (
	ErrQueueExhausted  = errors.New("no more songs in the queue")
	ErrNoPrevious      = queue.ErrNoPrevious
	ErrIndexOutOfRange = queue.ErrOutOfRange
	ErrNotPlaying      = errors.New("not playing")
	ErrAlreadyPaused   = errors.New("already paused")
	ErrNotPaused       = errors.New("not paused")
	ErrClosed          = errors.New("player is closed")
)

// maxConsecutiveFailures bounds how many unplayable tracks autoplay skips
// before giving up.
const maxConsecutiveFailures = 3

// Output plays audio files. The channel returned by Play is closed when the
// file stops producing sound, either at its end or after Halt.
type Output interface {
	Play(path string) (<-chan struct{}, error)
	Pause()
	Resume()
	Halt()
}

// Resolver turns a track into a playable local file.
type Resolver interface {
	Fetch(ctx context.Context, t track.Track) (download.Result, error)
}

// Refiller suggests tracks to play after seed.
type Refiller interface {
	Related(ctx context.Context, seed track.Track, queued []track.QueuedTrack) ([]track.Track, error)
}

// Config holds controller configuration.
type Config struct {
	Autoplay    bool
	Prefetch    bool
	CloseWait   time.Duration // How long Close waits for background work
	EventBuffer int
}

// Status is a snapshot of the controller.
type Status struct {
	State       State
	Track       *track.QueuedTrack
	Position    int // 1-based, 0 when the queue is empty
	QueueLength int
	Autoplay    bool
	File        string
	Elapsed     time.Duration
}

// Controller plays a queue through an Output. At most one worker owns the
// output at a time; starting a track retires the previous worker first.
type Controller struct {
	mu sync.Mutex

	queue *queue.Queue
	// queueEpoch changes whenever the queue is replaced, so a background
	// refill for an older queue is dropped.
	queueEpoch uint64

	state         State
	autoplay      bool
	stopRequested bool
	failures      int

	// Current worker
	generation   uint64
	workerCancel context.CancelFunc
	current      *track.QueuedTrack
	file         string
	startTime    time.Time
	pausedAt     time.Time
	pausedTotal  time.Duration

	output   Output
	resolver Resolver
	refiller Refiller
	config   Config

	eventCh chan Event
	closed  bool
	wg      sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// NewController creates a new playback controller. refiller may be nil.
func NewController(output Output, resolver Resolver, refiller Refiller, config Config) *Controller {
	if config.CloseWait <= 0 {
		config.CloseWait = 2 * time.Second
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = 32
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		queue:    queue.New(),
		state:    StateIdle,
		autoplay: config.Autoplay,
		output:   output,
		resolver: resolver,
		refiller: refiller,
		config:   config,
		eventCh:  make(chan Event, config.EventBuffer),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Events returns the event channel. It is closed by Close.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// Start replaces the queue with seed and plays it. Related tracks are
// appended in the background.
func (c *Controller) Start(seed track.Track) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	c.queue.Replace([]track.QueuedTrack{track.NewQueued(seed, track.OriginSearch)})
	c.queueEpoch++
	c.startLocked()

	if c.refiller != nil {
		epoch := c.queueEpoch
		c.wg.Add(1)
		go c.appendRelated(epoch, seed)
	}
	return nil
}

// Next plays the next queued track. When the queue is exhausted it is
// refilled with tracks related to the current one.
func (c *Controller) Next(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.queue.HasNext() {
		defer c.mu.Unlock()
		if _, err := c.queue.Advance(); err != nil {
			return err
		}
		c.startLocked()
		return nil
	}

	current, err := c.queue.Current()
	if err != nil || c.refiller == nil {
		c.mu.Unlock()
		return ErrQueueExhausted
	}
	epoch, gen := c.queueEpoch, c.generation
	queued := c.queue.Tracks()
	c.mu.Unlock()

	related, err := c.refiller.Related(ctx, current.Track, queued)
	if err != nil {
		return errors.Wrap(err, "failed to refill queue")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.queueEpoch != epoch || c.generation != gen {
		// The queue was replaced or another track started meanwhile; the
		// newer request wins.
		return nil
	}
	if len(related) == 0 {
		return ErrQueueExhausted
	}
	c.refillLocked(current, related)
	if _, err := c.queue.Advance(); err != nil {
		return err
	}
	c.startLocked()
	return nil
}

// Prev plays the previous track.
func (c *Controller) Prev() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if _, err := c.queue.Back(); err != nil {
		return err
	}
	c.startLocked()
	return nil
}

// Jump plays queue position n (1-based).
func (c *Controller) Jump(n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if _, err := c.queue.Jump(n); err != nil {
		return err
	}
	c.startLocked()
	return nil
}

// Pause pauses the current playback.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StatePaused {
		return ErrAlreadyPaused
	}
	if c.state != StatePlaying {
		return ErrNotPlaying
	}
	c.output.Pause()
	c.pausedAt = time.Now()
	c.setStateLocked(StatePaused)
	return nil
}

// Resume resumes paused playback.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePaused {
		return ErrNotPaused
	}
	c.output.Resume()
	c.pausedTotal += time.Since(c.pausedAt)
	c.pausedAt = time.Time{}
	c.setStateLocked(StatePlaying)
	return nil
}

// Stop halts playback. The worker that owned the track becomes idle instead
// of advancing, exactly once.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.Active() {
		return ErrNotPlaying
	}
	c.stopRequested = true
	if c.workerCancel != nil {
		c.workerCancel()
	}
	c.output.Halt()
	return nil
}

// ToggleAutoplay flips autoplay and returns the new value.
func (c *Controller) ToggleAutoplay() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.autoplay = !c.autoplay
	c.sendEventLocked(EventStateChanged, nil)
	return c.autoplay
}

// Autoplay reports whether autoplay is enabled.
func (c *Controller) Autoplay() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoplay
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		State:       c.state,
		QueueLength: c.queue.Len(),
		Autoplay:    c.autoplay,
		File:        c.file,
	}
	if c.queue.Len() > 0 {
		s.Position = c.queue.Position() + 1
	}
	if c.current != nil {
		cur := *c.current
		s.Track = &cur
	}
	if !c.startTime.IsZero() {
		end := time.Now()
		if c.state == StatePaused {
			end = c.pausedAt
		}
		s.Elapsed = end.Sub(c.startTime) - c.pausedTotal
	}
	return s
}

// Queue returns a copy of the queue and the 1-based current position.
func (c *Controller) Queue() ([]track.QueuedTrack, int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.queue.Len() == 0 {
		return nil, 0
	}
	return c.queue.Tracks(), c.queue.Position() + 1
}

// Close halts playback, waits briefly for background work and closes the
// event channel.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.generation++
	c.cancel()
	c.output.Halt()
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(c.config.CloseWait):
		zlog.Warn().Msgf("playback: background work still running after %s", c.config.CloseWait)
	}

	// Nothing sends once closed is set
	close(c.eventCh)
}

// startLocked retires the running worker and starts one for the current
// queue position.
// Must be called with lock held.
func (c *Controller) startLocked() {
	qt, err := c.queue.Current()
	if err != nil {
		return
	}

	if c.workerCancel != nil {
		c.workerCancel()
		c.workerCancel = nil
	}
	c.output.Halt()

	c.generation++
	gen := c.generation
	ctx, cancel := context.WithCancel(c.ctx)
	c.workerCancel = cancel
	c.stopRequested = false

	c.current = &qt
	c.file = ""
	c.startTime = time.Time{}
	c.pausedAt = time.Time{}
	c.pausedTotal = 0
	c.state = StateLoading
	c.sendEventLocked(EventTrackLoading, nil)

	c.wg.Add(1)
	go c.run(ctx, gen, qt)
}

// run is the worker for one track.
func (c *Controller) run(ctx context.Context, gen uint64, qt track.QueuedTrack) {
	defer c.wg.Done()

	res, err := c.resolver.Fetch(ctx, qt.Track)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	if err == nil && !c.stopRequested {
		var done <-chan struct{}
		done, err = c.output.Play(res.Path)
		if err == nil {
			c.failures = 0
			c.file = res.Path
			c.startTime = time.Now()
			c.state = StatePlaying
			zlog.Info().Msgf("playback: now playing %s (%s)", qt.Track.DisplayName(), res.Path)
			c.sendEventLocked(EventTrackStarted, func(e *Event) { e.Cached = res.Cached })
			c.prefetchLocked()
			c.mu.Unlock()

			select {
			case <-done:
			case <-ctx.Done():
			}

			c.mu.Lock()
			if gen != c.generation {
				c.mu.Unlock()
				return
			}
		}
	}

	switch {
	case c.stopRequested:
		c.stopRequested = false
		c.becomeIdleLocked(EventTrackStopped, nil)
		c.mu.Unlock()
		return
	case err != nil:
		zlog.Error().Err(err).Msgf("playback: failed to play %s", qt.Track.DisplayName())
		c.failures++
		c.sendEventLocked(EventError, func(e *Event) { e.Err = err })
		if !c.autoplay || c.failures >= maxConsecutiveFailures {
			c.failures = 0
			c.becomeIdleLocked(EventStateChanged, nil)
			c.mu.Unlock()
			return
		}
	default:
		c.sendEventLocked(EventTrackEnded, nil)
		if !c.autoplay {
			c.becomeIdleLocked(EventStateChanged, nil)
			c.mu.Unlock()
			return
		}
	}

	c.advanceLocked(ctx, gen, qt)
	c.mu.Unlock()
}

// advanceLocked moves autoplay to the next track, refilling the queue with
// related tracks when it is exhausted. The lock is released while
// refilling and held again on return.
// Must be called with lock held.
func (c *Controller) advanceLocked(ctx context.Context, gen uint64, finished track.QueuedTrack) {
	if c.queue.HasNext() {
		if _, err := c.queue.Advance(); err == nil {
			c.startLocked()
		}
		return
	}

	if c.refiller == nil {
		c.becomeIdleLocked(EventQueueEnded, nil)
		return
	}

	c.state = StateLoading
	epoch := c.queueEpoch
	queued := c.queue.Tracks()
	c.mu.Unlock()
	related, err := c.refiller.Related(ctx, finished.Track, queued)
	c.mu.Lock()

	if gen != c.generation || c.queueEpoch != epoch {
		return
	}
	if c.stopRequested {
		c.stopRequested = false
		c.becomeIdleLocked(EventTrackStopped, nil)
		return
	}
	if err != nil || len(related) == 0 {
		if err != nil {
			zlog.Warn().Err(err).Msg("playback: autoplay refill failed")
		}
		c.becomeIdleLocked(EventQueueEnded, nil)
		return
	}

	c.refillLocked(finished, related)
	if _, err := c.queue.Advance(); err == nil {
		c.startLocked()
	}
}

// refillLocked makes the queue [current, related...] positioned at current.
// Must be called with lock held.
func (c *Controller) refillLocked(current track.QueuedTrack, related []track.Track) {
	items := make([]track.QueuedTrack, 0, len(related)+1)
	items = append(items, current)
	for _, t := range related {
		items = append(items, track.NewQueued(t, track.OriginRelated))
	}
	c.queue.Replace(items)
	c.queueEpoch++
	c.sendEventLocked(EventQueueRefilled, func(e *Event) { e.Added = len(related) })
}

// appendRelated appends tracks related to seed to the queue started with it.
func (c *Controller) appendRelated(epoch uint64, seed track.Track) {
	defer c.wg.Done()

	c.mu.Lock()
	queued := c.queue.Tracks()
	c.mu.Unlock()

	related, err := c.refiller.Related(c.ctx, seed, queued)
	if err != nil {
		if c.ctx.Err() == nil {
			zlog.Warn().Err(err).Msgf("playback: no related tracks for %s", seed.DisplayName())
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.queueEpoch != epoch || len(related) == 0 {
		return
	}

	items := make([]track.QueuedTrack, 0, len(related))
	for _, t := range related {
		if c.queue.Contains(t.ID) {
			continue
		}
		items = append(items, track.NewQueued(t, track.OriginRelated))
	}
	c.queue.Append(items...)
	c.sendEventLocked(EventQueueRefilled, func(e *Event) { e.Added = len(items) })

	if c.state == StatePlaying || c.state == StatePaused {
		c.prefetchLocked()
	}
}

// prefetchLocked downloads the next queued track in the background.
// Must be called with lock held.
func (c *Controller) prefetchLocked() {
	if !c.config.Prefetch || c.closed {
		return
	}
	next, ok := c.queue.Peek()
	if !ok {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if _, err := c.resolver.Fetch(c.ctx, next.Track); err != nil && c.ctx.Err() == nil {
			zlog.Debug().Err(err).Msgf("playback: prefetch failed for %s", next.Track.DisplayName())
		}
	}()
}

// becomeIdleLocked retires the current worker and reports why.
// Must be called with lock held.
func (c *Controller) becomeIdleLocked(reason EventType, mutate func(*Event)) {
	if c.workerCancel != nil {
		c.workerCancel()
		c.workerCancel = nil
	}
	c.state = StateIdle
	c.file = ""
	c.startTime = time.Time{}
	c.sendEventLocked(reason, mutate)
}

func (c *Controller) setStateLocked(s State) {
	c.state = s
	c.sendEventLocked(EventStateChanged, nil)
}

// sendEventLocked sends an event without blocking.
// Must be called with lock held.
func (c *Controller) sendEventLocked(t EventType, mutate func(*Event)) {
	if c.closed {
		return
	}
	e := Event{Type: t, State: c.state}
	if c.current != nil {
		cur := *c.current
		e.Track = &cur
	}
	if c.queue.Len() > 0 {
		e.Position = c.queue.Position() + 1
	}
	if mutate != nil {
		mutate(&e)
	}

	select {
	case c.eventCh <- e:
	default:
		zlog.Debug().Msgf("playback: event channel full, dropping %s", t)
	}
}
