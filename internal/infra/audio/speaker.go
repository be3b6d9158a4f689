// Package audio plays decoded mp3 files on the local sound device.
package audio

import (
	"math"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	zlog "github.com/rs/zerolog/log"
)

const (
	volumeCurveExponent = 0.5
	minVolumeDB         = -10.0
	resampleQuality     = 4
)

// Config holds speaker settings.
type Config struct {
	SampleRate int
	BufferMs   int
	Volume     int // 0-100
}

// Speaker is a single-stream output on top of the beep speaker.
// Only one file plays at a time; Play replaces whatever is playing.
type Speaker struct {
	mu sync.Mutex

	sampleRate beep.SampleRate
	percent    int

	streamer beep.StreamSeekCloser
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	finish   func()
	playing  bool
}

// NewSpeaker initializes the sound device.
func NewSpeaker(cfg Config) (*Speaker, error) {
	sr := beep.SampleRate(cfg.SampleRate)
	if err := speaker.Init(sr, sr.N(time.Duration(cfg.BufferMs)*time.Millisecond)); err != nil {
		return nil, errors.Wrap(err, "failed to initialize speaker")
	}
	zlog.Debug().Msgf("audio: speaker initialized: rate=%d buffer=%dms", cfg.SampleRate, cfg.BufferMs)
	return &Speaker{sampleRate: sr, percent: cfg.Volume}, nil
}

// Play decodes the mp3 at path and starts it. The returned channel is
// closed when the output stops producing sound, either at the natural end
// of the file or after Halt.
func (s *Speaker) Play(path string) (<-chan struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	streamer, format, err := mp3.Decode(f)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}

	s.Halt()

	s.mu.Lock()
	defer s.mu.Unlock()

	var src beep.Streamer = streamer
	if format.SampleRate != s.sampleRate {
		src = beep.Resample(resampleQuality, format.SampleRate, s.sampleRate, streamer)
	}
	ctrl := &beep.Ctrl{Streamer: src}
	vol := &effects.Volume{
		Streamer: ctrl,
		Base:     2,
		Volume:   percentToExponent(float64(s.percent)),
		Silent:   s.percent == 0,
	}

	done := make(chan struct{})
	var once sync.Once
	finish := func() { once.Do(func() { close(done) }) }

	s.streamer = streamer
	s.ctrl = ctrl
	s.volume = vol
	s.finish = finish
	s.playing = true

	speaker.Play(beep.Seq(vol, beep.Callback(finish)))
	return done, nil
}

// Pause silences the current stream without releasing it.
func (s *Speaker) Pause() {
	s.setPaused(true)
}

// Resume continues a paused stream.
func (s *Speaker) Resume() {
	s.setPaused(false)
}

func (s *Speaker) setPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctrl == nil {
		return
	}
	speaker.Lock()
	s.ctrl.Paused = paused
	speaker.Unlock()
}

// Halt stops the current stream and signals its completion channel.
func (s *Speaker) Halt() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.playing {
		return
	}
	speaker.Clear()
	if s.streamer != nil {
		_ = s.streamer.Close()
	}
	if s.finish != nil {
		s.finish()
	}
	s.streamer = nil
	s.ctrl = nil
	s.volume = nil
	s.finish = nil
	s.playing = false
}

// SetVolume applies a 0-100 volume to the current and later streams.
func (s *Speaker) SetVolume(percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.percent = percent
	if s.volume == nil {
		return
	}
	speaker.Lock()
	s.volume.Volume = percentToExponent(float64(percent))
	s.volume.Silent = percent == 0
	speaker.Unlock()
}

// Volume returns the current 0-100 volume.
func (s *Speaker) Volume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.percent
}

// Close halts playback and releases the device.
func (s *Speaker) Close() {
	s.Halt()
	speaker.Close()
}

// percentToExponent maps 0-100 onto a perceptual curve in beep's
// base-2 exponent space.
func percentToExponent(p float64) float64 {
	if p <= 0 {
		return minVolumeDB
	}
	if p >= 100 {
		return 0
	}
	adjusted := math.Pow(p/100.0, volumeCurveExponent)
	return (1.0 - adjusted) * minVolumeDB
}
