// Package cache stores downloaded audio files keyed by track ID.
package cache

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ErrInvalidID is returned for IDs that cannot name a cache file.
var ErrInvalidID = errors.New("invalid track id")

// Entry is one cached file.
type Entry struct {
	ID      string
	Path    string
	Size    int64
	ModTime time.Time
}

// Store is a flat directory of <id>.<ext> files.
// Existence of the path is the whole cache lookup.
type Store struct {
	dir      string
	ext      string
	maxFiles int
}

// NewStore creates the cache directory if needed.
func NewStore(dir, ext string, maxFiles int) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create cache dir %s", dir)
	}
	return &Store{dir: dir, ext: strings.TrimPrefix(ext, "."), maxFiles: maxFiles}, nil
}

// Dir returns the cache directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the cache path for a track ID.
func (s *Store) Path(id string) (string, error) {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return "", errors.Wrapf(ErrInvalidID, "%q", id)
	}
	return filepath.Join(s.dir, id+"."+s.ext), nil
}

// OutputTemplate returns the yt-dlp output template for a track ID.
func (s *Store) OutputTemplate(id string) (string, error) {
	if _, err := s.Path(id); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, id+".%(ext)s"), nil
}

// Lookup reports whether the track is cached. A hit refreshes the file's
// modification time so recently played tracks survive pruning.
func (s *Store) Lookup(id string) (string, bool) {
	path, err := s.Path(id)
	if err != nil {
		return "", false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return "", false
	}
	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		zlog.Debug().Err(err).Msgf("cache: failed to touch %s", path)
	}
	return path, true
}

// List returns cached entries, newest first.
func (s *Store) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read cache dir %s", s.dir)
	}

	suffix := "." + s.ext
	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), suffix) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			ID:      strings.TrimSuffix(de.Name(), suffix),
			Path:    filepath.Join(s.dir, de.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ModTime.After(entries[j].ModTime)
	})
	return entries, nil
}

// Prune keeps the newest maxFiles entries and removes the rest.
// Paths listed in keep are never removed.
func (s *Store) Prune(keep ...string) ([]string, error) {
	entries, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(entries) <= s.maxFiles {
		return nil, nil
	}

	protected := make(map[string]bool, len(keep))
	for _, p := range keep {
		protected[filepath.Clean(p)] = true
	}

	var removed []string
	for _, e := range entries[s.maxFiles:] {
		if protected[filepath.Clean(e.Path)] {
			continue
		}
		if err := os.Remove(e.Path); err != nil {
			zlog.Warn().Err(err).Msgf("cache: failed to remove %s", e.Path)
			continue
		}
		removed = append(removed, e.Path)
	}
	if len(removed) > 0 {
		zlog.Debug().Msgf("cache: pruned %d file(s)", len(removed))
	}
	return removed, nil
}

// Discard removes every file for id, including partial downloads and
// intermediate formats left behind by a failed extraction.
func (s *Store) Discard(id string) error {
	if _, err := s.Path(id); err != nil {
		return err
	}
	matches, err := filepath.Glob(filepath.Join(s.dir, id+".*"))
	if err != nil {
		return errors.Wrap(err, "failed to list cache files")
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "failed to remove %s", m)
		}
	}
	return nil
}
