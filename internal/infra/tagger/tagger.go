// Package tagger reads and writes ID3 tags on cached audio files.
package tagger

import (
	"github.com/bogem/id3v2"
	"github.com/cockroachdb/errors"
)

// Tags is the subset of ID3 frames the player cares about.
type Tags struct {
	Title  string
	Artist string
	Album  string
}

// Write sets the title, artist and album frames. Empty values leave the
// existing frame unchanged.
func Write(path string, tags Tags) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return errors.Wrapf(err, "failed to open tag of %s", path)
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	if tags.Title != "" {
		tag.SetTitle(tags.Title)
	}
	if tags.Artist != "" {
		tag.SetArtist(tags.Artist)
	}
	if tags.Album != "" {
		tag.SetAlbum(tags.Album)
	}

	if err := tag.Save(); err != nil {
		return errors.Wrapf(err, "failed to save tag of %s", path)
	}
	return nil
}

// Read returns the tags stored in path.
func Read(path string) (Tags, error) {
	tag, err := id3v2.Open(path, id3v2.Options{
		Parse:       true,
		ParseFrames: []string{"Title", "Artist", "Album/Movie/Show title"},
	})
	if err != nil {
		return Tags{}, errors.Wrapf(err, "failed to read tag of %s", path)
	}
	defer tag.Close()

	return Tags{
		Title:  tag.Title(),
		Artist: tag.Artist(),
		Album:  tag.Album(),
	}, nil
}
