package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/melody/internal/domain/track"
)

func queued(ids ...string) []track.QueuedTrack {
	result := make([]track.QueuedTrack, len(ids))
	for i, id := range ids {
		result[i] = track.NewQueued(track.Track{ID: id}, track.OriginRelated)
	}
	return result
}

func TestQueue_Empty(t *testing.T) {
	q := New()

	_, err := q.Current()
	assert.ErrorIs(t, err, ErrEmpty)
	_, err = q.Advance()
	assert.ErrorIs(t, err, ErrEmpty)
	_, err = q.Back()
	assert.ErrorIs(t, err, ErrNoPrevious)
	_, err = q.Jump(1)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.False(t, q.HasNext())
	assert.False(t, q.HasPrevious())
}

func TestQueue_AdvanceAndBack(t *testing.T) {
	q := New()
	q.Replace(queued("a", "b", "c"))

	cur, err := q.Current()
	require.NoError(t, err)
	assert.Equal(t, "a", cur.Track.ID)

	_, err = q.Back()
	assert.ErrorIs(t, err, ErrNoPrevious)

	next, err := q.Advance()
	require.NoError(t, err)
	assert.Equal(t, "b", next.Track.ID)

	next, err = q.Advance()
	require.NoError(t, err)
	assert.Equal(t, "c", next.Track.ID)

	_, err = q.Advance()
	assert.ErrorIs(t, err, ErrNoNext)
	assert.Equal(t, 2, q.Position(), "position stays on last track")

	prev, err := q.Back()
	require.NoError(t, err)
	assert.Equal(t, "b", prev.Track.ID)
}

func TestQueue_Jump(t *testing.T) {
	q := New()
	q.Replace(queued("a", "b", "c"))

	tests := []struct {
		name    string
		n       int
		wantID  string
		wantErr bool
	}{
		{name: "first", n: 1, wantID: "a"},
		{name: "last", n: 3, wantID: "c"},
		{name: "zero", n: 0, wantErr: true},
		{name: "past end", n: 4, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := q.Position()
			got, err := q.Jump(tt.n)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrOutOfRange)
				assert.Equal(t, before, q.Position())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.Track.ID)
			assert.Equal(t, tt.n-1, q.Position())
		})
	}
}

func TestQueue_ReplaceResetsPosition(t *testing.T) {
	q := New()
	q.Replace(queued("a", "b"))
	_, err := q.Advance()
	require.NoError(t, err)

	q.Replace(queued("x"))

	assert.Equal(t, 0, q.Position())
	assert.Equal(t, 1, q.Len())
}

func TestQueue_AppendKeepsPosition(t *testing.T) {
	q := New()
	q.Replace(queued("a", "b"))
	_, err := q.Advance()
	require.NoError(t, err)
	assert.False(t, q.HasNext())

	q.Append(queued("d")...)

	ids := make([]string, 0, q.Len())
	for _, qt := range q.Tracks() {
		ids = append(ids, qt.Track.ID)
	}
	assert.Equal(t, []string{"a", "b", "d"}, ids)
	assert.Equal(t, 1, q.Position())
	assert.True(t, q.Contains("d"))
	assert.False(t, q.Contains("c"))

	peek, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, "d", peek.Track.ID)
}

func TestQueue_TracksIsCopy(t *testing.T) {
	q := New()
	q.Replace(queued("a"))

	tracks := q.Tracks()
	tracks[0].Track.ID = "mutated"

	cur, err := q.Current()
	require.NoError(t, err)
	assert.Equal(t, "a", cur.Track.ID)
}
