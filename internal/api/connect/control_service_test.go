package connect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/melody/internal/app/download"
	"github.com/osa030/melody/internal/app/notification"
	"github.com/osa030/melody/internal/app/playback"
	"github.com/osa030/melody/internal/app/session"
	"github.com/osa030/melody/internal/app/session/state"
	"github.com/osa030/melody/internal/domain/results"
	"github.com/osa030/melody/internal/domain/track"
)

type fakeSession struct {
	notif    *notification.Manager
	done     chan struct{}
	autoplay bool
	current  *track.QueuedTrack
}

func newFakeSession() *fakeSession {
	return &fakeSession{notif: notification.NewManager(), done: make(chan struct{}), autoplay: true}
}

func (s *fakeSession) Search(_ context.Context, q string) (*results.Results, error) {
	return results.New(q, nil), nil
}
func (s *fakeSession) Play(int) (track.Track, error)     { return track.Track{}, results.ErrInvalidIndex }
func (s *fakeSession) Next(context.Context) error        { return playback.ErrQueueExhausted }
func (s *fakeSession) Prev() error                       { return playback.ErrNoPrevious }
func (s *fakeSession) Jump(int) error                    { return playback.ErrIndexOutOfRange }
func (s *fakeSession) Pause() error                      { return nil }
func (s *fakeSession) Resume() error                     { return nil }
func (s *fakeSession) Stop() error                       { return playback.ErrNotPlaying }
func (s *fakeSession) Queue() ([]track.QueuedTrack, int) { return nil, 0 }
func (s *fakeSession) SetVolume(int) error               { return nil }

func (s *fakeSession) ToggleAutoplay() bool {
	s.autoplay = !s.autoplay
	return s.autoplay
}

func (s *fakeSession) CachedFiles() ([]download.CachedFile, error) { return nil, nil }

func (s *fakeSession) GetStatus() *session.Status {
	st := &session.Status{
		Status: playback.Status{
			State:       playback.StateIdle,
			Autoplay:    s.autoplay,
			QueueLength: 0,
		},
		SessionID:   "session-1",
		StartedAt:   time.Date(2026, 1, 2, 21, 30, 0, 0, time.UTC),
		Phase:       state.PhaseActive,
		Catalog:     "youtube",
		Volume:      70,
		Subscribers: 1,
	}
	if s.current != nil {
		st.State = playback.StatePlaying
		st.Track = s.current
		st.Position = 1
		st.QueueLength = 1
	}
	return st
}

func (s *fakeSession) GetNotificationManager() *notification.Manager { return s.notif }
func (s *fakeSession) Done() <-chan struct{}                         { return s.done }

func newTestServer(t *testing.T, sess *fakeSession, token string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	path, handler := NewControlServiceHandler(
		NewControlService(sess),
		connect.WithInterceptors(NewControlAuthInterceptor(token)),
	)
	mux.Handle(path, handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestExecute(t *testing.T) {
	server := newTestServer(t, newFakeSession(), "secret")
	client := NewControlClient(server.Client(), server.URL, "secret")
	ctx := context.Background()

	out, err := client.Execute(ctx, "autoplay")
	require.NoError(t, err)
	assert.Equal(t, "Autoplay is now OFF\n", out)

	out, err = client.Execute(ctx, "queueplay 4")
	require.NoError(t, err)
	assert.Equal(t, "Index out of range!\n", out)

	out, err = client.Execute(ctx, "bye")
	require.NoError(t, err)
	assert.Equal(t, "Unknown command: bye. Type 'help' for a list of commands.\n", out)
}

func TestExecute_EmptyCommand(t *testing.T) {
	server := newTestServer(t, newFakeSession(), "")
	client := NewControlClient(server.Client(), server.URL, "")

	_, err := client.Execute(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestAuth(t *testing.T) {
	server := newTestServer(t, newFakeSession(), "secret")
	ctx := context.Background()

	for _, token := range []string{"", "wrong"} {
		client := NewControlClient(server.Client(), server.URL, token)

		_, err := client.Execute(ctx, "status")
		require.Error(t, err, token)
		assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

		assert.Equal(t, connect.CodeUnauthenticated, subscribeCode(ctx, client))
	}
}

// subscribeCode returns the error code of a notification stream that is
// expected to fail before its first message.
func subscribeCode(ctx context.Context, client *ControlClient) connect.Code {
	stream, err := client.Subscribe(ctx)
	if err != nil {
		return connect.CodeOf(err)
	}
	defer stream.Close()
	if stream.Receive() {
		return 0
	}
	return connect.CodeOf(stream.Err())
}

func TestAuth_Disabled(t *testing.T) {
	server := newTestServer(t, newFakeSession(), "")
	client := NewControlClient(server.Client(), server.URL, "anything")

	_, err := client.Execute(context.Background(), "status")
	assert.NoError(t, err)
}

func TestGetStatus(t *testing.T) {
	sess := newFakeSession()
	sess.current = &track.QueuedTrack{
		Track:  track.Track{ID: "a", Title: "Alpha", Artists: []string{"Artist"}, Duration: 90 * time.Second},
		Origin: track.OriginSearch,
	}
	server := newTestServer(t, sess, "")
	client := NewControlClient(server.Client(), server.URL, "")

	status, err := client.GetStatus(context.Background())
	require.NoError(t, err)

	m := status.AsMap()
	assert.Equal(t, "session-1", m["session_id"])
	assert.Equal(t, "playing", m["state"])
	assert.Equal(t, true, m["autoplay"])
	assert.Equal(t, float64(70), m["volume"])
	assert.Equal(t, "SEARCH", m["origin"])
	assert.Equal(t, "2026-01-02T21:30:00Z", m["started_at"])
	assert.Equal(t, float64(1), m["subscribers"])

	tr, ok := m["track"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Alpha", tr["title"])
	assert.Equal(t, []any{"Artist"}, tr["artists"])
	assert.Equal(t, float64(90), tr["duration_sec"])
}

func TestSubscribe(t *testing.T) {
	sess := newFakeSession()
	server := newTestServer(t, sess, "")
	client := NewControlClient(server.Client(), server.URL, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := client.Subscribe(ctx)
	require.NoError(t, err)
	// Close drains the stream, which only ends once the request is cancelled.
	defer func() {
		cancel()
		stream.Close()
	}()

	require.True(t, stream.Receive())
	first := stream.Msg().AsMap()
	assert.Equal(t, "initial_state", first["type"])
	assert.Equal(t, "idle", first["state"])

	require.Eventually(t, func() bool {
		return sess.notif.SubscriberCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	tr := track.Track{ID: "b", Title: "Beta"}
	sess.notif.Broadcast(&notification.Notification{
		Type:    "track_started",
		State:   "playing",
		Track:   &tr,
		Message: "Using cached song",
	})

	require.True(t, stream.Receive())
	next := stream.Msg().AsMap()
	assert.Equal(t, "track_started", next["type"])
	assert.Equal(t, "Using cached song", next["message"])
	assert.Equal(t, "Beta", next["track"].(map[string]any)["title"])
}

func TestSubscribe_EndsWithSession(t *testing.T) {
	sess := newFakeSession()
	server := newTestServer(t, sess, "")
	client := NewControlClient(server.Client(), server.URL, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := client.Subscribe(ctx)
	require.NoError(t, err)
	defer func() {
		cancel()
		stream.Close()
	}()

	require.True(t, stream.Receive())
	require.Eventually(t, func() bool {
		return sess.notif.SubscriberCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	close(sess.done)
	assert.False(t, stream.Receive())
	assert.NoError(t, stream.Err())
	assert.Eventually(t, func() bool {
		return sess.notif.SubscriberCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
