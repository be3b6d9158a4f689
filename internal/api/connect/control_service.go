package connect

import (
	"bytes"
	"context"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/osa030/melody/internal/app/notification"
	"github.com/osa030/melody/internal/cli"
	"github.com/osa030/melody/internal/domain/track"
)

// Session is the player driven by the control service.
type Session interface {
	cli.Player
	GetNotificationManager() *notification.Manager
	Done() <-chan struct{}
}

// ControlService implements the ControlService RPC.
type ControlService struct {
	session    Session
	dispatcher *cli.Dispatcher
}

// NewControlService creates a new ControlService.
func NewControlService(session Session) *ControlService {
	return &ControlService{
		session:    session,
		dispatcher: cli.NewRemoteDispatcher(session),
	}
}

// Execute runs one shell command line and returns what it printed.
func (s *ControlService) Execute(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[wrapperspb.StringValue], error) {
	line := req.Msg.GetValue()
	if line == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("command is empty"))
	}

	zlog.Info().Msgf("control: execute %q", line)
	var out bytes.Buffer
	s.dispatcher.Execute(ctx, line, &out)
	return connect.NewResponse(wrapperspb.String(out.String())), nil
}

// GetStatus returns the current player status.
func (s *ControlService) GetStatus(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	status, err := statusToStruct(s.session)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(status), nil
}

// Subscribe sends the current state, then every notification until the
// client disconnects or the session ends.
func (s *ControlService) Subscribe(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
	stream *connect.ServerStream[structpb.Struct],
) error {
	status := s.session.GetStatus()
	initial := &notification.Notification{
		Type:     "initial_state",
		State:    status.State.String(),
		Position: status.Position,
		Time:     time.Now(),
	}
	if status.Track != nil {
		t := status.Track.Track
		initial.Track = &t
	}

	msg, err := notificationToStruct(initial)
	if err != nil {
		return connect.NewError(connect.CodeInternal, err)
	}
	if err := stream.Send(msg); err != nil {
		return err
	}

	notifManager := s.session.GetNotificationManager()
	adapter := &notificationStreamAdapter{stream: stream}
	subscriptionID := notifManager.Subscribe(adapter)
	defer notifManager.Unsubscribe(subscriptionID)

	select {
	case <-ctx.Done():
	case <-s.session.Done():
	}
	return nil
}

// notificationStreamAdapter adapts connect.ServerStream to notification.Stream.
type notificationStreamAdapter struct {
	mu     sync.Mutex
	stream *connect.ServerStream[structpb.Struct]
}

func (a *notificationStreamAdapter) Send(n *notification.Notification) error {
	msg, err := notificationToStruct(n)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stream.Send(msg)
}

func statusToStruct(session Session) (*structpb.Struct, error) {
	s := session.GetStatus()
	fields := map[string]any{
		"session_id":   s.SessionID,
		"phase":        s.Phase.String(),
		"state":        s.State.String(),
		"catalog":      s.Catalog,
		"volume":       s.Volume,
		"autoplay":     s.Autoplay,
		"queue_length": s.QueueLength,
		"position":     s.Position,
		"results":      s.Results,
		"subscribers":  s.Subscribers,
	}
	if !s.StartedAt.IsZero() {
		fields["started_at"] = s.StartedAt.Format(time.RFC3339)
	}
	if s.Track != nil {
		fields["track"] = trackFields(&s.Track.Track)
		fields["origin"] = string(s.Track.Origin)
		fields["elapsed_sec"] = s.Elapsed.Seconds()
	}
	if s.File != "" {
		fields["file"] = s.File
	}
	return structpb.NewStruct(fields)
}

func notificationToStruct(n *notification.Notification) (*structpb.Struct, error) {
	fields := map[string]any{
		"sequence_no": n.SequenceNo,
		"type":        n.Type,
		"time":        n.Time.Format(time.RFC3339),
	}
	if n.State != "" {
		fields["state"] = n.State
	}
	if n.Position > 0 {
		fields["position"] = n.Position
	}
	if n.Message != "" {
		fields["message"] = n.Message
	}
	if n.Track != nil {
		fields["track"] = trackFields(n.Track)
	}
	return structpb.NewStruct(fields)
}

func trackFields(t *track.Track) map[string]any {
	artists := make([]any, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a
	}
	return map[string]any{
		"id":           t.ID,
		"title":        t.Title,
		"artists":      artists,
		"album":        t.Album,
		"duration_sec": t.Duration.Seconds(),
		"url":          t.URL,
		"source":       string(t.Source),
	}
}
