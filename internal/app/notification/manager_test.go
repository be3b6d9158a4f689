package notification

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStream struct {
	mu       sync.Mutex
	received []*Notification
}

func (s *recordingStream) Send(n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, n)
	return nil
}

func (s *recordingStream) Received() []*Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Notification(nil), s.received...)
}

func TestBroadcast_SequenceNumbers(t *testing.T) {
	m := NewManager()
	a, b := &recordingStream{}, &recordingStream{}
	m.Subscribe(a)
	m.Subscribe(b)

	m.Broadcast(&Notification{Type: "track_started"})
	m.Broadcast(&Notification{Type: "track_ended"})

	for _, s := range []*recordingStream{a, b} {
		got := s.Received()
		require.Len(t, got, 2)
		assert.Equal(t, uint64(1), got[0].SequenceNo)
		assert.Equal(t, uint64(2), got[1].SequenceNo)
		assert.False(t, got[0].Time.IsZero())
	}
}

func TestBroadcast_FailingSubscriberIsRemoved(t *testing.T) {
	m := NewManager()
	m.Subscribe(StreamFunc(func(*Notification) error { return errors.New("closed") }))
	ok := &recordingStream{}
	m.Subscribe(ok)

	m.Broadcast(&Notification{Type: "state_changed"})

	assert.Equal(t, 1, m.SubscriberCount())
	assert.Len(t, ok.Received(), 1)
}

func TestBroadcast_SlowSubscriberDoesNotBlock(t *testing.T) {
	m := NewManager()
	release := make(chan struct{})
	defer close(release)
	m.Subscribe(StreamFunc(func(*Notification) error {
		<-release
		return nil
	}))

	start := time.Now()
	m.Broadcast(&Notification{Type: "track_started"})
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 1, m.SubscriberCount())
}

func TestUnsubscribeAndClose(t *testing.T) {
	m := NewManager()
	id := m.Subscribe(&recordingStream{})
	m.Subscribe(&recordingStream{})
	assert.Equal(t, 2, m.SubscriberCount())

	m.Unsubscribe(id)
	assert.Equal(t, 1, m.SubscriberCount())

	m.Close()
	assert.Zero(t, m.SubscriberCount())
}
