// Package testutil provides in-memory collaborators for package tests: a
// recording notification sink, a fake channel provider, and seed helpers for
// member profiles.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/onnwee/creator-hub/backend/member"
	"github.com/onnwee/creator-hub/backend/store"
)

// RecordingSink captures every posted message and alert for assertions.
type RecordingSink struct {
	mu     sync.Mutex
	Posts  []Post
	Alerts []Alert
	// Err, when set, is returned from every call.
	Err error
}

type Post struct {
	ChannelID string
	Message   string
}

type Alert struct {
	Title string
	Body  string
}

func (s *RecordingSink) Post(_ context.Context, channelID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Posts = append(s.Posts, Post{ChannelID: channelID, Message: message})
	return nil
}

func (s *RecordingSink) Alert(_ context.Context, title, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Alerts = append(s.Alerts, Alert{Title: title, Body: body})
	return nil
}

// AlertCount returns the number of recorded alerts.
func (s *RecordingSink) AlertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Alerts)
}

// PostCount returns the number of recorded posts.
func (s *RecordingSink) PostCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Posts)
}

// FakeChannels is a ChannelProvider handing out sequential channel ids and
// recording deletions.
type FakeChannels struct {
	mu      sync.Mutex
	next    int
	Created []string
	Deleted []string
	// CreateErr, when set, is returned from CreateChannel.
	CreateErr error
}

func (f *FakeChannels) CreateChannel(_ context.Context, name, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return "", f.CreateErr
	}
	f.next++
	id := fmt.Sprintf("chan-%d-%s", f.next, name)
	f.Created = append(f.Created, id)
	return id, nil
}

func (f *FakeChannels) DeleteChannel(_ context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deleted = append(f.Deleted, channelID)
	return nil
}

// DeletedChannels returns a copy of the deleted channel ids.
func (f *FakeChannels) DeletedChannels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Deleted))
	copy(out, f.Deleted)
	return out
}

// ActiveMember builds an active member profile for seeding test stores.
func ActiveMember(userID, username string) *member.Member {
	m := member.New(userID, username)
	m.Approve(0)
	return m
}

// SeedMember saves the member into the store, failing the test on error.
func SeedMember(t *testing.T, st store.Store, m *member.Member) {
	t.Helper()
	if err := st.SaveMember(context.Background(), m); err != nil {
		t.Fatalf("seed member %s: %v", m.UserID, err)
	}
}
