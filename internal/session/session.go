package session

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/patterniq/patterniq-client/internal/backend"
	"github.com/patterniq/patterniq-client/internal/feed"
	"github.com/patterniq/patterniq-client/internal/identity"
)

// Session is the process-wide sign-in context: the parsed identity plus
// the live profile document. It is created once at sign-in and torn
// down once at sign-out; controllers receive it explicitly rather than
// reading globals.
type Session struct {
	id  identity.Identity
	sub *feed.Subscription

	mu      sync.RWMutex
	profile backend.UserProfile
	closed  bool
}

// Start performs the sign-in round trip: it ensures the backend profile
// exists, then subscribes to the user's document feed so later profile
// writes (quiz grades, score changes) replace the local snapshot.
func Start(ctx context.Context, be *backend.Client, feedURL string, id identity.Identity) (*Session, error) {
	profile, err := be.EnsureProfile(ctx, backend.ProfileRequest{
		UserID:      id.Subject,
		DisplayName: id.DisplayName,
		Picture:     id.Picture,
	})
	if err != nil {
		return nil, err
	}

	s := &Session{id: id}
	if profile != nil {
		s.profile = *profile
	} else {
		// Brand-new user: the authoritative record arrives on the feed.
		s.profile = backend.UserProfile{DisplayName: id.DisplayName, Picture: id.Picture}
	}

	sub, err := feed.Subscribe(ctx, feedURL, feed.Query{Path: "users/" + id.Subject})
	if err != nil {
		return nil, err
	}
	s.sub = sub

	go s.watch()
	return s, nil
}

// Identity returns the parsed sign-in identity.
func (s *Session) Identity() identity.Identity { return s.id }

// Profile returns the latest profile snapshot.
func (s *Session) Profile() backend.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// Close tears the session down and releases the profile feed. Snapshots
// still in flight are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.sub.Close()
}

func (s *Session) watch() {
	for {
		select {
		case snap, open := <-s.sub.Snapshots():
			if !open {
				return
			}
			s.apply(snap)
		case err := <-s.sub.Err():
			log.Printf("session: profile feed lost for %s: %v", s.id.Subject, err)
		}
	}
}

func (s *Session) apply(snap json.RawMessage) {
	var p backend.UserProfile
	if err := json.Unmarshal(snap, &p); err != nil {
		log.Printf("session: bad profile snapshot: %v", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.profile = p
}
