// Package media owns local capture: acquiring tracks, muting them and
// releasing them when the session ends.
package media

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"interview_room/native/internal/domain"
)

// Manager is the lifecycle owner of the local capture tracks.
type Manager struct {
	source domain.MediaSource

	mu     sync.Mutex
	tracks []domain.LocalTrack
	cancel context.CancelFunc
}

// NewManager creates a manager capturing from source.
func NewManager(source domain.MediaSource) *Manager {
	return &Manager{source: source}
}

// Acquire opens audio and video capture. A second call returns the tracks
// already held. Failures wrap domain.ErrMediaUnavailable.
func (m *Manager) Acquire(ctx context.Context) ([]domain.LocalTrack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tracks != nil {
		return m.tracks, nil
	}

	captureCtx, cancel := context.WithCancel(context.Background())
	stop := context.AfterFunc(ctx, cancel)
	tracks, err := m.source.Open(captureCtx)
	stop()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		cancel()
		stopAll(tracks)
		if !errors.Is(err, domain.ErrMediaUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrMediaUnavailable, err)
		}
		return nil, err
	}

	if !hasKind(tracks, domain.TrackAudio) || !hasKind(tracks, domain.TrackVideo) {
		cancel()
		stopAll(tracks)
		return nil, fmt.Errorf("%w: audio and video capture required", domain.ErrMediaUnavailable)
	}

	m.tracks = tracks
	m.cancel = cancel
	log.Printf("[media] acquired %d local tracks", len(tracks))
	return tracks, nil
}

// Tracks returns the acquired tracks, or nil.
func (m *Manager) Tracks() []domain.LocalTrack {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracks
}

// SetTrackEnabled mutes or unmutes every track of the given kind. It is a
// local operation; nothing is signaled.
func (m *Manager) SetTrackEnabled(kind domain.TrackKind, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	found := false
	for _, t := range m.tracks {
		if t.Kind() == kind {
			t.SetEnabled(enabled)
			found = true
		}
	}
	if !found {
		return fmt.Errorf("no local %s track", kind)
	}
	log.Printf("[media] %s enabled=%t", kind, enabled)
	return nil
}

// ToggleTrack flips the enabled flag of the given kind and returns the new
// value.
func (m *Manager) ToggleTrack(kind domain.TrackKind) (bool, error) {
	m.mu.Lock()
	var enabled bool
	for _, t := range m.tracks {
		if t.Kind() == kind {
			enabled = !t.Enabled()
			break
		}
	}
	m.mu.Unlock()

	if err := m.SetTrackEnabled(kind, enabled); err != nil {
		return false, err
	}
	return enabled, nil
}

// Release stops every track. Safe to call at any time, any number of times.
func (m *Manager) Release() {
	m.mu.Lock()
	tracks := m.tracks
	cancel := m.cancel
	m.tracks = nil
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if tracks != nil {
		stopAll(tracks)
		log.Printf("[media] released local tracks")
	}
}

func hasKind(tracks []domain.LocalTrack, kind domain.TrackKind) bool {
	for _, t := range tracks {
		if t.Kind() == kind {
			return true
		}
	}
	return false
}

func stopAll(tracks []domain.LocalTrack) {
	for _, t := range tracks {
		t.Stop()
	}
}
