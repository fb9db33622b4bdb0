package media

import (
	"sync"
	"sync/atomic"

	"interview_room/native/internal/domain"

	pion "github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
)

// opusSilence is a single Opus frame encoding 20ms of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

type sampleWriter interface {
	WriteSample(s pionmedia.Sample) error
}

// Compile-time interface check.
var _ domain.LocalTrack = (*Track)(nil)

// Track is a local capture track. While disabled, audio carries silence
// and video carries no frames; the remote side never sees a renegotiation.
type Track struct {
	id      string
	kind    domain.TrackKind
	local   *pion.TrackLocalStaticSample
	out     sampleWriter
	enabled atomic.Bool

	stopOnce sync.Once
	stopped  chan struct{}
}

func newTrack(kind domain.TrackKind, local *pion.TrackLocalStaticSample) *Track {
	t := &Track{
		id:      local.ID(),
		kind:    kind,
		local:   local,
		out:     local,
		stopped: make(chan struct{}),
	}
	t.enabled.Store(true)
	return t
}

func (t *Track) ID() string                  { return t.id }
func (t *Track) Kind() domain.TrackKind      { return t.kind }
func (t *Track) Enabled() bool               { return t.enabled.Load() }
func (t *Track) SetEnabled(enabled bool)     { t.enabled.Store(enabled) }
func (t *Track) TrackLocal() pion.TrackLocal { return t.local }

// Stop ends the capture feeding this track.
func (t *Track) Stop() {
	t.stopOnce.Do(func() { close(t.stopped) })
}

// Done is closed once the track is stopped.
func (t *Track) Done() <-chan struct{} {
	return t.stopped
}

func (t *Track) write(s pionmedia.Sample) error {
	if !t.enabled.Load() {
		if t.kind == domain.TrackVideo {
			return nil
		}
		s.Data = opusSilence
	}
	return t.out.WriteSample(s)
}
