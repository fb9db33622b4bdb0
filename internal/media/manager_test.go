package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"interview_room/native/internal/domain"

	pion "github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
)

// mockTrack records state changes for verification.
type mockTrack struct {
	kind    domain.TrackKind
	enabled bool
	stopped int
}

func (m *mockTrack) ID() string              { return string(m.kind) }
func (m *mockTrack) Kind() domain.TrackKind  { return m.kind }
func (m *mockTrack) Enabled() bool           { return m.enabled }
func (m *mockTrack) SetEnabled(enabled bool) { m.enabled = enabled }
func (m *mockTrack) Stop()                   { m.stopped++ }

// mockSource hands out prepared tracks or an error.
type mockSource struct {
	tracks []domain.LocalTrack
	err    error
	opens  int
}

func (m *mockSource) Open(ctx context.Context) ([]domain.LocalTrack, error) {
	m.opens++
	return m.tracks, m.err
}

func newAVSource() (*mockSource, *mockTrack, *mockTrack) {
	audio := &mockTrack{kind: domain.TrackAudio, enabled: true}
	video := &mockTrack{kind: domain.TrackVideo, enabled: true}
	return &mockSource{tracks: []domain.LocalTrack{audio, video}}, audio, video
}

func TestAcquire_ReturnsTracksOnce(t *testing.T) {
	src, _, _ := newAVSource()
	m := NewManager(src)

	first, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected 2 tracks, got %d and %d", len(first), len(second))
	}
	if src.opens != 1 {
		t.Errorf("expected source opened once, got %d", src.opens)
	}
}

func TestAcquire_SourceFailureIsMediaUnavailable(t *testing.T) {
	m := NewManager(&mockSource{err: errors.New("permission denied")})

	_, err := m.Acquire(context.Background())
	if !errors.Is(err, domain.ErrMediaUnavailable) {
		t.Fatalf("expected ErrMediaUnavailable, got %v", err)
	}
	if m.Tracks() != nil {
		t.Error("expected no tracks after failed acquire")
	}
}

func TestAcquire_MissingVideoIsMediaUnavailable(t *testing.T) {
	audio := &mockTrack{kind: domain.TrackAudio}
	m := NewManager(&mockSource{tracks: []domain.LocalTrack{audio}})

	_, err := m.Acquire(context.Background())
	if !errors.Is(err, domain.ErrMediaUnavailable) {
		t.Fatalf("expected ErrMediaUnavailable, got %v", err)
	}
	if audio.stopped != 1 {
		t.Errorf("expected partial capture to be stopped, got %d stops", audio.stopped)
	}
}

func TestSetTrackEnabled_TogglesOnlyRequestedKind(t *testing.T) {
	src, audio, video := newAVSource()
	m := NewManager(src)
	if _, err := m.Acquire(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := m.SetTrackEnabled(domain.TrackAudio, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if audio.enabled {
		t.Error("expected audio to be muted")
	}
	if !video.enabled {
		t.Error("expected video to stay enabled")
	}

	enabled, err := m.ToggleTrack(domain.TrackAudio)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !enabled || !audio.enabled {
		t.Error("expected toggle to unmute audio")
	}
}

func TestSetTrackEnabled_BeforeAcquire(t *testing.T) {
	src, _, _ := newAVSource()
	m := NewManager(src)

	if err := m.SetTrackEnabled(domain.TrackAudio, false); err == nil {
		t.Error("expected error when no tracks are held")
	}
}

func TestRelease_IdempotentAndSafeBeforeAcquire(t *testing.T) {
	src, audio, video := newAVSource()
	m := NewManager(src)

	m.Release()

	if _, err := m.Acquire(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.Release()
	m.Release()

	if audio.stopped != 1 || video.stopped != 1 {
		t.Errorf("expected each track stopped once, got audio=%d video=%d", audio.stopped, video.stopped)
	}
	if m.Tracks() != nil {
		t.Error("expected tracks cleared after release")
	}
}

// recordingWriter captures samples written by a Track.
type recordingWriter struct {
	samples []pionmedia.Sample
}

func (r *recordingWriter) WriteSample(s pionmedia.Sample) error {
	r.samples = append(r.samples, s)
	return nil
}

func newTestTrack(t *testing.T, kind domain.TrackKind) (*Track, *recordingWriter) {
	t.Helper()
	mime := pion.MimeTypeOpus
	if kind == domain.TrackVideo {
		mime = pion.MimeTypeH264
	}
	local, err := pion.NewTrackLocalStaticSample(pion.RTPCodecCapability{MimeType: mime}, string(kind), "test")
	if err != nil {
		t.Fatalf("create track: %v", err)
	}
	tr := newTrack(kind, local)
	w := &recordingWriter{}
	tr.out = w
	return tr, w
}

func TestTrack_MutedAudioSendsSilence(t *testing.T) {
	tr, w := newTestTrack(t, domain.TrackAudio)

	tr.write(pionmedia.Sample{Data: []byte{1, 2, 3, 4}, Duration: oggPageDuration})
	tr.SetEnabled(false)
	tr.write(pionmedia.Sample{Data: []byte{5, 6, 7, 8}, Duration: oggPageDuration})

	if len(w.samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(w.samples))
	}
	if !bytes.Equal(w.samples[1].Data, opusSilence) {
		t.Errorf("expected silence frame while muted, got %v", w.samples[1].Data)
	}
	if w.samples[1].Duration != oggPageDuration {
		t.Errorf("expected duration preserved, got %v", w.samples[1].Duration)
	}
}

func TestTrack_DisabledVideoSendsNothing(t *testing.T) {
	tr, w := newTestTrack(t, domain.TrackVideo)

	tr.SetEnabled(false)
	tr.write(pionmedia.Sample{Data: []byte{0x65}, Duration: h264FrameDuration})

	if len(w.samples) != 0 {
		t.Errorf("expected no frames while disabled, got %d", len(w.samples))
	}
}

func TestTrack_StopClosesDone(t *testing.T) {
	tr, _ := newTestTrack(t, domain.TrackVideo)
	tr.Stop()
	tr.Stop()

	select {
	case <-tr.Done():
	case <-time.After(time.Second):
		t.Fatal("expected Done to be closed")
	}
}

func TestFileSource_MissingFilesAreMediaUnavailable(t *testing.T) {
	dir := t.TempDir()
	src := &FileSource{
		VideoPath: filepath.Join(dir, "missing.h264"),
		AudioPath: filepath.Join(dir, "missing.ogg"),
	}

	_, err := src.Open(context.Background())
	if !errors.Is(err, domain.ErrMediaUnavailable) {
		t.Fatalf("expected ErrMediaUnavailable, got %v", err)
	}

	_, err = (&FileSource{}).Open(context.Background())
	if !errors.Is(err, domain.ErrMediaUnavailable) {
		t.Fatalf("expected ErrMediaUnavailable for unconfigured source, got %v", err)
	}
}

var annexBFrame = []byte{0x00, 0x00, 0x00, 0x01, 0x67, 0x42, 0x00, 0x1f, 0x00, 0x00, 0x00, 0x01, 0x65, 0x88}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestFileSource_UndecodableFilesAreMediaUnavailable(t *testing.T) {
	dir := t.TempDir()
	video := writeFile(t, dir, "cam.h264", annexBFrame)

	tests := []struct {
		name  string
		video string
		audio string
	}{
		{"empty audio", video, writeFile(t, dir, "empty.ogg", nil)},
		{"garbage audio", video, writeFile(t, dir, "garbage.ogg", []byte("definitely not ogg data"))},
		{"empty video", writeFile(t, dir, "empty.h264", nil), writeFile(t, dir, "other.ogg", nil)},
		{"garbage video", writeFile(t, dir, "garbage.h264", []byte{0x01, 0x02, 0x03, 0x04, 0x05}), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(&FileSource{VideoPath: tt.video, AudioPath: tt.audio})
			_, err := m.Acquire(context.Background())
			if !errors.Is(err, domain.ErrMediaUnavailable) {
				t.Fatalf("expected ErrMediaUnavailable, got %v", err)
			}
			if m.Tracks() != nil {
				t.Error("expected no tracks held")
			}
		})
	}
}

func TestCheckH264_AcceptsAnnexB(t *testing.T) {
	if err := checkH264(bytes.NewReader(annexBFrame)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoop_StopsWhenPassWritesNothing(t *testing.T) {
	tr, _ := newTestTrack(t, domain.TrackAudio)
	path := writeFile(t, t.TempDir(), "empty.ogg", nil)

	passes := 0
	pump := func(ctx context.Context, t *Track, r io.Reader) (int, error) {
		passes++
		return 0, io.EOF
	}

	done := make(chan struct{})
	go func() {
		loop(context.Background(), tr, path, pump)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		tr.Stop()
		t.Fatal("loop kept replaying a file with no samples")
	}
	if passes != 1 {
		t.Errorf("expected one pass, got %d", passes)
	}
}
