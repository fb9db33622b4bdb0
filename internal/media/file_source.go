package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"interview_room/native/internal/domain"

	"github.com/google/uuid"
	pion "github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/h264reader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

const (
	h264FrameDuration = time.Millisecond * 33
	oggPageDuration   = time.Millisecond * 20
)

// Compile-time interface check.
var _ domain.MediaSource = (*FileSource)(nil)

// FileSource is the capture device of a headless participant: it loops an
// H264 Annex-B file and an Ogg/Opus file into local tracks in real time.
type FileSource struct {
	VideoPath string
	AudioPath string
}

// Open checks that both files decode and starts pacing them into new
// tracks. The pumps stop when ctx is cancelled or the track is stopped.
func (s *FileSource) Open(ctx context.Context) ([]domain.LocalTrack, error) {
	for _, c := range []struct {
		path  string
		check func(io.Reader) error
	}{
		{s.VideoPath, checkH264},
		{s.AudioPath, checkOgg},
	} {
		if c.path == "" {
			return nil, fmt.Errorf("%w: capture file not configured", domain.ErrMediaUnavailable)
		}
		if err := checkFile(c.path, c.check); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrMediaUnavailable, c.path, err)
		}
	}

	streamID := "interview-" + uuid.NewString()

	audioLocal, err := pion.NewTrackLocalStaticSample(pion.RTPCodecCapability{MimeType: pion.MimeTypeOpus}, "audio", streamID)
	if err != nil {
		return nil, fmt.Errorf("create audio track: %w", err)
	}
	videoLocal, err := pion.NewTrackLocalStaticSample(pion.RTPCodecCapability{MimeType: pion.MimeTypeH264}, "video", streamID)
	if err != nil {
		return nil, fmt.Errorf("create video track: %w", err)
	}

	audio := newTrack(domain.TrackAudio, audioLocal)
	video := newTrack(domain.TrackVideo, videoLocal)

	go loop(ctx, audio, s.AudioPath, pumpOgg)
	go loop(ctx, video, s.VideoPath, pumpH264)

	return []domain.LocalTrack{audio, video}, nil
}

func checkFile(path string, check func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return check(f)
}

// checkH264 requires at least one NAL unit.
func checkH264(r io.Reader) error {
	h264, err := h264reader.NewReader(r)
	if err != nil {
		return err
	}
	if _, err := h264.NextNAL(); err != nil {
		return fmt.Errorf("no h264 data: %w", err)
	}
	return nil
}

// checkOgg requires valid headers and at least one page after them.
func checkOgg(r io.Reader) error {
	ogg, _, err := oggreader.NewWith(r)
	if err != nil {
		return fmt.Errorf("not an ogg stream: %w", err)
	}
	if _, _, err := ogg.ParseNextPage(); err != nil {
		return fmt.Errorf("no ogg pages: %w", err)
	}
	return nil
}

// pumpFunc writes samples from r until it fails or ends and reports how
// many were written.
type pumpFunc func(ctx context.Context, t *Track, r io.Reader) (int, error)

// loop replays the file until the track stops or ctx ends. A pass that
// writes nothing ends the loop so a truncated file cannot spin.
func loop(ctx context.Context, t *Track, path string, pump pumpFunc) {
	for {
		f, err := os.Open(path)
		if err != nil {
			log.Printf("[media] open %s: %v", path, err)
			return
		}
		n, err := pump(ctx, t, f)
		f.Close()

		if err != nil && !errors.Is(err, io.EOF) {
			if ctx.Err() == nil {
				log.Printf("[media] %s capture stopped: %v", t.Kind(), err)
			}
			return
		}
		if n == 0 {
			log.Printf("[media] %s capture stopped: %s has no samples", t.Kind(), path)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-t.Done():
			return
		default:
		}
	}
}

func pumpH264(ctx context.Context, t *Track, r io.Reader) (int, error) {
	h264, err := h264reader.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("h264 reader: %w", err)
	}

	ticker := time.NewTicker(h264FrameDuration)
	defer ticker.Stop()

	written := 0
	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		case <-t.Done():
			return written, context.Canceled
		case <-ticker.C:
		}

		nal, err := h264.NextNAL()
		if err != nil {
			return written, err
		}
		if err := t.write(pionmedia.Sample{Data: nal.Data, Duration: h264FrameDuration}); err != nil {
			return written, err
		}
		written++
	}
}

func pumpOgg(ctx context.Context, t *Track, r io.Reader) (int, error) {
	ogg, _, err := oggreader.NewWith(r)
	if err != nil {
		return 0, fmt.Errorf("ogg reader: %w", err)
	}

	ticker := time.NewTicker(oggPageDuration)
	defer ticker.Stop()

	var lastGranule uint64
	written := 0
	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		case <-t.Done():
			return written, context.Canceled
		case <-ticker.C:
		}

		page, header, err := ogg.ParseNextPage()
		if err != nil {
			return written, err
		}

		sampleCount := float64(header.GranulePosition - lastGranule)
		lastGranule = header.GranulePosition
		duration := time.Duration((sampleCount/48000)*1000) * time.Millisecond

		if err := t.write(pionmedia.Sample{Data: page, Duration: duration}); err != nil {
			return written, err
		}
		written++
	}
}
