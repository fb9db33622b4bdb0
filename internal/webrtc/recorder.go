package webrtc

import (
	"log"
	"path/filepath"
	"strings"
	"sync"

	pion "github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/h264writer"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

// Recorder writes the remote participant's media to disk: H264 video as
// an Annex-B elementary stream and Opus audio as Ogg. An empty path skips
// that kind.
type Recorder struct {
	videoPath string
	audioPath string

	mu      sync.Mutex
	writers []media.Writer
}

// NewRecorder creates a recorder for the given output paths.
func NewRecorder(videoPath, audioPath string) *Recorder {
	return &Recorder{videoPath: videoPath, audioPath: audioPath}
}

// SessionPath tags path with the first part of a session id, so each
// session in one process records to its own files: remote.h264 becomes
// remote-1b4e28ba.h264. An empty path stays empty.
func SessionPath(path, sessionID string) string {
	if path == "" {
		return ""
	}
	if len(sessionID) > 8 {
		sessionID = sessionID[:8]
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-" + sessionID + ext
}

func (r *Recorder) consume(track *pion.TrackRemote) {
	w := r.open(track)
	if w == nil {
		drain(track)
		return
	}

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			log.Printf("[webrtc] %s track read ended: %v", track.Kind(), err)
			return
		}
		if err := w.WriteRTP(pkt); err != nil {
			log.Printf("[webrtc] %s track write error: %v", track.Kind(), err)
			return
		}
	}
}

func (r *Recorder) open(track *pion.TrackRemote) media.Writer {
	mime := track.Codec().MimeType

	var (
		w   media.Writer
		err error
	)
	switch {
	case track.Kind() == pion.RTPCodecTypeVideo && strings.EqualFold(mime, pion.MimeTypeH264) && r.videoPath != "":
		w, err = h264writer.New(r.videoPath)
	case track.Kind() == pion.RTPCodecTypeAudio && strings.EqualFold(mime, pion.MimeTypeOpus) && r.audioPath != "":
		w, err = oggwriter.New(r.audioPath, 48000, 2)
	default:
		return nil
	}
	if err != nil {
		log.Printf("[webrtc] open %s recording: %v", track.Kind(), err)
		return nil
	}

	r.mu.Lock()
	r.writers = append(r.writers, w)
	r.mu.Unlock()
	log.Printf("[webrtc] recording remote %s", track.Kind())
	return w
}

// Close flushes and closes every open writer.
func (r *Recorder) Close() {
	r.mu.Lock()
	writers := r.writers
	r.writers = nil
	r.mu.Unlock()

	for _, w := range writers {
		if err := w.Close(); err != nil {
			log.Printf("[webrtc] close recording: %v", err)
		}
	}
}

func drain(track *pion.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := track.Read(buf); err != nil {
			return
		}
	}
}
