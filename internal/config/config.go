package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"interview_room/native/internal/domain"

	"github.com/joho/godotenv"
)

const (
	envServerURL     = "INTERVIEW_SERVER_URL"
	envRoom          = "INTERVIEW_ROOM"
	envRole          = "INTERVIEW_ROLE"
	envVideoFile     = "INTERVIEW_VIDEO_FILE"
	envAudioFile     = "INTERVIEW_AUDIO_FILE"
	envRecognizerCmd = "INTERVIEW_RECOGNIZER_CMD"
	envPingInterval  = "INTERVIEW_PING_INTERVAL"
	envPionLogLevel  = "INTERVIEW_PION_LOG_LEVEL"
	envRecordVideo   = "INTERVIEW_RECORD_VIDEO"
	envRecordAudio   = "INTERVIEW_RECORD_AUDIO"

	envListenAddr      = "RELAY_LISTEN_ADDR"
	envTranscriptLimit = "RELAY_TRANSCRIPT_LIMIT"

	DefaultServerURL    = "http://localhost:8000"
	DefaultPingInterval = 30 * time.Second
	DefaultListenAddr   = ":8000"
)

// Peer holds the configuration of one interview participant.
type Peer struct {
	ServerURL     string
	Room          string
	Role          domain.Role
	VideoFile     string
	AudioFile     string
	RecognizerCmd string
	PingInterval  time.Duration
	PionLogLevel  string
	RecordVideo   string
	RecordAudio   string
}

// Relay holds the configuration of the signaling relay.
type Relay struct {
	ListenAddr      string
	ICEServers      []domain.ICEServer
	TranscriptLimit int
}

// LoadPeer reads configuration from a .env file (if present) and environment
// variables. Environment variables take precedence over .env values.
func LoadPeer() (*Peer, error) {
	// godotenv.Load does not overwrite existing env vars
	_ = godotenv.Load()

	cfg := &Peer{
		ServerURL:     getenv(envServerURL, DefaultServerURL),
		Room:          domain.NormalizeRoom(os.Getenv(envRoom)),
		Role:          domain.ParseRole(os.Getenv(envRole)),
		VideoFile:     os.Getenv(envVideoFile),
		AudioFile:     os.Getenv(envAudioFile),
		RecognizerCmd: os.Getenv(envRecognizerCmd),
		PingInterval:  DefaultPingInterval,
		PionLogLevel:  getenv(envPionLogLevel, "warn"),
		RecordVideo:   os.Getenv(envRecordVideo),
		RecordAudio:   os.Getenv(envRecordAudio),
	}

	if raw := strings.TrimSpace(os.Getenv(envPingInterval)); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("%s: invalid duration %q", envPingInterval, raw)
		}
		cfg.PingInterval = d
	}
	return cfg, nil
}

// Validate checks the fields required to join a room.
func (p *Peer) Validate() error {
	if strings.TrimSpace(p.ServerURL) == "" {
		return fmt.Errorf("%s is required", envServerURL)
	}
	if p.VideoFile == "" || p.AudioFile == "" {
		return fmt.Errorf("%s and %s are required", envVideoFile, envAudioFile)
	}
	if (p.RecordVideo == "") != (p.RecordAudio == "") {
		return fmt.Errorf("%s and %s must be set together", envRecordVideo, envRecordAudio)
	}
	return nil
}

// LoadRelay reads the relay configuration the same way LoadPeer does.
func LoadRelay() (*Relay, error) {
	_ = godotenv.Load()

	servers, err := parseICEServersFromValues(
		os.Getenv(envICEServersJSON),
		os.Getenv(envStunURLs),
		os.Getenv(envTurnURLs),
		os.Getenv(envTurnUsername),
		os.Getenv(envTurnCredential),
	)
	if err != nil {
		return nil, err
	}

	cfg := &Relay{
		ListenAddr: getenv(envListenAddr, DefaultListenAddr),
		ICEServers: servers,
	}
	if raw := strings.TrimSpace(os.Getenv(envTranscriptLimit)); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%s: invalid limit %q", envTranscriptLimit, raw)
		}
		cfg.TranscriptLimit = n
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
