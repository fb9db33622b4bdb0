package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	ossignal "os/signal"
	"syscall"

	"interview_room/native/internal/api"
	"interview_room/native/internal/caption"
	"interview_room/native/internal/config"
	"interview_room/native/internal/domain"
	"interview_room/native/internal/media"
	"interview_room/native/internal/session"
	sigclient "interview_room/native/internal/signal"
	"interview_room/native/internal/ui"
	"interview_room/native/internal/webrtc"

	"github.com/spf13/pflag"
)

const version = "0.1.0"

const helpText = `interviewroom - join a two-party interview room over WebRTC

Usage:
  interviewroom [options]

Local media is read from an H264 Annex-B file and an Ogg/Opus file and
looped in real time. Lines typed on stdin are sent as captions unless
they start with a slash; type /help for the command list.

Environment Variables:
  INTERVIEW_SERVER_URL      Relay base URL (default http://localhost:8000)
  INTERVIEW_ROOM            Room name (default "default")
  INTERVIEW_ROLE            candidate or recruiter (default recruiter)
  INTERVIEW_VIDEO_FILE      H264 capture file (required)
  INTERVIEW_AUDIO_FILE      Ogg/Opus capture file (required)
  INTERVIEW_RECOGNIZER_CMD  Speech recognizer command emitting JSON lines
  INTERVIEW_RECORD_VIDEO    Write remote video to this .h264 file
  INTERVIEW_RECORD_AUDIO    Write remote audio to this .ogg file

Examples:
  # Recruiter opens a room and shares the printed link
  interviewroom --room interview42 --video cam.h264 --audio mic.ogg

  # Candidate joins from the link
  interviewroom --link 'http://localhost:8000/?role=candidate&room=interview42' \
    --video cam.h264 --audio mic.ogg

Options:
`

func main() {
	if err := run(); err != nil {
		log.Fatalf("[main] %v", err)
	}
}

func run() error {
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	cfg, err := config.LoadPeer()
	if err != nil {
		return err
	}

	flagSet := pflag.NewFlagSet("interviewroom", pflag.ContinueOnError)
	var (
		role     string
		link     string
		initiate bool
	)
	flagSet.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "relay base URL")
	flagSet.StringVar(&cfg.Room, "room", cfg.Room, "room to join")
	flagSet.StringVar(&role, "role", string(cfg.Role), "candidate or recruiter")
	flagSet.StringVar(&link, "link", "", "shareable link carrying role and room")
	flagSet.StringVar(&cfg.VideoFile, "video", cfg.VideoFile, "H264 Annex-B capture file")
	flagSet.StringVar(&cfg.AudioFile, "audio", cfg.AudioFile, "Ogg/Opus capture file")
	flagSet.StringVar(&cfg.RecognizerCmd, "recognizer", cfg.RecognizerCmd, "speech recognizer command")
	flagSet.StringVar(&cfg.RecordVideo, "record-video", cfg.RecordVideo, "write remote video to this file")
	flagSet.StringVar(&cfg.RecordAudio, "record-audio", cfg.RecordAudio, "write remote audio to this file")
	flagSet.StringVar(&cfg.PionLogLevel, "pion-log-level", cfg.PionLogLevel, "pion log level")
	flagSet.BoolVar(&initiate, "initiate", true, "send an offer as soon as the room socket opens")
	flagSet.BoolP("help", "h", false, "show help")
	flagSet.Usage = func() {
		fmt.Print(helpText)
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg.Role = domain.ParseRole(role)
	cfg.Room = domain.NormalizeRoom(cfg.Room)
	if link != "" {
		cfg.Role, cfg.Room, err = domain.RoomFromLink(link)
		if err != nil {
			return fmt.Errorf("parse link: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %s, shutting down", sig)
		cancel()
	}()

	apiClient := api.NewClient(cfg.ServerURL)
	analyzer := api.NewAnalyzer(apiClient)

	// Typed captions feed the line recognizer unless a real one is configured.
	var lines chan string
	var recognizer domain.Recognizer
	if cfg.RecognizerCmd != "" {
		cmdRec, err := caption.NewCommandRecognizer(cfg.RecognizerCmd)
		if err != nil {
			return err
		}
		recognizer = cmdRec
	} else {
		lines = make(chan string, 16)
		recognizer = caption.NewLineRecognizer(lines)
	}

	factory := func(sc session.Config) (*session.SessionContext, error) {
		wsURL, err := sigclient.RoomURL(cfg.ServerURL, sc.Room)
		if err != nil {
			return nil, err
		}
		var s *session.SessionContext
		s, err = session.New(sc, session.Deps{
			Media: media.NewManager(&media.FileSource{VideoPath: cfg.VideoFile, AudioPath: cfg.AudioFile}),
			NewPeer: func(servers []domain.ICEServer) (domain.Peer, error) {
				peer, err := webrtc.NewPeer(servers, webrtc.Options{LogLevel: cfg.PionLogLevel})
				if err != nil {
					return nil, err
				}
				if cfg.RecordVideo == "" {
					peer.SetOnTrack(nil)
					return peer, nil
				}
				rec := webrtc.NewRecorder(webrtc.SessionPath(cfg.RecordVideo, s.ID), webrtc.SessionPath(cfg.RecordAudio, s.ID))
				go func() {
					<-s.Done()
					rec.Close()
				}()
				peer.SetOnTrack(rec)
				return peer, nil
			},
			Transport:  sigclient.NewClient(wsURL, cfg.PingInterval),
			ICE:        apiClient,
			Recognizer: recognizer,
			Renderer:   ui.NewCaptions(sc.Role),
			Analyzer:   analyzer,
			Observer: func(_, to domain.SessionState, err error) {
				ui.State(to, err)
			},
		})
		return s, err
	}
	controller := session.NewController(factory)
	defer controller.Close()

	sessionCfg := session.Config{Room: cfg.Room, Role: cfg.Role, Initiate: initiate}
	if err := openRoom(ctx, controller, sessionCfg, cfg.ServerURL); err != nil {
		return err
	}
	ui.Help()

	cl := &commandLoop{
		controller: controller,
		analyzer:   analyzer,
		cfg:        sessionCfg,
		serverURL:  cfg.ServerURL,
		lines:      lines,
	}
	go cl.run(ctx, cancel)

	for {
		s := controller.Current()
		if s == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			log.Printf("[main] shutting down")
			return nil
		case <-s.Done():
			// A replaced session is swapped out under the controller's lock.
			if controller.Current() == s {
				return s.Err()
			}
		}
	}
}

func openRoom(ctx context.Context, controller *session.Controller, sc session.Config, serverURL string) error {
	s, err := controller.Open(ctx, sc)
	if err != nil {
		return fmt.Errorf("open room %q: %w", sc.Room, err)
	}
	ui.Banner(version, s.Room, s.Role)
	if s.Role == domain.RoleRecruiter {
		ui.ShareBox(domain.ShareLink(serverURL, s.Room))
	}
	return nil
}

// commandLoop reads stdin. lines is nil when an external recognizer
// produces the captions.
type commandLoop struct {
	controller *session.Controller
	analyzer   *api.Analyzer
	cfg        session.Config
	serverURL  string
	lines      chan<- string
}

var (
	errTypedCaptionsOff = errors.New("captions come from the recognizer command, typed lines are not sent")
	errCaptionBacklog   = errors.New("caption dropped, recognizer busy")
)

// caption hands a typed line to the line recognizer without blocking.
func (cl *commandLoop) caption(text string) error {
	if cl.lines == nil {
		return errTypedCaptionsOff
	}
	select {
	case cl.lines <- text:
		return nil
	default:
		return errCaptionBacklog
	}
}

func (cl *commandLoop) run(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()

	var resume, jobRole string
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		cmd, ok := ui.ParseCommand(scanner.Text())
		if !ok {
			continue
		}
		s := cl.controller.Current()
		if s == nil {
			return
		}

		switch cmd.Kind {
		case ui.CmdCaption:
			if err := cl.caption(cmd.Args[0]); err != nil {
				ui.Hint("", err)
			}
		case ui.CmdMute:
			on, err := s.ToggleTrack(domain.TrackAudio)
			ui.Hint(fmt.Sprintf("microphone on: %v", on), err)
		case ui.CmdVideo:
			on, err := s.ToggleTrack(domain.TrackVideo)
			ui.Hint(fmt.Sprintf("camera on: %v", on), err)
		case ui.CmdShare:
			ui.ShareBox(domain.ShareLink(cl.serverURL, s.Room))
		case ui.CmdAnalyze:
			if len(cmd.Args) < 2 {
				ui.Hint("", errors.New("usage: /analyze <resume.pdf> <job role>"))
				continue
			}
			resume, jobRole = cmd.Args[0], cmd.Args[1]
			// An explicit /analyze always resubmits, the file may have changed.
			cl.analyzer.Reset()
			ui.Hint(s.Analyze(resume, jobRole))
		case ui.CmdReport:
			ui.Hint(s.Report(resume, jobRole))
		case ui.CmdRoom:
			if len(cmd.Args) == 0 {
				ui.Hint("", errors.New("usage: /room <name>"))
				continue
			}
			cl.cfg.Room = cmd.Args[0]
			if err := openRoom(ctx, cl.controller, cl.cfg, cl.serverURL); err != nil {
				ui.Hint("", err)
				return
			}
		case ui.CmdHelp:
			ui.Help()
		case ui.CmdQuit:
			return
		default:
			ui.Hint("", errors.New("unknown command, try /help"))
		}
	}
}
