package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"interview_room/native/internal/config"
	"interview_room/native/internal/relay"

	"github.com/spf13/pflag"
)

const helpText = `relayd - signaling relay and collaborator endpoints for interview rooms

Usage:
  relayd [options]

Peers connect to /ws/{room}; every frame is forwarded to the other
members of the room. Caption frames are also kept in a bounded per-room
transcript served at /api/transcript?room=...

Environment Variables:
  RELAY_LISTEN_ADDR        Listen address (default :8000)
  RELAY_ICE_SERVERS_JSON   ICE servers as a JSON array
  RELAY_STUN_URLS          Comma separated STUN URLs
  RELAY_TURN_URLS          Comma separated TURN URLs
  RELAY_TURN_USERNAME      TURN username
  RELAY_TURN_CREDENTIAL    TURN credential
  RELAY_TRANSCRIPT_LIMIT   Caption lines kept per room

Options:
`

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("[main] %v", err)
	}
}

func run() error {
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	cfg, err := config.LoadRelay()
	if err != nil {
		return err
	}

	flagSet := pflag.NewFlagSet("relayd", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "listen address")
	flagSet.IntVar(&cfg.TranscriptLimit, "transcript-limit", cfg.TranscriptLimit, "caption lines kept per room")
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

	hub := relay.NewHub(cfg.TranscriptLimit)
	srv := relay.NewServer(cfg.ListenAddr, hub, cfg.ICEServers)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[main] relay listening on %s with %d ICE servers", cfg.ListenAddr, len(cfg.ICEServers))
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-sigCh:
		log.Printf("[main] received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Printf("[main] done")
	return nil
}
