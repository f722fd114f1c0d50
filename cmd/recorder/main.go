// Command recorder connects to a running game server as a spectator and
// writes every published snapshot as a PNG frame.
//
// USAGE:
//  1. Start the game server: go run ./cmd/server
//  2. Then start the recorder: go run ./cmd/recorder -out frames
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gate-snake/internal/config"
	"gate-snake/internal/frame"
	"gate-snake/internal/game"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const reconnectDelay = 2 * time.Second

type message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func main() {
	_ = godotenv.Load()

	url := flag.String("url", "ws://localhost:3000/ws", "game server WebSocket URL")
	out := flag.String("out", "frames", "output directory")
	untilOver := flag.Bool("until-over", false, "exit after the first finished session")
	flag.Parse()

	appConfig := config.Load()
	if lvl, err := zerolog.ParseLevel(appConfig.Log.Level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rec, err := frame.NewRecorder(frame.New(appConfig.Render), *out)
	if err != nil {
		log.Fatal().Err(err).Msg("recorder")
	}
	rec.Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		select {
		case <-rec.Failed():
			stop()
		case <-ctx.Done():
		}
	}()

	for ctx.Err() == nil {
		over, err := record(ctx, *url, rec, *untilOver)
		if over {
			break
		}
		if err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Dur("retry", reconnectDelay).Msg("connection lost")
			select {
			case <-ctx.Done():
			case <-time.After(reconnectDelay):
			}
		}
	}

	rec.Stop()
	stats := rec.GetStats()
	log.Info().
		Interface("written", stats["framesWritten"]).
		Interface("dropped", stats["framesDropped"]).
		Msg("done")
}

// record streams snapshots from one connection into rec. With untilOver
// it returns true at the first finished session.
func record(ctx context.Context, url string, rec *frame.Recorder, untilOver bool) (bool, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()
	log.Info().Str("url", url).Msg("connected")

	closed := make(chan struct{})
	defer close(closed)
	go func() {
		select {
		case <-closed:
			return
		case <-ctx.Done():
		}
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			return false, err
		}
		if msg.Event != "game:state" {
			continue
		}

		var snap game.Snapshot
		if err := json.Unmarshal(msg.Data, &snap); err != nil {
			log.Warn().Err(err).Msg("bad snapshot")
			continue
		}
		if ok, err := rec.Submit(&snap); err != nil {
			return false, err
		} else if !ok {
			log.Debug().Uint64("seq", snap.Sequence).Msg("frame dropped")
		}

		if snap.Outcome.Over() && untilOver {
			log.Info().Str("banner", snap.Banner()).Str("session", snap.SessionID).Msg("session finished")
			return true, nil
		}
	}
}
