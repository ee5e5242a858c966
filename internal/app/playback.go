// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/motion_suit/internal/config"
	"github.com/relabs-tech/motion_suit/internal/humanoid"
	"github.com/relabs-tech/motion_suit/internal/recording"
	"github.com/relabs-tech/motion_suit/internal/suit"
)

// RunPlayback replays a recording onto the same topics the streamer uses.
// With loop set, the file restarts from the beginning until interrupted.
func RunPlayback(path string, loop bool) error {
	log.Printf("starting motion-suit playback of %s", path)

	cfg := config.Get()

	stream := suit.NewStream()
	body := humanoid.New(stream)
	body.Attach(&stream.Absolute)
	defer body.Detach()

	client, err := connectMQTT("playback", cfg.MQTTBroker, cfg.MQTTClientIDPlayback)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	defer attachPublisher(mqttPublisher{client: client, component: "playback"}, cfg, stream, body)()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	player := recording.NewPlayer(stream)
	for {
		stats, err := playFile(ctx, player, path)
		if errors.Is(err, context.Canceled) {
			log.Println("playback: interrupted")
			return nil
		}
		if err != nil {
			return err
		}
		log.Printf("playback: finished, %d shirt and %d pants frames applied over %v",
			stats.ShirtFrames, stats.PantsFrames, stats.LastTimestamp)
		if !loop {
			return nil
		}
	}
}

func playFile(ctx context.Context, player *recording.Player, path string) (recording.Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return recording.Stats{}, fmt.Errorf("playback: %w", err)
	}
	defer f.Close()
	return player.Play(ctx, f)
}
