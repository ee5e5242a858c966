// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/motion_suit/internal/config"
	"github.com/relabs-tech/motion_suit/internal/humanoid"
	"github.com/relabs-tech/motion_suit/internal/orientation"
	"github.com/relabs-tech/motion_suit/internal/recording"
	"github.com/relabs-tech/motion_suit/internal/serialbridge"
	"github.com/relabs-tech/motion_suit/internal/suit"
)

// statsInterval is how often the streamer logs its counters.
const statsInterval = 5 * time.Second

// RunStreamer polls the suit, computes local joint rotations and publishes
// everything over MQTT. With mock set, an in-memory suit replaces the dongle.
func RunStreamer(mock bool) error {
	log.Println("starting motion-suit streamer")

	cfg := config.Get()

	// --- Choose the suit link (mock vs dongle) ---
	var driver suit.Driver
	if mock {
		log.Println("streamer: using mock suit")
		driver = suit.NewMockDriver()
	} else {
		bridge, err := openBridge(cfg)
		if err != nil {
			return err
		}
		defer bridge.Close()
		driver = bridge
	}

	manager := suit.NewManager(driver)
	body := humanoid.New(manager)
	body.Attach(&manager.Absolute)
	defer body.Detach()

	// --- connect to MQTT ---
	client, err := connectMQTT("streamer", cfg.MQTTBroker, cfg.MQTTClientIDStreamer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	pub := mqttPublisher{client: client, component: "streamer"}
	defer attachPublisher(pub, cfg, manager.Stream, body)()

	// --- optional recording ---
	if cfg.RecordingPath != "" {
		rec, err := recording.Create(cfg.RecordingPath)
		if err != nil {
			return err
		}
		log.Printf("streamer: recording to %s", cfg.RecordingPath)
		manager.SetFrameTap(func(device suit.DeviceType, f orientation.Frame) {
			if err := rec.Capture(device, f); err != nil {
				log.Printf("streamer: recording error: %v", err)
			}
		})
		defer func() {
			rec.SetBaseOrientations(manager.ShirtBaseOrientation(), manager.PantsBaseOrientation())
			if err := rec.Close(); err != nil {
				log.Printf("streamer: closing recording: %v", err)
				return
			}
			log.Printf("streamer: recording saved: %s", rec.Header())
		}()
	}

	// Commands arrive on MQTT goroutines; the manager is only touched from this loop.
	commands := make(chan CommandMsg, 16)
	err = subscribeJSON(client, "streamer", cfg.TopicCommand, func(cmd CommandMsg) {
		select {
		case commands <- cmd:
		default:
			log.Printf("streamer: command queue full, dropping %s", cmd.Action)
		}
	})
	if err != nil {
		return err
	}

	if cfg.SuitAutoConnect != suit.None {
		if err := manager.Connect(cfg.SuitAutoConnect); err != nil {
			log.Printf("streamer: autoconnect %s: %v", cfg.SuitAutoConnect, err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// main tick
	ticker := time.NewTicker(time.Duration(cfg.SuitTickInterval) * time.Millisecond)
	defer ticker.Stop()
	statsTicker := time.NewTicker(statsInterval)
	defer statsTicker.Stop()

	log.Println("streamer: starting tick loop")
	for {
		select {
		case <-ticker.C:
			if err := manager.Tick(); err != nil {
				log.Printf("streamer: tick: %v", err)
			}

		case cmd := <-commands:
			if err := applyCommand(manager, cmd); err != nil {
				log.Printf("streamer: %s: %v", cmd.Action, err)
				pub.Publish(cfg.TopicEvents, false, EventMsg{
					Time: now(), Device: cmd.Device, Kind: EventError, Error: err.Error(),
				})
			}

		case <-statsTicker.C:
			s := manager.Stats()
			log.Printf("streamer: shirt=%s pants=%s frames=%d/%d commands=%d decode_errors=%d driver_errors=%d",
				manager.ShirtState(), manager.PantsState(),
				s.ShirtFrames, s.PantsFrames, s.Commands, s.DecodeErrors, s.DriverErrors)

		case <-sigCh:
			log.Println("streamer: shutting down")
			if err := manager.Shutdown(); err != nil {
				log.Printf("streamer: %v", err)
			}
			return nil
		}
	}
}

func openBridge(cfg *config.Config) (*serialbridge.Driver, error) {
	port := cfg.SuitSerialPort
	if port == "auto" {
		found, err := serialbridge.FindPort()
		if errors.Is(err, serialbridge.ErrNoPort) {
			return nil, fmt.Errorf("no suit dongle found; set SUIT_SERIAL_PORT or run with -mock")
		}
		if err != nil {
			return nil, fmt.Errorf("listing serial ports: %w", err)
		}
		log.Printf("streamer: found dongle on %s", found)
		port = found
	}
	return serialbridge.Open(port, cfg.SuitBaudRate)
}
