// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/motion_suit/internal/app"
	"github.com/relabs-tech/motion_suit/internal/config"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to configuration file")
	file := flag.String("file", "", "recording to replay")
	loop := flag.Bool("loop", false, "restart the recording when it ends")
	flag.Parse()

	if *file == "" {
		log.Fatal("playback: -file is required")
	}

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunPlayback(*file, *loop); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
