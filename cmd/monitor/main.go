// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Config  string         `short:"c" long:"config" default:"motion_suit_config.txt" description:"Path to configuration file"`
	Live    LiveCommand    `command:"live" description:"Chart live yaw and send suit commands over MQTT"`
	Inspect InspectCommand `command:"inspect" description:"Validate a recording and print its header"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "Motion suit monitor - terminal tools for a running streamer and its recordings"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
